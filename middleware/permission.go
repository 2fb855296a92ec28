package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/guildboard/utils"
)

// PermissionRequired rejects the request with 403 unless the authenticated
// user holds codename. It must run after AuthRequired.
func PermissionRequired(codename string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}
		if !user.HasPerm(codename) {
			utils.Error(ctx, http.StatusForbidden, 40301, "permission denied: "+codename)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
