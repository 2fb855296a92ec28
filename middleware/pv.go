package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

// PageViewRecorder counts successful GET hits on listing pages per day and path.
func PageViewRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/posts") || strings.HasSuffix(path, "/stats") ||
			strings.HasSuffix(path, "/edit") || path == "/posts/create" {
			return
		}

		now := time.Now()

		// Atomic upsert to avoid duplicate key errors under concurrency
		err := db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("page_views.count + 1"), "updated_at": now}),
		}).Create(&models.PageView{Day: models.ViewDay(now), Path: path, Count: 1}).Error
		if err != nil {
			utils.Sugar.Warnf("page view record failed path=%s err=%v", path, err)
		}
	}
}
