package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/middleware"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

// AuthController handles local registration, login and logout.
type AuthController struct {
	db        *gorm.DB
	cfg       config.AppConfig
	blacklist *utils.TokenBlacklist
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(db *gorm.DB, cfg config.AppConfig, blacklist *utils.TokenBlacklist) *AuthController {
	return &AuthController{db: db, cfg: cfg, blacklist: blacklist}
}

// Register handles local account registration with bcrypt hashing.
// New accounts hold no permissions; they can comment but not post.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required,min=2,max=64"`
		Email    string `json:"email" binding:"omitempty,email"`
		Password string `json:"password" binding:"required"`
		Confirm  string `json:"confirm"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may contain letters, digits, '-' and '_' only")
		return
	}
	if req.Confirm != "" && req.Password != req.Confirm {
		utils.Error(ctx, http.StatusBadRequest, 40002, "passwords do not match")
		return
	}

	var count int64
	if err := a.db.WithContext(ctx.Request.Context()).Model(&models.User{}).
		Where("username = ?", req.Username).Count(&count).Error; err != nil {
		utils.Sugar.Errorf("register: check username: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create user")
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrWeakPassword) {
			utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := a.db.WithContext(ctx.Request.Context()).Create(&user).Error; err != nil {
		utils.Sugar.Errorf("register: create user: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(a.cfg.JWTSecret, user.ID, user.Username, utils.TokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  a.userResponse(&user),
	})
}

func validUsername(s string) bool {
	for _, r := range s {
		if r == '-' || r == '_' {
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		// Cyrillic
		if r >= 0x0400 && r <= 0x04FF {
			continue
		}
		return false
	}
	return s != ""
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx.Request.Context()).Preload("Permissions").
		Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(a.cfg.JWTSecret, user.ID, user.Username, utils.TokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  a.userResponse(&user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	expiresAt := time.Now().Add(utils.TokenTTL)
	if claims, err := utils.ParseToken(a.cfg.JWTSecret, token); err == nil {
		expiresAt = claims.ExpiresAtOrDefault()
	}

	a.blacklist.Revoke(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	utils.Success(ctx, a.userResponse(user))
}

// userResponse exposes the account with its effective permissions.
func (a *AuthController) userResponse(user *models.User) gin.H {
	isAdmin := user.IsSuperuser || a.cfg.IsAdmin(user.Username)
	perms := make([]string, 0, len(models.DefaultPermissions))
	for _, p := range models.DefaultPermissions {
		if isAdmin || user.HasPerm(p.Codename) {
			perms = append(perms, p.Codename)
		}
	}
	return gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"is_admin":    isAdmin,
		"permissions": perms,
		"created_at":  user.CreatedAt,
	}
}
