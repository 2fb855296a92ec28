package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/controllers"
	"github.com/cppla/guildboard/middleware"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/storage"
	"github.com/cppla/guildboard/utils"
)

// Dependencies are the shared services handed to controllers and middleware.
type Dependencies struct {
	DB        *gorm.DB
	Cache     *utils.Cache
	Blacklist *utils.TokenBlacklist
	Storage   storage.Storage
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Dependencies) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg); err == nil {
			r.Use(utils.Ginzap(gl, time.RFC3339, true))
			r.Use(utils.RecoveryWithZap(gl, false))
		} else {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
			r.Use(utils.RecoveryWithZap(utils.Logger, true))
		}
	} else {
		r.Use(utils.RecoveryWithZap(utils.Logger, true))
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/media/"})))
	r.Use(middleware.Metrics())
	// Record PV after each request
	r.Use(middleware.PageViewRecorder(deps.DB))

	if cfg.StorageDriver == "disk" && strings.HasPrefix(cfg.MediaURL, "/") {
		r.Static(strings.TrimSuffix(cfg.MediaURL, "/"), cfg.MediaRoot)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", middleware.MetricsHandler())

	authController := controllers.NewAuthController(deps.DB, cfg, deps.Blacklist)
	postController := controllers.NewPostController(deps.DB, deps.Cache, deps.Storage, cfg)
	statsController := controllers.NewStatsController(deps.DB)
	configController := controllers.NewConfigController(cfg)

	authRequired := middleware.AuthRequired(deps.DB, cfg, deps.Blacklist)
	rateLimit := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)
	canAdd := middleware.PermissionRequired(models.PermAddPost)
	canChange := middleware.PermissionRequired(models.PermChangePost)

	authGroup := r.Group("/auth")
	authGroup.Use(rateLimit)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)

	// Public endpoints
	r.GET("/categories", configController.ListCategories)
	r.GET("/notice", configController.GetNotice)
	r.GET("/stats", statsController.GetStats)

	posts := r.Group("/posts")
	posts.GET("", postController.ListPosts)
	posts.GET("/create", authRequired, canAdd, postController.CreateForm)
	posts.POST("/create", rateLimit, authRequired, canAdd, postController.CreatePost)
	posts.GET("/:id", postController.GetPost)
	posts.POST("/:id", rateLimit, authRequired, postController.CreateComment)
	posts.GET("/:id/edit", authRequired, canChange, postController.EditForm)
	posts.POST("/:id/edit", rateLimit, authRequired, canChange, postController.UpdatePost)
	posts.GET("/:id/stats", statsController.GetPostStats)

	r.GET("/image-upload", authRequired, canAdd, postController.ImageUploadForm)
	r.POST("/image-upload", rateLimit, authRequired, canAdd, postController.ImageUpload)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
