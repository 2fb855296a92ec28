package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

// ConfigController serves static board configuration to clients.
type ConfigController struct {
	cfg config.AppConfig
}

func NewConfigController(cfg config.AppConfig) *ConfigController {
	return &ConfigController{cfg: cfg}
}

// ListCategories returns the category choices in display order.
func (c *ConfigController) ListCategories(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"items":   models.Categories,
		"default": models.DefaultCategory,
	})
}

// GetNotice returns announcement content configured via config.
func (c *ConfigController) GetNotice(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"title": c.cfg.NoticeTitle,
		"html":  utils.Sanitize(c.cfg.NoticeHTML),
	})
}
