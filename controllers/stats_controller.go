package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

// StatsController provides board statistics such as counts and daily views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

type categoryCount struct {
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	Count    int64           `json:"count"`
}

// GetStats returns aggregate statistics for the board.
func (s *StatsController) GetStats(ctx *gin.Context) {
	db := s.db.WithContext(ctx.Request.Context())
	// A failing count degrades to 0 instead of failing the whole endpoint
	userCount := countOrZero(db.Model(&models.User{}), "users")
	postCount := countOrZero(db.Model(&models.Post{}), "posts")
	commentCount := countOrZero(db.Model(&models.Comment{}), "comments")
	pendingCount := countOrZero(db.Model(&models.Comment{}).Where("status = ?", false), "pending comments")
	dailyViews := sumViewsOrZero(db.Model(&models.PageView{}).Where("day = ?", models.ViewDay(time.Now())), "daily views")

	var rows []categoryCount
	if err := db.Model(&models.Post{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Scan(&rows).Error; err != nil {
		utils.Sugar.Warnf("stats: count by category: %v", err)
	}
	byCategory := make(map[models.Category]int64, len(rows))
	for _, r := range rows {
		byCategory[r.Category] = r.Count
	}
	categories := make([]categoryCount, 0, len(models.Categories))
	for _, c := range models.Categories {
		categories = append(categories, categoryCount{Category: c.Value, Label: c.Label, Count: byCategory[c.Value]})
	}

	utils.Success(ctx, gin.H{
		"user_count":            userCount,
		"post_count":            postCount,
		"comment_count":         commentCount,
		"pending_comment_count": pendingCount,
		"daily_view_count":      dailyViews,
		"categories":            categories,
	})
}

// GetPostStats returns the view and comment counts of one post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id := ctx.Param("id")
	db := s.db.WithContext(ctx.Request.Context())

	var exists int64
	if err := db.Model(&models.Post{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		utils.Sugar.Errorf("stats: load post %s: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load post")
		return
	}
	if exists == 0 {
		utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
		return
	}

	pv := sumViewsOrZero(db.Model(&models.PageView{}).Where("path = ?", "/posts/"+id), "post views")
	commentsCount := countOrZero(db.Model(&models.Comment{}).Where("post_id = ?", id), "post comments")
	pendingCount := countOrZero(db.Model(&models.Comment{}).Where("post_id = ? AND status = ?", id, false), "post pending comments")

	utils.Success(ctx, gin.H{
		"pv":                     pv,
		"comments_count":         commentsCount,
		"pending_comments_count": pendingCount,
	})
}

func countOrZero(q *gorm.DB, what string) int64 {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		utils.Sugar.Warnf("stats: count %s: %v", what, err)
		return 0
	}
	return n
}

func sumViewsOrZero(q *gorm.DB, what string) int64 {
	var n int64
	if err := q.Select("COALESCE(SUM(count),0)").Scan(&n).Error; err != nil {
		utils.Sugar.Warnf("stats: sum %s: %v", what, err)
		return 0
	}
	return n
}
