package controllers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/filters"
	"github.com/cppla/guildboard/forms"
	"github.com/cppla/guildboard/middleware"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/storage"
	"github.com/cppla/guildboard/utils"
)

// PaginateBy is the number of posts per listing page.
const PaginateBy = 2

const (
	listCachePrefix   = "cache:posts:list:"
	detailCachePrefix = "cache:post:detail:"
)

// PostController serves the listing, detail, create, edit and upload views.
type PostController struct {
	db      *gorm.DB
	cache   *utils.Cache
	storage storage.Storage
	cfg     config.AppConfig
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, cache *utils.Cache, store storage.Storage, cfg config.AppConfig) *PostController {
	return &PostController{db: db, cache: cache, storage: store, cfg: cfg}
}

// PostView is a post as rendered to clients, with the public image address.
type PostView struct {
	models.Post
	ImageURL string `json:"image_url"`
	URL      string `json:"url"`
}

// PageObj describes the current listing page.
type PageObj struct {
	Number      int   `json:"number"`
	NumPages    int   `json:"num_pages"`
	Count       int64 `json:"count"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
	PerPage     int   `json:"per_page"`
}

var errPageNotFound = errors.New("page not found")

// paginate resolves raw ("", "last" or a number) against count records.
// Unparseable values mean page 1; a page outside the range is an error.
func paginate(raw string, count int64, perPage int) (PageObj, error) {
	numPages := int(math.Ceil(float64(count) / float64(perPage)))
	if numPages == 0 {
		numPages = 1
	}
	number := 1
	raw = strings.TrimSpace(raw)
	if raw == "last" {
		number = numPages
	} else if n, err := strconv.Atoi(raw); err == nil {
		number = n
	}
	if number < 1 || number > numPages {
		return PageObj{}, errPageNotFound
	}
	return PageObj{
		Number:      number,
		NumPages:    numPages,
		Count:       count,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
		PerPage:     perPage,
	}, nil
}

func listCacheKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "last" {
		if _, err := strconv.Atoi(raw); err != nil {
			raw = "1"
		}
	}
	return listCachePrefix + "page=" + raw
}

func detailCacheKey(id uint) string {
	return detailCachePrefix + strconv.FormatUint(uint64(id), 10)
}

func (p *PostController) view(post models.Post) PostView {
	v := PostView{Post: post, URL: post.URL()}
	if post.Image != "" {
		v.ImageURL = p.storage.URL(post.Image)
	}
	return v
}

// serveCached writes a cached envelope and reports whether it did.
func (p *PostController) serveCached(ctx *gin.Context, key string) bool {
	b, ok := p.cache.GetBytes(ctx.Request.Context(), key)
	if !ok {
		return false
	}
	ctx.Data(http.StatusOK, "application/json", b)
	return true
}

// successCached answers with payload and stores the same envelope under key.
func (p *PostController) successCached(ctx *gin.Context, key string, payload interface{}) {
	p.cache.SetJSON(ctx.Request.Context(), key, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// ListPosts returns one page of posts matching the filter query, oldest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	filter := filters.NewPostFilter(ctx.Request.URL.Query())
	rawPage := ctx.Query("page")

	// Only unfiltered pages are cached to avoid a key per filter combination
	cacheable := filter.IsEmpty()
	cacheKey := listCacheKey(rawPage)
	if cacheable && p.serveCached(ctx, cacheKey) {
		return
	}

	reqCtx := ctx.Request.Context()
	scoped := func() *gorm.DB {
		return filter.Apply(p.db.WithContext(reqCtx).Model(&models.Post{}))
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		utils.Sugar.Errorf("count posts: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}

	page, err := paginate(rawPage, total, PaginateBy)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40402, "page not found")
		return
	}

	var posts []models.Post
	if err := scoped().Preload("Author").Order("posts.id ASC").
		Offset((page.Number - 1) * PaginateBy).Limit(PaginateBy).
		Find(&posts).Error; err != nil {
		utils.Sugar.Errorf("list posts: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	items := make([]PostView, 0, len(posts))
	for _, post := range posts {
		items = append(items, p.view(post))
	}
	payload := gin.H{
		"posts":     items,
		"page_obj":  page,
		"filterset": filter.State(),
	}
	if cacheable {
		p.successCached(ctx, cacheKey, payload)
		return
	}
	utils.Success(ctx, payload)
}

// loadPost fetches the post named by the :id path parameter with its author.
// It writes the error response and returns false when the post cannot be served.
func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		return nil, false
	}
	var post models.Post
	if err := p.db.WithContext(ctx.Request.Context()).Preload("Author").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return nil, false
		}
		utils.Sugar.Errorf("load post %d: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return nil, false
	}
	return &post, true
}

// detailContext builds the detail page payload around form.
func (p *PostController) detailContext(reqCtx context.Context, post *models.Post, form *forms.CommentForm) (gin.H, error) {
	var comments []models.Comment
	if err := p.db.WithContext(reqCtx).Preload("Author").
		Where("post_id = ?", post.ID).Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("load comments of post %d: %w", post.ID, err)
	}
	return gin.H{
		"post":     p.view(*post),
		"comments": comments,
		"form":     form.Render(),
	}, nil
}

// GetPost returns a post, its comments and an empty comment form.
func (p *PostController) GetPost(ctx *gin.Context) {
	if id, err := strconv.ParseUint(ctx.Param("id"), 10, 64); err == nil {
		if p.serveCached(ctx, detailCacheKey(uint(id))) {
			return
		}
	}

	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	payload, err := p.detailContext(ctx.Request.Context(), post, forms.NewCommentForm())
	if err != nil {
		utils.Sugar.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load comments")
		return
	}
	p.successCached(ctx, detailCacheKey(post.ID), payload)
}

// CreateComment stores a comment on the post written by the authenticated user.
// Only the text is taken from the request.
func (p *PostController) CreateComment(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	form := forms.NewCommentForm()
	if err := form.Bind(ctx); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	if !form.IsValid() {
		payload, err := p.detailContext(ctx.Request.Context(), post, form)
		if err != nil {
			utils.Sugar.Error(err)
			utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load comments")
			return
		}
		utils.Invalid(ctx, 40031, payload)
		return
	}

	comment := form.Instance(post, user)
	if err := p.db.WithContext(ctx.Request.Context()).Omit(clause.Associations).Create(&comment).Error; err != nil {
		utils.Sugar.Errorf("create comment on post %d: %v", post.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to create comment")
		return
	}
	middleware.CommentsCreated.Inc()

	p.cache.Delete(ctx.Request.Context(), detailCacheKey(post.ID))
	utils.Redirect(ctx, post.URL())
}

// CreateForm returns the empty post form.
func (p *PostController) CreateForm(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"form": forms.NewPostForm(nil).Render()})
}

// CreatePost validates a submission, stores its image and redirects to the new post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	post, _, ok := p.createFromRequest(ctx, "create")
	if !ok {
		return
	}
	utils.Redirect(ctx, post.URL())
}

// ImageUploadForm returns the empty post form for the upload page.
func (p *PostController) ImageUploadForm(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"form": forms.NewPostForm(nil).Render()})
}

// ImageUpload creates a post like CreatePost but answers with the stored post instead of redirecting.
func (p *PostController) ImageUpload(ctx *gin.Context) {
	post, form, ok := p.createFromRequest(ctx, "upload")
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"form": form.Render(), "img_obj": p.view(*post)})
}

// createFromRequest is the single creation path of posts. On failure it has
// already written the response; nothing is persisted and no file is left behind.
func (p *PostController) createFromRequest(ctx *gin.Context, source string) (*models.Post, *forms.PostForm, bool) {
	reqCtx := ctx.Request.Context()
	form := forms.NewPostForm(nil)
	if err := form.Bind(ctx); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return nil, nil, false
	}
	valid, err := form.IsValid(reqCtx, p.db, p.cfg.ImageMaxUploadBytes())
	if err != nil {
		utils.Sugar.Errorf("validate post: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to validate post")
		return nil, nil, false
	}
	if !valid {
		utils.Invalid(ctx, 40041, gin.H{"form": form.Render()})
		return nil, nil, false
	}

	name, err := p.storeImage(reqCtx, form)
	if err != nil {
		utils.Sugar.Errorf("store image: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to store image")
		return nil, nil, false
	}

	post := models.Post{Image: name}
	form.Apply(&post)
	if err := p.db.WithContext(reqCtx).Omit(clause.Associations).Create(&post).Error; err != nil {
		utils.Sugar.Errorf("create post: %v", err)
		p.deleteImage(reqCtx, name)
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create post")
		return nil, nil, false
	}
	middleware.PostsCreated.WithLabelValues(source).Inc()
	p.cache.InvalidateByPrefix(reqCtx, listCachePrefix)

	if err := p.db.WithContext(reqCtx).Preload("Author").First(&post, post.ID).Error; err != nil {
		utils.Sugar.Warnf("reload post %d: %v", post.ID, err)
	}
	return &post, form, true
}

func (p *PostController) storeImage(ctx context.Context, form *forms.PostForm) (string, error) {
	file, err := form.OpenImage()
	if err != nil {
		return "", err
	}
	defer file.Close()
	name := storage.NewImageName(form.ImageFilename())
	if err := p.storage.Save(ctx, name, file, form.ImageContentType()); err != nil {
		return "", err
	}
	return name, nil
}

// deleteImage removes an asset best-effort.
func (p *PostController) deleteImage(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := p.storage.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		utils.Sugar.Warnf("delete image %s: %v", name, err)
	}
}

// EditForm returns the post form filled with the current values.
func (p *PostController) EditForm(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"form": forms.NewPostForm(post).Render(), "post": p.view(*post)})
}

// UpdatePost saves a submission over an existing post. The image may be
// omitted to keep the current one. Concurrent edits are last write wins.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	reqCtx := ctx.Request.Context()

	form := forms.NewPostForm(post)
	if err := form.Bind(ctx); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	valid, err := form.IsValid(reqCtx, p.db, p.cfg.ImageMaxUploadBytes())
	if err != nil {
		utils.Sugar.Errorf("validate post %d: %v", post.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to validate post")
		return
	}
	if !valid {
		utils.Invalid(ctx, 40051, gin.H{"form": form.Render(), "post": p.view(*post)})
		return
	}

	var replaced string
	newImage := form.HasImage()
	if newImage {
		name, err := p.storeImage(reqCtx, form)
		if err != nil {
			utils.Sugar.Errorf("store image: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to store image")
			return
		}
		replaced, post.Image = post.Image, name
	}

	form.Apply(post)
	if err := p.db.WithContext(reqCtx).Omit(clause.Associations).Save(post).Error; err != nil {
		utils.Sugar.Errorf("update post %d: %v", post.ID, err)
		if newImage {
			p.deleteImage(reqCtx, post.Image)
		}
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to update post")
		return
	}
	if replaced != "" {
		p.deleteImage(reqCtx, replaced)
	}

	p.cache.InvalidateByPrefix(reqCtx, listCachePrefix)
	p.cache.Delete(reqCtx, detailCacheKey(post.ID))
	utils.Redirect(ctx, post.URL())
}
