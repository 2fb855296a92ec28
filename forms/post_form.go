package forms

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	_ "golang.org/x/image/webp" // register WebP decoder
	"gorm.io/gorm"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

var allowedImageFormats = map[string]bool{"jpeg": true, "png": true, "gif": true, "webp": true}

// PostForm is the client-editable schema of a post: author, name, description,
// category and image. Timestamps and the id are never accepted from clients.
type PostForm struct {
	Author      string `form:"author" validate:"required,numeric"`
	Name        string `form:"name" validate:"required,max=64"`
	Description string `form:"description" validate:"required"`
	Category    string `form:"category" validate:"required,category"`

	instance    *models.Post
	image       *multipart.FileHeader
	imageFormat string
	authorID    uint
	data        map[string]string
	errors      Errors
}

// NewPostForm returns a form for a new post, or for editing instance when it is not nil.
func NewPostForm(instance *models.Post) *PostForm {
	f := &PostForm{instance: instance, errors: Errors{}}
	if instance != nil {
		f.data = map[string]string{
			"author":      strconv.FormatUint(uint64(instance.AuthorID), 10),
			"name":        instance.Name,
			"description": instance.Description,
			"category":    string(instance.Category),
			"image":       instance.Image,
		}
	} else {
		f.data = map[string]string{}
	}
	return f
}

// Bind reads the allow-listed fields and the optional image file from the request.
func (f *PostForm) Bind(ctx *gin.Context) error {
	if err := ctx.ShouldBindWith(f, binding.Form); err != nil {
		return err
	}
	f.data = map[string]string{
		"author":      f.Author,
		"name":        f.Name,
		"description": f.Description,
		"category":    f.Category,
	}
	fh, err := ctx.FormFile("image")
	switch {
	case err == nil:
		f.image = fh
		f.data["image"] = fh.Filename
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return err
	}
	return nil
}

// IsValid cleans every field and reports whether the post can be saved.
// The author must reference an existing user; the image must decode and fit maxImageBytes.
func (f *PostForm) IsValid(ctx context.Context, db *gorm.DB, maxImageBytes int64) (bool, error) {
	f.errors = Errors{}
	f.Name = utils.SanitizePlain(f.Name)
	f.Description = utils.SanitizePlain(f.Description)
	check(f, f.errors)

	if !f.errors.Has("author") {
		id, err := strconv.ParseUint(f.Author, 10, 64)
		if err != nil || id == 0 {
			f.errors.Add("author", msgInvalidChoice)
		} else {
			var count int64
			if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return false, fmt.Errorf("look up author: %w", err)
			}
			if count == 0 {
				f.errors.Add("author", msgInvalidChoice)
			} else {
				f.authorID = uint(id)
			}
		}
	}

	f.checkImage(maxImageBytes)
	return len(f.errors) == 0, nil
}

func (f *PostForm) checkImage(maxBytes int64) {
	if f.image == nil {
		if f.instance == nil || f.instance.Image == "" {
			f.errors.Add("image", msgRequired)
		}
		return
	}
	if f.image.Size == 0 {
		f.errors.Add("image", "The submitted file is empty.")
		return
	}
	if maxBytes > 0 && f.image.Size > maxBytes {
		f.errors.Add("image", fmt.Sprintf("File too large (max %dMB).", maxBytes/(1024*1024)))
		return
	}
	file, err := f.image.Open()
	if err != nil {
		f.errors.Add("image", msgInvalidImage)
		return
	}
	defer file.Close()
	_, format, err := image.DecodeConfig(file)
	if err != nil || !allowedImageFormats[format] {
		f.errors.Add("image", msgInvalidImage)
		return
	}
	f.imageFormat = format
}

// Errors returns the errors collected by IsValid.
func (f *PostForm) Errors() Errors {
	return f.errors
}

// HasImage reports whether a new image was submitted and validated.
func (f *PostForm) HasImage() bool {
	return f.image != nil && f.imageFormat != ""
}

// OpenImage opens the submitted image for storing.
func (f *PostForm) OpenImage() (multipart.File, error) {
	if f.image == nil {
		return nil, errors.New("no image submitted")
	}
	return f.image.Open()
}

// ImageFilename is the client-side name of the submitted image.
func (f *PostForm) ImageFilename() string {
	if f.image == nil {
		return ""
	}
	return f.image.Filename
}

// ImageContentType is derived from the decoded format, not from client headers.
func (f *PostForm) ImageContentType() string {
	if f.imageFormat == "" {
		return ""
	}
	return "image/" + f.imageFormat
}

// Apply copies the cleaned values onto post. Call after IsValid.
func (f *PostForm) Apply(post *models.Post) {
	post.AuthorID = f.authorID
	post.Author = models.User{}
	post.Name = f.Name
	post.Description = f.Description
	post.Category = models.Category(f.Category)
}

// Render returns the form schema with current values and errors.
func (f *PostForm) Render() Rendered {
	imageRequired := f.instance == nil || f.instance.Image == ""
	return Rendered{
		Fields: []Field{
			{Name: "author", Type: "select", Required: true},
			{Name: "name", Type: "text", Required: true, MaxLength: 64},
			{Name: "description", Type: "textarea", Required: true},
			{Name: "category", Type: "select", Required: true, Choices: models.Categories, Initial: models.DefaultCategory},
			{Name: "image", Type: "file", Required: imageRequired},
		},
		Data:   f.data,
		Errors: f.errors,
	}
}
