package forms

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

// CommentForm accepts only the comment text. Post, author and status are set server-side.
type CommentForm struct {
	Text string `form:"text" validate:"required"`

	data   map[string]string
	errors Errors
}

// NewCommentForm returns an unbound comment form.
func NewCommentForm() *CommentForm {
	return &CommentForm{data: map[string]string{}, errors: Errors{}}
}

// Bind reads the allow-listed fields from a form submission.
func (f *CommentForm) Bind(ctx *gin.Context) error {
	if err := ctx.ShouldBindWith(f, binding.Form); err != nil {
		return err
	}
	f.data = map[string]string{"text": f.Text}
	return nil
}

// IsValid cleans the text and reports whether the submission can be saved.
func (f *CommentForm) IsValid() bool {
	f.errors = Errors{}
	f.Text = utils.SanitizePlain(f.Text)
	check(f, f.errors)
	return len(f.errors) == 0
}

// Errors returns the errors collected by IsValid.
func (f *CommentForm) Errors() Errors {
	return f.errors
}

// Instance builds the comment for post written by author. Call after IsValid.
func (f *CommentForm) Instance(post *models.Post, author *models.User) models.Comment {
	return models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Text:     f.Text,
		Status:   false,
	}
}

// Render returns the form schema with submitted values and errors.
func (f *CommentForm) Render() Rendered {
	return Rendered{
		Fields: []Field{{Name: "text", Type: "textarea", Required: true}},
		Data:   f.data,
		Errors: f.errors,
	}
}
