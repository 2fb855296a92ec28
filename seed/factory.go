// Package seed creates demo users, posts and comments for development
// databases and for tests.
package seed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/storage"
	"github.com/cppla/guildboard/utils"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options controls how much data Run creates.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// Seed makes generated content reproducible; zero picks a random seed.
	Seed int64
}

// Result summarizes what Run created.
type Result struct {
	Users    []models.User
	Posts    []models.Post
	Comments int
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db    *gorm.DB
	store storage.Storage
	fake  *gofakeit.Faker
}

// NewFactory creates a Factory writing rows to db and images to store.
func NewFactory(db *gorm.DB, store storage.Storage, seed int64) *Factory {
	return &Factory{db: db, store: store, fake: gofakeit.New(seed)}
}

// CreateUser constructs and persists a sample user with DefaultPassword.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := utils.HashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     fmt.Sprintf("%s%d", f.fake.Username(), f.fake.Number(100, 999)),
		Email:        f.fake.Email(),
		PasswordHash: hash,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CreatePost constructs and persists a post by author with a generated PNG image.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	choice := models.Categories[f.fake.Number(0, len(models.Categories)-1)]
	post := &models.Post{
		AuthorID:    author.ID,
		Name:        truncate(f.fake.Sentence(4), 64),
		Description: f.fake.Paragraph(1, 3, 8, "\n"),
		Category:    choice.Value,
	}

	name := storage.NewImageName("seed.png")
	img := f.fake.ImagePng(64, 64)
	if err := f.store.Save(ctx, name, bytes.NewReader(img), "image/png"); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	post.Image = name

	for _, override := range overrides {
		override(post)
	}
	if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		_ = f.store.Delete(ctx, name)
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// CreateComment persists a pending comment on post by author.
func (f *Factory) CreateComment(ctx context.Context, post *models.Post, author *models.User, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Text:     f.fake.Sentence(12),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// Run fills the database according to opts. The first user is granted
// both post permissions so the demo board can be edited.
func Run(ctx context.Context, db *gorm.DB, store storage.Storage, opts Options) (Result, error) {
	if opts.Seed == 0 {
		opts.Seed = gofakeit.Int64()
	}
	f := NewFactory(db, store, opts.Seed)

	var res Result
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return res, err
		}
		res.Users = append(res.Users, *u)
	}
	if len(res.Users) == 0 {
		return res, nil
	}
	if err := models.Grant(db.WithContext(ctx), &res.Users[0], models.PermAddPost, models.PermChangePost); err != nil {
		return res, err
	}

	for i := range res.Users {
		for j := 0; j < opts.PostsPerUser; j++ {
			p, err := f.CreatePost(ctx, &res.Users[i])
			if err != nil {
				return res, err
			}
			res.Posts = append(res.Posts, *p)
		}
	}
	for i := range res.Posts {
		for j := 0; j < opts.CommentsPerPost; j++ {
			author := &res.Users[f.fake.Number(0, len(res.Users)-1)]
			if _, err := f.CreateComment(ctx, &res.Posts[i], author); err != nil {
				return res, err
			}
			res.Comments++
		}
	}
	utils.Sugar.Infof("seeded users=%d posts=%d comments=%d", len(res.Users), len(res.Posts), res.Comments)
	return res, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
