package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/seed"
	"github.com/cppla/guildboard/storage"
	"github.com/cppla/guildboard/testutils"
	"github.com/cppla/guildboard/utils"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	os.Exit(m.Run())
}

func TestRun(t *testing.T) {
	db := testutils.SetupTestDB(t)
	media := t.TempDir()
	store := storage.NewDiskStorage(media, "/media/")

	res, err := seed.Run(context.Background(), db, store, seed.Options{Users: 3, PostsPerUser: 2, CommentsPerPost: 2, Seed: 42})
	require.NoError(t, err)
	assert.Len(t, res.Users, 3)
	assert.Len(t, res.Posts, 6)
	assert.Equal(t, 12, res.Comments)

	var posts, comments int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	assert.EqualValues(t, 6, posts)
	assert.EqualValues(t, 12, comments)

	for _, p := range res.Posts {
		assert.True(t, p.Category.Valid())
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Name), 64)
		assert.FileExists(t, filepath.Join(media, filepath.FromSlash(p.Image)))
	}

	var editor models.User
	require.NoError(t, db.Preload("Permissions").First(&editor, res.Users[0].ID).Error)
	assert.True(t, editor.HasPerm(models.PermAddPost))
	assert.True(t, editor.HasPerm(models.PermChangePost))
	assert.True(t, utils.CheckPassword(editor.PasswordHash, seed.DefaultPassword))

	var other models.User
	require.NoError(t, db.Preload("Permissions").First(&other, res.Users[1].ID).Error)
	assert.False(t, other.HasPerm(models.PermAddPost))
}

func TestRun_NoUsers(t *testing.T) {
	db := testutils.SetupTestDB(t)
	res, err := seed.Run(context.Background(), db, storage.NewDiskStorage(t.TempDir(), "/media/"), seed.Options{PostsPerUser: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Posts)
}

func TestFactoryOverrides(t *testing.T) {
	db := testutils.SetupTestDB(t)
	f := seed.NewFactory(db, storage.NewDiskStorage(t.TempDir(), "/media/"), 7)
	ctx := context.Background()

	u, err := f.CreateUser(ctx, func(u *models.User) { u.Username = "ragnar" })
	require.NoError(t, err)
	assert.Equal(t, "ragnar", u.Username)

	p, err := f.CreatePost(ctx, u, func(p *models.Post) { p.Category = models.CategorySmith })
	require.NoError(t, err)
	assert.Equal(t, models.CategorySmith, p.Category)
	assert.Equal(t, u.ID, p.AuthorID)

	c, err := f.CreateComment(ctx, p, u)
	require.NoError(t, err)
	assert.False(t, c.Status)
	assert.NotEmpty(t, c.Text)
}
