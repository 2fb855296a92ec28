package controllers_test

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/controllers"
	"github.com/cppla/guildboard/filters"
	"github.com/cppla/guildboard/forms"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/storage"
	"github.com/cppla/guildboard/testutils"
)

type listData struct {
	Posts     []controllers.PostView `json:"posts"`
	PageObj   controllers.PageObj    `json:"page_obj"`
	Filterset filters.State          `json:"filterset"`
}

type detailData struct {
	Post     controllers.PostView `json:"post"`
	Comments []models.Comment     `json:"comments"`
	Form     forms.Rendered       `json:"form"`
}

type formData struct {
	Form   forms.Rendered        `json:"form"`
	ImgObj *controllers.PostView `json:"img_obj"`
}

func postFields(author models.User, name string) map[string]string {
	return map[string]string{
		"author":      strconv.FormatUint(uint64(author.ID), 10),
		"name":        name,
		"description": "Need a healer for the raid on Thursday",
		"category":    string(models.CategoryHeal),
	}
}

func imageFiles(t *testing.T, mediaRoot string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(mediaRoot, storage.ImagesPrefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestListPosts_PagesOfTwoCoverEveryPost(t *testing.T) {
	h := newHarness(t, false)
	author := testutils.CreateUser(t, h.db, "ragnar")
	want := map[uint]bool{}
	for i := 0; i < 5; i++ {
		p := h.insertPost(author, fmt.Sprintf("post-%d", i), models.CategoryTank)
		want[p.ID] = true
	}

	seen := map[uint]bool{}
	var lastID uint
	for page := 1; page <= 3; page++ {
		rec := h.get("/posts?page="+strconv.Itoa(page), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var data listData
		decode(t, rec, &data)
		assert.LessOrEqual(t, len(data.Posts), controllers.PaginateBy)
		assert.Equal(t, page, data.PageObj.Number)
		assert.Equal(t, 3, data.PageObj.NumPages)
		assert.EqualValues(t, 5, data.PageObj.Count)
		assert.Equal(t, page < 3, data.PageObj.HasNext)
		assert.Equal(t, page > 1, data.PageObj.HasPrevious)
		for _, p := range data.Posts {
			assert.Greater(t, p.ID, lastID, "posts must be in insertion order")
			lastID = p.ID
			assert.False(t, seen[p.ID], "post %d listed twice", p.ID)
			seen[p.ID] = true
			assert.Equal(t, "ragnar", p.Author.Username)
		}
	}
	assert.Equal(t, want, seen)
}

func TestListPosts_PageParameter(t *testing.T) {
	h := newHarness(t, false)
	author := testutils.CreateUser(t, h.db, "ragnar")
	for i := 0; i < 3; i++ {
		h.insertPost(author, fmt.Sprintf("post-%d", i), models.CategoryTank)
	}

	var data listData
	rec := h.get("/posts?page=last", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &data)
	assert.Equal(t, 2, data.PageObj.Number)
	assert.Len(t, data.Posts, 1)

	rec = h.get("/posts?page=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &data)
	assert.Equal(t, 1, data.PageObj.Number)

	for _, page := range []string{"3", "0", "-1"} {
		rec = h.get("/posts?page="+page, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "page=%s", page)
	}
}

func TestListPosts_EmptyBoardHasOnePage(t *testing.T) {
	h := newHarness(t, false)

	rec := h.get("/posts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data listData
	decode(t, rec, &data)
	assert.Empty(t, data.Posts)
	assert.Equal(t, 1, data.PageObj.NumPages)
	assert.Equal(t, http.StatusNotFound, h.get("/posts?page=2", "").Code)
}

func TestListPosts_FilterByCategory(t *testing.T) {
	h := newHarness(t, false)
	author := testutils.CreateUser(t, h.db, "ragnar")
	h.insertPost(author, "tank-1", models.CategoryTank)
	h.insertPost(author, "healer", models.CategoryHeal)
	h.insertPost(author, "tank-2", models.CategoryTank)

	rec := h.get("/posts?category=tank", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data listData
	decode(t, rec, &data)
	require.Len(t, data.Posts, 2)
	for _, p := range data.Posts {
		assert.Equal(t, models.CategoryTank, p.Category)
	}
	assert.EqualValues(t, 2, data.PageObj.Count)
	assert.Equal(t, "tank", data.Filterset.Data["category"])

	// unknown values are ignored rather than rejected
	rec = h.get("/posts?category=bard&color=red", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var unfiltered listData
	decode(t, rec, &unfiltered)
	assert.EqualValues(t, 3, unfiltered.PageObj.Count)
	assert.Empty(t, unfiltered.Filterset.Applied)
	assert.Equal(t, "bard", unfiltered.Filterset.Data["category"])
	assert.NotContains(t, unfiltered.Filterset.Data, "color")
}

func TestListPosts_FilterByNameAuthorAndDate(t *testing.T) {
	h := newHarness(t, false)
	ragnar := testutils.CreateUser(t, h.db, "ragnar")
	lagertha := testutils.CreateUser(t, h.db, "lagertha")
	h.insertPost(ragnar, "Selling Iron Swords", models.CategorySmith)
	h.insertPost(lagertha, "Buying swords", models.CategoryBuyers)
	h.insertPost(lagertha, "Potion of haste", models.CategoryPotion)

	var data listData
	decode(t, h.get("/posts?name=SWORD", ""), &data)
	assert.EqualValues(t, 2, data.PageObj.Count)

	decode(t, h.get("/posts?author="+strconv.Itoa(int(lagertha.ID)), ""), &data)
	assert.EqualValues(t, 2, data.PageObj.Count)

	decode(t, h.get("/posts?name=sword&author="+strconv.Itoa(int(lagertha.ID)), ""), &data)
	require.EqualValues(t, 1, data.PageObj.Count)
	assert.Equal(t, "Buying swords", data.Posts[0].Name)

	decode(t, h.get("/posts?created_after=2000-01-01", ""), &data)
	assert.EqualValues(t, 3, data.PageObj.Count)
	decode(t, h.get("/posts?created_after=2999-01-01", ""), &data)
	assert.EqualValues(t, 0, data.PageObj.Count)
	decode(t, h.get("/posts?created_after=yesterday", ""), &data)
	assert.EqualValues(t, 3, data.PageObj.Count)
}

func TestGetPost(t *testing.T) {
	h := newHarness(t, false)
	author := testutils.CreateUser(t, h.db, "ragnar")
	post := h.insertPost(author, "tank", models.CategoryTank)
	require.NoError(t, h.db.Create(&models.Comment{PostID: post.ID, AuthorID: author.ID, Text: "approved", Status: true}).Error)
	require.NoError(t, h.db.Create(&models.Comment{PostID: post.ID, AuthorID: author.ID, Text: "pending"}).Error)

	rec := h.get(post.URL(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data detailData
	decode(t, rec, &data)
	assert.Equal(t, post.ID, data.Post.ID)
	assert.Equal(t, "/media/images/tank.png", data.Post.ImageURL)
	require.Len(t, data.Comments, 2)
	assert.True(t, data.Comments[0].Status)
	assert.False(t, data.Comments[1].Status)
	assert.Equal(t, "text", data.Form.Fields[0].Name)

	assert.Equal(t, http.StatusNotFound, h.get("/posts/999", "").Code)
	assert.Equal(t, http.StatusNotFound, h.get("/posts/abc", "").Code)
}

func TestCreateComment_AuthorAndStatusAreServerSide(t *testing.T) {
	h := newHarness(t, false)
	ragnar := testutils.CreateUser(t, h.db, "ragnar")
	bjorn := testutils.CreateUser(t, h.db, "bjorn")
	post := h.insertPost(ragnar, "tank", models.CategoryTank)
	other := h.insertPost(ragnar, "other", models.CategoryHeal)

	rec := h.postForm(post.URL(), testutils.Token(t, bjorn), url.Values{
		"text":   {"I can tank for you"},
		"author": {strconv.Itoa(int(ragnar.ID))},
		"status": {"true"},
		"post":   {strconv.Itoa(int(other.ID))},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, post.URL(), rec.Header().Get("Location"))

	var comments []models.Comment
	require.NoError(t, h.db.Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.Equal(t, post.ID, comments[0].PostID)
	assert.Equal(t, bjorn.ID, comments[0].AuthorID)
	assert.False(t, comments[0].Status)
	assert.Equal(t, "I can tank for you", comments[0].Text)
}

func TestCreateComment_EmptyTextIsRejected(t *testing.T) {
	h := newHarness(t, false)
	ragnar := testutils.CreateUser(t, h.db, "ragnar")
	post := h.insertPost(ragnar, "tank", models.CategoryTank)

	for _, text := range []string{"", "   ", "<script></script>"} {
		rec := h.postForm(post.URL(), testutils.Token(t, ragnar), url.Values{"text": {text}})
		require.Equal(t, http.StatusBadRequest, rec.Code, "text=%q", text)

		var data detailData
		decode(t, rec, &data)
		assert.True(t, data.Form.Errors.Has("text"))
		assert.Equal(t, post.ID, data.Post.ID)
	}
	assert.Zero(t, h.count(&models.Comment{}))
}

func TestCreateComment_RequiresAuthentication(t *testing.T) {
	h := newHarness(t, false)
	ragnar := testutils.CreateUser(t, h.db, "ragnar")
	post := h.insertPost(ragnar, "tank", models.CategoryTank)

	rec := h.postForm(post.URL(), "", url.Values{"text": {"hello"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.postForm("/posts/999", testutils.Token(t, ragnar), url.Values{"text": {"hello"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, h.count(&models.Comment{}))
}

func TestCreatePost_WithoutPermissionIsForbidden(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "peasant")
	token := testutils.Token(t, user)

	rec := h.postMultipart("/posts/create", token, postFields(user, "free loot"), testutils.PNG(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.get("/posts/create", token).Code)
	assert.Equal(t, http.StatusUnauthorized, h.get("/posts/create", "").Code)
	assert.Zero(t, h.count(&models.Post{}))
	assert.Empty(t, imageFiles(t, h.cfg.MediaRoot))
}

func TestCreatePost(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost)
	token := testutils.Token(t, user)

	rec := h.get("/posts/create", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty formData
	decode(t, rec, &empty)
	require.Len(t, empty.Form.Fields, 5)
	assert.Equal(t, "tank", fmt.Sprint(empty.Form.Fields[3].Initial))

	rec = h.postMultipart("/posts/create", token, postFields(user, "Healer wanted"), testutils.PNG(t))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	var post models.Post
	require.NoError(t, h.db.First(&post).Error)
	assert.Equal(t, post.URL(), rec.Header().Get("Location"))
	assert.Equal(t, user.ID, post.AuthorID)
	assert.Equal(t, "Healer wanted", post.Name)
	assert.Equal(t, models.CategoryHeal, post.Category)
	assert.Regexp(t, `^images/[0-9a-f-]{36}\.png$`, post.Image)
	assert.FileExists(t, filepath.Join(h.cfg.MediaRoot, filepath.FromSlash(post.Image)))
}

func TestCreatePost_StoresTextAsTyped(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost)
	token := testutils.Token(t, user)

	fields := postFields(user, "Tom & Jerry's shop")
	fields["description"] = `Prices < 5 gold & "cheap"<script>alert(1)</script>`
	rec := h.postMultipart("/posts/create", token, fields, testutils.PNG(t))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	long := postFields(user, strings.Repeat("a", 56)+"&&&&")
	rec = h.postMultipart("/posts/create", token, long, testutils.PNG(t))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	var post models.Post
	require.NoError(t, h.db.Order("id").First(&post).Error)
	assert.Equal(t, "Tom & Jerry's shop", post.Name)
	assert.Equal(t, `Prices < 5 gold & "cheap"`, post.Description)

	var data listData
	decode(t, h.get("/posts?name="+url.QueryEscape("Jerry's"), ""), &data)
	require.EqualValues(t, 1, data.PageObj.Count)
	assert.Equal(t, post.ID, data.Posts[0].ID)

	require.Equal(t, http.StatusSeeOther, h.postForm(post.URL(), token, url.Values{"text": {`Me & my "guild" <3`}}).Code)
	var comment models.Comment
	require.NoError(t, h.db.Where("post_id = ?", post.ID).First(&comment).Error)
	assert.Equal(t, `Me & my "guild" <3`, comment.Text)
}

func TestListPosts_NameFilterIsLiteral(t *testing.T) {
	h := newHarness(t, false)
	author := testutils.CreateUser(t, h.db, "ragnar")
	h.insertPost(author, "Selling swords", models.CategorySmith)
	h.insertPost(author, "Ищу Танка", models.CategoryTank)

	var data listData
	decode(t, h.get("/posts?name=%25", ""), &data)
	assert.EqualValues(t, 0, data.PageObj.Count)
	decode(t, h.get("/posts?name=_", ""), &data)
	assert.EqualValues(t, 0, data.PageObj.Count)
	decode(t, h.get("/posts?name="+url.QueryEscape("танка"), ""), &data)
	require.EqualValues(t, 1, data.PageObj.Count)
	assert.Equal(t, "Ищу Танка", data.Posts[0].Name)
}

func TestCreatePost_ValidationErrors(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost)
	token := testutils.Token(t, user)

	cases := []struct {
		name   string
		fields map[string]string
		image  []byte
		field  string
	}{
		{"missing name", map[string]string{"author": "1", "description": "d", "category": "tank"}, testutils.PNG(t), "name"},
		{"long name", postFields(user, strings.Repeat("я", 65)), testutils.PNG(t), "name"},
		{"unknown category", map[string]string{"author": "1", "name": "n", "description": "d", "category": "bard"}, testutils.PNG(t), "category"},
		{"unknown author", map[string]string{"author": "999", "name": "n", "description": "d", "category": "tank"}, testutils.PNG(t), "author"},
		{"missing image", postFields(user, "no picture"), nil, "image"},
		{"not an image", postFields(user, "text file"), []byte("definitely not a picture"), "image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.postMultipart("/posts/create", token, tc.fields, tc.image)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var data formData
			decode(t, rec, &data)
			assert.True(t, data.Form.Errors.Has(tc.field), "errors: %v", data.Form.Errors)
			assert.NotNil(t, data.Form.Data)
		})
	}
	assert.Zero(t, h.count(&models.Post{}))
	assert.Empty(t, imageFiles(t, h.cfg.MediaRoot))
}

func TestCreatePost_ImageTooLarge(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost)

	big := append(testutils.PNG(t), make([]byte, 2<<20)...)
	rec := h.postMultipart("/posts/create", testutils.Token(t, user), postFields(user, "huge"), big)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var data formData
	decode(t, rec, &data)
	assert.True(t, data.Form.Errors.Has("image"))
	assert.Zero(t, h.count(&models.Post{}))
}

func TestImageUpload(t *testing.T) {
	h := newHarness(t, false)
	writer := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost)
	reader := testutils.CreateUser(t, h.db, "floki")

	rec := h.postMultipart("/image-upload", testutils.Token(t, reader), postFields(reader, "sneaky"), testutils.PNG(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.get("/image-upload", testutils.Token(t, reader)).Code)
	assert.Zero(t, h.count(&models.Post{}))

	token := testutils.Token(t, writer)
	require.Equal(t, http.StatusOK, h.get("/image-upload", token).Code)

	rec = h.postMultipart("/image-upload", token, postFields(writer, "Shield for sale"), testutils.PNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data formData
	decode(t, rec, &data)
	require.NotNil(t, data.ImgObj)
	assert.Equal(t, "Shield for sale", data.ImgObj.Name)
	assert.Equal(t, "ragnar", data.ImgObj.Author.Username)
	assert.Equal(t, "/media/"+data.ImgObj.Image, data.ImgObj.ImageURL)
	assert.EqualValues(t, 1, h.count(&models.Post{}))

	rec = h.postMultipart("/image-upload", token, postFields(writer, "broken"), []byte("GIF89a but not really"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 1, h.count(&models.Post{}))
}

func TestUpdatePost_RefreshesUpdatedOnly(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost, models.PermChangePost)
	token := testutils.Token(t, user)

	rec := h.postMultipart("/posts/create", token, postFields(user, "first"), testutils.PNG(t))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	var before models.Post
	require.NoError(t, h.db.First(&before).Error)

	rec = h.get(before.URL()+"/edit", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var edit formData
	decode(t, rec, &edit)
	assert.Equal(t, "first", edit.Form.Data["name"])
	assert.False(t, edit.Form.Fields[4].Required, "image is optional when editing")

	fields := postFields(user, "second")
	fields["category"] = string(models.CategorySpellmaster)
	rec = h.postMultipart(before.URL()+"/edit", token, fields, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, before.URL(), rec.Header().Get("Location"))

	var after models.Post
	require.NoError(t, h.db.First(&after, before.ID).Error)
	assert.Equal(t, "second", after.Name)
	assert.Equal(t, models.CategorySpellmaster, after.Category)
	assert.Equal(t, before.Image, after.Image)
	assert.True(t, after.Created.Equal(before.Created), "created must not change")
	assert.True(t, after.Updated.After(after.Created), "updated %v must be after created %v", after.Updated, after.Created)
}

func TestUpdatePost_ReplacesImage(t *testing.T) {
	h := newHarness(t, false)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost, models.PermChangePost)
	token := testutils.Token(t, user)

	require.Equal(t, http.StatusSeeOther, h.postMultipart("/posts/create", token, postFields(user, "first"), testutils.PNG(t)).Code)
	var before models.Post
	require.NoError(t, h.db.First(&before).Error)

	rec := h.postMultipart(before.URL()+"/edit", token, postFields(user, "first"), testutils.PNG(t))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var after models.Post
	require.NoError(t, h.db.First(&after, before.ID).Error)
	assert.NotEqual(t, before.Image, after.Image)
	assert.NoFileExists(t, filepath.Join(h.cfg.MediaRoot, filepath.FromSlash(before.Image)))
	assert.FileExists(t, filepath.Join(h.cfg.MediaRoot, filepath.FromSlash(after.Image)))
}

func TestUpdatePost_Permissions(t *testing.T) {
	h := newHarness(t, false)
	owner := testutils.CreateUser(t, h.db, "ragnar")
	adder := testutils.CreateUser(t, h.db, "floki", models.PermAddPost)
	post := h.insertPost(owner, "tank", models.CategoryTank)

	token := testutils.Token(t, adder)
	assert.Equal(t, http.StatusForbidden, h.get(post.URL()+"/edit", token).Code)
	rec := h.postMultipart(post.URL()+"/edit", token, postFields(owner, "hijacked"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var stored models.Post
	require.NoError(t, h.db.First(&stored, post.ID).Error)
	assert.Equal(t, "tank", stored.Name)

	editor := testutils.CreateUser(t, h.db, "bjorn", models.PermChangePost)
	assert.Equal(t, http.StatusNotFound, h.get("/posts/999/edit", testutils.Token(t, editor)).Code)
}

func TestUpdatePost_AdminsHoldEveryPermission(t *testing.T) {
	h := newHarness(t, false, func(cfg *config.AppConfig) {
		cfg.AdminUsernames = []string{"Jarl"}
	})
	jarl := testutils.CreateUser(t, h.db, "jarl")
	thrall := testutils.CreateUser(t, h.db, "thrall")
	post := h.insertPost(thrall, "tank", models.CategoryTank)

	assert.Equal(t, http.StatusOK, h.get(post.URL()+"/edit", testutils.Token(t, jarl)).Code)
	assert.Equal(t, http.StatusForbidden, h.get(post.URL()+"/edit", testutils.Token(t, thrall)).Code)

	require.NoError(t, h.db.Model(&thrall).Update("is_superuser", true).Error)
	assert.Equal(t, http.StatusOK, h.get(post.URL()+"/edit", testutils.Token(t, thrall)).Code)
}

func TestUpdatePost_LastWriteWins(t *testing.T) {
	h := newHarness(t, false)
	editor := testutils.CreateUser(t, h.db, "ragnar", models.PermChangePost)
	post := h.insertPost(editor, "original", models.CategoryTank)
	token := testutils.Token(t, editor)
	edit := post.URL() + "/edit"

	require.Equal(t, http.StatusSeeOther, h.postMultipart(edit, token, postFields(editor, "first"), nil).Code)
	require.Equal(t, http.StatusSeeOther, h.postMultipart(edit, token, postFields(editor, "second"), nil).Code)
	var stored models.Post
	require.NoError(t, h.db.First(&stored, post.ID).Error)
	assert.Equal(t, "second", stored.Name)

	names := []string{"alpha", "beta", "gamma", "delta"}
	codes := make([]int, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		body, contentType := testutils.Multipart(t, postFields(editor, name), "", nil)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = h.do(http.MethodPost, edit, token, body, contentType).Code
		}(i)
	}
	wg.Wait()
	for _, code := range codes {
		assert.Equal(t, http.StatusSeeOther, code)
	}
	require.NoError(t, h.db.First(&stored, post.ID).Error)
	assert.Contains(t, names, stored.Name)
	assert.EqualValues(t, 1, h.count(&models.Post{}))
}

func TestDeletingUserCascades(t *testing.T) {
	h := newHarness(t, false)
	ragnar := testutils.CreateUser(t, h.db, "ragnar")
	bjorn := testutils.CreateUser(t, h.db, "bjorn")
	post := h.insertPost(ragnar, "tank", models.CategoryTank)
	other := h.insertPost(bjorn, "heal", models.CategoryHeal)
	require.NoError(t, h.db.Create(&models.Comment{PostID: post.ID, AuthorID: bjorn.ID, Text: "on ragnar's"}).Error)
	require.NoError(t, h.db.Create(&models.Comment{PostID: other.ID, AuthorID: ragnar.ID, Text: "by ragnar"}).Error)
	require.NoError(t, h.db.Create(&models.Comment{PostID: other.ID, AuthorID: bjorn.ID, Text: "stays"}).Error)

	require.NoError(t, h.db.Delete(&models.User{}, ragnar.ID).Error)

	var posts []models.Post
	require.NoError(t, h.db.Find(&posts).Error)
	require.Len(t, posts, 1)
	assert.Equal(t, other.ID, posts[0].ID)

	var comments []models.Comment
	require.NoError(t, h.db.Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.Equal(t, "stays", comments[0].Text)
}

func TestResponseCache(t *testing.T) {
	h := newHarness(t, true)
	user := testutils.CreateUser(t, h.db, "ragnar", models.PermAddPost)
	token := testutils.Token(t, user)
	post := h.insertPost(user, "tank", models.CategoryTank)

	require.Equal(t, http.StatusOK, h.get("/posts", "").Code)
	assert.True(t, h.mr.Exists("cache:posts:list:page=1"))
	require.Equal(t, http.StatusOK, h.get("/posts?category=tank", "").Code)
	assert.Len(t, h.mr.Keys(), 1, "filtered pages are not cached")

	require.Equal(t, http.StatusOK, h.get(post.URL(), "").Code)
	detailKey := "cache:post:detail:" + strconv.Itoa(int(post.ID))
	assert.True(t, h.mr.Exists(detailKey))

	require.Equal(t, http.StatusSeeOther, h.postForm(post.URL(), token, url.Values{"text": {"hi"}}).Code)
	assert.False(t, h.mr.Exists(detailKey))
	var detail detailData
	decode(t, h.get(post.URL(), ""), &detail)
	assert.Len(t, detail.Comments, 1)

	require.Equal(t, http.StatusSeeOther, h.postMultipart("/posts/create", token, postFields(user, "new"), testutils.PNG(t)).Code)
	assert.False(t, h.mr.Exists("cache:posts:list:page=1"))
	var list listData
	decode(t, h.get("/posts", ""), &list)
	assert.EqualValues(t, 2, list.PageObj.Count)
}

func TestPostController_DatabaseFailure(t *testing.T) {
	db, mock := testutils.SetupMockDB(t)
	store := storage.NewDiskStorage(t.TempDir(), "/media/")
	pc := controllers.NewPostController(db, nil, store, testutils.TestConfig(t.TempDir()))

	r := gin.New()
	r.GET("/posts", pc.ListPosts)
	r.GET("/posts/:id", pc.GetPost)

	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("connection refused"))
	rec := testHTTP(r, "/posts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50021, decode(t, rec, nil).Code)

	mock.ExpectQuery("SELECT \\* FROM `posts`").WillReturnError(errors.New("connection refused"))
	rec = testHTTP(r, "/posts/1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50023, decode(t, rec, nil).Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}
