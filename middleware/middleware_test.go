package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/middleware"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/testutils"
	"github.com/cppla/guildboard/utils"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	os.Exit(m.Run())
}

func serve(r *gin.Engine, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func authRouter(db *gorm.DB, cfg config.AppConfig, blacklist *utils.TokenBlacklist) *gin.Engine {
	r := gin.New()
	r.GET("/me", middleware.AuthRequired(db, cfg, blacklist), func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": user.Username, "superuser": user.IsSuperuser, "perms": len(user.Permissions)})
	})
	r.GET("/add", middleware.AuthRequired(db, cfg, blacklist), middleware.PermissionRequired(models.PermAddPost), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/anonymous", middleware.PermissionRequired(models.PermAddPost), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	db := testutils.SetupTestDB(t)
	cfg := testutils.TestConfig(t.TempDir())
	blacklist := utils.NewTokenBlacklist(nil)
	r := authRouter(db, cfg, blacklist)

	user := testutils.CreateUser(t, db, "ragnar", models.PermAddPost)
	token := testutils.Token(t, user)

	rec := serve(r, http.MethodGet, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"username":"ragnar","superuser":false,"perms":1}`, rec.Body.String())

	ghost, err := utils.GenerateToken(testutils.TestSecret, 999, "ghost", time.Hour)
	require.NoError(t, err)
	forged, err := utils.GenerateToken("other-secret", user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	revoked := testutils.Token(t, user)
	blacklist.Revoke(t.Context(), revoked, time.Now().Add(time.Hour))

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", `"code":40101`},
		{"wrong scheme", "Basic abc", `"code":40102`},
		{"no scheme", token, `"code":40102`},
		{"empty token", "Bearer   ", `"code":40103`},
		{"revoked", "Bearer " + revoked, `"code":40104`},
		{"forged", "Bearer " + forged, `"code":40105`},
		{"deleted user", "Bearer " + ghost, `"code":40106`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(r, http.MethodGet, "/me", tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
		})
	}

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/me", "bearer "+token).Code, "scheme is case-insensitive")
}

func TestAuthRequired_Admin(t *testing.T) {
	db := testutils.SetupTestDB(t)
	cfg := testutils.TestConfig(t.TempDir())
	cfg.AdminUsernames = []string{"Lagertha"}
	r := authRouter(db, cfg, nil)

	admin := testutils.CreateUser(t, db, "lagertha")
	rec := serve(r, http.MethodGet, "/me", "Bearer "+testutils.Token(t, admin))
	assert.JSONEq(t, `{"username":"lagertha","superuser":true,"perms":0}`, rec.Body.String())
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/add", "Bearer "+testutils.Token(t, admin)).Code)
}

func TestPermissionRequired(t *testing.T) {
	db := testutils.SetupTestDB(t)
	r := authRouter(db, testutils.TestConfig(t.TempDir()), nil)

	writer := testutils.CreateUser(t, db, "ragnar", models.PermAddPost)
	reader := testutils.CreateUser(t, db, "floki")

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/add", "Bearer "+testutils.Token(t, writer)).Code)

	rec := serve(r, http.MethodGet, "/add", "Bearer "+testutils.Token(t, reader))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "posts.add_post")

	rec = serve(r, http.MethodGet, "/anonymous", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":40110`)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/limited", middleware.RateLimitMiddleware(4), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/open", middleware.RateLimitMiddleware(0), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// burst is half the per-minute budget
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/limited", "").Code)
	}
	rec := serve(r, http.MethodGet, "/limited", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":42901`)

	other := httptest.NewRequest(http.MethodGet, "/limited", nil)
	other.RemoteAddr = "10.0.0.9:5555"
	otherRec := httptest.NewRecorder()
	r.ServeHTTP(otherRec, other)
	assert.Equal(t, http.StatusNoContent, otherRec.Code, "limits are per client")

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/open", "").Code)
	}
}

func TestMetrics(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Metrics())
	r.GET("/posts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", middleware.MetricsHandler())

	before := testutil.ToFloat64(middleware.HTTPRequests.WithLabelValues(http.MethodGet, "/posts/:id", "200"))
	serve(r, http.MethodGet, "/posts/1", "")
	serve(r, http.MethodGet, "/posts/2", "")
	after := testutil.ToFloat64(middleware.HTTPRequests.WithLabelValues(http.MethodGet, "/posts/:id", "200"))
	assert.Equal(t, before+2, after)

	unmatched := testutil.ToFloat64(middleware.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404"))
	serve(r, http.MethodGet, "/nowhere", "")
	assert.Equal(t, unmatched+1, testutil.ToFloat64(middleware.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))

	rec := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "guildboard_http_requests_total")
}

func TestPageViewRecorder(t *testing.T) {
	db := testutils.SetupTestDB(t)
	r := gin.New()
	r.Use(middleware.PageViewRecorder(db))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/posts", ok)
	r.GET("/posts/:id", func(c *gin.Context) {
		if c.Param("id") == "404" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/posts/:id/stats", ok)
	r.GET("/posts/:id/edit", ok)
	r.POST("/posts/:id", ok)
	r.GET("/health", ok)

	for _, path := range []string{"/posts", "/posts", "/posts/1", "/posts/1/stats", "/posts/1/edit", "/posts/404", "/health"} {
		serve(r, http.MethodGet, path, "")
	}
	serve(r, http.MethodPost, "/posts/1", "")

	var views []models.PageView
	require.NoError(t, db.Order("path").Find(&views).Error)
	require.Len(t, views, 2)
	assert.Equal(t, "/posts", views[0].Path)
	assert.EqualValues(t, 2, views[0].Count)
	assert.Equal(t, "/posts/1", views[1].Path)
	assert.EqualValues(t, 1, views[1].Count)
}
