// Package testutils holds fixtures shared by package tests: databases,
// Redis, configuration, identities and request bodies.
package testutils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

// TestSecret signs tokens issued in tests.
const TestSecret = "test-secret"

// InitTestMain puts gin in test mode and makes password hashing cheap.
func InitTestMain() {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = bcrypt.MinCost
}

// TestConfig returns a configuration for an in-memory sqlite database and
// disk storage below mediaRoot.
func TestConfig(mediaRoot string) config.AppConfig {
	return config.AppConfig{
		AppPort:          "0",
		JWTSecret:        TestSecret,
		AllowedOrigins:   []string{"*"},
		ImageMaxUploadMB: 1,
		GinMode:          "test",
		DBDriver:         "sqlite",
		DatabaseURI:      "file::memory:?_foreign_keys=1",
		LogLevel:         "silent",
		StorageDriver:    "disk",
		MediaRoot:        mediaRoot,
		MediaURL:         "/media/",
	}
}

// StepClock is a deterministic clock advancing by Step on every call.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewStepClock starts at start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, Step: step}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// SetupTestDB opens a migrated in-memory sqlite database whose timestamps
// come from a StepClock starting 2024-01-01 UTC and ticking once per second.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.InitDatabase(TestConfig(t.TempDir()))
	require.NoError(t, err)
	db.NowFunc = NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second).Now
	require.NoError(t, config.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SetupMockDB returns a gorm handle backed by sqlmock using the MySQL dialect.
func SetupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	silent := logger.New(log.New(io.Discard, "", log.LstdFlags), logger.Config{LogLevel: logger.Silent})
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: silent})
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db, mock
}

// SetupRedis starts a miniredis server that is stopped with the test.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

// CreateUser persists a user holding the given permission codenames.
func CreateUser(t *testing.T, db *gorm.DB, username string, perms ...string) models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := models.User{Username: username, Email: username + "@example.com", PasswordHash: hash}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, models.Grant(db, &user, perms...))
	return user
}

// Token issues a bearer token for user.
func Token(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(TestSecret, user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	return token
}

// PNG encodes a small solid image.
func PNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// Multipart encodes fields and, when file is not nil, an "image" part named filename.
func Multipart(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		h.Set("Content-Type", "application/octet-stream")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}
