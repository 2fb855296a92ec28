package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is where Load looks for the JSON config file when no path is given.
const DefaultPath = "config/config.json"

// AppConfig holds file and environment driven configuration values.
// Secrets have no defaults and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	ImageMaxUploadMB   int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for caching and token revocation; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Image storage
	StorageDriver    string
	MediaRoot        string
	MediaURL         string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3Prefix         string
	S3ForcePathStyle bool
	// Admins hold every permission
	AdminUsernames []string
	// Board announcement
	NoticeTitle string
	NoticeHTML  string
}

type binding struct {
	key string
	env string
	def any
}

// Keys are grouped the same way as the JSON file; env names stay flat.
var bindings = []binding{
	{"app.port", "APP_PORT", "8080"},
	{"app.jwt_secret", "JWT_SECRET", ""},
	{"app.rate_limit_per_minute", "RATE_LIMIT_PER_MINUTE", 60},
	{"app.allowed_origins", "CORS_ALLOWED_ORIGINS", []string{"*"}},
	{"app.image_max_upload_mb", "IMAGE_MAX_UPLOAD_MB", 10},
	{"gin.mode", "GIN_MODE", "release"},
	{"gin.log_path", "GIN_PATH", "logs/go_gin.log"},
	{"database.driver", "DB_DRIVER", "mysql"},
	{"database.uri", "DATABASE_URI", ""},
	{"database.host", "DB_HOST", "127.0.0.1"},
	{"database.port", "DB_PORT", "3306"},
	{"database.user", "DB_USER", "root"},
	{"database.password", "DB_PASSWORD", ""},
	{"database.name", "DB_NAME", "guildboard"},
	{"redis.host", "REDIS_HOST", ""},
	{"redis.port", "REDIS_PORT", 6379},
	{"redis.db", "REDIS_DB", 0},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.path", "LOG_PATH", ""},
	{"log.max_size_mb", "LOG_MAX_SIZE_MB", 100},
	{"log.max_backups", "LOG_MAX_BACKUPS", 3},
	{"log.max_age_days", "LOG_MAX_AGE_DAYS", 7},
	{"log.compress", "LOG_COMPRESS", false},
	{"storage.driver", "STORAGE_DRIVER", "disk"},
	{"storage.media_root", "MEDIA_ROOT", "media"},
	{"storage.media_url", "MEDIA_URL", "/media/"},
	{"storage.s3_bucket", "S3_BUCKET", ""},
	{"storage.s3_region", "S3_REGION", "us-east-1"},
	{"storage.s3_endpoint", "S3_ENDPOINT", ""},
	{"storage.s3_access_key", "S3_ACCESS_KEY", ""},
	{"storage.s3_secret_key", "S3_SECRET_KEY", ""},
	{"storage.s3_prefix", "S3_PREFIX", ""},
	{"storage.s3_force_path_style", "S3_FORCE_PATH_STYLE", false},
	{"admin.usernames", "ADMIN_USERNAMES", []string{}},
	{"notice.title", "NOTICE_TITLE", ""},
	{"notice.html", "NOTICE_HTML", ""},
}

// Load reads configuration with precedence: defaults, then the JSON file at path, then environment variables.
// A missing file is not an error.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return AppConfig{}, fmt.Errorf("bind env %s: %w", b.env, err)
		}
	}

	if path == "" {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := AppConfig{
		AppPort:            v.GetString("app.port"),
		JWTSecret:          v.GetString("app.jwt_secret"),
		RateLimitPerMinute: v.GetInt("app.rate_limit_per_minute"),
		AllowedOrigins:     stringList(v, "app.allowed_origins"),
		ImageMaxUploadMB:   v.GetInt("app.image_max_upload_mb"),
		GinMode:            v.GetString("gin.mode"),
		GinPath:            v.GetString("gin.log_path"),
		DBDriver:           strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:        v.GetString("database.uri"),
		DBHost:             v.GetString("database.host"),
		DBPort:             v.GetString("database.port"),
		DBUser:             v.GetString("database.user"),
		DBPassword:         v.GetString("database.password"),
		DBName:             v.GetString("database.name"),
		RedisHost:          v.GetString("redis.host"),
		RedisPort:          v.GetInt("redis.port"),
		RedisDB:            v.GetInt("redis.db"),
		RedisPassword:      v.GetString("redis.password"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		LogPath:            v.GetString("log.path"),
		LogMaxSizeMB:       v.GetInt("log.max_size_mb"),
		LogMaxBackups:      v.GetInt("log.max_backups"),
		LogMaxAgeDays:      v.GetInt("log.max_age_days"),
		LogCompress:        v.GetBool("log.compress"),
		StorageDriver:      strings.ToLower(v.GetString("storage.driver")),
		MediaRoot:          v.GetString("storage.media_root"),
		MediaURL:           v.GetString("storage.media_url"),
		S3Bucket:           v.GetString("storage.s3_bucket"),
		S3Region:           v.GetString("storage.s3_region"),
		S3Endpoint:         v.GetString("storage.s3_endpoint"),
		S3AccessKey:        v.GetString("storage.s3_access_key"),
		S3SecretKey:        v.GetString("storage.s3_secret_key"),
		S3Prefix:           v.GetString("storage.s3_prefix"),
		S3ForcePathStyle:   v.GetBool("storage.s3_force_path_style"),
		AdminUsernames:     stringList(v, "admin.usernames"),
		NoticeTitle:        v.GetString("notice.title"),
		NoticeHTML:         v.GetString("notice.html"),
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks required values and enumerations.
func (c AppConfig) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set in the config file or environment")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "disk":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// IsAdmin reports whether username is configured as an administrator.
func (c AppConfig) IsAdmin(username string) bool {
	if username == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}

// ImageMaxUploadBytes is the upload limit for post images.
func (c AppConfig) ImageMaxUploadBytes() int64 {
	mb := c.ImageMaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) * 1024 * 1024
}

// stringList accepts both JSON arrays and comma separated env values.
func stringList(v *viper.Viper, key string) []string {
	switch t := v.Get(key).(type) {
	case string:
		return splitAndTrim(t)
	default:
		return v.GetStringSlice(key)
	}
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
