package config

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Calendar and the daily backfill
	Timezone        string
	DayNoonHour     int
	BackfillCron    string
	BackfillEnabled bool
	// Photo storage
	PhotoStore          string
	DefaultPhotoURL     string
	UploadDir           string
	UploadURLPrefix     string
	UploadMaxMB         int
	S3Endpoint          string
	S3Region            string
	S3Bucket            string
	S3AccessKey         string
	S3SecretKey         string
	S3PublicURL         string
	S3Prefix            string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	// Admin account seeded at boot
	AdminUsername string
	AdminPassword string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching, token revocation and the backfill lock; empty address disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// binding maps a grouped config.json key onto its environment variable and default.
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"app.port", "APP_PORT", "3000"},
	{"app.jwtsecret", "JWT_SECRET", ""},
	{"app.tokenttlhours", "TOKEN_TTL_HOURS", 72},
	{"app.ratelimitperminute", "RATE_LIMIT_PER_MINUTE", 60},
	{"app.allowedorigins", "CORS_ALLOWED_ORIGINS", []string{"*"}},
	{"database.driver", "DB_DRIVER", "mysql"},
	{"database.uri", "DATABASE_URI", ""},
	{"database.host", "DB_HOST", "127.0.0.1"},
	{"database.port", "DB_PORT", "3306"},
	{"database.user", "DB_USER", "root"},
	{"database.password", "DB_PASSWORD", ""},
	{"database.name", "DB_NAME", "earlywake"},
	{"calendar.timezone", "TIMEZONE", "Africa/Cairo"},
	{"calendar.noonhour", "DAY_NOON_HOUR", 12},
	{"calendar.backfillcron", "BACKFILL_CRON", "50 6 * * *"},
	{"calendar.backfillenabled", "BACKFILL_ENABLED", true},
	{"photos.store", "PHOTO_STORE", "local"},
	{"photos.defaulturl", "DEFAULT_PHOTO_URL", "/uploads/default.png"},
	{"photos.uploaddir", "UPLOAD_DIR", "uploads"},
	{"photos.urlprefix", "UPLOAD_URL_PREFIX", "/uploads"},
	{"photos.maxmb", "UPLOAD_MAX_MB", 10},
	{"photos.s3endpoint", "S3_ENDPOINT", ""},
	{"photos.s3region", "S3_REGION", ""},
	{"photos.s3bucket", "S3_BUCKET", ""},
	{"photos.s3accesskey", "S3_ACCESS_KEY", ""},
	{"photos.s3secretkey", "S3_SECRET_KEY", ""},
	{"photos.s3publicurl", "S3_PUBLIC_URL", ""},
	{"photos.s3prefix", "S3_PREFIX", "photos"},
	{"photos.cloudinarycloudname", "CLOUDINARY_CLOUD_NAME", ""},
	{"photos.cloudinaryapikey", "CLOUDINARY_API_KEY", ""},
	{"photos.cloudinaryapisecret", "CLOUDINARY_API_SECRET", ""},
	{"photos.cloudinaryfolder", "CLOUDINARY_FOLDER", "uploads"},
	{"admin.username", "ADMIN_USERNAME", ""},
	{"admin.password", "ADMIN_PASSWORD", ""},
	{"log.ginmode", "GIN_MODE", "release"},
	{"log.ginpath", "GIN_PATH", "logs/go_gin.log"},
	{"redis.addr", "REDIS_ADDR", ""},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.path", "LOG_PATH", ""},
	{"log.maxsizemb", "LOG_MAX_SIZE_MB", 100},
	{"log.maxbackups", "LOG_MAX_BACKUPS", 3},
	{"log.maxagedays", "LOG_MAX_AGE_DAYS", 7},
	{"log.compress", "LOG_COMPRESS", false},
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults, with environment variables overriding all of them.
	_ = godotenv.Load()

	c, err := LoadFile(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("invalid config file: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// LoadFile reads the grouped JSON file at path (missing files are ignored) and applies defaults and env overrides.
func LoadFile(path string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		_ = v.BindEnv(b.key, b.env)
	}

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, err
	}

	return AppConfig{
		AppPort:             v.GetString("app.port"),
		JWTSecret:           v.GetString("app.jwtsecret"),
		TokenTTLHours:       v.GetInt("app.tokenttlhours"),
		RateLimitPerMinute:  v.GetInt("app.ratelimitperminute"),
		AllowedOrigins:      readList(v, "app.allowedorigins"),
		DBDriver:            strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:         v.GetString("database.uri"),
		DBHost:              v.GetString("database.host"),
		DBPort:              v.GetString("database.port"),
		DBUser:              v.GetString("database.user"),
		DBPassword:          v.GetString("database.password"),
		DBName:              v.GetString("database.name"),
		Timezone:            v.GetString("calendar.timezone"),
		DayNoonHour:         v.GetInt("calendar.noonhour"),
		BackfillCron:        v.GetString("calendar.backfillcron"),
		BackfillEnabled:     v.GetBool("calendar.backfillenabled"),
		PhotoStore:          strings.ToLower(v.GetString("photos.store")),
		DefaultPhotoURL:     v.GetString("photos.defaulturl"),
		UploadDir:           v.GetString("photos.uploaddir"),
		UploadURLPrefix:     v.GetString("photos.urlprefix"),
		UploadMaxMB:         v.GetInt("photos.maxmb"),
		S3Endpoint:          v.GetString("photos.s3endpoint"),
		S3Region:            v.GetString("photos.s3region"),
		S3Bucket:            v.GetString("photos.s3bucket"),
		S3AccessKey:         v.GetString("photos.s3accesskey"),
		S3SecretKey:         v.GetString("photos.s3secretkey"),
		S3PublicURL:         v.GetString("photos.s3publicurl"),
		S3Prefix:            v.GetString("photos.s3prefix"),
		CloudinaryCloudName: v.GetString("photos.cloudinarycloudname"),
		CloudinaryAPIKey:    v.GetString("photos.cloudinaryapikey"),
		CloudinaryAPISecret: v.GetString("photos.cloudinaryapisecret"),
		CloudinaryFolder:    v.GetString("photos.cloudinaryfolder"),
		AdminUsername:       v.GetString("admin.username"),
		AdminPassword:       v.GetString("admin.password"),
		GinMode:             v.GetString("log.ginmode"),
		GinPath:             v.GetString("log.ginpath"),
		RedisAddr:           v.GetString("redis.addr"),
		RedisPassword:       v.GetString("redis.password"),
		RedisDB:             v.GetInt("redis.db"),
		LogLevel:            v.GetString("log.level"),
		LogPath:             v.GetString("log.path"),
		LogMaxSizeMB:        v.GetInt("log.maxsizemb"),
		LogMaxBackups:       v.GetInt("log.maxbackups"),
		LogMaxAgeDays:       v.GetInt("log.maxagedays"),
		LogCompress:         v.GetBool("log.compress"),
	}, nil
}

// readList accepts either a JSON array or a comma separated env value.
func readList(v *viper.Viper, key string) []string {
	items := []string{}
	for _, raw := range v.GetStringSlice(key) {
		for _, item := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}
