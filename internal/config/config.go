package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	devSecret = "dev-secret-change-me"
)

type Config struct {
	Env        string // "development" or "production"
	ServerPort string
	SiteURL    string
	SiteName   string
	LogLevel   string

	Storage     string
	DatabaseURL string

	SessionSecret string
	JWTSecret     string
	JWTTTL        time.Duration
	CORSOrigins   []string

	AdminEmail    string
	AdminPassword string

	GoogleClientID     string
	GoogleClientSecret string

	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	RSSHubInstance string
	ChatRulesPath  string
	TemplateDir    string

	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool
}

// LoadConfig reads .env (when present) and then the environment.
func LoadConfig() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		Env:        getEnv("APP_ENV", "development"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		SiteURL:    strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		SiteName:   getEnv("SITE_NAME", "Inkwell"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Storage:     getEnv("STORAGE", StoragePostgres),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=inkwell port=5432 sslmode=disable TimeZone=UTC"),

		SessionSecret: getEnv("SESSION_SECRET", devSecret),
		JWTSecret:     getEnv("JWT_SECRET", devSecret),
		JWTTTL:        getDuration("JWT_TTL", 72*time.Hour),
		CORSOrigins:   getList("CORS_ORIGINS"),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		CloudinaryCloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryUploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		CloudinaryAPIKey:       getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret:    getEnv("CLOUDINARY_API_SECRET", ""),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", ""),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),

		RSSHubInstance: getEnv("RSSHUB_INSTANCE_URL", "https://rsshub.app"),
		ChatRulesPath:  getEnv("CHAT_RULES_PATH", ""),
		TemplateDir:    getEnv("TEMPLATE_DIR", "web/templates"),

		EnvFileLoaded: loaded,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Storage != StorageMemory && c.Storage != StoragePostgres {
		return errors.New("STORAGE must be \"postgres\" or \"memory\"")
	}
	if c.Storage == StoragePostgres && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.IsProduction() && (c.SessionSecret == devSecret || c.JWTSecret == devSecret) {
		return errors.New("SESSION_SECRET and JWT_SECRET must be set in production")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if hours, err := strconv.Atoi(value); err == nil {
		return time.Duration(hours) * time.Hour
	}
	return defaultValue
}

func getList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
