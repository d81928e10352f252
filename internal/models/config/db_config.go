package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const defaultPlaceholderPicture = "https://firebasestorage.googleapis.com/v0/b/personalconnectfinal.appspot.com/o/profilePictures%2FplaceholderPerfil.png?alt=media"

// DatabaseConfig конфигурация БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Name     string
	SSLMode  string
}

// DSN собирает строку подключения для lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Name, d.SSLMode,
	)
}

// Load загружает конфигурацию
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Environment: env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		Backends: BackendConfig{
			Store: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			Auth:  strings.ToLower(getEnv("AUTH_BACKEND", "memory")),
			Blob:  strings.ToLower(getEnv("BLOB_BACKEND", "memory")),
		},
		Bot: BotConfig{
			Token:    getEnv("BOT_TOKEN", ""),
			Debug:    getEnvAsBool("BOT_DEBUG", env != "production"),
			AdminIDs: parseAdminIDs(getEnv("ADMIN_IDS", "")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Username: getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "personal-connect"),
			SSLMode:  getSSLMode(env),
		},
		Firebase: FirebaseConfig{
			ProjectID:             getEnv("FIREBASE_PROJECT_ID", ""),
			APIKey:                getEnv("FIREBASE_API_KEY", ""),
			EmulatorHost:          getEnv("FIRESTORE_EMULATOR_HOST", ""),
			StorageBucket:         getEnv("STORAGE_BUCKET", ""),
			StoragePublicBaseURL:  getEnv("STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
			PlaceholderPictureURL: getEnv("PLACEHOLDER_PICTURE_URL", defaultPlaceholderPicture),
		},
		Mail: MailConfig{
			Endpoint: getEnv("MAIL_ENDPOINT", ""),
			Timeout:  getEnvAsDuration("MAIL_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", ""),
			Channel: getEnv("REDIS_CHANNEL", "personal-connect.events"),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("AUTH_JWT_SECRET", ""),
			RecentLoginWindow:  getEnvAsDuration("AUTH_RECENT_LOGIN_WINDOW", 5*time.Minute),
			SignInRateInterval: getEnvAsDuration("SIGNIN_RATE_INTERVAL", 2*time.Second),
			SignInRateBurst:    getEnvAsInt("SIGNIN_RATE_BURST", 5),
			SessionIdleTTL:     getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		Log: LogConfig{
			Mode: getEnv("LOG_MODE", env),
		},
	}

	return cfg, validate(cfg)
}

// validate проверяет обязательные параметры
func validate(cfg *Config) error {
	var err error

	switch cfg.Backends.Store {
	case "memory":
	case "firestore":
		if cfg.Firebase.ProjectID == "" {
			err = multierr.Append(err, errors.New("FIREBASE_PROJECT_ID is required for the firestore store"))
		}
	case "postgres":
		if cfg.Database.Username == "" {
			err = multierr.Append(err, errors.New("DB_USER is required for the postgres store"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backends.Store))
	}

	switch cfg.Backends.Auth {
	case "memory":
	case "firebase":
		if cfg.Firebase.APIKey == "" {
			err = multierr.Append(err, errors.New("FIREBASE_API_KEY is required for the firebase identity provider"))
		}
	case "postgres":
		if cfg.Database.Username == "" {
			err = multierr.Append(err, errors.New("DB_USER is required for the postgres identity provider"))
		}
		if cfg.Auth.JWTSecret == "" {
			err = multierr.Append(err, errors.New("AUTH_JWT_SECRET is required for the postgres identity provider"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown AUTH_BACKEND %q", cfg.Backends.Auth))
	}

	switch cfg.Backends.Blob {
	case "memory":
	case "gcs":
		if cfg.Firebase.StorageBucket == "" {
			err = multierr.Append(err, errors.New("STORAGE_BUCKET is required for the gcs blob store"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.Backends.Blob))
	}

	if cfg.Database.Password == "" && cfg.IsProduction() && cfg.usesPostgres() {
		err = multierr.Append(err, errors.New("DB_PASSWORD is required in production"))
	}

	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func (c *Config) usesPostgres() bool {
	return c.Backends.Store == "postgres" || c.Backends.Auth == "postgres"
}

// getSSLMode возвращает режим SSL в зависимости от окружения
func getSSLMode(env string) string {
	if env == "production" {
		return "require"
	}
	return "disable"
}

// parseAdminIDs парсит список ID администраторов
func parseAdminIDs(ids string) []int64 {
	if ids == "" {
		return []int64{}
	}

	var result []int64
	for _, idStr := range strings.Split(ids, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64); err == nil {
			result = append(result, id)
		}
	}
	return result
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
