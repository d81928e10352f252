package config

import "time"

// Config основной конфиг
type Config struct {
	Environment string
	HTTPPort    string
	Backends    BackendConfig
	Bot         BotConfig
	Database    DatabaseConfig
	Firebase    FirebaseConfig
	Mail        MailConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Log         LogConfig
}

type BotConfig struct {
	Token    string
	Debug    bool
	AdminIDs []int64
}

// BackendConfig выбирает реализацию каждого внешнего бэкенда
type BackendConfig struct {
	Store string // memory | firestore | postgres
	Auth  string // memory | firebase | postgres
	Blob  string // memory | gcs
}

type FirebaseConfig struct {
	ProjectID             string
	APIKey                string
	EmulatorHost          string
	StorageBucket         string
	StoragePublicBaseURL  string
	PlaceholderPictureURL string
}

type MailConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type RedisConfig struct {
	Addr    string
	Channel string
}

type AuthConfig struct {
	JWTSecret          string
	RecentLoginWindow  time.Duration
	SignInRateInterval time.Duration
	SignInRateBurst    int
	SessionIdleTTL     time.Duration
}

type LogConfig struct {
	Mode string
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
