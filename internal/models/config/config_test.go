package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backends.Store != "memory" || cfg.Backends.Auth != "memory" || cfg.Backends.Blob != "memory" {
		t.Errorf("backends = %+v, want all memory", cfg.Backends)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if !cfg.Bot.Debug {
		t.Error("Bot.Debug should default to true outside production")
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("SSLMode = %q, want disable", cfg.Database.SSLMode)
	}
	if cfg.Auth.RecentLoginWindow != 5*time.Minute {
		t.Errorf("RecentLoginWindow = %v, want 5m", cfg.Auth.RecentLoginWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("AUTH_BACKEND", "postgres")
	t.Setenv("DB_USER", "connect")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("AUTH_JWT_SECRET", "jwt")
	t.Setenv("MAIL_TIMEOUT", "3s")
	t.Setenv("ADMIN_IDS", "1, 2,x,3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backends.Store != "postgres" {
		t.Errorf("Store = %q, want postgres", cfg.Backends.Store)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Port = %d, want 5433", cfg.Database.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("SSLMode = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Mail.Timeout != 3*time.Second {
		t.Errorf("Mail.Timeout = %v, want 3s", cfg.Mail.Timeout)
	}
	if len(cfg.Bot.AdminIDs) != 3 {
		t.Errorf("AdminIDs = %v, want 3 ids", cfg.Bot.AdminIDs)
	}
	if !strings.Contains(cfg.Database.DSN(), "port=5433") {
		t.Errorf("DSN() = %q", cfg.Database.DSN())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{
			name: "firestore without project",
			env:  map[string]string{"STORE_BACKEND": "firestore"},
			want: []string{"FIREBASE_PROJECT_ID"},
		},
		{
			name: "postgres identity without secret or user",
			env:  map[string]string{"AUTH_BACKEND": "postgres"},
			want: []string{"DB_USER", "AUTH_JWT_SECRET"},
		},
		{
			name: "unknown backends",
			env:  map[string]string{"STORE_BACKEND": "mongo", "BLOB_BACKEND": "s3"},
			want: []string{"STORE_BACKEND", "BLOB_BACKEND"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %s", err, w)
				}
			}
		})
	}
}
