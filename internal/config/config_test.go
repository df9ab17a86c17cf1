package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "DATABASE_URL", "SQLITE_PATH", "VERCEL", "MAX_UPLOAD_MB", "PAGE_SIZE"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, defaultSQLitePath, cfg.SQLitePath)
	assert.Equal(t, 16, cfg.MaxUploadMB)
	assert.Equal(t, 50, cfg.PageSize)
	assert.False(t, cfg.UsesPostgres())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("VERCEL", "1")
	t.Setenv("PAGE_SIZE", "oops")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/cay")

	cfg := Load()

	assert.Equal(t, "/tmp/cayxanh.db", cfg.SQLitePath)
	assert.Equal(t, 50, cfg.PageSize)
	assert.True(t, cfg.UsesPostgres())
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "missing secret", secret: "", wantErr: true},
		{name: "short secret", secret: "short", wantErr: true},
		{name: "valid secret", secret: "0123456789abcdef0123456789abcdef", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{JWTSecret: tt.secret, CORSOrigins: "https://kimbiofarm.vn"}
			err := cfg.ValidateServer()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
