package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "")
	t.Setenv("BACKEND_URL", "https://backend.example.test/")
	t.Setenv("BACKEND_ANON_KEY", "anon-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("ENVIRONMENT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.SiteURL)
	assert.Equal(t, "https://backend.example.test", cfg.BackendURL)
	assert.NotEmpty(t, cfg.PortalSecret)
	assert.Equal(t, 10*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 5*time.Second, cfg.GuardWait)
	assert.Equal(t, RoleFallbackStudent, cfg.RoleFetchFallback)
	assert.False(t, cfg.S3Enabled())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://sims.example, ,https://admin.sims.example")
	t.Setenv("AUTH_TIMEOUT", "3s")
	t.Setenv("ROLE_FETCH_FALLBACK", "preserve")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://sims.example", "https://admin.sims.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.AuthTimeout)
	assert.Equal(t, RoleFallbackPreserve, cfg.RoleFetchFallback)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "privileged port", key: "PORT", val: "80"},
		{name: "non numeric port", key: "PORT", val: "http"},
		{name: "bad duration", key: "GUARD_WAIT", val: "soon"},
		{name: "negative duration", key: "AUTH_TIMEOUT", val: "-1s"},
		{name: "unknown fallback", key: "ROLE_FETCH_FALLBACK", val: "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORTAL_SECRET", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "PORTAL_SECRET")
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ENV_FILE", "")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_ANON_KEY", "from-environment")
	os.Unsetenv("BACKEND_URL")

	content := "BACKEND_URL=https://dotenv.example.test\nBACKEND_ANON_KEY=from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://dotenv.example.test", cfg.BackendURL)
	assert.Equal(t, "from-environment", cfg.BackendAnonKey)
}
