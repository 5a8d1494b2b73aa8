// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "DATABASE_TYPE", "BASE_URL", "TOKEN_SALT",
		"JOIN_CODE_SALT", "LOG_LEVEL", "LOG_FORMAT", "JOIN_RATE_PER_MINUTE", "JOIN_BURST",
		"RATE_LIMIT_SALT", "TRUST_PROXY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func noEnvFile(t *testing.T) string {
	return "--env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestParseFlags_EnvVars(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("TOKEN_SALT", "test-salt")
	t.Setenv("JOIN_CODE_SALT", "test-code")

	cfg, err := ParseFlags([]string{noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.JoinRatePerMinute)
	assert.Equal(t, 10, cfg.JoinBurst)
	assert.False(t, cfg.TrustProxy)
	assert.NotEmpty(t, cfg.RateLimitSalt)
	assert.NotEqual(t, cfg.TokenSalt, cfg.RateLimitSalt)
}

func TestParseFlags_RateLimitSettings(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("TOKEN_SALT", "s1")
	t.Setenv("JOIN_CODE_SALT", "s2")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("RATE_LIMIT_SALT", "limiter")

	cfg, err := ParseFlags([]string{noEnvFile(t)})
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, "limiter", cfg.RateLimitSalt)

	cfg, err = ParseFlags([]string{noEnvFile(t), "--trust-proxy=false"})
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy, "CLI should override env")

	t.Setenv("TRUST_PROXY", "maybe")
	_, err = ParseFlags([]string{noEnvFile(t)})
	assert.Error(t, err)
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{
		noEnvFile(t),
		"-p", "8080", "-d", "file:test.db",
		"--token-salt", "s1", "--code-salt", "s2",
		"--base-url", "https://mate.example/",
	})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port, "CLI should override env")
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "https://mate.example", cfg.BaseURL)
}

func TestParseFlags_DotEnvFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"DATABASE_URL=file:dotenv.db\nTOKEN_SALT=from-file\nJOIN_CODE_SALT=also-from-file\nJOIN_BURST=3\n",
	), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("TOKEN_SALT")
		os.Unsetenv("JOIN_CODE_SALT")
		os.Unsetenv("JOIN_BURST")
	})

	cfg, err := ParseFlags([]string{"--env-file", path})
	require.NoError(t, err)

	assert.Equal(t, "file:dotenv.db", cfg.DatabaseURL)
	assert.Equal(t, "from-file", cfg.TokenSalt)
	assert.Equal(t, 3, cfg.JoinBurst)
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database url", map[string]string{"TOKEN_SALT": "a", "JOIN_CODE_SALT": "b"}, nil},
		{"missing token salt", map[string]string{"DATABASE_URL": "x", "JOIN_CODE_SALT": "b"}, nil},
		{"missing code salt", map[string]string{"DATABASE_URL": "x", "TOKEN_SALT": "a"}, nil},
		{"bad port", map[string]string{"PORT": "abc", "DATABASE_URL": "x", "TOKEN_SALT": "a", "JOIN_CODE_SALT": "b"}, nil},
		{"bad database type", map[string]string{"DATABASE_URL": "x", "TOKEN_SALT": "a", "JOIN_CODE_SALT": "b"}, []string{"-t", "mysql"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := ParseFlags(append([]string{noEnvFile(t)}, tt.args...))
			assert.Error(t, err)
		})
	}
}
