package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8086", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 500, cfg.MaxPostChars)
	assert.Equal(t, 300, cfg.MaxCommentChars)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryBackoff())
	assert.Equal(t, "veristat-idp", cfg.IdentityIssuer)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_POST_CHARS", "120")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 120, cfg.MaxPostChars)
	assert.Equal(t, "sqlite", cfg.DBDriver)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:            "8086",
			IdentitySecret:  "secret",
			MaxPostChars:    500,
			MaxCommentChars: 300,
			RetryAttempts:   3,
		}
	}

	cfg := base()
	cfg.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.IdentitySecret = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.MaxPostChars = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.RetryAttempts = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, base().Validate())
}

func TestValidateProductionRequiresStrongSecret(t *testing.T) {
	cfg := &Config{
		Port:            "8086",
		Env:             "production",
		IdentitySecret:  "your-secret-key-change-in-production",
		MaxPostChars:    500,
		MaxCommentChars: 300,
		RetryAttempts:   3,
	}
	assert.Error(t, cfg.Validate())

	cfg.IdentitySecret = "short"
	assert.Error(t, cfg.Validate())

	cfg.IdentitySecret = "a-proper-production-secret-with-length!!"
	assert.NoError(t, cfg.Validate())
}
