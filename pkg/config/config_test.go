package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/config"
)

type otpConfig struct {
	TTL         time.Duration `env:"OTP_TTL" envDefault:"10m"`
	MaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	ExposeCode  bool          `env:"OTP_EXPOSE_CODE" envDefault:"false"`
}

type secretConfig struct {
	Secret string `env:"JWT_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		var cfg otpConfig
		require.NoError(t, config.Load(&cfg, config.WithVars(map[string]string{})))
		assert.Equal(t, 10*time.Minute, cfg.TTL)
		assert.Equal(t, 5, cfg.MaxAttempts)
		assert.False(t, cfg.ExposeCode)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		var cfg otpConfig
		require.NoError(t, config.Load(&cfg, config.WithVars(map[string]string{
			"OTP_TTL":          "2m",
			"OTP_MAX_ATTEMPTS": "3",
			"OTP_EXPOSE_CODE":  "true",
		})))
		assert.Equal(t, 2*time.Minute, cfg.TTL)
		assert.Equal(t, 3, cfg.MaxAttempts)
		assert.True(t, cfg.ExposeCode)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		var cfg secretConfig
		require.NoError(t, config.Load(&cfg,
			config.WithPrefix("TEST_"),
			config.WithVars(map[string]string{"TEST_JWT_SECRET": "s3cret"}),
		))
		assert.Equal(t, "s3cret", cfg.Secret)
	})

	t.Run("required missing", func(t *testing.T) {
		t.Parallel()
		var cfg secretConfig
		err := config.Load(&cfg, config.WithVars(map[string]string{}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, config.Load[secretConfig](nil), config.ErrNilPointer)
	})

	t.Run("must load panics", func(t *testing.T) {
		t.Parallel()
		var cfg secretConfig
		assert.Panics(t, func() { config.MustLoad(&cfg, config.WithVars(map[string]string{})) })
	})
}
