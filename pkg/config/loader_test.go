package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productphotostudio/billing/pkg/config"
)

type defaultsConfig struct {
	BaseURL string `env:"TEST_BASE_URL_DEFAULT" envDefault:"http://localhost:8080"`
	Workers int    `env:"TEST_WORKERS_DEFAULT" envDefault:"4"`
	Enabled bool   `env:"TEST_ENABLED_DEFAULT" envDefault:"true"`
}

type successConfig struct {
	BaseURL string `env:"TEST_BASE_URL_SUCCESS"`
	Workers int    `env:"TEST_WORKERS_SUCCESS"`
}

type cachedConfig struct {
	Value string `env:"TEST_VALUE_CACHED"`
}

type requiredConfig struct {
	Secret string `env:"TEST_REQUIRED_SECRET,required"`
}

type pricePair struct {
	Monthly string `env:"TEST_PRICE_MONTHLY"`
	Annual  string `env:"TEST_PRICE_ANNUAL"`
}

var errSamePrice = errors.New("monthly and annual price must differ")

func (p pricePair) Validate() error {
	if p.Monthly == p.Annual {
		return errSamePrice
	}
	return nil
}

type envFileConfig struct {
	Value string `env:"TEST_FROM_ENV_FILE"`
}

func TestLoad(t *testing.T) {
	t.Run("parses values from environment", func(t *testing.T) {
		t.Setenv("TEST_BASE_URL_SUCCESS", "https://studio.example.com")
		t.Setenv("TEST_WORKERS_SUCCESS", "8")

		var cfg successConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "https://studio.example.com", cfg.BaseURL)
		assert.Equal(t, 8, cfg.Workers)
	})

	t.Run("falls back to defaults", func(t *testing.T) {
		os.Unsetenv("TEST_BASE_URL_DEFAULT")
		os.Unsetenv("TEST_WORKERS_DEFAULT")
		os.Unsetenv("TEST_ENABLED_DEFAULT")

		var cfg defaultsConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
		assert.Equal(t, 4, cfg.Workers)
		assert.True(t, cfg.Enabled)
	})

	t.Run("missing required value", func(t *testing.T) {
		os.Unsetenv("TEST_REQUIRED_SECRET")

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *successConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestLoad_Cached(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	t.Setenv("TEST_VALUE_CACHED", "first")
	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_VALUE_CACHED", "second")
	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)

	config.Reset()
	var third cachedConfig
	require.NoError(t, config.Load(&third))
	assert.Equal(t, "second", third.Value)
}

func TestLoad_Validator(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	t.Setenv("TEST_PRICE_MONTHLY", "price_same_for_both_cycles")
	t.Setenv("TEST_PRICE_ANNUAL", "price_same_for_both_cycles")

	var cfg pricePair
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, errSamePrice)

	// invalid configs are not cached
	t.Setenv("TEST_PRICE_ANNUAL", "price_annual_distinct_value")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "price_annual_distinct_value", cfg.Annual)
}

func TestLoadEnv(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	path := filepath.Join(t.TempDir(), "billing.env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_FROM_ENV_FILE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_FROM_ENV_FILE") })

	require.NoError(t, config.LoadEnv(path))

	var cfg envFileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "from-file", cfg.Value)

	err := config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

func TestMustLoad_Panics(t *testing.T) {
	os.Unsetenv("TEST_REQUIRED_SECRET")
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
