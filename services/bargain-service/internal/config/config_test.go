package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.OfferFloor.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, cfg.OfferCeiling.Equal(decimal.RequireFromString("1.2")))
	assert.Zero(t, cfg.MaxCounterRounds)
	assert.Equal(t, 1000, cfg.MaxMessageLength)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BARGAIN_STORE", "Memory")
	t.Setenv("BARGAIN_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("BARGAIN_OFFER_CEILING", "1.1")
	t.Setenv("BARGAIN_MAX_COUNTER_ROUNDS", "6")
	t.Setenv("BARGAIN_SETTLE_INTERVAL", "30s")
	t.Setenv("BARGAIN_DEV_TOKENS", "tok-a=buyer-1,tok-b=farmer-1,broken")
	t.Setenv("BARGAIN_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.OfferPolicy().Ceiling.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, 6, cfg.OfferPolicy().MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.SettleInterval)
	assert.Equal(t, map[string]string{"tok-a": "buyer-1", "tok-b": "farmer-1"}, cfg.DevTokens)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, tc := range []struct{ key, val string }{
		{"BARGAIN_STORE", "sqlite"},
		{"BARGAIN_CACHE_TTL", "soon"},
		{"BARGAIN_CACHE_TTL", "0s"},
		{"BARGAIN_OFFER_FLOOR", "1.5"},
		{"BARGAIN_RATE_LIMIT", "many"},
		{"BARGAIN_OFFER_CEILING", "x"},
		{"BARGAIN_SETTLE_INTERVAL", "0s"},
		{"BARGAIN_SETTLE_INTERVAL", "-5s"},
		{"BARGAIN_RATE_WINDOW", "-1m"},
	} {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("bargain accepted", "session_id", "s-1")

	assert.Contains(t, stderr.String(), "session_id=s-1")
	assert.Contains(t, file.String(), `"session_id":"s-1"`)
	assert.NotContains(t, file.String(), "hidden")
}

func TestLoadClient(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 4*time.Second, cfg.PollInterval)

	t.Setenv("BARGAIN_API_URL", "https://api.farmart.co.ke")
	t.Setenv("BARGAIN_POLL_INTERVAL", "3s")
	cfg, err = LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "https://api.farmart.co.ke", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)

	t.Setenv("BARGAIN_POLL_INTERVAL", "often")
	_, err = LoadClient()
	assert.Error(t, err)
}
