package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 5, cfg.DLQMaxRetries)
	require.Equal(t, "en-US", cfg.Locale)
	require.Empty(t, cfg.PostgresURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")
	t.Setenv("JUNO_TIMEZONE", "Asia/Tokyo")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 50, cfg.OutboxBatchSize)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("JUNO_LOCALE=de\nHTTP_ADDRESS=:9999\n"), 0o600))
	t.Setenv("HTTP_ADDRESS", ":7000")
	// Unset after the test so the variable loaded from the file does not leak.
	t.Setenv("JUNO_LOCALE", "")
	require.NoError(t, os.Unsetenv("JUNO_LOCALE"))

	cfg, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, "de", cfg.Locale)
	require.Equal(t, ":7000", cfg.HTTPAddress)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("JUNO_TIMEZONE", "Mars/Olympus")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
