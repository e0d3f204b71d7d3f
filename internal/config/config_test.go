package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
store: mongodb
mongodb:
  uri: mongodb://mongo:27017/?replicaSet=rs0
  database: reservations_file
transaction:
  lockWaitTimeout: 2s
sweeper:
  enabled: false
  interval: 30s
  batchSize: 50
  cron: "*/5 * * * *"
  workflowId: sweep
reservation:
  defaultQuotationTtl: 48h
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MONGODB_DATABASE", "reservations_env")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SWEEPER_INTERVAL", "15s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "mongodb://mongo:27017/?replicaSet=rs0", cfg.MongoDB.URI)
	assert.Equal(t, "reservations_env", cfg.MongoDB.Database)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.TxOptions().LockWaitTimeout)
	assert.False(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 50, cfg.Sweeper.BatchSize)
	assert.Equal(t, 48*time.Hour, cfg.Reservation.DefaultQuotationTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"SWEEPER_INTERVAL": "soon"}},
		{"bad bool", map[string]string{"SWEEPER_ENABLED": "maybe"}},
		{"unknown store", map[string]string{"STORE": "postgres"}},
		{"outbox without mongodb", map[string]string{"STORE": "memory", "OUTBOX_ENABLED": "true"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"missing config file", map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestMemoryStoreWithoutOutbox(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("OUTBOX_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
}
