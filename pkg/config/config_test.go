package config

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromYAML(t *testing.T, doc string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(doc)))
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, uint64(3000000), cfg.Ledger.GasLimit)
	assert.Equal(t, int64(20), cfg.Ledger.GasPriceGwei)
	assert.Equal(t, 2*time.Minute, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, time.Second, cfg.Ledger.ReceiptPollInterval)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 10, cfg.Monitor.Retain)
	assert.Equal(t, int64(-1), cfg.Monitor.StartHeight)
	assert.Equal(t, ":5000", cfg.Server.Address)
	assert.Equal(t, 16, cfg.Server.SubscriberBuffer)
	assert.Equal(t, "debug", cfg.LogLevel())

	assert.Error(t, cfg.RequireLedger())
}

func TestLoadFile(t *testing.T) {
	v := fromYAML(t, `
ledger:
  url: http://ganache:8545
  privateKey: 4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d
  contract: "0x2D485a42fE61e30DF7B44D3268DbE6ca9C858177"
  confirmTimeout: 45s
storage:
  type: sql
  driver: postgres
  dataSource: host=localhost user=agritrace
monitor:
  interval: 500ms
  catchUp: true
  sink:
    type: elasticsearch
    urls: [http://es:9200]
`)
	cfg, err := Load(v)
	require.NoError(t, err)
	require.NoError(t, cfg.RequireLedger())

	assert.Equal(t, "http://ganache:8545", cfg.Ledger.URL)
	assert.Equal(t, 45*time.Second, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.Interval)
	assert.True(t, cfg.Monitor.CatchUp)
	assert.Equal(t, []string{"http://es:9200"}, cfg.Monitor.Sink.URLs)
	assert.Equal(t, "agritrace", cfg.Monitor.Sink.Index)
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("AGRITRACE_MONITOR_RETAIN", "3")
	defer os.Unsetenv("AGRITRACE_MONITOR_RETAIN")

	v := viper.New()
	v.SetEnvPrefix("agritrace")
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Monitor.Retain)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown storage", "storage:\n  type: redis\n"},
		{"sql without dsn", "storage:\n  type: sql\n  driver: mysql\n"},
		{"zero retain", "monitor:\n  retain: 0\n"},
		{"sink without urls", "monitor:\n  sink:\n    type: meilisearch\n"},
		{"sink with empty urls", "monitor:\n  sink:\n    type: meilisearch\n    urls: []\n"},
		{"unknown sink", "monitor:\n  sink:\n    type: kafka\n    urls: [x]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(fromYAML(t, tt.doc))
			assert.Error(t, err)
		})
	}
}
