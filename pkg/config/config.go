package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	FileName  = "agritrace"
	EnvPrefix = "agritrace"
)

// EnvKeyReplacer maps nested keys to env names, e.g. AGRITRACE_MONITOR_RETAIN.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Storage StorageConfig `mapstructure:"storage"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type LedgerConfig struct {
	URL                 string        `mapstructure:"url" validate:"required"`
	PrivateKey          string        `mapstructure:"privateKey" validate:"required"`
	Contract            string        `mapstructure:"contract" validate:"required"`
	ABIPath             string        `mapstructure:"abiPath"`
	GasLimit            uint64        `mapstructure:"gasLimit" validate:"gt=0"`
	GasPriceGwei        int64         `mapstructure:"gasPriceGwei" validate:"gt=0"`
	ConfirmTimeout      time.Duration `mapstructure:"confirmTimeout" validate:"gte=0"`
	ReceiptPollInterval time.Duration `mapstructure:"receiptPollInterval" validate:"gt=0"`
}

type StorageConfig struct {
	Type       string `mapstructure:"type" validate:"oneof=file badger sql"`
	Path       string `mapstructure:"path" validate:"required_unless=Type sql"`
	Driver     string `mapstructure:"driver" validate:"required_if=Type sql"`
	DataSource string `mapstructure:"dataSource" validate:"required_if=Type sql"`
}

type SinkConfig struct {
	Type     string   `mapstructure:"type" validate:"omitempty,oneof=elasticsearch meilisearch"`
	URLs     []string `mapstructure:"urls" validate:"required_with=Type,omitempty,min=1"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	APIKey   string   `mapstructure:"apiKey"`
	Index    string   `mapstructure:"index"`
}

type MonitorConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	Retain      int           `mapstructure:"retain" validate:"gt=0"`
	CatchUp     bool          `mapstructure:"catchUp"`
	StartHeight int64         `mapstructure:"startHeight"`
	Sink        SinkConfig    `mapstructure:"sink"`
}

type ServerConfig struct {
	Address          string `mapstructure:"address" validate:"required"`
	SubscriberBuffer int    `mapstructure:"subscriberBuffer" validate:"gt=0"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "debug")
	v.SetDefault("ledger.url", "http://127.0.0.1:7545")
	v.SetDefault("ledger.gasLimit", 3000000)
	v.SetDefault("ledger.gasPriceGwei", 20)
	v.SetDefault("ledger.confirmTimeout", "2m")
	v.SetDefault("ledger.receiptPollInterval", "1s")
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "data")
	v.SetDefault("monitor.interval", "2s")
	v.SetDefault("monitor.retain", 10)
	v.SetDefault("monitor.catchUp", false)
	v.SetDefault("monitor.startHeight", -1)
	v.SetDefault("monitor.sink.index", "agritrace")
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.subscriberBuffer", 16)
	v.SetDefault("metrics.address", ":9090")
}

// Load decodes and validates everything but the ledger section, which only
// the commands talking to the chain require.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode configuration")
	}
	validate := validator.New()
	for name, section := range map[string]interface{}{
		"storage": cfg.Storage,
		"monitor": cfg.Monitor,
		"server":  cfg.Server,
	} {
		err = validate.Struct(section)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s configuration", name)
		}
	}
	if cfg.Monitor.Sink.Type != "" && len(cfg.Monitor.Sink.URLs) == 0 {
		return nil, errors.Errorf("invalid monitor configuration: sink %s needs at least one url", cfg.Monitor.Sink.Type)
	}
	return cfg, nil
}

func (c *Config) RequireLedger() error {
	err := validator.New().Struct(c.Ledger)
	if err != nil {
		return errors.Wrap(err, "invalid ledger configuration")
	}
	return nil
}

func (c *Config) LogLevel() string {
	return strings.ToLower(c.Log.Level)
}
