package cmd

import (
	"context"
	"math/big"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"
	"github.com/kfsoftware/agritrace/pkg/config"
	"github.com/kfsoftware/agritrace/pkg/ledger"
	"github.com/kfsoftware/agritrace/pkg/ledger/ethereum"
	"github.com/kfsoftware/agritrace/pkg/listener"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/kfsoftware/agritrace/pkg/store"
	"github.com/meilisearch/meilisearch-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Log.Level)
	}
	log.SetLevel(level)
	return cfg, nil
}

func openBackend(cfg config.StorageConfig) (store.Backend, error) {
	switch store.Provider(cfg.Type) {
	case store.File:
		return store.NewFileBackend(cfg.Path)
	case store.Badger:
		return store.OpenBadger(cfg.Path)
	case store.Database:
		var drName store.DriverName
		switch store.DriverName(cfg.Driver) {
		case store.PostgresqlDriver:
			drName = store.PostgresqlDriver
		case store.MySQLDriver:
			drName = store.MySQLDriver
		case store.SQLiteDriver:
			drName = store.SQLiteDriver
		default:
			return nil, errors.Errorf("Driver %s not supported", cfg.Driver)
		}
		return store.NewSQLBackend(drName, cfg.DataSource, store.DefaultTableName)
	default:
		return nil, errors.Errorf("No valid storage provider: %s", cfg.Type)
	}
}

func openSink(cfg config.SinkConfig) (monitor.Sink, error) {
	if cfg.Type == "" {
		return nil, nil
	}
	if len(cfg.URLs) == 0 {
		return nil, errors.Errorf("Sink %s has no urls", cfg.Type)
	}
	switch listener.Provider(cfg.Type) {
	case listener.MeiliSearch:
		meiliClient := meilisearch.NewClient(meilisearch.Config{
			Host:   cfg.URLs[0],
			APIKey: cfg.APIKey,
		})
		_, err := meiliClient.Indexes().List()
		if err != nil {
			return nil, errors.Wrap(err, "could not reach meilisearch")
		}
		storage, err := listener.NewMeilisearchStorage(meiliClient, cfg.Index)
		if err != nil {
			return nil, errors.Wrap(err, "could not prepare meilisearch index")
		}
		return storage, nil
	case listener.ElasticSearch:
		esClient, err := elasticsearch7.NewClient(elasticsearch7.Config{
			Addresses: cfg.URLs,
			Username:  cfg.User,
			Password:  cfg.Password,
		})
		if err != nil {
			return nil, errors.Wrap(err, "could not create elasticsearch client")
		}
		return listener.NewElasticStorage(esClient, cfg.Index), nil
	default:
		return nil, errors.Errorf("No valid sink provider: %s", cfg.Type)
	}
}

func dialLedger(ctx context.Context, cfg config.LedgerConfig) (*ethereum.Client, error) {
	options := []ethereum.Option{ethereum.WithPollInterval(cfg.ReceiptPollInterval)}
	if cfg.ABIPath != "" {
		options = append(options, ethereum.WithABIFile(cfg.ABIPath))
	}
	client, err := ethereum.Dial(ctx, cfg.URL, cfg.Contract, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to ledger at %s", cfg.URL)
	}
	log.Infof("Connected to ledger %s, tracking contract %s", cfg.URL, client.Contract())
	return client, nil
}

func newSubmitter(client ledger.Client, cfg config.LedgerConfig) (*ledger.Submitter, error) {
	signer, err := ledger.NewSigner(cfg.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid signing key")
	}
	log.Infof("Signing as %s", signer.Address())
	gasPrice := new(big.Int).Mul(big.NewInt(cfg.GasPriceGwei), big.NewInt(params.GWei))
	return ledger.NewSubmitter(client, signer,
		ledger.WithGasLimit(cfg.GasLimit),
		ledger.WithGasPrice(gasPrice),
		ledger.WithConfirmTimeout(cfg.ConfirmTimeout),
	), nil
}

func monitorOptions(cfg config.MonitorConfig, sink monitor.Sink, startHeight int64) []monitor.Option {
	options := []monitor.Option{
		monitor.WithInterval(cfg.Interval),
		monitor.WithRetain(cfg.Retain),
		monitor.WithCatchUp(cfg.CatchUp),
		monitor.WithStartHeight(cfg.StartHeight),
	}
	if startHeight >= 0 {
		options = append(options, monitor.WithStartHeight(startHeight))
	}
	if sink != nil {
		options = append(options, monitor.WithSink(sink))
	}
	return options
}

type closer func() error

// closeAll runs every closer and reports all failures together.
func closeAll(closers ...closer) error {
	var result error
	for _, c := range closers {
		if c == nil {
			continue
		}
		err := c()
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
