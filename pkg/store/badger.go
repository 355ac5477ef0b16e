package store

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
)

type BadgerBackend struct {
	db *badger.DB
}

// DefaultBadgerOptions keeps the documents small and the value log compact.
func DefaultBadgerOptions(dir string) badger.Options {
	return badger.DefaultOptions(dir).
		WithValueLogFileSize(64 << 20).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
}

func OpenBadger(dir string) (*BadgerBackend, error) {
	db, err := badger.Open(DefaultBadgerOptions(dir))
	if err != nil {
		return nil, errors.Wrapf(err, "could not open badger database at %s", dir)
	}
	return NewBadgerBackend(db), nil
}

func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func (b *BadgerBackend) Load(key string, v interface{}) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, v)
	})
}

func (b *BadgerBackend) Save(key string, v interface{}) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
