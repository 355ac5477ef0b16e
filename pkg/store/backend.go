package store

import (
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("record not found")

// Backend is a durable record store keyed by logical id. Each record is an
// opaque document owned by a single component.
type Backend interface {
	Load(key string, v interface{}) error
	Save(key string, v interface{}) error
	Close() error
}

type Provider string

const (
	File     Provider = "file"
	Badger   Provider = "badger"
	Database Provider = "sql"
)
