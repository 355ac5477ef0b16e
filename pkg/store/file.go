package store

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// FileBackend keeps every record as <dir>/<key>.yaml.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create data directory %s", dir)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, key+".yaml")
}

func (f *FileBackend) Load(key string, v interface{}) error {
	data, err := ioutil.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrNotFound
	}
	return yaml.Unmarshal(data, v)
}

// Save writes to a temporary file and renames it over the record, so a reader
// never observes a half-written document.
func (f *FileBackend) Save(key string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(f.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *FileBackend) Close() error {
	return nil
}
