package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kfsoftware/agritrace/pkg/config"
	"github.com/kfsoftware/agritrace/pkg/store"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExecuteCommand(t *testing.T) {
	dir := t.TempDir()
	viper.Set("storage.type", "file")
	viper.Set("storage.path", dir)
	defer viper.Reset()

	root := NewRootCmd()
	b := bytes.NewBufferString("")
	root.SetOut(b)
	root.SetArgs([]string{"draft", "-n", "3", "--created-by", "Sita M"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "3\t"))

	batches, err := store.NewBatchStore(mustFile(t, dir)).List()
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, "Sita M", batches[0].CreatedBy)
}

func TestDraftRejectsZeroCount(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(bytes.NewBufferString(""))
	root.SetErr(bytes.NewBufferString(""))
	root.SetArgs([]string{"draft", "-n", "0"})
	assert.Error(t, root.Execute())
}

func TestServeRequiresLedger(t *testing.T) {
	viper.Set("storage.path", t.TempDir())
	defer viper.Reset()

	root := NewRootCmd()
	root.SetOut(bytes.NewBufferString(""))
	root.SetErr(bytes.NewBufferString(""))
	root.SetArgs([]string{"serve"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger")
}

func TestOpenBackendRejectsUnknownDriver(t *testing.T) {
	_, err := openBackend(config.StorageConfig{Type: "sql", Driver: "oracle", DataSource: "x"})
	assert.Error(t, err)
}

func mustFile(t *testing.T, dir string) store.Backend {
	backend, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	return backend
}

func TestOpenSinkRequiresURLs(t *testing.T) {
	sink, err := openSink(config.SinkConfig{Type: "meilisearch", URLs: []string{}})
	assert.Error(t, err)
	assert.Nil(t, sink)

	sink, err = openSink(config.SinkConfig{})
	assert.NoError(t, err)
	assert.Nil(t, sink)
}
