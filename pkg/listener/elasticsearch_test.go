package listener

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/kfsoftware/agritrace/pkg/mocks"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newElastic(t *testing.T, handler http.HandlerFunc) ElasticSearchStorage {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := elasticsearch7.NewClient(elasticsearch7.Config{Addresses: []string{ts.URL}})
	require.NoError(t, err)
	return NewElasticStorage(client, "agritrace_blocks")
}

func TestElasticStoreBulk(t *testing.T) {
	var lines []map[string]interface{}
	storage := newElastic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		body, _ := ioutil.ReadAll(r.Body)
		scanner := bufio.NewScanner(bytes.NewReader(body))
		for scanner.Scan() {
			var line map[string]interface{}
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
			lines = append(lines, line)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	})

	snap, ok := monitor.NewSnapshot(mocks.GenericBlock(8), mocks.Contract)
	require.True(t, ok)
	require.NoError(t, storage.StoreBulk([]monitor.Snapshot{snap}))

	require.Len(t, lines, 2)
	meta := lines[0]["index"].(map[string]interface{})
	assert.Equal(t, "agritrace_blocks", meta["_index"])
	assert.Equal(t, mocks.TxHash(81), meta["_id"])
	assert.Equal(t, mocks.Sender, lines[1]["from"])
	assert.Equal(t, float64(8), lines[1]["block_number"])
}

func TestElasticStoreBulkError(t *testing.T) {
	storage := newElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"illegal_argument_exception","reason":"bad index"},"status":400}`))
	})
	snap, _ := monitor.NewSnapshot(mocks.GenericBlock(2), mocks.Contract)
	err := storage.StoreBulk([]monitor.Snapshot{snap})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal_argument_exception")
}

func TestElasticSkipsEmpty(t *testing.T) {
	storage := newElastic(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	assert.NoError(t, storage.StoreBulk(nil))
}
