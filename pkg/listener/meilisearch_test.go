package listener

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kfsoftware/agritrace/pkg/mocks"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/kfsoftware/agritrace/pkg/transformation"
	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeili struct {
	mu        sync.Mutex
	documents []map[string]interface{}
}

func (f *fakeMeili) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/indexes/agritrace" && r.Method == http.MethodGet:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"uid":"agritrace","name":"agritrace","primaryKey":"_agritrace_id"}`))
	case r.URL.Path == "/indexes/agritrace/documents":
		var docs []map[string]interface{}
		body, _ := ioutil.ReadAll(r.Body)
		json.Unmarshal(body, &docs)
		f.mu.Lock()
		f.documents = append(f.documents, docs...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"updateId":1}`))
	case r.URL.Path == "/indexes/agritrace/updates/1":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"processed","updateId":1,"type":{"name":"DocumentsAddition","number":1}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found","errorCode":"not_found"}`))
	}
}

func TestMeilisearchStoreBulk(t *testing.T) {
	fake := &fakeMeili{}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	client := meilisearch.NewClient(meilisearch.Config{Host: ts.URL})
	storage, err := NewMeilisearchStorage(client, "agritrace")
	require.NoError(t, err)

	first, _ := monitor.NewSnapshot(mocks.GenericBlock(4), mocks.Contract)
	second, _ := monitor.NewSnapshot(mocks.GenericBlock(5), mocks.Contract)
	require.NoError(t, storage.StoreBulk([]monitor.Snapshot{first, second}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.documents, 2)
	assert.Equal(t, mocks.TxHash(41), fake.documents[0][transformation.PrimaryKey])
	assert.Equal(t, mocks.TxHash(51), fake.documents[1][transformation.PrimaryKey])
}

func TestMeilisearchSkipsEmpty(t *testing.T) {
	storage := MeilisearchStorage{indexName: "agritrace"}
	assert.NoError(t, storage.StoreBulk(nil))
}
