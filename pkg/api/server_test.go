package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kfsoftware/agritrace/pkg/api"
	"github.com/kfsoftware/agritrace/pkg/batch"
	"github.com/kfsoftware/agritrace/pkg/failure"
	"github.com/kfsoftware/agritrace/pkg/ledger"
	"github.com/kfsoftware/agritrace/pkg/lifecycle"
	"github.com/kfsoftware/agritrace/pkg/mocks"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/kfsoftware/agritrace/pkg/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blocksMock struct {
	snaps []monitor.Snapshot
}

func (b *blocksMock) Recent() []monitor.Snapshot {
	return b.snaps
}

func (b *blocksMock) FindTransaction(txHash string) (monitor.Snapshot, bool) {
	for _, snap := range b.snaps {
		if snap.Contains(txHash) {
			return snap, true
		}
	}
	return monitor.Snapshot{}, false
}

type env struct {
	client *mocks.Ledger
	blocks *blocksMock
	server *api.Server
}

func newEnv(t *testing.T) *env {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	backend := store.NewBadgerBackend(db)
	t.Cleanup(func() { backend.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	client, _ := mocks.BaselineLedger(t)
	ctrl := lifecycle.NewController(
		store.NewBatchStore(backend),
		ledger.NewSubmitter(client, ledger.SignerFromKey(key), ledger.WithConfirmTimeout(time.Second)),
	)
	blocks := &blocksMock{}
	return &env{
		client: client,
		blocks: blocks,
		server: api.NewServer(ctrl, blocks, nil),
	}
}

func (e *env) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

const createBody = `{"origin":"Mysore","farm":"GreenFarm-001","exporter":"ABC Exports","ipfsHash":"Qm1234561234","temperature":21.5}`

func TestCreateAndGet(t *testing.T) {
	e := newEnv(t)
	rec, payload := e.do(t, http.MethodPost, "/batches", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", payload["id"])
	assert.Equal(t, batch.StatusCreated, payload["status"])
	assert.Equal(t, mocks.TxHash(0), payload["tx_hash"])

	rec, payload = e.do(t, http.MethodGet, "/batches/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Qm1234561234", payload["ipfsHash"])
	assert.Equal(t, 21.5, payload["temperature"])
}

func TestErrorPayloads(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   failure.Kind
	}{
		{"missing fields", http.MethodPost, "/batches", `{"origin":"Mysore"}`, http.StatusBadRequest, failure.KindValidation},
		{"malformed body", http.MethodPost, "/batches", `{"origin":`, http.StatusBadRequest, failure.KindValidation},
		{"unknown batch", http.MethodGet, "/batches/9", "", http.StatusNotFound, failure.KindNotFound},
		{"unknown batch condition", http.MethodPost, "/batches/9/conditions", `{"role":"farmer"}`, http.StatusNotFound, failure.KindNotFound},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, failure.KindNotFound},
		{"empty bulk", http.MethodPost, "/batches/bulk", `{"batch_ids":[]}`, http.StatusBadRequest, failure.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			rec, payload := e.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.kind), payload["kind"])
			assert.NotEmpty(t, payload["message"])
		})
	}
}

func TestLedgerFaultStatus(t *testing.T) {
	e := newEnv(t)
	e.client.SendFunc = func(ctx context.Context, tx *ledger.SignedTx) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}
	rec, payload := e.do(t, http.MethodPost, "/batches", createBody)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, string(failure.KindLedger), payload["kind"])
	assert.Contains(t, payload["message"], "connection refused")

	rec, payload = e.do(t, http.MethodGet, "/batches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, payload["batches"])
}

func TestDraftBulkAndConditions(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 2; i++ {
		rec, payload := e.do(t, http.MethodPost, "/batches/draft", `{"created_by":"Sita M"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, batch.StatusPending, payload["status"])
	}

	rec, payload := e.do(t, http.MethodPost, "/batches/bulk", `{"batch_ids":["1","2","7"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Created 2 successful transactions", payload["message"])
	assert.Equal(t, float64(2), payload["succeeded"])
	assert.Equal(t, float64(1), payload["failed"])
	results := payload["results"].([]interface{})
	require.Len(t, results, 3)
	assert.NotNil(t, results[2].(map[string]interface{})["error"])

	rec, payload = e.do(t, http.MethodPost, "/batches/2/conditions", `{"role":"retailer","user":"Lakshmi R","color":"Rotten"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, string(batch.VerdictRejected), payload["status"])
	assert.Equal(t, []interface{}{"Bad color"}, payload["reasons"])

	rec, payload = e.do(t, http.MethodGet, "/batches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["batches"], 2)
	assert.Len(t, payload["conditions"], 1)
}

func TestUpdateStatusRoute(t *testing.T) {
	e := newEnv(t)
	rec, _ := e.do(t, http.MethodPost, "/batches", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, payload := e.do(t, http.MethodPut, "/batches/1/status", `{"status":"Delivered","ipfsHash":"QmX","color":"Green","temperature":19}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delivered", payload["status"])
	assert.Equal(t, "QmX", payload["ipfsHash"])
}

func TestTraceAndBlocks(t *testing.T) {
	e := newEnv(t)
	rec, _ := e.do(t, http.MethodPost, "/batches", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, payload := e.do(t, http.MethodGet, "/trace/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, payload["block"])

	e.blocks.snaps = []monitor.Snapshot{{
		BlockNumber:  101,
		BlockHash:    mocks.BlockHash(101),
		Transactions: []monitor.RelevantTransaction{{TxHash: mocks.TxHash(0), From: mocks.Sender, GasUsed: 3000000}},
	}}
	rec, payload = e.do(t, http.MethodGet, "/trace/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	block := payload["block"].(map[string]interface{})
	assert.Equal(t, float64(101), block["block_number"])

	rec, payload = e.do(t, http.MethodGet, "/blocks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["blocks"], 1)
}
