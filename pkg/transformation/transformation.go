package transformation

import (
	"sort"
	"strings"
	"time"

	"github.com/kfsoftware/agritrace/pkg/monitor"
)

// Document is one contract transaction flattened for a search index.
type Document struct {
	TXDate      int64
	TXID        string
	BlockNumber uint64
	BlockHash   string
	Data        map[string]interface{}
	PrimaryKey  string
}

type DocumentExtractionResponse struct {
	Documents map[string]*Document
}

const (
	PrimaryKey = "_agritrace_id"
	DateKey    = "_agritrace_date"
	BlockKey   = "_agritrace_block"
)

func merge(ms ...map[string]*Document) map[string]*Document {
	res := map[string]*Document{}
	for _, m := range ms {
		for k, v := range m {
			res[k] = v
		}
	}
	return res
}

// Sorted returns the documents ordered by block, then primary key.
func (r *DocumentExtractionResponse) Sorted() []*Document {
	docs := make([]*Document, 0, len(r.Documents))
	for _, doc := range r.Documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].BlockNumber != docs[j].BlockNumber {
			return docs[i].BlockNumber < docs[j].BlockNumber
		}
		return docs[i].PrimaryKey < docs[j].PrimaryKey
	})
	return docs
}

func SnapshotsToDocuments(snapshots []monitor.Snapshot) *DocumentExtractionResponse {
	response := &DocumentExtractionResponse{
		Documents: map[string]*Document{},
	}
	for _, snap := range snapshots {
		r := SnapshotToDocuments(snap)
		response.Documents = merge(response.Documents, r.Documents)
	}
	return response
}

// SnapshotToDocuments emits one document per relevant transaction, keyed by
// the lower-cased transaction hash so re-exports overwrite.
func SnapshotToDocuments(snap monitor.Snapshot) *DocumentExtractionResponse {
	response := &DocumentExtractionResponse{
		Documents: map[string]*Document{},
	}
	txDateMS := int64(snap.Timestamp) * int64(time.Second/time.Millisecond)
	for _, tx := range snap.Transactions {
		key := strings.ToLower(tx.TxHash)
		data := map[string]interface{}{
			"tx_hash":      tx.TxHash,
			"from":         tx.From,
			"gas_used":     tx.GasUsed,
			"block_number": snap.BlockNumber,
			"block_hash":   snap.BlockHash,
			"real_time":    snap.RealTime,
		}
		data[PrimaryKey] = key
		data[DateKey] = txDateMS
		data[BlockKey] = snap.BlockNumber
		response.Documents[key] = &Document{
			TXDate:      txDateMS,
			TXID:        tx.TxHash,
			BlockNumber: snap.BlockNumber,
			BlockHash:   snap.BlockHash,
			Data:        data,
			PrimaryKey:  key,
		}
	}
	return response
}
