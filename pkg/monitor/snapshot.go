package monitor

import (
	"strings"
	"time"

	"github.com/kfsoftware/agritrace/pkg/ledger"
)

const realTimeLayout = "2006-01-02 15:04:05"

type RelevantTransaction struct {
	TxHash  string `json:"tx_hash" yaml:"tx_hash"`
	From    string `json:"from" yaml:"from"`
	GasUsed uint64 `json:"gas_used" yaml:"gas_used"`
}

// Snapshot is a block holding at least one transaction to the tracked contract.
type Snapshot struct {
	BlockNumber  uint64                `json:"block_number" yaml:"block_number"`
	BlockHash    string                `json:"block_hash" yaml:"block_hash"`
	Timestamp    uint64                `json:"timestamp" yaml:"timestamp"`
	RealTime     string                `json:"real_time" yaml:"real_time"`
	Transactions []RelevantTransaction `json:"transactions" yaml:"transactions"`
}

// NewSnapshot filters the block down to the transactions addressed to
// contract. ok is false when none are.
func NewSnapshot(block *ledger.Block, contract string) (Snapshot, bool) {
	snap := Snapshot{
		BlockNumber:  block.Number,
		BlockHash:    block.Hash,
		Timestamp:    block.Timestamp,
		RealTime:     time.Unix(int64(block.Timestamp), 0).UTC().Format(realTimeLayout),
		Transactions: []RelevantTransaction{},
	}
	for _, tx := range block.Transactions {
		if tx.To == "" || !strings.EqualFold(tx.To, contract) {
			continue
		}
		snap.Transactions = append(snap.Transactions, RelevantTransaction{
			TxHash:  tx.Hash,
			From:    tx.From,
			GasUsed: tx.Gas,
		})
	}
	return snap, len(snap.Transactions) > 0
}

func (s Snapshot) Clone() Snapshot {
	s.Transactions = append([]RelevantTransaction{}, s.Transactions...)
	return s
}

func (s Snapshot) Contains(txHash string) bool {
	for _, tx := range s.Transactions {
		if strings.EqualFold(tx.TxHash, txHash) {
			return true
		}
	}
	return false
}
