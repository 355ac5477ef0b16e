package ledger

import (
	"context"
	"math/big"
)

const (
	MethodCreateBatch = "createBatch"
	MethodUpdateBatch = "updateBatch"
)

// Call is a state-changing contract invocation.
type Call struct {
	Method string
	Args   []interface{}
}

func CreateBatch(origin, farm, exporter, contentHash string) Call {
	return Call{
		Method: MethodCreateBatch,
		Args:   []interface{}{origin, farm, exporter, contentHash},
	}
}

// UpdateBatch carries the temperature as a decimal string, empty when absent.
func UpdateBatch(id uint64, status, contentHash, color, temperature string) Call {
	return Call{
		Method: MethodUpdateBatch,
		Args:   []interface{}{new(big.Int).SetUint64(id), status, contentHash, color, temperature},
	}
}

type Transaction struct {
	Hash string
	From string
	To   string
	Gas  uint64
}

type Block struct {
	Number       uint64
	Hash         string
	Timestamp    uint64
	Transactions []Transaction
}

// SignedTx is an opaque signed transaction ready to be broadcast.
type SignedTx struct {
	Hash string
	Raw  []byte
	// Payload is the client-specific representation, if any.
	Payload interface{}
}

type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Reverted    bool
}

// Client is the capability this service needs from a ledger node.
type Client interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	Block(ctx context.Context, height uint64) (*Block, error)
	TransactionCount(ctx context.Context, address string) (uint64, error)
	BuildAndSign(call Call, signer *Signer, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*SignedTx, error)
	Send(ctx context.Context, tx *SignedTx) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// Reader is the read-only part of Client used by the chain monitor.
type Reader interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	Block(ctx context.Context, height uint64) (*Block, error)
}
