package mocks

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/kfsoftware/agritrace/pkg/ledger"
)

const (
	Contract = "0x2D485a42fE61e30DF7B44D3268DbE6ca9C858177"
	Stranger = "0x00000000000000000000000000000000000000aa"
	Sender   = "0x627306090abaB3A6e1400e9345bC60c78a8BEf57"
)

type Ledger struct {
	CurrentHeightFunc    func(ctx context.Context) (uint64, error)
	BlockFunc            func(ctx context.Context, height uint64) (*ledger.Block, error)
	TransactionCountFunc func(ctx context.Context, address string) (uint64, error)
	BuildAndSignFunc     func(call ledger.Call, signer *ledger.Signer, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*ledger.SignedTx, error)
	SendFunc             func(ctx context.Context, tx *ledger.SignedTx) (string, error)
	WaitForReceiptFunc   func(ctx context.Context, txHash string) (*ledger.Receipt, error)
}

func (l *Ledger) CurrentHeight(ctx context.Context) (uint64, error) {
	return l.CurrentHeightFunc(ctx)
}

func (l *Ledger) Block(ctx context.Context, height uint64) (*ledger.Block, error) {
	return l.BlockFunc(ctx, height)
}

func (l *Ledger) TransactionCount(ctx context.Context, address string) (uint64, error) {
	return l.TransactionCountFunc(ctx, address)
}

func (l *Ledger) BuildAndSign(call ledger.Call, signer *ledger.Signer, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*ledger.SignedTx, error) {
	return l.BuildAndSignFunc(call, signer, nonce, gasLimit, gasPrice)
}

func (l *Ledger) Send(ctx context.Context, tx *ledger.SignedTx) (string, error) {
	return l.SendFunc(ctx, tx)
}

func (l *Ledger) WaitForReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	return l.WaitForReceiptFunc(ctx, txHash)
}

// Chain is a tiny in-memory ledger backing BaselineLedger: every sent
// transaction is mined into its own block.
type Chain struct {
	mu     sync.Mutex
	nonce  uint64
	height uint64
	Calls  []ledger.Call
	Nonces []uint64
	mined  map[string]uint64
}

func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *Chain) Sent() []ledger.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ledger.Call{}, c.Calls...)
}

// BaselineLedger returns a ledger whose operations all succeed, together with
// the chain that records what was submitted.
func BaselineLedger(t *testing.T) (*Ledger, *Chain) {
	chain := &Chain{height: 100, mined: map[string]uint64{}}
	l := &Ledger{
		CurrentHeightFunc: func(ctx context.Context) (uint64, error) {
			return chain.Height(), nil
		},
		BlockFunc: func(ctx context.Context, height uint64) (*ledger.Block, error) {
			return GenericBlock(height), nil
		},
		TransactionCountFunc: func(ctx context.Context, address string) (uint64, error) {
			chain.mu.Lock()
			defer chain.mu.Unlock()
			return chain.nonce, nil
		},
		BuildAndSignFunc: func(call ledger.Call, signer *ledger.Signer, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*ledger.SignedTx, error) {
			chain.mu.Lock()
			defer chain.mu.Unlock()
			chain.Calls = append(chain.Calls, call)
			chain.Nonces = append(chain.Nonces, nonce)
			return &ledger.SignedTx{Hash: TxHash(nonce)}, nil
		},
		SendFunc: func(ctx context.Context, tx *ledger.SignedTx) (string, error) {
			chain.mu.Lock()
			defer chain.mu.Unlock()
			chain.nonce++
			chain.height++
			chain.mined[tx.Hash] = chain.height
			return tx.Hash, nil
		},
		WaitForReceiptFunc: func(ctx context.Context, txHash string) (*ledger.Receipt, error) {
			chain.mu.Lock()
			defer chain.mu.Unlock()
			height, ok := chain.mined[txHash]
			if !ok {
				t.Errorf("receipt requested for unknown transaction %s", txHash)
				return nil, fmt.Errorf("unknown transaction %s", txHash)
			}
			return &ledger.Receipt{TxHash: txHash, BlockNumber: height}, nil
		},
	}
	return l, chain
}

func TxHash(n uint64) string {
	return fmt.Sprintf("0x%064x", n)
}

func BlockHash(height uint64) string {
	return fmt.Sprintf("0x%064x", height+1<<32)
}

// GenericBlock returns a block holding one transaction to the tracked
// contract and one unrelated transaction.
func GenericBlock(height uint64) *ledger.Block {
	return &ledger.Block{
		Number:    height,
		Hash:      BlockHash(height),
		Timestamp: 1700000000 + height,
		Transactions: []ledger.Transaction{
			{Hash: TxHash(height*10 + 1), From: Sender, To: Contract, Gas: 3000000},
			{Hash: TxHash(height*10 + 2), From: Sender, To: Stranger, Gas: 21000},
		},
	}
}

// EmptyBlock returns a block with no transaction to the tracked contract.
func EmptyBlock(height uint64) *ledger.Block {
	return &ledger.Block{
		Number:    height,
		Hash:      BlockHash(height),
		Timestamp: 1700000000 + height,
		Transactions: []ledger.Transaction{
			{Hash: TxHash(height*10 + 2), From: Sender, To: Stranger, Gas: 21000},
		},
	}
}
