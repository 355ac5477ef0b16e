package ethereum

import (
	"context"
	"io/ioutil"
	"math/big"
	"strings"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/kfsoftware/agritrace/pkg/ledger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ContractABI is the surface of the batch registry contract this service calls.
const ContractABI = `[
  {"type":"function","name":"createBatch","stateMutability":"nonpayable","outputs":[],
   "inputs":[{"name":"origin","type":"string"},{"name":"farm","type":"string"},
             {"name":"exporter","type":"string"},{"name":"ipfsHash","type":"string"}]},
  {"type":"function","name":"updateBatch","stateMutability":"nonpayable","outputs":[],
   "inputs":[{"name":"id","type":"uint256"},{"name":"newStatus","type":"string"},
             {"name":"ipfsHash","type":"string"},{"name":"color","type":"string"},
             {"name":"temperature","type":"string"}]}
]`

var DefaultConfig = Config{
	ABI:          ContractABI,
	PollInterval: time.Second,
}

type Config struct {
	ABI          string
	PollInterval time.Duration
}

type Option func(*Config)

func WithABI(definition string) Option {
	return func(cfg *Config) {
		cfg.ABI = definition
	}
}

// WithABIFile loads the contract ABI from a JSON file; an empty path keeps
// the embedded definition.
func WithABIFile(path string) Option {
	return func(cfg *Config) {
		if path == "" {
			return
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			log.Warnf("Could not read ABI file %s, using embedded ABI: %v", path, err)
			return
		}
		WithABI(string(data))(cfg)
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(cfg *Config) {
		cfg.PollInterval = interval
	}
}

// Client implements ledger.Client against an EVM JSON-RPC node.
type Client struct {
	rpc      *ethclient.Client
	contract common.Address
	abi      abi.ABI
	signer   types.Signer
	interval time.Duration
}

func Dial(ctx context.Context, url string, contract string, options ...Option) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to ledger node %s", url)
	}
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, errors.Wrap(err, "could not get chain id")
	}
	log.Infof("Connected to ledger node %s, chain id=%s", url, chainID)
	return New(rpc, contract, chainID, options...)
}

func New(rpc *ethclient.Client, contract string, chainID *big.Int, options ...Option) (*Client, error) {
	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}
	if !common.IsHexAddress(contract) {
		return nil, errors.Errorf("invalid contract address %q", contract)
	}
	parsed, err := abi.JSON(strings.NewReader(cfg.ABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse contract ABI")
	}
	return &Client{
		rpc:      rpc,
		contract: common.HexToAddress(contract),
		abi:      parsed,
		signer:   types.LatestSignerForChainID(chainID),
		interval: cfg.PollInterval,
	}, nil
}

func (c *Client) Contract() string {
	return c.contract.Hex()
}

func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	return c.rpc.BlockNumber(ctx)
}

func (c *Client) Block(ctx context.Context, height uint64) (*ledger.Block, error) {
	block, err := c.rpc.BlockByNumber(ctx, new(big.Int).SetUint64(height))
	if err != nil {
		return nil, err
	}
	result := &ledger.Block{
		Number:       block.NumberU64(),
		Hash:         block.Hash().Hex(),
		Timestamp:    block.Time(),
		Transactions: make([]ledger.Transaction, 0, len(block.Transactions())),
	}
	for _, tx := range block.Transactions() {
		item := ledger.Transaction{
			Hash: tx.Hash().Hex(),
			Gas:  tx.Gas(),
		}
		if tx.To() != nil {
			item.To = tx.To().Hex()
		}
		from, err := types.Sender(c.signer, tx)
		if err == nil {
			item.From = from.Hex()
		}
		result.Transactions = append(result.Transactions, item)
	}
	return result, nil
}

func (c *Client) TransactionCount(ctx context.Context, address string) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, common.HexToAddress(address))
}

func (c *Client) BuildAndSign(call ledger.Call, signer *ledger.Signer, nonce uint64, gasLimit uint64, gasPrice *big.Int) (*ledger.SignedTx, error) {
	data, err := c.abi.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not pack %s arguments", call.Method)
	}
	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, c.signer, signer.Key())
	if err != nil {
		return nil, errors.Wrap(err, "could not sign transaction")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &ledger.SignedTx{
		Hash:    signed.Hash().Hex(),
		Raw:     raw,
		Payload: signed,
	}, nil
}

func (c *Client) Send(ctx context.Context, stx *ledger.SignedTx) (string, error) {
	tx, ok := stx.Payload.(*types.Transaction)
	if !ok {
		tx = new(types.Transaction)
		err := tx.UnmarshalBinary(stx.Raw)
		if err != nil {
			return "", errors.Wrap(err, "could not decode raw transaction")
		}
	}
	err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// WaitForReceipt polls until the transaction is included in a block or the
// context ends.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, hash)
		if err == nil {
			return &ledger.Receipt{
				TxHash:      receipt.TxHash.Hex(),
				BlockNumber: receipt.BlockNumber.Uint64(),
				Reverted:    receipt.Status == types.ReceiptStatusFailed,
			}, nil
		}
		if !errors.Is(err, geth.NotFound) {
			return nil, err
		}
		log.Debugf("Transaction %s not mined yet", txHash)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}
