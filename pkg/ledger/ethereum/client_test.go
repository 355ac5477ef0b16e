package ethereum

import (
	"io/ioutil"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kfsoftware/agritrace/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x2D485a42fE61e30DF7B44D3268DbE6ca9C858177"

func newClient(t *testing.T) *Client {
	c, err := New(nil, contract, big.NewInt(1337))
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadContract(t *testing.T) {
	_, err := New(nil, "not-an-address", big.NewInt(1))
	assert.Error(t, err)
}

func TestABIFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "contract.json")
	require.NoError(t, ioutil.WriteFile(good, []byte(ContractABI), 0644))
	c, err := New(nil, contract, big.NewInt(1), WithABIFile(good))
	require.NoError(t, err)
	_, ok := c.abi.Methods["updateBatch"]
	assert.True(t, ok)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, ioutil.WriteFile(broken, []byte("not an abi"), 0644))
	_, err = New(nil, contract, big.NewInt(1), WithABIFile(broken))
	assert.Error(t, err)

	_, err = New(nil, contract, big.NewInt(1), WithABIFile(filepath.Join(dir, "missing.json")))
	assert.NoError(t, err)
}

func TestBuildAndSign(t *testing.T) {
	c := newClient(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := ledger.SignerFromKey(key)

	gasPrice := big.NewInt(20000000000)
	stx, err := c.BuildAndSign(ledger.CreateBatch("Mysore", "GreenFarm-001", "ABC Exports", "Qm1234"), signer, 7, 3000000, gasPrice)
	require.NoError(t, err)

	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(stx.Raw))
	assert.Equal(t, stx.Hash, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(3000000), tx.Gas())
	assert.Equal(t, 0, gasPrice.Cmp(tx.GasPrice()))
	require.NotNil(t, tx.To())
	assert.True(t, strings.EqualFold(contract, tx.To().Hex()))

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from.Hex())

	method, err := c.abi.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, ledger.MethodCreateBatch, method.Name)
}

func TestBuildUpdateBatch(t *testing.T) {
	c := newClient(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	stx, err := c.BuildAndSign(ledger.UpdateBatch(3, "Retailer Approved", "Qm1", "Green", "21.5"), ledger.SignerFromKey(key), 0, 3000000, big.NewInt(1))
	require.NoError(t, err)
	tx := stx.Payload.(*types.Transaction)

	method, err := c.abi.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, args, 5)
	assert.Equal(t, 0, big.NewInt(3).Cmp(args[0].(*big.Int)))
	assert.Equal(t, "Retailer Approved", args[1])
	assert.Equal(t, "21.5", args[4])
}

func TestBuildUnknownMethod(t *testing.T) {
	c := newClient(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = c.BuildAndSign(ledger.Call{Method: "burn"}, ledger.SignerFromKey(key), 0, 1, big.NewInt(1))
	assert.Error(t, err)
}
