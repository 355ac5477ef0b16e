package ledger

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer is the single signing identity shared by the process. It is built
// once at startup and handed to whatever needs to submit transactions.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signing key")
	}
	return SignerFromKey(key), nil
}

func SignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *Signer) Address() string {
	return s.address.Hex()
}

func (s *Signer) Key() *ecdsa.PrivateKey {
	return s.key
}
