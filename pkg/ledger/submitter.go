package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/kfsoftware/agritrace/pkg/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var DefaultSubmitterConfig = SubmitterConfig{
	GasLimit:       3000000,
	GasPrice:       new(big.Int).Mul(big.NewInt(20), big.NewInt(params.GWei)),
	ConfirmTimeout: 2 * time.Minute,
}

type SubmitterConfig struct {
	GasLimit uint64
	GasPrice *big.Int
	// ConfirmTimeout bounds the wait for inclusion; zero waits as long as the
	// caller's context allows.
	ConfirmTimeout time.Duration
}

type SubmitterOption func(*SubmitterConfig)

func WithGasLimit(limit uint64) SubmitterOption {
	return func(cfg *SubmitterConfig) {
		cfg.GasLimit = limit
	}
}

func WithGasPrice(price *big.Int) SubmitterOption {
	return func(cfg *SubmitterConfig) {
		cfg.GasPrice = price
	}
}

func WithConfirmTimeout(timeout time.Duration) SubmitterOption {
	return func(cfg *SubmitterConfig) {
		cfg.ConfirmTimeout = timeout
	}
}

// Submitter builds, signs, sends and confirms one transaction at a time for
// the process signing identity.
type Submitter struct {
	client Client
	signer *Signer
	cfg    SubmitterConfig
	// sending covers nonce lookup through broadcast, so two submissions never
	// read the same nonce.
	sending sync.Mutex
}

func NewSubmitter(client Client, signer *Signer, options ...SubmitterOption) *Submitter {
	cfg := DefaultSubmitterConfig
	for _, option := range options {
		option(&cfg)
	}
	return &Submitter{
		client: client,
		signer: signer,
		cfg:    cfg,
	}
}

func (s *Submitter) Address() string {
	return s.signer.Address()
}

// Submit returns the receipt of the confirmed transaction or a *Fault.
func (s *Submitter) Submit(ctx context.Context, call Call) (*Receipt, error) {
	start := time.Now()
	receipt, err := s.submit(ctx, call)
	if err != nil {
		fault := Classify(err)
		metrics.Submissions.WithLabelValues(call.Method, string(fault.Kind)).Inc()
		log.WithFields(log.Fields{
			"method": call.Method,
			"kind":   fault.Kind,
			"tx":     fault.TxHash,
		}).Warnf("Ledger submission failed: %s", fault.Message)
		return nil, fault
	}
	metrics.Submissions.WithLabelValues(call.Method, "confirmed").Inc()
	metrics.ConfirmationSeconds.Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"method": call.Method,
		"tx":     receipt.TxHash,
		"block":  receipt.BlockNumber,
	}).Infof("Transaction confirmed")
	return receipt, nil
}

func (s *Submitter) submit(ctx context.Context, call Call) (*Receipt, error) {
	txHash, err := s.send(ctx, call)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if s.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
		defer cancel()
	}
	receipt, err := s.client.WaitForReceipt(waitCtx, txHash)
	if err != nil {
		fault := Classify(err)
		if waitCtx.Err() == context.DeadlineExceeded {
			fault = &Fault{
				Kind:    FaultTimeout,
				Message: errors.Errorf("no confirmation within %s", s.cfg.ConfirmTimeout).Error(),
			}
		}
		fault.TxHash = txHash
		return nil, fault
	}
	if receipt.Reverted {
		return nil, &Fault{
			Kind:    FaultReverted,
			Message: "execution reverted",
			TxHash:  txHash,
		}
	}
	if receipt.TxHash == "" {
		receipt.TxHash = txHash
	}
	return receipt, nil
}

func (s *Submitter) send(ctx context.Context, call Call) (string, error) {
	s.sending.Lock()
	defer s.sending.Unlock()

	// nonce is never cached across calls
	nonce, err := s.client.TransactionCount(ctx, s.signer.Address())
	if err != nil {
		return "", errors.Wrap(err, "could not get transaction count")
	}
	tx, err := s.client.BuildAndSign(call, s.signer, nonce, s.cfg.GasLimit, s.cfg.GasPrice)
	if err != nil {
		return "", errors.Wrapf(err, "could not build %s transaction", call.Method)
	}
	txHash, err := s.client.Send(ctx, tx)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"method": call.Method,
		"nonce":  nonce,
		"tx":     txHash,
	}).Debugf("Transaction sent")
	return txHash, nil
}
