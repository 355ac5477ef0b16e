package ledger

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

type FaultKind string

const (
	FaultUnreachable     FaultKind = "unreachable"
	FaultInsufficientGas FaultKind = "insufficient_gas"
	FaultReverted        FaultKind = "reverted"
	FaultStaleNonce      FaultKind = "stale_nonce"
	FaultTimeout         FaultKind = "timeout"
	FaultRejected        FaultKind = "rejected"
)

// Fault is a typed ledger failure carrying the node's message.
type Fault struct {
	Kind    FaultKind
	Message string
	TxHash  string
}

func (f *Fault) Error() string {
	if f.TxHash != "" {
		return fmt.Sprintf("ledger %s (tx %s): %s", f.Kind, f.TxHash, f.Message)
	}
	return fmt.Sprintf("ledger %s: %s", f.Kind, f.Message)
}

func (f *Fault) Timeout() bool {
	return f.Kind == FaultTimeout
}

var messageKinds = []struct {
	fragment string
	kind     FaultKind
}{
	{"nonce too low", FaultStaleNonce},
	{"nonce too high", FaultStaleNonce},
	{"replacement transaction underpriced", FaultStaleNonce},
	{"already known", FaultStaleNonce},
	{"insufficient funds", FaultInsufficientGas},
	{"intrinsic gas too low", FaultInsufficientGas},
	{"out of gas", FaultInsufficientGas},
	{"gas required exceeds", FaultInsufficientGas},
	{"exceeds block gas limit", FaultInsufficientGas},
	{"revert", FaultReverted},
	{"connection refused", FaultUnreachable},
	{"no such host", FaultUnreachable},
	{"connection reset", FaultUnreachable},
	{"eof", FaultUnreachable},
}

// Classify turns any error returned by a ledger client into a Fault.
func Classify(err error) *Fault {
	if err == nil {
		return nil
	}
	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Fault{Kind: FaultTimeout, Message: err.Error()}
	}
	msg := strings.ToLower(err.Error())
	for _, mk := range messageKinds {
		if strings.Contains(msg, mk.fragment) {
			return &Fault{Kind: mk.kind, Message: err.Error()}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Fault{Kind: FaultUnreachable, Message: err.Error()}
	}
	return &Fault{Kind: FaultRejected, Message: err.Error()}
}
