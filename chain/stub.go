package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// StubAdapter produces deterministic settlement references without touching
// a real ledger. Used in tests and local development.
type StubAdapter struct {
	mu    sync.Mutex
	calls int
	// Fail, when set, makes every submission return this error.
	Fail error
}

// NewStubAdapter constructs a stub settlement adapter.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{}
}

// SubmitFunding implements Adapter. The hash is derived from the inputs and
// a per-adapter call counter so repeated submissions get distinct references.
func (s *StubAdapter) SubmitFunding(ctx context.Context, escrowID, signer string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	s.calls++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", escrowID, signer, amount.String(), s.calls)))
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// Calls reports how many submissions succeeded.
func (s *StubAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ErrStubUnavailable is a convenience error for simulating outages.
var ErrStubUnavailable = errors.New("chain: settlement node unavailable")

var _ Adapter = (*StubAdapter)(nil)
