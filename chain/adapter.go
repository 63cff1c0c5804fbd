// Package chain defines the settlement port for the escrow service. The
// actual transfer of value happens on an external ledger; this service only
// records that a transfer was requested and the settlement reference
// returned for it.
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Adapter submits a funding transfer on behalf of the signer and returns the
// settlement reference (transaction hash). A failed submission aborts the
// funding operation before any ledger row is written.
type Adapter interface {
	SubmitFunding(ctx context.Context, escrowID, signer string, amount decimal.Decimal) (string, error)
}

// NormalizeSigner validates a wallet address and returns its canonical
// checksummed form. Signer comparison throughout the service happens on
// normalized addresses.
func NormalizeSigner(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("invalid signer address %q", addr)
	}
	return common.HexToAddress(trimmed).Hex(), nil
}
