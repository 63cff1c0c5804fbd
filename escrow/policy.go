package escrow

import (
	"fmt"
	"strings"

	"github.com/StarShopCr/escrowd/models"
)

// Operation names a mutating or reading action subject to authorization.
type Operation string

// Operations recognised by the authorization policy.
const (
	OpFund    Operation = "fund"
	OpAdvance Operation = "advance"
	OpApprove Operation = "approve"
	OpReject  Operation = "reject"
	OpRelease Operation = "release"
	OpRead    Operation = "read"
)

// Authorize maps (operation, actor, escrow) to allow or ErrForbidden. It is
// evaluated before any state-machine guard so an unauthorized actor never
// learns whether the requested transition would otherwise have been legal.
func Authorize(op Operation, actorID string, escrow *models.EscrowAccount) error {
	if escrow == nil {
		return fmt.Errorf("%w: no escrow", ErrForbidden)
	}
	actor := strings.TrimSpace(actorID)
	if actor == "" {
		return fmt.Errorf("%w: missing actor", ErrForbidden)
	}
	switch op {
	case OpFund:
		if !strings.EqualFold(actor, escrow.FundingSigner) {
			return fmt.Errorf("%w: signer mismatch", ErrForbidden)
		}
	case OpAdvance, OpRelease:
		if actor != escrow.SellerID {
			return fmt.Errorf("%w: %s requires the seller", ErrForbidden, op)
		}
	case OpApprove, OpReject:
		if actor != escrow.BuyerID {
			return fmt.Errorf("%w: %s requires the buyer", ErrForbidden, op)
		}
	case OpRead:
		if actor != escrow.BuyerID && actor != escrow.SellerID {
			return fmt.Errorf("%w: not a party to this escrow", ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: unknown operation %s", ErrForbidden, op)
	}
	return nil
}
