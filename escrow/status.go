package escrow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/StarShopCr/escrowd/models"
)

// progressRank orders the seller progress states. Settlement states
// (APPROVED, RELEASED, REJECTED) are deliberately absent: once a milestone
// leaves the progress sequence it never re-enters it.
var progressRank = map[models.MilestoneStatus]int{
	models.MilestonePending:    0,
	models.MilestoneReady:      1,
	models.MilestoneInProgress: 2,
	models.MilestoneDelivered:  3,
}

// IsProgressStatus reports whether the status belongs to the seller progress
// sequence PENDING < READY < IN_PROGRESS < DELIVERED.
func IsProgressStatus(s models.MilestoneStatus) bool {
	_, ok := progressRank[s]
	return ok
}

// IsTerminalStatus reports whether the milestone admits no further change.
func IsTerminalStatus(s models.MilestoneStatus) bool {
	return s == models.MilestoneReleased || s == models.MilestoneRejected
}

// ValidateProgress checks a seller-requested progress transition. Forward
// moves within the progress sequence are allowed; requesting the current
// status again is legal (the engine treats it as a no-op); anything backward
// or outside the sequence fails.
func ValidateProgress(current, target models.MilestoneStatus) error {
	targetRank, ok := progressRank[target]
	if !ok || target == models.MilestonePending {
		return fmt.Errorf("%w: %s is not a valid progress target", ErrInvalidTransition, target)
	}
	currentRank, ok := progressRank[current]
	if !ok {
		return fmt.Errorf("%w: cannot advance milestone in status %s", ErrInvalidTransition, current)
	}
	if targetRank < currentRank {
		return fmt.Errorf("%w: cannot move backward from %s to %s", ErrInvalidTransition, current, target)
	}
	return nil
}

// ValidateApproval checks that a milestone can still be approved or rejected.
// Both transitions are only legal from the progress sequence: APPROVED,
// RELEASED and REJECTED are mutually exclusive once reached.
func ValidateApproval(current models.MilestoneStatus) error {
	if IsProgressStatus(current) {
		return nil
	}
	switch current {
	case models.MilestoneApproved:
		return fmt.Errorf("%w: milestone already approved", ErrInvalidTransition)
	case models.MilestoneReleased:
		return fmt.Errorf("%w: milestone already released", ErrInvalidTransition)
	case models.MilestoneRejected:
		return fmt.Errorf("%w: milestone already rejected", ErrInvalidTransition)
	}
	return fmt.Errorf("%w: cannot approve milestone in status %s", ErrInvalidTransition, current)
}

// ValidateRelease checks that funds can be released for the milestone given
// the escrow's standing. Release requires buyer approval and a fully funded
// escrow; the funded balance is the fold of the funding ledger.
func ValidateRelease(milestone models.MilestoneStatus, escrow models.EscrowStatus, balance, total decimal.Decimal) error {
	switch milestone {
	case models.MilestoneReleased:
		return fmt.Errorf("%w: milestone already released", ErrInvalidTransition)
	case models.MilestoneApproved:
	default:
		return fmt.Errorf("%w: milestone not approved for release (status %s)", ErrInvalidTransition, milestone)
	}
	if escrow != models.EscrowFunded && escrow != models.EscrowInProgress {
		return fmt.Errorf("%w: escrow in status %s cannot release funds", ErrInvalidTransition, escrow)
	}
	if balance.Cmp(total) < 0 {
		return fmt.Errorf("%w: escrow not fully funded", ErrInvalidTransition)
	}
	return nil
}

// DeriveEscrowStatus recomputes the escrow status from its milestone set.
// The PENDING/FUNDED standing is owned by the funding ledger and preserved
// until at least one milestone settles; COMPLETED holds exactly when every
// milestone is RELEASED.
func DeriveEscrowStatus(current models.EscrowStatus, milestones []models.Milestone) models.EscrowStatus {
	if len(milestones) == 0 {
		return current
	}
	allReleased := true
	anySettled := false
	for _, m := range milestones {
		switch m.Status {
		case models.MilestoneReleased:
			anySettled = true
		case models.MilestoneApproved:
			anySettled = true
			allReleased = false
		default:
			allReleased = false
		}
	}
	switch {
	case allReleased:
		return models.EscrowCompleted
	case anySettled:
		return models.EscrowInProgress
	default:
		return current
	}
}
