package escrow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/StarShopCr/escrowd/models"
)

func TestValidateProgress(t *testing.T) {
	cases := []struct {
		name    string
		current models.MilestoneStatus
		target  models.MilestoneStatus
		wantErr bool
	}{
		{"pending to ready", models.MilestonePending, models.MilestoneReady, false},
		{"ready to in progress", models.MilestoneReady, models.MilestoneInProgress, false},
		{"in progress to delivered", models.MilestoneInProgress, models.MilestoneDelivered, false},
		{"skip ahead", models.MilestonePending, models.MilestoneDelivered, false},
		{"same status", models.MilestoneDelivered, models.MilestoneDelivered, false},
		{"backward", models.MilestoneDelivered, models.MilestoneReady, true},
		{"target pending", models.MilestoneReady, models.MilestonePending, true},
		{"target approved", models.MilestoneDelivered, models.MilestoneApproved, true},
		{"from approved", models.MilestoneApproved, models.MilestoneDelivered, true},
		{"from released", models.MilestoneReleased, models.MilestoneDelivered, true},
		{"from rejected", models.MilestoneRejected, models.MilestoneReady, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateProgress(tc.current, tc.target)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateApproval(t *testing.T) {
	for _, s := range []models.MilestoneStatus{
		models.MilestonePending,
		models.MilestoneReady,
		models.MilestoneInProgress,
		models.MilestoneDelivered,
	} {
		require.NoError(t, ValidateApproval(s), "progress status %s must be approvable", s)
	}
	for _, s := range []models.MilestoneStatus{
		models.MilestoneApproved,
		models.MilestoneReleased,
		models.MilestoneRejected,
	} {
		require.ErrorIs(t, ValidateApproval(s), ErrInvalidTransition, "settled status %s must refuse approval", s)
	}
}

func TestValidateRelease(t *testing.T) {
	full := decimal.NewFromInt(100)
	half := decimal.NewFromInt(50)

	cases := []struct {
		name      string
		milestone models.MilestoneStatus
		escrow    models.EscrowStatus
		balance   decimal.Decimal
		wantErr   bool
	}{
		{"approved and funded", models.MilestoneApproved, models.EscrowFunded, full, false},
		{"approved and in progress", models.MilestoneApproved, models.EscrowInProgress, full, false},
		{"not approved", models.MilestoneDelivered, models.EscrowFunded, full, true},
		{"already released", models.MilestoneReleased, models.EscrowInProgress, full, true},
		{"rejected", models.MilestoneRejected, models.EscrowFunded, full, true},
		{"escrow pending", models.MilestoneApproved, models.EscrowPending, full, true},
		{"escrow completed", models.MilestoneApproved, models.EscrowCompleted, full, true},
		{"underfunded", models.MilestoneApproved, models.EscrowInProgress, half, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRelease(tc.milestone, tc.escrow, tc.balance, full)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDeriveEscrowStatus(t *testing.T) {
	ms := func(statuses ...models.MilestoneStatus) []models.Milestone {
		out := make([]models.Milestone, len(statuses))
		for i, s := range statuses {
			out[i] = models.Milestone{Status: s}
		}
		return out
	}

	cases := []struct {
		name       string
		current    models.EscrowStatus
		milestones []models.Milestone
		want       models.EscrowStatus
	}{
		{"no milestones keeps current", models.EscrowPending, nil, models.EscrowPending},
		{"nothing settled keeps pending", models.EscrowPending, ms(models.MilestoneReady, models.MilestoneDelivered), models.EscrowPending},
		{"nothing settled keeps funded", models.EscrowFunded, ms(models.MilestonePending, models.MilestonePending), models.EscrowFunded},
		{"approval starts progress", models.EscrowFunded, ms(models.MilestoneApproved, models.MilestonePending), models.EscrowInProgress},
		{"partial release stays in progress", models.EscrowInProgress, ms(models.MilestoneReleased, models.MilestoneDelivered), models.EscrowInProgress},
		{"rejection alone keeps funded", models.EscrowFunded, ms(models.MilestoneRejected, models.MilestonePending), models.EscrowFunded},
		{"all released completes", models.EscrowInProgress, ms(models.MilestoneReleased, models.MilestoneReleased), models.EscrowCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveEscrowStatus(tc.current, tc.milestones))
		})
	}
}
