package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EscrowStatus represents a state in the escrow account lifecycle.
type EscrowStatus string

// Escrow account states.
const (
	EscrowPending    EscrowStatus = "PENDING"
	EscrowFunded     EscrowStatus = "FUNDED"
	EscrowInProgress EscrowStatus = "IN_PROGRESS"
	EscrowCompleted  EscrowStatus = "COMPLETED"
)

// MilestoneStatus represents a state in the milestone workflow.
type MilestoneStatus string

// Milestone states. PENDING through DELIVERED are seller progress states;
// APPROVED, RELEASED and REJECTED are settlement states.
const (
	MilestonePending    MilestoneStatus = "PENDING"
	MilestoneReady      MilestoneStatus = "READY"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneDelivered  MilestoneStatus = "DELIVERED"
	MilestoneApproved   MilestoneStatus = "APPROVED"
	MilestoneReleased   MilestoneStatus = "RELEASED"
	MilestoneRejected   MilestoneStatus = "REJECTED"
)

// EscrowAccount holds a buyer's payment for one accepted offer until the
// seller earns it milestone by milestone. Accounts are created atomically
// with their full milestone set and are never hard-deleted once funded.
type EscrowAccount struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OfferID        string          `gorm:"size:64;uniqueIndex" json:"offerId"`
	BuyerID        string          `gorm:"size:64;index" json:"buyerId"`
	SellerID       string          `gorm:"size:64;index" json:"sellerId"`
	FundingSigner  string          `gorm:"size:64" json:"fundingSigner"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(32,8);not null" json:"totalAmount"`
	ReleasedAmount decimal.Decimal `gorm:"type:numeric(32,8);not null" json:"releasedAmount"`
	Status         EscrowStatus    `gorm:"size:32;index" json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	Milestones []Milestone `gorm:"constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
}

// Milestone is a named, priced slice of the escrowed total, released
// independently upon buyer approval.
type Milestone struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EscrowAccountID uuid.UUID       `gorm:"type:uuid;index" json:"escrowAccountId"`
	Sequence        int             `gorm:"not null" json:"sequence"`
	Title           string          `gorm:"size:255" json:"title"`
	Amount          decimal.Decimal `gorm:"type:numeric(32,8);not null" json:"amount"`
	Status          MilestoneStatus `gorm:"size:32;index" json:"status"`
	BuyerApproved   bool            `json:"buyerApproved"`
	Notes           string          `gorm:"size:512" json:"notes,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	ReleasedAt      *time.Time      `json:"releasedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// FundingTransaction is an append-only ledger row recording money moved into
// an escrow. The escrow balance is the sum of its funding transactions; rows
// are never updated or deleted.
type FundingTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EscrowAccountID uuid.UUID       `gorm:"type:uuid;index" json:"escrowAccountId"`
	Amount          decimal.Decimal `gorm:"type:numeric(32,8);not null" json:"amount"`
	TxHash          string          `gorm:"size:128;uniqueIndex" json:"txHash"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// AuditEvent is the append-only audit trail for escrow mutations. Rows are
// written inside the same transaction as the mutation they describe.
type AuditEvent struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EscrowAccountID uuid.UUID  `gorm:"type:uuid;index"`
	MilestoneID     *uuid.UUID `gorm:"type:uuid;index"`
	ActorID         string     `gorm:"size:64;index"`
	Action          string     `gorm:"size:64"`
	Details         string     `gorm:"type:text"`
	CreatedAt       time.Time
}

// IdempotencyKey stores request idempotency metadata for the HTTP layer.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:255"`
	RequestID string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EscrowAccount{},
		&Milestone{},
		&FundingTransaction{},
		&AuditEvent{},
		&IdempotencyKey{},
	)
}
