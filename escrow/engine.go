package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/StarShopCr/escrowd/chain"
	"github.com/StarShopCr/escrowd/models"
	"github.com/StarShopCr/escrowd/notify"
)

// Engine orchestrates every mutation of an escrow account and its
// milestones. Each operation runs inside a single transaction: re-read the
// rows under a write lock, authorize the actor, validate the transition,
// apply the mutation and append an audit event. Concurrent conflicting
// calls serialize on the row lock; the loser re-validates against the
// winner's committed state and fails cleanly.
type Engine struct {
	db    *gorm.DB
	chain chain.Adapter
	sink  notify.Sink
	log   *slog.Logger
	now   func() time.Time
}

// Config captures the dependencies required to construct the engine.
type Config struct {
	DB     *gorm.DB
	Chain  chain.Adapter
	Sink   notify.Sink
	Logger *slog.Logger
	Now    func() time.Time
}

// New constructs a fund-release engine.
func New(cfg Config) *Engine {
	e := &Engine{
		db:    cfg.DB,
		chain: cfg.Chain,
		sink:  cfg.Sink,
		log:   cfg.Logger,
		now:   cfg.Now,
	}
	if e.sink == nil {
		e.sink = notify.LogSink{Logger: cfg.Logger}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// MilestoneSpec describes one milestone at escrow creation time.
type MilestoneSpec struct {
	Title  string          `json:"title"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateInput seeds a new escrow account from an accepted offer.
type CreateInput struct {
	OfferID       string
	BuyerID       string
	SellerID      string
	FundingSigner string
	TotalAmount   decimal.Decimal
	Milestones    []MilestoneSpec
}

// CreateEscrow creates the escrow account together with its full milestone
// set in one atomic write. An offer can carry at most one escrow.
func (e *Engine) CreateEscrow(ctx context.Context, input CreateInput) (*models.EscrowAccount, error) {
	offerID := strings.TrimSpace(input.OfferID)
	buyerID := strings.TrimSpace(input.BuyerID)
	sellerID := strings.TrimSpace(input.SellerID)
	if offerID == "" || buyerID == "" || sellerID == "" {
		return nil, fmt.Errorf("%w: offerId, buyerId and sellerId are required", ErrInvalidArgument)
	}
	if buyerID == sellerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", ErrInvalidArgument)
	}
	signer, err := chain.NormalizeSigner(input.FundingSigner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if input.TotalAmount.Sign() < 0 {
		return nil, fmt.Errorf("%w: total amount must be non-negative", ErrInvalidArgument)
	}
	if len(input.Milestones) == 0 {
		return nil, fmt.Errorf("%w: at least one milestone is required", ErrInvalidArgument)
	}
	sum := decimal.Zero
	for i, spec := range input.Milestones {
		if spec.Amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: milestone %d amount must be non-negative", ErrInvalidArgument, i+1)
		}
		sum = sum.Add(spec.Amount)
	}
	if !sum.Equal(input.TotalAmount) {
		return nil, fmt.Errorf("%w: milestone amounts %s do not sum to total %s", ErrInvalidArgument, sum, input.TotalAmount)
	}

	now := e.now()
	esc := models.EscrowAccount{
		ID:             uuid.New(),
		OfferID:        offerID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		FundingSigner:  signer,
		TotalAmount:    input.TotalAmount,
		ReleasedAmount: decimal.Zero,
		Status:         models.EscrowPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, spec := range input.Milestones {
		esc.Milestones = append(esc.Milestones, models.Milestone{
			ID:              uuid.New(),
			EscrowAccountID: esc.ID,
			Sequence:        i + 1,
			Title:           strings.TrimSpace(spec.Title),
			Amount:          spec.Amount,
			Status:          models.MilestonePending,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EscrowAccount{}).Where("offer_id = ?", offerID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: escrow already exists for offer %s", ErrConflict, offerID)
		}
		if err := tx.Create(&esc).Error; err != nil {
			return err
		}
		return e.appendAudit(tx, esc.ID, nil, "system", "escrow.created", fmt.Sprintf("offer=%s total=%s milestones=%d", offerID, esc.TotalAmount, len(esc.Milestones)))
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, newEscrowEvent(EventTypeEscrowCreated, &esc, "system"))
	return &esc, nil
}

// GetByOffer returns the escrow for an offer, visible only to its parties.
func (e *Engine) GetByOffer(ctx context.Context, offerID, requesterID string) (*models.EscrowAccount, error) {
	var esc models.EscrowAccount
	err := e.db.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		First(&esc, "offer_id = ?", strings.TrimSpace(offerID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no escrow for offer %s", ErrNotFound, offerID)
		}
		return nil, err
	}
	if err := Authorize(OpRead, requesterID, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// FundResult reports the outcome of a funding operation.
type FundResult struct {
	FundingTxID uuid.UUID           `json:"fundingTxId"`
	TxHash      string              `json:"txHash"`
	Balance     decimal.Decimal     `json:"balance"`
	Status      models.EscrowStatus `json:"status"`
}

// Fund validates the signer, obtains a settlement reference from the chain
// adapter and appends a funding transaction to the ledger. The escrow flips
// to FUNDED once the folded balance covers the total; partial funding leaves
// it PENDING. A replay carrying an already recorded settlement reference is
// answered with the original ledger row.
func (e *Engine) Fund(ctx context.Context, escrowID uuid.UUID, signer string, amount decimal.Decimal) (*FundResult, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: funding amount must be positive", ErrInvalidArgument)
	}
	normalized, err := chain.NormalizeSigner(signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var esc models.EscrowAccount
	if err := e.db.WithContext(ctx).First(&esc, "id = ?", escrowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: escrow %s", ErrNotFound, escrowID)
		}
		return nil, err
	}
	if err := Authorize(OpFund, normalized, &esc); err != nil {
		return nil, err
	}

	// The settlement submission happens before the ledger write: a failed
	// submission must leave no ledger row behind.
	txHash, err := e.chain.SubmitFunding(ctx, escrowID.String(), normalized, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	var result FundResult
	var funded bool
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&esc, "id = ?", escrowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: escrow %s", ErrNotFound, escrowID)
			}
			return err
		}

		var existing models.FundingTransaction
		switch err := tx.First(&existing, "tx_hash = ?", txHash).Error; {
		case err == nil:
			// Replay of an already settled reference: answer with the
			// original row, no second ledger entry.
			balance, err := e.ledgerBalance(tx, esc.ID)
			if err != nil {
				return err
			}
			result = FundResult{FundingTxID: existing.ID, TxHash: existing.TxHash, Balance: balance, Status: esc.Status}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		row := models.FundingTransaction{
			ID:              uuid.New(),
			EscrowAccountID: esc.ID,
			Amount:          amount,
			TxHash:          txHash,
			CreatedAt:       e.now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		balance, err := e.ledgerBalance(tx, esc.ID)
		if err != nil {
			return err
		}
		if esc.Status == models.EscrowPending && balance.Cmp(esc.TotalAmount) >= 0 {
			esc.Status = models.EscrowFunded
			esc.UpdatedAt = e.now()
			if err := tx.Save(&esc).Error; err != nil {
				return err
			}
			funded = true
		}
		result = FundResult{FundingTxID: row.ID, TxHash: row.TxHash, Balance: balance, Status: esc.Status}
		return e.appendAudit(tx, esc.ID, nil, normalized, "escrow.funding.recorded", fmt.Sprintf("amount=%s tx=%s balance=%s", amount, txHash, balance))
	})
	if err != nil {
		return nil, err
	}

	if funded {
		e.emit(ctx, newEscrowEvent(EventTypeEscrowFunded, &esc, normalized))
	}
	return &result, nil
}

// AdvanceProgress moves a milestone forward through the seller progress
// states READY, IN_PROGRESS and DELIVERED. Requesting the current status
// again is a no-op success.
func (e *Engine) AdvanceProgress(ctx context.Context, escrowID, milestoneID uuid.UUID, actorID string, target models.MilestoneStatus) (*models.Milestone, error) {
	var snapshot models.Milestone
	var changed bool
	var esc models.EscrowAccount
	err := e.withMilestoneTx(ctx, escrowID, milestoneID, OpAdvance, actorID, func(tx *gorm.DB, escrow *models.EscrowAccount, m *models.Milestone) error {
		if err := ValidateProgress(m.Status, target); err != nil {
			return err
		}
		if m.Status == target {
			snapshot = *m
			return nil
		}
		m.Status = target
		m.UpdatedAt = e.now()
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		snapshot = *m
		esc = *escrow
		changed = true
		return e.appendAudit(tx, escrow.ID, &m.ID, actorID, "milestone."+strings.ToLower(string(target)), "")
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.emit(ctx, newMilestoneEvent(EventTypeMilestoneProgress, &esc, milestoneID, &snapshot, actorID))
	}
	return &snapshot, nil
}

// Approve records buyer approval of a milestone, unlocking its release.
func (e *Engine) Approve(ctx context.Context, escrowID, milestoneID uuid.UUID, actorID, notes string) (*models.Milestone, error) {
	return e.settle(ctx, escrowID, milestoneID, OpApprove, actorID, notes)
}

// Reject marks a milestone as rejected; the state is absorbing and the
// held amount stays in escrow for external dispute handling.
func (e *Engine) Reject(ctx context.Context, escrowID, milestoneID uuid.UUID, actorID, notes string) (*models.Milestone, error) {
	return e.settle(ctx, escrowID, milestoneID, OpReject, actorID, notes)
}

func (e *Engine) settle(ctx context.Context, escrowID, milestoneID uuid.UUID, op Operation, actorID, notes string) (*models.Milestone, error) {
	var snapshot models.Milestone
	var esc models.EscrowAccount
	err := e.withMilestoneTx(ctx, escrowID, milestoneID, op, actorID, func(tx *gorm.DB, escrow *models.EscrowAccount, m *models.Milestone) error {
		if err := ValidateApproval(m.Status); err != nil {
			return err
		}
		now := e.now()
		if op == OpApprove {
			m.Status = models.MilestoneApproved
			m.BuyerApproved = true
			m.ApprovedAt = &now
		} else {
			m.Status = models.MilestoneRejected
		}
		m.Notes = strings.TrimSpace(notes)
		m.UpdatedAt = now
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		if err := e.recomputeStatus(tx, escrow, now); err != nil {
			return err
		}
		snapshot = *m
		esc = *escrow
		return e.appendAudit(tx, escrow.ID, &m.ID, actorID, "milestone."+string(op), m.Notes)
	})
	if err != nil {
		return nil, err
	}
	eventType := EventTypeMilestoneApproved
	if op == OpReject {
		eventType = EventTypeMilestoneRejected
	}
	e.emit(ctx, newMilestoneEvent(eventType, &esc, milestoneID, &snapshot, actorID))
	return &snapshot, nil
}

// ReleaseResult reports the outcome of a fund release.
type ReleaseResult struct {
	Milestone     models.Milestone     `json:"milestone"`
	Escrow        models.EscrowAccount `json:"escrow"`
	TotalReleased decimal.Decimal      `json:"totalReleased"`
}

// Release pays out an approved milestone to the seller. The milestone and
// its parent escrow are mutated in the same transaction, so the released
// total can never drift from the sum of released milestones and a second
// concurrent release observes RELEASED and fails the guard.
func (e *Engine) Release(ctx context.Context, escrowID, milestoneID uuid.UUID, actorID string) (*ReleaseResult, error) {
	var result ReleaseResult
	err := e.withMilestoneTx(ctx, escrowID, milestoneID, OpRelease, actorID, func(tx *gorm.DB, escrow *models.EscrowAccount, m *models.Milestone) error {
		balance, err := e.ledgerBalance(tx, escrow.ID)
		if err != nil {
			return err
		}
		if err := ValidateRelease(m.Status, escrow.Status, balance, escrow.TotalAmount); err != nil {
			return err
		}
		now := e.now()
		m.Status = models.MilestoneReleased
		m.ReleasedAt = &now
		m.UpdatedAt = now
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		escrow.ReleasedAmount = escrow.ReleasedAmount.Add(m.Amount)
		if err := e.recomputeStatus(tx, escrow, now); err != nil {
			return err
		}
		result = ReleaseResult{Milestone: *m, Escrow: *escrow, TotalReleased: escrow.ReleasedAmount}
		return e.appendAudit(tx, escrow.ID, &m.ID, actorID, "milestone.released", fmt.Sprintf("amount=%s totalReleased=%s", m.Amount, escrow.ReleasedAmount))
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, newMilestoneEvent(EventTypeMilestoneReleased, &result.Escrow, milestoneID, &result.Milestone, actorID))
	if result.Escrow.Status == models.EscrowCompleted {
		e.emit(ctx, newEscrowEvent(EventTypeEscrowCompleted, &result.Escrow, actorID))
	}
	return &result, nil
}

// withMilestoneTx is the shared transactional shape of every milestone
// mutation: lock the escrow, lock the milestone, authorize, then hand off to
// the operation body. Authorization runs before any state validation so an
// unauthorized caller learns nothing about the milestone's state.
func (e *Engine) withMilestoneTx(ctx context.Context, escrowID, milestoneID uuid.UUID, op Operation, actorID string, fn func(tx *gorm.DB, esc *models.EscrowAccount, m *models.Milestone) error) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var esc models.EscrowAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&esc, "id = ?", escrowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: escrow %s", ErrNotFound, escrowID)
			}
			return err
		}
		if err := Authorize(op, actorID, &esc); err != nil {
			return err
		}
		var m models.Milestone
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ? AND escrow_account_id = ?", milestoneID, esc.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: milestone %s on escrow %s", ErrNotFound, milestoneID, escrowID)
			}
			return err
		}
		return fn(tx, &esc, &m)
	})
}

// recomputeStatus re-derives the escrow status from the full milestone set
// and persists the account row.
func (e *Engine) recomputeStatus(tx *gorm.DB, escrow *models.EscrowAccount, now time.Time) error {
	var milestones []models.Milestone
	if err := tx.Where("escrow_account_id = ?", escrow.ID).Order("sequence ASC").Find(&milestones).Error; err != nil {
		return err
	}
	escrow.Status = DeriveEscrowStatus(escrow.Status, milestones)
	escrow.UpdatedAt = now
	return tx.Save(escrow).Error
}

func (e *Engine) ledgerBalance(tx *gorm.DB, escrowID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.Model(&models.FundingTransaction{}).
		Where("escrow_account_id = ?", escrowID).
		Select("COALESCE(SUM(amount),0)").
		Scan(&balance).Error
	return balance, err
}

func (e *Engine) appendAudit(tx *gorm.DB, escrowID uuid.UUID, milestoneID *uuid.UUID, actor, action, details string) error {
	event := models.AuditEvent{
		ID:              uuid.New(),
		EscrowAccountID: escrowID,
		MilestoneID:     milestoneID,
		ActorID:         actor,
		Action:          action,
		Details:         details,
		CreatedAt:       e.now(),
	}
	return tx.Create(&event).Error
}

// emit hands the event to the notification sink. Sink failures are logged
// and swallowed: the financial transaction has already committed.
func (e *Engine) emit(ctx context.Context, evt notify.Event) {
	evt.OccurredAt = e.now()
	if err := e.sink.Deliver(context.WithoutCancel(ctx), evt); err != nil {
		e.log.Warn("notification delivery failed", "type", evt.Type, "escrow_id", evt.EscrowID, "err", err)
	}
}
