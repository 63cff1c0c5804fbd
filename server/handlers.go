package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/StarShopCr/escrowd/auth"
	"github.com/StarShopCr/escrowd/escrow"
	"github.com/StarShopCr/escrowd/models"
)

// CreateEscrow seeds an escrow account from an accepted offer. System-only.
func (s *Server) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OfferID       string                 `json:"offerId"`
		BuyerID       string                 `json:"buyerId"`
		SellerID      string                 `json:"sellerId"`
		FundingSigner string                 `json:"fundingSigner"`
		TotalAmount   decimal.Decimal        `json:"totalAmount"`
		Milestones    []escrow.MilestoneSpec `json:"milestones"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	esc, err := s.engine.CreateEscrow(r.Context(), escrow.CreateInput{
		OfferID:       req.OfferID,
		BuyerID:       req.BuyerID,
		SellerID:      req.SellerID,
		FundingSigner: req.FundingSigner,
		TotalAmount:   req.TotalAmount,
		Milestones:    req.Milestones,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, esc)
}

// GetEscrowByOffer returns the escrow with its milestones for the buyer or
// the seller on it.
func (s *Server) GetEscrowByOffer(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	esc, err := s.engine.GetByOffer(r.Context(), chi.URLParam(r, "offerID"), claims.Subject)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, esc)
}

// FundEscrow records a funding transfer against the escrow ledger.
func (s *Server) FundEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := s.pathUUID(r, "id")
	if !ok {
		http.Error(w, "invalid escrow id", http.StatusBadRequest)
		return
	}
	var req struct {
		Signer string          `json:"signer"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	result, err := s.engine.Fund(r.Context(), escrowID, req.Signer, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// AdvanceMilestoneProgress moves a milestone through the seller progress
// states.
func (s *Server) AdvanceMilestoneProgress(w http.ResponseWriter, r *http.Request) {
	claims, escrowID, milestoneID, ok := s.milestoneParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	target := models.MilestoneStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	switch target {
	case models.MilestoneReady, models.MilestoneInProgress, models.MilestoneDelivered:
	default:
		http.Error(w, "status must be one of READY, IN_PROGRESS, DELIVERED", http.StatusBadRequest)
		return
	}

	milestone, err := s.engine.AdvanceProgress(r.Context(), escrowID, milestoneID, claims.Subject, target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, milestone)
}

// ApproveMilestone records buyer approval.
func (s *Server) ApproveMilestone(w http.ResponseWriter, r *http.Request) {
	s.settleMilestone(w, r, s.engine.Approve)
}

// RejectMilestone records buyer rejection.
func (s *Server) RejectMilestone(w http.ResponseWriter, r *http.Request) {
	s.settleMilestone(w, r, s.engine.Reject)
}

// ReleaseMilestoneFunds pays out an approved milestone to the seller.
func (s *Server) ReleaseMilestoneFunds(w http.ResponseWriter, r *http.Request) {
	claims, escrowID, milestoneID, ok := s.milestoneParams(w, r)
	if !ok {
		return
	}
	result, err := s.engine.Release(r.Context(), escrowID, milestoneID, claims.Subject)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// milestoneSettler is the shared signature of Engine.Approve and
// Engine.Reject.
type milestoneSettler func(ctx context.Context, escrowID, milestoneID uuid.UUID, actorID, notes string) (*models.Milestone, error)

func (s *Server) settleMilestone(w http.ResponseWriter, r *http.Request, op milestoneSettler) {
	claims, escrowID, milestoneID, ok := s.milestoneParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
	}
	milestone, err := op(r.Context(), escrowID, milestoneID, claims.Subject, req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, milestone)
}

func (s *Server) milestoneParams(w http.ResponseWriter, r *http.Request) (*auth.Claims, uuid.UUID, uuid.UUID, bool) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return nil, uuid.Nil, uuid.Nil, false
	}
	escrowID, ok := s.pathUUID(r, "id")
	if !ok {
		http.Error(w, "invalid escrow id", http.StatusBadRequest)
		return nil, uuid.Nil, uuid.Nil, false
	}
	milestoneID, ok := s.pathUUID(r, "milestoneID")
	if !ok {
		http.Error(w, "invalid milestone id", http.StatusBadRequest)
		return nil, uuid.Nil, uuid.Nil, false
	}
	return claims, escrowID, milestoneID, true
}
