package escrow

import (
	"github.com/google/uuid"

	"github.com/StarShopCr/escrowd/models"
	"github.com/StarShopCr/escrowd/notify"
)

// Event types emitted to the notification sink.
const (
	EventTypeEscrowCreated     = "escrow.created"
	EventTypeEscrowFunded      = "escrow.funded"
	EventTypeEscrowCompleted   = "escrow.completed"
	EventTypeMilestoneProgress = "escrow.milestone.progressed"
	EventTypeMilestoneApproved = "escrow.milestone.approved"
	EventTypeMilestoneRejected = "escrow.milestone.rejected"
	EventTypeMilestoneReleased = "escrow.milestone.released"
)

func newEscrowEvent(eventType string, esc *models.EscrowAccount, actorID string) notify.Event {
	evt := notify.Event{Type: eventType, ActorID: actorID, Attributes: map[string]string{}}
	if esc == nil {
		return evt
	}
	evt.EscrowID = esc.ID.String()
	evt.Attributes["offerId"] = esc.OfferID
	evt.Attributes["status"] = string(esc.Status)
	evt.Attributes["totalAmount"] = esc.TotalAmount.String()
	evt.Attributes["releasedAmount"] = esc.ReleasedAmount.String()
	return evt
}

func newMilestoneEvent(eventType string, esc *models.EscrowAccount, milestoneID uuid.UUID, m *models.Milestone, actorID string) notify.Event {
	evt := newEscrowEvent(eventType, esc, actorID)
	evt.MilestoneID = milestoneID.String()
	if m != nil {
		evt.Attributes["milestoneStatus"] = string(m.Status)
		evt.Attributes["milestoneAmount"] = m.Amount.String()
	}
	return evt
}
