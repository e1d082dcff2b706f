package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestSubmitted = "reimbursement.submitted"
	EventTypeRequestApproved  = "reimbursement.approved"
	EventTypeRequestRejected  = "reimbursement.rejected"
	EventTypeRequestPaid      = "reimbursement.paid"
	EventTypeRequestCancelled = "reimbursement.cancelled"
)

// RequestStatusChangedEvent is published after a workflow transition has
// been durably committed. RequesterID is the notification recipient.
type RequestStatusChangedEvent struct {
	BaseEvent
	RequestID      string `json:"request_id"`
	RequesterID    string `json:"requester_id"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	ActorID        string `json:"actor_id"`
	ActorName      string `json:"actor_name"`
	Note           string `json:"note,omitempty"`
}

func NewRequestStatusChangedEvent(eventType, requestID, requesterID, previousStatus, newStatus, actorID, actorName, note string) *RequestStatusChangedEvent {
	return &RequestStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":      requestID,
				"requester_id":    requesterID,
				"previous_status": previousStatus,
				"new_status":      newStatus,
				"actor_id":        actorID,
				"actor_name":      actorName,
				"note":            note,
			},
		},
		RequestID:      requestID,
		RequesterID:    requesterID,
		PreviousStatus: previousStatus,
		NewStatus:      newStatus,
		ActorID:        actorID,
		ActorName:      actorName,
		Note:           note,
	}
}
