package reimbursement

import (
	"time"

	reimbursementDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/reimbursement"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

type ExpenseType string

const (
	ExpenseTypeFuel      ExpenseType = "fuel"
	ExpenseTypeFood      ExpenseType = "food"
	ExpenseTypeTransport ExpenseType = "transport"
	ExpenseTypeLodging   ExpenseType = "lodging"
	ExpenseTypeSupplies  ExpenseType = "supplies"
	ExpenseTypeOther     ExpenseType = "other"
)

func (t ExpenseType) Valid() bool {
	switch t {
	case ExpenseTypeFuel, ExpenseTypeFood, ExpenseTypeTransport, ExpenseTypeLodging, ExpenseTypeSupplies, ExpenseTypeOther:
		return true
	}
	return false
}

type Operation string

const (
	OperationUpdate  Operation = "update"
	OperationSubmit  Operation = "submit"
	OperationApprove Operation = "approve"
	OperationReject  Operation = "reject"
	OperationPay     Operation = "pay"
	OperationCancel  Operation = "cancel"
	OperationDelete  Operation = "delete"
)

// allowedFrom is the transition table. Cancellation from Approved is
// permitted: an approved but unpaid request can still be withdrawn.
var allowedFrom = map[Operation][]Status{
	OperationUpdate:  {StatusDraft},
	OperationSubmit:  {StatusDraft},
	OperationApprove: {StatusPendingApproval},
	OperationReject:  {StatusPendingApproval},
	OperationPay:     {StatusApproved},
	OperationCancel:  {StatusDraft, StatusPendingApproval, StatusApproved},
	OperationDelete:  {StatusDraft},
}

// TransitionAllowed is a pure table lookup: can op run on a request
// currently in status current.
func TransitionAllowed(current Status, op Operation) bool {
	for _, s := range allowedFrom[op] {
		if s == current {
			return true
		}
	}
	return false
}

type Request struct {
	ID                 string           `json:"id"`
	RequesterID        string           `json:"requester_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	ExpenseType        ExpenseType      `json:"expense_type"`
	RequestedAmount    decimal.Decimal  `json:"requested_amount"`
	ApprovedAmount     *decimal.Decimal `json:"approved_amount,omitempty"`
	ExpenseDate        time.Time        `json:"expense_date"`
	Status             Status           `json:"status"`
	ApprovalNote       *string          `json:"approval_note,omitempty"`
	PaymentNote        *string          `json:"payment_note,omitempty"`
	CancellationReason *string          `json:"cancellation_reason,omitempty"`
	ApprovedBy         *string          `json:"approved_by,omitempty"`
	PaidBy             *string          `json:"paid_by,omitempty"`
	ApprovedAt         *time.Time       `json:"approved_at,omitempty"`
	PaidAt             *time.Time       `json:"paid_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	Active             bool             `json:"active"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`

	Attachments []Attachment         `json:"attachments,omitempty"`
	History     []StatusHistoryEntry `json:"history,omitempty"`
}

type Attachment struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"storage_path,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type StatusHistoryEntry struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	ActorID        string    `json:"actor_id"`
	ActorName      string    `json:"actor_name,omitempty"`
	Note           string    `json:"note,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}

func (r *Request) IsEditable() bool {
	return TransitionAllowed(r.Status, OperationUpdate)
}

func (r *Request) CanBeSubmitted() bool {
	return TransitionAllowed(r.Status, OperationSubmit)
}

func (r *Request) CanBeApproved() bool {
	return TransitionAllowed(r.Status, OperationApprove)
}

func (r *Request) CanBePaid() bool {
	return TransitionAllowed(r.Status, OperationPay)
}

func (r *Request) CanBeCancelled() bool {
	return TransitionAllowed(r.Status, OperationCancel)
}

func (r *Request) Submit() {
	r.Status = StatusPendingApproval
	r.UpdatedAt = time.Now()
}

func (r *Request) Approve(amount decimal.Decimal, note, approverID string) {
	now := time.Now()
	r.Status = StatusApproved
	r.ApprovedAmount = &amount
	r.ApprovedBy = &approverID
	r.ApprovedAt = &now
	if note != "" {
		r.ApprovalNote = &note
	}
	r.UpdatedAt = now
}

// Reject reuses the approval columns for the rejecting actor and reason.
func (r *Request) Reject(reason, rejecterID string) {
	now := time.Now()
	r.Status = StatusRejected
	r.ApprovedBy = &rejecterID
	r.ApprovedAt = &now
	r.ApprovalNote = &reason
	r.UpdatedAt = now
}

func (r *Request) Pay(note, payerID string) {
	now := time.Now()
	r.Status = StatusPaid
	r.PaidBy = &payerID
	r.PaidAt = &now
	if note != "" {
		r.PaymentNote = &note
	}
	r.UpdatedAt = now
}

func (r *Request) Cancel(reason string) {
	now := time.Now()
	r.Status = StatusCancelled
	r.CancelledAt = &now
	if reason != "" {
		r.CancellationReason = &reason
	}
	r.UpdatedAt = now
}

func (r *Request) Deactivate() {
	r.Active = false
	r.UpdatedAt = time.Now()
}

func ToDataModel(r *Request) *reimbursementDatamodel.Request {
	dm := &reimbursementDatamodel.Request{
		ID:                 r.ID,
		RequesterID:        r.RequesterID,
		Title:              r.Title,
		Description:        r.Description,
		ExpenseType:        string(r.ExpenseType),
		RequestedAmount:    r.RequestedAmount,
		ExpenseDate:        r.ExpenseDate,
		Status:             string(r.Status),
		ApprovalNote:       r.ApprovalNote,
		PaymentNote:        r.PaymentNote,
		CancellationReason: r.CancellationReason,
		ApprovedBy:         r.ApprovedBy,
		PaidBy:             r.PaidBy,
		ApprovedAt:         r.ApprovedAt,
		PaidAt:             r.PaidAt,
		CancelledAt:        r.CancelledAt,
		Active:             r.Active,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.ApprovedAmount != nil {
		dm.ApprovedAmount = decimal.NewNullDecimal(*r.ApprovedAmount)
	}
	return dm
}

func FromDataModel(dm *reimbursementDatamodel.Request) *Request {
	r := &Request{
		ID:                 dm.ID,
		RequesterID:        dm.RequesterID,
		Title:              dm.Title,
		Description:        dm.Description,
		ExpenseType:        ExpenseType(dm.ExpenseType),
		RequestedAmount:    dm.RequestedAmount,
		ExpenseDate:        dm.ExpenseDate,
		Status:             Status(dm.Status),
		ApprovalNote:       dm.ApprovalNote,
		PaymentNote:        dm.PaymentNote,
		CancellationReason: dm.CancellationReason,
		ApprovedBy:         dm.ApprovedBy,
		PaidBy:             dm.PaidBy,
		ApprovedAt:         dm.ApprovedAt,
		PaidAt:             dm.PaidAt,
		CancelledAt:        dm.CancelledAt,
		Active:             dm.Active,
		CreatedAt:          dm.CreatedAt,
		UpdatedAt:          dm.UpdatedAt,
	}
	if dm.ApprovedAmount.Valid {
		amount := dm.ApprovedAmount.Decimal
		r.ApprovedAmount = &amount
	}
	for _, a := range dm.Attachments {
		r.Attachments = append(r.Attachments, AttachmentFromDataModel(&a))
	}
	for _, h := range dm.History {
		r.History = append(r.History, HistoryEntryFromDataModel(&h))
	}
	return r
}

func FromDataModelSlice(requests []*reimbursementDatamodel.Request) []*Request {
	result := make([]*Request, len(requests))
	for i, dm := range requests {
		result[i] = FromDataModel(dm)
	}
	return result
}

func AttachmentFromDataModel(dm *reimbursementDatamodel.Attachment) Attachment {
	return Attachment{
		ID:          dm.ID,
		RequestID:   dm.RequestID,
		FileName:    dm.FileName,
		ContentType: dm.ContentType,
		SizeBytes:   dm.SizeBytes,
		StoragePath: dm.StoragePath,
		Active:      dm.Active,
		CreatedAt:   dm.CreatedAt,
	}
}

func HistoryEntryFromDataModel(dm *reimbursementDatamodel.StatusHistoryEntry) StatusHistoryEntry {
	return StatusHistoryEntry{
		ID:             dm.ID,
		RequestID:      dm.RequestID,
		PreviousStatus: Status(dm.PreviousStatus),
		NewStatus:      Status(dm.NewStatus),
		ActorID:        dm.ActorID,
		ActorName:      dm.ActorName,
		Note:           dm.Note,
		ChangedAt:      dm.ChangedAt,
	}
}
