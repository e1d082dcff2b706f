package reimbursement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Request struct {
	ID                 string              `gorm:"primaryKey;type:varchar(36)"`
	RequesterID        string              `gorm:"column:requester_id;type:varchar(36);not null;index"`
	Title              string              `gorm:"column:title;not null"`
	Description        string              `gorm:"column:description"`
	ExpenseType        string              `gorm:"column:expense_type;not null;index"`
	RequestedAmount    decimal.Decimal     `gorm:"column:requested_amount;type:numeric(14,2);not null"`
	ApprovedAmount     decimal.NullDecimal `gorm:"column:approved_amount;type:numeric(14,2)"`
	ExpenseDate        time.Time           `gorm:"column:expense_date;type:date;not null"`
	Status             string              `gorm:"column:status;not null;default:draft;index"`
	ApprovalNote       *string             `gorm:"column:approval_note"`
	PaymentNote        *string             `gorm:"column:payment_note"`
	CancellationReason *string             `gorm:"column:cancellation_reason"`
	ApprovedBy         *string             `gorm:"column:approved_by;type:varchar(36)"`
	PaidBy             *string             `gorm:"column:paid_by;type:varchar(36)"`
	ApprovedAt         *time.Time          `gorm:"column:approved_at"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	Active             bool                `gorm:"column:active;not null;default:true;index"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Attachments []Attachment         `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	History     []StatusHistoryEntry `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

func (Request) TableName() string {
	return "reimbursement_requests"
}

type Attachment struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	RequestID   string    `gorm:"column:request_id;type:varchar(36);not null;index"`
	FileName    string    `gorm:"column:file_name;not null"`
	ContentType string    `gorm:"column:content_type"`
	SizeBytes   int64     `gorm:"column:size_bytes"`
	StoragePath string    `gorm:"column:storage_path"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Attachment) TableName() string {
	return "request_attachments"
}

// StatusHistoryEntry rows are written once per status change and never
// updated or deleted while the parent request exists.
type StatusHistoryEntry struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	RequestID      string    `gorm:"column:request_id;type:varchar(36);not null;index"`
	PreviousStatus string    `gorm:"column:previous_status;not null"`
	NewStatus      string    `gorm:"column:new_status;not null"`
	ActorID        string    `gorm:"column:actor_id;type:varchar(36);not null"`
	ActorName      string    `gorm:"column:actor_name"`
	Note           string    `gorm:"column:note"`
	ChangedAt      time.Time `gorm:"column:changed_at;autoCreateTime"`
}

func (StatusHistoryEntry) TableName() string {
	return "request_status_history"
}
