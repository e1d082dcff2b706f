package reimbursement

import (
	"time"

	errors "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type CreateRequestDTO struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ExpenseType     ExpenseType     `json:"expense_type"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	ExpenseDate     time.Time       `json:"expense_date"`
}

func (dto CreateRequestDTO) Validate(now time.Time) *errors.AppError {
	if err := validation.ValidateTitle(dto.Title); err != nil {
		return err
	}
	if err := validation.ValidateDescription(dto.Description); err != nil {
		return err
	}
	if !dto.ExpenseType.Valid() {
		return errors.NewValidationFieldError("expense_type", "unknown expense type", errors.ErrCodeValidationFailed)
	}
	if err := validation.ValidateRequestedAmount(dto.RequestedAmount); err != nil {
		return err
	}
	return validation.ExpenseDateValid(dto.ExpenseDate, now)
}

// UpdateRequestDTO carries the editable fields; nil means leave unchanged.
type UpdateRequestDTO struct {
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	ExpenseType     *ExpenseType     `json:"expense_type,omitempty"`
	RequestedAmount *decimal.Decimal `json:"requested_amount,omitempty"`
	ExpenseDate     *time.Time       `json:"expense_date,omitempty"`
}

func (dto UpdateRequestDTO) Validate(now time.Time) *errors.AppError {
	if dto.Title != nil {
		if err := validation.ValidateTitle(*dto.Title); err != nil {
			return err
		}
	}
	if dto.Description != nil {
		if err := validation.ValidateDescription(*dto.Description); err != nil {
			return err
		}
	}
	if dto.ExpenseType != nil && !dto.ExpenseType.Valid() {
		return errors.NewValidationFieldError("expense_type", "unknown expense type", errors.ErrCodeValidationFailed)
	}
	if dto.RequestedAmount != nil {
		if err := validation.ValidateRequestedAmount(*dto.RequestedAmount); err != nil {
			return err
		}
	}
	if dto.ExpenseDate != nil {
		if err := validation.ExpenseDateValid(*dto.ExpenseDate, now); err != nil {
			return err
		}
	}
	return nil
}

type ApproveRequestDTO struct {
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	Note           string          `json:"note"`
}

func (dto ApproveRequestDTO) Validate() *errors.AppError {
	return validation.ValidateNote("note", dto.Note)
}

type RejectRequestDTO struct {
	Note string `json:"note"`
}

func (dto RejectRequestDTO) Validate() *errors.AppError {
	if dto.Note == "" {
		return errors.NewValidationFieldError("note", "a reason is required when rejecting a request", errors.ErrCodeValidationFailed)
	}
	return validation.ValidateNote("note", dto.Note)
}

type PayRequestDTO struct {
	Note string `json:"note"`
}

func (dto PayRequestDTO) Validate() *errors.AppError {
	return validation.ValidateNote("note", dto.Note)
}

type CancelRequestDTO struct {
	Reason string `json:"reason"`
}

func (dto CancelRequestDTO) Validate() *errors.AppError {
	if dto.Reason == "" {
		return errors.NewValidationFieldError("reason", "a reason is required when cancelling a request", errors.ErrCodeValidationFailed)
	}
	return validation.ValidateNote("reason", dto.Reason)
}

type AddAttachmentDTO struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StoragePath string `json:"storage_path"`
}

func (dto AddAttachmentDTO) Validate() *errors.AppError {
	if dto.FileName == "" {
		return errors.NewValidationFieldError("file_name", "file_name is required", errors.ErrCodeValidationFailed)
	}
	if dto.SizeBytes < 0 {
		return errors.NewValidationFieldError("size_bytes", "size_bytes cannot be negative", errors.ErrCodeValidationFailed)
	}
	return nil
}

// Filter narrows List queries. Zero values mean "no constraint"; only
// IncludeInactive widens the default active-only scope.
type Filter struct {
	RequesterID     string
	Status          Status
	ExpenseType     ExpenseType
	DateFrom        *time.Time
	DateTo          *time.Time
	Search          string
	IncludeInactive bool
}

type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type RequestPage struct {
	Items      []*Request `json:"items"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// PendingQueuePage is the approval-queue response. The queue is walked
// oldest first, so there is no total count to report.
type PendingQueuePage struct {
	Items    []*Request `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// Stats is the typed aggregate over the active request set. Sums are
// recomputed on every call.
type Stats struct {
	TotalCount         int64           `json:"total_count"`
	DraftCount         int64           `json:"draft_count"`
	PendingCount       int64           `json:"pending_count"`
	ApprovedCount      int64           `json:"approved_count"`
	RejectedCount      int64           `json:"rejected_count"`
	PaidCount          int64           `json:"paid_count"`
	CancelledCount     int64           `json:"cancelled_count"`
	TotalRequested     decimal.Decimal `json:"total_requested"`
	TotalApproved      decimal.Decimal `json:"total_approved"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
}
