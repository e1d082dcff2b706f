package reimbursement

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	errors "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/auth"
	"github.com/reimbursehq/reimbursement-service/internal/core/common/validation"
	reimbursementDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/reimbursement"
	"github.com/reimbursehq/reimbursement-service/internal/core/events"
)

// maxTransitionAttempts bounds the re-read/re-validate/re-apply loop when
// the repository reports a concurrent modification.
const maxTransitionAttempts = 3

// RepositoryAPI is the persistence contract consumed by the workflow
// engine. Tx hands back a repository bound to one database transaction so
// that the entity write and its history entry commit atomically.
type RepositoryAPI interface {
	Tx(ctx context.Context, fn func(RepositoryAPI) error) error
	Create(ctx context.Context, req *reimbursementDatamodel.Request) error
	GetByID(ctx context.Context, id string, includeInactive bool) (*reimbursementDatamodel.Request, error)
	GetByIDForUpdate(ctx context.Context, id string) (*reimbursementDatamodel.Request, error)
	Save(ctx context.Context, req *reimbursementDatamodel.Request) error
	AppendHistory(ctx context.Context, entry *reimbursementDatamodel.StatusHistoryEntry) error
	FindPage(ctx context.Context, filter Filter, page PageRequest) ([]*reimbursementDatamodel.Request, int64, error)
	PendingQueue(ctx context.Context, page PageRequest) ([]*reimbursementDatamodel.Request, error)
	AddAttachment(ctx context.Context, att *reimbursementDatamodel.Attachment) error
	Stats(ctx context.Context, requesterID string) (*Stats, error)
}

// EmployeeDirectory resolves requester references. The request keeps only
// a weak reference to the employee, so existence is checked at creation.
type EmployeeDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// EventPublisher receives domain events after a transition has committed.
// Delivery is fire-and-forget; the engine never waits on subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

type Service struct {
	repo      RepositoryAPI
	directory EmployeeDirectory
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, directory EmployeeDirectory, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) CreateRequest(ctx context.Context, actor *auth.Actor, dto CreateRequestDTO) (*Request, error) {
	if err := dto.Validate(s.now()); err != nil {
		s.logger.Error("request validation failed", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	exists, err := s.directory.Exists(ctx, actor.ID)
	if err != nil {
		s.logger.Error("failed to resolve requester", "error", err, "actor_id", actor.ID)
		return nil, errors.NewInternalError("failed to resolve requester", err)
	}
	if !exists {
		return nil, errors.ErrEmployeeNotFound
	}

	now := s.now()
	req := &Request{
		ID:              uuid.NewString(),
		RequesterID:     actor.ID,
		Title:           dto.Title,
		Description:     dto.Description,
		ExpenseType:     dto.ExpenseType,
		RequestedAmount: dto.RequestedAmount,
		ExpenseDate:     dto.ExpenseDate,
		Status:          StatusDraft,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, ToDataModel(req)); err != nil {
		s.logger.Error("failed to create request", "error", err, "actor_id", actor.ID)
		return nil, errors.NewInternalError("failed to create request", err)
	}

	s.logger.Info("reimbursement request created",
		"request_id", req.ID,
		"requester_id", actor.ID,
		"amount", req.RequestedAmount.String(),
		"expense_type", req.ExpenseType)

	return req, nil
}

// GetRequest returns the full request including attachments and history.
// Non-privileged actors may only read their own requests.
func (s *Service) GetRequest(ctx context.Context, actor *auth.Actor, id string) (*Request, error) {
	dm, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	req := FromDataModel(dm)
	if !s.canRead(actor, req) {
		s.logger.Warn("unauthorized access to request", "request_id", id, "actor_id", actor.ID)
		return nil, errors.ErrUnauthorizedAccess
	}

	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, actor *auth.Actor, filter Filter, page PageRequest) (*RequestPage, error) {
	page = page.Normalize()

	// Non-privileged actors are always scoped to their own requests.
	if !actor.HasPermission(auth.PermissionViewAllRequests) {
		filter.RequesterID = actor.ID
	}

	items, total, err := s.repo.FindPage(ctx, filter, page)
	if err != nil {
		s.logger.Error("failed to list requests", "error", err, "actor_id", actor.ID)
		return nil, errors.NewInternalError("failed to list requests", err)
	}

	return &RequestPage{
		Items:      FromDataModelSlice(items),
		TotalCount: total,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}, nil
}

// PendingQueue lists pending-approval requests oldest first so approvers
// work through them in submission order.
func (s *Service) PendingQueue(ctx context.Context, actor *auth.Actor, page PageRequest) ([]*Request, error) {
	if !actor.HasPermission(auth.PermissionApproveRequests) {
		return nil, errors.ErrUnauthorizedAccess
	}

	page = page.Normalize()
	items, err := s.repo.PendingQueue(ctx, page)
	if err != nil {
		s.logger.Error("failed to load pending queue", "error", err)
		return nil, errors.NewInternalError("failed to load pending queue", err)
	}

	return FromDataModelSlice(items), nil
}

// UpdateRequest mutates editable fields of a Draft. A plain field edit is
// not a status change and therefore appends no history entry.
func (s *Service) UpdateRequest(ctx context.Context, actor *auth.Actor, id string, dto UpdateRequestDTO) (*Request, error) {
	if err := dto.Validate(s.now()); err != nil {
		return nil, err
	}

	var result *Request
	err := s.repo.Tx(ctx, func(txRepo RepositoryAPI) error {
		dm, err := txRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		req := FromDataModel(dm)

		if !s.canModify(actor, req) {
			return errors.ErrUnauthorizedAccess
		}
		if !req.IsEditable() {
			return errors.ErrRequestNotEditable
		}

		if dto.Title != nil {
			req.Title = *dto.Title
		}
		if dto.Description != nil {
			req.Description = *dto.Description
		}
		if dto.ExpenseType != nil {
			req.ExpenseType = *dto.ExpenseType
		}
		if dto.RequestedAmount != nil {
			req.RequestedAmount = *dto.RequestedAmount
		}
		if dto.ExpenseDate != nil {
			req.ExpenseDate = *dto.ExpenseDate
		}
		req.UpdatedAt = s.now()

		if err := txRepo.Save(ctx, ToDataModel(req)); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, s.classify(err, "update", id, actor)
	}

	s.logger.Info("request updated", "request_id", id, "actor_id", actor.ID)
	return result, nil
}

func (s *Service) SubmitRequest(ctx context.Context, actor *auth.Actor, id string) (*Request, error) {
	return s.transition(ctx, actor, id, transitionSpec{
		op:        OperationSubmit,
		eventType: events.EventTypeRequestSubmitted,
		note:      "submitted for approval",
		guard: func(req *Request) *errors.AppError {
			if !s.canModify(actor, req) {
				return errors.ErrUnauthorizedAccess
			}
			return nil
		},
		apply: func(req *Request) *errors.AppError {
			// Submission re-checks the date window so a stale Draft
			// cannot slip an out-of-range expense past approval.
			if err := validation.ExpenseDateValid(req.ExpenseDate, s.now()); err != nil {
				return err
			}
			req.Submit()
			return nil
		},
	})
}

func (s *Service) ApproveRequest(ctx context.Context, actor *auth.Actor, id string, dto ApproveRequestDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, transitionSpec{
		op:        OperationApprove,
		eventType: events.EventTypeRequestApproved,
		note:      dto.Note,
		guard: func(req *Request) *errors.AppError {
			if !actor.HasPermission(auth.PermissionApproveRequests) {
				return errors.ErrUnauthorizedAccess
			}
			return nil
		},
		apply: func(req *Request) *errors.AppError {
			amount := dto.ApprovedAmount
			// An omitted amount approves the request in full.
			if amount.IsZero() {
				amount = req.RequestedAmount
			}
			if err := validation.ApprovedAmountValid(amount, req.RequestedAmount); err != nil {
				return err
			}
			req.Approve(amount, dto.Note, actor.ID)
			return nil
		},
	})
}

func (s *Service) RejectRequest(ctx context.Context, actor *auth.Actor, id string, dto RejectRequestDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, transitionSpec{
		op:        OperationReject,
		eventType: events.EventTypeRequestRejected,
		note:      dto.Note,
		guard: func(req *Request) *errors.AppError {
			if !actor.HasPermission(auth.PermissionApproveRequests) {
				return errors.ErrUnauthorizedAccess
			}
			return nil
		},
		apply: func(req *Request) *errors.AppError {
			req.Reject(dto.Note, actor.ID)
			return nil
		},
	})
}

func (s *Service) PayRequest(ctx context.Context, actor *auth.Actor, id string, dto PayRequestDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, transitionSpec{
		op:        OperationPay,
		eventType: events.EventTypeRequestPaid,
		note:      dto.Note,
		guard: func(req *Request) *errors.AppError {
			if !actor.HasPermission(auth.PermissionPayRequests) {
				return errors.ErrUnauthorizedAccess
			}
			return nil
		},
		apply: func(req *Request) *errors.AppError {
			req.Pay(dto.Note, actor.ID)
			return nil
		},
	})
}

func (s *Service) CancelRequest(ctx context.Context, actor *auth.Actor, id string, dto CancelRequestDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, transitionSpec{
		op:        OperationCancel,
		eventType: events.EventTypeRequestCancelled,
		note:      dto.Reason,
		guard: func(req *Request) *errors.AppError {
			if !s.canModify(actor, req) {
				return errors.ErrUnauthorizedAccess
			}
			return nil
		},
		apply: func(req *Request) *errors.AppError {
			req.Cancel(dto.Reason)
			return nil
		},
	})
}

// SoftDeleteRequest flags the record inactive. The row and its history
// stay behind for audit; only Drafts can be deleted.
func (s *Service) SoftDeleteRequest(ctx context.Context, actor *auth.Actor, id string) error {
	err := s.repo.Tx(ctx, func(txRepo RepositoryAPI) error {
		dm, err := txRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		req := FromDataModel(dm)

		if !s.canModify(actor, req) {
			return errors.ErrUnauthorizedAccess
		}
		if !TransitionAllowed(req.Status, OperationDelete) {
			return errors.ErrRequestNotEditable
		}

		req.Deactivate()
		return txRepo.Save(ctx, ToDataModel(req))
	})
	if err != nil {
		return s.classify(err, "soft_delete", id, actor)
	}

	s.logger.Info("request soft-deleted", "request_id", id, "actor_id", actor.ID)
	return nil
}

func (s *Service) AddAttachment(ctx context.Context, actor *auth.Actor, id string, dto AddAttachmentDTO) (*Attachment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var result *Attachment
	err := s.repo.Tx(ctx, func(txRepo RepositoryAPI) error {
		dm, err := txRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		req := FromDataModel(dm)

		if !s.canModify(actor, req) {
			return errors.ErrUnauthorizedAccess
		}
		if !req.IsEditable() {
			return errors.ErrRequestNotEditable
		}

		att := &reimbursementDatamodel.Attachment{
			ID:          uuid.NewString(),
			RequestID:   req.ID,
			FileName:    dto.FileName,
			ContentType: dto.ContentType,
			SizeBytes:   dto.SizeBytes,
			StoragePath: dto.StoragePath,
			Active:      true,
			CreatedAt:   s.now(),
		}
		if err := txRepo.AddAttachment(ctx, att); err != nil {
			return err
		}

		domainAtt := AttachmentFromDataModel(att)
		result = &domainAtt
		return nil
	})
	if err != nil {
		return nil, s.classify(err, "add_attachment", id, actor)
	}

	return result, nil
}

// GetStats aggregates counts and sums over the active request set.
// Non-privileged actors only ever see their own numbers.
func (s *Service) GetStats(ctx context.Context, actor *auth.Actor, requesterID string) (*Stats, error) {
	if !actor.HasPermission(auth.PermissionViewAllRequests) {
		requesterID = actor.ID
	}

	stats, err := s.repo.Stats(ctx, requesterID)
	if err != nil {
		s.logger.Error("failed to compute stats", "error", err, "requester_id", requesterID)
		return nil, errors.NewInternalError("failed to compute statistics", err)
	}
	return stats, nil
}

type transitionSpec struct {
	op        Operation
	eventType string
	note      string
	guard     func(*Request) *errors.AppError
	apply     func(*Request) *errors.AppError
}

// transition runs one guarded status change: lock the row, check the
// transition table, apply the mutation, persist the entity and exactly one
// history entry in the same transaction. Concurrent-update conflicts are
// retried from scratch up to maxTransitionAttempts before surfacing.
func (s *Service) transition(ctx context.Context, actor *auth.Actor, id string, spec transitionSpec) (*Request, error) {
	var result *Request
	var previous Status

	for attempt := 1; ; attempt++ {
		err := s.repo.Tx(ctx, func(txRepo RepositoryAPI) error {
			dm, err := txRepo.GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			req := FromDataModel(dm)

			if spec.guard != nil {
				if guardErr := spec.guard(req); guardErr != nil {
					return guardErr
				}
			}
			if !TransitionAllowed(req.Status, spec.op) {
				return errors.ErrInvalidTransition
			}

			previous = req.Status
			if applyErr := spec.apply(req); applyErr != nil {
				return applyErr
			}

			updated := ToDataModel(req)
			if err := txRepo.Save(ctx, updated); err != nil {
				return err
			}

			entry := &reimbursementDatamodel.StatusHistoryEntry{
				ID:             uuid.NewString(),
				RequestID:      req.ID,
				PreviousStatus: string(previous),
				NewStatus:      string(req.Status),
				ActorID:        actor.ID,
				ActorName:      actor.Name,
				Note:           spec.note,
				ChangedAt:      s.now(),
			}
			if err := txRepo.AppendHistory(ctx, entry); err != nil {
				return err
			}

			req.History = append(req.History, HistoryEntryFromDataModel(entry))
			result = req
			return nil
		})
		if err == nil {
			break
		}

		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeConcurrentUpdate && attempt < maxTransitionAttempts {
			s.logger.Warn("transition hit concurrent update, retrying",
				"request_id", id,
				"operation", spec.op,
				"attempt", attempt)
			continue
		}
		return nil, s.classify(err, string(spec.op), id, actor)
	}

	s.logger.Info("request transitioned",
		"request_id", id,
		"operation", spec.op,
		"previous_status", previous,
		"new_status", result.Status,
		"actor_id", actor.ID)

	// Notification is fire-and-forget: publish after commit, never block
	// or fail the transition on subscriber errors.
	if spec.eventType != "" && s.publisher != nil {
		s.publisher.Publish(ctx, events.NewRequestStatusChangedEvent(
			spec.eventType,
			result.ID,
			result.RequesterID,
			string(previous),
			string(result.Status),
			actor.ID,
			actor.Name,
			spec.note,
		))
	}

	return result, nil
}

// canRead: owner, or any actor allowed to view all requests.
func (s *Service) canRead(actor *auth.Actor, req *Request) bool {
	return req.RequesterID == actor.ID || actor.HasPermission(auth.PermissionViewAllRequests)
}

// canModify: only the owner or an admin may edit, submit, cancel or
// delete a request.
func (s *Service) canModify(actor *auth.Actor, req *Request) bool {
	return req.RequesterID == actor.ID || actor.Role == auth.RoleAdmin
}

// classify wraps unexpected repository failures as internal errors while
// letting typed business outcomes pass through untouched.
func (s *Service) classify(err error, operation, id string, actor *auth.Actor) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}
	s.logger.Error("operation failed",
		"operation", operation,
		"request_id", id,
		"actor_id", actor.ID,
		"error", err)
	return errors.NewInternalError("operation failed", err)
}
