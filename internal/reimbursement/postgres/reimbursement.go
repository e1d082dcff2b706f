package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	internal "github.com/reimbursehq/reimbursement-service/internal"
	reimbursementDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/reimbursement"
	"github.com/reimbursehq/reimbursement-service/internal/reimbursement"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestRepository implements reimbursement.RepositoryAPI using GORM.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) reimbursement.RepositoryAPI {
	return &RequestRepository{db: db}
}

// activeOnly is the single soft-delete predicate. Every query goes through
// it unless the caller explicitly asks for inactive rows, so no individual
// query can forget the filter.
func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("active = ?", true)
}

// Tx runs fn against a repository bound to one database transaction.
// Entity and history writes made through it commit or roll back together.
func (r *RequestRepository) Tx(ctx context.Context, fn func(reimbursement.RepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RequestRepository{db: tx})
	})
}

func (r *RequestRepository) Create(ctx context.Context, req *reimbursementDatamodel.Request) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string, includeInactive bool) (*reimbursementDatamodel.Request, error) {
	query := r.db.WithContext(ctx).
		Preload("Attachments", "active = ?", true).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at ASC")
		}).
		Where("id = ?", id)
	if !includeInactive {
		query = query.Scopes(activeOnly)
	}

	var req reimbursementDatamodel.Request
	if err := query.First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		return nil, r.translate(err)
	}
	return &req, nil
}

// GetByIDForUpdate loads an active request with a row lock so concurrent
// transitions on the same id serialize. SQLite has no FOR UPDATE; its
// writer lock gives the same single-writer-per-id guarantee. Attachments
// and history ride along so a transition can return the full record.
func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, id string) (*reimbursementDatamodel.Request, error) {
	query := r.db.WithContext(ctx).
		Preload("Attachments", "active = ?", true).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at ASC")
		}).
		Scopes(activeOnly).
		Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var req reimbursementDatamodel.Request
	if err := query.First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		return nil, r.translate(err)
	}
	return &req, nil
}

func (r *RequestRepository) Save(ctx context.Context, req *reimbursementDatamodel.Request) error {
	if err := r.db.WithContext(ctx).
		Omit("Attachments", "History").
		Save(req).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

// AppendHistory inserts one immutable audit row. History is append-only;
// there is no update or delete counterpart.
func (r *RequestRepository) AppendHistory(ctx context.Context, entry *reimbursementDatamodel.StatusHistoryEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

func (r *RequestRepository) FindPage(ctx context.Context, filter reimbursement.Filter, page reimbursement.PageRequest) ([]*reimbursementDatamodel.Request, int64, error) {
	query := r.db.WithContext(ctx).Model(&reimbursementDatamodel.Request{})
	if !filter.IncludeInactive {
		query = query.Scopes(activeOnly)
	}
	if filter.RequesterID != "" {
		query = query.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.ExpenseType != "" {
		query = query.Where("expense_type = ?", string(filter.ExpenseType))
	}
	if filter.DateFrom != nil {
		query = query.Where("expense_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("expense_date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, r.translate(err)
	}

	var items []*reimbursementDatamodel.Request
	err := query.
		Order("created_at DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, 0, r.translate(err)
	}
	return items, total, nil
}

// PendingQueue returns pending-approval requests oldest first. FIFO keeps
// approval latency fair across requesters.
func (r *RequestRepository) PendingQueue(ctx context.Context, page reimbursement.PageRequest) ([]*reimbursementDatamodel.Request, error) {
	var items []*reimbursementDatamodel.Request
	err := r.db.WithContext(ctx).
		Scopes(activeOnly).
		Where("status = ?", string(reimbursement.StatusPendingApproval)).
		Order("created_at ASC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, r.translate(err)
	}
	return items, nil
}

func (r *RequestRepository) AddAttachment(ctx context.Context, att *reimbursementDatamodel.Attachment) error {
	if err := r.db.WithContext(ctx).Create(att).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

// Stats computes the aggregate snapshot in a single pass over the active
// set. Sums are recomputed per call; there is no cached counter to drift.
func (r *RequestRepository) Stats(ctx context.Context, requesterID string) (*reimbursement.Stats, error) {
	query := r.db.WithContext(ctx).
		Model(&reimbursementDatamodel.Request{}).
		Scopes(activeOnly)
	if requesterID != "" {
		query = query.Where("requester_id = ?", requesterID)
	}

	var stats reimbursement.Stats
	err := query.
		Select(`COUNT(*) AS total_count,
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0) AS draft_count,
			COALESCE(SUM(CASE WHEN status = 'pending_approval' THEN 1 ELSE 0 END), 0) AS pending_count,
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0) AS approved_count,
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected_count,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0) AS paid_count,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_count,
			COALESCE(SUM(requested_amount), 0) AS total_requested,
			COALESCE(SUM(approved_amount), 0) AS total_approved,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN approved_amount ELSE 0 END), 0) AS total_paid`).
		Scan(&stats).Error
	if err != nil {
		return nil, r.translate(err)
	}
	return &stats, nil
}

// translate maps storage-level failures onto the service error taxonomy:
// serialization and lock conflicts become ErrConcurrentUpdate so the
// engine can retry, everything else surfaces as an external error.
func (r *RequestRepository) translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return internal.ErrConcurrentUpdate
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return internal.ErrConcurrentUpdate
	}
	return internal.NewExternalError("storage operation failed", err)
}
