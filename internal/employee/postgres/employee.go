package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	internal "github.com/reimbursehq/reimbursement-service/internal"
	employeeDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/employee"
	"github.com/reimbursehq/reimbursement-service/internal/employee"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) employee.RepositoryAPI {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(ctx context.Context, emp *employeeDatamodel.Employee) error {
	if err := r.db.WithContext(ctx).Create(emp).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*employeeDatamodel.Employee, error) {
	var emp employeeDatamodel.Employee
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&emp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrEmployeeNotFound
		}
		return nil, r.translate(err)
	}
	return &emp, nil
}

func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*employeeDatamodel.Employee, error) {
	var emp employeeDatamodel.Employee
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&emp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrEmployeeNotFound
		}
		return nil, r.translate(err)
	}
	return &emp, nil
}

func (r *EmployeeRepository) Save(ctx context.Context, emp *employeeDatamodel.Employee) error {
	if err := r.db.WithContext(ctx).Save(emp).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

func (r *EmployeeRepository) List(ctx context.Context, limit, offset int) ([]*employeeDatamodel.Employee, error) {
	var items []*employeeDatamodel.Employee
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, r.translate(err)
	}
	return items, nil
}

func (r *EmployeeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&employeeDatamodel.Employee{}).
		Where("id = ? AND active = ?", id, true).
		Count(&count).Error
	if err != nil {
		return false, r.translate(err)
	}
	return count > 0, nil
}

func (r *EmployeeRepository) translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return internal.ErrDuplicateEmail
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return internal.ErrDuplicateEmail
	}
	return internal.NewExternalError("storage operation failed", err)
}
