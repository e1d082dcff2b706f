package employee

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	errors "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/auth"
	employeeDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/employee"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	Create(ctx context.Context, emp *employeeDatamodel.Employee) error
	GetByID(ctx context.Context, id string) (*employeeDatamodel.Employee, error)
	GetByEmail(ctx context.Context, email string) (*employeeDatamodel.Employee, error)
	Save(ctx context.Context, emp *employeeDatamodel.Employee) error
	List(ctx context.Context, limit, offset int) ([]*employeeDatamodel.Employee, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo       RepositoryAPI
	logger     *slog.Logger
	bcryptCost int
}

func NewService(repo RepositoryAPI, logger *slog.Logger, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

func (s *Service) CreateEmployee(ctx context.Context, actor *auth.Actor, dto CreateEmployeeDTO) (*Employee, error) {
	if !actor.HasPermission(auth.PermissionManageEmployees) {
		return nil, errors.ErrUnauthorizedAccess
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, errors.ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, errors.NewInternalError("failed to hash password", err)
	}

	role := dto.Role
	if role == "" {
		role = auth.RoleEmployee
	}

	dm := &employeeDatamodel.Employee{
		ID:           uuid.NewString(),
		Name:         dto.Name,
		Email:        email,
		PasswordHash: string(hash),
		Department:   dto.Department,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, dm); err != nil {
		if _, ok := errors.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to create employee", "error", err, "email", email)
		return nil, errors.NewInternalError("failed to create employee", err)
	}

	s.logger.Info("employee created", "employee_id", dm.ID, "role", role, "created_by", actor.ID)
	return FromDataModel(dm), nil
}

func (s *Service) GetEmployee(ctx context.Context, actor *auth.Actor, id string) (*Employee, error) {
	if actor.ID != id && !actor.HasPermission(auth.PermissionManageEmployees) {
		return nil, errors.ErrUnauthorizedAccess
	}

	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(dm), nil
}

// GetByEmail is used by the login flow; it bypasses actor checks because
// there is no authenticated actor yet.
func (s *Service) GetByEmail(ctx context.Context, email string) (*Employee, error) {
	dm, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return FromDataModel(dm), nil
}

func (s *Service) UpdateEmployee(ctx context.Context, actor *auth.Actor, id string, dto UpdateEmployeeDTO) (*Employee, error) {
	if !actor.HasPermission(auth.PermissionManageEmployees) {
		return nil, errors.ErrUnauthorizedAccess
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Name != nil {
		dm.Name = *dto.Name
	}
	if dto.Department != nil {
		dm.Department = *dto.Department
	}
	if dto.Role != nil {
		dm.Role = *dto.Role
	}
	if dto.Active != nil {
		dm.Active = *dto.Active
	}
	dm.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, dm); err != nil {
		s.logger.Error("failed to update employee", "error", err, "employee_id", id)
		return nil, errors.NewInternalError("failed to update employee", err)
	}

	s.logger.Info("employee updated", "employee_id", id, "updated_by", actor.ID)
	return FromDataModel(dm), nil
}

func (s *Service) ListEmployees(ctx context.Context, actor *auth.Actor, limit, offset int) ([]*Employee, error) {
	if !actor.HasPermission(auth.PermissionManageEmployees) {
		return nil, errors.ErrUnauthorizedAccess
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list employees", "error", err)
		return nil, errors.NewInternalError("failed to list employees", err)
	}
	return FromDataModelSlice(items), nil
}

// DeactivateEmployee soft-deletes the account. The row stays behind so
// historical requests keep resolving their requester.
func (s *Service) DeactivateEmployee(ctx context.Context, actor *auth.Actor, id string) error {
	if !actor.HasPermission(auth.PermissionManageEmployees) {
		return errors.ErrUnauthorizedAccess
	}

	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	dm.Active = false
	dm.UpdatedAt = time.Now()
	if err := s.repo.Save(ctx, dm); err != nil {
		s.logger.Error("failed to deactivate employee", "error", err, "employee_id", id)
		return errors.NewInternalError("failed to deactivate employee", err)
	}

	s.logger.Info("employee deactivated", "employee_id", id, "deactivated_by", actor.ID)
	return nil
}

// Exists satisfies the directory interface the reimbursement workflow
// checks requesters against.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// GetCredentialByEmail satisfies the credential store consumed by the
// login flow.
func (s *Service) GetCredentialByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	dm, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return &auth.Credential{
		ID:           dm.ID,
		Name:         dm.Name,
		Email:        dm.Email,
		Role:         dm.Role,
		Active:       dm.Active,
		PasswordHash: dm.PasswordHash,
	}, nil
}
