package employee

import (
	"strings"

	errors "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/auth"
)

func validRole(role string) bool {
	switch role {
	case auth.RoleEmployee, auth.RoleManager, auth.RoleFinance, auth.RoleAdmin:
		return true
	}
	return false
}

type CreateEmployeeDTO struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

func (dto CreateEmployeeDTO) Validate() *errors.AppError {
	if strings.TrimSpace(dto.Name) == "" {
		return errors.NewValidationFieldError("name", "name is required", errors.ErrCodeValidationFailed)
	}
	if !strings.Contains(dto.Email, "@") {
		return errors.NewValidationFieldError("email", "a valid email is required", errors.ErrCodeValidationFailed)
	}
	if len(dto.Password) < 8 {
		return errors.NewValidationFieldError("password", "password must be at least 8 characters", errors.ErrCodeValidationFailed)
	}
	if dto.Role != "" && !validRole(dto.Role) {
		return errors.NewValidationFieldError("role", "unknown role", errors.ErrCodeValidationFailed)
	}
	return nil
}

// UpdateEmployeeDTO carries mutable profile fields; nil means unchanged.
// Email and password change through dedicated flows, not here.
type UpdateEmployeeDTO struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
	Role       *string `json:"role,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

func (dto UpdateEmployeeDTO) Validate() *errors.AppError {
	if dto.Name != nil && strings.TrimSpace(*dto.Name) == "" {
		return errors.NewValidationFieldError("name", "name cannot be empty", errors.ErrCodeValidationFailed)
	}
	if dto.Role != nil && !validRole(*dto.Role) {
		return errors.NewValidationFieldError("role", "unknown role", errors.ErrCodeValidationFailed)
	}
	return nil
}
