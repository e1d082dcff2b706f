package employee

import (
	"time"

	employeeDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/employee"
)

// Employee is the directory entry reimbursement requests reference. The
// password hash never leaves this package.
type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	passwordHash string
}

// PasswordHash exposes the stored hash for credential checks.
func (e *Employee) PasswordHash() string {
	return e.passwordHash
}

func ToDataModel(e *Employee) *employeeDatamodel.Employee {
	return &employeeDatamodel.Employee{
		ID:           e.ID,
		Name:         e.Name,
		Email:        e.Email,
		PasswordHash: e.passwordHash,
		Department:   e.Department,
		Role:         e.Role,
		Active:       e.Active,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func FromDataModel(dm *employeeDatamodel.Employee) *Employee {
	return &Employee{
		ID:           dm.ID,
		Name:         dm.Name,
		Email:        dm.Email,
		Department:   dm.Department,
		Role:         dm.Role,
		Active:       dm.Active,
		CreatedAt:    dm.CreatedAt,
		UpdatedAt:    dm.UpdatedAt,
		passwordHash: dm.PasswordHash,
	}
}

func FromDataModelSlice(employees []*employeeDatamodel.Employee) []*Employee {
	result := make([]*Employee, len(employees))
	for i, dm := range employees {
		result[i] = FromDataModel(dm)
	}
	return result
}
