package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cems-project/cems-api/internal/models"
)

// DepartmentRepository reads department reference data including each
// department's configured approval chain.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// GetByID fetches a department.
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*models.Department, error) {
	const query = `SELECT id, name FROM departments WHERE id = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		return nil, err
	}
	return &dept, nil
}

// GetApprovalChain returns the department's required stages in order. An
// empty chain means events for this department need no approval at all.
func (r *DepartmentRepository) GetApprovalChain(ctx context.Context, departmentID int64) ([]models.ChainStage, error) {
	const query = `SELECT approver_role, approver_id, sequence
	FROM department_approvers
	WHERE department_id = $1
	ORDER BY sequence ASC`
	var stages []models.ChainStage
	if err := r.db.SelectContext(ctx, &stages, query, departmentID); err != nil {
		return nil, fmt.Errorf("load approval chain: %w", err)
	}
	return stages, nil
}
