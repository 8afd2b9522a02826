package repository

import (
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (r *Repository) GetEmployeeByID(id int64) (*domain.Employee, error) {
	query := `
		SELECT username, password_hash, full_name, email, role, branch_id, reporting_manager_id, is_active, created_at, version
		FROM employees WHERE id = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	employee := &domain.Employee{
		ID: id,
	}

	dst := []any{
		&employee.Username,
		&employee.PasswordHash,
		&employee.FullName,
		&employee.Email,
		&employee.Role,
		&employee.BranchID,
		&employee.ReportingManagerID,
		&employee.IsActive,
		&employee.CreatedAt,
		&employee.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, wrapRead("GetEmployeeByID", err)
	}

	return employee, nil
}

func (r *Repository) GetEmployeeByUsername(username string) (*domain.Employee, error) {
	query := `
		SELECT id, password_hash, full_name, email, role, branch_id, reporting_manager_id, is_active, created_at, version
		FROM employees WHERE username = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	employee := &domain.Employee{
		Username: username,
	}

	dst := []any{
		&employee.ID,
		&employee.PasswordHash,
		&employee.FullName,
		&employee.Email,
		&employee.Role,
		&employee.BranchID,
		&employee.ReportingManagerID,
		&employee.IsActive,
		&employee.CreatedAt,
		&employee.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, username).Scan(dst...); err != nil {
		return nil, wrapRead("GetEmployeeByUsername", err)
	}

	return employee, nil
}

func (r *Repository) CreateEmployee(employee *domain.Employee) error {
	query := `
		INSERT INTO employees (username, password_hash, full_name, email, role, branch_id, reporting_manager_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{
		employee.Username,
		employee.PasswordHash,
		employee.FullName,
		employee.Email,
		employee.Role,
		employee.BranchID,
		employee.ReportingManagerID,
	}
	dst := []any{&employee.ID, &employee.IsActive, &employee.CreatedAt, &employee.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateEmployee(employee *domain.Employee) error {
	query := `
		UPDATE employees
		SET
			password_hash = $1,
			email = $2,
			role = $3,
			branch_id = $4,
			reporting_manager_id = $5,
			is_active = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
		RETURNING version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{
		employee.PasswordHash,
		employee.Email,
		employee.Role,
		employee.BranchID,
		employee.ReportingManagerID,
		employee.IsActive,
		employee.ID,
		employee.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&employee.Version); err != nil {
		return wrapWrite("UpdateEmployee", err)
	}

	return nil
}

// GetEmployeesByBranch 获取某分店的所有在职员工，用于确定请求的可见范围
func (r *Repository) GetEmployeesByBranch(branchID int64) ([]*domain.Employee, error) {
	query := `
		SELECT id, username, password_hash, full_name, email, role, branch_id, reporting_manager_id, is_active, created_at, version
		FROM employees
		WHERE branch_id = $1 AND is_active = TRUE
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, wrapRead("GetEmployeesByBranch", err)
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	for rows.Next() {
		employee := &domain.Employee{}
		dst := []any{
			&employee.ID,
			&employee.Username,
			&employee.PasswordHash,
			&employee.FullName,
			&employee.Email,
			&employee.Role,
			&employee.BranchID,
			&employee.ReportingManagerID,
			&employee.IsActive,
			&employee.CreatedAt,
			&employee.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("GetEmployeesByBranch", err)
		}
		employees = append(employees, employee)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("GetEmployeesByBranch", err)
	}

	return employees, nil
}
