package repository

import (
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (r *Repository) CreateShift(shift *domain.ShiftDefinition) error {
	query := `
		INSERT INTO shift_definitions (name, start_time, end_time, branch_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{shift.Name, shift.StartTime, shift.EndTime, shift.BranchID}
	dst := []any{&shift.ID, &shift.IsActive, &shift.CreatedAt, &shift.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetShiftByID(id int64) (*domain.ShiftDefinition, error) {
	query := `
		SELECT name, start_time, end_time, branch_id, is_active, created_at, version
		FROM shift_definitions WHERE id = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	shift := &domain.ShiftDefinition{
		ID: id,
	}

	dst := []any{
		&shift.Name,
		&shift.StartTime,
		&shift.EndTime,
		&shift.BranchID,
		&shift.IsActive,
		&shift.CreatedAt,
		&shift.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, wrapRead("GetShiftByID", err)
	}

	return shift, nil
}

func (r *Repository) GetShiftsByBranch(branchID int64) ([]*domain.ShiftDefinition, error) {
	query := `
		SELECT id, name, start_time, end_time, branch_id, is_active, created_at, version
		FROM shift_definitions
		WHERE branch_id = $1 AND is_active = TRUE
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, wrapRead("GetShiftsByBranch", err)
	}
	defer rows.Close()

	shifts := make([]*domain.ShiftDefinition, 0)
	for rows.Next() {
		shift := &domain.ShiftDefinition{}
		dst := []any{
			&shift.ID,
			&shift.Name,
			&shift.StartTime,
			&shift.EndTime,
			&shift.BranchID,
			&shift.IsActive,
			&shift.CreatedAt,
			&shift.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("GetShiftsByBranch", err)
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("GetShiftsByBranch", err)
	}

	return shifts, nil
}
