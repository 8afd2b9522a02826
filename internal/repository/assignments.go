package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

func (r *Repository) CreateAssignment(assignment *domain.ShiftAssignment) error {
	query := `
		INSERT INTO shift_assignments (employee_id, shift_id, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	args := []any{assignment.EmployeeID, assignment.ShiftID, assignment.StartDate, assignment.EndDate}
	dst := []any{&assignment.ID, &assignment.IsActive, &assignment.CreatedAt, &assignment.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAssignmentByID(id int64) (*domain.ShiftAssignment, error) {
	query := `
		SELECT employee_id, shift_id, start_date, end_date, is_active, created_at, version
		FROM shift_assignments WHERE id = $1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	assignment := &domain.ShiftAssignment{
		ID: id,
	}

	dst := []any{
		&assignment.EmployeeID,
		&assignment.ShiftID,
		&assignment.StartDate,
		&assignment.EndDate,
		&assignment.IsActive,
		&assignment.CreatedAt,
		&assignment.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, wrapRead("GetAssignmentByID", err)
	}

	return assignment, nil
}

// GetActiveAssignment 获取员工在某个日期生效的班次绑定，
// 同一天存在多个不重叠班次时返回最近开始的那个
func (r *Repository) GetActiveAssignment(employeeID int64, date time.Time) (*domain.ShiftAssignment, error) {
	query := `
		SELECT id, employee_id, shift_id, start_date, end_date, is_active, created_at, version
		FROM shift_assignments
		WHERE employee_id = $1
			AND is_active = TRUE
			AND start_date <= $2
			AND (end_date IS NULL OR end_date >= $2)
		ORDER BY start_date DESC
		LIMIT 1
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	assignment := &domain.ShiftAssignment{}
	dst := []any{
		&assignment.ID,
		&assignment.EmployeeID,
		&assignment.ShiftID,
		&assignment.StartDate,
		&assignment.EndDate,
		&assignment.IsActive,
		&assignment.CreatedAt,
		&assignment.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, employeeID, date).Scan(dst...); err != nil {
		return nil, wrapRead("GetActiveAssignment", err)
	}

	return assignment, nil
}

// ListAssignments 获取员工生效区间与 [from, to] 相交的所有活跃绑定
func (r *Repository) ListAssignments(employeeID int64, from, to time.Time) ([]*domain.ShiftAssignment, error) {
	query := `
		SELECT id, employee_id, shift_id, start_date, end_date, is_active, created_at, version
		FROM shift_assignments
		WHERE employee_id = $1
			AND is_active = TRUE
			AND start_date <= $3
			AND (end_date IS NULL OR end_date >= $2)
		ORDER BY start_date
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, wrapRead("ListAssignments", err)
	}
	defer rows.Close()

	assignments := make([]*domain.ShiftAssignment, 0)
	for rows.Next() {
		assignment := &domain.ShiftAssignment{}
		dst := []any{
			&assignment.ID,
			&assignment.EmployeeID,
			&assignment.ShiftID,
			&assignment.StartDate,
			&assignment.EndDate,
			&assignment.IsActive,
			&assignment.CreatedAt,
			&assignment.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapRead("ListAssignments", err)
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRead("ListAssignments", err)
	}

	return assignments, nil
}

// RetireAssignment 把绑定置为不活跃并写上结束日期，保留历史记录
func (r *Repository) RetireAssignment(assignment *domain.ShiftAssignment, endDate time.Time) error {
	query := `
		UPDATE shift_assignments
		SET is_active = FALSE, end_date = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	ctx, cancel := r.queryCtx()
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, endDate, assignment.ID, assignment.Version).Scan(&assignment.Version); err != nil {
		return wrapWrite("RetireAssignment", err)
	}

	assignment.IsActive = false
	assignment.EndDate = &endDate
	return nil
}

// ApplySwap 原子地交换两个绑定所引用的班次。
// 在同一个事务内重新校验双方的版本号和无重叠不变式，
// 防止请求创建和审批之间发生的并发修改被覆盖
func (r *Repository) ApplySwap(a, b *domain.ShiftAssignment) error {
	ctx, cancel := r.txCtx()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "ApplySwap", Cause: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 按 ID 升序加锁，避免两个并发换班互相死锁
	first, second := a, b
	if first.ID > second.ID {
		first, second = second, first
	}
	for _, assignment := range []*domain.ShiftAssignment{first, second} {
		if err := lockAndVerifyAssignment(ctx, tx, assignment); err != nil {
			return err
		}
	}

	// 双方交换后的状态都要重新满足无重叠不变式
	if err := r.checkConflictInTx(ctx, tx, a.EmployeeID, b.ShiftID, a.StartDate, a.EndDate, a.ID); err != nil {
		return err
	}
	if err := r.checkConflictInTx(ctx, tx, b.EmployeeID, a.ShiftID, b.StartDate, b.EndDate, b.ID); err != nil {
		return err
	}

	query := `
		UPDATE shift_assignments
		SET shift_id = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	shiftA, shiftB := a.ShiftID, b.ShiftID
	if err := tx.QueryRowContext(ctx, query, shiftB, a.ID, a.Version).Scan(&a.Version); err != nil {
		return wrapWrite("ApplySwap", err)
	}
	if err := tx.QueryRowContext(ctx, query, shiftA, b.ID, b.Version).Scan(&b.Version); err != nil {
		return wrapWrite("ApplySwap", err)
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "ApplySwap", Cause: err}
	}

	a.ShiftID, b.ShiftID = shiftB, shiftA
	return nil
}

// ApplyCoverage 原子地把 orig 自 from 起退役，并为顶班员工新建同班次的绑定。
// 返回新建的绑定
func (r *Repository) ApplyCoverage(orig *domain.ShiftAssignment, coveringEmployeeID int64, from time.Time) (*domain.ShiftAssignment, error) {
	ctx, cancel := r.txCtx()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "ApplyCoverage", Cause: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := lockAndVerifyAssignment(ctx, tx, orig); err != nil {
		return nil, err
	}

	// 顶班员工接手后的状态必须满足无重叠不变式
	if err := r.checkConflictInTx(ctx, tx, coveringEmployeeID, orig.ShiftID, from, orig.EndDate, orig.ID); err != nil {
		return nil, err
	}

	retire := `
		UPDATE shift_assignments
		SET is_active = FALSE, end_date = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, retire, from, orig.ID, orig.Version).Scan(&orig.Version); err != nil {
		return nil, wrapWrite("ApplyCoverage", err)
	}

	replacement := &domain.ShiftAssignment{
		EmployeeID: coveringEmployeeID,
		ShiftID:    orig.ShiftID,
		StartDate:  from,
		EndDate:    orig.EndDate,
	}

	insert := `
		INSERT INTO shift_assignments (employee_id, shift_id, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, version
	`
	args := []any{replacement.EmployeeID, replacement.ShiftID, replacement.StartDate, replacement.EndDate}
	dst := []any{&replacement.ID, &replacement.IsActive, &replacement.CreatedAt, &replacement.Version}
	if err := tx.QueryRowContext(ctx, insert, args...).Scan(dst...); err != nil {
		return nil, &domain.PersistenceError{Op: "ApplyCoverage", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.PersistenceError{Op: "ApplyCoverage", Cause: err}
	}

	orig.IsActive = false
	orig.EndDate = &from
	return replacement, nil
}

// lockAndVerifyAssignment 在事务内对绑定行加锁，并核对调用方持有的
// 版本号。版本不一致或绑定已不再活跃都说明世界已经变化
func lockAndVerifyAssignment(ctx context.Context, tx *sql.Tx, assignment *domain.ShiftAssignment) error {
	query := `
		SELECT is_active, version FROM shift_assignments
		WHERE id = $1
		FOR UPDATE
	`

	var isActive bool
	var version int32
	if err := tx.QueryRowContext(ctx, query, assignment.ID).Scan(&isActive, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return &domain.PersistenceError{Op: "lockAssignment", Cause: err}
	}

	if version != assignment.Version || !isActive {
		return domain.ErrStaleState
	}

	return nil
}

// checkConflictInTx 在事务内校验：若员工持有 shiftID 且生效区间为
// [from, until]，是否会与其现有的其他活跃绑定发生时间重叠
func (r *Repository) checkConflictInTx(ctx context.Context, tx *sql.Tx, employeeID, shiftID int64, from time.Time, until *time.Time, excludeID int64) error {
	proposed, err := r.shiftWindowInTx(ctx, tx, shiftID)
	if err != nil {
		return err
	}

	query := `
		SELECT a.id, a.shift_id, s.start_time, s.end_time
		FROM shift_assignments a
		JOIN shift_definitions s ON s.id = a.shift_id
		WHERE a.employee_id = $1
			AND a.is_active = TRUE
			AND ($3::date IS NULL OR a.start_date <= $3)
			AND (a.end_date IS NULL OR a.end_date >= $2)
	`

	rows, err := tx.QueryContext(ctx, query, employeeID, from, until)
	if err != nil {
		return &domain.PersistenceError{Op: "checkConflict", Cause: err}
	}
	defer rows.Close()

	for rows.Next() {
		var id, otherShiftID int64
		var startTime, endTime string
		if err := rows.Scan(&id, &otherShiftID, &startTime, &endTime); err != nil {
			return &domain.PersistenceError{Op: "checkConflict", Cause: err}
		}

		if id == excludeID {
			continue
		}

		other := domain.ShiftDefinition{StartTime: startTime, EndTime: endTime}
		window, err := other.Window()
		if err != nil {
			return &domain.PersistenceError{Op: "checkConflict", Cause: err}
		}

		if proposed.Overlaps(window) {
			return &domain.ConflictError{EmployeeID: employeeID, ShiftID: shiftID, ConflictWith: id}
		}
	}

	if err := rows.Err(); err != nil {
		return &domain.PersistenceError{Op: "checkConflict", Cause: err}
	}

	return nil
}

func (r *Repository) shiftWindowInTx(ctx context.Context, tx *sql.Tx, shiftID int64) (domain.ShiftWindow, error) {
	query := `
		SELECT start_time, end_time FROM shift_definitions WHERE id = $1
	`

	shift := domain.ShiftDefinition{ID: shiftID}
	if err := tx.QueryRowContext(ctx, query, shiftID).Scan(&shift.StartTime, &shift.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ShiftWindow{}, domain.ErrNotFound
		}
		return domain.ShiftWindow{}, &domain.PersistenceError{Op: "shiftWindow", Cause: err}
	}

	return shift.Window()
}
