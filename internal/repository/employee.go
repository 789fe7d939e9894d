package repository

import (
	"context"
	"database/sql"

	"github.com/paiban/shiftopt/internal/database"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/normalizer"
)

const (
	selectScheduleSQL = `SELECT id, department, to_char(start_date, 'YYYY-MM-DD') AS start_date,
		to_char(end_date, 'YYYY-MM-DD') AS end_date, status, terminal_state, total_slots, filled_slots,
		coverage_rate, fairness_score, generated_at
		FROM schedules WHERE id = $1`

	selectEmployeesSQL = `SELECT id, name, max_hours_per_week, min_hours_per_week,
		skills, available_days, preferences, restrictions
		FROM employees
		WHERE department = $1 AND status = 'active'
		ORDER BY id`

	selectShiftsSQL = `SELECT id, to_char(date, 'YYYY-MM-DD') AS date,
		to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time,
		required_staff, min_skill_level, allowed_skills, required_certifications, department, priority
		FROM shifts
		WHERE schedule_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, start_time, id`

	selectPriorSQL = `SELECT employee_id, shift_id, to_char(date, 'YYYY-MM-DD') AS date
		FROM schedule_assignments
		WHERE schedule_id = $1
		ORDER BY shift_id, employee_id`
)

// RosterRepo 基于 PostgreSQL 的 RosterRepository
type RosterRepo struct {
	db *database.DB
}

// NewRosterRepository 创建员工/班次仓储
func NewRosterRepository(db *database.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

// GetSchedule 查询排班表
func (r *RosterRepo) GetSchedule(ctx context.Context, scheduleID string) (*Schedule, error) {
	var s Schedule
	if err := r.db.GetContext(ctx, &s, selectScheduleSQL, scheduleID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("排班表", scheduleID)
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排班表失败")
	}
	return &s, nil
}

// LoadRoster 加载部门员工与排班表在日期范围内的班次
func (r *RosterRepo) LoadRoster(ctx context.Context, scheduleID, department, startDate, endDate string) ([]normalizer.RawEmployee, []normalizer.RawShift, error) {
	var employees []normalizer.RawEmployee
	if err := r.db.SelectContext(ctx, &employees, selectEmployeesSQL, department); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败")
	}

	var shifts []normalizer.RawShift
	if err := r.db.SelectContext(ctx, &shifts, selectShiftsSQL, scheduleID, startDate, endDate); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "查询班次失败")
	}
	return employees, shifts, nil
}

// LoadPriorAssignments 加载排班表当前已保存的分配，作为稳定性参照
func (r *RosterRepo) LoadPriorAssignments(ctx context.Context, scheduleID string) ([]model.Assignment, error) {
	var rows []struct {
		EmployeeID string `db:"employee_id"`
		ShiftID    string `db:"shift_id"`
		Date       string `db:"date"`
	}
	if err := r.db.SelectContext(ctx, &rows, selectPriorSQL, scheduleID); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询历史分配失败")
	}

	out := make([]model.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Assignment{EmployeeID: row.EmployeeID, ShiftID: row.ShiftID, Date: row.Date})
	}
	return out, nil
}
