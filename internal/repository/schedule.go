package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paiban/shiftopt/internal/database"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/stats"
)

const (
	deleteAssignmentsSQL = `DELETE FROM schedule_assignments WHERE schedule_id = $1`

	insertAssignmentSQL = `INSERT INTO schedule_assignments
		(id, schedule_id, employee_id, shift_id, date, start_time, end_time, hours, created_at)
		VALUES (:id, :schedule_id, :employee_id, :shift_id, :date, :start_time, :end_time, :hours, :created_at)`

	updateScheduleSQL = `UPDATE schedules SET
		status = $2, terminal_state = $3, total_slots = $4, filled_slots = $5,
		coverage_rate = $6, fairness_score = $7, generated_at = $8, updated_at = $8
		WHERE id = $1`
)

// assignmentRow schedule_assignments 表的一行
type assignmentRow struct {
	ID         string    `db:"id"`
	ScheduleID string    `db:"schedule_id"`
	EmployeeID string    `db:"employee_id"`
	ShiftID    string    `db:"shift_id"`
	Date       string    `db:"date"`
	StartTime  string    `db:"start_time"`
	EndTime    string    `db:"end_time"`
	Hours      float64   `db:"hours"`
	CreatedAt  time.Time `db:"created_at"`
}

// ScheduleRepo 基于 PostgreSQL 的 AssignmentRepository
type ScheduleRepo struct {
	db  *database.DB
	now func() time.Time
}

// NewScheduleRepository 创建排班仓储
func NewScheduleRepository(db *database.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db, now: time.Now}
}

// ReplaceAssignments 删除旧分配、批量写入新分配并更新排班表汇总，任一步失败整体回滚
func (r *ScheduleRepo) ReplaceAssignments(ctx context.Context, scheduleID string, assignments []model.Assignment, report *stats.Report, terminalState string) error {
	now := r.now().UTC()

	rows := make([]assignmentRow, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, assignmentRow{
			ID:         uuid.NewString(),
			ScheduleID: scheduleID,
			EmployeeID: a.EmployeeID,
			ShiftID:    a.ShiftID,
			Date:       a.Date,
			StartTime:  a.StartTime,
			EndTime:    a.EndTime,
			Hours:      a.Hours,
			CreatedAt:  now,
		})
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteAssignmentsSQL, scheduleID); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "删除旧分配失败")
		}

		for i := range rows {
			if _, err := tx.NamedExecContext(ctx, insertAssignmentSQL, rows[i]); err != nil {
				return errors.Wrap(err, errors.CodeDatabaseError, "写入分配失败").
					WithField("shift_id", rows[i].ShiftID).
					WithField("employee_id", rows[i].EmployeeID)
			}
		}

		var total, filled int
		var coverage, fairness float64
		if report != nil {
			total, filled = report.RequiredSlots, report.FilledSlots
			coverage, fairness = report.CoverageRate, report.FairnessScore
		}
		res, err := tx.ExecContext(ctx, updateScheduleSQL,
			scheduleID, StatusGenerated, terminalState, total, filled, coverage, fairness, now)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "更新排班表失败")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errors.NotFound("排班表", scheduleID)
		}
		return nil
	})
}
