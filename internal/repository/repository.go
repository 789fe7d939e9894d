// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/normalizer"
	"github.com/paiban/shiftopt/pkg/stats"
)

// Schedule 排班表记录
type Schedule struct {
	ID            string     `db:"id" json:"id"`
	Department    string     `db:"department" json:"department"`
	StartDate     string     `db:"start_date" json:"start_date"`
	EndDate       string     `db:"end_date" json:"end_date"`
	Status        string     `db:"status" json:"status"` // draft/generated/published
	TerminalState string     `db:"terminal_state" json:"terminal_state"`
	TotalSlots    int        `db:"total_slots" json:"total_slots"`
	FilledSlots   int        `db:"filled_slots" json:"filled_slots"`
	CoverageRate  float64    `db:"coverage_rate" json:"coverage_rate"`
	FairnessScore float64    `db:"fairness_score" json:"fairness_score"`
	GeneratedAt   *time.Time `db:"generated_at" json:"generated_at,omitempty"`
}

// 排班表状态
const (
	StatusDraft     = "draft"
	StatusGenerated = "generated"
)

// RosterRepository 读取一次排班所需的员工、班次与上一版结果
type RosterRepository interface {
	GetSchedule(ctx context.Context, scheduleID string) (*Schedule, error)
	// LoadRoster 返回部门在日期范围内的原始员工与班次行，JSON 列原样保留
	LoadRoster(ctx context.Context, scheduleID, department, startDate, endDate string) ([]normalizer.RawEmployee, []normalizer.RawShift, error)
	LoadPriorAssignments(ctx context.Context, scheduleID string) ([]model.Assignment, error)
}

// AssignmentRepository 写入排班结果
type AssignmentRepository interface {
	// ReplaceAssignments 在一个事务中替换排班表的全部分配并更新汇总
	ReplaceAssignments(ctx context.Context, scheduleID string, assignments []model.Assignment, report *stats.Report, terminalState string) error
}
