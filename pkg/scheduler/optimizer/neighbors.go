package optimizer

import (
	"fmt"
	"math"

	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveAdd      MoveType = iota // 给缺员班次加人
	MoveRemove                   // 从班次移除一人
	MoveReassign                 // 把员工从班次A调到班次B
	MoveSwap                     // 两名员工互换班次

	moveTypeCount = 4
)

// String 返回移动类型名称
func (t MoveType) String() string {
	switch t {
	case MoveAdd:
		return "add"
	case MoveRemove:
		return "remove"
	case MoveReassign:
		return "reassign"
	case MoveSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Move 邻域移动。Employee 在 From 上（Add 无 From），Other 在 To 上（仅 Swap）
type Move struct {
	Type     MoveType
	Employee int
	Other    int
	From     int
	To       int
}

func (m Move) String() string {
	switch m.Type {
	case MoveAdd:
		return fmt.Sprintf("add(e%d->s%d)", m.Employee, m.To)
	case MoveRemove:
		return fmt.Sprintf("remove(e%d<-s%d)", m.Employee, m.From)
	case MoveReassign:
		return fmt.Sprintf("reassign(e%d:s%d->s%d)", m.Employee, m.From, m.To)
	default:
		return fmt.Sprintf("swap(e%d@s%d,e%d@s%d)", m.Employee, m.From, m.Other, m.To)
	}
}

// Apply 满足全部硬约束时应用移动并返回 true，否则解保持不变
func (m Move) Apply(ev *constraint.Evaluator, st *constraint.State) bool {
	switch m.Type {
	case MoveAdd:
		if !ev.IsFeasible(st, m.Employee, m.To) {
			return false
		}
		st.Assign(m.Employee, m.To)
		return true

	case MoveRemove:
		return st.Unassign(m.Employee, m.From)

	case MoveReassign:
		if m.From == m.To || !st.Unassign(m.Employee, m.From) {
			return false
		}
		if !ev.IsFeasible(st, m.Employee, m.To) {
			st.Assign(m.Employee, m.From)
			return false
		}
		st.Assign(m.Employee, m.To)
		return true

	case MoveSwap:
		if m.From == m.To || m.Employee == m.Other {
			return false
		}
		if !st.Has(m.Employee, m.From) || !st.Has(m.Other, m.To) {
			return false
		}
		st.Unassign(m.Employee, m.From)
		st.Unassign(m.Other, m.To)
		if ev.IsFeasible(st, m.Employee, m.To) {
			st.Assign(m.Employee, m.To)
			if ev.IsFeasible(st, m.Other, m.From) {
				st.Assign(m.Other, m.From)
				return true
			}
			st.Unassign(m.Employee, m.To)
		}
		st.Assign(m.Employee, m.From)
		st.Assign(m.Other, m.To)
		return false
	}
	return false
}

// Undo 撤销一个已应用的移动
func (m Move) Undo(st *constraint.State) {
	switch m.Type {
	case MoveAdd:
		st.Unassign(m.Employee, m.To)
	case MoveRemove:
		st.Assign(m.Employee, m.From)
	case MoveReassign:
		st.Unassign(m.Employee, m.To)
		st.Assign(m.Employee, m.From)
	case MoveSwap:
		st.Unassign(m.Employee, m.To)
		st.Unassign(m.Other, m.From)
		st.Assign(m.Employee, m.From)
		st.Assign(m.Other, m.To)
	}
}

// NeighborhoodGenerator 邻域生成器
type NeighborhoodGenerator struct {
	ev          *constraint.Evaluator
	rng         RNG
	removeFloor float64
	maxAttempts int
}

// NewNeighborhoodGenerator 创建邻域生成器
func NewNeighborhoodGenerator(ev *constraint.Evaluator, rng RNG, removeFloor float64, maxAttempts int) *NeighborhoodGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfig().MaxMoveAttempts
	}
	return &NeighborhoodGenerator{
		ev:          ev,
		rng:         rng,
		removeFloor: removeFloor,
		maxAttempts: maxAttempts,
	}
}

// Propose 随机抽取移动类型与对象，应用第一个硬可行的移动。
// 抽取 maxAttempts 次仍找不到时返回 false，解保持不变
func (n *NeighborhoodGenerator) Propose(st *constraint.State) (Move, bool) {
	under := st.UnderCovered()
	staffed := staffedShifts(st, len(n.ev.Shifts()))

	for i := 0; i < n.maxAttempts; i++ {
		var (
			m  Move
			ok bool
		)
		switch MoveType(n.rng.Intn(moveTypeCount)) {
		case MoveAdd:
			m, ok = n.drawAdd(under)
		case MoveRemove:
			m, ok = n.drawRemove(st, staffed)
		case MoveReassign:
			m, ok = n.drawReassign(st, staffed, under)
		case MoveSwap:
			m, ok = n.drawSwap(st, staffed)
		}
		if ok && m.Apply(n.ev, st) {
			return m, true
		}
	}
	return Move{}, false
}

// ForcedAdd 按班次顺序扫描缺员班次，应用第一个可行的加人移动
func (n *NeighborhoodGenerator) ForcedAdd(st *constraint.State) (Move, bool) {
	for _, s := range st.UnderCovered() {
		for _, e := range n.ev.Candidates(s) {
			m := Move{Type: MoveAdd, Employee: e, To: s}
			if m.Apply(n.ev, st) {
				return m, true
			}
		}
	}
	return Move{}, false
}

func (n *NeighborhoodGenerator) drawAdd(under []int) (Move, bool) {
	if len(under) == 0 {
		return Move{}, false
	}
	s := under[n.rng.Intn(len(under))]
	cands := n.ev.Candidates(s)
	if len(cands) == 0 {
		return Move{}, false
	}
	return Move{Type: MoveAdd, Employee: cands[n.rng.Intn(len(cands))], To: s}, true
}

func (n *NeighborhoodGenerator) drawRemove(st *constraint.State, staffed []int) (Move, bool) {
	if len(staffed) == 0 {
		return Move{}, false
	}
	s := staffed[n.rng.Intn(len(staffed))]
	if st.AssignedCount(s)-1 < n.keepAtLeast(s) {
		return Move{}, false
	}
	emps := st.ShiftEmployees(s)
	return Move{Type: MoveRemove, Employee: emps[n.rng.Intn(len(emps))], From: s}, true
}

// drawReassign 目标班次只能是缺员班次，满员班次会被人数上限拒绝
func (n *NeighborhoodGenerator) drawReassign(st *constraint.State, staffed, under []int) (Move, bool) {
	if len(staffed) == 0 || len(under) == 0 {
		return Move{}, false
	}
	from := staffed[n.rng.Intn(len(staffed))]
	to := under[n.rng.Intn(len(under))]
	if from == to {
		return Move{}, false
	}
	emps := st.ShiftEmployees(from)
	return Move{Type: MoveReassign, Employee: emps[n.rng.Intn(len(emps))], From: from, To: to}, true
}

func (n *NeighborhoodGenerator) drawSwap(st *constraint.State, staffed []int) (Move, bool) {
	if len(staffed) < 2 {
		return Move{}, false
	}
	a := staffed[n.rng.Intn(len(staffed))]
	b := staffed[n.rng.Intn(len(staffed))]
	if a == b {
		return Move{}, false
	}
	ea, eb := st.ShiftEmployees(a), st.ShiftEmployees(b)
	return Move{
		Type:     MoveSwap,
		Employee: ea[n.rng.Intn(len(ea))],
		From:     a,
		Other:    eb[n.rng.Intn(len(eb))],
		To:       b,
	}, true
}

// keepAtLeast 移除后班次至少保留的人数
func (n *NeighborhoodGenerator) keepAtLeast(s int) int {
	required := n.ev.Shifts()[s].RequiredStaff
	return int(math.Ceil(n.removeFloor * float64(required)))
}

func staffedShifts(st *constraint.State, nShifts int) []int {
	var out []int
	for s := 0; s < nShifts; s++ {
		if st.AssignedCount(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}
