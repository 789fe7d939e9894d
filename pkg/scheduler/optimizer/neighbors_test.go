package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftopt/pkg/model"
	"github.com/paiban/shiftopt/pkg/scheduler/constraint"
)

// scriptedRNG 按脚本循环返回取值，Intn 对 n 取模
type scriptedRNG struct {
	ints   []int
	floats []float64
	i, f   int
}

func (r *scriptedRNG) Intn(n int) int {
	v := r.ints[r.i%len(r.ints)]
	r.i++
	return v % n
}

func (r *scriptedRNG) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[r.f%len(r.floats)]
	r.f++
	return v
}

func newTestEvaluator(t *testing.T, employees []model.EmployeeProfile, shifts []model.ShiftRequirement) *constraint.Evaluator {
	t.Helper()
	for i := range shifts {
		require.NoError(t, shifts[i].Resolve())
	}
	return constraint.NewEvaluator(employees, shifts, constraint.Options{})
}

func TestMoveType_String(t *testing.T) {
	assert.Equal(t, "add", MoveAdd.String())
	assert.Equal(t, "remove", MoveRemove.String())
	assert.Equal(t, "reassign", MoveReassign.String())
	assert.Equal(t, "swap", MoveSwap.String())
	assert.Equal(t, "unknown", MoveType(9).String())
}

func TestMove_ApplyUndoRestoresCost(t *testing.T) {
	employees := []model.EmployeeProfile{testEmployee("e1"), testEmployee("e2"), testEmployee("e3")}
	shifts := []model.ShiftRequirement{
		testShift("s1", "2026-01-12", 2),
		testShift("s2", "2026-01-13", 1),
	}
	ev := newTestEvaluator(t, employees, shifts)
	st := ev.NewState()
	st.Assign(0, 0)
	st.Assign(1, 1)

	tests := []struct {
		name string
		move Move
	}{
		{"加人", Move{Type: MoveAdd, Employee: 2, To: 0}},
		{"移除", Move{Type: MoveRemove, Employee: 0, From: 0}},
		{"调班", Move{Type: MoveReassign, Employee: 1, From: 1, To: 0}},
		{"互换", Move{Type: MoveSwap, Employee: 0, From: 0, Other: 1, To: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := st.Cost()
			assignments := st.Assignments()

			require.True(t, tt.move.Apply(ev, st), tt.move.String())
			assert.True(t, st.Consistent())

			tt.move.Undo(st)
			assert.InDelta(t, before, st.Cost(), 1e-9)
			assert.Equal(t, assignments, st.Assignments())
			assert.True(t, st.Consistent())
		})
	}
}

func TestMove_InfeasibleLeavesStateUntouched(t *testing.T) {
	employees := []model.EmployeeProfile{testEmployee("e1"), testEmployee("e2", "cook")}
	shifts := []model.ShiftRequirement{
		testShift("s1", "2026-01-12", 1),
		testShift("s2", "2026-01-12", 1, "cook"),
	}
	ev := newTestEvaluator(t, employees, shifts)
	st := ev.NewState()
	st.Assign(0, 0)
	st.Assign(1, 1)
	before := st.Assignments()

	// e1 不会做饭，互换失败
	assert.False(t, Move{Type: MoveSwap, Employee: 0, From: 0, Other: 1, To: 1}.Apply(ev, st))
	// 同一时段且满员
	assert.False(t, Move{Type: MoveReassign, Employee: 0, From: 0, To: 1}.Apply(ev, st))
	assert.False(t, Move{Type: MoveAdd, Employee: 0, To: 0}.Apply(ev, st))
	assert.False(t, Move{Type: MoveRemove, Employee: 1, From: 0}.Apply(ev, st))

	assert.Equal(t, before, st.Assignments())
}

func TestNeighborhood_ProposeAdd(t *testing.T) {
	employees := []model.EmployeeProfile{testEmployee("e1"), testEmployee("e2")}
	shifts := []model.ShiftRequirement{testShift("s1", "2026-01-12", 1)}
	ev := newTestEvaluator(t, employees, shifts)
	st := ev.NewState()

	n := NewNeighborhoodGenerator(ev, &scriptedRNG{ints: []int{0}}, 0.5, 4)

	m, ok := n.Propose(st)
	require.True(t, ok)
	assert.Equal(t, Move{Type: MoveAdd, Employee: 0, To: 0}, m)
	assert.True(t, st.Has(0, 0))

	// 已满员，只抽加人移动时找不到
	_, ok = n.Propose(st)
	assert.False(t, ok)
	_, ok = n.ForcedAdd(st)
	assert.False(t, ok)
}

func TestNeighborhood_RemoveFloor(t *testing.T) {
	employees := []model.EmployeeProfile{testEmployee("e1"), testEmployee("e2")}
	shifts := []model.ShiftRequirement{testShift("s1", "2026-01-12", 2)}
	ev := newTestEvaluator(t, employees, shifts)

	tests := []struct {
		name  string
		floor float64
		ok    bool
	}{
		{"保留一半", 0.5, true},
		{"不允许减员", 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ev.NewState()
			st.Assign(0, 0)
			st.Assign(1, 0)

			n := NewNeighborhoodGenerator(ev, &scriptedRNG{ints: []int{int(MoveRemove)}}, tt.floor, 3)
			m, ok := n.Propose(st)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, MoveRemove, m.Type)
				assert.Equal(t, 1, st.AssignedCount(0))
			} else {
				assert.Equal(t, 2, st.AssignedCount(0))
			}
		})
	}
}

func TestNeighborhood_ForcedAddScansInOrder(t *testing.T) {
	employees := []model.EmployeeProfile{testEmployee("e1"), testEmployee("e2", "cook")}
	shifts := []model.ShiftRequirement{
		testShift("s1", "2026-01-12", 1, "cook"),
		testShift("s2", "2026-01-13", 1),
	}
	ev := newTestEvaluator(t, employees, shifts)
	st := ev.NewState()

	n := NewNeighborhoodGenerator(ev, &scriptedRNG{ints: []int{0}}, 0.5, 1)
	m, ok := n.ForcedAdd(st)
	require.True(t, ok)
	assert.Equal(t, Move{Type: MoveAdd, Employee: 1, To: 0}, m)

	m, ok = n.ForcedAdd(st)
	require.True(t, ok)
	assert.Equal(t, Move{Type: MoveAdd, Employee: 0, To: 1}, m)
}

func TestAnnealer_Accept(t *testing.T) {
	a := &annealer{rng: &scriptedRNG{ints: []int{0}, floats: []float64{0.99}}}

	assert.True(t, a.accept(-5, 1))
	assert.True(t, a.accept(0, 1))
	// exp(-1/100) ≈ 0.990
	assert.True(t, a.accept(1, 100))
	// exp(-10/100) ≈ 0.905
	assert.False(t, a.accept(10, 100))
}

func TestBoltzmannProbability(t *testing.T) {
	tests := []struct {
		name        string
		delta, temp float64
		want        float64
	}{
		{"改进总是接受", -3, 10, 1},
		{"持平", 0, 10, 1},
		{"零温拒绝", 5, 0, 0},
		{"常规", 10, 10, 0.36787944117},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, boltzmannProbability(tt.delta, tt.temp), 1e-9)
		})
	}
}
