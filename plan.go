package rtree

import "github.com/scigolib/rtree/internal/structures"

// ConstraintOp identifies a host query constraint operator.
type ConstraintOp int

// Operators the planner understands.
const (
	OpEQ ConstraintOp = iota
	OpLE
	OpLT
	OpGE
	OpGT
	OpMatch
)

// ConstraintInfo describes one constraint the host query carries.
// Column 0 (or -1) is the rowid alias; columns 1..2N are coordinates.
type ConstraintInfo struct {
	Column int
	Op     ConstraintOp
	Usable bool
}

// Plan is the access strategy handed back to the host. Num 1 is a direct
// rowid lookup; Num 2 is a constrained tree scan whose active constraints
// are serialized into Str as (operator, column) byte pairs. Used assigns
// each input constraint its 1-based position in the filter argument list
// (zero when the constraint is not consumed).
type Plan struct {
	Num  int
	Str  []byte
	Cost float64
	Used []int
}

// BestIndex picks the access strategy for a set of query constraints.
//
// An equality on the rowid column short-circuits to the direct lookup
// strategy. Otherwise every usable coordinate or MATCH constraint is
// encoded into the plan string and the cost shrinks with the number of
// constraints the scan can prune on.
func (x *Index) BestIndex(constraints []ConstraintInfo) Plan {
	used := make([]int, len(constraints))

	for i, p := range constraints {
		if p.Usable && p.Column <= 0 && p.Op == OpEQ {
			used[i] = 1
			return Plan{Num: 1, Cost: 10.0, Used: used}
		}
	}

	var str []byte
	n := 0
	for i, p := range constraints {
		if !p.Usable || (p.Column <= 0 && p.Op != OpMatch) {
			continue
		}
		op, ok := planOp(p.Op)
		if !ok {
			continue
		}
		str = append(str, byte(op), byte('a'+p.Column-1))
		n++
		used[i] = n
	}
	return Plan{
		Num:  2,
		Str:  str,
		Cost: 2000000.0 / float64(n+1),
		Used: used,
	}
}

func planOp(op ConstraintOp) (structures.Op, bool) {
	switch op {
	case OpEQ:
		return structures.OpEQ, true
	case OpLE:
		return structures.OpLE, true
	case OpLT:
		return structures.OpLT, true
	case OpGE:
		return structures.OpGE, true
	case OpGT:
		return structures.OpGT, true
	case OpMatch:
		return structures.OpMatch, true
	}
	return 0, false
}
