package intrinsic

import (
	"strings"
)

// Ordering is a memory-ordering token of an atomic intrinsic. Evaluation is
// single-threaded, so orderings are validated and then ignored.
type Ordering uint8

const (
	OrderingSeqCst Ordering = iota
	OrderingRelaxed
	OrderingRelease
	OrderingAcquire
	OrderingAcqRel
)

var orderingNames = map[string]Ordering{
	"seqcst":  OrderingSeqCst,
	"relaxed": OrderingRelaxed,
	"release": OrderingRelease,
	"acquire": OrderingAcquire,
	"acqrel":  OrderingAcqRel,
}

func (o Ordering) String() string {
	switch o {
	case OrderingRelaxed:
		return "relaxed"
	case OrderingRelease:
		return "release"
	case OrderingAcquire:
		return "acquire"
	case OrderingAcqRel:
		return "acqrel"
	default:
		return "seqcst"
	}
}

// ParseOrdering parses a single ordering token.
func ParseOrdering(s string) (Ordering, bool) {
	o, ok := orderingNames[s]
	return o, ok
}

// atomicName is a parsed atomic intrinsic name.
type atomicName struct {
	op        string
	orderings []Ordering
}

// parseAtomicName splits "atomic_<op>[_<ordering>[_<ordering>]]". Missing
// orderings default to seqcst. It reports false for names that are not
// atomics or use an ordering the operation cannot take.
func parseAtomicName(name string) (atomicName, bool) {
	rest, ok := strings.CutPrefix(name, "atomic_")
	if !ok || rest == "" {
		return atomicName{}, false
	}

	parts := strings.Split(rest, "_")
	op := parts[0]
	var orderings []Ordering
	for _, p := range parts[1:] {
		o, ok := ParseOrdering(p)
		if !ok {
			return atomicName{}, false
		}
		orderings = append(orderings, o)
	}

	maxOrderings := 1
	if op == "cxchg" || op == "cxchgweak" {
		maxOrderings = 2
	}
	if len(orderings) > maxOrderings {
		return atomicName{}, false
	}
	if len(orderings) == 0 {
		orderings = []Ordering{OrderingSeqCst}
	}

	if !orderingAllowed(op, orderings) {
		return atomicName{}, false
	}
	return atomicName{op: op, orderings: orderings}, true
}

// orderingAllowed rejects combinations no hardware model defines: loads
// cannot release, stores cannot acquire, and a failed compare-exchange is
// only a load.
func orderingAllowed(op string, orderings []Ordering) bool {
	switch op {
	case "load":
		return orderings[0] != OrderingRelease && orderings[0] != OrderingAcqRel
	case "store":
		return orderings[0] != OrderingAcquire && orderings[0] != OrderingAcqRel
	case "cxchg", "cxchgweak":
		if len(orderings) == 2 {
			f := orderings[1]
			return f != OrderingRelease && f != OrderingAcqRel
		}
	}
	return true
}
