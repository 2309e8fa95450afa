package schedule

import "strings"

// Outcome is the result of one scheduling call. Order is set only on
// success; failures never carry a partial order.
type Outcome struct {
	Kind    Kind
	Order   []string
	Message string
	Cycle   []string
}

func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns nil on success and an *Error otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Kind: o.Kind, Message: o.Message, Cycle: o.Cycle}
}

func failure(kind Kind, msg string) Outcome {
	return Outcome{Kind: kind, Message: msg}
}

// Evaluate decides between success and a detected cycle. expected is the
// length a complete order must have.
func Evaluate(order []string, expected int) Outcome {
	if len(order) == expected {
		return Outcome{Kind: KindSuccess, Order: order}
	}
	return failure(KindCycleDetected, MsgCycleDetected)
}

func withCycle(o Outcome, cycle []string) Outcome {
	if len(cycle) == 0 {
		return o
	}
	o.Cycle = cycle
	o.Message = MsgCycleDetected + ": " + strings.Join(cycle, " -> ")
	return o
}
