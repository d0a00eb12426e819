package harness

import (
	"fmt"
	"math"
	"reflect"
)

const (
	msgPlanInvalid = "plan takes a positive whole number only"
	msgPlanTwice   = "plan can only be set once"
)

// Plan declares how many assertions the test will run. The test ends by
// itself once that many have been recorded. A value below 1 is recorded as
// a failing plan assertion and leaves the test unplanned.
func (t *T) Plan(n int) {
	t.setPlan(n, "Plan")
}

// PlanValue is Plan for untyped sources such as decoded suite files. Any
// numeric value holding a positive whole number is accepted.
func (t *T) PlanValue(v any) {
	n, ok := wholeNumber(v)
	if !ok {
		t.assert(false, OpPlan, nil, "PlanValue", msgPlanInvalid)
		return
	}
	t.setPlan(n, "PlanValue")
}

func (t *T) setPlan(n int, method string) {
	if n <= 0 {
		t.assert(false, OpPlan, nil, method, msgPlanInvalid)
		return
	}

	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		t.h.lateAssertion(t, Assertion{Ok: true, Operator: OpPlan, Message: fmt.Sprintf("plan %d", n)})
		return
	}
	if t.plan > 0 {
		t.mu.Unlock()
		t.assert(false, OpPlan, &Comparison{Expected: t.planned(), Actual: n}, method, msgPlanTwice)
		return
	}
	t.plan = n
	reached := t.count >= n
	t.mu.Unlock()

	if reached {
		t.End()
	}
}

func (t *T) planned() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plan
}

// checkPlanLocked returns the mismatch failure for a planned test whose
// assertion count differs from its plan.
func (t *T) checkPlanLocked() *Failure {
	if t.plan == 0 || t.count == t.plan {
		return nil
	}
	return &Failure{
		Operator:   OpPlan,
		Message:    fmt.Sprintf("planned %d assertions but ran %d", t.plan, t.count),
		Comparison: &Comparison{Expected: t.plan, Actual: t.count},
	}
}

// wholeNumber converts any Go numeric holding a whole number that fits in
// an int.
func wholeNumber(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		// float64(math.MaxInt) rounds up to 2^63, which int cannot hold.
		if math.IsNaN(f) || f != math.Trunc(f) || f >= float64(math.MaxInt) || f < float64(math.MinInt) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
