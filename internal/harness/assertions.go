package harness

import (
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// allFields lets cmp compare unexported struct fields like reflect.DeepEqual.
var allFields = cmp.Exporter(func(reflect.Type) bool { return true })

// Pass records a passing assertion.
func (t *T) Pass(msgAndArgs ...any) {
	t.assert(true, OpPass, nil, "Pass", message(msgAndArgs, "passed"))
}

// Fail records a failing assertion.
func (t *T) Fail(msgAndArgs ...any) {
	t.assert(false, OpFail, nil, "Fail", message(msgAndArgs, "failed"))
}

// Ok asserts that value is true.
func (t *T) Ok(value bool, msgAndArgs ...any) {
	t.assert(value, OpOk, &Comparison{Expected: true, Actual: value}, "Ok",
		message(msgAndArgs, "expected truthy value"))
}

// Absent asserts that value is nil or the zero value of its type.
func (t *T) Absent(value any, msgAndArgs ...any) {
	t.assert(isAbsent(value), OpAbsent, &Comparison{Expected: nil, Actual: value}, "Absent",
		message(msgAndArgs, "expected falsy value"))
}

// Is asserts strict equality: == for comparable values, identity for
// slices, maps, funcs and channels.
func (t *T) Is(actual, expected any, msgAndArgs ...any) {
	t.assert(isSame(actual, expected), OpIs, &Comparison{Expected: expected, Actual: actual}, "Is",
		message(msgAndArgs, "should be equal"))
}

// Not is the negation of Is.
func (t *T) Not(actual, expected any, msgAndArgs ...any) {
	t.assert(!isSame(actual, expected), OpNot, &Comparison{Expected: expected, Actual: actual}, "Not",
		message(msgAndArgs, "should not be equal"))
}

// Alike asserts deep equality.
func (t *T) Alike(actual, expected any, msgAndArgs ...any) {
	t.assert(isAlike(actual, expected), OpAlike, &Comparison{Expected: expected, Actual: actual}, "Alike",
		message(msgAndArgs, "should deep equal"))
}

// Unlike is the negation of Alike.
func (t *T) Unlike(actual, expected any, msgAndArgs ...any) {
	t.assert(!isAlike(actual, expected), OpUnlike, &Comparison{Expected: expected, Actual: actual}, "Unlike",
		message(msgAndArgs, "should not deep equal"))
}

// Exception asserts that fn panics.
func (t *T) Exception(fn func(), msgAndArgs ...any) {
	_, panicked := catch(fn)
	t.assert(panicked, OpException, nil, "Exception", message(msgAndArgs, "should panic"))
}

// Execution asserts that fn returns without panicking.
func (t *T) Execution(fn func(), msgAndArgs ...any) {
	r, panicked := catch(fn)
	var c *Comparison
	if panicked {
		c = &Comparison{Expected: "no panic", Actual: fmt.Sprint(r)}
	}
	t.assert(!panicked, OpExecution, c, "Execution", message(msgAndArgs, "should not panic"))
}

// assert records the outcome. Diagnostics are captured here, on the
// caller's goroutine, while the failing call is still on the stack.
func (t *T) assert(ok bool, op Operator, c *Comparison, method, msg string) {
	a := Assertion{Ok: ok, Operator: op, Message: msg}
	if !ok {
		a.Comparison = c
		a.Diagnostics = t.diagnose(method)
	}
	t.record(a)
}

// message formats testify-style msgAndArgs, falling back to def.
func message(msgAndArgs []any, def string) string {
	switch len(msgAndArgs) {
	case 0:
		return def
	case 1:
		if s, ok := msgAndArgs[0].(string); ok {
			return s
		}
		return fmt.Sprint(msgAndArgs[0])
	default:
		if format, ok := msgAndArgs[0].(string); ok {
			return fmt.Sprintf(format, msgAndArgs[1:]...)
		}
		return fmt.Sprint(msgAndArgs...)
	}
}

func catch(fn func()) (r any, panicked bool) {
	defer func() {
		if r = recover(); r != nil {
			panicked = true
		}
	}()
	fn()
	return nil, false
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func isSame(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	a, e := reflect.ValueOf(actual), reflect.ValueOf(expected)
	if a.Type() != e.Type() {
		return false
	}
	if a.Type().Comparable() {
		return safeEqual(actual, expected)
	}
	switch a.Kind() {
	case reflect.Slice:
		return a.Len() == e.Len() && a.Pointer() == e.Pointer()
	case reflect.Map, reflect.Func, reflect.Chan:
		return a.Pointer() == e.Pointer()
	default:
		return false
	}
}

// safeEqual compares with ==; interfaces nested in structs may still hold
// incomparable values and panic.
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func isAlike(actual, expected any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(actual, expected)
		}
	}()
	return cmp.Equal(actual, expected, allFields)
}
