package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relaymigrate/internal/domain"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent // set by trace assertions for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  %s", ev.String())
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failed assertion.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(ctx, h, result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(ctx context.Context, h *Harness, result *Result, a Assertion) error {
	switch a.Type {
	case AssertFlags:
		return assertFlags(h.engine.Flags(), a)
	case AssertStage:
		return assertStage(h.engine.Stage(), a)
	case AssertBalance:
		return assertBalance(h, a)
	case AssertErrorCount:
		recs, err := h.store.MigrationErrors(ctx, a.Pass)
		if err != nil {
			return err
		}
		return assertCount(a, len(recs))
	case AssertSuccessors:
		return assertCount(a, h.engine.SuccessorCount())
	case AssertCursor:
		return assertCount(a, h.engine.Cursor())
	case AssertPasses:
		return assertCount(a, h.engine.PassesCompleted())
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// flagValue returns the flag with JSON name name.
func flagValue(f domain.Flags, name string) (bool, bool) {
	switch name {
	case "registration_closed":
		return f.RegistrationClosed, true
	case "deployment_closed":
		return f.DeploymentClosed, true
	case "migration_started":
		return f.MigrationStarted, true
	case "migration_first_pass_done":
		return f.MigrationFirstPassDone, true
	case "migration_closed":
		return f.MigrationClosed, true
	}
	return false, false
}

func assertFlags(actual domain.Flags, a Assertion) error {
	names := make([]string, 0, len(a.Flags))
	for name := range a.Flags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		got, _ := flagValue(actual, name)
		if got != a.Flags[name] {
			return &AssertionError{
				Type:     AssertFlags,
				Expected: fmt.Sprintf("%s = %t", name, a.Flags[name]),
				Actual:   fmt.Sprintf("%s = %t", name, got),
			}
		}
	}
	return nil
}

func assertStage(actual domain.Stage, a Assertion) error {
	want, err := domain.ParseStage(a.Stage)
	if err != nil {
		return err
	}
	if actual != want {
		return &AssertionError{Type: AssertStage, Expected: want.String(), Actual: actual.String()}
	}
	return nil
}

func assertBalance(h *Harness, a Assertion) error {
	holder, err := h.holder(a.Holder)
	if err != nil {
		return &AssertionError{Type: AssertBalance, Expected: "holder " + a.Holder, Actual: err.Error()}
	}
	want, err := domain.ParseAmount(a.Amount)
	if err != nil {
		return err
	}
	got := h.ledgers[a.Ledger].Balance(holder)
	if !got.Eq(want) {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s balance of %s = %s", a.Ledger, a.Holder, want.Dec()),
			Actual:   got.Dec(),
		}
	}
	return nil
}

func assertCount(a Assertion, got int) error {
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d", a.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertTraceCount checks that action was called exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the first call of each action appears in the
// given order. Intervening calls are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Action]; !seen {
			positions[ev.Action] = i + 1
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}
