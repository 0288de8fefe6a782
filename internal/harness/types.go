package harness

import (
	"fmt"
	"strings"
)

// TraceEvent is one traced call of a scenario flow.
type TraceEvent struct {
	Step    int64    `json:"step"`
	Action  string   `json:"action"`
	Detail  string   `json:"detail,omitempty"`
	Outcome string   `json:"outcome"`
	Notes   []string `json:"notes,omitempty"` // transitions and migration errors observed during the call
}

// String renders the event as trace lines.
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03d %s", e.Step, e.Action)
	if e.Detail != "" {
		b.WriteString(" " + e.Detail)
	}
	b.WriteString(" -> " + e.Outcome + "\n")
	for _, n := range e.Notes {
		b.WriteString("    " + n + "\n")
	}
	return b.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect_error and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the flow calls in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a traced call.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// RenderTrace renders the full trace with a scenario header. The output is
// stable for a given scenario and is what golden files hold.
func RenderTrace(name string, trace []TraceEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, ev := range trace {
		b.WriteString(ev.String())
	}
	return []byte(b.String())
}
