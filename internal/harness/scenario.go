package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
)

// Scenario is a scripted migration run against the simulated chain.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Ledgers lists the tracked balance types, in migration order.
	Ledgers []string `yaml:"ledgers"`

	// Entities names the relay contracts deployed before the run. Any other
	// name used in a step resolves to an address without code.
	Entities []string `yaml:"entities"`

	// Costs overrides DefaultScenarioCosts.
	Costs *Costs `yaml:"costs,omitempty"`

	// Setup runs before the flow. Every setup step must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the traced part of the run.
	Flow []Step `yaml:"flow"`

	// Assertions are checked against the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Costs is the YAML form of engine.CostSchedule.
type Costs struct {
	Provision    uint64 `yaml:"provision"`
	KeyRead      uint64 `yaml:"key_read"`
	BalanceRead  uint64 `yaml:"balance_read"`
	PullTransfer uint64 `yaml:"pull_transfer"`
	Bookkeeping  uint64 `yaml:"bookkeeping"`
}

// DefaultScenarioCosts keeps budgets in scenario files small and readable:
// a deploy step needs more than 11 gas, a pass step over two ledgers at
// least 9.
var DefaultScenarioCosts = engine.CostSchedule{
	Provision:    10,
	KeyRead:      1,
	BalanceRead:  1,
	PullTransfer: 3,
	Bookkeeping:  1,
}

// Schedule returns the engine cost schedule for the scenario.
func (s *Scenario) Schedule() engine.CostSchedule {
	if s.Costs == nil {
		return DefaultScenarioCosts
	}
	return engine.CostSchedule{
		Provision:    s.Costs.Provision,
		KeyRead:      s.Costs.KeyRead,
		BalanceRead:  s.Costs.BalanceRead,
		PullTransfer: s.Costs.PullTransfer,
		Bookkeeping:  s.Costs.Bookkeeping,
	}
}

// Step is one engine call or one change to the simulated world.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Caller names the account making a privileged call. Defaults to admin.
	Caller string `yaml:"caller,omitempty"`

	// Entities are registered by a register step.
	Entities []string `yaml:"entities,omitempty"`

	// Gas is the budget of a deploy or pass step. Unlimited when absent.
	Gas *uint64 `yaml:"gas,omitempty"`

	// Until "done" repeats a deploy step until deployment closes, or a pass
	// step until the pass completes. Each call is traced.
	Until string `yaml:"until,omitempty"`

	// Ledger, Entity and Amount parameterize world steps.
	Ledger string `yaml:"ledger,omitempty"`
	Entity string `yaml:"entity,omitempty"`
	Amount string `yaml:"amount,omitempty"`

	// Key names the new authorization key of a rotate_key step.
	Key string `yaml:"key,omitempty"`

	// Reason is the injected error message of a fail_* step.
	Reason string `yaml:"reason,omitempty"`

	// ExpectError is the error code the call must fail with, or
	// "INFRASTRUCTURE" for a failure that is not a call-aborting error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	ActionRegister        = "register"
	ActionEndRegistration = "end_registration"
	ActionDeploy          = "deploy"
	ActionStart           = "start"
	ActionPass            = "pass"
	ActionEnd             = "end"

	ActionFund          = "fund"
	ActionApprove       = "approve"
	ActionRevoke        = "revoke"
	ActionRotateKey     = "rotate_key"
	ActionFailProvision = "fail_provision"
	ActionFailReads     = "fail_reads"
	ActionHealReads     = "heal_reads"
)

// UntilDone is the only accepted value of Step.Until.
const UntilDone = "done"

// ExpectInfrastructure matches any error that is not a call-aborting error.
const ExpectInfrastructure = "INFRASTRUCTURE"

// Assertion checks the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Flags are the expected phase flags, keyed by their JSON names.
	Flags map[string]bool `yaml:"flags,omitempty"`

	// Ledger, Holder and Amount describe a balance assertion. Holder is an
	// entity name or "successor:<entity>".
	Ledger string `yaml:"ledger,omitempty"`
	Holder string `yaml:"holder,omitempty"`
	Amount string `yaml:"amount,omitempty"`

	// Count is the expected number for counting assertions.
	Count int `yaml:"count"`

	// Pass filters error_count to one pass. 0 counts every pass.
	Pass int `yaml:"pass,omitempty"`

	// Stage is the expected stage name, e.g. "first-pass-done".
	Stage string `yaml:"stage,omitempty"`

	// Action and Actions are used by the trace assertions.
	Action  string   `yaml:"action,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion types.
const (
	AssertFlags      = "flags"
	AssertStage      = "stage"
	AssertBalance    = "balance"
	AssertErrorCount = "error_count"
	AssertSuccessors = "successors"
	AssertCursor     = "cursor"
	AssertPasses     = "passes"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Ledgers) == 0 {
		return fmt.Errorf("ledgers list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Ledgers))
	for _, l := range s.Ledgers {
		if l == "" || seen[l] {
			return fmt.Errorf("ledgers: empty or duplicate symbol %q", l)
		}
		seen[l] = true
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if err := s.Schedule().Validate(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateStep(step, seen); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.ExpectError != "" {
			return fmt.Errorf("setup[%d]: expect_error is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step, seen); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, seen); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, ledgers map[string]bool) error {
	needLedger := func() error {
		if !ledgers[step.Ledger] {
			return fmt.Errorf("%s: unknown ledger %q", step.Action, step.Ledger)
		}
		return nil
	}
	needEntity := func() error {
		if step.Entity == "" {
			return fmt.Errorf("%s: entity is required", step.Action)
		}
		return nil
	}
	needAmount := func() error {
		if _, err := domain.ParseAmount(step.Amount); err != nil {
			return fmt.Errorf("%s: %w", step.Action, err)
		}
		return nil
	}

	if step.Until != "" {
		if step.Until != UntilDone {
			return fmt.Errorf("until must be %q", UntilDone)
		}
		if step.Action != ActionDeploy && step.Action != ActionPass {
			return fmt.Errorf("until is only valid for deploy and pass")
		}
	}

	switch step.Action {
	case ActionRegister, ActionEndRegistration, ActionDeploy, ActionStart, ActionPass, ActionEnd:
		return nil
	case ActionFund:
		return firstErr(needLedger(), needEntity(), needAmount())
	case ActionApprove:
		if step.Amount != "" {
			return firstErr(needLedger(), needEntity(), needAmount())
		}
		return firstErr(needLedger(), needEntity())
	case ActionRevoke:
		return firstErr(needLedger(), needEntity())
	case ActionRotateKey:
		if step.Key == "" {
			return fmt.Errorf("rotate_key: key is required")
		}
		return nil
	case ActionFailProvision:
		if step.Reason == "" {
			return fmt.Errorf("fail_provision: reason is required")
		}
		return nil
	case ActionFailReads:
		if step.Reason == "" {
			return fmt.Errorf("fail_reads: reason is required")
		}
		return needLedger()
	case ActionHealReads:
		return needLedger()
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func validateAssertion(a Assertion, ledgers map[string]bool) error {
	switch a.Type {
	case AssertFlags:
		if len(a.Flags) == 0 {
			return fmt.Errorf("flags: flags map is required")
		}
		for name := range a.Flags {
			if _, ok := flagValue(domain.Flags{}, name); !ok {
				return fmt.Errorf("flags: unknown flag %q", name)
			}
		}
	case AssertStage:
		if _, err := domain.ParseStage(a.Stage); err != nil {
			return fmt.Errorf("stage: %w", err)
		}
	case AssertBalance:
		if !ledgers[a.Ledger] {
			return fmt.Errorf("balance: unknown ledger %q", a.Ledger)
		}
		if a.Holder == "" {
			return fmt.Errorf("balance: holder is required")
		}
		if _, err := domain.ParseAmount(a.Amount); err != nil {
			return fmt.Errorf("balance: %w", err)
		}
	case AssertErrorCount, AssertSuccessors, AssertCursor, AssertPasses:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", a.Type)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("trace_count: action is required")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count: count must be non-negative")
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("trace_order: actions list is required")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
