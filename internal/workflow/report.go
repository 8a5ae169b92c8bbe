package workflow

import (
	"fmt"

	"github.com/debemdeboas/locs-review/internal/model"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type Step string

const (
	StepPublish  Step = "publish"
	StepRelocate Step = "relocate"
	StepUnqueue  Step = "unqueue"
	StepPurge    Step = "purge"
)

// Outcome is the tagged result of one step.
type Outcome int

const (
	Applied Outcome = iota
	AlreadyApplied
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already_applied"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{Applied, AlreadyApplied, Failed} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

type StepResult struct {
	Step    Step    `json:"step"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// Report lists the steps an invocation reached, in order.
type Report struct {
	Action Action       `json:"action"`
	ID     model.ItemID `json:"id"`
	Steps  []StepResult `json:"steps"`
}

func (r *Report) add(step Step, outcome Outcome, err error) {
	r.Steps = append(r.Steps, StepResult{Step: step, Outcome: outcome, Err: err})
}

func (r *Report) Outcome(step Step) (Outcome, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Outcome, true
		}
	}
	return 0, false
}

// AlreadyPublished is set when an approval found the record already published.
func (r *Report) AlreadyPublished() bool {
	o, ok := r.Outcome(StepPublish)
	return ok && o == AlreadyApplied
}

// NoOp reports a completed invocation where every step was already applied.
func (r *Report) NoOp() bool {
	if len(r.Steps) == 0 {
		return false
	}
	for _, s := range r.Steps {
		if s.Outcome != AlreadyApplied {
			return false
		}
	}
	return true
}
