package dialogue

import (
	"context"
)

// Suspension is the payload a suspended step hands back to the caller: the
// prompt to show, the menu of allowed replies, and the stage label. The next
// Resume call injects the user's reply back into the same step.
type Suspension struct {
	Prompt           string   `json:"prompt"`
	Title            string   `json:"title,omitempty"`
	SuggestedReplies []string `json:"suggested_replies,omitempty"`
	Stage            string   `json:"stage"`
}

// Copy returns a copy of the suspension.
func (s *Suspension) Copy() *Suspension {
	if s == nil {
		return nil
	}
	c := *s
	if s.SuggestedReplies != nil {
		c.SuggestedReplies = make([]string, len(s.SuggestedReplies))
		copy(c.SuggestedReplies, s.SuggestedReplies)
	}
	return &c
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeSuspend
	outcomeTerminate
)

// Outcome is the tagged result of a step evaluation: continue to the next
// step, suspend awaiting external input, or terminate the session.
type Outcome struct {
	kind       outcomeKind
	suspension *Suspension
}

// Continue signals that execution should proceed to the next step.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// Suspend signals that execution should pause with the given payload.
func Suspend(s *Suspension) Outcome {
	return Outcome{kind: outcomeSuspend, suspension: s}
}

// Terminate signals that the session has reached a terminal state.
func Terminate() Outcome {
	return Outcome{kind: outcomeTerminate}
}

// IsContinue reports whether the outcome continues execution.
func (o Outcome) IsContinue() bool { return o.kind == outcomeContinue }

// IsSuspend reports whether the outcome suspends execution.
func (o Outcome) IsSuspend() bool { return o.kind == outcomeSuspend }

// IsTerminate reports whether the outcome terminates the session.
func (o Outcome) IsTerminate() bool { return o.kind == outcomeTerminate }

// Suspension returns the suspension payload for a suspend outcome.
func (o Outcome) Suspension() *Suspension { return o.suspension }

// Step represents a named unit of graph logic. A step mutates the record it
// is given and reports an outcome. The resume argument carries the external
// value injected on the first step evaluated during a Resume call and is
// empty otherwise.
//
// Steps must be idempotent on re-entry: a step whose field is already
// populated from a prior turn must continue without re-prompting. Any
// external call a step makes is the step's own concern and must be safe to
// retry up to the suspend boundary.
type Step interface {

	// Name returns the unique name of the step.
	Name() string

	// Execute evaluates the step against the record.
	Execute(ctx context.Context, record *Record, resume string) (Outcome, error)
}

// StepFunc is a function that can be used as a step.
type StepFunc struct {
	name string
	fn   func(ctx context.Context, record *Record, resume string) (Outcome, error)
}

// NewStepFunc creates a new StepFunc.
func NewStepFunc(name string, fn func(ctx context.Context, record *Record, resume string) (Outcome, error)) *StepFunc {
	return &StepFunc{name: name, fn: fn}
}

func (s *StepFunc) Name() string {
	return s.name
}

func (s *StepFunc) Execute(ctx context.Context, record *Record, resume string) (Outcome, error) {
	return s.fn(ctx, record, resume)
}
