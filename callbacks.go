package dialogue

import (
	"context"
	"time"
)

// RunKind distinguishes Start from Resume in run events.
type RunKind string

const (
	RunKindStart  RunKind = "start"
	RunKindResume RunKind = "resume"
)

// Callbacks defines the callback interface for engine execution events.
type Callbacks interface {
	// Run-level callbacks, one pair per Start/Resume call
	BeforeRun(ctx context.Context, event *RunEvent)
	AfterRun(ctx context.Context, event *RunEvent)

	// Step-level callbacks
	BeforeStep(ctx context.Context, event *StepEvent)
	AfterStep(ctx context.Context, event *StepEvent)
}

// RunEvent provides context for run-level events.
type RunEvent struct {
	SessionID string
	GraphName string
	Kind      RunKind
	Status    RunStatus
	Stage     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// StepEvent provides context for step-level events.
type StepEvent struct {
	SessionID string
	GraphName string
	StepName  string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Outcome   string
	Error     error
}

// BaseCallbacks provides a default implementation that does nothing. Embed
// this in your own callbacks to only implement the events you care about.
type BaseCallbacks struct{}

func (c *BaseCallbacks) BeforeRun(ctx context.Context, event *RunEvent) {
	// noop
}

func (c *BaseCallbacks) AfterRun(ctx context.Context, event *RunEvent) {
	// noop
}

func (c *BaseCallbacks) BeforeStep(ctx context.Context, event *StepEvent) {
	// noop
}

func (c *BaseCallbacks) AfterStep(ctx context.Context, event *StepEvent) {
	// noop
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []Callbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...Callbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback Callbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeRun(ctx context.Context, event *RunEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeRun(ctx, event)
	}
}

func (c *CallbackChain) AfterRun(ctx context.Context, event *RunEvent) {
	for _, callback := range c.callbacks {
		callback.AfterRun(ctx, event)
	}
}

func (c *CallbackChain) BeforeStep(ctx context.Context, event *StepEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeStep(ctx, event)
	}
}

func (c *CallbackChain) AfterStep(ctx context.Context, event *StepEvent) {
	for _, callback := range c.callbacks {
		callback.AfterStep(ctx, event)
	}
}
