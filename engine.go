package dialogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewSessionID returns a new unique session identifier
func NewSessionID() string {
	id, err := typeid.WithPrefix("sess")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// EngineOptions configures a new engine
type EngineOptions struct {
	Graph      *Graph
	Store      Store
	Logger     *slog.Logger
	Callbacks  Callbacks
	TurnLogger TurnLogger
}

// Engine runs sessions over a graph: steps execute strictly sequentially
// within one Start/Resume call, unrelated sessions progress concurrently,
// and exactly one durable checkpoint write happens per call, at the
// suspend/terminate boundary, before the call returns.
type Engine struct {
	graph      *Graph
	store      Store
	logger     *slog.Logger
	callbacks  Callbacks
	turnLogger TurnLogger

	// Per-session in-flight tracking; the second concurrent call for a
	// session fails instead of racing on the checkpoint.
	mutex    sync.Mutex
	inFlight map[string]struct{}
}

// NewEngine creates a new engine for the given graph and store.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseCallbacks{}
	}
	if opts.TurnLogger == nil {
		opts.TurnLogger = NewNullTurnLogger()
	}
	return &Engine{
		graph:      opts.Graph,
		store:      opts.Store,
		logger:     opts.Logger,
		callbacks:  opts.Callbacks,
		turnLogger: opts.TurnLogger,
		inFlight:   map[string]struct{}{},
	}, nil
}

// Graph returns the engine's graph.
func (e *Engine) Graph() *Graph {
	return e.graph
}

func (e *Engine) acquire(sessionID string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if _, ok := e.inFlight[sessionID]; ok {
		return fmt.Errorf("session %q: %w", sessionID, ErrStaleResume)
	}
	e.inFlight[sessionID] = struct{}{}
	return nil
}

func (e *Engine) release(sessionID string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	delete(e.inFlight, sessionID)
}

// Start begins a new session. An empty sessionID generates one. Start fails
// with ErrDuplicateSession if the session already has a checkpoint.
func (e *Engine) Start(ctx context.Context, sessionID string, record *Record) (*RunResult, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	if err := e.acquire(sessionID); err != nil {
		return nil, err
	}
	defer e.release(sessionID)

	if _, err := e.store.Get(ctx, sessionID); err == nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrDuplicateSession)
	} else if !errors.Is(err, ErrCheckpointNotFound) {
		return nil, fmt.Errorf("failed to check for existing session: %w", err)
	}

	if record == nil {
		record = &Record{}
	}
	record = record.Clone()
	record.SessionID = sessionID

	return e.run(ctx, RunKindStart, sessionID, record, e.graph.Start(), "", time.Time{})
}

// Resume continues a suspended session by injecting the resume value into
// the step identified by the checkpoint's cursor.
func (e *Engine) Resume(ctx context.Context, sessionID string, resumeValue string) (*RunResult, error) {
	if err := e.acquire(sessionID); err != nil {
		return nil, err
	}
	defer e.release(sessionID)

	checkpoint, err := e.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return nil, fmt.Errorf("session %q: %w", sessionID, ErrUnknownSession)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint.Terminal() {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotSuspended)
	}

	return e.run(ctx, RunKindResume, sessionID, checkpoint.Record.Clone(),
		checkpoint.Cursor, resumeValue, checkpoint.CreatedAt)
}

// Describe returns the latest checkpoint of a session without running it.
// Terminal sessions remain queryable.
func (e *Engine) Describe(ctx context.Context, sessionID string) (*Checkpoint, error) {
	checkpoint, err := e.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return nil, fmt.Errorf("session %q: %w", sessionID, ErrUnknownSession)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return checkpoint, nil
}

// run executes steps starting at cursor until a suspend or terminal step.
// The resume value is injected exactly once, into the first step evaluated.
func (e *Engine) run(ctx context.Context, kind RunKind, sessionID string, record *Record, cursor, resume string, createdAt time.Time) (*RunResult, error) {
	logger := e.logger.With("session_id", sessionID)
	ctx = WithLogger(ctx, logger)

	runStart := time.Now()
	e.callbacks.BeforeRun(ctx, &RunEvent{
		SessionID: sessionID,
		GraphName: e.graph.Name(),
		Kind:      kind,
		StartTime: runStart,
	})

	result, err := e.runSteps(ctx, logger, sessionID, record, cursor, resume, createdAt)

	runEnd := time.Now()
	event := &RunEvent{
		SessionID: sessionID,
		GraphName: e.graph.Name(),
		Kind:      kind,
		StartTime: runStart,
		EndTime:   runEnd,
		Duration:  runEnd.Sub(runStart),
		Error:     err,
	}
	if result != nil {
		event.Status = result.Status
		event.Stage = result.Stage
	}
	e.callbacks.AfterRun(ctx, event)

	return result, err
}

func (e *Engine) runSteps(ctx context.Context, logger *slog.Logger, sessionID string, record *Record, cursor, resume string, createdAt time.Time) (*RunResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step, ok := e.graph.Step(cursor)
		if !ok {
			// A checkpoint can outlive a topology change
			return nil, newGraphDefinitionErrorf("checkpoint cursor references unknown step %q", cursor)
		}

		outcome, err := e.executeStep(ctx, sessionID, record, step, resume)
		resume = ""

		if err != nil {
			if ctx.Err() != nil {
				// Cancellation propagated into the step; leave no partial
				// checkpoint write.
				return nil, ctx.Err()
			}
			// Step-level errors become a normal ERROR-stage reply. The
			// checkpoint keeps pointing at the failed step, so the next
			// turn retries it.
			dErr := ClassifyError(err)
			logger.Warn("step failed",
				"step", step.Name(),
				"error_type", dErr.Type,
				"error", err)
			record.Stage = StageError
			record.ErrorMessage = err.Error()
			suspension := &Suspension{
				Prompt: "Sorry, something went wrong on our side. Please try again.",
				Title:  "Something went wrong",
				Stage:  StageError,
			}
			return e.persistSuspended(ctx, sessionID, record, step.Name(), suspension, createdAt)
		}

		switch {
		case outcome.IsSuspend():
			suspension := outcome.Suspension()
			if suspension == nil {
				return nil, newGraphDefinitionErrorf("step %q suspended without a payload", step.Name())
			}
			if suspension.Stage != "" {
				record.Stage = suspension.Stage
			}
			logger.Debug("session suspended", "step", step.Name(), "stage", record.Stage)
			return e.persistSuspended(ctx, sessionID, record, step.Name(), suspension, createdAt)

		case outcome.IsTerminate():
			return e.persistCompleted(ctx, sessionID, record, createdAt)

		default:
			next, err := e.nextStep(ctx, record, step.Name())
			if err != nil {
				return nil, err
			}
			if next == End {
				return e.persistCompleted(ctx, sessionID, record, createdAt)
			}
			cursor = next
		}
	}
}

// executeStep evaluates one step with callbacks and turn logging around it.
func (e *Engine) executeStep(ctx context.Context, sessionID string, record *Record, step Step, resume string) (Outcome, error) {
	startTime := time.Now()
	stepEvent := &StepEvent{
		SessionID: sessionID,
		GraphName: e.graph.Name(),
		StepName:  step.Name(),
		StartTime: startTime,
	}
	e.callbacks.BeforeStep(ctx, stepEvent)

	outcome, err := step.Execute(ctx, record, resume)
	endTime := time.Now()

	stepEvent.EndTime = endTime
	stepEvent.Duration = endTime.Sub(startTime)
	stepEvent.Outcome = outcomeLabel(outcome, err)
	stepEvent.Error = err
	e.callbacks.AfterStep(ctx, stepEvent)

	entry := &TurnLogEntry{
		SessionID: sessionID,
		GraphName: e.graph.Name(),
		StepName:  step.Name(),
		Stage:     record.Stage,
		Outcome:   stepEvent.Outcome,
		StartTime: startTime,
		Duration:  stepEvent.Duration.Seconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if logErr := e.turnLogger.LogTurn(ctx, entry); logErr != nil {
		// Turn logs are advisory; checkpoint durability is what matters
		e.logger.Warn("failed to log turn", "error", logErr)
	}

	return outcome, err
}

// nextStep resolves the outgoing edge of a step after it returns Continue.
func (e *Engine) nextStep(ctx context.Context, record *Record, from string) (string, error) {
	edge, ok := e.graph.Edge(from)
	if !ok {
		// A step with no outgoing edge is terminal
		return End, nil
	}
	if !edge.Conditional() {
		return edge.to, nil
	}
	key, err := edge.router.Select(ctx, record)
	if err != nil {
		return "", fmt.Errorf("router for step %q failed: %w", from, err)
	}
	target, ok := edge.targets[key]
	if !ok {
		return "", &RoutingError{Step: from, Key: key}
	}
	return target, nil
}

func (e *Engine) persistSuspended(ctx context.Context, sessionID string, record *Record, cursor string, suspension *Suspension, createdAt time.Time) (*RunResult, error) {
	checkpoint := newCheckpoint(sessionID, record, cursor, suspension, createdAt)
	if err := e.store.Put(ctx, checkpoint); err != nil {
		// No checkpoint update occurred: the session stays resumable from
		// its last persisted checkpoint and the same call can be retried.
		return nil, fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return &RunResult{
		SessionID:  sessionID,
		Status:     RunStatusSuspended,
		Record:     record,
		Suspension: suspension,
		Stage:      record.Stage,
	}, nil
}

func (e *Engine) persistCompleted(ctx context.Context, sessionID string, record *Record, createdAt time.Time) (*RunResult, error) {
	if record.Stage == "" {
		record.Stage = StageCompleted
	}
	checkpoint := newCheckpoint(sessionID, record, End, nil, createdAt)
	if err := e.store.Put(ctx, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	e.logger.Info("session completed", "session_id", sessionID, "stage", record.Stage)
	return &RunResult{
		SessionID: sessionID,
		Status:    RunStatusCompleted,
		Record:    record,
		Stage:     record.Stage,
	}, nil
}

func newCheckpoint(sessionID string, record *Record, cursor string, suspension *Suspension, createdAt time.Time) *Checkpoint {
	now := time.Now()
	if createdAt.IsZero() {
		createdAt = now
	}
	return &Checkpoint{
		SessionID:  sessionID,
		Record:     record.Clone(),
		Cursor:     cursor,
		Suspension: suspension.Copy(),
		Stage:      record.Stage,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
}

func outcomeLabel(outcome Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case outcome.IsSuspend():
		return "suspend"
	case outcome.IsTerminate():
		return "terminate"
	default:
		return "continue"
	}
}
