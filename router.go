package dialogue

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/dialogue/script"
)

// Router selects the next step at a conditional edge. It is evaluated
// strictly after its source step returns Continue, against the record as it
// stands at that moment, and must return exactly one selector key.
type Router interface {
	Select(ctx context.Context, record *Record) (string, error)
}

// RouterFunc is a function that can be used as a router.
type RouterFunc func(ctx context.Context, record *Record) (string, error)

func (f RouterFunc) Select(ctx context.Context, record *Record) (string, error) {
	return f(ctx, record)
}

// ScriptRouter evaluates a compiled expression against the record to produce
// a selector key. The record is exposed to the expression as a `record`
// global keyed by JSON field names.
type ScriptRouter struct {
	code   string
	script script.Script
}

// NewScriptRouter compiles the given expression with the compiler. The
// expression must evaluate to a selector string.
func NewScriptRouter(compiler script.Compiler, code string) (*ScriptRouter, error) {
	compiled, err := compiler.Compile(context.Background(), code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile router expression %q: %w", code, err)
	}
	return &ScriptRouter{code: code, script: compiled}, nil
}

func (r *ScriptRouter) Select(ctx context.Context, record *Record) (string, error) {
	value, err := r.script.Evaluate(ctx, map[string]any{"record": record.AsMap()})
	if err != nil {
		return "", fmt.Errorf("failed to evaluate router expression %q: %w", r.code, err)
	}
	return value.String(), nil
}
