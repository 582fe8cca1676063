package dialogue_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/deepnoodle-ai/dialogue"
	"github.com/stretchr/testify/require"
)

func TestDialogueLibraryExample(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	askName := dialogue.NewStepFunc("ask_name", func(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
		if resume == "" {
			return dialogue.Suspend(&dialogue.Suspension{
				Prompt: "What is your provider's name?",
				Stage:  "ASK_NAME",
			}), nil
		}
		record.ProviderName = resume
		return dialogue.Continue(), nil
	})

	confirm := dialogue.NewStepFunc("confirm", func(ctx context.Context, record *dialogue.Record, resume string) (dialogue.Outcome, error) {
		record.Confirmation = "Recorded " + record.ProviderName
		return dialogue.Terminate(), nil
	})

	graph, err := dialogue.NewGraph(dialogue.GraphOptions{
		Name:  "intake",
		Start: "ask_name",
		Steps: []dialogue.Step{askName, confirm},
		Edges: map[string]dialogue.Edge{
			"ask_name": dialogue.To("confirm"),
		},
	})
	require.NoError(t, err)

	engine, err := dialogue.NewEngine(dialogue.EngineOptions{
		Graph:  graph,
		Store:  dialogue.NewMemoryStore(),
		Logger: logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessionID := dialogue.NewSessionID()
	result, err := engine.Start(ctx, sessionID, &dialogue.Record{MemberID: "M100"})
	require.NoError(t, err)
	require.True(t, result.Suspended())
	require.Equal(t, "What is your provider's name?", result.Suspension.Prompt)

	result, err = engine.Resume(ctx, sessionID, "Dr. Ada Osei")
	require.NoError(t, err)
	require.True(t, result.Completed())
	require.Equal(t, "Recorded Dr. Ada Osei", result.Record.Confirmation)
}
