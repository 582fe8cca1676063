package dialogue

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/dialogue/script"
	"github.com/stretchr/testify/require"
)

func TestScriptRouter(t *testing.T) {
	ctx := context.Background()
	engine := script.NewRisorScriptingEngine(script.DefaultRisorGlobals())

	t.Run("expression selects on record fields", func(t *testing.T) {
		router, err := NewScriptRouter(engine, `record.get("knows_provider", false) ? "by_id" : "by_filters"`)
		require.NoError(t, err)

		knows := true
		key, err := router.Select(ctx, &Record{KnowsProvider: &knows})
		require.NoError(t, err)
		require.Equal(t, "by_id", key)

		doesNot := false
		key, err = router.Select(ctx, &Record{KnowsProvider: &doesNot})
		require.NoError(t, err)
		require.Equal(t, "by_filters", key)
	})

	t.Run("expression can inspect candidates", func(t *testing.T) {
		router, err := NewScriptRouter(engine, `len(record.get("candidates", [])) > 0 ? "pick" : "search"`)
		require.NoError(t, err)

		key, err := router.Select(ctx, &Record{})
		require.NoError(t, err)
		require.Equal(t, "search", key)

		key, err = router.Select(ctx, &Record{Candidates: []Candidate{{ProviderID: "P1"}}})
		require.NoError(t, err)
		require.Equal(t, "pick", key)
	})

	t.Run("compile error surfaces at construction", func(t *testing.T) {
		_, err := NewScriptRouter(engine, `record[`)
		require.Error(t, err)
	})
}

func TestRouterFunc(t *testing.T) {
	router := RouterFunc(func(ctx context.Context, record *Record) (string, error) {
		return record.MenuChoice, nil
	})
	key, err := router.Select(context.Background(), &Record{MenuChoice: "assign"})
	require.NoError(t, err)
	require.Equal(t, "assign", key)
}
