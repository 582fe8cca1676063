package pcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply string
	err   error

	lastSystem string
	lastUser   string
}

func (m *fakeChatModel) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	return m.reply, m.err
}

func TestLLMOracleExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes a clean JSON reply", func(t *testing.T) {
		model := &fakeChatModel{reply: `{"providerId": "P1"}`}
		oracle := NewLLMOracle(model)

		fragment, err := oracle.Extract(ctx, SchemaProviderIdentity, "it's P1")
		require.NoError(t, err)
		require.Equal(t, "P1", fragment.ProviderID)
		require.Equal(t, "it's P1", model.lastUser)
		require.Contains(t, model.lastSystem, "providerId")
	})

	t.Run("decodes JSON wrapped in prose", func(t *testing.T) {
		model := &fakeChatModel{reply: "Sure! Here you go:\n```json\n{\"action\": \"assign_pcp\", \"candidateId\": \"P2\"}\n```"}
		oracle := NewLLMOracle(model)

		fragment, err := oracle.Extract(ctx, SchemaSelection, "the second one please")
		require.NoError(t, err)
		require.Equal(t, "assign_pcp", fragment.Action)
		require.Equal(t, "P2", fragment.CandidateID)
	})

	t.Run("model error fails closed", func(t *testing.T) {
		model := &fakeChatModel{err: errors.New("gateway unavailable")}
		oracle := NewLLMOracle(model)

		fragment, err := oracle.Extract(ctx, SchemaFilters, "a cardiologist near 07101")
		require.NoError(t, err)
		require.Equal(t, FailClosedFragment("a cardiologist near 07101"), fragment)
	})

	t.Run("unparsable reply fails closed", func(t *testing.T) {
		model := &fakeChatModel{reply: "I'm not sure what you mean."}
		oracle := NewLLMOracle(model)

		fragment, err := oracle.Extract(ctx, SchemaSelection, "P1")
		require.NoError(t, err)
		require.Equal(t, FailClosedFragment("P1"), fragment)
	})

	t.Run("unknown schema fails closed without a model call", func(t *testing.T) {
		model := &fakeChatModel{reply: `{"providerId": "P1"}`}
		oracle := NewLLMOracle(model)

		fragment, err := oracle.Extract(ctx, "bogus", "anything")
		require.NoError(t, err)
		require.Equal(t, FailClosedFragment("anything"), fragment)
		require.Empty(t, model.lastUser)
	})
}

func TestParseFragment(t *testing.T) {
	fragment, ok := parseFragment(`{"zipCode": "07101"}`)
	require.True(t, ok)
	require.Equal(t, "07101", fragment.ZipCode)

	_, ok = parseFragment("no json here")
	require.False(t, ok)

	_, ok = parseFragment("{broken")
	require.False(t, ok)
}
