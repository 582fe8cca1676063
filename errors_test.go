package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDialogueError(t *testing.T) {
	err := NewDialogueError(ErrorTypeExternalCall, "directory returned 503")
	require.Equal(t, "external_call: directory returned 503", err.Error())

	wrapped := fmt.Errorf("step failed: %w", err)
	var dErr *DialogueError
	require.ErrorAs(t, wrapped, &dErr)
	require.Equal(t, ErrorTypeExternalCall, dErr.Type)
}

func TestClassifyError(t *testing.T) {
	t.Run("existing dialogue error passes through", func(t *testing.T) {
		original := NewDialogueError(ErrorTypeFatal, "bad input")
		classified := ClassifyError(fmt.Errorf("wrapped: %w", original))
		require.Equal(t, ErrorTypeFatal, classified.Type)
	})

	t.Run("deadline exceeded is a timeout", func(t *testing.T) {
		classified := ClassifyError(context.DeadlineExceeded)
		require.Equal(t, ErrorTypeTimeout, classified.Type)
	})

	t.Run("timeout message is a timeout", func(t *testing.T) {
		classified := ClassifyError(errors.New("request timeout after 30s"))
		require.Equal(t, ErrorTypeTimeout, classified.Type)
	})

	t.Run("everything else is an external call error", func(t *testing.T) {
		classified := ClassifyError(errors.New("connection refused"))
		require.Equal(t, ErrorTypeExternalCall, classified.Type)
		require.Equal(t, "connection refused", classified.Cause)
	})
}

func TestMatchesErrorType(t *testing.T) {
	require.True(t, MatchesErrorType(context.DeadlineExceeded, ErrorTypeTimeout))
	require.False(t, MatchesErrorType(context.DeadlineExceeded, ErrorTypeExternalCall))

	fatal := NewDialogueError(ErrorTypeFatal, "cannot recover")
	require.True(t, MatchesErrorType(fatal, ErrorTypeFatal))
	require.False(t, MatchesErrorType(fatal, ErrorTypeExternalCall))
}

func TestRoutingError(t *testing.T) {
	err := &RoutingError{Step: "menu", Key: "unexpected"}
	require.Contains(t, err.Error(), `"menu"`)
	require.Contains(t, err.Error(), `"unexpected"`)
}

func TestGraphDefinitionError(t *testing.T) {
	err := newGraphDefinitionErrorf("step %q missing", "ask_name")
	require.Equal(t, `invalid graph definition: step "ask_name" missing`, err.Error())
}
