package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/dialogue"
	"github.com/deepnoodle-ai/dialogue/pcp"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	graph, err := pcp.BuildGraph(&pcp.HeuristicOracle{}, pcp.NewStubDirectory())
	require.NoError(t, err)
	engine, err := dialogue.NewEngine(dialogue.EngineOptions{
		Graph: graph,
		Store: dialogue.NewMemoryStore(),
	})
	require.NoError(t, err)
	handler, err := NewHandler(HandlerOptions{Engine: engine})
	require.NoError(t, err)
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return recorder, decoded
}

func TestHandlerBeginSession(t *testing.T) {
	handler := newTestHandler(t)

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/sessions", `{"member_id": "M1"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	require.NotEmpty(t, body["session_id"])
	require.Equal(t, dialogue.StageMenu, body["stage"])
	require.Equal(t, "prompt", body["response_kind"])
	require.Equal(t, float64(http.StatusOK), body["response_code"])
	require.Contains(t, body["reply"], "primary care provider")
	require.NotEmpty(t, body["prompt_title"])
	require.Len(t, body["suggested_replies"], len(pcp.MenuSuggestedReplies))
}

func TestHandlerContinueSession(t *testing.T) {
	handler := newTestHandler(t)

	_, begin := doJSON(t, handler, http.MethodPost, "/v1/sessions", `{"session_id": "S1", "member_id": "M1"}`)
	require.Equal(t, "S1", begin["session_id"])

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/sessions/S1/messages", `{"message": "Assign PCP"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, dialogue.StageAskTermination, body["stage"])
	require.Equal(t, "prompt", body["response_kind"])
}

func TestHandlerCompletedSessionReply(t *testing.T) {
	handler := newTestHandler(t)

	doJSON(t, handler, http.MethodPost, "/v1/sessions", `{"session_id": "S1", "member_id": "M1"}`)
	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/sessions/S1/messages", `{"message": "Need something else"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "final", body["response_kind"])
	require.Equal(t, dialogue.StageCompleted, body["stage"])
	require.Contains(t, body["reply"], "member services")
}

func TestHandlerErrorMapping(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("unknown session is 404", func(t *testing.T) {
		recorder, body := doJSON(t, handler, http.MethodPost, "/v1/sessions/missing/messages", `{"message": "hi"}`)
		require.Equal(t, http.StatusNotFound, recorder.Code)
		require.Equal(t, "unknown session", body["error"])
	})

	t.Run("duplicate session is 409", func(t *testing.T) {
		doJSON(t, handler, http.MethodPost, "/v1/sessions", `{"session_id": "dup", "member_id": "M1"}`)
		recorder, _ := doJSON(t, handler, http.MethodPost, "/v1/sessions", `{"session_id": "dup", "member_id": "M1"}`)
		require.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("resume of a completed session is 409", func(t *testing.T) {
		doJSON(t, handler, http.MethodPost, "/v1/sessions", `{"session_id": "done", "member_id": "M1"}`)
		doJSON(t, handler, http.MethodPost, "/v1/sessions/done/messages", `{"message": "Need something else"}`)
		recorder, _ := doJSON(t, handler, http.MethodPost, "/v1/sessions/done/messages", `{"message": "hello?"}`)
		require.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		recorder, _ := doJSON(t, handler, http.MethodPost, "/v1/sessions", `{not json`)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestHandlerRequiresEngine(t *testing.T) {
	_, err := NewHandler(HandlerOptions{})
	require.ErrorContains(t, err, "engine required")
}
