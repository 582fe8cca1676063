package horizon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newGatewayServer serves a token endpoint plus a chat endpoint with the
// given handler.
func newGatewayServer(t *testing.T, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/text/chats", chat)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newGatewayClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientOptions{
		GatewayURL:   server.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		RetryDelay:   time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestClientValidation(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.ErrorContains(t, err, "gateway url")

	_, err = NewClient(ClientOptions{GatewayURL: "http://example.com"})
	require.ErrorContains(t, err, "client id and secret")
}

func TestClientChat(t *testing.T) {
	var gotAuth, gotQOS string
	var gotBody map[string]any
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQOS = r.URL.Query().Get("qos")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "hello there"},
		})
	})
	client := newGatewayClient(t, server)

	reply, err := client.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)

	require.Equal(t, "Bearer test-token", gotAuth)
	require.Equal(t, "accurate", gotQOS)
	require.Equal(t, false, gotBody["stream"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
}

func TestClientReasoningDefault(t *testing.T) {
	var gotReasoning string
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotReasoning = r.URL.Query().Get("reasoning")
		json.NewEncoder(w).Encode(map[string]any{"text": "ok"})
	})

	t.Run("on by default", func(t *testing.T) {
		client := newGatewayClient(t, server)
		_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
		require.NoError(t, err)
		require.Equal(t, "true", gotReasoning)
	})

	t.Run("disabled explicitly", func(t *testing.T) {
		client, err := NewClient(ClientOptions{
			GatewayURL:       server.URL,
			ClientID:         "id",
			ClientSecret:     "secret",
			RetryDelay:       time.Millisecond,
			DisableReasoning: true,
		})
		require.NoError(t, err)

		_, err = client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
		require.NoError(t, err)
		require.Equal(t, "false", gotReasoning)
	})
}

func TestClientChatResponseShapes(t *testing.T) {
	shapes := map[string]map[string]any{
		"message content": {
			"message": map[string]any{"content": "answer"},
		},
		"choices list": {
			"choices": []any{
				map[string]any{"message": map[string]any{"content": "answer"}},
			},
		},
		"bare text": {
			"text": "answer",
		},
		"typed content parts": {
			"content": []any{
				map[string]any{"type": "text", "text": "ans"},
				map[string]any{"type": "text", "text": "wer"},
			},
		},
	}

	for name, shape := range shapes {
		t.Run(name, func(t *testing.T) {
			server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(shape)
			})
			client := newGatewayClient(t, server)

			reply, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
			require.NoError(t, err)
			require.Equal(t, "answer", reply)
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "recovered"})
	})
	client := newGatewayClient(t, server)

	reply, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "recovered", reply)
	require.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := newGatewayClient(t, server)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorContains(t, err, "status 503")
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	client := newGatewayClient(t, server)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorContains(t, err, "status 400")
	require.Equal(t, int32(1), calls.Load())
}

func TestClientEmptyResponse(t *testing.T) {
	server := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	})
	client := newGatewayClient(t, server)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.ErrorContains(t, err, "empty response")

	_, err = client.Chat(context.Background(), nil)
	require.ErrorContains(t, err, "no messages")
}
