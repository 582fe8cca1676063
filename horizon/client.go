// Package horizon is a minimal chat client for the Horizon LLM gateway. It
// authenticates with OAuth2 client credentials and retries transient gateway
// failures with capped exponential backoff.
package horizon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultChatEndpoint = "/v2/text/chats"
	defaultTokenPath    = "/oauth2/token"
	defaultQOS          = "accurate"
	defaultMaxRetries   = 3
	defaultRetryDelay   = 500 * time.Millisecond
)

// Message is one chat turn sent to the gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClientOptions configures a Client.
type ClientOptions struct {
	GatewayURL   string
	ClientID     string
	ClientSecret string

	// Endpoint defaults to "/v2/text/chats".
	Endpoint string

	// QOS defaults to "accurate".
	QOS string

	// DisableReasoning turns off gateway-side reasoning, which is on by
	// default.
	DisableReasoning bool

	// MaxRetries bounds retries on 429 and 5xx responses. Defaults to 3.
	MaxRetries int

	// RetryDelay is the base backoff delay. Defaults to 500ms.
	RetryDelay time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the Horizon chat endpoint. Token acquisition and caching is
// handled by the oauth2 client-credentials token source.
type Client struct {
	gatewayURL string
	endpoint   string
	qos        string
	reasoning  bool
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     *slog.Logger
}

// NewClient creates a new Horizon client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.GatewayURL == "" {
		return nil, fmt.Errorf("horizon gateway url required")
	}
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("horizon client id and secret required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultChatEndpoint
	}
	if opts.QOS == "" {
		opts.QOS = defaultQOS
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	credentials := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.GatewayURL + defaultTokenPath,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.HTTPClient)

	return &Client{
		gatewayURL: opts.GatewayURL,
		endpoint:   opts.Endpoint,
		qos:        opts.QOS,
		reasoning:  !opts.DisableReasoning,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		httpClient: opts.HTTPClient,
		tokens:     credentials.TokenSource(tokenCtx),
		logger:     opts.Logger,
	}, nil
}

// Chat sends the messages and returns the assistant's reply text.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("failed to acquire horizon token: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"messages": messages,
		"stream":   false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	query := url.Values{}
	query.Set("qos", c.qos)
	query.Set("reasoning", strconv.FormatBool(c.reasoning))
	chatURL := c.gatewayURL + c.endpoint + "?" + query.Encode()

	payload, err := c.post(ctx, chatURL, token, body)
	if err != nil {
		return "", err
	}

	text := extractContent(payload)
	if text == "" {
		return "", fmt.Errorf("empty response from horizon")
	}
	return text, nil
}

// Complete sends a system and user prompt pair.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}

// post performs the request with retries on 429 and 5xx responses.
func (c *Client) post(ctx context.Context, url string, token *oauth2.Token, body []byte) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying horizon request", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build horizon request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		token.SetAuthHeader(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("horizon returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("horizon returned status %d: %s", resp.StatusCode, data)
		}

		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode horizon response: %w", err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("horizon request failed after %d retries: %w", c.maxRetries, lastErr)
}

// extractContent pulls the assistant text out of the gateway's response,
// which has shipped in several shapes: message.content, an OpenAI-style
// choices list, a bare text field, and content split into typed parts.
func extractContent(payload map[string]any) string {
	if message, ok := payload["message"].(map[string]any); ok {
		if text := contentToString(message["content"]); text != "" {
			return text
		}
	}
	if choices, ok := payload["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if text := contentToString(message["content"]); text != "" {
					return text
				}
			}
		}
	}
	if text := contentToString(payload["text"]); text != "" {
		return text
	}
	return contentToString(payload["content"])
}

func contentToString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []byte
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text...)
				}
			} else if text, ok := part.(string); ok {
				parts = append(parts, text...)
			}
		}
		return string(parts)
	default:
		return ""
	}
}
