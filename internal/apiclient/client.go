package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the China-region Coze endpoint.
const DefaultBaseURL = "https://api.coze.cn"

// DefaultUserID identifies this tool to the bot when no user id is configured.
const DefaultUserID = "dailyreport"

const chatPath = "/v3/chat"

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 64 * 1024

// DefaultTimeout bounds a whole chat request, stream included.
const DefaultTimeout = 120 * time.Second

// Client talks to the Coze v3 chat API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    *time.Duration
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. The client passed in is
// never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request, including reading the whole stream.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = &d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates an API client. Returns nil if token is empty.
func New(baseURL, token string, opts ...Option) *Client {
	if token == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.httpClient == nil:
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
		if c.timeout != nil {
			c.httpClient.Timeout = *c.timeout
		}
	case c.timeout != nil:
		hc := *c.httpClient
		hc.Timeout = *c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Message is one entry of additional_messages.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// UserMessage builds a plain-text user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content, ContentType: "text"}
}

// ChatRequest is the body for POST /v3/chat.
type ChatRequest struct {
	BotID              string    `json:"bot_id"`
	UserID             string    `json:"user_id"`
	Stream             bool      `json:"stream"`
	AutoSaveHistory    bool      `json:"auto_save_history"`
	AdditionalMessages []Message `json:"additional_messages"`
}

// APIError is a failure reported by the chat API, either as an HTTP error
// body, a JSON envelope with a non-zero code, or an in-stream error event.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != 0 && e.Msg != "":
		return fmt.Sprintf("coze API error %d: %s", e.Code, e.Msg)
	case e.Msg != "":
		return "coze API error: " + e.Msg
	case e.StatusCode != 0:
		return fmt.Sprintf("coze API error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("coze API error %d", e.Code)
}

// StreamChat starts a streaming chat. The caller must Close the returned stream.
func (c *Client) StreamChat(ctx context.Context, chat ChatRequest) (*Stream, error) {
	if c == nil {
		return nil, fmt.Errorf("coze client is not configured")
	}
	if chat.BotID == "" {
		return nil, fmt.Errorf("bot id is required")
	}
	if chat.UserID == "" {
		chat.UserID = DefaultUserID
	}
	chat.Stream = true

	body, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.token)

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("bot_id", chat.BotID).
		Int("messages", len(chat.AdditionalMessages)).
		Msg("starting chat stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start chat: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeAPIError(resp)
	}

	// Coze reports auth and parameter problems as a 200 JSON envelope
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		defer func() { _ = resp.Body.Close() }()
		apiErr := decodeAPIError(resp)
		if apiErr.Code == 0 {
			return nil, fmt.Errorf("expected event stream, got JSON response")
		}
		return nil, apiErr
	}

	return newStream(resp.Body), nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Msg == "" {
		if apiErr.Code == 0 && resp.StatusCode >= 300 {
			apiErr.Msg = strings.TrimSpace(string(data))
			if apiErr.Msg == "" {
				apiErr.Msg = resp.Status
			}
		}
	}
	return apiErr
}
