package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseHandler(t *testing.T, frames string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, frames)
	}
}

func deltaFrame(content string) string {
	data, _ := json.Marshal(MessagePart{Role: "assistant", Type: "answer", Content: content, ContentType: "text"})
	return fmt.Sprintf("event:conversation.message.delta\ndata:%s\n\n", data)
}

func TestNewNilWhenEmpty(t *testing.T) {
	c := New(DefaultBaseURL, "")
	if c != nil {
		t.Error("expected nil client when token is empty")
	}
}

func TestNewDefaultsBaseURL(t *testing.T) {
	c := New("", "pat_x")
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("expected %s, got %s", DefaultBaseURL, c.BaseURL())
	}
	c = New("https://api.coze.com/", "pat_x")
	if c.BaseURL() != "https://api.coze.com" {
		t.Errorf("expected trailing slash trimmed, got %s", c.BaseURL())
	}
}

func TestNewTimeoutLeavesCallerClientUntouched(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	c := New(DefaultBaseURL, "pat_test", WithHTTPClient(custom), WithTimeout(time.Minute))

	if custom.Timeout != 5*time.Second {
		t.Errorf("caller client timeout changed to %s", custom.Timeout)
	}
	if c.httpClient == custom || c.httpClient.Timeout != time.Minute {
		t.Errorf("expected a copied client with a 1m timeout, got %s", c.httpClient.Timeout)
	}
}

func TestNewTimeoutDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"default", nil, DefaultTimeout},
		{"disabled", []Option{WithTimeout(0)}, 0},
		{"nil client then timeout", []Option{WithHTTPClient(nil), WithTimeout(time.Second)}, time.Second},
		{"timeout then client", []Option{WithTimeout(time.Second), WithHTTPClient(&http.Client{})}, time.Second},
		{"client keeps its own timeout", []Option{WithHTTPClient(&http.Client{Timeout: 3 * time.Second})}, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultBaseURL, "pat_test", tt.opts...)
			if c.httpClient.Timeout != tt.want {
				t.Errorf("timeout = %s, want %s", c.httpClient.Timeout, tt.want)
			}
		})
	}
}

func TestStreamChatNilClient(t *testing.T) {
	var c *Client
	_, err := c.StreamChat(context.Background(), ChatRequest{BotID: "b"})
	if err == nil {
		t.Error("expected error for nil client")
	}
}

func TestStreamChatRequiresBotID(t *testing.T) {
	c := New("http://127.0.0.1:1", "pat_x")
	_, err := c.StreamChat(context.Background(), ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "bot id") {
		t.Errorf("expected bot id error, got %v", err)
	}
}

func TestStreamChatRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v3/chat" {
			t.Errorf("expected /v3/chat, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pat_test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var chat ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&chat); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if chat.BotID != "bot_1" {
			t.Errorf("expected bot_1, got %s", chat.BotID)
		}
		if chat.UserID != DefaultUserID {
			t.Errorf("expected default user id, got %s", chat.UserID)
		}
		if !chat.Stream {
			t.Error("expected stream=true")
		}
		if len(chat.AdditionalMessages) != 1 || chat.AdditionalMessages[0].Role != "user" ||
			chat.AdditionalMessages[0].ContentType != "text" || chat.AdditionalMessages[0].Content != "hi" {
			t.Errorf("unexpected messages: %+v", chat.AdditionalMessages)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event:done\ndata:\"[DONE]\"\n\n")
	}))
	defer ts.Close()

	c := New(ts.URL, "pat_test")
	stream, err := c.StreamChat(context.Background(), ChatRequest{
		BotID:              "bot_1",
		AdditionalMessages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	if stream.Next() {
		t.Error("expected no events before done")
	}
	if stream.Err() != nil {
		t.Errorf("unexpected stream error: %v", stream.Err())
	}
}

func TestStreamCollectsDeltasOnly(t *testing.T) {
	frames := "event:conversation.chat.created\ndata:{\"id\":\"c1\",\"status\":\"created\"}\n\n" +
		"event:conversation.chat.in_progress\ndata:{\"id\":\"c1\",\"status\":\"in_progress\"}\n\n" +
		deltaFrame("Weekly ") +
		": keep-alive\n\n" +
		deltaFrame("summary") +
		"event:conversation.message.completed\ndata:{\"type\":\"answer\",\"content\":\"Weekly summary\"}\n\n" +
		"event:conversation.message.completed\ndata:{\"type\":\"verbose\",\"content\":\"{}\"}\n\n" +
		"event:conversation.chat.completed\ndata:{\"id\":\"c1\",\"status\":\"completed\"}\n\n" +
		"event:done\ndata:\"[DONE]\"\n\n" +
		deltaFrame("ignored after done")

	ts := httptest.NewServer(sseHandler(t, frames))
	defer ts.Close()

	stream, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	got, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Weekly summary" {
		t.Errorf("expected %q, got %q", "Weekly summary", got)
	}
}

func TestStreamEventSequence(t *testing.T) {
	frames := "event: conversation.chat.created\ndata: {\"id\":\"c1\"}\n\n" +
		deltaFrame("a") +
		"event:conversation.chat.completed\ndata:{}\n\n"

	ts := httptest.NewServer(sseHandler(t, frames))
	defer ts.Close()

	stream, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	var types []EventType
	for stream.Next() {
		types = append(types, stream.Event().Type)
	}
	if stream.Err() != nil {
		t.Fatalf("unexpected error: %v", stream.Err())
	}

	want := []EventType{EventChatCreated, EventMessageDelta, EventChatCompleted}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestStreamMultilineData(t *testing.T) {
	ts := httptest.NewServer(sseHandler(t, "event:error\ndata:{\"code\":4000,\ndata:\"msg\":\"bad\"}\n\n"))
	defer ts.Close()

	stream, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	if stream.Next() {
		t.Error("expected error event to stop iteration")
	}
	var apiErr *APIError
	if !errors.As(stream.Err(), &apiErr) {
		t.Fatalf("expected APIError, got %v", stream.Err())
	}
	if apiErr.Code != 4000 || apiErr.Msg != "bad" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestStreamErrorEvent(t *testing.T) {
	frames := deltaFrame("partial") +
		"event:error\ndata:{\"code\":4011,\"msg\":\"insufficient balance\"}\n\n"

	ts := httptest.NewServer(sseHandler(t, frames))
	defer ts.Close()

	stream, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	got, err := stream.Collect()
	if got != "partial" {
		t.Errorf("expected partial content, got %q", got)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 4011 {
		t.Errorf("expected code 4011, got %d", apiErr.Code)
	}
	if !strings.Contains(apiErr.Error(), "insufficient balance") {
		t.Errorf("unexpected message: %s", apiErr.Error())
	}
}

func TestStreamChatFailed(t *testing.T) {
	frames := "event:conversation.chat.failed\ndata:{\"id\":\"c1\",\"status\":\"failed\",\"last_error\":{\"code\":5000,\"msg\":\"model overloaded\"}}\n\n"

	ts := httptest.NewServer(sseHandler(t, frames))
	defer ts.Close()

	stream, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	_, err = stream.Collect()
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 5000 || apiErr.Msg != "model overloaded" {
		t.Errorf("expected chat failure error, got %v", err)
	}
}

func TestStreamChatHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":4100,"msg":"authentication is invalid"}`)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "bad").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != 4100 {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestStreamChatPlainHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Error(), "502") {
		t.Errorf("expected status in message, got %s", apiErr.Error())
	}
}

func TestStreamChatJSONEnvelopeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"code":4200,"msg":"bot not published"}`)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "pat_test").StreamChat(context.Background(), ChatRequest{BotID: "b"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 4200 {
		t.Errorf("expected envelope error, got %v", err)
	}
}

func TestStreamChatContextCancel(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, deltaFrame("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := New(ts.URL, "pat_test").StreamChat(ctx, ChatRequest{BotID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	if !stream.Next() {
		t.Fatalf("expected first event, got err %v", stream.Err())
	}
	cancel()

	done := make(chan bool)
	go func() { done <- stream.Next() }()
	select {
	case more := <-done:
		if more {
			t.Error("expected iteration to stop after cancel")
		}
		if stream.Err() == nil {
			t.Error("expected error after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after context cancel")
	}
}
