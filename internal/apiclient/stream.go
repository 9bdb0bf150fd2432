package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	sse "github.com/tmaxmax/go-sse"
)

// EventType is the SSE event name sent by the chat API.
type EventType string

const (
	EventChatCreated      EventType = "conversation.chat.created"
	EventChatInProgress   EventType = "conversation.chat.in_progress"
	EventMessageDelta     EventType = "conversation.message.delta"
	EventMessageCompleted EventType = "conversation.message.completed"
	EventChatCompleted    EventType = "conversation.chat.completed"
	EventChatFailed       EventType = "conversation.chat.failed"
	EventRequiresAction   EventType = "conversation.chat.requires_action"
	EventError            EventType = "error"
	EventDone             EventType = "done"
)

// Event is one server-sent event. Data is the raw payload, usually JSON.
type Event struct {
	Type EventType
	Data string
}

// MessagePart is the payload of message events.
type MessagePart struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	ContentType    string `json:"content_type"`
}

// ChatStatus is the payload of conversation.chat.* events.
type ChatStatus struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
	LastError      *APIError `json:"last_error,omitempty"`
}

// Message decodes the event payload as a message part.
func (e Event) Message() (MessagePart, error) {
	var m MessagePart
	if err := json.Unmarshal([]byte(e.Data), &m); err != nil {
		return MessagePart{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return m, nil
}

// failure converts terminal error events into an APIError.
func (e Event) failure() error {
	switch e.Type {
	case EventError:
		apiErr := &APIError{}
		if err := json.Unmarshal([]byte(e.Data), apiErr); err != nil || (apiErr.Code == 0 && apiErr.Msg == "") {
			apiErr.Msg = strings.TrimSpace(e.Data)
		}
		return apiErr
	case EventChatFailed:
		var status ChatStatus
		if err := json.Unmarshal([]byte(e.Data), &status); err == nil && status.LastError != nil &&
			(status.LastError.Code != 0 || status.LastError.Msg != "") {
			return status.LastError
		}
		return &APIError{Msg: "chat failed"}
	}
	return nil
}

// Stream iterates over the events of a chat response.
//
//	for stream.Next() {
//		ev := stream.Event()
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	body  io.ReadCloser
	next  func() (sse.Event, error, bool)
	stop  func()
	event Event
	err   error
	done  bool
}

func newStream(body io.ReadCloser) *Stream {
	next, stop := iter.Pull2(iter.Seq2[sse.Event, error](sse.Read(body, nil)))
	return &Stream{body: body, next: next, stop: stop}
}

// Next advances to the next event. It returns false at the end of the
// stream, after a done event, or on error; check Err afterwards.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	ev, err, ok := s.next()
	if !ok {
		s.done = true
		return false
	}
	if err != nil {
		s.done = true
		s.err = fmt.Errorf("read event stream: %w", err)
		return false
	}
	return s.dispatch(EventType(ev.Type), ev.Data)
}

func (s *Stream) dispatch(t EventType, data string) bool {
	s.event = Event{Type: t, Data: data}
	switch t {
	case EventDone:
		s.done = true
		return false
	case EventError, EventChatFailed:
		s.done = true
		s.err = s.event.failure()
		return false
	}
	return true
}

// Event returns the current event.
func (s *Stream) Event() Event {
	return s.event
}

// Err returns the error that stopped iteration, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the event reader and releases the response body.
func (s *Stream) Close() error {
	s.done = true
	err := s.body.Close()
	s.stop()
	return err
}

// Deltas yields the content of every conversation.message.delta event.
// Other events are skipped. A terminal error is yielded once as the last pair.
func (s *Stream) Deltas() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for s.Next() {
			ev := s.Event()
			if ev.Type != EventMessageDelta {
				continue
			}
			msg, err := ev.Message()
			if err != nil {
				yield("", err)
				return
			}
			if msg.Content == "" {
				continue
			}
			if !yield(msg.Content, nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield("", err)
		}
	}
}

// Collect drains the stream and returns the concatenated delta content.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for delta, err := range s.Deltas() {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(delta)
	}
	return b.String(), nil
}
