// Package summary turns a range of daily reports into a weekly summary using
// a Coze bot.
package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/dailyreport/internal/apiclient"
	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/rs/zerolog"
)

var (
	ErrMissingToken  = errors.New("coze API token is not configured")
	ErrMissingBotID  = errors.New("coze bot id is not configured")
	ErrEmptyResponse = errors.New("API returned empty content")
)

// connectionPrompt is sent by TestConnection.
const connectionPrompt = `Hello, please reply "connection test succeeded".`

// GenerationError is returned when a summary cannot be produced. Its message
// is safe to show to users; the cause is available through errors.Unwrap.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return "failed to generate weekly report, check the network connection or try again later"
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Config holds the connection settings for the chat API.
type Config struct {
	BaseURL string
	Token   string
	BotID   string
	UserID  string

	// Timeout bounds a whole generation including the stream. Zero disables it.
	Timeout time.Duration
}

// Service generates weekly summaries.
type Service struct {
	client *apiclient.Client
	botID  string
	userID string
	logger zerolog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger     zerolog.Logger
	httpClient *http.Client
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithHTTPClient overrides the transport used by the chat client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *serviceOptions) { o.httpClient = hc }
}

// NewService validates cfg and builds a service. Missing credentials fail fast.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(cfg.BotID) == "" {
		return nil, ErrMissingBotID
	}

	o := serviceOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []apiclient.Option{apiclient.WithLogger(o.logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	clientOpts = append(clientOpts, apiclient.WithTimeout(cfg.Timeout))

	userID := cfg.UserID
	if userID == "" {
		userID = apiclient.DefaultUserID
	}

	return &Service{
		client: apiclient.New(cfg.BaseURL, strings.TrimSpace(cfg.Token), clientOpts...),
		botID:  strings.TrimSpace(cfg.BotID),
		userID: userID,
		logger: o.logger,
	}, nil
}

// BaseURL returns the chat endpoint in use.
func (s *Service) BaseURL() string {
	return s.client.BaseURL()
}

// BotID returns the configured bot.
func (s *Service) BotID() string {
	return s.botID
}

// BuildPrompt renders the instruction sent to the bot. An empty report list
// still yields a complete prompt with no detail lines.
func BuildPrompt(reports []models.Report, r models.DateRange) string {
	details := make([]string, 0, len(reports))
	for _, report := range reports {
		details = append(details, fmt.Sprintf("- %s: %q", report.Date, report.Content))
	}

	var b strings.Builder
	b.WriteString("Based on the daily reports below, write a professional weekly report.\n\n")
	fmt.Fprintf(&b, "Period: %s to %s\n\n", r.Start, r.End)
	b.WriteString("Daily reports:\n")
	b.WriteString(strings.Join(details, "\n"))
	b.WriteString("\n\n")
	b.WriteString("Structure the weekly report as follows:\n")
	b.WriteString("1. Summary of this week's work\n")
	b.WriteString("2. Main completed items\n")
	b.WriteString("3. Problems encountered and how they were resolved\n")
	b.WriteString("4. Plan for next week\n")
	b.WriteString("5. Other items that need attention\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Concise and clear, with the key points highlighted\n")
	b.WriteString("- Logically organized and well structured\n")
	b.WriteString("- Emphasize results and the value delivered\n")
	b.WriteString("- Professional language suitable for reporting to a manager")
	return b.String()
}

// GenerateWeeklySummary builds the prompt for reports within r and returns the
// bot's trimmed answer.
func (s *Service) GenerateWeeklySummary(ctx context.Context, reports []models.Report, r models.DateRange) (string, error) {
	return s.GenerateWeeklySummaryTo(ctx, reports, r, nil)
}

// GenerateWeeklySummaryTo is GenerateWeeklySummary that also writes each delta
// to w as it arrives. w may be nil.
func (s *Service) GenerateWeeklySummaryTo(ctx context.Context, reports []models.Report, r models.DateRange, w io.Writer) (string, error) {
	start := time.Now()
	s.logger.Info().
		Str("range", r.String()).
		Int("reports", len(reports)).
		Msg("generating weekly summary")

	text, err := s.chat(ctx, BuildPrompt(reports, r), w)
	if err != nil {
		s.logger.Error().Err(err).Str("range", r.String()).Msg("weekly summary generation failed")
		return "", &GenerationError{Cause: err}
	}

	s.logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("chars", len(text)).
		Msg("weekly summary generated")
	return text, nil
}

// TestConnection sends a fixed greeting and succeeds on any non-empty answer.
func (s *Service) TestConnection(ctx context.Context) error {
	text, err := s.chat(ctx, connectionPrompt, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("API connection test failed")
		return err
	}
	s.logger.Debug().Str("reply", text).Msg("API connection test succeeded")
	return nil
}

func (s *Service) chat(ctx context.Context, prompt string, w io.Writer) (string, error) {
	stream, err := s.client.StreamChat(ctx, apiclient.ChatRequest{
		BotID:              s.botID,
		UserID:             s.userID,
		AutoSaveHistory:    true,
		AdditionalMessages: []apiclient.Message{apiclient.UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = stream.Close() }()

	var b strings.Builder
	for delta, err := range stream.Deltas() {
		if err != nil {
			return "", err
		}
		b.WriteString(delta)
		if w != nil {
			if _, werr := io.WriteString(w, delta); werr != nil {
				return "", fmt.Errorf("write delta: %w", werr)
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
