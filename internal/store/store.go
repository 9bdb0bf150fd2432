package store

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/dailyreport/internal/api"
	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/rs/zerolog"
)

// Op names a mutating store operation.
type Op string

const (
	OpSave   Op = "save"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
	OpImport Op = "import"
)

// Change describes a completed mutation. Date is empty for clear and import.
type Change struct {
	Op    Op
	Date  string
	Count int
}

// Store owns the date -> report map and keeps the persister in sync with it.
type Store struct {
	mu        sync.RWMutex
	reports   map[string]models.Report
	persister Persister
	logger    zerolog.Logger
	now       func() time.Time
	onChange  func(Change)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed persistence errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides time.Now, used for timestamps and statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnChange registers an observer called after every successful mutation.
func WithOnChange(fn func(Change)) Option {
	return func(s *Store) { s.onChange = fn }
}

// New creates an empty store. Call Restore (or use Open) before first use.
func New(persister Persister, opts ...Option) *Store {
	s := &Store{
		reports:   make(map[string]models.Report),
		persister: persister,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and restores it from the persister.
func Open(ctx context.Context, persister Persister, opts ...Option) *Store {
	s := New(persister, opts...)
	s.Restore(ctx)
	return s
}

// Close releases the persister. Every mutation has already been persisted,
// so nothing is written here.
func (s *Store) Close() error {
	if c, ok := s.persister.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Save upserts the report for date. Content is trimmed; the creation time of
// an existing report is preserved and the update time is refreshed.
func (s *Store) Save(ctx context.Context, date, content string) (models.Report, error) {
	if err := api.ValidateDate(date); err != nil {
		return models.Report{}, &ValidationError{Field: "date", Message: err.Error()}
	}
	if err := api.ValidateContent(content); err != nil {
		return models.Report{}, &ValidationError{Field: "content", Message: err.Error()}
	}
	date = strings.TrimSpace(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := models.FormatTimestamp(s.now())
	report := models.Report{
		Date:      date,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, ok := s.reports[date]; ok && existing.CreatedAt != "" {
		report.CreatedAt = existing.CreatedAt
	}
	s.reports[date] = report

	s.persistLocked(ctx)
	s.notify(Change{Op: OpSave, Date: date, Count: 1})
	return report, nil
}

// Get returns the report for date.
func (s *Store) Get(date string) (models.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[strings.TrimSpace(date)]
	return r, ok
}

// Has reports whether a report exists for date.
func (s *Store) Has(date string) bool {
	_, ok := s.Get(date)
	return ok
}

// Delete removes the report for date and reports whether one existed.
// The collection is persisted either way.
func (s *Store) Delete(ctx context.Context, date string) bool {
	date = strings.TrimSpace(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.reports[date]
	delete(s.reports, date)

	s.persistLocked(ctx)
	if existed {
		s.notify(Change{Op: OpDelete, Date: date, Count: 1})
	}
	return existed
}

// List returns every report sorted by date ascending.
func (s *Store) List() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(string) bool { return true })
}

// ListInRange returns reports with start <= date <= end, sorted ascending.
// ISO dates order lexicographically the same as chronologically.
func (s *Store) ListInRange(start, end string) []models.Report {
	r := models.DateRange{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(r.Contains)
}

// Clear removes every report.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.reports)
	s.reports = make(map[string]models.Report)

	s.persistLocked(ctx)
	s.notify(Change{Op: OpClear, Count: n})
}

// Count returns the number of stored reports.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Export serializes every report as a 2-space indented JSON array, sorted by date.
func (s *Store) Export() (string, error) {
	data, err := json.MarshalIndent(s.List(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type importRecord struct {
	Date      string `json:"date"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Import upserts the reports in a JSON array document. The whole document is
// validated first; on any error nothing is committed. Returns the number of
// reports written.
func (s *Store) Import(ctx context.Context, data string) (int, error) {
	if err := api.ValidateImportPayload(data); err != nil {
		s.logger.Error().Err(err).Msg("import rejected")
		return 0, &ImportError{Index: -1, Reason: err.Error()}
	}

	// null decodes into a nil slice without error
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil || raw == nil {
		s.logger.Error().Err(err).Msg("import rejected")
		return 0, &ImportError{Index: -1, Reason: "payload is not a JSON array"}
	}

	now := models.FormatTimestamp(s.now())
	staged := make([]models.Report, 0, len(raw))
	for i, elem := range raw {
		var rec importRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			s.logger.Error().Err(err).Int("index", i).Msg("import rejected")
			return 0, &ImportError{Index: i, Reason: "element is not a report object"}
		}
		if reason := validateImportRecord(rec); reason != "" {
			s.logger.Error().Str("reason", reason).Int("index", i).Msg("import rejected")
			return 0, &ImportError{Index: i, Reason: reason}
		}

		report := models.Report{
			Date:      strings.TrimSpace(rec.Date),
			Content:   strings.TrimSpace(rec.Content),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		if report.CreatedAt == "" {
			report.CreatedAt = now
		}
		if report.UpdatedAt == "" {
			report.UpdatedAt = report.CreatedAt
		}
		staged = append(staged, report)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range staged {
		s.reports[r.Date] = r
	}

	s.persistLocked(ctx)
	s.notify(Change{Op: OpImport, Count: len(staged)})
	return len(staged), nil
}

func validateImportRecord(rec importRecord) string {
	if strings.TrimSpace(rec.Date) == "" {
		return "missing date"
	}
	if strings.TrimSpace(rec.Content) == "" {
		return "missing content"
	}
	if err := api.ValidateDate(rec.Date); err != nil {
		return err.Error()
	}
	if err := api.ValidateContent(rec.Content); err != nil {
		return err.Error()
	}
	return ""
}

// Statistics computes totals relative to the current date. Weeks start on Monday.
func (s *Store) Statistics() models.Statistics {
	all := s.List()
	now := s.now()

	month := now.Format("2006-01")
	week := models.WeekOf(now)

	stats := models.Statistics{TotalReports: len(all)}
	for _, r := range all {
		if strings.HasPrefix(r.Date, month) {
			stats.ThisMonthReports++
		}
		if week.Contains(r.Date) {
			stats.ThisWeekReports++
		}
	}
	if len(all) > 0 {
		first := all[0].Date
		last := all[len(all)-1].Date
		stats.FirstReportDate = &first
		stats.LastReportDate = &last
	}
	return stats
}

// Persist writes the collection to the persister. Errors are logged, never returned.
func (s *Store) Persist(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.persistLocked(ctx)
}

// Restore replaces the in-memory collection with the persisted one. On error
// the current collection is kept and the error is logged.
func (s *Store) Restore(ctx context.Context) {
	if s.persister == nil {
		return
	}

	reports, err := s.persister.Restore(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to restore reports")
		return
	}

	if reports == nil {
		reports = make(map[string]models.Report)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = reports
	s.logger.Debug().Int("count", len(reports)).Msg("reports restored")
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Persist(ctx, s.reports); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist reports")
	}
}

func (s *Store) notify(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

func (s *Store) sortedLocked(keep func(date string) bool) []models.Report {
	result := make([]models.Report, 0, len(s.reports))
	for date, r := range s.reports {
		if keep(date) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})
	return result
}
