package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/ppiankov/dailyreport/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx   context.Context
	kv    *storage.MemoryStorage
	store *Store
	clock *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemory()
	clock := &fakeClock{now: time.Date(2024, 3, 6, 9, 30, 0, 0, time.Local)}
	s := Open(ctx, NewKVPersister(kv), WithClock(clock.Now))
	return &fixture{ctx: ctx, kv: kv, store: s, clock: clock}
}

func persisted(t *testing.T, f *fixture) map[string]models.Report {
	t.Helper()
	data, err := f.kv.Get(f.ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]models.Report{}
	}
	require.NoError(t, err)
	var m map[string]models.Report
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	return m
}

func TestSaveTrimsAndStamps(t *testing.T) {
	f := setupFixture(t)

	r, err := f.store.Save(f.ctx, "2024-03-01", "  Did X \n")
	require.NoError(t, err)
	assert.Equal(t, "Did X", r.Content)
	assert.Equal(t, "2024-03-06 09:30:00", r.CreatedAt)
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)

	got, ok := f.store.Get("2024-03-01")
	require.True(t, ok)
	assert.Equal(t, r, got)
	assert.True(t, f.store.Has("2024-03-01"))
	assert.False(t, f.store.Has("2024-03-02"))
}

func TestSavePreservesCreatedAt(t *testing.T) {
	f := setupFixture(t)

	first, err := f.store.Save(f.ctx, "2024-03-01", "Did X")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	second, err := f.store.Save(f.ctx, "2024-03-01", "Did X and Y")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "2024-03-06 11:30:00", second.UpdatedAt)
	assert.Greater(t, second.UpdatedAt, first.UpdatedAt)
	assert.Equal(t, 1, f.store.Count())
}

func TestSaveValidation(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "03/01/2024", "Did X")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date", verr.Field)

	_, err = f.store.Save(f.ctx, "2024-03-01", "   ")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)

	assert.Equal(t, 0, f.store.Count())
	_, err = f.kv.Get(f.ctx, StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "rejected saves must not persist")
}

func TestSavePersists(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "Did X")
	require.NoError(t, err)

	m := persisted(t, f)
	require.Contains(t, m, "2024-03-01")
	assert.Equal(t, "Did X", m["2024-03-01"].Content)
}

func TestDelete(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "Did X")
	require.NoError(t, err)

	assert.True(t, f.store.Delete(f.ctx, "2024-03-01"))
	assert.False(t, f.store.Has("2024-03-01"))
	assert.Empty(t, persisted(t, f))

	// Absent date is not an error
	assert.False(t, f.store.Delete(f.ctx, "2024-03-01"))
}

func TestListSortedAscending(t *testing.T) {
	f := setupFixture(t)

	for _, d := range []string{"2024-03-03", "2024-02-28", "2024-03-01"} {
		_, err := f.store.Save(f.ctx, d, "entry "+d)
		require.NoError(t, err)
	}

	var dates []string
	for _, r := range f.store.List() {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []string{"2024-02-28", "2024-03-01", "2024-03-03"}, dates)
}

func TestListInRangeInclusive(t *testing.T) {
	f := setupFixture(t)

	for _, d := range []string{"2024-02-29", "2024-03-01", "2024-03-04", "2024-03-07", "2024-03-08"} {
		_, err := f.store.Save(f.ctx, d, "entry")
		require.NoError(t, err)
	}

	got := f.store.ListInRange("2024-03-01", "2024-03-07")
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-01", got[0].Date)
	assert.Equal(t, "2024-03-04", got[1].Date)
	assert.Equal(t, "2024-03-07", got[2].Date)
}

func TestListInRangeExample(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "Did X")
	require.NoError(t, err)
	_, err = f.store.Save(f.ctx, "2024-03-03", "Did Y")
	require.NoError(t, err)

	got := f.store.ListInRange("2024-03-01", "2024-03-02")
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03-01", got[0].Date)
	assert.Equal(t, "Did X", got[0].Content)
}

func TestListInRangeEmptyWhenReversed(t *testing.T) {
	f := setupFixture(t)
	_, err := f.store.Save(f.ctx, "2024-03-01", "Did X")
	require.NoError(t, err)

	assert.Empty(t, f.store.ListInRange("2024-03-02", "2024-03-01"))
}

func TestClear(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "Did X")
	require.NoError(t, err)
	f.store.Clear(f.ctx)

	assert.Equal(t, 0, f.store.Count())
	_, err = f.kv.Get(f.ctx, StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "empty collection removes the stored document")

	reopened := Open(f.ctx, NewKVPersister(f.kv))
	assert.Equal(t, 0, reopened.Count())
}

func TestExportFormat(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-02", "B")
	require.NoError(t, err)
	_, err = f.store.Save(f.ctx, "2024-03-01", "A")
	require.NoError(t, err)

	out, err := f.store.Export()
	require.NoError(t, err)

	assert.Contains(t, out, "[\n  {\n    \"date\": \"2024-03-01\"")
	var reports []models.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "2024-03-01", reports[0].Date)
	assert.Equal(t, "2024-03-02", reports[1].Date)
}

func TestExportEmpty(t *testing.T) {
	f := setupFixture(t)
	out, err := f.store.Export()
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestExportClearImportRoundTrip(t *testing.T) {
	f := setupFixture(t)

	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-05"} {
		_, err := f.store.Save(f.ctx, d, "work on "+d)
		require.NoError(t, err)
	}
	before := f.store.List()

	exported, err := f.store.Export()
	require.NoError(t, err)
	f.store.Clear(f.ctx)
	require.Equal(t, 0, f.store.Count())

	f.clock.Advance(24 * time.Hour)
	n, err := f.store.Import(f.ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, before, f.store.List())
}

func TestImportOverwritesByDate(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "old")
	require.NoError(t, err)

	n, err := f.store.Import(f.ctx, `[
		{"date": "2024-03-01", "content": "new", "createdAt": "2024-03-01 18:00:00", "updatedAt": "2024-03-01 19:00:00", "mood": "ignored"},
		{"date": "2024-03-02", "content": " fresh "}
	]`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, ok := f.store.Get("2024-03-01")
	require.True(t, ok)
	assert.Equal(t, "new", r.Content)
	assert.Equal(t, "2024-03-01 18:00:00", r.CreatedAt)
	assert.Equal(t, "2024-03-01 19:00:00", r.UpdatedAt)

	r, ok = f.store.Get("2024-03-02")
	require.True(t, ok)
	assert.Equal(t, "fresh", r.Content)
	assert.Equal(t, "2024-03-06 09:30:00", r.CreatedAt, "missing timestamps are filled with now")
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)

	assert.Len(t, persisted(t, f), 2)
}

func TestImportNonArrayLeavesStoreUnchanged(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "keep me")
	require.NoError(t, err)

	for _, payload := range []string{
		`{"date": "2024-03-02", "content": "x"}`,
		`"just a string"`,
		`42`,
		`not json`,
		`null`,
		` null `,
		``,
	} {
		n, err := f.store.Import(f.ctx, payload)
		assert.Error(t, err, payload)
		assert.ErrorIs(t, err, ErrInvalidImport, payload)
		assert.Zero(t, n)
	}

	require.Equal(t, 1, f.store.Count())
	r, _ := f.store.Get("2024-03-01")
	assert.Equal(t, "keep me", r.Content)
}

func TestImportAllOrNothing(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.Save(f.ctx, "2024-03-01", "original")
	require.NoError(t, err)

	_, err = f.store.Import(f.ctx, `[
		{"date": "2024-03-01", "content": "overwritten"},
		{"date": "2024-03-02", "content": "added"},
		{"date": "2024-03-03"}
	]`)

	var ierr *ImportError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 2, ierr.Index)
	assert.Equal(t, "missing content", ierr.Reason)

	r, _ := f.store.Get("2024-03-01")
	assert.Equal(t, "original", r.Content)
	assert.False(t, f.store.Has("2024-03-02"))
	assert.Equal(t, "original", persisted(t, f)["2024-03-01"].Content)
}

func TestImportRejectsBadElements(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"missing date", `[{"content": "x"}]`, "missing date"},
		{"blank content", `[{"date": "2024-03-01", "content": "  "}]`, "missing content"},
		{"null element", `[null]`, "missing date"},
		{"number element", `[1]`, "element is not a report object"},
		{"bad date", `[{"date": "March 1", "content": "x"}]`, `date "March 1" must use YYYY-MM-DD`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			_, err := f.store.Import(f.ctx, tt.payload)
			var ierr *ImportError
			require.ErrorAs(t, err, &ierr)
			assert.Equal(t, 0, ierr.Index)
			assert.Equal(t, tt.reason, ierr.Reason)
		})
	}
}

func TestImportEmptyArray(t *testing.T) {
	f := setupFixture(t)
	n, err := f.store.Import(f.ctx, `[]`)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStatisticsEmpty(t *testing.T) {
	f := setupFixture(t)

	stats := f.store.Statistics()
	assert.Equal(t, 0, stats.TotalReports)
	assert.Equal(t, 0, stats.ThisMonthReports)
	assert.Equal(t, 0, stats.ThisWeekReports)
	assert.Nil(t, stats.FirstReportDate)
	assert.Nil(t, stats.LastReportDate)

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"firstReportDate":null`)
}

func TestStatistics(t *testing.T) {
	f := setupFixture(t) // now is Wednesday 2024-03-06

	for _, d := range []string{
		"2024-02-26", // previous month
		"2024-03-01", // this month, previous week
		"2024-03-04", // Monday of this week
		"2024-03-06", // today
		"2024-03-10", // Sunday of this week
		"2024-03-11", // next week
	} {
		_, err := f.store.Save(f.ctx, d, "entry")
		require.NoError(t, err)
	}

	stats := f.store.Statistics()
	assert.Equal(t, 6, stats.TotalReports)
	assert.Equal(t, 5, stats.ThisMonthReports)
	assert.Equal(t, 3, stats.ThisWeekReports)
	require.NotNil(t, stats.FirstReportDate)
	require.NotNil(t, stats.LastReportDate)
	assert.Equal(t, "2024-02-26", *stats.FirstReportDate)
	assert.Equal(t, "2024-03-11", *stats.LastReportDate)
}

func TestOpenRestoresFromBackend(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, StorageKey,
		`{"2024-03-01":{"date":"2024-03-01","content":"Did X","createdAt":"2024-03-01 10:00:00","updatedAt":"2024-03-01 10:00:00"}}`))

	s := Open(ctx, NewKVPersister(kv))
	r, ok := s.Get("2024-03-01")
	require.True(t, ok)
	assert.Equal(t, "Did X", r.Content)
}

func TestOpenWithCorruptBackendStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, StorageKey, `{broken`))

	var buf bytes.Buffer
	s := Open(ctx, NewKVPersister(kv), WithLogger(zerolog.New(&buf)))
	assert.Equal(t, 0, s.Count())
	assert.Contains(t, buf.String(), "failed to restore reports")
}

type failingPersister struct {
	persistCalls int
}

func (p *failingPersister) Persist(context.Context, map[string]models.Report) error {
	p.persistCalls++
	return errors.New("quota exceeded")
}

func (p *failingPersister) Restore(context.Context) (map[string]models.Report, error) {
	return nil, errors.New("backend unavailable")
}

func TestPersistenceErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{}
	var buf bytes.Buffer
	s := Open(ctx, p, WithLogger(zerolog.New(&buf)))

	r, err := s.Save(ctx, "2024-03-01", "Did X")
	require.NoError(t, err)
	assert.Equal(t, "Did X", r.Content)
	assert.True(t, s.Has("2024-03-01"), "in-memory state survives backend failure")

	s.Delete(ctx, "2024-03-01")
	s.Clear(ctx)

	assert.Equal(t, 3, p.persistCalls)
	assert.Contains(t, buf.String(), "quota exceeded")
	assert.Contains(t, buf.String(), "backend unavailable")
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	var changes []Change
	s := Open(ctx, NewKVPersister(storage.NewMemory()), WithOnChange(func(c Change) {
		changes = append(changes, c)
	}))

	_, err := s.Save(ctx, "2024-03-01", "x")
	require.NoError(t, err)
	s.Delete(ctx, "2024-03-01")
	s.Delete(ctx, "2024-03-01")
	_, err = s.Import(ctx, `[{"date":"2024-03-02","content":"y"}]`)
	require.NoError(t, err)
	s.Clear(ctx)

	assert.Equal(t, []Change{
		{Op: OpSave, Date: "2024-03-01", Count: 1},
		{Op: OpDelete, Date: "2024-03-01", Count: 1},
		{Op: OpImport, Count: 1},
		{Op: OpClear, Count: 1},
	}, changes)
}

type closingKV struct {
	*storage.MemoryStorage
	closed bool
}

func (c *closingKV) Close() error {
	c.closed = true
	return nil
}

func TestCloseReleasesWithoutWriting(t *testing.T) {
	ctx := context.Background()
	kv := &closingKV{MemoryStorage: storage.NewMemory()}
	s := New(NewKVPersister(kv))

	require.NoError(t, s.Close())
	assert.True(t, kv.closed)

	_, err := kv.Get(ctx, StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReadOnlySessionKeepsUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewLocal(t.TempDir())

	original := `{"2024-03-01":{"date":"2024-03-01","content":"Did X","createdAt":1}}`
	require.NoError(t, kv.Set(ctx, StorageKey, original))

	s := Open(ctx, NewKVPersister(kv))
	_, ok := s.Get("2024-03-01")
	assert.False(t, ok)
	assert.Empty(t, s.List())
	require.NoError(t, s.Close())

	data, err := kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}
