package tui

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/dailyreport/internal/models"
)

// mode represents the current UI interaction mode.
type mode int

const (
	modeNormal mode = iota
	modeSearch
	modePeriod
)

const defaultTableHeight = 15

// Model is the top-level Bubble Tea model for the browse TUI.
type Model struct {
	// Data (immutable after init)
	stats      models.Statistics
	allReports []models.Report
	activity   []int
	now        time.Time

	// UI state
	table           table.Model
	searchInput     textinput.Model
	filteredReports []models.Report
	filters         filterState
	order           sortOrder
	mode            mode
	periodCursor    int
	width           int
	height          int
	statusMsg       string
	// clipboard is captured here for testing instead of writing to stdout
	clipboard string
}

// New creates a new TUI model from a snapshot of the store.
func New(reports []models.Report, stats models.Statistics) Model {
	return newModel(reports, stats, time.Now())
}

func newModel(reports []models.Report, stats models.Statistics, now time.Time) Model {
	all := make([]models.Report, len(reports))
	copy(all, reports)

	sortReports(all, sortNewestFirst)
	t := newTable(buildRows(all), defaultTableHeight)

	ti := textinput.New()
	ti.Placeholder = "search date or content..."
	ti.CharLimit = 64

	return Model{
		stats:           stats,
		allReports:      all,
		activity:        weeklyActivity(all, now, activityWeeks),
		now:             now,
		filteredReports: all,
		table:           t,
		searchInput:     ti,
		order:           sortNewestFirst,
		mode:            modeNormal,
		width:           80,
		height:          24,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		tableH := msg.Height - headerHeight - detailHeight - 3
		if tableH < 3 {
			tableH = 3
		}
		m.table.SetHeight(tableH)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	default:
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modePeriod:
		return m.handlePeriodKey(msg)
	default:
		return m.handleNormalKey(msg)
	}
}

func (m Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Search):
		m.mode = modeSearch
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Period):
		m.mode = modePeriod
		m.periodCursor = int(m.filters.Period)
		return m, nil
	case key.Matches(msg, keys.Sort):
		if m.order == sortNewestFirst {
			m.order = sortOldestFirst
		} else {
			m.order = sortNewestFirst
		}
		m.rebuildTable()
		m.statusMsg = fmt.Sprintf("Sort: %s", sortOrderName(m.order))
		return m, nil
	case key.Matches(msg, keys.Copy):
		m.copySelectedReport()
		return m, nil
	case key.Matches(msg, keys.ClearFilter):
		m.filters = filterState{}
		m.searchInput.SetValue("")
		m.statusMsg = ""
		m.rebuildTable()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filters.SearchText = m.searchInput.Value()
		m.mode = modeNormal
		m.searchInput.Blur()
		m.rebuildTable()
		return m, nil
	case "esc":
		m.mode = modeNormal
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handlePeriodKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.periodCursor > 0 {
			m.periodCursor--
		}
	case "down", "j":
		if m.periodCursor < len(periodChoices)-1 {
			m.periodCursor++
		}
	case "enter":
		m.filters.Period = periodChoices[m.periodCursor]
		m.mode = modeNormal
		m.rebuildTable()
		if m.filters.Period != periodAll {
			m.statusMsg = fmt.Sprintf("Period: %s", periodName(m.filters.Period))
		} else {
			m.statusMsg = ""
		}
	case "esc":
		m.mode = modeNormal
	}
	return m, nil
}

func (m *Model) rebuildTable() {
	filtered := applyFilters(m.allReports, m.filters, m.now)
	sortReports(filtered, m.order)
	m.filteredReports = filtered
	m.table.SetRows(buildRows(filtered))
	if m.table.Cursor() >= len(filtered) {
		m.table.SetCursor(0)
	}
}

func (m *Model) selectedReport() *models.Report {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.filteredReports) {
		return nil
	}
	return &m.filteredReports[cursor]
}

// copySelectedReport writes the selected report to clipboard via OSC 52.
func (m *Model) copySelectedReport() {
	report := m.selectedReport()
	if report == nil {
		m.statusMsg = "Nothing to copy"
		return
	}
	text := fmt.Sprintf("%s\n%s", report.Date, report.Content)
	m.clipboard = text
	m.statusMsg = "Copied!"
	// OSC 52 clipboard escape: works in most modern terminals
	fmt.Printf("\033]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(renderHeader(m.stats, m.activity, m.width))
	b.WriteString("\n")

	// Search bar overlay
	if m.mode == modeSearch {
		b.WriteString(styleSearchPrompt.Render("/ "))
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}

	// Period picker overlay
	if m.mode == modePeriod {
		b.WriteString(m.renderPeriodPicker())
		b.WriteString("\n")
	}

	// Table
	b.WriteString(m.table.View())
	b.WriteString("\n")

	// Detail panel
	b.WriteString(renderDetail(m.selectedReport(), m.now, m.width))
	b.WriteString("\n")

	// Footer
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderPeriodPicker() string {
	var b strings.Builder
	b.WriteString("Show period:\n")

	for i, p := range periodChoices {
		cursor := "  "
		if i == m.periodCursor {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%s\n", cursor, periodName(p)))
	}
	return b.String()
}

func (m *Model) renderFooter() string {
	left := "q:quit  /:search  p:period  s:sort  c:copy  esc:clear"
	right := fmt.Sprintf("%d/%d reports", len(m.filteredReports), len(m.allReports))

	if m.statusMsg != "" {
		right = m.statusMsg + "  " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return styleFooter.Render(left + strings.Repeat(" ", gap) + right)
}

// Run starts the Bubble Tea program. Called from the browse command.
func Run(reports []models.Report, stats models.Statistics) error {
	m := New(reports, stats)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
