package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// redrawInterval paces the ETA and throughput refresh.
const redrawInterval = 100 * time.Millisecond

// TUIRenderer drives the bubbletea crawl display.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *crawlModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer builds the rich renderer. It refuses non-TTY outputs
// so the caller can fall back to plain text.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newCrawlModel(tracker, cfg.RootLabel)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the bubbletea program in the background. The context is
// unused; shutdown goes through Stop.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	// Alternate screen buffer so redraws replace instead of scroll
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// send forwards a message to the running program, if any. Callers must
// hold r.mu.
func (r *TUIRenderer) send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

// UpdateProgress folds the event into the tracker and pokes the program.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.tracker.Stats().Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentFile)
	r.send(progressUpdateMsg(event))
}

// AddError records the event and refreshes the status bar.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	r.send(errorMsg(event))
}

// Complete switches the display to the summary screen.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete, 0)
	r.send(completeMsg(stats))
}

// Stop quits the program and waits briefly for it to exit.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// Bounded wait so an unresponsive TUI cannot hang Ctrl+C
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// bubbletea messages carrying renderer events into the model
type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// crawlModel is the bubbletea model for crawl progress.
type crawlModel struct {
	tracker     *ProgressTracker
	width       int
	height      int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	rootLabel   string // Crawl root(s) for header display
}

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))),
	)
}

func newCrawlModel(tracker *ProgressTracker, rootLabel string) *crawlModel {
	// Flat lime fill, no gradient, percentage drawn separately
	bar := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &crawlModel{
		tracker:     tracker,
		spinner:     newSpinner(),
		progressBar: bar,
		styles:      DefaultStyles(),
		width:       80,
		height:      24,
		rootLabel:   rootLabel,
	}
}

// Init starts the spinner and the redraw tick.
func (m *crawlModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update reacts to key presses, resizes, and renderer events.
func (m *crawlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = max(msg.Width-20, 20)

	case progressUpdateMsg, errorMsg:
		// Data lives in the tracker; the message only forces a redraw
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders either the live crawl screen or the final summary.
func (m *crawlModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := m.contentWidth()
	divider := m.styles.Border.Render(strings.Repeat("─", width))

	sections := []string{
		m.renderStages(),
		divider,
		m.renderProgress(),
		m.renderSpeedMetrics(),
		divider,
		m.renderSparkline(width),
	}
	if file := m.tracker.Stats().CurrentFile; file != "" {
		sections = append(sections, divider,
			m.styles.Dim.Render(truncateFilePath(file, width-2)))
	}

	panel := m.wrapInPanel(m.title(), strings.Join(sections, "\n"), width)
	return panel + "\n" + m.renderStatusBar()
}

// contentWidth is the terminal width minus the panel frame, floored at a
// readable minimum.
func (m *crawlModel) contentWidth() int {
	return max(m.width-4, 40)
}

func (m *crawlModel) title() string {
	if m.rootLabel == "" {
		return "DocsMCP Crawler"
	}
	return "DocsMCP Crawler • " + m.rootLabel
}

// pipelineSteps are the crawl phases shown in the header, in order.
var pipelineSteps = []struct {
	stage Stage
	label string
}{
	{StageScanning, "Scan"},
	{StageExtracting, "Extract"},
	{StageCommitting, "Commit"},
}

// renderStages draws the pipeline step indicators.
func (m *crawlModel) renderStages() string {
	current := m.tracker.Stats().Stage

	parts := make([]string, 0, len(pipelineSteps))
	for _, s := range pipelineSteps {
		parts = append(parts, m.stageIndicator(s.stage, current, s.label))
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// stageIndicator renders one pipeline step: a filled dot once passed, the
// spinner while active, a hollow dot while pending.
func (m *crawlModel) stageIndicator(stage, current Stage, name string) string {
	switch {
	case stage < current:
		return m.styles.Success.Render("● " + name)
	case stage == current:
		return m.styles.Active.Render(m.spinner.View() + " " + name)
	}
	return m.styles.Dim.Render("○ " + name)
}

// renderProgress draws the bar with percentage and file counts.
func (m *crawlModel) renderProgress() string {
	stats := m.tracker.Stats()

	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...\n%s",
			m.spinner.View(), stats.Stage, m.styles.Dim.Render("Preparing..."))
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	counts := m.styles.Label.Render(fmt.Sprintf("%d / %d files", stats.Current, stats.Total))
	return bar + "  " + pct + "\n" + counts
}

// renderSpeedMetrics draws throughput (current/avg/peak) and ETA.
func (m *crawlModel) renderSpeedMetrics() string {
	stats := m.tracker.Stats()

	speed := fmt.Sprintf("Speed: %.0f/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	line := m.styles.Speed.Render(speed)

	if stats.ETA > 0 {
		line += m.styles.Dim.Render("  •  ") +
			m.styles.Label.Render("ETA: "+formatDuration(stats.ETA))
	}
	return line
}

func (m *crawlModel) renderSparkline(width int) string {
	spark := m.tracker.RenderSparkline(max(width-10, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("throughput ─")
}

// roundedPanel is the shared box style for the live and summary views.
func roundedPanel(borderColor string, padV, padH, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(borderColor)).
		Padding(padV, padH).
		Width(width)
}

// wrapInPanel boxes content under a header line.
func (m *crawlModel) wrapInPanel(title, content string, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		roundedPanel(ColorDarkGray, 0, 1, width).Render(content),
	)
}

// badge renders a styled "symbol count noun" fragment.
func badge(style lipgloss.Style, symbol string, count int, noun string) string {
	return style.Render(fmt.Sprintf("%s %d %s", symbol, count, noun))
}

// renderStatusBar draws the bottom bar with warning and error counts.
func (m *crawlModel) renderStatusBar() string {
	stats := m.tracker.Stats()

	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, badge(m.styles.Warning, "⚠", stats.WarnCount, "warnings"))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, badge(m.styles.Error, "✗", stats.ErrorCount, "errors"))
	}
	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}

	sep := m.styles.Dim.Render("  │  ")
	return strings.Join(parts, sep) + m.styles.Dim.Render("  │  q to quit")
}

// formatDuration renders a duration the way a person would say it.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch mins := int(d.Minutes()); {
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), mins%60)
	case d >= time.Minute:
		if secs := int(d.Seconds()) % 60; secs > 0 {
			return fmt.Sprintf("%dm %ds", mins, secs)
		}
		return fmt.Sprintf("%dm", mins)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// renderComplete draws the final summary box.
func (m *crawlModel) renderComplete() string {
	rows := []struct {
		label string
		value string
	}{
		{"Files", fmt.Sprintf("%d", m.stats.Files)},
		{"Documents", fmt.Sprintf("%d", m.stats.Documents)},
		{"Duration", formatDuration(m.stats.Duration)},
	}
	if avg := m.tracker.SpeedStats().Avg; avg > 0 {
		rows = append(rows, struct{ label, value string }{
			"Avg speed", fmt.Sprintf("%.0f files/sec", avg),
		})
	}

	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, len(r.label))
	}

	lines := []string{
		m.styles.Success.Render("✓ Crawl Complete"),
		"",
	}
	for _, r := range rows {
		padded := fmt.Sprintf("%-*s", labelWidth+1, r.label+":")
		lines = append(lines,
			m.styles.Label.Render(padded)+" "+m.styles.Active.Render(r.value))
	}

	if m.stats.Errors > 0 || m.stats.Warnings > 0 {
		lines = append(lines, "")
		if m.stats.Errors > 0 {
			lines = append(lines, badge(m.styles.Error, "✗", m.stats.Errors, "errors"))
		}
		if m.stats.Warnings > 0 {
			lines = append(lines, badge(m.styles.Warning, "⚠", m.stats.Warnings, "warnings"))
		}
	}

	panel := roundedPanel(ColorLime, 1, 2, m.contentWidth())
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// truncateFilePath shortens a path for single-line display, preferring
// to keep the filename visible.
func truncateFilePath(path string, maxLen int) string {
	if path == "" || len(path) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}

	base := filepath.Base(path)
	if len(base)+4 > maxLen {
		// Even the filename alone does not fit.
		return "..." + base[len(base)-(maxLen-3):]
	}

	keep := maxLen - len(base) - 4 // room for ".../" ahead of the name
	dir := filepath.Dir(path)
	if keep > 0 && len(dir) > keep {
		return "..." + dir[len(dir)-keep:] + "/" + base
	}
	return ".../" + base
}

var _ Renderer = (*TUIRenderer)(nil)
