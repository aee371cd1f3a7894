package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/foodguardai/foodguard/internal/client"
	"github.com/foodguardai/foodguard/internal/stream"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiBase := fs.String("api", "http://127.0.0.1:8090", "base URL for FoodGuard API")
	token := fs.String("token", os.Getenv("FOODGUARD_API_TOKEN"), "Bearer token for API auth")
	dateRange := fs.String("date-range", "", "analysis date range (default: next 30 days)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: foodguard watch [--api <url>] [--token <token>] [--date-range <range>] <region> [region...]")
	}
	if strings.TrimSpace(*token) == "" {
		return fmt.Errorf("token is required (use --token or FOODGUARD_API_TOKEN)")
	}

	cfg := watchConfig{
		APIBase:   strings.TrimRight(*apiBase, "/"),
		Token:     *token,
		Regions:   fs.Args(),
		DateRange: *dateRange,
	}

	p := tea.NewProgram(newWatchModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type watchConfig struct {
	APIBase   string
	Token     string
	Regions   []string
	DateRange string
}

type streamEventMsg struct {
	Event stream.Event
	Err   error
	EOF   bool
}

type streamStartedMsg struct{}

type watchModel struct {
	cfg          watchConfig
	streamEvents chan streamEventMsg
	state        client.State
	width        int
	height       int
	connected    bool
	err          error
}

func newWatchModel(cfg watchConfig) watchModel {
	m := watchModel{
		cfg:          cfg,
		streamEvents: make(chan streamEventMsg, 32),
	}
	m.state.Reset()
	return m
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		startAnalysisStreamCmd(m.cfg, m.streamEvents),
		waitForStreamEventCmd(m.streamEvents),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case streamStartedMsg:
		m.connected = true
		return m, nil
	case streamEventMsg:
		if msg.Err != nil {
			m.err = msg.Err
			m.state.Apply(stream.Event{Type: stream.EventError, Error: "Connection lost: " + msg.Err.Error()})
			return m, nil
		}
		if msg.EOF {
			if !m.state.Done {
				m.err = errors.New("stream ended before analysis completed")
				m.state.Apply(stream.Event{Type: stream.EventError, Error: m.err.Error()})
			}
			return m, nil
		}
		m.state.Apply(msg.Event)
		return m, waitForStreamEventCmd(m.streamEvents)
	default:
		return m, nil
	}
}

func (m watchModel) View() string {
	accent := lipgloss.Color("#22C55E")
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#052E16")).
		Background(accent).
		Padding(0, 1).
		Render("FoodGuard Watch")

	statusStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#052E16")).
		Background(accent).
		Padding(0, 1)
	switch runStatus(&m.state) {
	case "streaming":
		statusStyle = statusStyle.Background(lipgloss.Color("#6B7280")).Foreground(lipgloss.Color("#F0FDF4"))
	case "failed":
		statusStyle = statusStyle.Background(lipgloss.Color("#EF4444")).Foreground(lipgloss.Color("#F0FDF4"))
	}

	meta := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#86EFAC")).
		Render(fmt.Sprintf("regions=%s  api=%s  stream=%s",
			strings.Join(m.cfg.Regions, ","), m.cfg.APIBase, connectionLabel(m.connected, m.state.Done, m.err)))

	status := statusStyle.Render(strings.ToUpper(runStatus(&m.state)))
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#86EFAC")).
		Render("q: quit")
	if m.state.Done {
		footer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#86EFAC")).
			Render("analysis finished, q: quit")
	}
	if m.err != nil {
		footer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Render("error: " + m.err.Error() + "  q: quit")
	}

	panelWidth := bodyWidth(m.width)
	logHeight, toolsHeight, reportHeight := panelHeights(m.height)

	logLines := m.state.ProgressLog
	if len(logLines) == 0 {
		logLines = []string{"waiting for events..."}
	}
	logPanel := renderPanel("Analysis Log", logLines, panelWidth, logHeight, accent, false)
	toolsPanel := renderPanel("Tool Data", toolPanelLines(&m.state, toolsHeight-1), panelWidth, toolsHeight, accent, true)
	reportPanel := renderPanel("Report", reportPanelLines(&m.state, reportHeight-1), panelWidth, reportHeight, accent, true)

	return strings.Join([]string{title + " " + status, meta, logPanel, toolsPanel, reportPanel, footer}, "\n")
}

func runStatus(s *client.State) string {
	switch {
	case s.Err != "":
		return "failed"
	case s.Done:
		return "done"
	default:
		return "streaming"
	}
}

func connectionLabel(connected, done bool, err error) string {
	if err != nil {
		return "error"
	}
	if done {
		return "closed"
	}
	if connected {
		return "open"
	}
	return "connecting"
}

func toolPanelLines(s *client.State, maxLines int) []string {
	if len(s.ToolCache) == 0 {
		return trimPanelLines([]string{"no tool data yet"}, maxLines)
	}
	names := make([]string, 0, len(s.ToolCache))
	for name := range s.ToolCache {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %s (%dB)", name, len(s.ToolCache[name])))
	}
	return trimPanelLines(lines, maxLines)
}

func reportPanelLines(s *client.State, maxLines int) []string {
	if s.Report == nil {
		return trimPanelLines([]string{"no report yet"}, maxLines)
	}
	rep := s.Report
	lines := []string{
		fmt.Sprintf("overall risk: %s", rep.OverallRiskLevel),
		trimForLog(rep.Summary, 120),
	}
	for _, region := range rep.Regions {
		lines = append(lines, fmt.Sprintf("  %s risk=%s confidence=%g%% shortage=%gt",
			region.Name, region.RiskLevel, region.ConfidenceScore, region.ShortageAmount))
	}
	for _, action := range rep.CriticalActions {
		lines = append(lines, fmt.Sprintf("  ! [%s] %s", action.Urgency, trimForLog(action.Action, 80)))
	}
	return trimPanelLines(lines, maxLines)
}

func panelHeights(terminalHeight int) (log, tools, report int) {
	available := terminalHeight - 5
	if available < 15 {
		available = 15
	}
	tools = 6
	report = 8
	log = available - tools - report
	if log < 6 {
		log = 6
		remaining := available - log
		tools = remaining / 2
		report = remaining - tools
		if tools < 4 {
			tools = 4
		}
		if report < 4 {
			report = 4
		}
	}
	return log, tools, report
}

func renderPanel(title string, lines []string, width, height int, accent lipgloss.Color, keepHead bool) string {
	if height < 3 {
		height = 3
	}
	contentHeight := height - 1
	if contentHeight < 1 {
		contentHeight = 1
	}
	if len(lines) > contentHeight {
		if keepHead {
			lines = lines[:contentHeight]
		} else {
			lines = lines[len(lines)-contentHeight:]
		}
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	content := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title) + "\n" + strings.Join(lines, "\n")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Foreground(lipgloss.Color("#F0FDF4")).
		Background(lipgloss.Color("#03190B")).
		Width(width).
		Height(height).
		Padding(0, 1).
		Render(content)
}

func trimPanelLines(lines []string, maxLines int) []string {
	if maxLines <= 0 {
		return []string{}
	}
	if len(lines) <= maxLines {
		return lines
	}
	trimmed := append([]string{}, lines[:maxLines]...)
	trimmed[maxLines-1] = "..."
	return trimmed
}

func trimForLog(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func bodyWidth(terminalWidth int) int {
	if terminalWidth <= 0 {
		return 80
	}
	w := terminalWidth - 2
	if w < 40 {
		return 40
	}
	return w
}

func startAnalysisStreamCmd(cfg watchConfig, out chan streamEventMsg) tea.Cmd {
	return func() tea.Msg {
		go streamAnalysis(cfg, out)
		return streamStartedMsg{}
	}
}

func waitForStreamEventCmd(in <-chan streamEventMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-in
		if !ok {
			return streamEventMsg{EOF: true}
		}
		return msg
	}
}

func streamAnalysis(cfg watchConfig, out chan<- streamEventMsg) {
	defer close(out)

	body, err := json.Marshal(map[string]any{
		"regions":   cfg.Regions,
		"dateRange": cfg.DateRange,
	})
	if err != nil {
		out <- streamEventMsg{Err: fmt.Errorf("encode request: %w", err)}
		return
	}

	req, err := http.NewRequest(http.MethodPost, cfg.APIBase+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		out <- streamEventMsg{Err: fmt.Errorf("create request: %w", err)}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		out <- streamEventMsg{Err: fmt.Errorf("connect stream: %w", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		out <- streamEventMsg{Err: fmt.Errorf("analyze request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))}
		return
	}

	re := client.NewReassembler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range re.Feed(buf[:n]) {
				out <- streamEventMsg{Event: ev}
			}
		}
		if err != nil {
			if err == io.EOF {
				out <- streamEventMsg{EOF: true}
				return
			}
			out <- streamEventMsg{Err: fmt.Errorf("read stream: %w", err)}
			return
		}
	}
}
