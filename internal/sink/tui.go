package sink

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/muesli/reflow/wordwrap"

	"fleetsim/internal/sim"
	"fleetsim/internal/telemetry"
)

var _ sim.CacheWriter = (*TUIWriter)(nil)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// fleetMsg carries a full fleet snapshot.
type fleetMsg struct{ servers []telemetry.ServerMetrics }

// logMsg carries an alert line for the viewport.
type logMsg struct{ line string }

const (
	maxLogLines     = 500
	maxHistory      = 120
	sparkHeight     = 5
	bytesPerMegabit = 125000
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	healthyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func statusStyle(s telemetry.Status) lipgloss.Style {
	switch s {
	case telemetry.StatusCritical:
		return criticalStyle
	case telemetry.StatusWarning:
		return warningStyle
	}
	return healthyStyle
}

// TUIWriter renders fleet snapshots using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool

	mu       sync.Mutex
	resolved map[string]bool // alert id -> resolved state already shown
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. When the
// user quits the TUI the process receives an interrupt.
func NewTUIWriter(clusterID string) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{}), resolved: make(map[string]bool)}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(clusterID), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// CacheServerMetrics forwards the snapshot and logs alerts not shown before.
func (w *TUIWriter) CacheServerMetrics(_ context.Context, servers []telemetry.ServerMetrics) error {
	w.program.Send(fleetMsg{servers: servers})

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.resolved == nil {
		w.resolved = make(map[string]bool)
	}
	for _, s := range servers {
		for _, a := range s.Alerts {
			shown, seen := w.resolved[a.ID]
			if seen && shown == a.Resolved {
				continue
			}
			w.resolved[a.ID] = a.Resolved
			w.program.Send(logMsg{line: formatAlert(a)})
		}
	}
	return nil
}

func formatAlert(a telemetry.Alert) string {
	state := statusStyle(telemetry.Status(a.Severity)).Render(strings.ToUpper(string(a.Severity)))
	if a.Severity == telemetry.SeverityInfo {
		state = dimStyle.Render("INFO")
	}
	if a.Resolved {
		state = healthyStyle.Render("RESOLVED")
	}
	return fmt.Sprintf("%s %s server=%s cause=%s %s",
		dimStyle.Render(a.Timestamp.Format(time.RFC3339)), state, a.ServerID, a.RootCause, a.Message)
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	clusterID  string
	table      table.Model
	vp         viewport.Model
	logs       []string
	servers    []telemetry.ServerMetrics
	history    []float64
	wrap       bool
	autoscroll bool
	width      int
	height     int
}

func newTUIModel(clusterID string) tuiModel {
	cols := []table.Column{
		{Title: "Server", Width: 16},
		{Title: "Role", Width: 13},
		{Title: "CPU%", Width: 6},
		{Title: "Mem%", Width: 6},
		{Title: "Disk%", Width: 6},
		{Title: "RT ms", Width: 7},
		{Title: "Net in", Width: 10},
		{Title: "Health", Width: 6},
		{Title: "Status", Width: 8},
		{Title: "Scenarios", Width: 24},
	}
	return tuiModel{
		clusterID:  clusterID,
		table:      table.New(table.WithColumns(cols), table.WithHeight(1)),
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.resize()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case fleetMsg:
		m.servers = msg.servers
		m.table.SetRows(serverRows(msg.servers))
		m.history = append(m.history, averageHealth(msg.servers))
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		m.resize()
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	}
	return m, nil
}

func (m *tuiModel) resize() {
	m.table.SetHeight(len(m.servers) + 1)
	used := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.table.View()) + 2
	h := m.height - used
	if h < 3 {
		h = 3
	}
	m.vp.Height = h
}

func (m *tuiModel) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) renderHeader() string {
	var healthy, warning, critical, scenarios int
	active := map[string]bool{}
	for _, s := range m.servers {
		switch s.PredictedStatus {
		case telemetry.StatusCritical:
			critical++
		case telemetry.StatusWarning:
			warning++
		default:
			healthy++
		}
		for _, id := range s.ActiveScenarios {
			if !active[id] {
				active[id] = true
				scenarios++
			}
		}
	}
	title := titleStyle.Render("fleetsim · " + m.clusterID)
	counts := fmt.Sprintf("%s  %s  %s  scenarios=%d",
		healthyStyle.Render(fmt.Sprintf("healthy=%d", healthy)),
		warningStyle.Render(fmt.Sprintf("warning=%d", warning)),
		criticalStyle.Render(fmt.Sprintf("critical=%d", critical)),
		scenarios)
	header := lipgloss.JoinVertical(lipgloss.Left, title, counts)
	if len(m.history) >= 2 && m.width > 20 {
		graph := asciigraph.Plot(m.history,
			asciigraph.Height(sparkHeight),
			asciigraph.Width(m.width-12),
			asciigraph.Precision(0),
			asciigraph.Caption("average health"),
		)
		header = lipgloss.JoinVertical(lipgloss.Left, header, graph)
	}
	return header
}

func (m tuiModel) View() string {
	help := dimStyle.Render("q quit · w wrap · s autoscroll")
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.table.View(), m.vp.View(), help)
}

func serverRows(servers []telemetry.ServerMetrics) []table.Row {
	rows := make([]table.Row, 0, len(servers))
	for _, s := range servers {
		scen := strings.Join(s.ActiveScenarios, ",")
		if s.RecoveryProgress > 0 {
			scen = fmt.Sprintf("%s (%d%%)", scen, s.RecoveryProgress)
		}
		rows = append(rows, table.Row{
			s.ID,
			string(s.Role),
			fmt.Sprintf("%.1f", s.CPUUsage),
			fmt.Sprintf("%.1f", s.MemoryUsage),
			fmt.Sprintf("%.1f", s.DiskUsage),
			fmt.Sprintf("%.0f", s.ResponseTime),
			humanize.Bytes(uint64(s.NetworkIn*bytesPerMegabit)) + "/s",
			fmt.Sprintf("%d", s.HealthScore),
			string(s.PredictedStatus),
			scen,
		})
	}
	return rows
}

func averageHealth(servers []telemetry.ServerMetrics) float64 {
	if len(servers) == 0 {
		return 0
	}
	total := 0
	for _, s := range servers {
		total += s.HealthScore
	}
	return float64(total) / float64(len(servers))
}
