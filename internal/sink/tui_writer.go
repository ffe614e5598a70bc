package sink

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"hnp-sim/internal/stats"
	"hnp-sim/internal/sweep"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// eventMsg carries a sweep event.
type eventMsg struct{ sweep.Event }

// logMsg carries a preformatted line for the log viewport.
type logMsg struct{ line string }

// adminMsg reports admin endpoint status.
type adminMsg struct{ active bool }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	detectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	clearStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// TUIWriter renders sweep progress using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting the
// TUI interrupts the process so the running sweep winds down.
func NewTUIWriter(plan sweep.Plan, session string) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(plan, session), tea.WithAltScreen())
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

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(e sweep.Event) error {
	w.program.Send(eventMsg{e})
	return nil
}

// WriteStats implements StatsWriter.
func (w *TUIWriter) WriteStats(s stats.TrialStats) error {
	line := fmt.Sprintf("%s s=%g x=%g responded=%.2f%% efficiency=%.2f%%",
		s.Trial, s.Sensitivity, s.Scale, s.Responded, s.NetworkEfficiency)
	w.program.Send(logMsg{line: line})
	return nil
}

// SetAdminStatus updates the admin endpoint indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
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
	plan          sweep.Plan
	sensitivities []int
	session       string
	spinner       spinner.Model
	progress      progress.Model
	vp            viewport.Model
	logs          []string
	detections    []string
	width         int
	height        int
	wrap          bool
	autoscroll    bool
	admin         bool
	sensitivity   int
	iteration     int
	polls         int
	topology      string
	done          int
	trials        int
	finished      bool
	errText       string
}

func newTUIModel(plan sweep.Plan, session string) tuiModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	return tuiModel{
		plan:          plan,
		sensitivities: plan.Sensitivities(),
		session:       session,
		spinner:       sp,
		progress:      progress.New(progress.WithDefaultGradient()),
		vp:            viewport.New(0, 0),
		autoscroll:    true,
		sensitivity:   plan.SensitivityStart,
	}
}

func (m tuiModel) Init() tea.Cmd { return m.spinner.Tick }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = msg.Width - 4
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
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
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		default:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.apply(msg.Event)
	case logMsg:
		m.appendLog(msg.line)
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m *tuiModel) apply(e sweep.Event) {
	if e.Session != "" {
		m.session = e.Session
	}
	ts := dimStyle.Render(e.Time.Format(time.TimeOnly))
	switch e.Kind {
	case sweep.EventPoll:
		m.polls = e.Attempt + 1
		return
	case sweep.EventTrialStarted:
		if e.Sensitivity != m.sensitivity {
			m.done++
		}
		m.sensitivity, m.iteration, m.polls, m.topology = e.Sensitivity, e.Iteration, 0, e.Topology
		m.appendLog(fmt.Sprintf("%s trial s=%d #%d %s", ts, e.Sensitivity, e.Iteration, e.Topology))
	case sweep.EventTrialFinished:
		m.trials++
		verdict := clearStyle.Render("clear")
		if e.Err != "" {
			verdict = detectedStyle.Render("error: " + e.Err)
		} else if e.Detected {
			verdict = detectedStyle.Render("hidden node")
		}
		m.appendLog(fmt.Sprintf("%s done  s=%d #%d %s", ts, e.Sensitivity, e.Iteration, verdict))
	case sweep.EventDetected:
		m.detections = append(m.detections, fmt.Sprintf("s=%d #%d %s", e.Sensitivity, e.Iteration, e.Topology))
		m.resize()
	case sweep.EventExhausted:
		m.appendLog(warnStyle.Render(fmt.Sprintf("%s s=%d not detected after %d iterations", ts, e.Sensitivity, e.Iteration)))
	case sweep.EventSweepFinished:
		m.finished = true
		m.errText = e.Err
		m.appendLog(fmt.Sprintf("%s sweep finished", ts))
	}
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	m.refreshViewport()
}

// fraction is the sweep progress: finished sensitivities plus the share of the
// iteration budget used by the current one.
func (m tuiModel) fraction() float64 {
	if m.finished {
		return 1
	}
	total := len(m.sensitivities)
	if total == 0 {
		return 0
	}
	f := (float64(m.done) + float64(m.iteration)/float64(sweep.MaxIterations)) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

func (m *tuiModel) resize() {
	h := m.height - lipgloss.Height(m.renderTop()) - lipgloss.Height(m.renderDetections()) - lipgloss.Height(m.renderBottom()) - 3
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			l = wordwrap.String(l, m.vp.Width)
		}
		lines = append(lines, l)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) renderTop() string {
	title := titleStyle.Render("Hidden Node Problem sweep") + " " + dimStyle.Render(m.session)
	status := fmt.Sprintf("%s s=%d  iteration %d/%d  polls %d  trials %d",
		m.spinner.View(), m.sensitivity, m.iteration, sweep.MaxIterations, m.polls, m.trials)
	if m.finished {
		status = clearStyle.Render("finished")
		if m.errText != "" {
			status = detectedStyle.Render("stopped: " + m.errText)
		}
	}
	topo := dimStyle.Render("topology " + m.topology)
	return strings.Join([]string{title, status, topo, m.progress.ViewAs(m.fraction())}, "\n")
}

func (m tuiModel) renderDetections() string {
	content := dimStyle.Render("none")
	if len(m.detections) > 0 {
		content = detectedStyle.Render(strings.Join(m.detections, "\n"))
	}
	return "Detections:\n" + content
}

func (m tuiModel) renderBottom() string {
	indicator := func(on bool, label string) string {
		c := lipgloss.Color("9")
		if on {
			c = lipgloss.Color("10")
		}
		return lipgloss.NewStyle().Foreground(c).Render("●") + " " + label
	}
	return strings.Join([]string{
		indicator(m.admin, "admin"),
		indicator(m.wrap, "wrap"),
		indicator(m.autoscroll, "scroll"),
		dimStyle.Render("q quit  w wrap  s scroll"),
	}, "  ")
}

func (m tuiModel) View() string {
	divider := strings.Repeat("─", m.width)
	return strings.Join([]string{
		m.renderTop(),
		divider,
		m.vp.View(),
		divider,
		m.renderDetections(),
		divider,
		m.renderBottom(),
	}, "\n")
}
