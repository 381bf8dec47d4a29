package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/fgmsim/internal/blend"
	"github.com/san-kum/fgmsim/internal/config"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/sim"
)

const (
	historyCap   = 2000
	maxFrameStep = 64
)

type tickMsg time.Time

// LiveModel steps a controller between frames and draws its telemetry.
type LiveModel struct {
	ctl       *sim.Controller
	scenario  *config.Scenario
	theme     Theme
	canvas    *Canvas
	u, v      int
	sliceAxis int
	fps       int
	perFrame  int
	paused    bool
	showSlice bool
	energy    []float64
	deviation []float64
	last      dynamo.Telemetry
	conv      sim.Convergence
	result    *sim.Result
	err       error
	width     int
	height    int
}

// NewLiveModel initializes a controller for the scenario. The model owns
// the controller until the program exits.
func NewLiveModel(s *config.Scenario, theme string, fps int) (*LiveModel, error) {
	ctl := sim.New()
	if err := ctl.Initialize(s.Seeds, s.Domain, s.Materials, s.Params); err != nil {
		return nil, err
	}
	if fps <= 0 {
		fps = 30
	}
	u, v := ViewPlane(s.Params.Axis)
	return &LiveModel{
		ctl:       ctl,
		scenario:  s,
		theme:     GetTheme(theme),
		canvas:    NewCanvas(48, 20, len(s.Materials)),
		u:         u,
		v:         v,
		sliceAxis: 3 - u - v,
		fps:       fps,
		perFrame:  4,
		last:      dynamo.Telemetry{State: ctl.State(), ConvergenceMetric: math.Inf(1)},
	}, nil
}

func (m *LiveModel) Init() tea.Cmd { return m.tick() }

func (m *LiveModel) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Result is the finalized field, or nil while the run is going.
func (m *LiveModel) Result() *sim.Result { return m.result }

func (m *LiveModel) Err() error { return m.err }

func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "+", "=":
			m.perFrame = min(m.perFrame*2, maxFrameStep)
		case "-":
			m.perFrame = max(m.perFrame/2, 1)
		case "t":
			m.theme = nextTheme(m.theme)
		case "s":
			m.showSlice = !m.showSlice
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		if !m.paused && !m.done() {
			m.advance(m.perFrame)
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *LiveModel) done() bool {
	s := m.ctl.State()
	return s == dynamo.Finalized || s == dynamo.Failed
}

// advance runs up to n steps, finalizing as soon as the run converges.
func (m *LiveModel) advance(n int) {
	for range n {
		t, err := m.ctl.Step()
		if err != nil {
			m.err = err
			m.last.State = m.ctl.State()
			return
		}
		m.record(t)

		conv, err := m.ctl.CheckConvergence()
		if err != nil {
			m.err = err
			return
		}
		m.conv = conv
		if m.ctl.State() == dynamo.Converged {
			m.finalize()
			return
		}
	}
}

func (m *LiveModel) record(t dynamo.Telemetry) {
	m.last = t
	m.energy = append(m.energy, t.KineticEnergy)
	m.deviation = append(m.deviation, t.MaxDensityDeviation)
	if len(m.energy) > historyCap {
		m.energy = m.energy[len(m.energy)-historyCap:]
		m.deviation = m.deviation[len(m.deviation)-historyCap:]
	}
}

func (m *LiveModel) finalize() {
	res, err := m.ctl.Finalize(m.scenario.Resolution)
	if err != nil {
		m.err = err
		return
	}
	m.result = res
	m.last.State = m.ctl.State()
	m.showSlice = true
}

func (m *LiveModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary).
		Render("FGMSIM  " + m.scenario.Name)

	var left string
	if m.showSlice && m.result != nil {
		left = panelStyle.Render(FieldSlice(m.result.Field, m.sliceAxis, m.theme))
	} else {
		Scatter(m.canvas, m.ctl.Particles(), m.scenario.Domain.Bounds, m.u, m.v)
		left = panelStyle.Render(m.canvas.Render(m.theme.Palette))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.stats())
	help := helpStyle.Render("space pause  +/- speed  t theme  s slice  q quit")
	return lipgloss.JoinVertical(lipgloss.Left, title, body, help)
}

func (m *LiveModel) stats() string {
	p := m.ctl.Params()
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	trend := "filling window"
	if !math.IsInf(m.last.ConvergenceMetric, 1) {
		trend = fmt.Sprintf("%.3e / %.1e", m.last.ConvergenceMetric, p.Tolerance)
	}

	rows := []string{
		row("State", m.stateLabel()),
		row("Iteration", fmt.Sprintf("%d / %d", m.ctl.Iteration(), p.MaxIterations)),
		ProgressBar(float64(m.ctl.Iteration())/float64(p.MaxIterations), 30, m.theme),
		row("Particles", fmt.Sprintf("%d", m.last.ParticleCount)),
		row("Kinetic E", fmt.Sprintf("%.4e", m.last.KineticEnergy)),
		row("Trend", trend),
		row("Density dev", fmt.Sprintf("%.2f%%", 100*m.last.MaxDensityDeviation)),
		"  " + Sparkline(m.deviation, 30),
		row("Omega", fmt.Sprintf("%.2f rad/s", p.Omega)),
		row("Steps/frame", fmt.Sprintf("%d", m.perFrame)),
	}
	if m.conv.Reason != "" {
		rows = append(rows, row("Reason", m.conv.Reason))
	}
	if m.result != nil {
		rows = append(rows, m.volumes(m.result.Field))
	}
	if m.err != nil {
		rows = append(rows, lipgloss.NewStyle().Foreground(m.theme.Error).Width(42).Render(m.err.Error()))
	}
	if plot := EnergyPlot(m.energy, 30, 4, "kinetic energy"); plot != "" {
		rows = append(rows, graphStyle.Render(plot))
	}
	return statsStyle.Render(strings.Join(rows, "\n"))
}

func (m *LiveModel) stateLabel() string {
	state := m.ctl.State()
	color := m.theme.Warning
	switch {
	case state == dynamo.Failed:
		color = m.theme.Error
	case state == dynamo.Finalized && m.result != nil && m.result.Converged:
		color = m.theme.Success
	case m.paused:
		color = m.theme.Muted
	}
	label := state.String()
	if m.paused {
		label += " (paused)"
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

func (m *LiveModel) volumes(f *blend.Field) string {
	var b strings.Builder
	for k, vol := range f.Volumes {
		style := lipgloss.NewStyle().Foreground(m.theme.Palette[k%len(m.theme.Palette)])
		fmt.Fprintf(&b, "%s %.3f\n", style.Render(fmt.Sprintf("%-12s", vol.Material)), vol.CellVolume)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RunLive starts the interactive view and returns the finalized result, if
// the run got that far before the user quit.
func RunLive(s *config.Scenario, theme string, fps int) (*sim.Result, error) {
	m, err := NewLiveModel(s, theme, fps)
	if err != nil {
		return nil, err
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return nil, err
	}
	return m.Result(), m.Err()
}
