package viz

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/kinesim/internal/export"
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/sim"
	"github.com/san-kum/kinesim/internal/spatial"
)

const (
	width           = 64
	height          = 16
	historyCapacity = 300
	pixelsPerNm     = 3.0
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(46)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Model drives a simulation one frame per tick.
type Model struct {
	sim       *sim.Simulation
	canvas    *Canvas
	running   bool
	last      time.Time
	labels    []string
	selected  int
	hipsX     []float64
	snapshots int
	status    string
	err       error
	showHelp  bool
}

func NewModel(s *sim.Simulation) Model {
	return Model{
		sim:     s,
		canvas:  NewCanvas(width, height),
		running: true,
		labels:  motor.RateLabels,
		hipsX:   make([]float64, 0, historyCapacity),
	}
}

// Err is the error that stopped the simulation, if any.
func (m Model) Err() error { return m.err }

func (m Model) frameInterval() time.Duration {
	return time.Duration(float64(time.Second) / m.sim.Clock().TargetFrameRate())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frameInterval(), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.sim.Reset(); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.hipsX = m.hipsX[:0]
			m.status = "reset"
		case "tab":
			m.selected = (m.selected + 1) % len(m.labels)
		case "up", "k":
			m.scaleRate(1.1)
		case "down", "j":
			m.scaleRate(1 / 1.1)
		case "+", "=":
			m.scaleTime(1.5)
		case "-", "_":
			m.scaleTime(1 / 1.5)
		case "t":
			nextTheme()
		case "s":
			m.saveSnapshot()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		now := time.Time(msg)
		delta := m.frameInterval()
		if !m.last.IsZero() {
			delta = now.Sub(m.last)
		}
		m.last = now
		if m.running {
			if err := m.sim.Frame(delta); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.hipsX = append(m.hipsX, m.sim.Scene().Hips.Position.X)
			if len(m.hipsX) > historyCapacity {
				m.hipsX = m.hipsX[1:]
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) scaleRate(factor float64) {
	label := m.labels[m.selected]
	rate := m.sim.Config().Rates[label] * factor
	if err := m.sim.SetRate(label, rate); err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("%s = %.1f /s", label, rate)
}

// scaleTime changes the time multiplier. A fixed clock ignores it, so the
// key only reports that.
func (m *Model) scaleTime(factor float64) {
	c := m.sim.Clock()
	if c.Fixed() {
		m.status = fmt.Sprintf("fixed %.3g ns/step, speed keys need the adaptive clock", c.NanosecondsPerStep())
		return
	}
	m.sim.SetTimeMultiplier(c.TimeMultiplier() * factor)
	m.status = fmt.Sprintf("time x%.3g", m.sim.Clock().TimeMultiplier())
}

func (m *Model) saveSnapshot() {
	m.draw()
	m.snapshots++
	name := fmt.Sprintf("kinesim-%d.svg", m.snapshots)
	if err := os.WriteFile(name, []byte(export.BrailleToSVG(m.canvas.Grid, 4)), 0644); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "saved " + name
}

// toCanvas maps a world position to sub-pixels, keeping the hips centred
// horizontally and the track near the bottom.
func (m *Model) toCanvas(p spatial.Vec3) (int, int) {
	hips := m.sim.Scene().Hips.Position
	cw, ch := m.canvas.Width*2, m.canvas.Height*4
	x := float64(cw)/2 + (p.X-hips.X)*pixelsPerNm
	y := float64(ch-6) - p.Y*pixelsPerNm
	return int(x), int(y)
}

func (m *Model) draw() {
	m.canvas.Clear()
	scene := m.sim.Scene()

	for _, site := range scene.Track {
		x, y := m.toCanvas(site.Agent.Position)
		if site.Occupied {
			m.canvas.FillRect(x-2, y-1, 5, 3)
		} else {
			m.canvas.Set(x, y)
		}
	}

	hx, hy := m.toCanvas(scene.Hips.Position)
	motorRadiusPx := float64(spatial.DefaultMotorRadius * pixelsPerNm / 2)
	motorRadius := int(motorRadiusPx)
	for _, a := range scene.Motors {
		x, y := m.toCanvas(a.Position)
		m.canvas.DrawLine(hx, hy, x, y)
		m.canvas.DrawCircle(x, y, motorRadius)
	}
	m.canvas.FillRect(hx-1, hy-1, 3, 3)
}

func stateStyle(s motor.State) lipgloss.Style {
	c := CurrentTheme.Free
	if s.Bound() {
		c = CurrentTheme.Bound
	}
	return lipgloss.NewStyle().Foreground(c).Bold(s.Strong())
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	c := m.sim.Clock()
	k := m.sim.Kinesin()
	cfg := m.sim.Config()

	var s strings.Builder
	title := lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true)
	s.WriteString(title.Render("KINESIN "+strings.ToUpper(cfg.Mode)) + "\n")
	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render(status) + "\n\n")

	s.WriteString(row("Time", fmt.Sprintf("%.3f ms", c.NanosecondsSinceStart()*1e-6)))
	s.WriteString(row("Steps", fmt.Sprintf("%d", c.Steps())))
	s.WriteString(row("Steps/frame", fmt.Sprintf("%d", c.StepsPerFrame())))
	s.WriteString(row("ns/step", fmt.Sprintf("%.0f", c.NanosecondsPerStep())))
	s.WriteString(row("Frame rate", fmt.Sprintf("%.1f / %.0f", c.AverageFrameRate(), c.TargetFrameRate())))
	s.WriteString(row("Multiplier", fmt.Sprintf("%.1f", c.TimeMultiplier())))
	for i, mt := range k.Motors() {
		s.WriteString(row(fmt.Sprintf("Motor %d", i), stateStyle(mt.State).Render(mt.State.String())))
	}
	s.WriteString(row("Speed", fmt.Sprintf("%.3f µm/s", k.WalkingSpeed())))
	if cache := m.sim.Cache(); cache != nil {
		s.WriteString(row("Cache", fmt.Sprintf("%d events, %.2f ms", cache.Len(), cache.Horizon()*1e-6)))
	}

	label := m.labels[m.selected]
	s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render("RATE "+label) + "\n")
	s.WriteString(row("Theoretical", fmt.Sprintf("%.1f /s", cfg.Rates[label])))
	for i, mt := range k.Motors() {
		for _, st := range mt.Stats() {
			if st.Label == label {
				s.WriteString(row(fmt.Sprintf("Observed %d", i), fmt.Sprintf("%.1f /s", st.ObservedRate)))
			}
		}
	}

	if len(m.hipsX) > 1 {
		chart := asciigraph.Plot(m.hipsX, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("hips x (nm)"))
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Render(chart) + "\n")
	}
	if m.status != "" {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Warning).Render(m.status) + "\n")
	}
	keys := "SP:Pause R:Reset Q:Quit ?:Help\nTab:Rate ↑↓:Tune"
	if !m.sim.Clock().Fixed() {
		keys += " +-:Speed"
	}
	s.WriteString(helpStyle.Render(keys))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
  Space    Pause/Resume
  R        Reset
  Q        Quit
  Tab      Cycle rate label
  Up/K     Raise rate 10%
  Down/J   Lower rate 10%
  + / -    Time multiplier (adaptive clock only)
  T        Cycle themes
  S        Save canvas as SVG
  ?        Toggle this help
` + "\n" + mainView
	}
	return mainView
}

// Run starts the live view and blocks until the user quits.
func Run(s *sim.Simulation) error {
	p := tea.NewProgram(NewModel(s), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
