package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/sim"
)

func TestCanvasSetAndBounds(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(3, 5)
	if !c.IsSet(3, 5) {
		t.Error("pixel not set")
	}
	if c.Grid[1][1] != blank|0x10 {
		t.Errorf("unexpected rune %U", c.Grid[1][1])
	}
	c.Set(-1, 0)
	c.Set(100, 100)
	c.Clear()
	if c.IsSet(3, 5) {
		t.Error("clear left a pixel")
	}
}

func TestDrawLineEndpoints(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(1, 1, 15, 12)
	if !c.IsSet(1, 1) || !c.IsSet(15, 12) {
		t.Error("line endpoints missing")
	}
}

func TestDrawCircle(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawCircle(10, 10, 4)
	for _, p := range [][2]int{{14, 10}, {6, 10}, {10, 14}, {10, 6}} {
		if !c.IsSet(p[0], p[1]) {
			t.Errorf("missing %v", p)
		}
	}
	if c.IsSet(10, 10) {
		t.Error("circle should not fill its centre")
	}
}

func TestThemeCycle(t *testing.T) {
	defer SetTheme(ThemeCyberpunk.Name)
	SetTheme("retro")
	nextTheme()
	if CurrentTheme.Name != "ocean" {
		t.Errorf("expected ocean, got %s", CurrentTheme.Name)
	}
	if GetTheme("unknown").Name != ThemeCyberpunk.Name {
		t.Error("unknown theme should fall back to the default")
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeCached
	cfg.Track.Sites = 16
	s, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(s)
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestTicksDriveFrames(t *testing.T) {
	m := newTestModel(t)
	start := time.Now()
	for i := 0; i < 5; i++ {
		m = update(m, TickMsg(start.Add(time.Duration(i)*16*time.Millisecond)))
	}
	steps := m.sim.Clock().Steps()
	if steps != int64(5*m.sim.Clock().StepsPerFrame()) {
		t.Errorf("expected 5 frames of steps, got %d", steps)
	}
	if len(m.hipsX) != 5 {
		t.Errorf("expected 5 hips samples, got %d", len(m.hipsX))
	}

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = update(m, TickMsg(start.Add(time.Second)))
	if m.sim.Clock().Steps() != steps {
		t.Error("paused model kept stepping")
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view should show the paused state")
	}
}

func TestRateKeys(t *testing.T) {
	m := newTestModel(t)
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.labels[m.selected] != "B" {
		t.Fatalf("tab selected %s", m.labels[m.selected])
	}
	before := m.sim.Config().Rates["B"]
	m = update(m, tea.KeyMsg{Type: tea.KeyUp})
	if got := m.sim.Config().Rates["B"]; got <= before {
		t.Errorf("rate B = %v, want above %v", got, before)
	}
}

func TestResetKeyClearsHistory(t *testing.T) {
	m := newTestModel(t)
	m = update(m, TickMsg(time.Now()))
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if m.sim.Clock().Steps() != 0 || len(m.hipsX) != 0 {
		t.Error("reset should zero the clock and the graph")
	}
}

func TestSpeedKeys(t *testing.T) {
	fixed := newTestModel(t)
	before := fixed.sim.Clock().TimeMultiplier()
	fixed = update(fixed, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	if fixed.sim.Clock().TimeMultiplier() != before {
		t.Error("fixed clock changed its time multiplier")
	}
	if !strings.Contains(fixed.status, "adaptive clock") {
		t.Errorf("status = %q, want a note about the fixed clock", fixed.status)
	}
	if strings.Contains(fixed.View(), "+-:Speed") {
		t.Error("speed keys advertised on a fixed clock")
	}

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeCached
	cfg.NanosecondsPerStep = 0
	s, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	adaptive := NewModel(s)
	before = adaptive.sim.Clock().TimeMultiplier()
	adaptive = update(adaptive, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	if got := adaptive.sim.Clock().TimeMultiplier(); got != before*1.5 {
		t.Errorf("time multiplier = %v, want %v", got, before*1.5)
	}
}
