package cache

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/stochastic"
)

// fakeMachine picks uniformly among the enabled edges and waits an
// exponential time with the given rate.
type fakeMachine struct {
	r       *rand.Rand
	rate    float64
	states  [2]motor.State
	applied [2][]motor.State
	failAt  int
	calls   int
}

func newFakeMachine(seed int64, rate float64) *fakeMachine {
	return &fakeMachine{
		r:      rand.New(rand.NewSource(seed)),
		rate:   rate,
		states: [2]motor.State{motor.InitialState, motor.InitialState},
	}
}

func (f *fakeMachine) NextTransition(current, partner motor.State) (motor.State, float64, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return current, 0, motor.ErrNoTransition
	}
	var enabled []motor.Transition
	for _, t := range motor.Outgoing(current) {
		if t.Enabled(partner) {
			enabled = append(enabled, t)
		}
	}
	t := enabled[f.r.Intn(len(enabled))]
	return t.End, stochastic.Exponential(f.r, 1/f.rate), nil
}

func (f *fakeMachine) GoToState(agent int, s motor.State) {
	f.states[agent] = s
	f.applied[agent] = append(f.applied[agent], s)
}

func TestSeedFillsInitialHorizon(t *testing.T) {
	m := newFakeMachine(1, 1000)
	c := New(m, DefaultConfig(), nil)
	if err := c.Seed(); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if c.Horizon() < DefaultInitialHorizon {
		t.Errorf("Horizon() = %g, want >= %g", c.Horizon(), DefaultInitialHorizon)
	}
	if c.Len() < 100 {
		t.Errorf("Len() = %d, expected about 200 events over 100ms at 1000/s per head", c.Len())
	}
	first, ok := c.Peek()
	if !ok || first.Start != motor.InitialState {
		t.Errorf("first event = %+v, want start %s", first, motor.InitialState)
	}
}

func TestQueueIsOrderedAndChained(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		c := New(newFakeMachine(seed, 1000), DefaultConfig(), nil)
		if err := c.Seed(); err != nil {
			t.Fatal(err)
		}
		events := c.Events()

		last := [2]motor.State{motor.InitialState, motor.InitialState}
		prevTime := [2]float64{-1, -1}
		for i, e := range events {
			if i > 0 && e.Before(events[i-1]) {
				t.Fatalf("seed %d: event %d out of order", seed, i)
			}
			if e.TimeNanoseconds <= prevTime[e.Agent] {
				t.Fatalf("seed %d: agent %d repeated timestamp %g", seed, e.Agent, e.TimeNanoseconds)
			}
			if e.Start != last[e.Agent] {
				t.Fatalf("seed %d: agent %d event %d starts at %s, previous ended at %s", seed, e.Agent, i, e.Start, last[e.Agent])
			}
			if _, ok := motor.Lookup(e.Start, e.Final); !ok {
				t.Fatalf("seed %d: %s -> %s is not an edge", seed, e.Start, e.Final)
			}
			last[e.Agent] = e.Final
			prevTime[e.Agent] = e.TimeNanoseconds
		}
	}
}

func TestHorizonOnlyIncreases(t *testing.T) {
	c := New(newFakeMachine(2, 1000), DefaultConfig(), nil)
	if err := c.Seed(); err != nil {
		t.Fatal(err)
	}
	h := c.Horizon()
	for now := 0.0; now < 3e8; now += 1e5 {
		if err := c.Tick(now); err != nil {
			t.Fatalf("Tick(%g) error = %v", now, err)
		}
		if c.Horizon() < h {
			t.Fatalf("horizon went back from %g to %g", h, c.Horizon())
		}
		h = c.Horizon()
		if h-now < DefaultMinimumTime {
			t.Fatalf("horizon %g within minimum time of %g", h, now)
		}
	}
}

func TestTickAppliesDueEvents(t *testing.T) {
	m := newFakeMachine(3, 1000)
	c := New(m, DefaultConfig(), nil)
	if err := c.Seed(); err != nil {
		t.Fatal(err)
	}
	queued := c.Events()
	now := queued[10].TimeNanoseconds

	if err := c.Tick(now); err != nil {
		t.Fatal(err)
	}
	due := 0
	for _, e := range queued {
		if e.TimeNanoseconds <= now {
			due++
		}
	}
	if c.Played() != int64(due) {
		t.Errorf("Played() = %d, want %d", c.Played(), due)
	}
	for agent := 0; agent < 2; agent++ {
		want := motor.InitialState
		for _, e := range queued {
			if e.Agent == agent && e.TimeNanoseconds <= now {
				want = e.Final
			}
		}
		if m.states[agent] != want {
			t.Errorf("agent %d in %s, want %s", agent, m.states[agent], want)
		}
	}
	if next, ok := c.Peek(); !ok || next.TimeNanoseconds <= now {
		t.Errorf("Peek() = %+v, %v after Tick(%g)", next, ok, now)
	}
}

func TestUnderrunWithoutRefill(t *testing.T) {
	cfg := Config{InitialHorizon: 1e7, MinimumTime: 0, IncreaseIncrement: 1e4}
	c := New(newFakeMachine(4, 1000), cfg, nil)
	if err := c.Seed(); err != nil {
		t.Fatal(err)
	}
	err := c.Tick(c.Horizon() + 1)
	if !errors.Is(err, ErrCacheUnderrun) {
		t.Errorf("Tick past horizon error = %v, want ErrCacheUnderrun", err)
	}
}

func TestMachineErrorsPropagate(t *testing.T) {
	m := newFakeMachine(5, 1000)
	m.failAt = 50
	c := New(m, DefaultConfig(), nil)
	if err := c.Seed(); !errors.Is(err, motor.ErrNoTransition) {
		t.Errorf("Seed() error = %v, want ErrNoTransition", err)
	}
}

func TestEventBefore(t *testing.T) {
	tests := []struct {
		a, b Event
		want bool
	}{
		{Event{Agent: 1, TimeNanoseconds: 1}, Event{Agent: 0, TimeNanoseconds: 2}, true},
		{Event{Agent: 0, TimeNanoseconds: 2}, Event{Agent: 1, TimeNanoseconds: 1}, false},
		{Event{Agent: 0, TimeNanoseconds: 1}, Event{Agent: 1, TimeNanoseconds: 1}, true},
		{Event{Agent: 1, TimeNanoseconds: 1}, Event{Agent: 0, TimeNanoseconds: 1}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Before(tt.b); got != tt.want {
			t.Errorf("%+v.Before(%+v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
