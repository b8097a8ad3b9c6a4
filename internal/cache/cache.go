// Package cache precomputes the state changes of the two kinesin heads as a
// time ordered queue so playback only has to pop events as simulated time
// passes.
//
// Each head has one pending event. Growing the cache repeatedly resamples
// the head whose pending event was already queued, queues every event of that
// head that lands before the other head's pending event, then queues the
// other head's pending event. The result is a merge of two renewal streams in
// time order without a priority queue.
package cache

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/kinesim/internal/logging"
	"github.com/san-kum/kinesim/internal/motor"
)

const (
	DefaultInitialHorizon    = 1e8 // ns
	DefaultMinimumTime       = 1e3
	DefaultIncreaseIncrement = 1e4

	// played events are dropped from the front of the queue once this many
	// have piled up
	compactAfter = 4096
)

var ErrCacheUnderrun = errors.New("cache: event queue ran dry")

// Machine is what the cache needs from the kinesin.
type Machine interface {
	NextTransition(current, partner motor.State) (motor.State, float64, error)
	GoToState(agent int, s motor.State)
}

// Event is one precomputed state change.
type Event struct {
	Agent           int
	Start           motor.State
	Final           motor.State
	TimeNanoseconds float64
}

// Before orders events by time, then by agent.
func (e Event) Before(o Event) bool {
	if e.TimeNanoseconds != o.TimeNanoseconds {
		return e.TimeNanoseconds < o.TimeNanoseconds
	}
	return e.Agent < o.Agent
}

type Config struct {
	InitialHorizon    float64 `yaml:"initial_horizon"`
	MinimumTime       float64 `yaml:"minimum_time"`
	IncreaseIncrement float64 `yaml:"increase_increment"`
}

func DefaultConfig() Config {
	return Config{
		InitialHorizon:    DefaultInitialHorizon,
		MinimumTime:       DefaultMinimumTime,
		IncreaseIncrement: DefaultIncreaseIncrement,
	}
}

type Cache struct {
	cfg     Config
	machine Machine
	log     logging.Logger

	pending [2]Event
	queue   []Event
	head    int
	horizon float64
	played  int64
}

func New(m Machine, cfg Config, log logging.Logger) *Cache {
	return &Cache{cfg: cfg, machine: m, log: logging.OrNoop(log)}
}

// Seed clears the cache, starts both heads from the released state and grows
// the queue to the initial horizon.
func (c *Cache) Seed() error {
	c.queue = c.queue[:0]
	c.head = 0
	c.horizon = 0
	c.played = 0

	for i := range c.pending {
		c.pending[i] = Event{Agent: i, Start: motor.FreeADPPi, Final: motor.InitialState}
	}
	for i := range c.pending {
		ev, err := c.next(i)
		if err != nil {
			return err
		}
		c.pending[i] = ev
	}
	first := 0
	if c.pending[1].Before(c.pending[0]) {
		first = 1
	}
	c.push(c.pending[first])
	c.horizon = c.pending[first].TimeNanoseconds

	return c.GrowCache(c.cfg.InitialHorizon)
}

// next draws the event that follows agent's pending one. The partner's
// precondition state is the start of its pending event, which is the state
// it holds until that event fires.
func (c *Cache) next(agent int) (Event, error) {
	last := c.pending[agent]
	partner := c.pending[1-agent].Start
	s, wait, err := c.machine.NextTransition(last.Final, partner)
	if err != nil {
		return Event{}, fmt.Errorf("cache: agent %d: %w", agent, err)
	}
	return Event{
		Agent:           agent,
		Start:           last.Final,
		Final:           s,
		TimeNanoseconds: last.TimeNanoseconds + wait*1e9,
	}, nil
}

// lastIndex is the head whose pending event comes later and so is not yet
// queued.
func (c *Cache) lastIndex() int {
	if c.pending[1].Before(c.pending[0]) {
		return 0
	}
	return 1
}

// GrowCache queues events until the horizon reaches target.
func (c *Cache) GrowCache(target float64) error {
	before := c.Len()
	for c.horizon < target {
		last := c.lastIndex()
		first := 1 - last

		ev, err := c.next(first)
		if err != nil {
			return err
		}
		c.pending[first] = ev
		for c.pending[first].Before(c.pending[last]) {
			c.push(c.pending[first])
			if c.pending[first], err = c.next(first); err != nil {
				return err
			}
		}
		c.push(c.pending[last])
		c.horizon = c.pending[last].TimeNanoseconds
	}
	c.log.Debug(context.Background(), "event cache grown",
		logging.Int("added", c.Len()-before),
		logging.Float("horizon_ns", c.horizon),
	)
	return nil
}

func (c *Cache) push(e Event) {
	if c.head > 0 && (c.head == len(c.queue) || c.head > compactAfter && c.head > len(c.queue)/2) {
		n := copy(c.queue, c.queue[c.head:])
		c.queue = c.queue[:n]
		c.head = 0
	}
	c.queue = append(c.queue, e)
}

// Tick applies every queued event due at now and tops the cache up when the
// horizon gets within MinimumTime of now. A queue left empty is an underrun.
func (c *Cache) Tick(now float64) error {
	for {
		c.drain(now)
		if c.cfg.MinimumTime <= 0 || c.horizon-now >= c.cfg.MinimumTime {
			break
		}
		target := math.Max(c.horizon+c.cfg.IncreaseIncrement, now+c.cfg.MinimumTime)
		if err := c.GrowCache(target); err != nil {
			return err
		}
	}
	if c.Len() == 0 {
		c.log.Error(context.Background(), "event cache underrun",
			logging.Float("now_ns", now),
			logging.Float("horizon_ns", c.horizon),
		)
		return fmt.Errorf("%w at %.0fns (horizon %.0fns)", ErrCacheUnderrun, now, c.horizon)
	}
	return nil
}

func (c *Cache) drain(now float64) {
	for c.head < len(c.queue) && c.queue[c.head].TimeNanoseconds <= now {
		e := c.queue[c.head]
		c.head++
		c.played++
		c.machine.GoToState(e.Agent, e.Final)
	}
}

func (c *Cache) Len() int         { return len(c.queue) - c.head }
func (c *Cache) Horizon() float64 { return c.horizon }
func (c *Cache) Played() int64    { return c.played }

// Peek returns the next queued event.
func (c *Cache) Peek() (Event, bool) {
	if c.Len() == 0 {
		return Event{}, false
	}
	return c.queue[c.head], true
}

// Events returns a copy of the queued events in order.
func (c *Cache) Events() []Event {
	return append([]Event(nil), c.queue[c.head:]...)
}
