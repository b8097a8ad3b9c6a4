package cache_test

import (
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/kinesim/internal/cache"
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/stochastic"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Event cache suite")
}

// cycleMachine always takes the first enabled edge with rate-weighted waits,
// so the two heads only differ by their random waits.
type cycleMachine struct {
	r      *rand.Rand
	rate   float64
	states [2]motor.State
	moves  int
}

func (m *cycleMachine) NextTransition(current, partner motor.State) (motor.State, float64, error) {
	for _, t := range motor.Outgoing(current) {
		if t.Enabled(partner) {
			return t.End, stochastic.Exponential(m.r, 1/m.rate), nil
		}
	}
	return current, 0, motor.ErrNoTransition
}

func (m *cycleMachine) GoToState(agent int, s motor.State) {
	m.states[agent] = s
	m.moves++
}

var _ = Describe("Cache", func() {
	var (
		machine *cycleMachine
		c       *cache.Cache
	)

	BeforeEach(func() {
		machine = &cycleMachine{r: rand.New(rand.NewSource(11)), rate: 500}
		machine.states = [2]motor.State{motor.InitialState, motor.InitialState}
		c = cache.New(machine, cache.DefaultConfig(), nil)
		Expect(c.Seed()).To(Succeed())
	})

	Describe("Seed", func() {
		It("fills the queue up to the initial horizon", func() {
			Expect(c.Horizon()).To(BeNumerically(">=", cache.DefaultInitialHorizon))
			Expect(c.Len()).To(BeNumerically(">", 0))
		})

		It("starts over when called again", func() {
			Expect(c.Tick(5e7)).To(Succeed())
			Expect(c.Seed()).To(Succeed())
			Expect(c.Played()).To(BeZero())
			first, ok := c.Peek()
			Expect(ok).To(BeTrue())
			Expect(first.Start).To(Equal(motor.InitialState))
		})
	})

	Describe("GrowCache", func() {
		It("keeps the queue in time order", func() {
			Expect(c.GrowCache(c.Horizon() + 5e8)).To(Succeed())
			events := c.Events()
			for i := 1; i < len(events); i++ {
				Expect(events[i].TimeNanoseconds).To(BeNumerically(">=", events[i-1].TimeNanoseconds))
			}
		})

		It("never lowers the horizon", func() {
			h := c.Horizon()
			Expect(c.GrowCache(h - 1e6)).To(Succeed())
			Expect(c.Horizon()).To(Equal(h))
		})

		It("ends with an event at the horizon", func() {
			Expect(c.GrowCache(c.Horizon() + 1e7)).To(Succeed())
			events := c.Events()
			Expect(events[len(events)-1].TimeNanoseconds).To(Equal(c.Horizon()))
		})
	})

	Describe("Tick", func() {
		It("plays every due event and keeps a margin ahead", func() {
			for now := 0.0; now <= 4e8; now += 1e6 {
				Expect(c.Tick(now)).To(Succeed())
				Expect(c.Horizon() - now).To(BeNumerically(">=", cache.DefaultMinimumTime))
				if next, ok := c.Peek(); ok {
					Expect(next.TimeNanoseconds).To(BeNumerically(">", now))
				}
			}
			Expect(machine.moves).To(BeNumerically("==", c.Played()))
		})

		It("reports an underrun when refill is disabled", func() {
			dry := cache.New(machine, cache.Config{InitialHorizon: 1e6}, nil)
			Expect(dry.Seed()).To(Succeed())
			Expect(dry.Tick(dry.Horizon() + 1)).To(MatchError(cache.ErrCacheUnderrun))
		})
	})
})
