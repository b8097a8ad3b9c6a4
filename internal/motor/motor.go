package motor

import (
	"github.com/san-kum/kinesim/internal/kinetics"
	"github.com/san-kum/kinesim/internal/spatial"
)

// Observer is told about every state change. Notifications are fire and
// forget; observers must not call back into the simulation.
type Observer interface {
	OnStateChanged(agent int, old, new State)
}

// SnapObserver is optionally implemented by observers that animate the hips
// snapping forward after ATP binds.
type SnapObserver interface {
	OnSnap(agent int, hips spatial.Vec3)
}

type ObserverFunc func(agent int, old, new State)

func (f ObserverFunc) OnStateChanged(agent int, old, new State) { f(agent, old, new) }

// Motor is one head of the kinesin dimer.
type Motor struct {
	Index int
	Agent *spatial.Agent
	State State
	Nucleotides

	// ForceStrong is set when the partner hydrolysed and this head has to
	// reach a strongly bound state before doing anything else.
	ForceStrong bool
	Site        *spatial.Site

	samplers [numKinds]*kinetics.Sampler
}

func newMotor(index int, agent *spatial.Agent, rates kinetics.RateTable) *Motor {
	m := &Motor{Index: index, Agent: agent}
	for _, t := range transitions {
		rate, _ := rates.Rate(t.Label)
		m.samplers[t.Kind] = kinetics.NewSampler(t.Label, rate)
	}
	m.reset()
	return m
}

func (m *Motor) Bound() bool  { return m.State.Bound() }
func (m *Motor) Strong() bool { return m.State.Strong() }

// Sampler returns the running statistics of one transition kind.
func (m *Motor) Sampler(k Kind) *kinetics.Sampler { return m.samplers[k] }

// Stats snapshots every sampler in transition order.
func (m *Motor) Stats() []kinetics.Stats {
	out := make([]kinetics.Stats, 0, numKinds)
	for _, s := range m.samplers {
		out = append(out, s.Snapshot())
	}
	return out
}

func (m *Motor) updateObservedRates(seconds float64) {
	for _, s := range m.samplers {
		s.UpdateObservedRate(seconds)
	}
}

func (m *Motor) reset() {
	m.State = InitialState
	m.Nucleotides = NucleotidesFor(InitialState)
	m.ForceStrong = false
	if m.Site != nil {
		m.Site.Occupied = false
		m.Site = nil
	}
	for _, s := range m.samplers {
		s.Reset()
	}
}
