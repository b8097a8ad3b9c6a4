package motor

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/kinesim/internal/environment"
	"github.com/san-kum/kinesim/internal/kinetics"
	"github.com/san-kum/kinesim/internal/spatial"
	"github.com/san-kum/kinesim/internal/stochastic"
)

const (
	DefaultSnapDistance              = 5.5 // nm in front of the bound head
	DefaultExpectedCollisionsPerBind = 10.0

	stepOffDistance = 1.0
)

var (
	ErrNoTransition = errors.New("motor: no enabled transition")
	ErrUnknownLabel = errors.New("motor: unknown rate label")
)

// SiteFinder resolves a colliding entity to a track site.
type SiteFinder interface {
	Site(id spatial.EntityID) (*spatial.Site, bool)
}

type Config struct {
	Rates                     kinetics.RateTable
	SnapDistance              float64
	ExpectedCollisionsPerBind float64
}

// Parts are the agents a Kinesin is assembled from. The motors must already
// be leashed the way they should hang from the hips.
type Parts struct {
	Hips   *spatial.Agent
	Motors [2]*spatial.Agent
	Sites  SiteFinder
}

// Kinesin couples two motor heads through the hips.
type Kinesin struct {
	env    *environment.Environment
	hips   *spatial.Agent
	motors [2]*Motor
	sites  SiteFinder
	rates  kinetics.RateTable

	snapDistance      float64
	collisionsPerBind float64

	// pivot is the head the hips snapped in front of. The hips only jitter
	// until it lets go of the track.
	pivot *Motor

	observers []Observer
	buf       []Transition
}

func NewKinesin(env *environment.Environment, parts Parts, cfg Config) (*Kinesin, error) {
	if err := cfg.Rates.Validate(RateLabels); err != nil {
		return nil, err
	}
	if parts.Hips == nil || parts.Motors[0] == nil || parts.Motors[1] == nil {
		return nil, errors.New("motor: kinesin needs hips and two motors")
	}
	if cfg.SnapDistance <= 0 {
		cfg.SnapDistance = DefaultSnapDistance
	}
	if cfg.ExpectedCollisionsPerBind <= 0 {
		cfg.ExpectedCollisionsPerBind = DefaultExpectedCollisionsPerBind
	}

	k := &Kinesin{
		env:               env,
		hips:              parts.Hips,
		sites:             parts.Sites,
		rates:             cfg.Rates.Clone(),
		snapDistance:      cfg.SnapDistance,
		collisionsPerBind: cfg.ExpectedCollisionsPerBind,
	}
	for i, a := range parts.Motors {
		k.motors[i] = newMotor(i, a, k.rates)
	}
	k.hangFromHips()
	return k, nil
}

func (k *Kinesin) AddObserver(o Observer) {
	if o != nil {
		k.observers = append(k.observers, o)
	}
}

func (k *Kinesin) Hips() *spatial.Agent      { return k.hips }
func (k *Kinesin) Motor(i int) *Motor        { return k.motors[i] }
func (k *Kinesin) Motors() [2]*Motor         { return k.motors }
func (k *Kinesin) Rates() kinetics.RateTable { return k.rates.Clone() }

func (k *Kinesin) partner(m *Motor) *Motor { return k.motors[1-m.Index] }

func (k *Kinesin) hangFromHips() {
	k.hips.Anchor = nil
	k.hips.SecondAnchor = nil
	for _, m := range k.motors {
		m.Agent.Anchor = k.hips
		m.Agent.SecondAnchor = nil
	}
}

// Step runs one live simulation step for both heads and the hips. The clock
// must already cover the step.
func (k *Kinesin) Step() {
	for _, m := range k.motors {
		k.stepMotor(m)
	}
	k.moveHips()
	k.UpdateObservedRates()
}

func (k *Kinesin) UpdateObservedRates() {
	seconds := k.env.Clock.SecondsSinceStart()
	for _, m := range k.motors {
		m.updateObservedRates(seconds)
	}
}

func (k *Kinesin) stepMotor(m *Motor) {
	if !m.Bound() {
		k.env.Walker.Rotate(m.Agent)
		k.env.Walker.Move(m.Agent)
		if k.tryBind(m) {
			return
		}
	} else if m.Site != nil {
		m.Agent.Position = m.Site.BindingPoint()
	}

	if m.ForceStrong {
		k.switchToStrong(m)
		return
	}
	k.sample(m)
}

// sample tries the sampled transitions of the current state in random order;
// the first that fires wins.
func (k *Kinesin) sample(m *Motor) {
	partner := k.partner(m).State
	k.buf = k.buf[:0]
	for _, t := range Outgoing(m.State) {
		if !t.Kind.Binding() {
			k.buf = append(k.buf, t)
		}
	}
	r := k.env.Rand
	r.Shuffle(len(k.buf), func(i, j int) { k.buf[i], k.buf[j] = k.buf[j], k.buf[i] })

	now := k.env.Clock.NanosecondsSinceStart()
	for _, t := range k.buf {
		if !t.Enabled(partner) {
			continue
		}
		if m.samplers[t.Kind].ShouldFire(r, now) {
			k.apply(m, t)
			return
		}
	}
}

// switchToStrong walks a flagged head toward a strong state, one transition
// per step, without sampling.
func (k *Kinesin) switchToStrong(m *Motor) {
	switch m.State {
	case BoundADPPi:
		k.applyRecorded(m, TransitionFor(ReleasePhosphateBound))
	case BoundADP:
		t := TransitionFor(ReleaseADP)
		if t.Enabled(k.partner(m).State) {
			k.applyRecorded(m, t)
		}
		m.ForceStrong = false
	case BoundNoNucleotide, BoundATP:
		m.ForceStrong = false
	}
}

func (k *Kinesin) applyRecorded(m *Motor, t Transition) {
	m.samplers[t.Kind].Record()
	k.apply(m, t)
}

func (k *Kinesin) apply(m *Motor, t Transition) {
	partner := k.partner(m)
	switch t.Kind {
	case BindATP, ReleaseATP, ReleasePhosphateBound, ReleasePhosphateFree, ReleaseADP:
	case Hydrolyze:
		partner.ForceStrong = !partner.Strong()
	case ReleaseTrackADPPi, ReleaseTrackADP:
		k.release(m)
	case BindTrackADPPi, BindTrackADP:
		// geometry already attached by bind
	}
	k.setState(m, t.End)

	if t.Kind == BindATP && !partner.Bound() {
		k.snap(m)
	}
}

func (k *Kinesin) setState(m *Motor, s State) {
	old := m.State
	m.State = s
	m.Nucleotides = NucleotidesFor(s)
	if s.Strong() {
		m.ForceStrong = false
	}
	for _, o := range k.observers {
		o.OnStateChanged(m.Index, old, s)
	}
}

func bindingTransition(s State) (Transition, bool) {
	switch s {
	case FreeADPPi:
		return TransitionFor(BindTrackADPPi), true
	case FreeADP:
		return TransitionFor(BindTrackADP), true
	}
	return Transition{}, false
}

// tryBind binds an unbound head to the nearest free site it touches, gated
// by the binding rate unless the head is forced strong.
func (k *Kinesin) tryBind(m *Motor) bool {
	t, ok := bindingTransition(m.State)
	if !ok || k.sites == nil || k.env.Geometry == nil {
		return false
	}
	eligible := k.eligibleSites(m)
	if len(eligible) == 0 {
		return false
	}
	if !m.ForceStrong {
		p := m.samplers[t.Kind].TheoreticalRate * k.env.Clock.StepSeconds() * k.collisionsPerBind
		if !stochastic.Bernoulli(k.env.Rand, p) {
			return false
		}
	}
	site := k.closestSite(m, eligible)
	if site == nil {
		return false
	}
	k.bind(m, site)
	k.applyRecorded(m, t)
	return true
}

func (k *Kinesin) eligibleSites(m *Motor) []*spatial.Site {
	var out []*spatial.Site
	for _, id := range k.env.Geometry.CollidingNeighbors(m.Agent.ID) {
		if s, ok := k.sites.Site(id); ok && s.Bindable() {
			out = append(out, s)
		}
	}
	return out
}

func (k *Kinesin) closestSite(m *Motor, sites []*spatial.Site) *spatial.Site {
	var best *spatial.Site
	bestD := math.Inf(1)
	for _, s := range sites {
		p := s.BindingPoint()
		if p.Distance(k.hips.Position) > m.Agent.Leash.Max {
			continue
		}
		if d := p.Distance(m.Agent.Position); d < bestD {
			best, bestD = s, d
		}
	}
	return best
}

func (k *Kinesin) bind(m *Motor, site *spatial.Site) {
	site.Occupied = true
	m.Site = site
	m.Agent.Position = site.BindingPoint()
	m.Agent.Orientation = site.Agent.Orientation
	m.Agent.Anchor = nil

	if k.partner(m).Bound() {
		k.hips.SecondAnchor = m.Agent
	} else {
		k.hips.Anchor = m.Agent
		k.hips.SecondAnchor = nil
	}
}

func (k *Kinesin) release(m *Motor) {
	site := m.Site
	if site != nil {
		site.Occupied = false
		m.Site = nil
	}

	if p := k.partner(m); p.Bound() {
		k.hips.Anchor = p.Agent
	} else {
		k.hips.Anchor = nil
	}
	k.hips.SecondAnchor = nil
	m.Agent.Anchor = k.hips
	if k.pivot == m {
		k.pivot = nil
	}

	if site != nil {
		away := m.Agent.Position.Sub(site.Agent.Position).Normalize().Scale(stepOffDistance)
		k.env.Walker.MoveIfValid(m.Agent, away)
	}
}

// snap throws the hips forward along the track in front of the head that
// just bound ATP, dragging the free head with it.
func (k *Kinesin) snap(m *Motor) {
	d := math.Min(k.snapDistance, k.hips.Leash.Max)
	target := m.Agent.Position.Add(spatial.Vec3{X: d})
	k.translateHips(target.Sub(k.hips.Position))
	k.pivot = m

	for _, o := range k.observers {
		if so, ok := o.(SnapObserver); ok {
			so.OnSnap(m.Index, k.hips.Position)
		}
	}
}

// moveHips random walks the hips while at least one head holds the track.
// After a snap the hips are locked and only jitter.
func (k *Kinesin) moveHips() {
	if k.hips.Anchor == nil && k.hips.SecondAnchor == nil {
		return
	}
	before := k.hips.Position
	if k.Locked() {
		k.env.Walker.Jitter(k.hips, 0)
	} else {
		k.env.Walker.Move(k.hips)
	}
	delta := k.hips.Position.Sub(before)
	k.hips.Position = before
	k.translateHips(delta)
}

// Locked reports whether the hips are held in front of a snapped head.
func (k *Kinesin) Locked() bool { return k.pivot != nil }

func (k *Kinesin) translateHips(delta spatial.Vec3) {
	k.hips.Position = k.hips.Position.Add(delta)
	for _, m := range k.motors {
		if m.Site == nil {
			m.Agent.Position = m.Agent.Position.Add(delta)
		}
	}
}

// NextTransition draws the next event for a head in state current with the
// partner in state partner: competing exponentials over the enabled edges,
// binding included. It returns the new state and the waiting time in
// seconds.
func (k *Kinesin) NextTransition(current, partner State) (State, float64, error) {
	total := 0.0
	for _, t := range Outgoing(current) {
		if t.Enabled(partner) {
			total += k.rates[t.Label]
		}
	}
	if total <= 0 {
		return current, 0, fmt.Errorf("%w from %s", ErrNoTransition, current)
	}

	r := k.env.Rand
	wait := stochastic.Exponential(r, 1/total)
	u := r.Float64() * total
	var last Transition
	for _, t := range Outgoing(current) {
		if !t.Enabled(partner) {
			continue
		}
		last = t
		u -= k.rates[t.Label]
		if u < 0 {
			return t.End, wait, nil
		}
	}
	return last.End, wait, nil
}

// GoToState applies a precomputed transition without touching geometry.
func (k *Kinesin) GoToState(agent int, s State) {
	m := k.motors[agent]
	if t, ok := Lookup(m.State, s); ok {
		m.samplers[t.Kind].Record()
	}
	k.setState(m, s)
}

// SetRate changes one rate constant at runtime. Statistics of the affected
// transitions restart.
func (k *Kinesin) SetRate(label string, rate float64) error {
	if _, ok := k.rates[label]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownLabel, label)
	}
	if err := (kinetics.RateTable{label: rate}).Validate([]string{label}); err != nil {
		return err
	}
	k.rates[label] = rate
	for _, m := range k.motors {
		for _, s := range m.samplers {
			if s.Label == label {
				s.SetRate(rate)
			}
		}
	}
	return nil
}

// ClearForceStrong drops the forced-strong flag on both heads.
func (k *Kinesin) ClearForceStrong() {
	for _, m := range k.motors {
		m.ForceStrong = false
	}
}

// Reset puts both heads back in the initial state at their initial poses.
func (k *Kinesin) Reset() {
	for _, m := range k.motors {
		m.reset()
		m.Agent.ResetPose()
	}
	k.hips.ResetPose()
	k.hangFromHips()
	k.pivot = nil
}

// Displacement is how far the hips have moved from their starting point.
func (k *Kinesin) Displacement() float64 {
	return k.hips.Position.Distance(k.hips.StartPosition())
}

// WalkingSpeed is the hips displacement over simulated time in µm/s.
func (k *Kinesin) WalkingSpeed() float64 {
	seconds := k.env.Clock.SecondsSinceStart()
	if seconds <= 0 {
		return 0
	}
	return 1e-3 * k.Displacement() / seconds
}

// BoundCount returns how many heads currently hold the track.
func (k *Kinesin) BoundCount() int {
	n := 0
	for _, m := range k.motors {
		if m.Bound() {
			n++
		}
	}
	return n
}
