package motor

import "fmt"

// Kind names one edge of the motor cycle.
type Kind int

const (
	BindATP Kind = iota
	ReleaseATP
	Hydrolyze
	ReleasePhosphateBound
	ReleaseTrackADPPi
	ReleaseADP
	ReleaseTrackADP
	ReleasePhosphateFree
	BindTrackADPPi
	BindTrackADP

	numKinds
)

var kindNames = [...]string{
	BindATP:               "BindATP",
	ReleaseATP:            "ReleaseATP",
	Hydrolyze:             "Hydrolyze",
	ReleasePhosphateBound: "ReleasePhosphateBound",
	ReleaseTrackADPPi:     "ReleaseTrackADPPi",
	ReleaseADP:            "ReleaseADP",
	ReleaseTrackADP:       "ReleaseTrackADP",
	ReleasePhosphateFree:  "ReleasePhosphateFree",
	BindTrackADPPi:        "BindTrackADPPi",
	BindTrackADP:          "BindTrackADP",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Binding reports whether the transition is gated by a collision with the
// track rather than sampled every step.
func (k Kind) Binding() bool { return k == BindTrackADPPi || k == BindTrackADP }

// Transition is one edge of the fixed motor cycle.
type Transition struct {
	Kind  Kind
	Start State
	End   State
	Label string
}

var transitions = [...]Transition{
	{BindATP, BoundNoNucleotide, BoundATP, "A"},
	{ReleaseATP, BoundATP, BoundNoNucleotide, "B"},
	{Hydrolyze, BoundATP, BoundADPPi, "C"},
	{ReleasePhosphateBound, BoundADPPi, BoundADP, "D"},
	{ReleaseTrackADPPi, BoundADPPi, FreeADPPi, "F"},
	{ReleaseADP, BoundADP, BoundNoNucleotide, "J"},
	{ReleaseTrackADP, BoundADP, FreeADP, "I"},
	{ReleasePhosphateFree, FreeADPPi, FreeADP, "G"},
	{BindTrackADPPi, FreeADPPi, BoundADPPi, "E"},
	{BindTrackADP, FreeADP, BoundADP, "H"},
}

// RateLabels are the labels a rate table must define.
var RateLabels = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

var outgoing [numStates][]Transition

func init() {
	for _, t := range transitions {
		outgoing[t.Start] = append(outgoing[t.Start], t)
	}
}

// Transitions returns every edge of the cycle.
func Transitions() []Transition {
	return append([]Transition(nil), transitions[:]...)
}

// Outgoing returns the edges leaving s, binding edges included.
func Outgoing(s State) []Transition {
	if !s.Valid() {
		return nil
	}
	return outgoing[s]
}

// Lookup finds the edge from start to end.
func Lookup(start, end State) (Transition, bool) {
	for _, t := range Outgoing(start) {
		if t.End == end {
			return t, true
		}
	}
	return Transition{}, false
}

func TransitionFor(k Kind) Transition { return transitions[k] }

// Enabled evaluates the precondition of t against the partner's state.
func (t Transition) Enabled(partner State) bool {
	switch t.Kind {
	case ReleaseTrackADPPi, ReleaseTrackADP:
		return partner.Bound()
	case ReleaseADP:
		return !partner.Strong()
	default:
		return true
	}
}
