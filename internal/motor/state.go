package motor

import (
	"fmt"
	"strings"
)

// State is a motor's chemical state. The bound states come first and the
// strongly bound ones first of all, so both checks are comparisons.
type State int

const (
	BoundNoNucleotide State = iota
	BoundATP
	BoundADPPi
	BoundADP
	FreeADPPi
	FreeADP

	numStates
)

// InitialState is where every motor starts and returns to on reset.
const InitialState = FreeADP

var stateNames = [...]string{
	BoundNoNucleotide: "MtK",
	BoundATP:          "MtKT",
	BoundADPPi:        "MtKDP",
	BoundADP:          "MtKD",
	FreeADPPi:         "KDP",
	FreeADP:           "KD",
}

func (s State) Valid() bool  { return s >= 0 && s < numStates }
func (s State) Bound() bool  { return s >= BoundNoNucleotide && s <= BoundADP }
func (s State) Strong() bool { return s == BoundNoNucleotide || s == BoundATP }

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState accepts the short names used in event files.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("motor: unknown state %q", name)
}

// States lists every state in order.
func States() []State {
	out := make([]State, numStates)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// Nucleotides records what the motor head is carrying.
type Nucleotides struct {
	ATP bool
	ADP bool
	Pi  bool
}

// NucleotidesFor returns the nucleotide flags implied by a state.
func NucleotidesFor(s State) Nucleotides {
	switch s {
	case BoundATP:
		return Nucleotides{ATP: true}
	case BoundADPPi, FreeADPPi:
		return Nucleotides{ADP: true, Pi: true}
	case BoundADP, FreeADP:
		return Nucleotides{ADP: true}
	default:
		return Nucleotides{}
	}
}
