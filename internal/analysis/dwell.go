package analysis

import (
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/sim"
)

// DwellTimes returns, in seconds, every completed stay of either head in
// state. Heads start in motor.InitialState at time zero; a stay still open
// at the end of the events is left out.
func DwellTimes(events []sim.Event, state motor.State) []float64 {
	var entered [2]float64
	var inside [2]bool
	if state == motor.InitialState {
		inside = [2]bool{true, true}
	}

	var out []float64
	for _, e := range events {
		if e.Agent < 0 || e.Agent > 1 {
			continue
		}
		if e.From == state && inside[e.Agent] {
			out = append(out, (e.TimeNanoseconds-entered[e.Agent])*1e-9)
			inside[e.Agent] = false
		}
		if e.To == state {
			entered[e.Agent] = e.TimeNanoseconds
			inside[e.Agent] = true
		}
	}
	return out
}

// Occupancy returns the seconds both heads together spent in each state up
// to endNanoseconds.
func Occupancy(events []sim.Event, endNanoseconds float64) map[motor.State]float64 {
	occ := make(map[motor.State]float64)
	current := [2]motor.State{motor.InitialState, motor.InitialState}
	var since [2]float64

	for _, e := range events {
		if e.Agent < 0 || e.Agent > 1 || e.TimeNanoseconds > endNanoseconds {
			continue
		}
		occ[current[e.Agent]] += (e.TimeNanoseconds - since[e.Agent]) * 1e-9
		current[e.Agent] = e.To
		since[e.Agent] = e.TimeNanoseconds
	}
	for i := range current {
		occ[current[i]] += (endNanoseconds - since[i]) * 1e-9
	}
	return occ
}

// EmpiricalRates counts each labelled transition per second spent in its
// start state. Labels never seen are absent.
func EmpiricalRates(events []sim.Event, endNanoseconds float64) map[string]float64 {
	occ := Occupancy(events, endNanoseconds)
	counts := make(map[motor.Transition]int)
	for _, e := range events {
		if e.TimeNanoseconds > endNanoseconds {
			continue
		}
		if t, ok := motor.Lookup(e.From, e.To); ok {
			counts[t]++
		}
	}

	rates := make(map[string]float64, len(counts))
	for t, n := range counts {
		if seconds := occ[t.Start]; seconds > 0 {
			rates[t.Label] = float64(n) / seconds
		}
	}
	return rates
}

// UngatedExitRate is the total rate out of state when none of its exits
// depends on the partner head or on reaching the track, so its dwell times
// are exponential with that rate. ok is false otherwise.
func UngatedExitRate(state motor.State, rates map[string]float64) (rate float64, ok bool) {
	out := motor.Outgoing(state)
	if len(out) == 0 {
		return 0, false
	}
	for _, t := range out {
		if t.Kind.Binding() || !t.Enabled(motor.FreeADP) || !t.Enabled(motor.BoundADP) {
			return 0, false
		}
		rate += rates[t.Label]
	}
	return rate, true
}
