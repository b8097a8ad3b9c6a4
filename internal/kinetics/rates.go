package kinetics

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrMissingRate = errors.New("kinetics: missing rate")
	ErrInvalidRate = errors.New("kinetics: invalid rate")
)

// RateTable maps a transition label to its rate in events per simulated
// second.
type RateTable map[string]float64

func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Rate returns the rate for label and whether it is usable.
func (t RateTable) Rate(label string) (float64, bool) {
	v, ok := t[label]
	return v, ok && validRate(v)
}

// Validate checks that every required label is present with a positive,
// finite rate. The first offending label, in sorted order, is reported.
func (t RateTable) Validate(required []string) error {
	labels := append([]string(nil), required...)
	sort.Strings(labels)
	for _, label := range labels {
		v, ok := t[label]
		if !ok {
			return fmt.Errorf("%w %q", ErrMissingRate, label)
		}
		if !validRate(v) {
			return fmt.Errorf("%w %q: %v", ErrInvalidRate, label, v)
		}
	}
	return nil
}

// Labels returns the table's labels in sorted order.
func (t RateTable) Labels() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func validRate(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
