package metrics

// BoundFraction is the mean share of heads holding the track.
type BoundFraction struct {
	name    string
	sum     float64
	samples int
}

func NewBoundFraction() *BoundFraction {
	return &BoundFraction{name: "bound_fraction"}
}

func (b *BoundFraction) Name() string { return b.name }

func (b *BoundFraction) Observe(s Sample) {
	b.sum += float64(s.Bound) / 2
	b.samples++
}

func (b *BoundFraction) Value() float64 {
	if b.samples == 0 {
		return 0
	}
	return b.sum / float64(b.samples)
}

func (b *BoundFraction) Reset() {
	b.sum = 0
	b.samples = 0
}

// DoubleBound is the share of steps with both heads on the track.
type DoubleBound struct {
	name    string
	both    int
	samples int
}

func NewDoubleBound() *DoubleBound {
	return &DoubleBound{name: "double_bound_fraction"}
}

func (d *DoubleBound) Name() string { return d.name }

func (d *DoubleBound) Observe(s Sample) {
	if s.Bound == 2 {
		d.both++
	}
	d.samples++
}

func (d *DoubleBound) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return float64(d.both) / float64(d.samples)
}

func (d *DoubleBound) Reset() {
	d.both = 0
	d.samples = 0
}
