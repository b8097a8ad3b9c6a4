package spatial

// EntityID identifies anything the geometry collaborator tracks.
type EntityID int

// Geometry is the collaborator that owns collision volumes. The kinetic core
// only ever asks these two questions.
type Geometry interface {
	IsPositionValid(id EntityID, candidate Vec3) bool
	CollidingNeighbors(id EntityID) []EntityID
}

// Leash bounds the distance between an agent and its anchor.
type Leash struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (l Leash) Contains(d float64) bool { return d >= l.Min && d <= l.Max }

// Agent is a positioned entity with stochastic motion rules.
type Agent struct {
	ID          EntityID
	Name        string
	Position    Vec3
	Orientation Quat

	// Anchor is the structural parent; nil means unconstrained. SecondAnchor
	// is used when the agent hangs between two parents.
	Anchor       *Agent
	SecondAnchor *Agent
	Leash        Leash

	MeanStepSize float64
	MeanRotation float64 // degrees

	startPosition    Vec3
	startOrientation Quat
}

func NewAgent(id EntityID, name string, position Vec3) *Agent {
	return &Agent{
		ID:               id,
		Name:             name,
		Position:         position,
		Orientation:      Identity,
		startPosition:    position,
		startOrientation: Identity,
	}
}

// StartPosition is where the agent was placed at scene setup.
func (a *Agent) StartPosition() Vec3 { return a.startPosition }

// MarkStart records the current pose as the reset pose.
func (a *Agent) MarkStart() {
	a.startPosition = a.Position
	a.startOrientation = a.Orientation
}

// ResetPose restores the scene-setup pose.
func (a *Agent) ResetPose() {
	a.Position = a.startPosition
	a.Orientation = a.startOrientation
}

// LeashOK reports whether candidate keeps every anchor within the leash.
func (a *Agent) LeashOK(candidate Vec3) bool {
	if a.Anchor != nil && !a.Leash.Contains(candidate.Distance(a.Anchor.Position)) {
		return false
	}
	if a.SecondAnchor != nil && !a.Leash.Contains(candidate.Distance(a.SecondAnchor.Position)) {
		return false
	}
	return true
}

// violatedAnchor returns the first anchor whose leash candidate breaks.
func (a *Agent) violatedAnchor(candidate Vec3) *Agent {
	for _, anchor := range []*Agent{a.Anchor, a.SecondAnchor} {
		if anchor != nil && !a.Leash.Contains(candidate.Distance(anchor.Position)) {
			return anchor
		}
	}
	return nil
}

// DistanceToAnchor returns the distance to the primary anchor, or -1.
func (a *Agent) DistanceToAnchor() float64 {
	if a.Anchor == nil {
		return -1
	}
	return a.Position.Distance(a.Anchor.Position)
}
