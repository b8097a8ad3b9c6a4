package spatial

import "fmt"

const (
	DefaultSiteRadius    = 2.0
	DefaultMotorRadius   = 2.5
	DefaultHipsRadius    = 1.5
	DefaultContactMargin = 0.5
	DefaultSiteSpacing   = 4.0

	// BindableSiteType marks the track sites a motor can bind to.
	BindableSiteType = 1
)

// Body is an agent's excluded volume.
type Body struct {
	Agent  *Agent
	Radius float64
	// Group 0 collides with everything; bodies sharing a non-zero group never
	// collide with each other.
	Group int
}

// Site is one binding site on the track.
type Site struct {
	Agent    *Agent
	Index    int
	Type     int
	Occupied bool
	// Offset from the site centre to where a bound motor sits.
	BindingOffset Vec3
}

func (s *Site) BindingPoint() Vec3 { return s.Agent.Position.Add(s.BindingOffset) }

func (s *Site) Bindable() bool { return s.Type == BindableSiteType && !s.Occupied }

// World is a reference Geometry made of spheres.
type World struct {
	ContactMargin float64

	bodies map[EntityID]*Body
	order  []EntityID
	sites  map[EntityID]*Site
	track  []*Site
	nextID EntityID
}

func NewWorld() *World {
	return &World{
		ContactMargin: DefaultContactMargin,
		bodies:        make(map[EntityID]*Body),
		sites:         make(map[EntityID]*Site),
		nextID:        1,
	}
}

// NewAgent creates an agent with a fresh id and registers its body.
func (w *World) NewAgent(name string, position Vec3, radius float64, group int) *Agent {
	a := NewAgent(w.nextID, name, position)
	w.nextID++
	w.Add(a, radius, group)
	return a
}

// Add registers an existing agent. Re-adding an id replaces its body.
func (w *World) Add(a *Agent, radius float64, group int) {
	if _, ok := w.bodies[a.ID]; !ok {
		w.order = append(w.order, a.ID)
	}
	w.bodies[a.ID] = &Body{Agent: a, Radius: radius, Group: group}
	if a.ID >= w.nextID {
		w.nextID = a.ID + 1
	}
}

func (w *World) Body(id EntityID) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

func (w *World) Len() int { return len(w.order) }

func (w *World) interacts(a, b *Body) bool {
	if a.Agent.ID == b.Agent.ID {
		return false
	}
	return a.Group == 0 || a.Group != b.Group
}

// IsPositionValid reports whether the body id could sit at candidate without
// overlapping another body. Unknown ids are always valid.
func (w *World) IsPositionValid(id EntityID, candidate Vec3) bool {
	self, ok := w.bodies[id]
	if !ok {
		return true
	}
	for _, oid := range w.order {
		other := w.bodies[oid]
		if !w.interacts(self, other) {
			continue
		}
		if candidate.Distance(other.Agent.Position) < self.Radius+other.Radius {
			return false
		}
	}
	return true
}

// CollidingNeighbors returns the bodies in contact with id, in registration
// order.
func (w *World) CollidingNeighbors(id EntityID) []EntityID {
	self, ok := w.bodies[id]
	if !ok {
		return nil
	}
	var out []EntityID
	for _, oid := range w.order {
		other := w.bodies[oid]
		if !w.interacts(self, other) {
			continue
		}
		if self.Agent.Position.Distance(other.Agent.Position) <= self.Radius+other.Radius+w.ContactMargin {
			out = append(out, oid)
		}
	}
	return out
}

// BuildTrack lays n sites along +x starting at origin. Types alternate and
// every other site, starting with the first, is bindable.
func (w *World) BuildTrack(n int, spacing, siteRadius, motorRadius float64, origin Vec3) []*Site {
	if spacing <= 0 {
		spacing = DefaultSiteSpacing
	}
	const trackGroup = -1
	for i := 0; i < n; i++ {
		pos := origin.Add(Vec3{X: float64(i) * spacing})
		a := w.NewAgent(fmt.Sprintf("site-%d", i), pos, siteRadius, trackGroup)
		typ := 2
		if i%2 == 0 {
			typ = BindableSiteType
		}
		s := &Site{
			Agent:         a,
			Index:         i,
			Type:          typ,
			BindingOffset: Vec3{Y: siteRadius + motorRadius},
		}
		w.sites[a.ID] = s
		w.track = append(w.track, s)
	}
	return w.track
}

// Site returns the track site for an entity id.
func (w *World) Site(id EntityID) (*Site, bool) {
	s, ok := w.sites[id]
	return s, ok
}

func (w *World) Track() []*Site { return w.track }

// FreeSites clears occupancy on every site.
func (w *World) FreeSites() {
	for _, s := range w.track {
		s.Occupied = false
	}
}
