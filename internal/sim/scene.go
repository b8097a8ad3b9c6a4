package sim

import (
	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/spatial"
)

const (
	kinesinGroup = 1

	// height of the hips above the binding points at setup
	hipsLift = 3.5
)

// Scene is the geometry a simulation runs in: the track and the three
// kinesin agents registered in one World.
type Scene struct {
	World  *spatial.World
	Track  []*spatial.Site
	Hips   *spatial.Agent
	Motors [2]*spatial.Agent
}

// BuildScene lays the track along +x and hangs the kinesin above its second
// site, one head either side of the hips at the middle of the leash.
func BuildScene(cfg *config.Config) *Scene {
	w := spatial.NewWorld()
	track := w.BuildTrack(cfg.Track.Sites, cfg.Track.Spacing,
		spatial.DefaultSiteRadius, spatial.DefaultMotorRadius, spatial.Vec3{})

	bindingHeight := spatial.DefaultSiteRadius + spatial.DefaultMotorRadius
	hipsPos := spatial.Vec3{X: cfg.Track.Spacing, Y: bindingHeight + hipsLift}

	reach := (cfg.Leash.Min + cfg.Leash.Max) / 2
	left := spatial.Vec3{X: -3, Y: -2}.Normalize().Scale(reach)
	right := spatial.Vec3{X: 3, Y: -2}.Normalize().Scale(reach)

	s := &Scene{World: w, Track: track}
	s.Hips = w.NewAgent("hips", hipsPos, spatial.DefaultHipsRadius, kinesinGroup)
	s.Motors[0] = w.NewAgent("motor-0", hipsPos.Add(left), spatial.DefaultMotorRadius, kinesinGroup)
	s.Motors[1] = w.NewAgent("motor-1", hipsPos.Add(right), spatial.DefaultMotorRadius, kinesinGroup)

	for _, a := range []*spatial.Agent{s.Hips, s.Motors[0], s.Motors[1]} {
		a.Leash = cfg.Leash
		a.MeanStepSize = cfg.MeanStepSize
		a.MeanRotation = cfg.MeanRotation
		a.MarkStart()
	}
	return s
}
