package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// maxMercatorLat is where spherical Mercator clamps; points beyond it collapse.
const maxMercatorLat = 85.05112878

// Projector maps lon/lat coordinates into the plane the tessellation runs in.
type Projector interface {
	Forward(orb.Point) orb.Point
	Inverse(orb.Point) orb.Point
	// Valid reports whether p can be projected without loss.
	Valid(orb.Point) bool
	Name() string
}

// Mercator is spherical Web Mercator, in metres.
type Mercator struct{}

func (Mercator) Forward(p orb.Point) orb.Point { return project.WGS84.ToMercator(p) }
func (Mercator) Inverse(p orb.Point) orb.Point { return project.Mercator.ToWGS84(p) }
func (Mercator) Name() string                  { return "mercator" }

func (Mercator) Valid(p orb.Point) bool {
	return finite(p) && p[0] >= -180 && p[0] <= 180 && math.Abs(p[1]) <= maxMercatorLat
}

// Identity treats coordinates as already planar.
type Identity struct{}

func (Identity) Forward(p orb.Point) orb.Point { return p }
func (Identity) Inverse(p orb.Point) orb.Point { return p }
func (Identity) Valid(p orb.Point) bool        { return finite(p) }
func (Identity) Name() string                  { return "identity" }

// ProjectorByName returns the projector for a configuration value.
func ProjectorByName(name string) (Projector, bool) {
	switch name {
	case "", "mercator":
		return Mercator{}, true
	case "identity":
		return Identity{}, true
	default:
		return nil, false
	}
}

// Project maps every vertex of s through p.Forward.
func Project(s Shape, p Projector) Shape {
	return s.Map(p.Forward)
}

// Unproject maps every vertex of s through p.Inverse.
func Unproject(s Shape, p Projector) Shape {
	return s.Map(p.Inverse)
}
