package geo

// Relative tolerances. Both scale with the bounding-box diagonal of the
// boundary so results do not depend on the projection's units.
const (
	epsFactor     = 1e-9
	minAreaFactor = 1e-12
)

// Tolerance fixes the numeric slack for one tessellation run.
type Tolerance struct {
	// Eps is the distance under which a vertex is considered on a line,
	// and two vertices are merged.
	Eps float64
	// MinArea drops rings whose absolute area is at or below it.
	MinArea float64
}

// ToleranceFor derives the run tolerance from a bounding-box diagonal.
func ToleranceFor(diagonal float64) Tolerance {
	return Tolerance{
		Eps:     epsFactor * diagonal,
		MinArea: minAreaFactor * diagonal * diagonal,
	}
}
