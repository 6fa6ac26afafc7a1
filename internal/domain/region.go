package domain

// RegionLevel is one level of the statistical region hierarchy, from the
// whole country down to ITL3.
type RegionLevel string

const (
	LevelCountry RegionLevel = "country"
	LevelITL1    RegionLevel = "itl1"
	LevelITL2    RegionLevel = "itl2"
	LevelITL3    RegionLevel = "itl3"
)

// RegionPath places a point in the hierarchy. A level the point could not
// be placed in is empty, and so is every level below it.
type RegionPath struct {
	ITL1 string `json:"itl1,omitempty"`
	ITL2 string `json:"itl2,omitempty"`
	ITL3 string `json:"itl3,omitempty"`
}

// IsZero reports whether the point was placed in no region at all.
func (p RegionPath) IsZero() bool {
	return p == RegionPath{}
}

// At returns the region name at level.
func (p RegionPath) At(level RegionLevel) string {
	switch level {
	case LevelITL1:
		return p.ITL1
	case LevelITL2:
		return p.ITL2
	case LevelITL3:
		return p.ITL3
	default:
		return ""
	}
}

// RegionClaim is a region whose teams in a layer all play in one league.
type RegionClaim struct {
	Level    RegionLevel `json:"level"`
	Region   string      `json:"region"`
	LeagueID string      `json:"league_id"`
}
