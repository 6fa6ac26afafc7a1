package boundary

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/rugbymap/rugbymap/internal/domain"
)

// hierarchyLevels are the levels a Hierarchy's collections stand for, in
// order.
var hierarchyLevels = []domain.RegionLevel{domain.LevelITL1, domain.LevelITL2, domain.LevelITL3}

// LevelKeys returns the GeoJSON property keys naming regions at the i-th
// ITL level, counting from zero: ITL125NM and ITL125CD for ITL1.
func LevelKeys(i int) (nameKey, codeKey string) {
	return fmt.Sprintf("ITL%d25NM", i+1), fmt.Sprintf("ITL%d25CD", i+1)
}

// Hierarchy nests region collections, widest first. A region's parent is
// the region one level up whose code is the longest prefix of its own, so
// TLC11 sits in TLC1, which sits in TLC.
type Hierarchy struct {
	levels []*Collection
	// children[i] maps a region name at level i to its child indexes at
	// level i+1.
	children []map[string][]int
}

// LoadHierarchy reads one collection per ITL level, widest first.
func LoadHierarchy(paths ...string) (*Hierarchy, error) {
	levels := make([]*Collection, 0, len(paths))
	for i, p := range paths {
		name, code := LevelKeys(i)
		c, err := LoadCollection(p, name, code)
		if err != nil {
			return nil, err
		}
		levels = append(levels, c)
	}
	return NewHierarchy(levels...), nil
}

// NewHierarchy links collections given widest first. Levels past ITL3 are
// ignored.
func NewHierarchy(levels ...*Collection) *Hierarchy {
	if len(levels) > len(hierarchyLevels) {
		levels = levels[:len(hierarchyLevels)]
	}
	h := &Hierarchy{levels: levels, children: make([]map[string][]int, len(levels))}
	for i := range len(levels) - 1 {
		h.children[i] = link(levels[i], levels[i+1])
	}
	return h
}

func link(parents, children *Collection) map[string][]int {
	byCode := make(map[string]string, len(parents.Regions))
	for _, p := range parents.Regions {
		if p.Code != "" {
			byCode[p.Code] = p.Name
		}
	}
	out := make(map[string][]int)
	for ci, c := range children.Regions {
		for n := len(c.Code) - 1; n > 0; n-- {
			if parent, ok := byCode[c.Code[:n]]; ok {
				out[parent] = append(out[parent], ci)
				break
			}
		}
	}
	return out
}

// Levels is how many levels the hierarchy holds.
func (h *Hierarchy) Levels() int {
	return len(h.levels)
}

// Locate places p at each level, searching only the children of the region
// found one level up. When the parent has no linked children the whole
// level is searched. It stops at the first level p is in no region of.
func (h *Hierarchy) Locate(p orb.Point) domain.RegionPath {
	var (
		path   domain.RegionPath
		parent string
	)
	for i, c := range h.levels {
		var found Region
		ok := false
		if kids := h.childrenOf(i-1, parent); kids != nil {
			for _, ci := range kids {
				if r := c.Regions[ci]; r.bound.Contains(p) && r.Shape.Contains(p) {
					found, ok = r, true
					break
				}
			}
		} else {
			found, ok = c.Locate(p)
		}
		if !ok {
			break
		}
		switch hierarchyLevels[i] {
		case domain.LevelITL1:
			path.ITL1 = found.Name
		case domain.LevelITL2:
			path.ITL2 = found.Name
		case domain.LevelITL3:
			path.ITL3 = found.Name
		}
		parent = found.Name
	}
	return path
}

func (h *Hierarchy) childrenOf(level int, name string) []int {
	if level < 0 || level >= len(h.children) || h.children[level] == nil {
		return nil
	}
	return h.children[level][name]
}

// ChildCount is how many regions one level down sit in the named region.
func (h *Hierarchy) ChildCount(level domain.RegionLevel, name string) int {
	for i, l := range hierarchyLevels {
		if l == level {
			return len(h.childrenOf(i, name))
		}
	}
	return 0
}
