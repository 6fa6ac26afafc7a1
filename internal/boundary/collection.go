package boundary

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
)

// Region is one named feature of a boundary set.
type Region struct {
	Name  string
	Code  string
	Shape geo.Shape
	bound orb.Bound
}

// Collection is a set of regions for point lookup.
type Collection struct {
	Regions []Region
}

// LoadCollection reads every polygon feature of a GeoJSON file as a region,
// named by the nameKey and codeKey properties.
func LoadCollection(path, nameKey, codeKey string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "read regions %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "parse regions %s", path)
	}
	return NewCollection(fc, nameKey, codeKey), nil
}

// NewCollection builds a collection from fc, skipping non-polygon features.
func NewCollection(fc *geojson.FeatureCollection, nameKey, codeKey string) *Collection {
	c := &Collection{}
	for _, f := range fc.Features {
		s, ok := geo.FromOrb(f.Geometry)
		if !ok || s.IsEmpty() {
			continue
		}
		s = s.Normalize()
		c.Regions = append(c.Regions, Region{
			Name:  stringProperty(f.Properties, nameKey),
			Code:  stringProperty(f.Properties, codeKey),
			Shape: s,
			bound: s.Bound(),
		})
	}
	return c
}

// Locate returns the first region containing p.
func (c *Collection) Locate(p orb.Point) (Region, bool) {
	for _, r := range c.Regions {
		if r.bound.Contains(p) && r.Shape.Contains(p) {
			return r, true
		}
	}
	return Region{}, false
}
