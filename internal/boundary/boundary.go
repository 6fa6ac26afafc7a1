// Package boundary loads the region polygons that territories are clipped to.
package boundary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
)

// Detail levels published for ONS boundary sets, most to least detailed.
var DetailLevels = []string{"BFE", "BFC", "BGC", "BSC", "BUC"}

// ValidDetail reports whether d is a known detail level.
func ValidDetail(d string) bool {
	for _, l := range DetailLevels {
		if l == d {
			return true
		}
	}
	return false
}

// Boundary is a validated region in WGS84 lon/lat.
type Boundary struct {
	Name  string
	Level string
	Shape geo.Shape
}

// Filter selects features by property. An empty filter keeps everything.
// Each term is "KEY=value"; a feature matches if any term matches.
type Filter []string

// ParseFilter validates filter terms.
func ParseFilter(terms []string) (Filter, error) {
	for _, t := range terms {
		k, _, ok := strings.Cut(t, "=")
		if !ok || k == "" {
			return nil, errors.Configurationf("feature filter %q: want KEY=value", t)
		}
	}
	return Filter(terms), nil
}

func (f Filter) match(props geojson.Properties) bool {
	if len(f) == 0 {
		return true
	}
	for _, t := range f {
		k, v, _ := strings.Cut(t, "=")
		if stringProperty(props, k) == v {
			return true
		}
	}
	return false
}

// Load reads a GeoJSON FeatureCollection and merges the matching features
// into one boundary. Problems with the file or its geometry are
// CONFIGURATION errors.
func Load(path string, filter Filter) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "read boundary %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "parse boundary %s", path)
	}
	b, err := FromCollection(fc, filter)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "boundary %s", path)
	}
	return b, nil
}

// FromCollection merges the polygon features of fc that match filter.
func FromCollection(fc *geojson.FeatureCollection, filter Filter) (*Boundary, error) {
	var (
		shape geo.Shape
		names []string
	)
	for i, f := range fc.Features {
		if !filter.match(f.Properties) {
			continue
		}
		s, ok := geo.FromOrb(f.Geometry)
		if !ok {
			return nil, errors.Configurationf("feature %d: unsupported geometry %T", i, f.Geometry)
		}
		shape.Parts = append(shape.Parts, s.Parts...)
		if n := featureName(f.Properties); n != "" {
			names = append(names, n)
		}
	}
	if shape.IsEmpty() {
		return nil, errors.Configuration("no features match the filter")
	}
	return New(strings.Join(names, ", "), shape)
}

// New validates and normalizes s.
func New(name string, s geo.Shape) (*Boundary, error) {
	if err := geo.Validate(s); err != nil {
		return nil, err
	}
	return &Boundary{Name: name, Shape: s.Normalize()}, nil
}

// FromBound is a rectangular boundary, mainly for tests and planar inputs.
func FromBound(name string, b orb.Bound) *Boundary {
	return &Boundary{Name: name, Shape: geo.Rect(b)}
}

// nameKeys are the ONS name properties, most specific first.
var nameKeys = []string{"ITL325NM", "ITL225NM", "ITL125NM", "CTRY24NM", "name", "NAME"}

func featureName(p geojson.Properties) string {
	for _, k := range nameKeys {
		if s := stringProperty(p, k); s != "" {
			return s
		}
	}
	return ""
}

// Open loads <dir>/<detail>/<file>.
func Open(dir, detail, file string, filter Filter) (*Boundary, error) {
	if !ValidDetail(detail) {
		return nil, errors.Configurationf("unknown boundary detail level %q", detail)
	}
	b, err := Load(filepath.Join(dir, detail, file), filter)
	if err != nil {
		return nil, err
	}
	b.Level = detail
	return b, nil
}

// stringProperty reads a property as text. ONS codes are sometimes numeric.
func stringProperty(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
