package territory

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/geo"
)

// Feature kinds in an exported layer.
const (
	kindCell   = "cell"
	kindLeague = "league"
)

// FeatureCollection renders a layer as GeoJSON: one feature per cell (a
// point at the club for an empty cell), then one per league with any area,
// and the layer's metadata as foreign members.
func FeatureCollection(layer *domain.TerritoryLayer) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range layer.Cells {
		var f *geojson.Feature
		if c.Empty {
			f = geojson.NewFeature(c.Site)
		} else {
			f = geojson.NewFeature(c.Polygon.Geometry())
		}
		f.ID = c.TeamKey
		f.Properties["kind"] = kindCell
		f.Properties["team_key"] = c.TeamKey
		f.Properties["club_key"] = c.ClubKey
		f.Properties["name"] = c.Name
		f.Properties["league_id"] = c.LeagueID
		f.Properties["tier"] = c.Tier
		f.Properties["division"] = c.Division
		f.Properties["image_url"] = c.ImageURL
		f.Properties["area"] = c.Area
		f.Properties["empty"] = c.Empty
		f.Properties["site"] = []float64{c.Site[0], c.Site[1]}
		f.Properties["centroid"] = []float64{c.Centroid[0], c.Centroid[1]}
		fc.Append(f)
	}
	for _, l := range layer.Leagues {
		if l.Polygon.IsEmpty() {
			continue
		}
		f := geojson.NewFeature(l.Polygon.Geometry())
		f.ID = "league:" + l.LeagueID
		f.Properties["kind"] = kindLeague
		f.Properties["league_id"] = l.LeagueID
		f.Properties["tier"] = l.Tier
		f.Properties["division"] = l.Division
		f.Properties["teams"] = l.Teams
		f.Properties["area"] = l.Area
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"grouping_key": layer.GroupingKey,
		"season":       layer.Season,
		"boundary":     layer.BoundaryUsed,
	}
	if len(layer.Claims) > 0 {
		fc.ExtraMembers["claims"] = layer.Claims
	}
	if len(layer.Contested) > 0 {
		fc.ExtraMembers["contested"] = layer.Contested
	}
	if len(layer.Excluded) > 0 {
		fc.ExtraMembers["excluded"] = layer.Excluded
	}
	if len(layer.Warnings) > 0 {
		fc.ExtraMembers["warnings"] = layer.Warnings
	}
	return fc
}

// MarshalLayer encodes a layer as a GeoJSON FeatureCollection.
func MarshalLayer(layer *domain.TerritoryLayer) ([]byte, error) {
	return json.Marshal(FeatureCollection(layer))
}

// UnmarshalLayer decodes a layer written by MarshalLayer.
func UnmarshalLayer(data []byte) (*domain.TerritoryLayer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode layer: %w", err)
	}

	layer := &domain.TerritoryLayer{
		GroupingKey:  fc.ExtraMembers.MustString("grouping_key", ""),
		Season:       fc.ExtraMembers.MustString("season", ""),
		BoundaryUsed: fc.ExtraMembers.MustString("boundary", ""),
		Cells:        make([]domain.TerritoryCell, 0, len(fc.Features)),
	}
	if err := remarshal(fc.ExtraMembers["excluded"], &layer.Excluded); err != nil {
		return nil, fmt.Errorf("decode exclusions: %w", err)
	}
	if err := remarshal(fc.ExtraMembers["warnings"], &layer.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if err := remarshal(fc.ExtraMembers["claims"], &layer.Claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if err := remarshal(fc.ExtraMembers["contested"], &layer.Contested); err != nil {
		return nil, fmt.Errorf("decode contested regions: %w", err)
	}

	for _, f := range fc.Features {
		p := f.Properties
		if p.MustString("kind", kindCell) == kindLeague {
			l, err := leagueFeature(f)
			if err != nil {
				return nil, err
			}
			layer.Leagues = append(layer.Leagues, l)
			continue
		}
		c := domain.TerritoryCell{
			TeamKey:  p.MustString("team_key", ""),
			ClubKey:  p.MustString("club_key", ""),
			Name:     p.MustString("name", ""),
			LeagueID: p.MustString("league_id", ""),
			Tier:     p.MustString("tier", ""),
			Division: p.MustString("division", ""),
			ImageURL: p.MustString("image_url", ""),
			Area:     p.MustFloat64("area", 0),
			Empty:    p.MustBool("empty", false),
			Site:     pointProperty(p, "site"),
			Centroid: pointProperty(p, "centroid"),
		}
		if !c.Empty {
			shape, ok := geo.FromOrb(f.Geometry)
			if !ok {
				return nil, fmt.Errorf("cell %s: unsupported geometry %T", c.TeamKey, f.Geometry)
			}
			c.Polygon = shape
		}
		layer.Cells = append(layer.Cells, c)
	}
	return layer, nil
}

func leagueFeature(f *geojson.Feature) (domain.LeagueTerritory, error) {
	p := f.Properties
	l := domain.LeagueTerritory{
		LeagueID: p.MustString("league_id", ""),
		Tier:     p.MustString("tier", ""),
		Division: p.MustString("division", ""),
		Area:     p.MustFloat64("area", 0),
	}
	if err := remarshal(p["teams"], &l.Teams); err != nil {
		return l, fmt.Errorf("league %s: decode teams: %w", l.LeagueID, err)
	}
	shape, ok := geo.FromOrb(f.Geometry)
	if !ok {
		return l, fmt.Errorf("league %s: unsupported geometry %T", l.LeagueID, f.Geometry)
	}
	l.Polygon = shape
	return l, nil
}

func pointProperty(p geojson.Properties, key string) orb.Point {
	v, ok := p[key].([]any)
	if !ok || len(v) != 2 {
		return orb.Point{}
	}
	x, _ := v[0].(float64)
	y, _ := v[1].(float64)
	return orb.Point{x, y}
}

func remarshal(v any, out any) error {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
