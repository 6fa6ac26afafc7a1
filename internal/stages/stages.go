// Package stages persists the output of each pipeline stage as JSON files
// so stages can run independently.
package stages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/normalize"
	"github.com/rugbymap/rugbymap/internal/store"
	"github.com/rugbymap/rugbymap/internal/territory"
	"github.com/rugbymap/rugbymap/internal/travel"
)

// Directory layout under the base dir.
const (
	addressesDir = "addresses"
	geocodedDir  = "geocoded"
	layersDir    = "layers"
	reportsDir   = "reports"
	travelDir    = "travel"
)

// TeamAddress is one team's address stage outcome.
type TeamAddress struct {
	Record  domain.ClubRecord         `json:"record"`
	Address *domain.NormalizedAddress `json:"address,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// LeagueAddresses is the address stage output for one league.
type LeagueAddresses struct {
	LeagueID string        `json:"league_id"`
	Season   string        `json:"season"`
	Teams    []TeamAddress `json:"teams"`
}

// TeamLocation is one team's geocode stage outcome.
type TeamLocation struct {
	Record     domain.ClubRecord     `json:"record"`
	Address    string                `json:"address,omitempty"`
	Coordinate *domain.GeoCoordinate `json:"coordinate,omitempty"`
	// Regions are the statistical regions containing Coordinate, when known.
	Regions domain.RegionPath `json:"regions,omitzero"`
	Error   string            `json:"error,omitempty"`
}

// LeagueLocations is the geocode stage output for one league.
type LeagueLocations struct {
	LeagueID string         `json:"league_id"`
	Season   string         `json:"season"`
	Teams    []TeamLocation `json:"teams"`
}

// Points returns the located teams.
func (l LeagueLocations) Points() []domain.ClubPoint {
	var out []domain.ClubPoint
	for _, t := range l.Teams {
		if t.Coordinate != nil {
			out = append(out, domain.ClubPoint{Club: t.Record, Coordinate: *t.Coordinate, Regions: t.Regions})
		}
	}
	return out
}

// Store reads and writes stage files under a base directory. Every write
// replaces its file atomically.
type Store struct {
	base   string
	writer store.AtomicWriter
}

// New creates a stage store. A nil writer uses store.RenameWriter.
func New(base string, writer store.AtomicWriter) *Store {
	if writer == nil {
		writer = store.RenameWriter{}
	}
	return &Store{base: base, writer: writer}
}

// Base returns the base directory.
func (s *Store) Base() string { return s.base }

func (s *Store) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	if err := s.writer.WriteFile(filepath.Join(s.base, rel), data); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func (s *Store) readJSON(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.base, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundf("%s not found", rel)
		}
		return fmt.Errorf("read %s: %w", rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, errors.CodeValidation, "decode %s", rel)
	}
	return nil
}

// list returns the files in dir with suffix, sorted.
func (s *Store) list(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.base, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("%s not found", dir)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func leagueFile(leagueID string) string {
	return normalize.Slugify(leagueID) + ".json"
}

// SaveAddresses writes one file per league.
func (s *Store) SaveAddresses(leagues []LeagueAddresses) error {
	for _, l := range leagues {
		if err := s.writeJSON(filepath.Join(addressesDir, l.Season, leagueFile(l.LeagueID)), l); err != nil {
			return err
		}
	}
	return nil
}

// LoadAddresses reads every league's address output for a season.
func (s *Store) LoadAddresses(season string) ([]LeagueAddresses, error) {
	return loadAll[LeagueAddresses](s, filepath.Join(addressesDir, season))
}

// SaveLocations writes one file per league.
func (s *Store) SaveLocations(leagues []LeagueLocations) error {
	for _, l := range leagues {
		if err := s.writeJSON(filepath.Join(geocodedDir, l.Season, leagueFile(l.LeagueID)), l); err != nil {
			return err
		}
	}
	return nil
}

// LoadLocations reads every league's geocode output for a season.
func (s *Store) LoadLocations(season string) ([]LeagueLocations, error) {
	return loadAll[LeagueLocations](s, filepath.Join(geocodedDir, season))
}

func loadAll[T any](s *Store, dir string) ([]T, error) {
	names, err := s.list(dir, ".json")
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(names))
	for _, n := range names {
		var v T
		if err := s.readJSON(filepath.Join(dir, n), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LayerFile maps a grouping key to its file name.
func LayerFile(groupingKey string) string {
	return strings.ReplaceAll(groupingKey, ":", "_") + ".geojson"
}

// SaveLayer writes a layer as GeoJSON.
func (s *Store) SaveLayer(layer *domain.TerritoryLayer) error {
	data, err := territory.MarshalLayer(layer)
	if err != nil {
		return fmt.Errorf("encode layer %s: %w", layer.GroupingKey, err)
	}
	path := filepath.Join(s.base, layersDir, layer.Season, LayerFile(layer.GroupingKey))
	if err := s.writer.WriteFile(path, data); err != nil {
		return fmt.Errorf("write layer %s: %w", layer.GroupingKey, err)
	}
	return nil
}

// LayerPath is where a layer's GeoJSON lives.
func (s *Store) LayerPath(season, groupingKey string) string {
	return filepath.Join(s.base, layersDir, season, LayerFile(groupingKey))
}

// LayerData returns a layer's GeoJSON as stored.
func (s *Store) LayerData(season, groupingKey string) ([]byte, error) {
	data, err := os.ReadFile(s.LayerPath(season, groupingKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("layer %s not found for %s", groupingKey, season)
		}
		return nil, fmt.Errorf("read layer: %w", err)
	}
	return data, nil
}

// LoadLayer reads one layer.
func (s *Store) LoadLayer(season, groupingKey string) (*domain.TerritoryLayer, error) {
	data, err := s.LayerData(season, groupingKey)
	if err != nil {
		return nil, err
	}
	return territory.UnmarshalLayer(data)
}

// Layers lists the grouping keys with a saved layer for a season.
func (s *Store) Layers(season string) ([]string, error) {
	names, err := s.list(filepath.Join(layersDir, season), ".geojson")
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = strings.Replace(strings.TrimSuffix(n, ".geojson"), "_", ":", 1)
	}
	return keys, nil
}

// SaveReport writes a stage report.
func (s *Store) SaveReport(season, stage string, v any) error {
	return s.writeJSON(filepath.Join(reportsDir, season, stage+".json"), v)
}

// LoadReport reads a stage report into v.
func (s *Store) LoadReport(season, stage string, v any) error {
	return s.readJSON(filepath.Join(reportsDir, season, stage+".json"), v)
}

// SaveTravel writes travel statistics.
func (s *Store) SaveTravel(r *travel.Report) error {
	return s.writeJSON(filepath.Join(travelDir, r.Season+".json"), r)
}

// LoadTravel reads travel statistics.
func (s *Store) LoadTravel(season string) (*travel.Report, error) {
	var r travel.Report
	if err := s.readJSON(filepath.Join(travelDir, season+".json"), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
