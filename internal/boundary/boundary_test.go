package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
)

func squareFeature(x0, y0, x1, y1 float64, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}})
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func writeCollection(t *testing.T, dir, name string, features ...*geojson.Feature) string {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	fc.Features = features
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_FiltersAndMerges(t *testing.T) {
	dir := t.TempDir()
	path := writeCollection(t, dir, "countries.geojson",
		squareFeature(0, 0, 2, 2, map[string]any{"CTRY24NM": "England"}),
		squareFeature(5, 5, 6, 6, map[string]any{"CTRY24NM": "Wales"}),
	)

	all, err := Load(path, nil)
	require.NoError(t, err)
	assert.Len(t, all.Shape.Parts, 2)
	assert.Equal(t, "England, Wales", all.Name)

	filter, err := ParseFilter([]string{"CTRY24NM=England"})
	require.NoError(t, err)
	england, err := Load(path, filter)
	require.NoError(t, err)
	require.Len(t, england.Shape.Parts, 1)
	assert.InDelta(t, 4.0, england.Shape.Area(), 1e-12)
	assert.Equal(t, "England", england.Name)
}

func TestLoad_ConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	bowTie := geojson.NewFeature(orb.Polygon{{{0, 0}, {4, 4}, {4, 0}, {0, 4}, {0, 0}}})
	bad := writeCollection(t, dir, "bad.geojson", bowTie)
	good := writeCollection(t, dir, "good.geojson", squareFeature(0, 0, 1, 1, nil))
	garbage := filepath.Join(dir, "garbage.geojson")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o644))

	tests := []struct {
		name   string
		path   string
		filter Filter
	}{
		{"missing file", filepath.Join(dir, "missing.geojson"), nil},
		{"malformed json", garbage, nil},
		{"self-intersecting", bad, nil},
		{"nothing matches", good, Filter{"CTRY24NM=Scotland"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, tt.filter)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))
		})
	}

	_, err := ParseFilter([]string{"novalue"})
	assert.Error(t, err)
}

func TestOpen_UsesDetailDirectory(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, filepath.Join("BUC", "countries.geojson"), squareFeature(0, 0, 1, 1, nil))

	b, err := Open(dir, "BUC", "countries.geojson", nil)
	require.NoError(t, err)
	assert.Equal(t, "BUC", b.Level)

	_, err = Open(dir, "XYZ", "countries.geojson", nil)
	assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))
}

func TestCollection_Locate(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(squareFeature(0, 0, 1, 1, map[string]any{"ITL325NM": "Bath", "ITL325CD": "TLK12"}))
	fc.Append(squareFeature(1, 0, 2, 1, map[string]any{"ITL325NM": "Bristol", "ITL325CD": "TLK11"}))
	fc.Append(geojson.NewFeature(orb.Point{5, 5}))

	c := NewCollection(fc, "ITL325NM", "ITL325CD")

	require.Len(t, c.Regions, 2)
	r, ok := c.Locate(orb.Point{1.5, 0.5})
	require.True(t, ok)
	assert.Equal(t, "Bristol", r.Name)
	assert.Equal(t, "TLK11", r.Code)
	_, ok = c.Locate(orb.Point{3, 3})
	assert.False(t, ok)
}

func TestHierarchy_Locate(t *testing.T) {
	itl1 := geojson.NewFeatureCollection()
	itl1.Append(squareFeature(0, 0, 4, 2, map[string]any{"ITL125NM": "South West", "ITL125CD": "TLK"}))
	itl2 := geojson.NewFeatureCollection()
	itl2.Append(squareFeature(0, 0, 2, 2, map[string]any{"ITL225NM": "Gloucestershire", "ITL225CD": "TLK1"}))
	itl2.Append(squareFeature(2, 0, 4, 2, map[string]any{"ITL225NM": "Devon", "ITL225CD": "TLK4"}))
	itl3 := geojson.NewFeatureCollection()
	itl3.Append(squareFeature(0, 0, 1, 2, map[string]any{"ITL325NM": "Bristol", "ITL325CD": "TLK11"}))
	itl3.Append(squareFeature(1, 0, 2, 2, map[string]any{"ITL325NM": "Bath", "ITL325CD": "TLK12"}))
	itl3.Append(squareFeature(2, 0, 4, 2, map[string]any{"ITL325NM": "Plymouth", "ITL325CD": "TLK41"}))
	// Overlaps Bath but belongs elsewhere, so a point in Bath never reaches it.
	itl3.Append(squareFeature(1, 0, 2, 2, map[string]any{"ITL325NM": "Stray", "ITL325CD": "TLZ99"}))

	collection := func(fc *geojson.FeatureCollection, i int) *Collection {
		name, code := LevelKeys(i)
		return NewCollection(fc, name, code)
	}
	h := NewHierarchy(collection(itl1, 0), collection(itl2, 1), collection(itl3, 2))

	assert.Equal(t, 3, h.Levels())
	assert.Equal(t, domain.RegionPath{ITL1: "South West", ITL2: "Gloucestershire", ITL3: "Bath"}, h.Locate(orb.Point{1.5, 1}))
	assert.Equal(t, domain.RegionPath{ITL1: "South West", ITL2: "Devon", ITL3: "Plymouth"}, h.Locate(orb.Point{3, 1}))
	assert.True(t, h.Locate(orb.Point{9, 9}).IsZero())

	assert.Equal(t, 2, h.ChildCount(domain.LevelITL1, "South West"))
	assert.Equal(t, 2, h.ChildCount(domain.LevelITL2, "Gloucestershire"))
	assert.Equal(t, 1, h.ChildCount(domain.LevelITL2, "Devon"))
	assert.Zero(t, h.ChildCount(domain.LevelITL3, "Bath"))
}

func TestLoadHierarchy(t *testing.T) {
	dir := t.TempDir()
	p1 := writeCollection(t, dir, "ITL_1.geojson", squareFeature(0, 0, 1, 1, map[string]any{"ITL125NM": "London", "ITL125CD": "TLI"}))
	p2 := writeCollection(t, dir, "ITL_2.geojson", squareFeature(0, 0, 1, 1, map[string]any{"ITL225NM": "Inner London", "ITL225CD": "TLI3"}))

	h, err := LoadHierarchy(p1, p2)
	require.NoError(t, err)
	assert.Equal(t, domain.RegionPath{ITL1: "London", ITL2: "Inner London"}, h.Locate(orb.Point{0.5, 0.5}))

	_, err = LoadHierarchy(filepath.Join(dir, "missing.geojson"))
	assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))
}

func TestDownloader_PagesThroughLayer(t *testing.T) {
	features := []*geojson.Feature{
		squareFeature(0, 0, 1, 1, map[string]any{"n": 0}),
		squareFeature(1, 0, 2, 1, map[string]any{"n": 1}),
		squareFeature(2, 0, 3, 1, map[string]any{"n": 2}),
	}
	var pages atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/layer/0/query", r.URL.Path)
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprintf(w, `{"count": %d}`, len(features))
			return
		}
		pages.Add(1)
		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		size, _ := strconv.Atoi(q.Get("resultRecordCount"))
		page := geojson.NewFeatureCollection()
		page.Features = features[offset:min(offset+size, len(features))]
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	d := NewDownloader(DownloadOptions{PageSize: 2}, nil)
	d.http = server.Client()
	path := filepath.Join(t.TempDir(), "BUC", "layer.geojson")

	n, err := d.Download(context.Background(), server.URL+"/layer/0", path)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, int32(2), pages.Load())
	b, err := Load(path, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, b.Shape.Area(), 1e-12)
}

func TestDownloader_FailedRequestWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewDownloader(DownloadOptions{}, nil)
	d.http = server.Client()
	path := filepath.Join(t.TempDir(), "layer.geojson")

	_, err := d.Download(context.Background(), server.URL+"/layer/0", path)

	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestServices(t *testing.T) {
	s := Services("BUC")
	assert.Contains(t, s["ITL_3.geojson"], "ITL3_JAN_2025_UK_BUC_V2/FeatureServer/1")
	assert.Contains(t, s["countries.geojson"], "Countries_December_2024_Boundaries_UK_BUC")
	assert.Contains(t, Services("BFC")["ITL_3.geojson"], "ITL3_JAN_2025_UK_BFC/FeatureServer/0")
}
