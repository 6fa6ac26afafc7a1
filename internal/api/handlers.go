package api

import (
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
	"github.com/rugbymap/rugbymap/internal/http/response"
)

// layerKeyPattern admits grouping keys such as "all", "tier:regional-1" and
// "all:women". It also keeps keys from escaping the layer directory.
var layerKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9:-]{0,127}$`)

// HealthResponse reports liveness and whether stage output is readable.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	DataDir string `json:"data_dir"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	h := HealthResponse{
		Status:  "healthy",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		DataDir: s.stages.Base(),
	}
	if _, err := os.Stat(s.stages.Base()); err != nil {
		h.Status = "degraded"
		h.Message = "no pipeline output yet"
	}
	response.Success(w, h, s.logger)
}

type seasonParam struct {
	Season string `json:"season" validate:"required,season"`
}

// requireSeason rejects malformed season path segments.
func (s *Server) requireSeason(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.validator.Validate(seasonParam{Season: chi.URLParam(r, "season")}); err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) layerKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if !layerKeyPattern.MatchString(key) {
		response.BadRequest(w, "invalid layer key", s.logger)
		return "", false
	}
	return key, true
}

func (s *Server) loadLayer(w http.ResponseWriter, r *http.Request) (*domain.TerritoryLayer, bool) {
	key, ok := s.layerKey(w, r)
	if !ok {
		return nil, false
	}
	layer, err := s.stages.LoadLayer(chi.URLParam(r, "season"), key)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return nil, false
	}
	return layer, true
}

func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	keys, err := s.stages.Layers(chi.URLParam(r, "season"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]any{"layers": keys}, s.logger)
}

// handleGetLayer serves the stored GeoJSON without an envelope.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	key, ok := s.layerKey(w, r)
	if !ok {
		return
	}
	data, err := s.stages.LayerData(chi.URLParam(r, "season"), key)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Raw(w, "application/geo+json", data, s.logger)
}

// LayerCells lists a layer's cells without geometry.
type LayerCells struct {
	GroupingKey string                 `json:"grouping_key"`
	Boundary    string                 `json:"boundary"`
	Cells       []domain.TerritoryCell `json:"cells"`
	Excluded    []domain.Exclusion     `json:"excluded,omitempty"`
}

func (s *Server) handleListCells(w http.ResponseWriter, r *http.Request) {
	layer, ok := s.loadLayer(w, r)
	if !ok {
		return
	}
	response.Success(w, LayerCells{
		GroupingKey: layer.GroupingKey,
		Boundary:    layer.BoundaryUsed,
		Cells:       layer.Cells,
		Excluded:    layer.Excluded,
	}, s.logger)
}

// LayerLeagues lists a layer's league territories and region claims
// without geometry.
type LayerLeagues struct {
	GroupingKey string                   `json:"grouping_key"`
	Leagues     []domain.LeagueTerritory `json:"leagues"`
	Claims      []domain.RegionClaim     `json:"claims,omitempty"`
	Contested   []string                 `json:"contested,omitempty"`
}

func (s *Server) handleListLeagues(w http.ResponseWriter, r *http.Request) {
	layer, ok := s.loadLayer(w, r)
	if !ok {
		return
	}
	leagues := layer.Leagues
	if leagues == nil {
		leagues = []domain.LeagueTerritory{}
	}
	response.Success(w, LayerLeagues{
		GroupingKey: layer.GroupingKey,
		Leagues:     leagues,
		Claims:      layer.Claims,
		Contested:   layer.Contested,
	}, s.logger)
}

// CellResponse is one cell with its territory geometry.
type CellResponse struct {
	domain.TerritoryCell
	Geometry *geojson.Geometry `json:"geometry,omitempty"`
}

func cellResponse(c domain.TerritoryCell) CellResponse {
	out := CellResponse{TerritoryCell: c}
	if !c.Polygon.IsEmpty() {
		out.Geometry = geojson.NewGeometry(c.Polygon.Geometry())
	}
	return out
}

func (s *Server) handleGetCell(w http.ResponseWriter, r *http.Request) {
	layer, ok := s.loadLayer(w, r)
	if !ok {
		return
	}
	team := chi.URLParam(r, "team")
	c, found := layer.Cell(team)
	if !found {
		response.NotFound(w, "no cell for team "+team, s.logger)
		return
	}
	response.Success(w, cellResponse(c), s.logger)
}

type locateQuery struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// handleLocate finds the territory containing ?lat=&lon=. Cell edges are
// straight in the projected plane, so containment is tested there.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q, err := parseLocate(r)
	if err == nil {
		err = s.validator.Validate(q)
	}
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	layer, ok := s.loadLayer(w, r)
	if !ok {
		return
	}

	pt := orb.Point{q.Lon, q.Lat}
	if !s.proj.Valid(pt) {
		response.HandleError(w, errors.Validation("point cannot be projected"), s.logger)
		return
	}
	planar := s.proj.Forward(pt)
	for _, c := range layer.Cells {
		if c.Empty || !c.Polygon.Bound().Contains(pt) {
			continue
		}
		if geo.Project(c.Polygon, s.proj).Contains(planar) {
			response.Success(w, cellResponse(c), s.logger)
			return
		}
	}
	response.NotFound(w, "no territory contains that point", s.logger)
}

func parseLocate(r *http.Request) (locateQuery, error) {
	var q locateQuery
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return q, errors.Validation("lat must be a number")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return q, errors.Validation("lon must be a number")
	}
	q.Lat, q.Lon = lat, lon
	return q, nil
}

func (s *Server) handleGetTravel(w http.ResponseWriter, r *http.Request) {
	report, err := s.stages.LoadTravel(chi.URLParam(r, "season"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if league := r.URL.Query().Get("league"); league != "" {
		for _, l := range report.Leagues {
			if l.LeagueID == league {
				response.Success(w, l, s.logger)
				return
			}
		}
		response.NotFound(w, "no travel statistics for league "+league, s.logger)
		return
	}
	response.Success(w, report, s.logger)
}

var reportStages = map[string]bool{
	string(domain.StageAddress):   true,
	string(domain.StageGeocode):   true,
	string(domain.StageTerritory): true,
	"run":                         true,
}

// handleGetReport returns a saved stage report verbatim inside the envelope.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	if !reportStages[stage] {
		response.BadRequest(w, "unknown stage "+stage, s.logger)
		return
	}
	var report map[string]any
	if err := s.stages.LoadReport(chi.URLParam(r, "season"), stage, &report); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, report, s.logger)
}
