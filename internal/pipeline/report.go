package pipeline

import (
	"time"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/resolve"
)

// StageReport summarizes one resolver stage.
type StageReport struct {
	Stage      domain.Stage        `json:"stage"`
	Season     string              `json:"season"`
	Records    int                 `json:"records"`
	Summary    resolve.Summary     `json:"summary"`
	Unresolved []domain.Unresolved `json:"unresolved"`
	// SourceErrors lists listings that could not be read.
	SourceErrors []string `json:"source_errors,omitempty"`
}

// LayerSummary is the report line for one layer.
type LayerSummary struct {
	GroupingKey string             `json:"grouping_key"`
	Cells       int                `json:"cells"`
	EmptyCells  int                `json:"empty_cells"`
	Excluded    []domain.Exclusion `json:"excluded,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// TerritoryReport summarizes the territory stage.
type TerritoryReport struct {
	Season   string         `json:"season"`
	Boundary string         `json:"boundary"`
	Points   int            `json:"points"`
	Layers   []LayerSummary `json:"layers"`
}

// Report covers a full run. Every team that did not make it onto a layer
// appears in Unresolved once, with the first stage that dropped it.
type Report struct {
	RunID      string              `json:"run_id"`
	Season     string              `json:"season"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Addresses  *StageReport        `json:"addresses,omitempty"`
	Geocode    *StageReport        `json:"geocode,omitempty"`
	Territory  *TerritoryReport    `json:"territory,omitempty"`
	Unresolved []domain.Unresolved `json:"unresolved"`
}

// Unresolved lists each team excluded from any layer once, with the reason
// from the first layer that excluded it.
func (t *TerritoryReport) Unresolved() []domain.Unresolved {
	var out []domain.Unresolved
	seen := make(map[string]bool)
	for _, l := range t.Layers {
		for _, x := range l.Excluded {
			if seen[x.TeamKey] {
				continue
			}
			seen[x.TeamKey] = true
			out = append(out, domain.Unresolved{
				ClubKey:  x.ClubKey,
				Name:     x.Name,
				LeagueID: x.LeagueID,
				Stage:    domain.StageTerritory,
				Code:     x.Code,
				Reason:   x.Reason,
			})
		}
	}
	return out
}

func summarizeLayer(l *domain.TerritoryLayer) LayerSummary {
	s := LayerSummary{
		GroupingKey: l.GroupingKey,
		Cells:       len(l.Cells),
		Excluded:    l.Excluded,
		Warnings:    l.Warnings,
	}
	for _, c := range l.Cells {
		if c.Empty {
			s.EmptyCells++
		}
	}
	return s
}
