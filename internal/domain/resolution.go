package domain

import "time"

// Outcome classifies a single resolution attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomePermanentFailure Outcome = "permanent_failure"
)

// AttemptRecord describes one network attempt for one entity. Attempt
// records live for a single run and are never persisted.
type AttemptRecord struct {
	Number  int       `json:"number"`
	Outcome Outcome   `json:"outcome"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Stage names a pipeline stage in reports.
type Stage string

const (
	StageAddress   Stage = "address"
	StageGeocode   Stage = "geocode"
	StageTerritory Stage = "territory"
)

// Unresolved records a club that could not be carried into tessellation.
type Unresolved struct {
	ClubKey  string `json:"club_key"`
	Name     string `json:"name"`
	LeagueID string `json:"league_id,omitempty"`
	Stage    Stage  `json:"stage"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}
