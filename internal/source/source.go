// Package source reads the league listings that seed the pipeline.
package source

import (
	"encoding/json"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/normalize"
	"github.com/rugbymap/rugbymap/internal/validation"
)

// leagueFile is the on-disk listing format.
type leagueFile struct {
	LeagueName string `json:"league_name"`
	LeagueURL  string `json:"league_url"`
	Teams      []struct {
		Name     string `json:"name"`
		URL      string `json:"url"`
		ImageURL string `json:"image_url"`
	} `json:"teams"`
}

// League is one parsed listing.
type League struct {
	ID       string
	File     string
	Tier     string
	Division string
	Records  []domain.ClubRecord
	// Skipped counts placeholder and invalid entries.
	Skipped int
}

// LeagueFiles reads league_data/<season>/*.json.
type LeagueFiles struct {
	dir       string
	validator *validation.Validator
	logger    *slog.Logger
}

// NewLeagueFiles creates a reader rooted at dir.
func NewLeagueFiles(dir string, v *validation.Validator, log *slog.Logger) *LeagueFiles {
	if v == nil {
		v = validation.New()
	}
	return &LeagueFiles{dir: dir, validator: v, logger: logger.OrDiscard(log)}
}

// Files lists a season's listing files in name order.
func (s *LeagueFiles) Files(season string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, season))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("no league listings for season %s", season)
		}
		return nil, errors.Wrapf(err, errors.CodeInternal, "list leagues for %s", season)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// League parses one listing. Placeholder teams and entries that fail
// validation are skipped and counted.
func (s *LeagueFiles) League(season, file string) (*League, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, season, file))
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "read %s", file)
	}
	var lf leagueFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "parse %s", file)
	}
	if lf.LeagueName == "" {
		return nil, errors.Validationf("%s has no league_name", file)
	}

	tier := InferTier(file)
	l := &League{
		ID:       lf.LeagueName,
		File:     file,
		Tier:     tier,
		Division: InferDivision(file, tier),
	}
	for _, t := range lf.Teams {
		if normalize.IsPlaceholder(t.Name) {
			l.Skipped++
			continue
		}
		rec := domain.ClubRecord{
			Name:       strings.TrimSpace(t.Name),
			LeagueID:   lf.LeagueName,
			Tier:       tier,
			Season:     season,
			ProfileRef: t.URL,
			Division:   l.Division,
			ImageURL:   t.ImageURL,
		}
		if err := s.validator.Validate(rec); err != nil {
			s.logger.Warn("skipping team", "league", lf.LeagueName, "team", t.Name, "error", err)
			l.Skipped++
			continue
		}
		l.Records = append(l.Records, rec)
	}
	return l, nil
}

// Leagues yields every listing of a season. A listing that cannot be read
// is yielded as an error and iteration continues.
func (s *LeagueFiles) Leagues(season string) iter.Seq2[*League, error] {
	return func(yield func(*League, error) bool) {
		files, err := s.Files(season)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, f := range files {
			if !yield(s.League(season, f)) {
				return
			}
		}
	}
}

// Records yields every club record of a season, league by league.
func (s *LeagueFiles) Records(season string) iter.Seq2[domain.ClubRecord, error] {
	return func(yield func(domain.ClubRecord, error) bool) {
		for l, err := range s.Leagues(season) {
			if err != nil {
				if !yield(domain.ClubRecord{}, err) {
					return
				}
				continue
			}
			for _, rec := range l.Records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Collect drains a record sequence, gathering errors separately.
func Collect(seq iter.Seq2[domain.ClubRecord, error]) ([]domain.ClubRecord, []error) {
	var (
		recs []domain.ClubRecord
		errs []error
	)
	for rec, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errs
}
