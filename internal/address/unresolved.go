package address

import (
	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/resolve"
)

// Unresolved lists every record whose club failed to resolve, one entry per
// record so that each squad sharing a failed club is reported.
func Unresolved(records []domain.ClubRecord, results map[string]resolve.Result[domain.NormalizedAddress]) []domain.Unresolved {
	var out []domain.Unresolved
	for _, rec := range records {
		res, ok := results[rec.ClubKey()]
		if !ok || res.OK() {
			continue
		}
		reason := "unresolved"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		out = append(out, domain.Unresolved{
			ClubKey:  rec.ClubKey(),
			Name:     rec.Name,
			LeagueID: rec.LeagueID,
			Stage:    domain.StageAddress,
			Code:     string(errors.CodeOf(res.Err)),
			Reason:   reason,
			Attempts: len(res.Attempts),
		})
	}
	return out
}
