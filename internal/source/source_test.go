package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugbymap/rugbymap/internal/domain"
	"github.com/rugbymap/rugbymap/internal/errors"
)

func writeLeague(t *testing.T, dir, season, file, body string) {
	t.Helper()
	path := filepath.Join(dir, season, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestInferTier(t *testing.T) {
	tests := map[string]string{
		"Premiership.json":                  "Premiership",
		"Regional_1_South_West.json":        "Regional 1",
		"Counties_3_Hampshire.json":         "Counties 3",
		"Women's_Premiership.json":          "Premiership Women's",
		"Women's_Championship_North_1.json": "Championship 1",
		"Women's_Championship_South_2.json": "Championship 2",
		"Women's_NC_2_Midlands.json":        "National Challenge 2",
		"Cumbria_Conference_2.json":         "Counties 3",
		"Merit_Table.json":                  domain.TierUnknown,
	}
	for file, want := range tests {
		t.Run(file, func(t *testing.T) {
			assert.Equal(t, want, InferTier(file))
		})
	}
}

func TestLeagueFiles_Records(t *testing.T) {
	dir := t.TempDir()
	writeLeague(t, dir, "2025-2026", "Regional_1_South_West.json", `{
		"league_name": "Regional 1 South West",
		"league_url": "https://example.com/r1sw",
		"teams": [
			{"name": "Clifton", "url": "https://example.com/clubs/clifton", "image_url": "https://example.com/c.png"},
			{"name": "To be arranged", "url": ""},
			{"name": "Nameless Ref", "url": ""}
		]
	}`)
	writeLeague(t, dir, "2025-2026", "Women's_Premiership.json", `{
		"league_name": "Women's Premiership",
		"teams": [{"name": "Gloucester-Hartpury", "url": "https://example.com/clubs/gh"}]
	}`)
	writeLeague(t, dir, "2025-2026", "broken.json", `{not json`)

	files := NewLeagueFiles(dir, nil, nil)

	recs, errs := Collect(files.Records("2025-2026"))

	require.Len(t, errs, 1)
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(errs[0]))
	require.Len(t, recs, 2)

	clifton := recs[0]
	assert.Equal(t, "Clifton", clifton.Name)
	assert.Equal(t, "Regional 1 South West", clifton.LeagueID)
	assert.Equal(t, "Regional 1", clifton.Tier)
	assert.Equal(t, domain.DivisionMen, clifton.Division)
	assert.Equal(t, "2025-2026", clifton.Season)
	assert.Equal(t, "https://example.com/c.png", clifton.ImageURL)

	assert.Equal(t, domain.DivisionWomen, recs[1].Division)
	assert.Equal(t, "Premiership Women's", recs[1].Tier)

	league, err := files.League("2025-2026", "Regional_1_South_West.json")
	require.NoError(t, err)
	assert.Equal(t, 2, league.Skipped)
}

func TestLeagueFiles_MissingSeason(t *testing.T) {
	_, errs := Collect(NewLeagueFiles(t.TempDir(), nil, nil).Records("1999-2000"))

	require.Len(t, errs, 1)
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(errs[0]))
}
