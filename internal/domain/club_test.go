package domain

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestClubRecord_Keys(t *testing.T) {
	tests := []struct {
		name     string
		record   ClubRecord
		clubKey  string
		teamKey  string
		clubName string
	}{
		{
			name:     "first team",
			record:   ClubRecord{Name: "Bath", LeagueID: "Premiership"},
			clubKey:  "bath",
			teamKey:  "bath@premiership",
			clubName: "Bath",
		},
		{
			name:     "second team shares the club",
			record:   ClubRecord{Name: "Bath II", LeagueID: "Counties 1 Western"},
			clubKey:  "bath",
			teamKey:  "bath-ii@counties-1-western",
			clubName: "Bath",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.clubKey, tt.record.ClubKey())
			assert.Equal(t, tt.teamKey, tt.record.TeamKey())
			assert.Equal(t, tt.clubName, tt.record.ClubName())
		})
	}
}

func TestAddressKey_IgnoresFormatting(t *testing.T) {
	a := NormalizedAddress{RawText: "Recreation Ground\nBath BA2 6PW"}
	b := NormalizedAddress{RawText: "recreation ground,  bath ba2 6pw"}

	assert.Equal(t, a.AddressKey(), b.AddressKey())
}

func TestGeoCoordinate_Point(t *testing.T) {
	c := GeoCoordinate{Latitude: 51.38, Longitude: -2.36}

	assert.Equal(t, orb.Point{-2.36, 51.38}, c.Point())
}

func TestTerritoryLayer_Cell(t *testing.T) {
	l := &TerritoryLayer{Cells: []TerritoryCell{{TeamKey: "a@x"}, {TeamKey: "b@x"}}}

	c, ok := l.Cell("b@x")
	assert.True(t, ok)
	assert.Equal(t, "b@x", c.TeamKey)

	_, ok = l.Cell("c@x")
	assert.False(t, ok)
}
