package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClubName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bath", "Bath"},
		{"Bath II", "Bath"},
		{"Old Albanians III", "Old Albanians"},
		{"Sale FC iv", "Sale FC"},
		{"  Wasps   ", "Wasps"},
		{"II", "II"},
		{"Henley Hawks 2XV", "Henley Hawks"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ClubName(tt.in))
		})
	}
}

func TestClubKey_SharedAcrossSquads(t *testing.T) {
	assert.Equal(t, "bath", ClubKey("Bath"))
	assert.Equal(t, ClubKey("Bath"), ClubKey("Bath II"))
	assert.Equal(t, "st-ives-cornwall", ClubKey("St. Ives (Cornwall)"))
	assert.Equal(t, "ealing-trailfinders", ClubKey("  Ealing   Trailfinders "))
	assert.Equal(t, "bromsgrove", ClubKey("Brömsgrove"))
}

func TestTeamKey_DistinguishesSquadsAndLeagues(t *testing.T) {
	assert.Equal(t, "bath@premiership", TeamKey("Bath", "Premiership"))
	assert.Equal(t, "bath-ii@regional-1-south-west", TeamKey("Bath II", "Regional 1 South West"))
	assert.NotEqual(t, TeamKey("Bath", "A"), TeamKey("Bath", "B"))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder("To be arranged 3"))
	assert.False(t, IsPlaceholder("Bath"))
}

func TestAddressText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"newlines", "Recreation Ground\nSpring Gardens Road\nBath\nBA2 6PW", "Recreation Ground, Spring Gardens Road, Bath, BA2 6PW"},
		{"crlf", "A\r\nB", "A, B"},
		{"spacing", "  The   Rec ,Bath  ,  BA2 ", "The Rec, Bath, BA2"},
		{"empty segments", "Ground,, ,Town", "Ground, Town"},
		{"fullwidth", "ＢＡ２ ６ＰＷ", "BA2 6PW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddressText(tt.in))
		})
	}
}

func TestAddressKey_Deterministic(t *testing.T) {
	a := AddressKey("Recreation Ground\nBath")
	b := AddressKey("  recreation ground ,  BATH ")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, AddressKey("Recreation Ground, Bristol"))
}

func TestPostcode(t *testing.T) {
	assert.Equal(t, "BA2 6PW", Postcode("The Rec, Bath BA2 6PW"))
	assert.Equal(t, "SW1A 1AA", Postcode("somewhere sw1a1aa london"))
	assert.Equal(t, "M1 1AE", Postcode("Manchester m1 1ae"))
	assert.Equal(t, "", Postcode("No postcode here"))
}
