package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Permanentf("club %s has no maps link", "bath")

	assert.True(t, Is(err, ErrPermanent))
	assert.False(t, Is(err, ErrTransient))
	assert.Equal(t, "club bath has no maps link", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := Wrap(cause, CodeTransient, "fetch profile")

	assert.True(t, Is(err, ErrTransient))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fetch profile: dial tcp: timeout", err.Error())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"coded", Configuration("bad boundary"), CodeConfiguration},
		{"wrapped coded", fmt.Errorf("layer: %w", Degeneratef("coincident")), CodeDegenerate},
		{"deadline", context.DeadlineExceeded, CodeTransient},
		{"plain", fmt.Errorf("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient("429")))
	assert.False(t, IsTransient(Permanent("404")))
	assert.False(t, IsTransient(ErrTransientExhausted))
	assert.True(t, IsPermanent(fmt.Errorf("x: %w", Permanent("gone"))))
}

func TestCode_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, CodeNotFound.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, CodeConfiguration.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, CodeTransient.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, CodeDegenerate.HTTPStatus())
}

func TestWithDetails_DoesNotMutate(t *testing.T) {
	base := Validation("bad record")
	withDetails := base.WithDetails(map[string]string{"field": "league_id"})

	assert.Nil(t, base.Details)
	assert.NotNil(t, withDetails.Details)
	assert.Equal(t, base.Code, withDetails.Code)
}
