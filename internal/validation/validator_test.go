package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/validation"
)

type testRecord struct {
	Name     string  `json:"name" validate:"required"`
	Season   string  `json:"season" validate:"required,season"`
	Detail   string  `json:"detail" validate:"oneof=BFE BFC BGC BSC BUC"`
	Latitude float64 `json:"lat" validate:"latitude"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRecord{Name: "Bath", Season: "2025-2026", Detail: "BUC", Latitude: 51.38})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		rec       testRecord
		wantField string
	}{
		{
			name:      "missing name",
			rec:       testRecord{Season: "2025-2026", Detail: "BUC"},
			wantField: "name",
		},
		{
			name:      "bad season",
			rec:       testRecord{Name: "Bath", Season: "2025/26", Detail: "BUC"},
			wantField: "season",
		},
		{
			name:      "unknown detail",
			rec:       testRecord{Name: "Bath", Season: "2025-2026", Detail: "XYZ"},
			wantField: "detail",
		},
		{
			name:      "latitude out of range",
			rec:       testRecord{Name: "Bath", Season: "2025-2026", Detail: "BFE", Latitude: 95},
			wantField: "lat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.rec)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.Contains(t, domainErr.Message, tt.wantField)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, "testRecord."+tt.wantField)
		})
	}
}
