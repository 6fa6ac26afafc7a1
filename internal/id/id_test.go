package id

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for range count {
		id, err := Generate("run")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^layer-[0-9a-z]{12}$`)

	id, err := Generate("layer")
	require.NoError(t, err)
	assert.Regexp(t, pattern, id)
}

func TestRun(t *testing.T) {
	assert.Regexp(t, `^run-[0-9a-z]{12}$`, Run())
}
