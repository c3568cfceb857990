package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/testutil"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	h := New(testutil.Catalog(t))

	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, h, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot(t *testing.T) {
	r := NewResult()
	r.Maps = nil
	r.ErrorCode = "MATCH_NOT_FOUND"

	data, err := MarshalSnapshot("missing", r)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"scenario\": \"missing\",\n  \"error_code\": \"MATCH_NOT_FOUND\",\n  \"maps\": []\n}\n", string(data))
}
