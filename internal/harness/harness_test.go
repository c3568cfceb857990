package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/testutil"
)

func parse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestRun_Minimal(t *testing.T) {
	h := New(testutil.Catalog(t))

	result, err := h.Run(context.Background(), parse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "minimal-0001", result.RunID)
	assert.Empty(t, result.ErrorCode)
	require.Len(t, result.Edits, 1)
	assert.Equal(t, "ExistingEvents[11000800].Edits[0]", result.Edits[0].Source)
	assert.Equal(t, "RemoveFirst", result.Edits[0].Kind)
	assert.Equal(t, result.RunID, result.Edits[0].RunID)

	ev := result.Event("m10_00", 11000800)
	require.NotNil(t, ev)
	assert.Empty(t, ev.Commands)
}

func TestRun_AssertionFailure(t *testing.T) {
	h := New(testutil.Catalog(t))
	s := parse(t, minimalScenario)
	s.Assertions = []Assertion{{Type: AssertEditCount, Source: "ExistingEvents", Count: 5}}

	result, err := h.Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "5 edits from ExistingEvents")
}

func TestRun_ExpectedError(t *testing.T) {
	h := New(testutil.Catalog(t))
	scenario, err := LoadScenario("testdata/scenarios/missing_match.yaml")
	require.NoError(t, err)

	result, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "MATCH_NOT_FOUND", result.ErrorCode)
	assert.Contains(t, result.RunError, "HandleBossDefeat(2000)")
	assert.Empty(t, result.Maps)
	assert.Empty(t, result.Edits)
}

func TestRun_ErrorMismatch(t *testing.T) {
	h := New(testutil.Catalog(t))

	t.Run("unexpected failure", func(t *testing.T) {
		s, err := LoadScenario("testdata/scenarios/missing_match.yaml")
		require.NoError(t, err)
		s.ExpectError = ""
		result, err := h.Run(context.Background(), s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "patch failed")
	})
	t.Run("wrong code", func(t *testing.T) {
		s, err := LoadScenario("testdata/scenarios/missing_match.yaml")
		require.NoError(t, err)
		s.ExpectError = "INCOMPLETE_TEMPLATE"
		result, err := h.Run(context.Background(), s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "expected error INCOMPLETE_TEMPLATE")
	})
	t.Run("unexpected success", func(t *testing.T) {
		s := parse(t, minimalScenario)
		s.ExpectError = "MATCH_NOT_FOUND"
		result, err := h.Run(context.Background(), s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "patch succeeded")
	})
}

func TestRun_UnusableScenario(t *testing.T) {
	h := New(testutil.Catalog(t))

	t.Run("bad command", func(t *testing.T) {
		s := parse(t, minimalScenario)
		s.Scripts[0].Events[0].Commands = []string{"NoSuchInstruction(1)"}
		_, err := h.Run(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to build scripts")
	})
	t.Run("bad options", func(t *testing.T) {
		s := parse(t, minimalScenario)
		s.Options = "nosuchoption"
		_, err := h.Run(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "options:")
	})
}

func TestRun_Deterministic(t *testing.T) {
	h := New(testutil.Catalog(t))
	scenario, err := LoadScenario("testdata/scenarios/boss_duplicate.yaml")
	require.NoError(t, err)

	first, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, first.Pass, "errors: %v", first.Errors)
	assert.Equal(t, first, second)
}
