package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToggleExpansionAbsentKeyBecomesExpanded(t *testing.T) {
	next := ToggleExpansion("6/1/2024", nil)
	require.True(t, next.Expanded("6/1/2024"))
}

func TestToggleExpansionFlipsOnlyTheKey(t *testing.T) {
	state := ExpansionState{"6/1/2024": true, "6/2/2024": false, "6/3/2024": true}

	next := ToggleExpansion("6/1/2024", state)

	require.Equal(t, ExpansionState{"6/1/2024": false, "6/2/2024": false, "6/3/2024": true}, next)
	require.True(t, state["6/1/2024"], "input state must not change")
}

func TestToggleExpansionTwiceRestoresValue(t *testing.T) {
	state := ExpansionState{"6/2/2024": true}
	next := ToggleExpansion("6/2/2024", ToggleExpansion("6/2/2024", state))
	require.Equal(t, state, next)
}
