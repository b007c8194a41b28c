package aggregate

// ExpansionState records which date groups are expanded. Missing keys are
// collapsed.
type ExpansionState map[string]bool

// ToggleExpansion returns a copy of state with key flipped. A key absent
// from state is treated as collapsed, so it comes back expanded. state is
// never modified.
func ToggleExpansion(key string, state ExpansionState) ExpansionState {
	next := make(ExpansionState, len(state)+1)
	for k, v := range state {
		next[k] = v
	}
	next[key] = !state[key]
	return next
}

// Expanded reports whether key is expanded.
func (s ExpansionState) Expanded(key string) bool {
	return s[key]
}
