package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/itayakad/juno-master/internal/aggregate"
	"github.com/itayakad/juno-master/internal/views"
)

var sampleDays = []Day{
	{Date: "6/1/2024", Summary: "800 kcal", Lines: []string{"Breakfast  300 kcal", "Dinner  500 kcal"}},
	{Date: "6/2/2024", Summary: "200 kcal", Lines: []string{"Lunch  200 kcal"}, Undated: 1},
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if result := cmd(); result != nil {
			if _, quit := result.(tea.QuitMsg); !quit {
				next, _ = m.Update(result)
				m = next.(Model)
			}
		}
	}
	return m
}

func TestModelTogglesSelectedDay(t *testing.T) {
	m := NewModel(context.Background(), nil, "u1", "meal", "Meals", sampleDays, nil)

	view := m.View()
	require.Contains(t, view, "+ 6/1/2024  800 kcal")
	require.NotContains(t, view, "Breakfast")

	m = press(t, m, "enter")
	require.True(t, m.state.Expanded("6/1/2024"))
	require.Contains(t, m.View(), "Breakfast  300 kcal")
	require.Contains(t, m.View(), "Expanded 6/1/2024")

	m = press(t, m, "j")
	m = press(t, m, "enter")
	require.True(t, m.state.Expanded("6/2/2024"))
	require.Contains(t, m.View(), "(1 undated)")

	m = press(t, m, "k")
	m = press(t, m, "enter")
	require.False(t, m.state.Expanded("6/1/2024"))
	require.True(t, m.state.Expanded("6/2/2024"))
}

func TestModelPersistsThroughStore(t *testing.T) {
	ctx := context.Background()
	store := views.NewMemoryStore()
	m := NewModel(ctx, store, "u1", "meal", "Meals", sampleDays, nil)

	m = press(t, m, "enter")

	stored, err := store.Get(ctx, "u1", "meal")
	require.NoError(t, err)
	require.True(t, stored.Expanded("6/1/2024"))
	require.Equal(t, stored, m.state)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (aggregate.ExpansionState, error) {
	return aggregate.ExpansionState{}, nil
}

func (failingStore) Toggle(context.Context, string, string, string) (aggregate.ExpansionState, error) {
	return nil, errors.New("redis down")
}

func TestModelKeepsStateWhenToggleFails(t *testing.T) {
	m := NewModel(context.Background(), failingStore{}, "u1", "meal", "Meals", sampleDays, aggregate.ExpansionState{"6/1/2024": true})

	m = press(t, m, "enter")
	require.True(t, m.state.Expanded("6/1/2024"))
	require.Contains(t, m.View(), "redis down")
}

func TestRenderEmpty(t *testing.T) {
	require.Contains(t, Render("Meals", nil, nil, -1), "(no logs)")
}
