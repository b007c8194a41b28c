package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/events"
	"github.com/itayakad/juno-master/internal/observability"
)

// ProjectionHandler folds log events into the per-user profile counters.
type ProjectionHandler struct {
	profiles domain.ProfileStore
	now      func() time.Time
	// mu serialises read-modify-write cycles within this process; across
	// processes, ordering comes from keying log events by user.
	mu sync.Mutex
}

// NewProjectionHandler constructs a handler writing to the provided store.
func NewProjectionHandler(profiles domain.ProfileStore) *ProjectionHandler {
	return &ProjectionHandler{profiles: profiles, now: time.Now}
}

// Handle implements Handler.
func (h *ProjectionHandler) Handle(ctx context.Context, msg Message) error {
	return h.Apply(ctx, msg.EventType, msg.Payload)
}

// Apply projects one event payload. Unknown event types and imported logs
// leave the profile untouched.
func (h *ProjectionHandler) Apply(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case events.TypeLogCreated:
		var evt events.LogCreated
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		if evt.Imported {
			recordSkipped("imported")
			return nil
		}
		return h.update(ctx, evt.UserID, func(p domain.UserProfile, at time.Time) domain.UserProfile {
			return p.ApplyCreated(evt, at)
		})
	case events.TypeLogDeleted:
		var evt events.LogDeleted
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return h.update(ctx, evt.UserID, func(p domain.UserProfile, at time.Time) domain.UserProfile {
			return p.ApplyDeleted(evt, at)
		})
	default:
		recordSkipped("event_type")
		return nil
	}
}

func (h *ProjectionHandler) update(ctx context.Context, userID string, apply func(domain.UserProfile, time.Time) domain.UserProfile) error {
	if userID == "" {
		recordSkipped("missing_user")
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	profile := domain.UserProfile{UserID: userID}
	if current != nil {
		profile = *current
	}

	at := h.now().UTC()
	next := apply(profile, at)
	if sameCounters(profile, next) {
		return nil
	}
	if err := h.profiles.SaveProfile(ctx, next); err != nil {
		return err
	}
	observability.RecordProfileProjected(at)
	return nil
}

func sameCounters(a, b domain.UserProfile) bool {
	return a.ExerciseMinutes == b.ExerciseMinutes &&
		a.CaloriesConsumed == b.CaloriesConsumed &&
		a.ProteinConsumed == b.ProteinConsumed &&
		slices.Equal(a.WorkoutDays, b.WorkoutDays)
}
