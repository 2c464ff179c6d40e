// Package engagement caps how often a secondary lead-capture prompt may be
// shown within one browsing session, with one-shot trigger categories and a
// permanent-dismiss override.
package engagement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/models"
	"github.com/jordanlanch/leadintake/pkg/session"
)

const stateKey = "engagement"

// TriggerExitIntent is the "about to leave the page" trigger; it may fire at
// most once per session regardless of remaining counter capacity.
const TriggerExitIntent = "exit_intent"

// Throttle governs prompt presentations for one session
type Throttle struct {
	store    session.Store
	cap      int
	oneShots map[string]bool
	log      logger.Logger
}

// NewThrottle creates a throttle with the given session cap. exit_intent is
// the only default one-shot category.
func NewThrottle(store session.Store, cap int, log logger.Logger) *Throttle {
	if log == nil {
		log = logger.Default()
	}
	return &Throttle{
		store:    store,
		cap:      cap,
		oneShots: map[string]bool{TriggerExitIntent: true},
		log:      log,
	}
}

// RequestShow decides whether a prompt for the given trigger category may be
// shown. Allowing a show increments the session counter and, for one-shot
// categories, burns the category for the rest of the session. force bypasses
// every refusal but still counts the presentation.
func (t *Throttle) RequestShow(ctx context.Context, trigger string, force bool) (bool, error) {
	state, err := t.load(ctx)
	if err != nil {
		return false, fmt.Errorf("engagement state unreadable: %w", err)
	}

	if !force {
		if state.Dismissed {
			return false, nil
		}
		if t.oneShots[trigger] && state.UsedOneShots[trigger] {
			return false, nil
		}
		if state.ShownCount >= t.cap {
			return false, nil
		}
	}

	state.ShownCount++
	state.LastTrigger = trigger
	if t.oneShots[trigger] {
		if state.UsedOneShots == nil {
			state.UsedOneShots = map[string]bool{}
		}
		state.UsedOneShots[trigger] = true
	}

	if err := t.save(ctx, state); err != nil {
		return false, fmt.Errorf("engagement state unwritable: %w", err)
	}
	return true, nil
}

// Dismiss records a dismissal. permanent suppresses all future non-forced
// prompts for the remainder of the session.
func (t *Throttle) Dismiss(ctx context.Context, permanent bool) error {
	if !permanent {
		return nil
	}

	state, err := t.load(ctx)
	if err != nil {
		return fmt.Errorf("engagement state unreadable: %w", err)
	}
	state.Dismissed = true
	return t.save(ctx, state)
}

// State returns a copy of the current engagement counters
func (t *Throttle) State(ctx context.Context) (models.EngagementSession, error) {
	return t.load(ctx)
}

func (t *Throttle) load(ctx context.Context) (models.EngagementSession, error) {
	var state models.EngagementSession

	raw, ok, err := t.store.Get(ctx, stateKey)
	if err != nil {
		return state, err
	}
	if !ok {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt blob resets the session's counters
		t.log.Warn("engagement state corrupt, resetting", "error", err)
		return models.EngagementSession{}, nil
	}
	return state, nil
}

func (t *Throttle) save(ctx context.Context, state models.EngagementSession) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, stateKey, string(raw))
}
