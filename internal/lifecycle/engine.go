package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Transition describes an applied status change.
type Transition struct {
	TribeID string            `json:"tribeId"`
	From    model.TribeStatus `json:"from"`
	To      model.TribeStatus `json:"to"`
}

// Engine loads a tribe's inputs, evaluates the state machine, and applies
// the result. All call sites go through here instead of re-deriving status
// inline.
type Engine struct {
	store store.Store
	log   zerolog.Logger
	// now is swappable for tests.
	now func() time.Time
}

func NewEngine(s store.Store, log zerolog.Logger) *Engine {
	return &Engine{store: s, log: log, now: time.Now}
}

// EvaluateTribe re-derives the tribe's status and applies any transition
// with a compare-and-set update, recording a STATUS_CHANGED activity entry.
// Returns nil when no rule fires. A lost CAS race is not an error: another
// evaluator already moved the tribe.
func (e *Engine) EvaluateTribe(ctx context.Context, tribeID string) (*Transition, error) {
	tribe, err := e.store.Tribes().Get(ctx, tribeID)
	if err != nil {
		return nil, err
	}
	if tribe.Status == model.TribeDissolved {
		return nil, nil
	}
	active, err := e.store.Memberships().CountActive(ctx, tribeID)
	if err != nil {
		return nil, err
	}

	since := e.now().UTC().Sub(tribe.LastActivityAt)
	next, changed := Evaluate(tribe.Status, active, tribe.MinMembers, since)
	if !changed {
		return nil, nil
	}

	if err := e.store.Tribes().UpdateStatus(ctx, tribeID, tribe.Status, next); err != nil {
		if errors.Is(err, model.ErrConflict) {
			e.log.Debug().Str("tribe", tribeID).Msg("lifecycle transition lost CAS race")
			return nil, nil
		}
		return nil, err
	}

	if _, err := e.store.Activities().Append(ctx, &model.Activity{
		TribeID:     tribeID,
		Type:        model.ActivityStatusChanged,
		Description: fmt.Sprintf("tribe status changed from %s to %s", tribe.Status, next),
		Metadata:    map[string]interface{}{"from": string(tribe.Status), "to": string(next)},
	}); err != nil {
		e.log.Warn().Err(err).Str("tribe", tribeID).Msg("status-change activity append failed")
	}

	e.log.Info().Str("tribe", tribeID).Str("from", string(tribe.Status)).Str("to", string(next)).Msg("tribe status transitioned")
	return &Transition{TribeID: tribeID, From: tribe.Status, To: next}, nil
}
