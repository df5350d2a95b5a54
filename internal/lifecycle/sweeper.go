package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Sweeper re-evaluates tribe lifecycle on a fixed cadence and immediately
// after activity-producing events published on the bus.
type Sweeper struct {
	engine   *Engine
	store    store.Store
	bus      *events.Bus
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(engine *Engine, s store.Store, bus *events.Bus, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{engine: engine, store: s, bus: bus, interval: interval, log: log}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("lifecycle sweeper starting")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var eventCh <-chan events.Event
	if s.bus != nil {
		eventCh = s.bus.Subscribe()
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("lifecycle sweeper stopping")
			return ctx.Err()
		case evt := <-eventCh:
			if evt.TribeID == "" {
				continue
			}
			if _, err := s.engine.EvaluateTribe(ctx, evt.TribeID); err != nil {
				s.log.Warn().Err(err).Str("tribe", evt.TribeID).Msg("event-triggered lifecycle evaluation failed")
			}
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	tribes, err := s.store.Tribes().List(ctx, []model.TribeStatus{
		model.TribeForming, model.TribeActive, model.TribeAtRisk, model.TribeInactive,
	})
	if err != nil {
		s.log.Error().Stack().Err(err).Msg("lifecycle sweep: listing tribes failed")
		return
	}
	for _, t := range tribes {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.engine.EvaluateTribe(ctx, t.TribeID); err != nil {
			s.log.Warn().Err(err).Str("tribe", t.TribeID).Msg("lifecycle evaluation failed")
		}
	}
}
