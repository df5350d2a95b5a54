package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Pinger can be implemented by components to expose a specialized health
// probe. Ping must return nil when the component is healthy.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is implemented by component-level checkers (store, notify
// sender).
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds component checkers into one service flag and
// names the failing components when health degrades.
type ServiceHealthChecker struct {
	healthy atomic.Bool
	deps    []HealthChecker
	log     zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// IsHealthy returns cached service health.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() }

// Components reports per-component health, keyed by checker name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps))
	for _, c := range h.deps {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Start periodically re-evaluates dependency health and updates the service
// flag, logging only on transitions.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasHealthy := false
	eval := func() {
		var failing []string
		for _, c := range h.deps {
			if !c.IsHealthy() {
				failing = append(failing, c.Name())
			}
		}
		ok := len(failing) == 0
		h.healthy.Store(ok)
		if ok != wasHealthy {
			if ok {
				h.log.Info().Msg("service health up")
			} else {
				h.log.Error().Strs("failing", failing).Msg("service health down")
			}
			wasHealthy = ok
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
