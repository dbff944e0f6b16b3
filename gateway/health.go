package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthCheck probes one collaborator. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 5 * time.Second

// health fans out over every registered probe concurrently and reports
// per-collaborator status. The endpoint itself always answers 200; overall
// status degrades when any probe fails.
func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		statuses = make(map[string]string, len(g.checks))
	)
	eg, ctx := errgroup.WithContext(ctx)
	for name, check := range g.checks {
		eg.Go(func() error {
			status := "healthy"
			if err := check(ctx); err != nil {
				status = "unhealthy"
				g.logger.Warn("health check failed",
					zap.String("collaborator", name),
					zap.Error(err))
			}
			mu.Lock()
			statuses[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	overall := "healthy"
	for _, status := range statuses {
		if status != "healthy" {
			overall = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        overall,
		"version":       g.version,
		"collaborators": statuses,
	})
}
