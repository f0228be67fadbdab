package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/bistro-backend/api/responses"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const (
	envHeader        = "X-Bistro-Env"
	readinessTimeout = 2 * time.Second
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency concurrently. Nil pingers are
// reported as skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(deps))
		statuses := make([]string, 0, len(deps))
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
			statuses = append(statuses, "")
		}

		g, gctx := errgroup.WithContext(ctx)
		for i, name := range names {
			pinger := deps[name]
			if pinger == nil {
				statuses[i] = "skipped"
				continue
			}
			g.Go(func() error {
				if err := pinger.Ping(gctx); err != nil {
					statuses[i] = "down"
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]any{"dependency": name})
				}
				statuses[i] = "up"
				return nil
			})
		}
		err := g.Wait()
		for i, name := range names {
			if statuses[i] == "" {
				statuses[i] = "unknown"
			}
			results[name] = statuses[i]
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": results})
	}
}
