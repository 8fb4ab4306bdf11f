package controllers

import (
	"context"
	"net/http"

	"github.com/lokabekas/lokabekas-backend/api/responses"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

// Pinger is the health surface a readiness dependency exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive answers liveness probes.
func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady answers readiness probes by pinging every named dependency.
func HealthReady(logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" is unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
