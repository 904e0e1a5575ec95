package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbansafe/evacroute/internal/engine"
	"github.com/urbansafe/evacroute/internal/model"
	"github.com/urbansafe/evacroute/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the route engine HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := newRouter(ctx, env)

		// Periodic sweeps
		go runTicker(ctx, time.Duration(cfg.Session.SweepIntervalSecs)*time.Second, func() {
			if _, err := env.Engine.EvaluateAllSessions(ctx, engine.TriggerPeriodicSweep); err != nil {
				zap.L().Error("periodic sweep failed", zap.Error(err))
			}
		})
		go runTicker(ctx, time.Duration(cfg.Session.EvictIntervalSecs)*time.Second, func() {
			env.Engine.EvictExpiredSessions()
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP surface over an initialized environment. ctx
// bounds the background fan-out a seismic push triggers.
func newRouter(ctx context.Context, env *env) chi.Router {
	collector := monitoring.NewCollector(env.Engine.Counters(), env.Engine.Sessions())

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		snap := collector.Collect()
		writeJSON(w, http.StatusOK, map[string]any{
			"metrics":  snap,
			"findings": monitoring.Check(snap, monitoring.DefaultThresholds()),
		})
	})

	r.Post("/route", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Origin model.LatLng `json:"origin"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, eris.Wrap(engine.ErrInvalidInput, "decode body"))
			return
		}
		result, err := env.Engine.CalculateRoute(req.Context(), body.Origin)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/sessions", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Origin model.LatLng `json:"origin"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, eris.Wrap(engine.ErrInvalidInput, "decode body"))
			return
		}
		id, result, err := env.Engine.CreateSession(req.Context(), body.Origin)
		if err != nil && id == "" {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id": id,
			"route":      result,
			"degraded":   err != nil,
		})
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		snap, err := env.Engine.GetSessionSnapshot(chi.URLParam(req, "id"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Patch("/sessions/{id}/location", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Location model.LatLng         `json:"location"`
			Reports  []model.HazardReport `json:"hazard_reports,omitempty"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, eris.Wrap(engine.ErrInvalidInput, "decode body"))
			return
		}
		route, changed, err := env.Engine.UpdateSessionLocation(req.Context(), chi.URLParam(req, "id"), body.Location, body.Reports)
		if err != nil && route == nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"route":    route,
			"changed":  changed,
			"degraded": err != nil,
		})
	})

	r.Post("/sessions/{id}/complete", func(w http.ResponseWriter, req *http.Request) {
		if err := env.Engine.CompleteSession(chi.URLParam(req, "id")); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	})

	r.Post("/sessions/{id}/disconnect", func(w http.ResponseWriter, req *http.Request) {
		if err := env.Engine.DisconnectSession(chi.URLParam(req, "id")); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
	})

	r.Post("/sweep", func(w http.ResponseWriter, req *http.Request) {
		affected, err := env.Engine.EvaluateAllSessions(req.Context(), engine.TriggerPeriodicSweep)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"affected": affected})
	})

	// Collaborator push endpoints: feeds replace whole snapshots. A new
	// seismic snapshot fans out to every active session.
	r.Post("/feeds/seismic", func(w http.ResponseWriter, req *http.Request) {
		var snap model.SeismicSnapshot
		if err := json.NewDecoder(req.Body).Decode(&snap); err != nil {
			httpError(w, eris.Wrap(engine.ErrInvalidInput, "decode body"))
			return
		}
		env.Feeds.SetSeismic(snap)
		go func() {
			if _, err := env.Engine.EvaluateAllSessions(ctx, engine.TriggerNewSeismicEvent); err != nil {
				zap.L().Error("seismic sweep failed", zap.Error(err))
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	r.Post("/feeds/hazards", func(w http.ResponseWriter, req *http.Request) {
		var m model.HazardMap
		if err := json.NewDecoder(req.Body).Decode(&m); err != nil {
			httpError(w, eris.Wrap(engine.ErrInvalidInput, "decode body"))
			return
		}
		env.Feeds.SetHazards(m)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	r.Post("/feeds/density", func(w http.ResponseWriter, req *http.Request) {
		var d map[int64]float64
		if err := json.NewDecoder(req.Body).Decode(&d); err != nil {
			httpError(w, eris.Wrap(engine.ErrInvalidInput, "decode body"))
			return
		}
		env.Feeds.SetDensity(d)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

func runTicker(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, engine.ErrInvalidInput):
		status = http.StatusBadRequest
	case eris.Is(err, engine.ErrSessionNotFound):
		status = http.StatusNotFound
	case eris.Is(err, engine.ErrNoSafeZoneAvailable), eris.Is(err, engine.ErrNoPathFound):
		status = http.StatusUnprocessableEntity
	case eris.Is(err, engine.ErrDeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
