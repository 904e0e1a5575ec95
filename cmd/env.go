package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbansafe/evacroute/internal/engine"
	"github.com/urbansafe/evacroute/internal/feeds"
	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/structural"
)

// env bundles the wired engine and its collaborators for one command run.
type env struct {
	Engine   *engine.Engine
	Feeds    *feeds.Static
	Registry structural.Store
}

// initEngine loads the road network, safe zones, and structural registry, and
// wires the engine. Feeds start empty; serve mode fills them from collaborator
// pushes, one-shot commands from fixture files.
func initEngine(ctx context.Context) (*env, error) {
	g, err := graph.LoadGeoJSON(cfg.Graph.NetworkPath)
	if err != nil {
		return nil, err
	}

	switch cfg.Graph.SafeZoneFormat {
	case "yaml":
		err = graph.LoadSafeZonesYAML(g, cfg.Graph.SafeZonesPath)
	case "shapefile":
		err = graph.LoadSafeZonesShapefile(g, cfg.Graph.SafeZonesPath)
	default:
		err = eris.Errorf("unknown safe zone format %q", cfg.Graph.SafeZoneFormat)
	}
	if err != nil {
		return nil, err
	}

	registry, err := structural.Open(ctx, cfg.Structural.Driver, cfg.Structural.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := registry.Migrate(ctx); err != nil {
		registry.Close()
		return nil, err
	}

	descs, err := registry.ListDescriptors(ctx)
	if err != nil {
		registry.Close()
		return nil, err
	}
	applied, skipped := structural.Apply(g, descs)
	zap.L().Info("structural registry applied",
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
	)

	st := feeds.NewStatic()
	eng, err := engine.New(g, st, st, st, engine.Options{
		SearchTimeout:    cfg.Engine.SearchTimeout(),
		MaxAlternatives:  cfg.Engine.MaxAlternatives,
		SweepConcurrency: cfg.Engine.SweepConcurrency,
		RecalcPerSecond:  cfg.Engine.RecalcPerSecond,
		RecalcBurst:      cfg.Engine.RecalcBurst,
		SessionRetention: cfg.Session.Retention(),
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	return &env{Engine: eng, Feeds: st, Registry: registry}, nil
}

func (e *env) Close() {
	if e.Registry != nil {
		if err := e.Registry.Close(); err != nil {
			zap.L().Warn("close registry", zap.Error(err))
		}
	}
}
