// Package structural is the structural-risk registry: static per-edge
// building-stock descriptors loaded at startup and served to the risk model.
package structural

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
)

// Store defines the persistence interface for structural descriptors.
type Store interface {
	// UpsertDescriptors inserts or replaces descriptors by edge id and
	// returns the number written.
	UpsertDescriptors(ctx context.Context, descs []model.StructuralDescriptor) (int64, error)

	// GetDescriptor retrieves one descriptor, nil when the edge has none.
	GetDescriptor(ctx context.Context, edgeID int64) (*model.StructuralDescriptor, error)

	// ListDescriptors returns the full registry, ordered by edge id.
	ListDescriptors(ctx context.Context) ([]model.StructuralDescriptor, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// BulkReplacer is implemented by drivers with a full-refresh path that drops
// the existing registry before loading.
type BulkReplacer interface {
	ReplaceAll(ctx context.Context, descs []model.StructuralDescriptor) (int64, error)
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("structural: unknown driver %q", driver)
	}
}

// Apply attaches every registry descriptor to its graph edge. Descriptors for
// unknown edges are counted and skipped; registries routinely outlive network
// revisions.
func Apply(g *graph.Graph, descs []model.StructuralDescriptor) (applied, skipped int) {
	for i := range descs {
		d := descs[i]
		if err := g.SetStructural(d.EdgeID, &d); err != nil {
			skipped++
			continue
		}
		applied++
	}
	return applied, skipped
}
