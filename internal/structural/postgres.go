package structural

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/db"
	"github.com/urbansafe/evacroute/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS structural_descriptors (
	edge_id      BIGINT PRIMARY KEY,
	year_built   INT NOT NULL DEFAULT 0,
	construction TEXT NOT NULL DEFAULT 'unknown',
	prior_damage BOOLEAN NOT NULL DEFAULT FALSE
)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertDescriptors(ctx context.Context, descs []model.StructuralDescriptor) (int64, error) {
	if len(descs) == 0 {
		return 0, nil
	}

	var n int64
	for _, d := range descs {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO structural_descriptors (edge_id, year_built, construction, prior_damage)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (edge_id) DO UPDATE SET
				year_built = EXCLUDED.year_built,
				construction = EXCLUDED.construction,
				prior_damage = EXCLUDED.prior_damage
		`, d.EdgeID, d.YearBuilt, d.Construction.String(), d.PriorDamage)
		if err != nil {
			return n, eris.Wrapf(err, "postgres: upsert edge %d", d.EdgeID)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

func (s *PostgresStore) GetDescriptor(ctx context.Context, edgeID int64) (*model.StructuralDescriptor, error) {
	var d model.StructuralDescriptor
	var construction string
	err := s.pool.QueryRow(ctx,
		`SELECT edge_id, year_built, construction, prior_damage FROM structural_descriptors WHERE edge_id = $1`,
		edgeID,
	).Scan(&d.EdgeID, &d.YearBuilt, &construction, &d.PriorDamage)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get descriptor %d", edgeID)
	}
	ct, err := model.ParseConstructionType(construction)
	if err != nil {
		ct = model.ConstructionUnknown
	}
	d.Construction = ct
	return &d, nil
}

func (s *PostgresStore) ListDescriptors(ctx context.Context) ([]model.StructuralDescriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT edge_id, year_built, construction, prior_damage FROM structural_descriptors ORDER BY edge_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list descriptors")
	}
	defer rows.Close()

	var out []model.StructuralDescriptor
	for rows.Next() {
		var d model.StructuralDescriptor
		var construction string
		if err := rows.Scan(&d.EdgeID, &d.YearBuilt, &construction, &d.PriorDamage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan descriptor")
		}
		ct, err := model.ParseConstructionType(construction)
		if err != nil {
			ct = model.ConstructionUnknown
		}
		d.Construction = ct
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate descriptors")
	}
	return out, nil
}

// ReplaceAll truncates the registry and reloads it with COPY. Faster than
// row-at-a-time upserts for city-scale imports.
func (s *PostgresStore) ReplaceAll(ctx context.Context, descs []model.StructuralDescriptor) (int64, error) {
	if _, err := s.pool.Exec(ctx, `TRUNCATE structural_descriptors`); err != nil {
		return 0, eris.Wrap(err, "postgres: truncate registry")
	}
	rows := make([][]any, len(descs))
	for i, d := range descs {
		rows[i] = []any{d.EdgeID, d.YearBuilt, d.Construction.String(), d.PriorDamage}
	}
	return db.CopyFrom(ctx, s.pool, "structural_descriptors",
		[]string{"edge_id", "year_built", "construction", "prior_damage"}, rows)
}
