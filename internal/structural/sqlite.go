package structural

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/urbansafe/evacroute/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS structural_descriptors (
	edge_id      INTEGER PRIMARY KEY,
	year_built   INTEGER NOT NULL DEFAULT 0,
	construction TEXT NOT NULL DEFAULT 'unknown',
	prior_damage INTEGER NOT NULL DEFAULT 0
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertDescriptors(ctx context.Context, descs []model.StructuralDescriptor) (int64, error) {
	if len(descs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO structural_descriptors (edge_id, year_built, construction, prior_damage)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (edge_id) DO UPDATE SET
			year_built = excluded.year_built,
			construction = excluded.construction,
			prior_damage = excluded.prior_damage
	`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	var n int64
	for _, d := range descs {
		if _, err := stmt.ExecContext(ctx, d.EdgeID, d.YearBuilt, d.Construction.String(), boolToInt(d.PriorDamage)); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert edge %d", d.EdgeID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) GetDescriptor(ctx context.Context, edgeID int64) (*model.StructuralDescriptor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT edge_id, year_built, construction, prior_damage FROM structural_descriptors WHERE edge_id = ?`,
		edgeID,
	)
	d, err := scanDescriptor(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get descriptor %d", edgeID)
	}
	return d, nil
}

func (s *SQLiteStore) ListDescriptors(ctx context.Context) ([]model.StructuralDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT edge_id, year_built, construction, prior_damage FROM structural_descriptors ORDER BY edge_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list descriptors")
	}
	defer rows.Close()

	var out []model.StructuralDescriptor
	for rows.Next() {
		d, err := scanDescriptor(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan descriptor")
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate descriptors")
	}
	return out, nil
}

func scanDescriptor(scan func(dest ...any) error) (*model.StructuralDescriptor, error) {
	var d model.StructuralDescriptor
	var construction string
	var priorDamage int
	if err := scan(&d.EdgeID, &d.YearBuilt, &construction, &priorDamage); err != nil {
		return nil, err
	}
	ct, err := model.ParseConstructionType(construction)
	if err != nil {
		ct = model.ConstructionUnknown
	}
	d.Construction = ct
	d.PriorDamage = priorDamage != 0
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
