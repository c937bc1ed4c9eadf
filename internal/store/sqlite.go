package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"safemap/internal/geo"
	"safemap/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
    id            TEXT PRIMARY KEY,
    lat           REAL NOT NULL,
    lng           REAL NOT NULL,
    category      TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'draft',
    poor_lighting INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_status_created_idx ON reports (status, created_at);
CREATE INDEX IF NOT EXISTS reports_lat_lng_idx ON reports (lat, lng);`

// SQLite serves single-node deployments. Rows inside the window and box
// are streamed out and tiled in Go by Tally.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer keeps modernc from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CountTiles(ctx context.Context, ids []geo.TileID, q WindowQuery) (map[geo.TileID]model.TileAggregate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[geo.TileID]model.TileAggregate{}, nil
	}
	r, _, err := q.Index.CellRangeOfTiles(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	t := NewTally(q.Index, q.Since(), ids)
	if err := s.scan(ctx, q.Index.Bounds(r), q.Since(), t); err != nil {
		return nil, fmt.Errorf("count tiles: %w", err)
	}
	return t.Map(), nil
}

func (s *SQLite) AggregateBounds(ctx context.Context, b orb.Bound, q WindowQuery) ([]model.TileAggregate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	t := NewTally(q.Index, q.Since(), nil)
	if err := s.scan(ctx, b, q.Since(), t); err != nil {
		return nil, fmt.Errorf("aggregate bounds: %w", err)
	}
	return t.Sorted(), nil
}

func (s *SQLite) scan(ctx context.Context, b orb.Bound, since time.Time, t *Tally) error {
	rows, err := s.db.QueryContext(ctx, `SELECT lat, lng, category, poor_lighting, created_at FROM reports
WHERE status = 'submitted' AND created_at >= ? AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		since.Unix(), b.Min[1], b.Max[1], b.Min[0], b.Max[0])
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		r := model.Report{Status: model.StatusSubmitted}
		var created int64
		if err := rows.Scan(&r.Lat, &r.Lng, &r.Category, &r.PoorLight, &created); err != nil {
			return err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		t.Add(r)
	}
	return rows.Err()
}

func (s *SQLite) InsertReports(ctx context.Context, reports []model.Report) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	n := 0
	for _, r := range reports {
		r = withDefaults(r)
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO reports (id, lat, lng, category, status, poor_lighting, created_at) VALUES (?,?,?,?,?,?,?)`,
			r.ID, r.Lat, r.Lng, r.Category, r.Status, r.PoorLight, r.CreatedAt.Unix())
		if err != nil {
			return 0, fmt.Errorf("insert report %s: %w", r.ID, err)
		}
		if k, _ := res.RowsAffected(); k > 0 {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
