package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/paulmach/orb"

	"safemap/internal/geo"
	"safemap/internal/model"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres groups reports into tiles in SQL so only one row per tile
// crosses the wire.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Postgres{db: db}, nil
}

// Migrate applies the embedded reports schema. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// aggregateSelect groups the window's submitted reports by grid cell.
// $1 delta, $2 since, $3..$6 lat/lng bounds.
const aggregateSelect = `
SELECT floor(lat / $1)::bigint AS row_ix,
       floor(lng / $1)::bigint AS col_ix,
       count(*),
       count(*) FILTER (WHERE category IN ('incident', 'harassment', 'safety_concern')),
       count(*) FILTER (WHERE category = 'positive_experience'),
       count(*) FILTER (WHERE poor_lighting),
       max(created_at)
FROM reports
WHERE status = 'submitted' AND created_at >= $2
  AND lat >= $3 AND lat %s $4 AND lng >= $5 AND lng %s $6
GROUP BY 1, 2`

var (
	boundsSQL     = fmt.Sprintf(aggregateSelect, "<=", "<=")
	countTilesSQL = `WITH wanted AS (SELECT * FROM unnest($7::bigint[], $8::bigint[]) AS w(row_ix, col_ix))
SELECT a.* FROM (` + fmt.Sprintf(aggregateSelect, "<", "<") + `) a
JOIN wanted w ON w.row_ix = a.row_ix AND w.col_ix = a.col_ix`
)

func (p *Postgres) CountTiles(ctx context.Context, ids []geo.TileID, q WindowQuery) (map[geo.TileID]model.TileAggregate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	out := map[geo.TileID]model.TileAggregate{}
	if len(ids) == 0 {
		return out, nil
	}
	r, cells, err := q.Index.CellRangeOfTiles(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	rowsIx := make([]int64, len(cells))
	colsIx := make([]int64, len(cells))
	for i, c := range cells {
		rowsIx[i], colsIx[i] = c.Row, c.Col
	}
	b := q.Index.Bounds(r)
	rows, err := p.db.QueryContext(ctx, countTilesSQL,
		q.Index.Delta(), q.Since(), b.Min[1], b.Max[1], b.Min[0], b.Max[0], rowsIx, colsIx)
	if err != nil {
		return nil, fmt.Errorf("count tiles: %w", err)
	}
	aggs, err := scanAggregates(rows, q.Index)
	if err != nil {
		return nil, err
	}
	for _, a := range aggs {
		out[geo.TileID(a.TileID)] = a
	}
	return out, nil
}

func (p *Postgres) AggregateBounds(ctx context.Context, b orb.Bound, q WindowQuery) ([]model.TileAggregate, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, boundsSQL,
		q.Index.Delta(), q.Since(), b.Min[1], b.Max[1], b.Min[0], b.Max[0])
	if err != nil {
		return nil, fmt.Errorf("aggregate bounds: %w", err)
	}
	aggs, err := scanAggregates(rows, q.Index)
	if err != nil {
		return nil, err
	}
	SortByTile(aggs)
	return aggs, nil
}

func scanAggregates(rows *sql.Rows, ix geo.TileIndex) ([]model.TileAggregate, error) {
	defer rows.Close()
	out := []model.TileAggregate{}
	for rows.Next() {
		var c geo.Cell
		var n, incidents, positives, poorLight int64
		var latest sql.NullTime
		if err := rows.Scan(&c.Row, &c.Col, &n, &incidents, &positives, &poorLight, &latest); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		a := model.TileAggregate{
			TileID:         string(ix.ID(c)),
			Count:          int(n),
			IncidentCount:  int(incidents),
			PositiveCount:  int(positives),
			LightingIssues: int(poorLight),
		}
		if latest.Valid {
			ts := latest.Time.UTC()
			a.Latest = &ts
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return out, nil
}

// InsertReports bulk-loads reports in one transaction. Used by the
// operator CLI and integration tests; the service itself never writes.
func (p *Postgres) InsertReports(ctx context.Context, reports []model.Report) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reports (id, lat, lng, category, status, poor_lighting, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	n := 0
	for _, r := range reports {
		r = withDefaults(r)
		res, err := stmt.ExecContext(ctx, r.ID, r.Lat, r.Lng, r.Category, r.Status, r.PoorLight, r.CreatedAt)
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

func withDefaults(r model.Report) model.Report {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = model.StatusDraft
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return r
}
