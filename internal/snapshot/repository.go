package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that the requested snapshot was not found.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot represents a stored market snapshot.
type Snapshot struct {
	ID           int             `json:"id"`
	SnapshotDate time.Time       `json:"snapshotDate"`
	Data         json.RawMessage `json:"data"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Decode unmarshals the stored payload.
func (s Snapshot) Decode() (MarketSnapshot, error) {
	var m MarketSnapshot
	if err := json.Unmarshal(s.Data, &m); err != nil {
		return MarketSnapshot{}, fmt.Errorf("decoding snapshot %d: %w", s.ID, err)
	}
	return m, nil
}

// Repository defines persistent storage for snapshots.
type Repository interface {
	Save(ctx context.Context, date time.Time, data json.RawMessage, floors []CollectionSnapshot) error
	GetLatest(ctx context.Context) (*Snapshot, error)
	GetByDate(ctx context.Context, date time.Time) (*Snapshot, error)
	GetNearestBefore(ctx context.Context, date time.Time) (*Snapshot, error)
	List(ctx context.Context, limit int) ([]Snapshot, error)
	FloorHistory(ctx context.Context, collection string, limit int) ([]FloorPoint, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL snapshot repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Save upserts the snapshot document and its per-collection floor rows in one transaction.
func (r *PgRepository) Save(ctx context.Context, date time.Time, data json.RawMessage, floors []CollectionSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO market_snapshots (snapshot_date, data)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (snapshot_date)
		 DO UPDATE SET data = $2::jsonb`,
		date, data); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for _, f := range floors {
		var (
			volume *decimal.Decimal
			sales  *int64
		)
		if f.Volume != nil {
			volume, sales = &f.Volume.EquivalentA, &f.Volume.Sales
		}
		batch.Queue(
			`INSERT INTO collection_floors (collection, snapshot_date, floor_a, listed_count, volume_a, sales)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (collection, snapshot_date)
			 DO UPDATE SET floor_a = $3, listed_count = $4, volume_a = $5, sales = $6`,
			strings.ToLower(f.Address), date, f.Floor, f.ListedCount, volume, sales)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("saving collection floors: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `id, snapshot_date, data, created_at`

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	if err := row.Scan(&s.ID, &s.SnapshotDate, &s.Data, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) getOne(ctx context.Context, what, query string, args ...any) (*Snapshot, error) {
	s, err := scanSnapshot(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting %s snapshot: %w", what, err)
	}
	return s, nil
}

func (r *PgRepository) GetLatest(ctx context.Context) (*Snapshot, error) {
	return r.getOne(ctx, "latest",
		`SELECT `+snapshotColumns+` FROM market_snapshots ORDER BY snapshot_date DESC LIMIT 1`)
}

func (r *PgRepository) GetByDate(ctx context.Context, date time.Time) (*Snapshot, error) {
	return r.getOne(ctx, "dated",
		`SELECT `+snapshotColumns+` FROM market_snapshots WHERE snapshot_date = $1`, date)
}

// GetNearestBefore returns the newest snapshot strictly older than date.
func (r *PgRepository) GetNearestBefore(ctx context.Context, date time.Time) (*Snapshot, error) {
	return r.getOne(ctx, "previous",
		`SELECT `+snapshotColumns+` FROM market_snapshots
		 WHERE snapshot_date < $1
		 ORDER BY snapshot_date DESC LIMIT 1`, date)
}

func (r *PgRepository) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM market_snapshots
		 ORDER BY snapshot_date DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// FloorHistory returns the newest floor rows of a collection, newest first.
func (r *PgRepository) FloorHistory(ctx context.Context, collection string, limit int) ([]FloorPoint, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx,
		`SELECT snapshot_date, floor_a, listed_count, volume_a, sales
		 FROM collection_floors
		 WHERE collection = $1
		 ORDER BY snapshot_date DESC
		 LIMIT $2`, strings.ToLower(collection), limit)
	if err != nil {
		return nil, fmt.Errorf("getting floor history for %s: %w", collection, err)
	}
	defer rows.Close()

	var points []FloorPoint
	for rows.Next() {
		var p FloorPoint
		if err := rows.Scan(&p.Date, &p.Floor, &p.ListedCount, &p.VolumeA, &p.Sales); err != nil {
			return nil, fmt.Errorf("scanning floor point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating floor history: %w", err)
	}
	return points, nil
}
