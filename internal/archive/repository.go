package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/trustview/internal/projection"
)

// ErrNotFound indicates that no capture exists for the account.
var ErrNotFound = errors.New("capture not found")

const defaultListLimit = 30

// Capture is a stored projection view.
type Capture struct {
	ID         int64           `json:"id"`
	Address    string          `json:"address"`
	CapturedAt time.Time       `json:"capturedAt"`
	Balance    string          `json:"balance"`
	View       json.RawMessage `json:"view"`
}

// Decode unmarshals the stored view.
func (c Capture) Decode() (projection.View, error) {
	var v projection.View
	if err := json.Unmarshal(c.View, &v); err != nil {
		return projection.View{}, fmt.Errorf("decoding capture %d: %w", c.ID, err)
	}
	return v, nil
}

// Repository defines persistent storage for captures.
type Repository interface {
	Save(ctx context.Context, address string, at time.Time, balance string, view json.RawMessage) (int64, error)
	Latest(ctx context.Context, address string) (*Capture, error)
	List(ctx context.Context, address string, limit int) ([]Capture, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a PostgreSQL capture repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Save(ctx context.Context, address string, at time.Time, balance string, view json.RawMessage) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO projection_captures (address, captured_at, balance, view)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING id`,
		address, at, balance, view).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving capture for %s: %w", address, err)
	}
	return id, nil
}

func (r *PgRepository) Latest(ctx context.Context, address string) (*Capture, error) {
	var c Capture
	err := r.pool.QueryRow(ctx,
		`SELECT id, address, captured_at, balance, view
		 FROM projection_captures
		 WHERE address = $1
		 ORDER BY captured_at DESC, id DESC
		 LIMIT 1`, address).Scan(&c.ID, &c.Address, &c.CapturedAt, &c.Balance, &c.View)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest capture: %w", err)
	}
	return &c, nil
}

func (r *PgRepository) List(ctx context.Context, address string, limit int) ([]Capture, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, address, captured_at, balance, view
		 FROM projection_captures
		 WHERE address = $1
		 ORDER BY captured_at DESC, id DESC
		 LIMIT $2`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}

	captures, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Capture, error) {
		var c Capture
		err := row.Scan(&c.ID, &c.Address, &c.CapturedAt, &c.Balance, &c.View)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning captures: %w", err)
	}
	return captures, nil
}
