// Package postgres is a recordstore.Repository on pgx. Each entity kind gets
// its own table holding the record as a JSONB document:
//
//	id text primary key | doc jsonb | created_at timestamptz | updated_at timestamptz
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unkn0wn-root/shopcache/recordstore"
)

var (
	ErrNilDB        = errors.New("postgres recordstore: nil db")
	ErrInvalidTable = errors.New("postgres recordstore: invalid table name")

	tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository[V recordstore.Entity] struct {
	db    DB
	table string
	now   func() time.Time
}

var _ recordstore.Repository[recordstore.Entity] = (*Repository[recordstore.Entity])(nil)

func New[V recordstore.Entity](db DB, table string) (*Repository[V], error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &Repository[V]{db: db, table: table, now: time.Now}, nil
}

// Migrate creates the table if it does not exist.
func (r *Repository[V]) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+r.table+` (
		id text PRIMARY KEY,
		doc jsonb NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("postgres recordstore: migrate %s: %w", r.table, err)
	}
	return nil
}

func (r *Repository[V]) FindByID(ctx context.Context, id string) (V, error) {
	var (
		zero V
		doc  []byte
	)
	err := r.db.QueryRow(ctx, `SELECT doc FROM `+r.table+` WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, recordstore.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("postgres recordstore: find %s/%s: %w", r.table, id, err)
	}
	return decode[V](doc)
}

func (r *Repository[V]) Save(ctx context.Context, v V) (V, error) {
	if v.GetID() == "" {
		v.SetID(uuid.NewString())
	}
	if s, ok := any(v).(recordstore.Stamper); ok {
		s.Stamp(r.now())
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("postgres recordstore: encode: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO `+r.table+` (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		v.GetID(), doc)
	if err != nil {
		return v, fmt.Errorf("postgres recordstore: save %s/%s: %w", r.table, v.GetID(), err)
	}
	return v, nil
}

func (r *Repository[V]) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres recordstore: delete %s/%s: %w", r.table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return recordstore.ErrNotFound
	}
	return nil
}

func (r *Repository[V]) Find(ctx context.Context, f recordstore.Filter) ([]V, error) {
	q, args := r.findQuery(f)
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres recordstore: find %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []V
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		v, err := decode[V](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository[V]) findQuery(f recordstore.Filter) (string, []any) {
	var (
		sb   strings.Builder
		args = make([]any, 0, 2*len(f))
	)
	sb.WriteString(`SELECT doc FROM ` + r.table)
	for i, field := range f.Fields() {
		if i == 0 {
			sb.WriteString(` WHERE `)
		} else {
			sb.WriteString(` AND `)
		}
		fmt.Fprintf(&sb, "doc->>$%d = $%d", len(args)+1, len(args)+2)
		args = append(args, field, f[field])
	}
	sb.WriteString(` ORDER BY created_at, id`)
	return sb.String(), args
}

func decode[V any](doc []byte) (V, error) {
	var v V
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("postgres recordstore: decode: %w", err)
	}
	return v, nil
}
