package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/humanplus/posture-console/internal/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data);

-- NULL for values that do not parse as a timestamp.
CREATE OR REPLACE FUNCTION try_timestamptz(v TEXT) RETURNS TIMESTAMPTZ AS $$
BEGIN
	RETURN v::timestamptz;
EXCEPTION WHEN others THEN
	RETURN NULL;
END;
$$ LANGUAGE plpgsql STABLE;
`

// Store keeps every collection in a single JSONB table. Server timestamps come
// from the database clock.
type Store struct {
	db    *sqlx.DB
	newID func() string
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

var _ docstore.Store = (*Store)(nil)

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// Migrate creates the documents table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any, serverTimestamps ...string) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := s.newID()
	args := []any{collection, id, string(data)}
	expr := "$3::jsonb"
	if len(serverTimestamps) > 0 {
		pairs := make([]string, 0, len(serverTimestamps))
		for _, f := range serverTimestamps {
			args = append(args, f)
			pairs = append(pairs, fmt.Sprintf("$%d::text, to_jsonb(now())", len(args)))
		}
		expr += " || jsonb_build_object(" + strings.Join(pairs, ", ") + ")"
	}

	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, ` + expr + `)`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Snapshot, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1 AND id = $2`
	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	snap, err := decode(row)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1`
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, collection); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return decodeAll(rows)
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	for _, f := range q.Where {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		fmt.Fprintf(&b, " AND data->>$%d = $%d", len(args)-1, len(args))
	}
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		// Timestamps sort first in time order, other values after them by text.
		n := len(args)
		fmt.Fprintf(&b, " ORDER BY try_timestamptz(data->>$%d) %s NULLS LAST, data->>$%d %s NULLS LAST", n, dir, n, dir)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return decodeAll(rows)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	query := `UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id, string(data))
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func decode(row documentRow) (docstore.Snapshot, error) {
	data := map[string]any{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &data); err != nil {
			return docstore.Snapshot{}, fmt.Errorf("failed to decode document %s: %w", row.ID, err)
		}
	}
	return docstore.Snapshot{ID: row.ID, Data: data}, nil
}

func decodeAll(rows []documentRow) ([]docstore.Snapshot, error) {
	out := make([]docstore.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
