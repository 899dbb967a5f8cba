package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PostgresStore keeps every collection in a single documents table:
//
//	CREATE TABLE documents (
//	    collection TEXT NOT NULL,
//	    id         TEXT NOT NULL,
//	    data       JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (collection, id)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// buildWhere renders the filter predicates. Dotted fields address nested
// values; numeric comparisons cast the extracted text.
func buildWhere(collection string, filters []Filter) (string, []any) {
	clauses := []string{"collection = $1"}
	args := []any{collection}

	for _, f := range filters {
		op := f.Op
		if op == "" {
			op = "="
		}
		path := strings.Join(strings.Split(f.Field, "."), ",")
		expr := fmt.Sprintf("data #>> '{%s}'", path)

		args = append(args, f.Value)
		n := len(args)
		switch f.Value.(type) {
		case string:
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", expr, op, n))
		case bool:
			clauses = append(clauses, fmt.Sprintf("(%s)::boolean %s $%d", expr, op, n))
		default:
			clauses = append(clauses, fmt.Sprintf("(%s)::numeric %s $%d", expr, op, n))
		}
	}
	return strings.Join(clauses, " AND "), args
}

func buildQuery(collection string, filters []Filter, opts []Option) (string, []any) {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}

	where, args := buildWhere(collection, filters)

	if !o.NotBefore.IsZero() && o.OrderBy != "" {
		args = append(args, o.NotBefore)
		where += fmt.Sprintf(" AND (data ->> '%s')::timestamptz >= $%d", o.OrderBy, len(args))
	}

	q := "SELECT id, data FROM documents WHERE " + where
	if o.OrderBy != "" {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		q += fmt.Sprintf(" ORDER BY (data ->> '%s')::timestamptz %s", o.OrderBy, dir)
	}
	if o.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", o.Limit)
	}
	return q, args
}

func (s *PostgresStore) FindOne(ctx context.Context, collection string, filters []Filter, opts ...Option) (*Document, error) {
	opts = append(opts, Limit(1))
	docs, err := s.FindMany(ctx, collection, filters, opts...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocument
	}
	return &docs[0], nil
}

func (s *PostgresStore) FindMany(ctx context.Context, collection string, filters []Filter, opts ...Option) ([]Document, error) {
	q, args := buildQuery(collection, filters, opts)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to decode %s document %s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.NewString()
		data["id"] = id
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s document: %w", collection, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, collection, id, raw)
	if err != nil {
		return "", fmt.Errorf("failed to insert %s document: %w", collection, err)
	}
	return id, nil
}

// Update merges a partial document into the stored one. Unset (nil) values
// are stripped first so an absent field never overwrites a stored one.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	clean := StripUnset(partial)
	raw, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("failed to encode %s update: %w", collection, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("failed to update %s document %s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoDocument
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s document %s: %w", collection, id, err)
	}
	return nil
}
