// Package docstore is a thin document layer over Postgres: one JSONB table,
// records addressed by collection + id or by field predicates.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoDocument is returned by FindOne when nothing matches.
var ErrNoDocument = errors.New("docstore: no document")

// Filter is one field predicate. Field may be a dotted path into the
// document ("currentFlow.stage"). Op defaults to "=".
type Filter struct {
	Field string
	Op    string
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: "=", Value: value} }
func Lt(field string, value any) Filter { return Filter{Field: field, Op: "<", Value: value} }

type Document struct {
	ID   string
	Data map[string]any
}

// Decode unmarshals the document payload into a typed value.
func (d *Document) Decode(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type Options struct {
	OrderBy   string // timestamp field to order by
	Desc      bool
	Limit     int
	NotBefore time.Time // lower window bound on the OrderBy field
}

type Option func(*Options)

func OrderBy(field string, desc bool) Option {
	return func(o *Options) { o.OrderBy = field; o.Desc = desc }
}

func Limit(n int) Option { return func(o *Options) { o.Limit = n } }

// NotBefore restricts results to documents whose OrderBy field is at or
// after t ("most recent within a window" queries).
func NotBefore(t time.Time) Option { return func(o *Options) { o.NotBefore = t } }

type Store interface {
	FindOne(ctx context.Context, collection string, filters []Filter, opts ...Option) (*Document, error)
	FindMany(ctx context.Context, collection string, filters []Filter, opts ...Option) ([]Document, error)
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, partial map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// Fields converts a typed value into the map shape the store persists.
func Fields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
