package store

import (
	"context"
	"sort"
	"time"
)

// Document is the raw JSON object form of a resource as held by a Driver.
type Document map[string]any

// Filter matches documents by (dotted) field path. A plain value means
// equality; arrays along the path match when any element matches.
type Filter map[string]any

// Keys returns the filter keys in a stable order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// In matches when the field equals any of the values.
type In []string

// Regex matches the field case-insensitively.
type Regex string

type FindOptions struct {
	Skip  int
	Limit int // 0 = no limit
	Sort  string
}

//go:generate mockgen -destination=mock/mock_store.go -package=mock_store . Driver,Cache

// Driver is the storage of record. Every method scopes to one collection.
type Driver interface {
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, int, error)
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	FindByID(ctx context.Context, collection, id string) (Document, error)
	Insert(ctx context.Context, collection string, doc Document) error
	UpdateOne(ctx context.Context, collection, id string, doc Document) error
	DeleteOne(ctx context.Context, collection, id string) error
	InsertMany(ctx context.Context, collection string, docs []Document) error
	DeleteMany(ctx context.Context, collection string, filter Filter) (int, error)
}

// Cache holds serialized entities and pages.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
