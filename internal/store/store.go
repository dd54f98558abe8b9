package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-catalog-orders/internal/events"
	"github.com/ariefcatur/go-catalog-orders/internal/tasks"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = time.Hour

// Deps are shared by every Store in a process.
type Deps struct {
	Driver    Driver
	Cache     Cache
	Bus       events.Publisher
	Tasks     tasks.Dispatcher
	Log       *zap.SugaredLogger
	Tenant    string
	PublicDir string
	TTL       time.Duration
	Now       func() time.Time
}

// Store is the resource access layer for one entity type. T must marshal to
// a JSON object carrying "id", "createdAt" and "updatedAt".
type Store[T any] struct {
	resource string
	d        Deps
}

func New[T any](resource string, d Deps) *Store[T] {
	if d.TTL <= 0 {
		d.TTL = DefaultTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Tasks == nil {
		d.Tasks = tasks.Inline{Log: d.Log}
	}
	return &Store[T]{resource: resource, d: d}
}

func (s *Store[T]) Resource() string { return s.resource }

type CreateInput struct {
	Fields   map[string]any
	Uniques  []string
	Fillable []string
}

// UpdateInput targets a record by ID, or by Match when ID is empty.
// Apply runs after the fields are merged and may change server-owned fields.
type UpdateInput[T any] struct {
	ID       string
	Match    Filter
	Fields   map[string]any
	Uniques  []string
	Fillable []string
	Apply    func(*T) error
}

type DestroyInput struct {
	ID       string
	Match    Filter
	ImageKey string
}

func (s *Store[T]) List(ctx context.Context, q Query) (Page[T], error) {
	q = q.normalize()
	useCache := q.Cacheable && len(q.Filter) == 0
	key := q.cacheKey(s.resource)

	var page Page[T]
	if useCache && s.cached(ctx, key, &page) {
		return page, nil
	}

	docs, total, err := s.d.Driver.Find(ctx, s.resource, q.Filter, FindOptions{
		Skip:  (q.Page - 1) * q.PerPage,
		Limit: q.PerPage,
		Sort:  q.Sort,
	})
	if err != nil {
		return page, internal("find "+s.resource, err)
	}
	page.Data = make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](project(doc, q.Projection))
		if err != nil {
			return page, internal("decode "+s.resource, err)
		}
		page.Data = append(page.Data, v)
	}
	page.Pagination = paginate(total, q.Page, q.PerPage)

	if useCache {
		s.remember(ctx, key, page)
	}
	return page, nil
}

// FindByIDs returns every record whose id is in ids, in storage order.
func (s *Store[T]) FindByIDs(ctx context.Context, ids []string) ([]T, error) {
	docs, _, err := s.d.Driver.Find(ctx, s.resource, Filter{"id": In(ids)}, FindOptions{})
	if err != nil {
		return nil, internal("find "+s.resource, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, internal("decode "+s.resource, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := s.d.Driver.FindByID(ctx, s.resource, id)
	if err != nil {
		return zero, s.readErr(err)
	}
	return decode[T](doc)
}

// Show is GetByID read through the cache under {resource}_id:{id}.
func (s *Store[T]) Show(ctx context.Context, id string, cacheable bool) (T, error) {
	if !cacheable {
		return s.GetByID(ctx, id)
	}
	key := s.resource + "_id:" + id
	var v T
	if s.cached(ctx, key, &v) {
		return v, nil
	}
	v, err := s.GetByID(ctx, id)
	if err != nil {
		return v, err
	}
	s.remember(ctx, key, v)
	return v, nil
}

// FindOne returns the first match; which one is undefined when several match.
func (s *Store[T]) FindOne(ctx context.Context, filter Filter) (T, error) {
	var zero T
	doc, err := s.d.Driver.FindOne(ctx, s.resource, filter)
	if err != nil {
		return zero, s.readErr(err)
	}
	return decode[T](doc)
}

// ShowOne is FindOne read through the cache under {resource}_one:{filter}.
func (s *Store[T]) ShowOne(ctx context.Context, filter Filter, cacheable bool) (T, error) {
	if !cacheable {
		return s.FindOne(ctx, filter)
	}
	key := s.resource + "_one:" + filterKey(filter)
	var v T
	if s.cached(ctx, key, &v) {
		return v, nil
	}
	v, err := s.FindOne(ctx, filter)
	if err != nil {
		return v, err
	}
	s.remember(ctx, key, v)
	return v, nil
}

func (s *Store[T]) Create(ctx context.Context, in CreateInput) (T, error) {
	var zero T
	for _, key := range in.Uniques {
		if v, ok := in.Fields[key]; ok {
			if err := s.IsUnique(ctx, key, v, ""); err != nil {
				return zero, err
			}
		}
	}
	entity, err := decode[T](Document(pick(in.Fields, in.Fillable)))
	if err != nil {
		return zero, Invalid("body", "invalid %s payload: %v", s.resource, err)
	}
	return s.Insert(ctx, entity)
}

// Insert stores a server-built entity as is, assigning id and timestamps.
func (s *Store[T]) Insert(ctx context.Context, entity T) (T, error) {
	var zero T
	doc, err := encode(entity)
	if err != nil {
		return zero, internal("encode "+s.resource, err)
	}
	now := s.d.Now().UTC()
	doc["id"] = uuid.NewString()
	doc["createdAt"] = now
	doc["updatedAt"] = now
	doc, err = normalize(doc)
	if err != nil {
		return zero, internal("encode "+s.resource, err)
	}
	if err := s.d.Driver.Insert(ctx, s.resource, doc); err != nil {
		return zero, internal("insert "+s.resource, err)
	}
	created, err := decode[T](doc)
	if err != nil {
		return zero, internal("decode "+s.resource, err)
	}
	s.changed(ctx, events.ActionCreate, created, nil)
	return created, nil
}

func (s *Store[T]) Update(ctx context.Context, in UpdateInput[T]) (T, error) {
	var zero T
	doc, err := s.target(ctx, in.ID, in.Match)
	if err != nil {
		return zero, err
	}
	id, _ := doc["id"].(string)

	fields := pick(in.Fields, in.Fillable)
	for _, key := range in.Uniques {
		if v, ok := fields[key]; ok {
			if err := s.IsUnique(ctx, key, v, id); err != nil {
				return zero, err
			}
		}
	}
	for k, v := range fields {
		if k == "id" || k == "createdAt" || k == "updatedAt" {
			continue
		}
		doc[k] = v
	}
	entity, err := decode[T](doc)
	if err != nil {
		return zero, Invalid("body", "invalid %s payload: %v", s.resource, err)
	}
	if in.Apply != nil {
		if err := in.Apply(&entity); err != nil {
			return zero, err
		}
	}
	return s.Replace(ctx, id, entity)
}

// Replace overwrites a stored record with a server-built entity.
func (s *Store[T]) Replace(ctx context.Context, id string, entity T) (T, error) {
	var zero T
	doc, err := encode(entity)
	if err != nil {
		return zero, internal("encode "+s.resource, err)
	}
	doc["id"] = id
	doc["updatedAt"] = s.d.Now().UTC()
	doc, err = normalize(doc)
	if err != nil {
		return zero, internal("encode "+s.resource, err)
	}
	if err := s.d.Driver.UpdateOne(ctx, s.resource, id, doc); err != nil {
		return zero, s.readErr(err)
	}
	updated, err := decode[T](doc)
	if err != nil {
		return zero, internal("decode "+s.resource, err)
	}
	s.changed(ctx, events.ActionUpdate, updated, nil)
	return updated, nil
}

func (s *Store[T]) Destroy(ctx context.Context, in DestroyInput) error {
	doc, err := s.target(ctx, in.ID, in.Match)
	if err != nil {
		return err
	}
	id, _ := doc["id"].(string)
	if err := s.d.Driver.DeleteOne(ctx, s.resource, id); err != nil {
		return s.readErr(err)
	}
	var files []string
	if in.ImageKey != "" {
		files = imagePaths(doc[in.ImageKey])
	}
	deleted, err := decode[T](doc)
	if err != nil {
		s.d.Log.Warnw("decode deleted record", "resource", s.resource, "id", id, "error", err)
	}
	s.changed(ctx, events.ActionDelete, deleted, files)
	return nil
}

// InsertMany bulk loads records, skipping uniqueness and fillable checks.
func (s *Store[T]) InsertMany(ctx context.Context, entities []T) error {
	now := s.d.Now().UTC()
	docs := make([]Document, 0, len(entities))
	for _, e := range entities {
		doc, err := encode(e)
		if err != nil {
			return internal("encode "+s.resource, err)
		}
		if id, _ := doc["id"].(string); id == "" {
			doc["id"] = uuid.NewString()
		}
		doc["createdAt"] = now
		doc["updatedAt"] = now
		if doc, err = normalize(doc); err != nil {
			return internal("encode "+s.resource, err)
		}
		docs = append(docs, doc)
	}
	if err := s.d.Driver.InsertMany(ctx, s.resource, docs); err != nil {
		return internal("insert many "+s.resource, err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Store[T]) DeleteMany(ctx context.Context, filter Filter) (int, error) {
	n, err := s.d.Driver.DeleteMany(ctx, s.resource, filter)
	if err != nil {
		return 0, internal("delete many "+s.resource, err)
	}
	s.invalidate(ctx)
	return n, nil
}

// ExistsAll fails with a ValidationError on field unless every value
// resolves to a record under key. Duplicate values count once, and several
// records sharing one value still count as that one value.
func (s *Store[T]) ExistsAll(ctx context.Context, key string, values []string, field string) error {
	uniq := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			uniq = append(uniq, v)
		}
	}
	if len(uniq) == 0 {
		return nil
	}
	docs, _, err := s.d.Driver.Find(ctx, s.resource, Filter{key: In(uniq)}, FindOptions{})
	if err != nil {
		return internal("find "+s.resource, err)
	}
	found := make(map[string]bool, len(uniq))
	for _, doc := range docs {
		for _, v := range fieldStrings(doc, key) {
			if seen[v] {
				found[v] = true
			}
		}
	}
	if len(found) != len(uniq) {
		return Invalid(field, "one of %s is not exists", field)
	}
	return nil
}

// IsUnique treats a collision with excludeID itself as unique.
func (s *Store[T]) IsUnique(ctx context.Context, key string, value any, excludeID string) error {
	doc, err := s.d.Driver.FindOne(ctx, s.resource, Filter{key: value})
	if errors.Is(err, ErrNoDocument) {
		return nil
	}
	if err != nil {
		return internal("find "+s.resource, err)
	}
	if id, _ := doc["id"].(string); excludeID != "" && id == excludeID {
		return nil
	}
	return &ConflictError{Key: key}
}

func (s *Store[T]) target(ctx context.Context, id string, match Filter) (Document, error) {
	var (
		doc Document
		err error
	)
	switch {
	case id != "":
		doc, err = s.d.Driver.FindByID(ctx, s.resource, id)
	case len(match) > 0:
		doc, err = s.d.Driver.FindOne(ctx, s.resource, match)
	default:
		return nil, Invalid("id", "%s id is required", s.resource)
	}
	if err != nil {
		return nil, s.readErr(err)
	}
	return doc, nil
}

func (s *Store[T]) readErr(err error) error {
	if errors.Is(err, ErrNoDocument) {
		return fmt.Errorf("%s: %w", s.resource, ErrNotFound)
	}
	return internal(s.resource, err)
}

// changed runs the post-write steps: invalidate synchronously, then hand
// unlink and publish to the task dispatcher.
func (s *Store[T]) changed(ctx context.Context, action events.Action, entity T, files []string) {
	s.invalidate(ctx)

	for _, f := range files {
		path := filepath.Join(s.d.PublicDir, filepath.Clean("/"+f))
		s.d.Tasks.Dispatch(tasks.Task{
			Name: "unlink " + path,
			Run: func(context.Context) error {
				err := os.Remove(path)
				if errors.Is(err, os.ErrNotExist) {
					s.d.Log.Warnw("image already gone", "resource", s.resource, "path", path)
					return nil
				}
				return err
			},
		})
	}

	if s.d.Bus == nil {
		return
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		s.d.Log.Errorw("marshal change event", "resource", s.resource, "error", err)
		return
	}
	topic := events.Topic(s.d.Tenant, action, s.resource)
	s.d.Tasks.Dispatch(tasks.Task{
		Name: "publish " + topic,
		Run: func(ctx context.Context) error {
			return s.d.Bus.Publish(ctx, topic, payload)
		},
	})
}

func (s *Store[T]) invalidate(ctx context.Context) {
	if s.d.Cache == nil {
		return
	}
	if err := s.d.Cache.DeletePrefix(ctx, s.resource+"_"); err != nil {
		s.d.Log.Errorw("cache invalidate", "resource", s.resource, "error", err)
	}
}

func (s *Store[T]) cached(ctx context.Context, key string, out any) bool {
	if s.d.Cache == nil {
		return false
	}
	b, ok, err := s.d.Cache.Get(ctx, key)
	if err != nil {
		s.d.Log.Warnw("cache get", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		s.d.Log.Warnw("cache decode", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store[T]) remember(ctx context.Context, key string, v any) {
	if s.d.Cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.d.Log.Warnw("cache encode", "key", key, "error", err)
		return
	}
	if err := s.d.Cache.Set(ctx, key, b, s.d.TTL); err != nil {
		s.d.Log.Warnw("cache set", "key", key, "error", err)
	}
}

func encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// normalize round-trips doc through JSON so drivers only see JSON types.
func normalize(doc Document) (Document, error) {
	return encode(doc)
}

func decode[T any](doc Document) (T, error) {
	var v T
	b, err := json.Marshal(doc)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}

// pick keeps the fillable keys present in fields; nil fillable keeps all.
func pick(fields map[string]any, fillable []string) map[string]any {
	if fillable == nil {
		return fields
	}
	out := make(map[string]any, len(fillable))
	for _, key := range fillable {
		if v, ok := fields[key]; ok {
			out[key] = v
		}
	}
	return out
}

func project(doc Document, fields []string) Document {
	if len(fields) == 0 {
		return doc
	}
	out := Document{"id": doc["id"]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// filterKey renders a filter as key=value pairs. Values are quoted so one
// filter can never produce another filter's key.
func filterKey(f Filter) string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, k+"="+strconv.Quote(fmt.Sprint(f[k])))
	}
	return strings.Join(parts, ",")
}

// fieldStrings returns the string values at a dotted path, fanning out
// over arrays.
func fieldStrings(doc Document, key string) []string {
	var out []string
	var walk func(v any, path []string)
	walk = func(v any, path []string) {
		if arr, ok := v.([]any); ok {
			for _, item := range arr {
				walk(item, path)
			}
			return
		}
		if len(path) == 0 {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
			return
		}
		if obj, ok := v.(map[string]any); ok {
			walk(obj[path[0]], path[1:])
		}
	}
	walk(map[string]any(doc), strings.Split(key, "."))
	return out
}

// imagePaths accepts a path string or a list of strings / {url} objects.
func imagePaths(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range t {
			switch it := item.(type) {
			case string:
				if it != "" {
					out = append(out, it)
				}
			case map[string]any:
				if u, _ := it["url"].(string); u != "" {
					out = append(out, u)
				}
			}
		}
		return out
	}
	return nil
}
