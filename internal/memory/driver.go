// Package memory holds in-process implementations of the storage, cache,
// bus and lock contracts. They back local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"regexp"
	"sort"
	"strings"
	"sync"
)

type Driver struct {
	mu   sync.RWMutex
	cols map[string][]store.Document
}

func NewDriver() *Driver {
	return &Driver{cols: map[string][]store.Document{}}
}

func (d *Driver) Find(_ context.Context, col string, f store.Filter, opts store.FindOptions) ([]store.Document, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hits []store.Document
	for _, doc := range d.cols[col] {
		ok, err := Match(doc, f)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			hits = append(hits, doc)
		}
	}
	if opts.Sort != "" {
		sortDocs(hits, opts.Sort)
	}
	total := len(hits)
	if opts.Skip >= len(hits) {
		hits = nil
	} else {
		hits = hits[opts.Skip:]
	}
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	out := make([]store.Document, 0, len(hits))
	for _, doc := range hits {
		out = append(out, clone(doc))
	}
	return out, total, nil
}

func (d *Driver) FindOne(ctx context.Context, col string, f store.Filter) (store.Document, error) {
	docs, _, err := d.Find(ctx, col, f, store.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNoDocument
	}
	return docs[0], nil
}

func (d *Driver) FindByID(_ context.Context, col, id string) (store.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.index(col, id); i >= 0 {
		return clone(d.cols[col][i]), nil
	}
	return nil, store.ErrNoDocument
}

func (d *Driver) Insert(_ context.Context, col string, doc store.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, _ := doc["id"].(string)
	if d.index(col, id) >= 0 {
		return fmt.Errorf("duplicate id %q in %s", id, col)
	}
	d.cols[col] = append(d.cols[col], clone(doc))
	return nil
}

func (d *Driver) UpdateOne(_ context.Context, col, id string, doc store.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.index(col, id)
	if i < 0 {
		return store.ErrNoDocument
	}
	d.cols[col][i] = clone(doc)
	return nil
}

func (d *Driver) DeleteOne(_ context.Context, col, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.index(col, id)
	if i < 0 {
		return store.ErrNoDocument
	}
	d.cols[col] = append(d.cols[col][:i], d.cols[col][i+1:]...)
	return nil
}

func (d *Driver) InsertMany(ctx context.Context, col string, docs []store.Document) error {
	for _, doc := range docs {
		if err := d.Insert(ctx, col, doc); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) DeleteMany(_ context.Context, col string, f store.Filter) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.cols[col][:0]
	n := 0
	for _, doc := range d.cols[col] {
		ok, err := Match(doc, f)
		if err != nil {
			return n, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	d.cols[col] = kept
	return n, nil
}

func (d *Driver) index(col, id string) int {
	for i, doc := range d.cols[col] {
		if doc["id"] == id {
			return i
		}
	}
	return -1
}

// Match reports whether doc satisfies every condition in f.
func Match(doc store.Document, f store.Filter) (bool, error) {
	for _, key := range f.Keys() {
		var (
			pred func(any) bool
			cond = f[key]
		)
		switch c := cond.(type) {
		case store.In:
			set := make(map[string]bool, len(c))
			for _, v := range c {
				set[v] = true
			}
			pred = func(v any) bool { return set[scalar(v)] }
		case store.Regex:
			re, err := regexp.Compile("(?i)" + string(c))
			if err != nil {
				return false, fmt.Errorf("filter %s: %w", key, err)
			}
			pred = func(v any) bool {
				s, ok := v.(string)
				return ok && re.MatchString(s)
			}
		default:
			want := jsonValue(c)
			pred = func(v any) bool { return equal(v, want) }
		}
		if !walk(map[string]any(doc), strings.Split(key, "."), pred) {
			return false, nil
		}
	}
	return true, nil
}

// walk follows path through objects, fanning out over arrays.
func walk(v any, path []string, pred func(any) bool) bool {
	if arr, ok := v.([]any); ok {
		for _, item := range arr {
			if walk(item, path, pred) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return pred(v)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	next, ok := obj[path[0]]
	if !ok {
		return false
	}
	return walk(next, path[1:], pred)
}

func equal(a, b any) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

func scalar(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func sortDocs(docs []store.Document, order string) {
	desc := strings.HasPrefix(order, "-")
	path := strings.Split(strings.TrimPrefix(order, "-"), ".")
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := lookup(docs[i], path), lookup(docs[j], path)
		if desc {
			a, b = b, a
		}
		return lessValue(a, b)
	})
}

func lookup(doc store.Document, path []string) any {
	var cur any = map[string]any(doc)
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func lessValue(a, b any) bool {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	case nil:
		return b != nil
	}
	return scalar(a) < scalar(b)
}

func clone(doc store.Document) store.Document {
	b, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out store.Document
	if err := json.Unmarshal(b, &out); err != nil {
		return doc
	}
	return out
}
