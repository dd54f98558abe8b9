package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"regexp"
	"strings"
	"time"
)

// Querier is the part of pgxpool.Pool the driver needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// DocumentDriver keeps every resource as a JSONB row in the documents table.
type DocumentDriver struct {
	DB Querier
}

var segment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (d *DocumentDriver) Find(ctx context.Context, col string, f store.Filter, opts store.FindOptions) ([]store.Document, int, error) {
	where, args, err := buildWhere(col, f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := d.DB.QueryRow(ctx, "SELECT count(*) FROM documents WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	order, args, err := buildOrder(opts.Sort, args)
	if err != nil {
		return nil, 0, err
	}
	q := "SELECT doc FROM documents WHERE " + where + " ORDER BY " + order
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Skip > 0 {
		args = append(args, opts.Skip)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := d.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]store.Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, err
		}
		var doc store.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
}

func (d *DocumentDriver) FindOne(ctx context.Context, col string, f store.Filter) (store.Document, error) {
	where, args, err := buildWhere(col, f)
	if err != nil {
		return nil, err
	}
	return d.scanOne(ctx, "SELECT doc FROM documents WHERE "+where+" LIMIT 1", args...)
}

func (d *DocumentDriver) FindByID(ctx context.Context, col, id string) (store.Document, error) {
	return d.scanOne(ctx, "SELECT doc FROM documents WHERE collection = $1 AND id = $2", col, id)
}

func (d *DocumentDriver) Insert(ctx context.Context, col string, doc store.Document) error {
	id, raw, created, updated, err := row(doc)
	if err != nil {
		return err
	}
	_, err = d.DB.Exec(ctx, `
		INSERT INTO documents (collection, id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`, col, id, raw, created, updated)
	return err
}

func (d *DocumentDriver) UpdateOne(ctx context.Context, col, id string, doc store.Document) error {
	_, raw, _, updated, err := row(doc)
	if err != nil {
		return err
	}
	tag, err := d.DB.Exec(ctx, `
		UPDATE documents SET doc = $3, updated_at = $4
		WHERE collection = $1 AND id = $2`, col, id, raw, updated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNoDocument
	}
	return nil
}

func (d *DocumentDriver) DeleteOne(ctx context.Context, col, id string) error {
	tag, err := d.DB.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, col, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNoDocument
	}
	return nil
}

func (d *DocumentDriver) InsertMany(ctx context.Context, col string, docs []store.Document) error {
	batch := &pgx.Batch{}
	for _, doc := range docs {
		id, raw, created, updated, err := row(doc)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO documents (collection, id, doc, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`, col, id, raw, created, updated)
	}
	return d.DB.SendBatch(ctx, batch).Close()
}

func (d *DocumentDriver) DeleteMany(ctx context.Context, col string, f store.Filter) (int, error) {
	where, args, err := buildWhere(col, f)
	if err != nil {
		return 0, err
	}
	tag, err := d.DB.Exec(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (d *DocumentDriver) scanOne(ctx context.Context, q string, args ...any) (store.Document, error) {
	var raw []byte
	err := d.DB.QueryRow(ctx, q, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func row(doc store.Document) (id string, raw []byte, created, updated time.Time, err error) {
	id, _ = doc["id"].(string)
	if id == "" {
		return "", nil, created, updated, errors.New("document without id")
	}
	raw, err = json.Marshal(doc)
	if err != nil {
		return "", nil, created, updated, err
	}
	created = parseTime(doc["createdAt"])
	updated = parseTime(doc["updatedAt"])
	return id, raw, created, updated, nil
}

func parseTime(v any) time.Time {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// buildWhere turns a filter into SQL. Equality on any path goes through
// jsonb_path_exists, which unwraps arrays the same way the memory driver
// does. In and Regex only apply to top-level fields.
func buildWhere(col string, f store.Filter) (string, []any, error) {
	args := []any{col}
	parts := []string{"collection = $1"}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, key := range f.Keys() {
		segs := strings.Split(key, ".")
		for _, s := range segs {
			if !segment.MatchString(s) {
				return "", nil, fmt.Errorf("invalid filter key %q", key)
			}
		}
		switch c := f[key].(type) {
		case store.In:
			if len(segs) > 1 {
				return "", nil, fmt.Errorf("in filter on nested key %q", key)
			}
			if key == "id" {
				parts = append(parts, "id = ANY("+next([]string(c))+"::text[])")
				continue
			}
			parts = append(parts, "doc->>("+next(key)+"::text) = ANY("+next([]string(c))+"::text[])")
		case store.Regex:
			if len(segs) > 1 {
				return "", nil, fmt.Errorf("regex filter on nested key %q", key)
			}
			parts = append(parts, "doc->>("+next(key)+"::text) ~* "+next(string(c)))
		default:
			if key == "id" {
				parts = append(parts, "id = "+next(fmt.Sprint(c)))
				continue
			}
			val, err := json.Marshal(c)
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", key, err)
			}
			path := `$."` + strings.Join(segs, `"."`) + `" ? (@ == $v)`
			parts = append(parts, fmt.Sprintf("jsonb_path_exists(doc, %s::text::jsonpath, jsonb_build_object('v', %s::text::jsonb))",
				next(path), next(string(val))))
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

func buildOrder(sort string, args []any) (string, []any, error) {
	field := strings.TrimPrefix(sort, "-")
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
	}
	switch field {
	case "":
		return "created_at ASC, id ASC", args, nil
	case "id":
		return "id " + dir, args, nil
	case "createdAt":
		return "created_at " + dir + ", id " + dir, args, nil
	case "updatedAt":
		return "updated_at " + dir + ", id " + dir, args, nil
	}
	if !segment.MatchString(field) {
		return "", nil, fmt.Errorf("invalid sort key %q", sort)
	}
	args = append(args, field)
	return fmt.Sprintf("doc->($%d::text) %s, id %s", len(args), dir, dir), args, nil
}
