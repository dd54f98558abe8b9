package voucher

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"time"
)

type RefChecker interface {
	ExistsAll(ctx context.Context, key string, values []string, field string) error
}

type Service struct {
	Vouchers *store.Store[catalog.Voucher]
	Products RefChecker
	Packages RefChecker
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Resolve looks a voucher up by id or code among valid vouchers. An unknown
// or unusable voucher resolves to nil without error.
func (s *Service) Resolve(ctx context.Context, ref, buyer string) (*catalog.Voucher, error) {
	filter := store.Filter{"code": ref, "valid": true}
	if _, err := uuid.Parse(ref); err == nil {
		filter = store.Filter{"id": ref, "valid": true}
	}
	v, err := s.Vouchers.FindOne(ctx, filter)
	if errors.Is(err, store.ErrNotFound) {
		s.Log.Infow("voucher not found, pricing without it", "voucher", ref, "buyer", buyer)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ok, reason := Check(v, s.now(), buyer); !ok {
		s.Log.Infow("voucher skipped", "voucher", v.Code, "buyer", buyer, "reason", reason)
		return nil, nil
	}
	return &v, nil
}

func (s *Service) Create(ctx context.Context, fields map[string]any) (catalog.Voucher, error) {
	if err := s.validate(ctx, fields, ""); err != nil {
		return catalog.Voucher{}, err
	}
	if _, ok := fields["valid"]; !ok {
		fields["valid"] = true
	}
	normalizeConsumers(fields)
	return s.Vouchers.Create(ctx, store.CreateInput{Fields: fields, Fillable: catalog.VoucherFillable})
}

func (s *Service) Update(ctx context.Context, id string, fields map[string]any) (catalog.Voucher, error) {
	if err := s.validate(ctx, fields, id); err != nil {
		return catalog.Voucher{}, err
	}
	normalizeConsumers(fields)
	return s.Vouchers.Update(ctx, store.UpdateInput[catalog.Voucher]{
		ID:       id,
		Fields:   fields,
		Fillable: catalog.VoucherFillable,
	})
}

func (s *Service) validate(ctx context.Context, fields map[string]any, self string) error {
	if code, ok := fields["code"].(string); ok && code != "" {
		if err := s.ValidateCode(ctx, code, self); err != nil {
			return err
		}
	}
	if err := s.Products.ExistsAll(ctx, "id", stringList(fields["products"]), "products"); err != nil {
		return err
	}
	return s.Packages.ExistsAll(ctx, "id", stringList(fields["productPackages"]), "productPackages")
}

// ValidateCode requires code to be unused by any other valid voucher.
func (s *Service) ValidateCode(ctx context.Context, code, self string) error {
	v, err := s.Vouchers.FindOne(ctx, store.Filter{"code": code, "valid": true})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if v.ID == self {
		return nil
	}
	return &store.ConflictError{Key: "code"}
}

// InvalidateExpired flips valid off for every voucher whose validUntil is
// today or earlier.
func (s *Service) InvalidateExpired(ctx context.Context) (int, error) {
	today := startOfDay(s.now())
	var expired []catalog.Voucher
	for page := 1; ; page++ {
		res, err := s.Vouchers.List(ctx, store.Query{
			Filter:  store.Filter{"valid": true},
			Page:    page,
			PerPage: store.MaxPerPage,
		})
		if err != nil {
			return 0, err
		}
		for _, v := range res.Data {
			if v.ValidUntil != nil && !v.ValidUntil.After(today) {
				expired = append(expired, v)
			}
		}
		if !res.Pagination.HasNextPage {
			break
		}
	}
	for _, v := range expired {
		v.Valid = false
		if _, err := s.Vouchers.Replace(ctx, v.ID, v); err != nil {
			return 0, err
		}
	}
	if len(expired) > 0 {
		s.Log.Infow("vouchers invalidated", "count", len(expired))
	}
	return len(expired), nil
}

// RunSweeper calls InvalidateExpired every interval until ctx ends.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.InvalidateExpired(ctx); err != nil {
			s.Log.Errorw("voucher sweep", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// GenerateConsumers turns user ids into allow-list entries.
func GenerateConsumers(users []string) []catalog.VoucherConsumer {
	out := make([]catalog.VoucherConsumer, 0, len(users))
	for _, u := range users {
		out = append(out, catalog.VoucherConsumer{User: u})
	}
	return out
}

// normalizeConsumers accepts consumers as plain user ids.
func normalizeConsumers(fields map[string]any) {
	raw, ok := fields["consumers"].([]any)
	if !ok {
		return
	}
	var ids []string
	for _, c := range raw {
		id, ok := c.(string)
		if !ok {
			return
		}
		ids = append(ids, id)
	}
	fields["consumers"] = GenerateConsumers(ids)
}

func stringList(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
