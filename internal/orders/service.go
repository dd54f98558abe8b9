package orders

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"go.uber.org/zap"
)

// Service changes orders after checkout.
type Service struct {
	Orders *store.Store[Order]
	Log    *zap.SugaredLogger
}

// Update applies staff changes, enforcing the status workflow and
// appending a history entry for actor. match scopes the lookup when set.
func (s *Service) Update(ctx context.Context, id string, match store.Filter, fields map[string]any, actor string) (Order, error) {
	applied := make(map[string]any, len(UpdateFillable))
	for _, k := range UpdateFillable {
		if v, ok := fields[k]; ok {
			applied[k] = v
		}
	}

	var current Order
	var err error
	if id != "" {
		current, err = s.Orders.GetByID(ctx, id)
	} else {
		current, err = s.Orders.FindOne(ctx, match)
	}
	if err != nil {
		return Order{}, err
	}
	if raw, ok := applied["status"]; ok {
		next, _ := raw.(string)
		if !Status(next).Known() {
			return Order{}, store.Invalid("status", "unknown status %q", next)
		}
		if Status(next) != current.Status && !CanTransition(current.Status, Status(next)) {
			return Order{}, store.Invalid("status", "cannot move order from %s to %s", current.Status, next)
		}
	}

	summary, err := json.Marshal(applied)
	if err != nil {
		return Order{}, err
	}
	return s.Orders.Update(ctx, store.UpdateInput[Order]{
		ID:       current.ID,
		Fields:   applied,
		Fillable: UpdateFillable,
		Apply: func(o *Order) error {
			o.Histories = append(o.Histories, History{User: actor, UpdatedValues: string(summary)})
			return nil
		},
	})
}

func (s *Service) Destroy(ctx context.Context, id string) error {
	return s.Orders.Destroy(ctx, store.DestroyInput{ID: id, ImageKey: "image"})
}
