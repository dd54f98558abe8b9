package courier

import (
	"context"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/pricing"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/shopspring/decimal"
)

type Quote struct {
	Provider string          `json:"provider"`
	Distance int64           `json:"distance"` // km
	Price    decimal.Decimal `json:"price"`
}

type Service struct {
	Couriers *store.Store[catalog.CourierProvider]
}

func (s *Service) Distance(from, to catalog.Point) int64 {
	return pricing.DistanceKm(from, to)
}

func (s *Service) Quote(ctx context.Context, providerID string, from, to catalog.Point) (Quote, error) {
	c, err := s.Couriers.Show(ctx, providerID, true)
	if err != nil {
		return Quote{}, err
	}
	km := pricing.DistanceKm(from, to)
	return Quote{Provider: c.ID, Distance: km, Price: pricing.DeliveryPrice(km, c.Price)}, nil
}
