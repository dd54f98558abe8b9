package payment

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInsufficientFunds = errors.New("balance is not sufficient")

type Service struct {
	Providers *store.Store[catalog.PaymentProvider]
	Log       *zap.SugaredLogger
}

// Account returns the provider holding a balance entry for user. A missing
// provider or entry is a validation failure on payWith.
func (s *Service) Account(ctx context.Context, providerID, user string) (catalog.PaymentProvider, error) {
	p, err := s.Providers.FindOne(ctx, store.Filter{"id": providerID, "consumers.user": user})
	if errors.Is(err, store.ErrNotFound) {
		return p, store.Invalid("payWith", "payment method is not registered for this user")
	}
	return p, err
}

func (s *Service) Balance(ctx context.Context, providerID, user string) (decimal.Decimal, error) {
	p, err := s.Account(ctx, providerID, user)
	if err != nil {
		return decimal.Zero, err
	}
	c, _ := p.Consumer(user)
	return c.Balance, nil
}

// ByConsumer lists providers where user holds a balance.
func (s *Service) ByConsumer(ctx context.Context, user string) ([]catalog.PaymentProvider, error) {
	var out []catalog.PaymentProvider
	for page := 1; ; page++ {
		res, err := s.Providers.List(ctx, store.Query{
			Filter:  store.Filter{"consumers.user": user},
			Page:    page,
			PerPage: store.MaxPerPage,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Data...)
		if !res.Pagination.HasNextPage {
			return out, nil
		}
	}
}

// TopUp sets the balance of user, adding the entry when missing.
func (s *Service) TopUp(ctx context.Context, providerID, user string, balance decimal.Decimal) (catalog.PaymentProvider, error) {
	if balance.IsNegative() {
		return catalog.PaymentProvider{}, store.Invalid("balance", "balance must not be negative")
	}
	p, err := s.Providers.GetByID(ctx, providerID)
	if err != nil {
		return p, err
	}
	found := false
	for i := range p.Consumers {
		if p.Consumers[i].User == user {
			p.Consumers[i].Balance = balance
			found = true
		}
	}
	if !found {
		p.Consumers = append(p.Consumers, catalog.Consumer{User: user, Balance: balance})
	}
	return s.Providers.Replace(ctx, p.ID, p)
}

func (s *Service) Debit(ctx context.Context, providerID, user string, amount decimal.Decimal) error {
	return s.adjust(ctx, providerID, user, amount.Neg())
}

func (s *Service) Credit(ctx context.Context, providerID, user string, amount decimal.Decimal) error {
	return s.adjust(ctx, providerID, user, amount)
}

func (s *Service) adjust(ctx context.Context, providerID, user string, delta decimal.Decimal) error {
	p, err := s.Account(ctx, providerID, user)
	if err != nil {
		return err
	}
	for i := range p.Consumers {
		if p.Consumers[i].User != user {
			continue
		}
		next := p.Consumers[i].Balance.Add(delta)
		if next.IsNegative() {
			return store.Invalid("payWith", ErrInsufficientFunds.Error())
		}
		p.Consumers[i].Balance = next
	}
	_, err = s.Providers.Replace(ctx, p.ID, p)
	return err
}

// CheckConsumers rejects duplicate balance entries for one user.
func CheckConsumers(fields map[string]any) error {
	raw, ok := fields["consumers"].([]any)
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	for _, c := range raw {
		m, _ := c.(map[string]any)
		user, _ := m["user"].(string)
		if user == "" {
			return store.Invalid("consumers", "consumer user is required")
		}
		if seen[user] {
			return store.Invalid("consumers", "consumer %s is listed twice", user)
		}
		seen[user] = true
	}
	return nil
}
