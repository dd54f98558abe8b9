package orders

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/pricing"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RefChecker interface {
	ExistsAll(ctx context.Context, key string, values []string, field string) error
}

type ProductReader interface {
	RefChecker
	FindByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
}

type AddressReader interface {
	RefChecker
	FindOne(ctx context.Context, filter store.Filter) (catalog.Address, error)
}

type CourierReader interface {
	RefChecker
	GetByID(ctx context.Context, id string) (catalog.CourierProvider, error)
}

type Payments interface {
	Account(ctx context.Context, providerID, user string) (catalog.PaymentProvider, error)
	Balance(ctx context.Context, providerID, user string) (decimal.Decimal, error)
	Debit(ctx context.Context, providerID, user string, amount decimal.Decimal) error
	Credit(ctx context.Context, providerID, user string, amount decimal.Decimal) error
}

type Vouchers interface {
	Resolve(ctx context.Context, ref, buyer string) (*catalog.Voucher, error)
}

type OrderWriter interface {
	Insert(ctx context.Context, o Order) (Order, error)
}

type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Checkout turns a cart into a persisted order. Nothing is written unless
// every check passes.
type Checkout struct {
	Products  ProductReader
	Packages  RefChecker
	Addresses AddressReader
	Couriers  CourierReader
	Payments  Payments
	Vouchers  Vouchers
	Orders    OrderWriter
	Locker    Locker
	Log       *zap.SugaredLogger

	Origin       catalog.Point
	DebitBalance bool
	NewCode      func() string
}

// Quote is what the buyer pays for a cart.
type Quote struct {
	pricing.Summary
	Voucher string `json:"voucher,omitempty"`
}

func (c *Checkout) CreateOrder(ctx context.Context, cart Cart, buyer string) (Order, error) {
	if err := c.validate(ctx, cart, buyer); err != nil {
		return Order{}, err
	}

	q, err := c.quote(ctx, cart, buyer)
	if err != nil {
		return Order{}, err
	}

	// cek saldo dan simpan order di bawah satu lock per provider+user
	unlock, err := c.Locker.Lock(ctx, BalanceLockKey(cart.PayWith, buyer))
	if err != nil {
		return Order{}, fmt.Errorf("lock balance: %w", err)
	}
	defer unlock()

	balance, err := c.Payments.Balance(ctx, cart.PayWith, buyer)
	if err != nil {
		return Order{}, err
	}
	if !balance.GreaterThan(q.Total) {
		return Order{}, store.Invalid("payWith", "balance is not sufficient")
	}

	if c.DebitBalance {
		if err := c.Payments.Debit(ctx, cart.PayWith, buyer, q.Total); err != nil {
			return Order{}, err
		}
	}

	order := Order{
		OrderID:   c.code(),
		User:      buyer,
		Products:  cart.Products,
		Packages:  cart.Packages,
		Address:   cart.Address,
		Courier:   cart.Courier,
		PayWith:   cart.PayWith,
		Voucher:   q.Voucher,
		Amount:    q.Total,
		Status:    StatusNew,
		Histories: []History{},
	}
	created, err := c.Orders.Insert(ctx, order)
	if err != nil {
		if c.DebitBalance {
			if rerr := c.Payments.Credit(ctx, cart.PayWith, buyer, q.Total); rerr != nil {
				c.Log.Errorw("refund after failed order write", "buyer", buyer, "provider", cart.PayWith, "amount", q.Total, "error", rerr)
			}
		}
		return Order{}, err
	}
	c.Log.Infow("order created", "order", created.OrderID, "buyer", buyer, "amount", created.Amount)
	return created, nil
}

func (c *Checkout) validate(ctx context.Context, cart Cart, buyer string) error {
	if len(cart.Products) == 0 && len(cart.Packages) == 0 {
		return store.Invalid("products", "order must contain products or packages")
	}
	for _, l := range cart.Products {
		if l.Qty < 1 {
			return store.Invalid("products", "quantity must be at least 1")
		}
	}
	if err := c.Products.ExistsAll(ctx, "id", cart.ProductIDs(), "products"); err != nil {
		return err
	}
	if err := c.Packages.ExistsAll(ctx, "id", cart.Packages, "packages"); err != nil {
		return err
	}
	if err := c.Addresses.ExistsAll(ctx, "id", []string{cart.Address}, "address"); err != nil {
		return err
	}
	if err := c.Couriers.ExistsAll(ctx, "id", []string{cart.Courier}, "courier"); err != nil {
		return err
	}
	_, err := c.Payments.Account(ctx, cart.PayWith, buyer)
	return err
}

func (c *Checkout) quote(ctx context.Context, cart Cart, buyer string) (Quote, error) {
	address, err := c.Addresses.FindOne(ctx, store.Filter{"id": cart.Address, "user": buyer})
	if err != nil {
		return Quote{}, err
	}

	var q Quote
	var voucher *catalog.Voucher
	if cart.Voucher != "" {
		if voucher, err = c.Vouchers.Resolve(ctx, cart.Voucher, buyer); err != nil {
			return Quote{}, err
		}
		if voucher != nil {
			q.Voucher = voucher.ID
		}
	}

	products, err := c.Products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return Quote{}, err
	}
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]pricing.Line, 0, len(cart.Products))
	for _, l := range cart.Products {
		p, ok := byID[l.Product]
		if !ok {
			return Quote{}, store.Invalid("products", "one of products is not exists")
		}
		lines = append(lines, pricing.Line{Product: p, Quantity: l.Qty})
	}
	productTotal := pricing.ProductTotal(lines, voucher)

	courier, err := c.Couriers.GetByID(ctx, cart.Courier)
	if err != nil {
		return Quote{}, err
	}
	km := pricing.DistanceKm(c.Origin, address.Point())
	delivery := pricing.DeliveryPrice(km, courier.Price)

	q.Summary = pricing.Summarize(productTotal, delivery)
	return q, nil
}

func (c *Checkout) code() string {
	if c.NewCode != nil {
		return c.NewCode()
	}
	return ulid.Make().String()
}

func BalanceLockKey(provider, user string) string {
	return fmt.Sprintf("lock:balance:%s:%s", provider, user)
}
