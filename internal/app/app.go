// Package app wires stores, services and routes for one process.
package app

import (
	"context"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/courier"
	"github.com/ariefcatur/go-catalog-orders/internal/httpx"
	"github.com/ariefcatur/go-catalog-orders/internal/memory"
	"github.com/ariefcatur/go-catalog-orders/internal/metrics"
	"github.com/ariefcatur/go-catalog-orders/internal/orders"
	"github.com/ariefcatur/go-catalog-orders/internal/payment"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/ariefcatur/go-catalog-orders/internal/voucher"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
)

type Options struct {
	Origin       catalog.Point
	DebitBalance bool
	Locker       orders.Locker
	JWTSecret    []byte
	Metrics      *metrics.ServerMetrics
}

type App struct {
	Addresses  *store.Store[catalog.Address]
	Categories *store.Store[catalog.Category]
	Products   *store.Store[catalog.Product]
	Packages   *store.Store[catalog.ProductPackage]
	Vouchers   *store.Store[catalog.Voucher]
	Orders     *store.Store[orders.Order]
	Providers  *store.Store[catalog.PaymentProvider]
	Couriers   *store.Store[catalog.CourierProvider]

	VoucherService *voucher.Service
	PaymentService *payment.Service
	CourierService *courier.Service
	OrderService   *orders.Service
	Checkout       *orders.Checkout

	opts Options
	log  *zap.SugaredLogger
}

func New(d store.Deps, opts Options) *App {
	if opts.Locker == nil {
		opts.Locker = memory.NewLocker()
	}
	a := &App{
		Addresses:  store.New[catalog.Address](catalog.ResourceAddress, d),
		Categories: store.New[catalog.Category](catalog.ResourceCategory, d),
		Products:   store.New[catalog.Product](catalog.ResourceProduct, d),
		Packages:   store.New[catalog.ProductPackage](catalog.ResourceProductPackage, d),
		Vouchers:   store.New[catalog.Voucher](catalog.ResourceVoucher, d),
		Orders:     store.New[orders.Order](catalog.ResourceOrder, d),
		Providers:  store.New[catalog.PaymentProvider](catalog.ResourcePaymentProvider, d),
		Couriers:   store.New[catalog.CourierProvider](catalog.ResourceCourierProvider, d),
		opts:       opts,
		log:        d.Log,
	}
	a.VoucherService = &voucher.Service{
		Vouchers: a.Vouchers,
		Products: a.Products,
		Packages: a.Packages,
		Log:      d.Log,
		Now:      d.Now,
	}
	a.PaymentService = &payment.Service{Providers: a.Providers, Log: d.Log}
	a.CourierService = &courier.Service{Couriers: a.Couriers}
	a.OrderService = &orders.Service{Orders: a.Orders, Log: d.Log}
	a.Checkout = &orders.Checkout{
		Products:     a.Products,
		Packages:     a.Packages,
		Addresses:    a.Addresses,
		Couriers:     a.Couriers,
		Payments:     a.PaymentService,
		Vouchers:     a.VoucherService,
		Orders:       a.Orders,
		Locker:       opts.Locker,
		Log:          d.Log,
		Origin:       opts.Origin,
		DebitBalance: opts.DebitBalance,
	}
	return a
}

// Routes mounts the public API under /api behind token auth.
func (a *App) Routes() http.Handler {
	r := httpx.NewRouter(a.log, a.opts.Metrics)
	r.Route("/api", func(r chi.Router) {
		r.Use(httpx.Authenticate(a.opts.JWTSecret, a.log))

		(&httpx.ResourceHandler[catalog.Category]{
			Store: a.Categories, Path: "categories", Slug: "category",
			Fillable: catalog.CategoryFillable, Uniques: []string{"name"}, Log: a.log,
		}).Register(r)

		(&httpx.ResourceHandler[catalog.Product]{
			Store: a.Products, Path: "products", Slug: "product",
			Fillable: catalog.ProductFillable, ImageKey: "images", Log: a.log,
			Validate: func(ctx context.Context, _ string, f map[string]any) error {
				return a.Categories.ExistsAll(ctx, "id", stringList(f["categories"]), "categories")
			},
		}).Register(r)

		(&httpx.ResourceHandler[catalog.ProductPackage]{
			Store: a.Packages, Path: "product-packages", Slug: "product-package",
			Fillable: catalog.ProductPackageFillable, ImageKey: "image", Log: a.log,
			Validate: func(ctx context.Context, _ string, f map[string]any) error {
				return a.Products.ExistsAll(ctx, "id", packageProducts(f["products"]), "products")
			},
		}).Register(r)

		(&httpx.ResourceHandler[catalog.Voucher]{
			Store: a.Vouchers, Path: "vouchers", Slug: "voucher",
			Fillable: catalog.VoucherFillable, ImageKey: "image", Log: a.log,
			Create: a.VoucherService.Create,
			Update: a.VoucherService.Update,
		}).Register(r)

		(&httpx.ResourceHandler[catalog.PaymentProvider]{
			Store: a.Providers, Path: "payment-providers", Slug: "payment-provider",
			Fillable: catalog.PaymentProviderFillable, Uniques: []string{"provider"}, Log: a.log,
			Validate: func(_ context.Context, _ string, f map[string]any) error {
				return payment.CheckConsumers(f)
			},
		}).Register(r)

		(&httpx.ResourceHandler[catalog.CourierProvider]{
			Store: a.Couriers, Path: "courier-providers", Slug: "courier-provider",
			Fillable: catalog.CourierProviderFillable, Uniques: []string{"provider"}, Log: a.log,
		}).Register(r)

		(&httpx.MyAddressesHandler{Store: a.Addresses, Log: a.log}).Register(r)

		(&httpx.OrdersHandler{
			Store:    a.Orders,
			Checkout: a.Checkout,
			Service:  a.OrderService,
			Metrics:  a.opts.Metrics,
			Log:      a.log,
		}).Register(r)

		(&httpx.UtilsHandler{
			Vouchers: a.VoucherService,
			Payments: a.PaymentService,
			Couriers: a.CourierService,
			Origin:   a.opts.Origin,
			Log:      a.log,
		}).Register(r)
	})
	return r
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

func packageProducts(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		m, _ := x.(map[string]any)
		if id, ok := m["product"].(string); ok {
			out = append(out, id)
		}
	}
	return out
}
