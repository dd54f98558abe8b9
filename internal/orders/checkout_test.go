package orders_test

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/memory"
	"github.com/ariefcatur/go-catalog-orders/internal/orders"
	"github.com/ariefcatur/go-catalog-orders/internal/payment"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/ariefcatur/go-catalog-orders/internal/voucher"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"sync"
)

// recordingLocker remembers which keys were taken.
type recordingLocker struct {
	*memory.Locker

	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.Locker.Lock(ctx, key)
}

type failingWriter struct{}

func (failingWriter) Insert(context.Context, orders.Order) (orders.Order, error) {
	return orders.Order{}, errors.New("disk full")
}

var _ = Describe("Checkout", func() {
	var (
		ctx       context.Context
		bus       *memory.Bus
		orderRepo *store.Store[orders.Order]
		providers *store.Store[catalog.PaymentProvider]
		payments  *payment.Service
		vouchers  *voucher.Service
		checkout  *orders.Checkout
	)

	const buyer = "u1"

	setBalance := func(v int64) {
		_, err := payments.TopUp(ctx, "pay1", buyer, decimal.NewFromInt(v))
		Expect(err).ShouldNot(HaveOccurred())
	}

	cart := func() orders.Cart {
		return orders.Cart{
			Products: []orders.Line{{Product: "p1", Qty: 2}},
			Address:  "a1",
			Courier:  "c1",
			PayWith:  "pay1",
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		log := zap.NewNop().Sugar()
		bus = &memory.Bus{}
		deps := store.Deps{Driver: memory.NewDriver(), Cache: memory.NewCache(), Bus: bus, Log: log, Tenant: "shop"}

		products := store.New[catalog.Product](catalog.ResourceProduct, deps)
		packages := store.New[catalog.ProductPackage](catalog.ResourceProductPackage, deps)
		addresses := store.New[catalog.Address](catalog.ResourceAddress, deps)
		couriers := store.New[catalog.CourierProvider](catalog.ResourceCourierProvider, deps)
		providers = store.New[catalog.PaymentProvider](catalog.ResourcePaymentProvider, deps)
		orderRepo = store.New[orders.Order](catalog.ResourceOrder, deps)

		Expect(products.InsertMany(ctx, []catalog.Product{
			{Model: catalog.Model{ID: "p1"}, Name: "Kopi Gayo", Price: decimal.NewFromInt(100000)},
			{Model: catalog.Model{ID: "p2"}, Name: "Teh", Price: decimal.NewFromInt(20000)},
		})).Should(Succeed())
		Expect(addresses.InsertMany(ctx, []catalog.Address{
			{Model: catalog.Model{ID: "a1"}, User: buyer, Latitude: 0, Longitude: 0.1115},
			{Model: catalog.Model{ID: "a2"}, User: "u2", Latitude: 0, Longitude: 0.1115},
		})).Should(Succeed())
		Expect(couriers.InsertMany(ctx, []catalog.CourierProvider{
			{Model: catalog.Model{ID: "c1"}, Provider: "kurir", Price: decimal.NewFromInt(1000)},
		})).Should(Succeed())
		Expect(providers.InsertMany(ctx, []catalog.PaymentProvider{
			{Model: catalog.Model{ID: "pay1"}, Provider: "dompet", Consumers: []catalog.Consumer{{User: buyer}, {User: "u2"}}},
		})).Should(Succeed())

		payments = &payment.Service{Providers: providers, Log: log}
		vouchers = &voucher.Service{
			Vouchers: store.New[catalog.Voucher](catalog.ResourceVoucher, deps),
			Products: products,
			Packages: packages,
			Log:      log,
		}
		checkout = &orders.Checkout{
			Products:  products,
			Packages:  packages,
			Addresses: addresses,
			Couriers:  couriers,
			Payments:  payments,
			Vouchers:  vouchers,
			Orders:    orderRepo,
			Locker:    memory.NewLocker(),
			Log:       log,
			Origin:    catalog.Point{Lat: 0, Lng: 0},
			NewCode:   func() string { return "ORD-1" },
		}
	})

	countOrders := func() int {
		page, err := orderRepo.List(ctx, store.Query{})
		Expect(err).ShouldNot(HaveOccurred())
		return page.Pagination.TotalDocs
	}

	It("creates an order priced with delivery and tax", func() {
		setBalance(234301)

		o, err := checkout.CreateOrder(ctx, cart(), buyer)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(o.ID).ShouldNot(BeEmpty())
		Expect(o.OrderID).Should(Equal("ORD-1"))
		Expect(o.Status).Should(Equal(orders.StatusNew))
		Expect(o.User).Should(Equal(buyer))
		Expect(o.Histories).Should(BeEmpty())
		Expect(o.Amount.String()).Should(Equal("234300"))
		Expect(bus.Topics()).Should(ContainElement("shop/create/Order"))

		bal, err := payments.Balance(ctx, "pay1", buyer)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(bal.String()).Should(Equal("234301"))
	})

	It("requires a balance strictly above the total", func() {
		setBalance(234300)

		_, err := checkout.CreateOrder(ctx, cart(), buyer)
		var ve *store.ValidationError
		Expect(errors.As(err, &ve)).Should(BeTrue())
		Expect(ve.Field).Should(Equal("payWith"))
		Expect(ve.Message).Should(Equal("balance is not sufficient"))
		Expect(countOrders()).Should(BeZero())
	})

	It("prices without a voucher the buyer cannot use", func() {
		setBalance(1000000)
		_, err := vouchers.Create(ctx, map[string]any{
			"code": "VIP", "voucherType": "amount", "voucherValue": 50000,
			"products": []any{"p1"}, "consumers": []any{"u2"},
		})
		Expect(err).ShouldNot(HaveOccurred())

		c := cart()
		c.Voucher = "VIP"
		o, err := checkout.CreateOrder(ctx, c, buyer)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(o.Voucher).Should(BeEmpty())
		Expect(o.Amount.String()).Should(Equal("234300"))
	})

	It("applies a usable voucher", func() {
		setBalance(1000000)
		v, err := vouchers.Create(ctx, map[string]any{
			"code": "TEH", "voucherType": "amount", "voucherValue": 5000, "products": []any{"p2"},
		})
		Expect(err).ShouldNot(HaveOccurred())

		c := cart()
		c.Products = append(c.Products, orders.Line{Product: "p2", Qty: 1})
		c.Voucher = "TEH"
		o, err := checkout.CreateOrder(ctx, c, buyer)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(o.Voucher).Should(Equal(v.ID))
		// p1: 200000, p2: running 200000 - 5000 = 195000, delivery 13000, tax 10%
		Expect(o.Amount.String()).Should(Equal("448800"))
	})

	It("rejects another user's address", func() {
		setBalance(1000000)
		c := cart()
		c.Address = "a2"

		_, err := checkout.CreateOrder(ctx, c, buyer)
		Expect(errors.Is(err, store.ErrNotFound)).Should(BeTrue())
		Expect(countOrders()).Should(BeZero())
	})

	It("rejects unknown products without writing", func() {
		setBalance(1000000)
		c := cart()
		c.Products = append(c.Products, orders.Line{Product: "ghost", Qty: 1})

		_, err := checkout.CreateOrder(ctx, c, buyer)
		Expect(errors.Is(err, store.ErrValidation)).Should(BeTrue())
		Expect(countOrders()).Should(BeZero())
	})

	It("rejects quantities below one", func() {
		setBalance(1000000)
		for _, qty := range []int{0, -1} {
			c := cart()
			c.Products[0].Qty = qty

			_, err := checkout.CreateOrder(ctx, c, buyer)
			var ve *store.ValidationError
			Expect(errors.As(err, &ve)).Should(BeTrue())
			Expect(ve.Field).Should(Equal("products"))
		}
		Expect(countOrders()).Should(BeZero())
	})

	It("issues unique time-ordered order codes by default", func() {
		setBalance(1000000)
		checkout.NewCode = nil

		first, err := checkout.CreateOrder(ctx, cart(), buyer)
		Expect(err).ShouldNot(HaveOccurred())
		second, err := checkout.CreateOrder(ctx, cart(), buyer)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(first.OrderID).Should(HaveLen(26))
		Expect(second.OrderID).ShouldNot(Equal(first.OrderID))
		Expect(second.OrderID > first.OrderID).Should(BeTrue())
	})

	It("rejects an empty cart", func() {
		_, err := checkout.CreateOrder(ctx, orders.Cart{Address: "a1", Courier: "c1", PayWith: "pay1"}, buyer)
		Expect(errors.Is(err, store.ErrValidation)).Should(BeTrue())
	})

	It("rejects a payment method the buyer is not registered with", func() {
		_, err := checkout.CreateOrder(ctx, cart(), "stranger")
		var ve *store.ValidationError
		Expect(errors.As(err, &ve)).Should(BeTrue())
		Expect(ve.Field).Should(Equal("payWith"))
	})

	Context("when debiting the balance", func() {
		BeforeEach(func() {
			checkout.DebitBalance = true
			setBalance(300000)
		})

		It("takes the total off the balance", func() {
			_, err := checkout.CreateOrder(ctx, cart(), buyer)
			Expect(err).ShouldNot(HaveOccurred())

			bal, err := payments.Balance(ctx, "pay1", buyer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(bal.String()).Should(Equal("65700"))
		})

		It("lets only one of two concurrent checkouts spend the balance", func() {
			locker := &recordingLocker{Locker: memory.NewLocker()}
			checkout.Locker = locker

			var (
				wg   sync.WaitGroup
				errs = make([]error, 2)
			)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = checkout.CreateOrder(ctx, cart(), buyer)
				}(i)
			}
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				Expect(errors.Is(err, store.ErrValidation)).Should(BeTrue())
			}
			Expect(succeeded).Should(Equal(1))
			Expect(countOrders()).Should(Equal(1))

			bal, err := payments.Balance(ctx, "pay1", buyer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(bal.String()).Should(Equal("65700"))
			Expect(locker.keys).Should(ConsistOf(orders.BalanceLockKey("pay1", buyer), orders.BalanceLockKey("pay1", buyer)))
		})

		It("refunds when the order cannot be stored", func() {
			checkout.Orders = failingWriter{}

			_, err := checkout.CreateOrder(ctx, cart(), buyer)
			Expect(err).Should(HaveOccurred())

			bal, err := payments.Balance(ctx, "pay1", buyer)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(bal.String()).Should(Equal("300000"))
		})
	})
})
