package voucher_test

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/memory"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/ariefcatur/go-catalog-orders/internal/voucher"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"time"
)

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		svc      *voucher.Service
		products *store.Store[catalog.Product]
	)

	BeforeEach(func() {
		ctx = context.Background()
		log := zap.NewNop().Sugar()
		deps := store.Deps{Driver: memory.NewDriver(), Cache: memory.NewCache(), Log: log, Tenant: "shop"}
		products = store.New[catalog.Product](catalog.ResourceProduct, deps)
		svc = &voucher.Service{
			Vouchers: store.New[catalog.Voucher](catalog.ResourceVoucher, deps),
			Products: products,
			Packages: store.New[catalog.ProductPackage](catalog.ResourceProductPackage, deps),
			Log:      log,
			Now:      func() time.Time { return now },
		}
	})

	create := func(fields map[string]any) catalog.Voucher {
		v, err := svc.Create(ctx, fields)
		Expect(err).ShouldNot(HaveOccurred())
		return v
	}

	Context("Create", func() {
		It("defaults valid and expands consumer ids", func() {
			v := create(map[string]any{"code": "HEMAT", "title": "Hemat", "voucherType": "amount", "voucherValue": 5000, "consumers": []any{"u1", "u2"}})
			Expect(v.Valid).Should(BeTrue())
			Expect(v.Consumers).Should(HaveLen(2))
			Expect(v.HasConsumer("u2")).Should(BeTrue())
		})

		It("rejects a code held by another valid voucher", func() {
			create(map[string]any{"code": "HEMAT"})
			_, err := svc.Create(ctx, map[string]any{"code": "HEMAT"})
			Expect(errors.Is(err, store.ErrConflict)).Should(BeTrue())
		})

		It("lets an invalidated code be reused", func() {
			create(map[string]any{"code": "HEMAT", "valid": false})
			create(map[string]any{"code": "HEMAT"})
		})

		It("requires referenced products to exist", func() {
			_, err := svc.Create(ctx, map[string]any{"code": "HEMAT", "products": []any{"nope"}})
			Expect(errors.Is(err, store.ErrValidation)).Should(BeTrue())
		})
	})

	Context("Update", func() {
		It("keeps its own code", func() {
			v := create(map[string]any{"code": "HEMAT", "title": "Old"})
			got, err := svc.Update(ctx, v.ID, map[string]any{"code": "HEMAT", "title": "New"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Title).Should(Equal("New"))
		})
	})

	Context("Resolve", func() {
		It("finds by id and by code", func() {
			v := create(map[string]any{"code": "HEMAT"})

			byID, err := svc.Resolve(ctx, v.ID, "u1")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(byID).ShouldNot(BeNil())

			byCode, err := svc.Resolve(ctx, "HEMAT", "u1")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(byCode.ID).Should(Equal(v.ID))
		})

		It("ignores unknown and unusable vouchers", func() {
			create(map[string]any{"code": "VIP", "consumers": []any{"u2"}})
			create(map[string]any{"code": "OFF", "valid": false})

			for _, ref := range []string{"NOPE", "VIP", "OFF"} {
				got, err := svc.Resolve(ctx, ref, "u1")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(got).Should(BeNil())
			}
		})
	})

	Context("InvalidateExpired", func() {
		It("turns off vouchers ending today or earlier", func() {
			yesterday := create(map[string]any{"code": "A", "validUntil": day(-1)})
			today := create(map[string]any{"code": "B", "validUntil": day(0)})
			later := create(map[string]any{"code": "C", "validUntil": day(3)})
			create(map[string]any{"code": "D"})

			n, err := svc.InvalidateExpired(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(2))

			for id, valid := range map[string]bool{yesterday.ID: false, today.ID: false, later.ID: true} {
				v, err := svc.Vouchers.GetByID(ctx, id)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(v.Valid).Should(Equal(valid))
			}

			n, err = svc.InvalidateExpired(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(BeZero())
		})
	})
})
