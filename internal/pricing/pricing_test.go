package pricing_test

import (
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/pricing"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func product(id string, price int64) catalog.Product {
	return catalog.Product{Model: catalog.Model{ID: id}, Price: decimal.NewFromInt(price)}
}

var _ = Describe("Pricing", func() {
	Describe("ProductTotal", func() {
		It("multiplies price by quantity without a voucher", func() {
			total := pricing.ProductTotal([]pricing.Line{{Product: product("p1", 100000), Quantity: 2}}, nil)
			Expect(total.Equal(decimal.NewFromInt(200000))).To(BeTrue())
		})

		It("treats a missing quantity as one", func() {
			total := pricing.ProductTotal([]pricing.Line{{Product: product("p1", 5000)}}, nil)
			Expect(total.Equal(decimal.NewFromInt(5000))).To(BeTrue())
		})

		It("lets discountPrice win over the voucher", func() {
			p := product("p1", 100000)
			d := decimal.NewFromInt(80000)
			p.DiscountPrice = &d
			v := &catalog.Voucher{
				VoucherType:  catalog.VoucherPercentage,
				VoucherValue: decimal.RequireFromString("0.001"),
				Products:     []string{"p1"},
			}
			total := pricing.ProductTotal([]pricing.Line{{Product: p, Quantity: 3}}, v)
			Expect(total.Equal(decimal.NewFromInt(240000))).To(BeTrue())
		})

		It("scales a percentage value by 100", func() {
			v := &catalog.Voucher{
				VoucherType:  catalog.VoucherPercentage,
				VoucherValue: decimal.RequireFromString("0.001"),
				Products:     []string{"p1"},
			}
			// 0.001 * 100 = 10% off
			total := pricing.ProductTotal([]pricing.Line{{Product: product("p1", 100000), Quantity: 1}}, v)
			Expect(total.Equal(decimal.NewFromInt(90000))).To(BeTrue())
		})

		It("takes a fixed amount off the running total and clamps at zero", func() {
			v := &catalog.Voucher{
				VoucherType:  catalog.VoucherAmount,
				VoucherValue: decimal.NewFromInt(10000),
				Products:     []string{"p2"},
			}
			lines := []pricing.Line{
				{Product: product("p1", 50000), Quantity: 1},
				{Product: product("p2", 30000), Quantity: 1},
				{Product: product("p3", 20000), Quantity: 1},
			}
			// p2 becomes 50000 - 10000 = 40000
			Expect(pricing.ProductTotal(lines, v).Equal(decimal.NewFromInt(110000))).To(BeTrue())

			first := []pricing.Line{{Product: product("p2", 30000), Quantity: 2}}
			Expect(pricing.ProductTotal(first, v).IsZero()).To(BeTrue())
		})

		It("ignores vouchers outside their product scope", func() {
			v := &catalog.Voucher{
				VoucherType:  catalog.VoucherPercentage,
				VoucherValue: decimal.RequireFromString("0.005"),
				Products:     []string{"other"},
			}
			total := pricing.ProductTotal([]pricing.Line{{Product: product("p1", 1000), Quantity: 1}}, v)
			Expect(total.Equal(decimal.NewFromInt(1000))).To(BeTrue())
		})
	})

	It("multiplies by the quantity as given", func() {
		zero := pricing.PriceLine(pricing.Line{Product: product("p1", 1000), Quantity: 0}, nil, decimal.Zero)
		Expect(zero.IsZero()).To(BeTrue())

		three := pricing.PriceLine(pricing.Line{Product: product("p1", 1000), Quantity: 3}, nil, decimal.Zero)
		Expect(three.Equal(decimal.NewFromInt(3000))).To(BeTrue())
	})

	Describe("delivery", func() {
		It("rounds the distance up to the next kilometre", func() {
			km := pricing.DistanceKm(catalog.Point{}, catalog.Point{Lng: 1})
			Expect(km).To(Equal(int64(112)))
		})

		It("is zero for the same point", func() {
			Expect(pricing.DistanceKm(catalog.Point{Lat: -6.9, Lng: 107.6}, catalog.Point{Lat: -6.9, Lng: 107.6})).To(BeZero())
		})
	})

	It("summarises the reference order", func() {
		productTotal := pricing.ProductTotal([]pricing.Line{{Product: product("p1", 100000), Quantity: 2}}, nil)
		delivery := pricing.DeliveryPrice(13, decimal.NewFromInt(1000))
		s := pricing.Summarize(productTotal, delivery)

		Expect(s.Delivery.Equal(decimal.NewFromInt(13000))).To(BeTrue())
		Expect(s.Subtotal.Equal(decimal.NewFromInt(213000))).To(BeTrue())
		Expect(s.Tax.Equal(decimal.NewFromInt(21300))).To(BeTrue())
		Expect(s.Total.Equal(decimal.NewFromInt(234300))).To(BeTrue())
	})
})
