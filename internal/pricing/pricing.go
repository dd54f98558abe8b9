// Package pricing computes order amounts. It has no I/O.
package pricing

import (
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/shopspring/decimal"
	"math"
)

const earthRadiusKm = 6371.0

var (
	TaxRate = decimal.NewFromFloat(0.1)

	hundred = decimal.NewFromInt(100)
)

type Line struct {
	Product  catalog.Product
	Quantity int
}

// ProductTotal sums every line priced with the optional voucher.
//
// A percentage voucher value is multiplied by 100 before use. A fixed amount
// is taken off the running total of earlier lines, not the unit price. Both
// clamp at zero.
func ProductTotal(lines []Line, v *catalog.Voucher) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(PriceLine(l, v, total))
	}
	return total
}

// PriceLine prices one line; running is the product total before this line.
func PriceLine(l Line, v *catalog.Voucher, running decimal.Decimal) decimal.Decimal {
	price := l.Product.Price
	if v != nil && v.CoversProduct(l.Product.ID) {
		var reduced decimal.Decimal
		switch v.VoucherType {
		case catalog.VoucherAmount:
			reduced = running.Sub(v.VoucherValue)
		case catalog.VoucherPercentage:
			reduced = price.Sub(price.Mul(v.VoucherValue.Mul(hundred)))
		default:
			reduced = price
		}
		if reduced.IsNegative() {
			reduced = decimal.Zero
		}
		price = reduced
	}
	if l.Product.DiscountPrice != nil {
		price = *l.Product.DiscountPrice
	}
	return price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Distance is the great-circle distance in kilometres.
func Distance(a, b catalog.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceKm rounds Distance up to the next whole kilometre.
func DistanceKm(a, b catalog.Point) int64 {
	return int64(math.Ceil(Distance(a, b)))
}

func DeliveryPrice(km int64, rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(km))
}

type Summary struct {
	ProductTotal decimal.Decimal `json:"productTotal"`
	Delivery     decimal.Decimal `json:"delivery"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
}

func Summarize(productTotal, delivery decimal.Decimal) Summary {
	subtotal := productTotal.Add(delivery)
	tax := subtotal.Mul(TaxRate)
	return Summary{
		ProductTotal: productTotal,
		Delivery:     delivery,
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        subtotal.Add(tax),
	}
}
