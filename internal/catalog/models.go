package catalog

import (
	"github.com/shopspring/decimal"
	"time"
)

// Resource names double as cache key prefixes and change topic segments.
const (
	ResourceAddress         = "Address"
	ResourceCategory        = "Category"
	ResourceProduct         = "Product"
	ResourceProductPackage  = "ProductPackage"
	ResourceVoucher         = "Voucher"
	ResourceOrder           = "Order"
	ResourcePaymentProvider = "PaymentProvider"
	ResourceCourierProvider = "CourierProvider"
)

type Model struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Point struct {
	Lat float64
	Lng float64
}

type Address struct {
	Model
	User       string  `json:"user"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Street     string  `json:"street"`
	City       string  `json:"city"`
	Province   string  `json:"province"`
	PostalCode string  `json:"postalCode"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Notes      string  `json:"notes,omitempty"`
}

func (a Address) Point() Point { return Point{Lat: a.Latitude, Lng: a.Longitude} }

type Category struct {
	Model
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ProductImage struct {
	URL string `json:"url"`
}

type Product struct {
	Model
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Stock         int              `json:"stock"`
	Categories    []string         `json:"categories,omitempty"`
	Images        []ProductImage   `json:"images,omitempty"`
}

type PackageItem struct {
	Product string `json:"product"`
	Qty     int    `json:"qty"`
}

type ProductPackage struct {
	Model
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Products      []PackageItem    `json:"products"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Image         string           `json:"image,omitempty"`
}

func (p ProductPackage) ProductIDs() []string {
	ids := make([]string, 0, len(p.Products))
	for _, it := range p.Products {
		ids = append(ids, it.Product)
	}
	return ids
}

type CourierProvider struct {
	Model
	Provider string          `json:"provider"`
	Price    decimal.Decimal `json:"price"` // per kilometre
}

type Consumer struct {
	User    string          `json:"user"`
	Balance decimal.Decimal `json:"balance"`
}

type PaymentProvider struct {
	Model
	Provider  string     `json:"provider"`
	Consumers []Consumer `json:"consumers"`
}

// Consumer returns the balance entry for user.
func (p PaymentProvider) Consumer(user string) (Consumer, bool) {
	for _, c := range p.Consumers {
		if c.User == user {
			return c, true
		}
	}
	return Consumer{}, false
}

// Fillable fields per resource.
var (
	AddressFillable         = []string{"name", "phone", "street", "city", "province", "postalCode", "latitude", "longitude", "notes"}
	CategoryFillable        = []string{"name", "description"}
	ProductFillable         = []string{"name", "description", "price", "discountPrice", "stock", "categories", "images"}
	ProductPackageFillable  = []string{"name", "description", "products", "price", "discountPrice", "image"}
	CourierProviderFillable = []string{"provider", "price"}
	PaymentProviderFillable = []string{"provider", "consumers"}
)
