package orders

import (
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

type Line struct {
	Product string `json:"product"`
	Qty     int    `json:"qty"`
}

type History struct {
	User          string `json:"user"`
	UpdatedValues string `json:"updatedValues"`
}

type Order struct {
	catalog.Model
	OrderID   string          `json:"orderId"`
	User      string          `json:"user"`
	Products  []Line          `json:"products"`
	Packages  []string        `json:"packages,omitempty"`
	Address   string          `json:"address"`
	Courier   string          `json:"courier"`
	PayWith   string          `json:"payWith"`
	Voucher   string          `json:"voucher,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	Histories []History       `json:"histories"`
	Image     string          `json:"image,omitempty"`
}

// UpdateFillable are the fields staff may change after checkout.
var UpdateFillable = []string{"status", "image"}

// Cart is the checkout request.
type Cart struct {
	Products []Line   `json:"products"`
	Packages []string `json:"packages"`
	Address  string   `json:"address"`
	Courier  string   `json:"courier"`
	PayWith  string   `json:"payWith"`
	Voucher  string   `json:"voucher,omitempty"`
}

func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Products))
	for _, l := range c.Products {
		ids = append(ids, l.Product)
	}
	return ids
}
