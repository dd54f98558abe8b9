package catalog

import (
	"github.com/shopspring/decimal"
	"slices"
	"time"
)

type VoucherType string

const (
	VoucherPercentage      VoucherType = "percentage"
	VoucherAmount          VoucherType = "amount"
	VoucherFreeDelivery    VoucherType = "freeDelivery"
	VoucherProductCategory VoucherType = "productCategory"
)

type VoucherConsumer struct {
	User   string     `json:"user"`
	UsedAt *time.Time `json:"usedAt,omitempty"`
}

type Voucher struct {
	Model
	Code            string            `json:"code"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Image           string            `json:"image,omitempty"`
	VoucherType     VoucherType       `json:"voucherType"`
	VoucherValue    decimal.Decimal   `json:"voucherValue"`
	ValidFrom       *time.Time        `json:"validFrom,omitempty"`
	ValidUntil      *time.Time        `json:"validUntil,omitempty"`
	Days            []int             `json:"days,omitempty"` // time.Weekday values
	StartHour       string            `json:"startHour,omitempty"`
	EndHour         string            `json:"endHour,omitempty"`
	Consumers       []VoucherConsumer `json:"consumers,omitempty"`
	Products        []string          `json:"products,omitempty"`
	ProductPackages []string          `json:"productPackages,omitempty"`
	IsOneTime       bool              `json:"isOneTime"`
	Valid           bool              `json:"valid"`
}

func (v Voucher) HasConsumer(user string) bool {
	return slices.ContainsFunc(v.Consumers, func(c VoucherConsumer) bool { return c.User == user })
}

func (v Voucher) CoversProduct(id string) bool {
	return slices.Contains(v.Products, id)
}

var VoucherFillable = []string{
	"code", "title", "description", "image", "voucherType", "voucherValue",
	"validFrom", "validUntil", "days", "startHour", "endHour",
	"consumers", "products", "productPackages", "isOneTime", "valid",
}
