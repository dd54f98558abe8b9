package httpx

import (
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/courier"
	"github.com/ariefcatur/go-catalog-orders/internal/payment"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/ariefcatur/go-catalog-orders/internal/voucher"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

type UtilsHandler struct {
	Vouchers *voucher.Service
	Payments *payment.Service
	Couriers *courier.Service
	Origin   catalog.Point
	Log      *zap.SugaredLogger
}

func (h *UtilsHandler) Register(r chi.Router) {
	r.With(RequirePermission("update-voucher")).Post("/voucher-utils/invalidate", h.invalidateVouchers)

	r.Get("/payment-provider-utils", h.myProviders)
	r.Post("/payment-provider-utils/{id}/top-up", h.topUp)

	r.Get("/courier-provider-utils/distance", h.distance)
	r.Post("/courier-provider-utils/distance", h.quote)
}

func (h *UtilsHandler) invalidateVouchers(w http.ResponseWriter, r *http.Request) {
	n, err := h.Vouchers.InvalidateExpired(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourceVoucher+" updated", map[string]int{"invalidated": n})
}

func (h *UtilsHandler) myProviders(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Payments.ByConsumer(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourcePaymentProvider+" collection", ps)
}

type topUpReq struct {
	Balance decimal.Decimal `json:"balance"`
}

func (h *UtilsHandler) topUp(w http.ResponseWriter, r *http.Request) {
	var req topUpReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Payments.TopUp(r.Context(), chi.URLParam(r, "id"), principal(r).UserID, req.Balance)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourcePaymentProvider+" updated", p)
}

func (h *UtilsHandler) distance(w http.ResponseWriter, r *http.Request) {
	to, err := pointFromQuery(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, "Distance", map[string]int64{"distance": h.Couriers.Distance(h.Origin, to)})
}

type quoteReq struct {
	Provider  string  `json:"provider"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *UtilsHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	q, err := h.Couriers.Quote(r.Context(), req.Provider, h.Origin, catalog.Point{Lat: req.Latitude, Lng: req.Longitude})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, "Distance price", q)
}

func pointFromQuery(r *http.Request) (catalog.Point, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	if err != nil {
		return catalog.Point{}, store.Invalid("latitude", "latitude must be a number")
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if err != nil {
		return catalog.Point{}, store.Invalid("longitude", "longitude must be a number")
	}
	return catalog.Point{Lat: lat, Lng: lng}, nil
}
