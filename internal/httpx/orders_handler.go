package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/auth"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/metrics"
	"github.com/ariefcatur/go-catalog-orders/internal/orders"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type OrdersHandler struct {
	Store    *store.Store[orders.Order]
	Checkout *orders.Checkout
	Service  *orders.Service
	Metrics  *metrics.ServerMetrics
	Log      *zap.SugaredLogger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.With(RequireRole(auth.RoleUser)).Post("/", h.create)
		r.With(RequirePermission("update-order")).Put("/{id}", h.update)
		r.With(RequirePermission("delete-order")).Delete("/{id}", h.destroy)
	})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if p := principal(r); p.Role == auth.RoleUser {
		q.Filter["user"] = p.UserID
	}
	page, err := h.Store.List(r.Context(), q)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writePage(w, catalog.ResourceOrder+" collection", page)
}

func (h *OrdersHandler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		o   orders.Order
		err error
	)
	if p := principal(r); p.Role == auth.RoleUser {
		o, err = h.Store.ShowOne(r.Context(), store.Filter{"id": id, "user": p.UserID}, true)
	} else {
		o, err = h.Store.Show(r.Context(), id, true)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourceOrder+" item retrieved", o)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var cart orders.Cart
	if err := decodeBody(r, &cart); err != nil {
		writeError(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.CreateOrder(ctx, cart, principal(r).UserID)
	h.countCheckout(err)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusCreated, catalog.ResourceOrder+" created", o)
}

func (h *OrdersHandler) update(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	o, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), nil, fields, principal(r).UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourceOrder+" updated", o)
}

func (h *OrdersHandler) destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Destroy(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, catalog.ResourceOrder+" deleted")
}

func (h *OrdersHandler) countCheckout(err error) {
	if h.Metrics == nil {
		return
	}
	outcome := "created"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrNotFound):
		outcome = "rejected"
	default:
		outcome = "failed"
	}
	h.Metrics.Checkouts.WithLabelValues(outcome).Inc()
}
