package httpx

import (
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
)

// MyAddressesHandler is address CRUD scoped to the caller.
type MyAddressesHandler struct {
	Store *store.Store[catalog.Address]
	Log   *zap.SugaredLogger
}

var myAddressFillable = append([]string{"user"}, catalog.AddressFillable...)

func (h *MyAddressesHandler) Register(r chi.Router) {
	r.Route("/my-addresses", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.destroy)
	})
}

func (h *MyAddressesHandler) owned(r *http.Request) store.Filter {
	return store.Filter{"id": chi.URLParam(r, "id"), "user": principal(r).UserID}
}

func (h *MyAddressesHandler) list(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	q.Filter["user"] = principal(r).UserID
	page, err := h.Store.List(r.Context(), q)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writePage(w, catalog.ResourceAddress+" collection", page)
}

func (h *MyAddressesHandler) show(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.ShowOne(r.Context(), h.owned(r), true)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourceAddress+" item retrieved", a)
}

func (h *MyAddressesHandler) create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	fields["user"] = principal(r).UserID
	a, err := h.Store.Create(r.Context(), store.CreateInput{Fields: fields, Fillable: myAddressFillable})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusCreated, catalog.ResourceAddress+" created", a)
}

func (h *MyAddressesHandler) update(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	a, err := h.Store.Update(r.Context(), store.UpdateInput[catalog.Address]{
		Match:    h.owned(r),
		Fields:   fields,
		Fillable: catalog.AddressFillable,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, catalog.ResourceAddress+" updated", a)
}

func (h *MyAddressesHandler) destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Destroy(r.Context(), store.DestroyInput{Match: h.owned(r)}); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, catalog.ResourceAddress+" deleted")
}
