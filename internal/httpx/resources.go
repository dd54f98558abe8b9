package httpx

import (
	"context"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
)

// ResourceHandler maps a Store onto REST verbs. Writes need the
// {create,update,delete}-{Slug} permission.
type ResourceHandler[T any] struct {
	Store    *store.Store[T]
	Path     string
	Slug     string
	Fillable []string
	Uniques  []string
	ImageKey string
	Log      *zap.SugaredLogger

	// Validate runs before create (id == "") and update.
	Validate func(ctx context.Context, id string, fields map[string]any) error
	// Create and Update replace the plain store calls when set.
	Create func(ctx context.Context, fields map[string]any) (T, error)
	Update func(ctx context.Context, id string, fields map[string]any) (T, error)
}

func (h *ResourceHandler[T]) Register(r chi.Router) {
	r.Route("/"+h.Path, func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.With(RequirePermission("create-"+h.Slug)).Post("/", h.create)
		r.With(RequirePermission("update-"+h.Slug)).Put("/{id}", h.update)
		r.With(RequirePermission("delete-"+h.Slug)).Delete("/{id}", h.destroy)
	})
}

func (h *ResourceHandler[T]) name() string { return h.Store.Resource() }

func (h *ResourceHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	page, err := h.Store.List(r.Context(), q)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writePage(w, h.name()+" collection", page)
}

func (h *ResourceHandler[T]) show(w http.ResponseWriter, r *http.Request) {
	v, err := h.Store.Show(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, h.name()+" item retrieved", v)
}

func (h *ResourceHandler[T]) create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx := r.Context()
	if h.Validate != nil {
		if err := h.Validate(ctx, "", fields); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	var v T
	if h.Create != nil {
		v, err = h.Create(ctx, fields)
	} else {
		v, err = h.Store.Create(ctx, store.CreateInput{Fields: fields, Uniques: h.Uniques, Fillable: h.Fillable})
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusCreated, h.name()+" created", v)
}

func (h *ResourceHandler[T]) update(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	ctx, id := r.Context(), chi.URLParam(r, "id")
	if h.Validate != nil {
		if err := h.Validate(ctx, id, fields); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	var v T
	if h.Update != nil {
		v, err = h.Update(ctx, id, fields)
	} else {
		v, err = h.Store.Update(ctx, store.UpdateInput[T]{ID: id, Fields: fields, Uniques: h.Uniques, Fillable: h.Fillable})
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, h.name()+" updated", v)
}

func (h *ResourceHandler[T]) destroy(w http.ResponseWriter, r *http.Request) {
	err := h.Store.Destroy(r.Context(), store.DestroyInput{ID: chi.URLParam(r, "id"), ImageKey: h.ImageKey})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, h.name()+" deleted")
}
