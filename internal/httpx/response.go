package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-catalog-orders/internal/auth"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"go.uber.org/zap"
	"net/http"
)

type Meta struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type Envelope struct {
	Meta       Meta              `json:"meta"`
	Pagination *store.Pagination `json:"pagination,omitempty"`
	Data       any               `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, Envelope{Meta: Meta{Status: code, Message: message}, Data: data})
}

func writePage[T any](w http.ResponseWriter, message string, page store.Page[T]) {
	writeJSON(w, http.StatusOK, Envelope{
		Meta:       Meta{Status: http.StatusOK, Message: message},
		Pagination: &page.Pagination,
		Data:       page.Data,
	})
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Envelope{Meta: Meta{Status: code, Message: message}})
}

// writeError maps domain errors to status codes; anything unexpected is
// logged and answered generically.
func writeError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	var (
		verr *store.ValidationError
		cerr *store.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &cerr):
		writeMessage(w, http.StatusConflict, cerr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, auth.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	default:
		log.Errorw("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeFields(r *http.Request) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, store.Invalid("body", "invalid json")
	}
	return fields, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return store.Invalid("body", "invalid json")
	}
	return nil
}
