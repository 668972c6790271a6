package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/store"
	"github.com/Simplici0/pricecalc/internal/validator"
)

type errorResponse struct {
	Error  string                 `json:"error"`
	Fields []validator.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Error: message})
}

// decodeAndValidate reads a JSON body into dst and runs the struct rules.
// It writes the 400 response itself and reports whether the handler may go on.
func (s *server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return s.validate(w, r, dst)
}

func (s *server) validate(w http.ResponseWriter, r *http.Request, v any) bool {
	err := s.validator.Struct(v)
	if err == nil {
		return true
	}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
		return false
	}
	writeError(w, r, http.StatusBadRequest, err.Error())
	return false
}

// writeStoreError maps repository errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		writeError(w, r, http.StatusNotFound, "parameter set not found")
	case errors.Is(err, store.ErrDuplicateKey):
		writeError(w, r, http.StatusConflict, "a parameter set with this name already exists")
	case errors.Is(err, store.ErrDefaultParameterSet):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		zap.S().Named("api_server").Errorw("store operation failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid parameter set id")
		return 0, false
	}
	return id, true
}
