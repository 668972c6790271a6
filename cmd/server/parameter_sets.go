package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/exchange"
	"github.com/Simplici0/pricecalc/internal/pricing"
	"github.com/Simplici0/pricecalc/internal/store"
)

type parameterSetRequest struct {
	Name        string               `json:"name" validate:"set_name"`
	Description string               `json:"description" validate:"max=500"`
	IsDefault   bool                 `json:"isDefault"`
	Params      pricing.ParameterSet `json:"params"`
}

type selectParameterSetRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

type refreshRateResponse struct {
	ParameterSet store.ParameterSetRecord `json:"parameterSet"`
	Quote        exchange.Quote           `json:"quote"`
}

func (s *server) handleListParameterSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.store.ParameterSets().List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sets)
}

func (s *server) handleGetParameterSet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := s.store.ParameterSets().Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *server) handleGetDefaultParameterSet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.ParameterSets().GetDefault(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *server) handleGetActiveParameterSet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.ParameterSets().ActiveForUser(r.Context(), currentUser(r).ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *server) handleSetActiveParameterSet(w http.ResponseWriter, r *http.Request) {
	var req selectParameterSetRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	sets := s.store.ParameterSets()
	if err := sets.SetActiveForUser(r.Context(), currentUser(r).ID, req.ID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	rec, err := sets.Get(r.Context(), req.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *server) handleCreateParameterSet(w http.ResponseWriter, r *http.Request) {
	var req parameterSetRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	createdBy := currentUser(r).ID
	rec, err := s.store.ParameterSets().Create(r.Context(), store.ParameterSetRecord{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Params:      req.Params,
		CreatedBy:   &createdBy,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	zap.S().Named("parameter_sets").Infow("parameter set created", "id", rec.ID, "name", rec.Name, "by", currentUser(r).Username)
	writeJSON(w, r, http.StatusCreated, rec)
}

func (s *server) handleUpdateParameterSet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req parameterSetRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := s.store.ParameterSets().Update(r.Context(), store.ParameterSetRecord{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Params:      req.Params,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *server) handleDeleteParameterSet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.ParameterSets().Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	zap.S().Named("parameter_sets").Infow("parameter set deleted", "id", id, "by", currentUser(r).Username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSetDefaultParameterSet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	sets := s.store.ParameterSets()
	if err := sets.SetDefault(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	rec, err := sets.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// handleRefreshExchangeRate stores the provider's current rate on a set.
func (s *server) handleRefreshExchangeRate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	sets := s.store.ParameterSets()
	rec, err := sets.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	quote, err := s.rates.Rate(r.Context(), rec.Params.PurchaseCurrency, rec.Params.SellingCurrency)
	if errors.Is(err, exchange.ErrUnsupportedCurrency) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		zap.S().Named("parameter_sets").Errorw("exchange rate lookup failed", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "exchange rate lookup failed")
		return
	}

	updated, err := sets.UpdateExchangeRate(r.Context(), id, quote.Rate)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, refreshRateResponse{ParameterSet: updated, Quote: quote})
}
