package main

import (
	"net/http"

	"github.com/Simplici0/pricecalc/internal/metrics"
	"github.com/Simplici0/pricecalc/internal/pricing"
	"github.com/Simplici0/pricecalc/internal/store"
)

// Each calculation request names its factors in one of three ways: inline
// params, a stored parameterSetId, or neither, meaning the caller's active set.

type sellingPriceRequest struct {
	PurchasePrice  float64               `json:"purchasePrice" validate:"finite,gt=0"`
	Params         *pricing.ParameterSet `json:"params,omitempty"`
	ParameterSetID *int64                `json:"parameterSetId,omitempty" validate:"omitempty,gt=0"`
}

type purchasePriceRequest struct {
	RetailPrice    float64               `json:"retailPrice" validate:"finite,gt=0"`
	Params         *pricing.ParameterSet `json:"params,omitempty"`
	ParameterSetID *int64                `json:"parameterSetId,omitempty" validate:"omitempty,gt=0"`
}

type marginRequest struct {
	PurchasePrice  float64               `json:"purchasePrice" validate:"finite,gt=0"`
	RetailPrice    float64               `json:"retailPrice" validate:"finite,gt=0"`
	Params         *pricing.ParameterSet `json:"params,omitempty"`
	ParameterSetID *int64                `json:"parameterSetId,omitempty" validate:"omitempty,gt=0"`
}

type parameterSetRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type calculationResponse[T any] struct {
	ParameterSet *parameterSetRef `json:"parameterSet,omitempty"`
	Result       T                `json:"result"`
}

type resolvedParams struct {
	params pricing.ParameterSet
	ref    *parameterSetRef
}

// resolveParams picks the factor snapshot a calculation runs on. It writes
// the error response itself and reports whether the handler may go on.
func (s *server) resolveParams(w http.ResponseWriter, r *http.Request, inline *pricing.ParameterSet, setID *int64) (resolvedParams, bool) {
	if inline != nil && setID != nil {
		writeError(w, r, http.StatusBadRequest, "send either params or parameterSetId, not both")
		return resolvedParams{}, false
	}
	if inline != nil {
		return resolvedParams{params: *inline}, true
	}

	var (
		rec store.ParameterSetRecord
		err error
	)
	if setID != nil {
		rec, err = s.store.ParameterSets().Get(r.Context(), *setID)
	} else {
		rec, err = s.store.ParameterSets().ActiveForUser(r.Context(), currentUser(r).ID)
	}
	if err != nil {
		writeStoreError(w, r, err)
		return resolvedParams{}, false
	}
	return resolvedParams{params: rec.Params, ref: &parameterSetRef{ID: rec.ID, Name: rec.Name}}, true
}

func (s *server) handleCalculateSellingPrice(w http.ResponseWriter, r *http.Request) {
	var req sellingPriceRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resolved, ok := s.resolveParams(w, r, req.Params, req.ParameterSetID)
	if !ok {
		return
	}

	result := pricing.CalculateSellingPrice(req.PurchasePrice, resolved.params)
	metrics.IncreaseCalculationsTotal(metrics.DirectionSellingPrice)
	writeJSON(w, r, http.StatusOK, calculationResponse[pricing.SellingPriceResult]{ParameterSet: resolved.ref, Result: result})
}

func (s *server) handleCalculatePurchasePrice(w http.ResponseWriter, r *http.Request) {
	var req purchasePriceRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resolved, ok := s.resolveParams(w, r, req.Params, req.ParameterSetID)
	if !ok {
		return
	}

	result := pricing.CalculatePurchasePrice(req.RetailPrice, resolved.params)
	metrics.IncreaseCalculationsTotal(metrics.DirectionPurchasePrice)
	writeJSON(w, r, http.StatusOK, calculationResponse[pricing.PurchasePriceResult]{ParameterSet: resolved.ref, Result: result})
}

func (s *server) handleCalculateMargin(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	resolved, ok := s.resolveParams(w, r, req.Params, req.ParameterSetID)
	if !ok {
		return
	}

	result := pricing.CalculateMargin(req.PurchasePrice, req.RetailPrice, resolved.params)
	metrics.IncreaseCalculationsTotal(metrics.DirectionMargin)
	writeJSON(w, r, http.StatusOK, calculationResponse[pricing.MarginResult]{ParameterSet: resolved.ref, Result: result})
}
