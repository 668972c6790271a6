package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/exchange"
)

// exchangeRateQuery asks for the price of one "to" unit expressed in "from"
// units, the convention parameter sets store.
type exchangeRateQuery struct {
	From string `json:"from" validate:"required,iso4217"`
	To   string `json:"to" validate:"required,iso4217"`
}

func (s *server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	q := exchangeRateQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if !s.validate(w, r, q) {
		return
	}

	quote, err := s.rates.Rate(r.Context(), q.From, q.To)
	if errors.Is(err, exchange.ErrUnsupportedCurrency) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		zap.S().Named("exchange").Errorw("exchange rate lookup failed", "from", q.From, "to", q.To, "error", err)
		writeError(w, r, http.StatusInternalServerError, "exchange rate lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, quote)
}
