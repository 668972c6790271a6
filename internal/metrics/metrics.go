package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	subsystem = "pricecalc"

	calculationsTotal = "calculations_total"
	exchangeRateTotal = "exchange_rate_lookups_total"
	loginsTotal       = "logins_total"

	directionLabel = "direction"
	sourceLabel    = "source"
	providerLabel  = "provider"
	resultLabel    = "result"
)

const (
	DirectionSellingPrice  = "selling_price"
	DirectionPurchasePrice = "purchase_price"
	DirectionMargin        = "margin"
)

var calculationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      calculationsTotal,
		Help:      "number of pricing calculations served, by direction",
	},
	[]string{directionLabel},
)

var exchangeRateTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      exchangeRateTotal,
		Help:      "number of exchange rate lookups, by answer source",
	},
	[]string{sourceLabel},
)

var loginsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      loginsTotal,
		Help:      "number of login attempts, by provider and result",
	},
	[]string{providerLabel, resultLabel},
)

func IncreaseCalculationsTotal(direction string) {
	calculationsTotalMetric.With(prometheus.Labels{directionLabel: direction}).Inc()
}

func IncreaseExchangeRateLookups(source string) {
	exchangeRateTotalMetric.With(prometheus.Labels{sourceLabel: source}).Inc()
}

func IncreaseLogins(provider string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	loginsTotalMetric.With(prometheus.Labels{providerLabel: provider, resultLabel: result}).Inc()
}

func init() {
	prometheus.MustRegister(calculationsTotalMetric, exchangeRateTotalMetric, loginsTotalMetric)
}
