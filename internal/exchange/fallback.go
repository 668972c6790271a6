package exchange

// eurRates are units of each currency per euro, used when the live source is down.
var eurRates = map[string]float64{
	"EUR": 1,
	"USD": 1.07,
	"GBP": 0.85,
	"CHF": 0.95,
	"JPY": 160,
	"CNY": 7.7,
	"HKD": 8.4,
	"CAD": 1.47,
	"AUD": 1.63,
	"SEK": 11.4,
	"NOK": 11.6,
	"DKK": 7.46,
	"PLN": 4.3,
	"CZK": 25.0,
	"TRY": 35.0,
	"INR": 89.5,
}

func fallbackRate(purchase, selling string) (float64, bool) {
	p, ok := eurRates[purchase]
	if !ok {
		return 0, false
	}
	s, ok := eurRates[selling]
	if !ok {
		return 0, false
	}
	return p / s, true
}
