package pricing

import (
	"math"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func defaultParams() ParameterSet {
	return ParameterSet{
		PurchaseCurrency:       "USD",
		SellingCurrency:        "EUR",
		QualityControlPercent:  5,
		TransportInsuranceCost: 2.3,
		Duty:                   8,
		ExchangeRate:           1.07,
		ItalyAccessoryCosts:    1,
		Tools:                  1,
		RetailMultiplier:       2.48,
		OptimalMargin:          25,
	}
}

func TestCalculateSellingPrice_DefaultScenario(t *testing.T) {
	result := CalculateSellingPrice(21, defaultParams())

	nearlyEqual(t, "qualityControlCost", result.QualityControlCost, 1.05)
	nearlyEqual(t, "priceWithQC", result.PriceWithQC, 23.05)
	nearlyEqual(t, "priceWithTransport", result.PriceWithTransport, 25.35)
	nearlyEqual(t, "dutyCost", result.DutyCost, 2.028)
	nearlyEqual(t, "priceWithDuty", result.PriceWithDuty, 27.378)
	nearlyEqual(t, "priceWithDutyInSellingCurrency", result.PriceWithDutyInSellingCurrency, 25.586915887850466)
	nearlyEqual(t, "landedCost", result.LandedCost, 26.586915887850466)
	nearlyEqual(t, "companyMultiplier", result.CompanyMultiplier, 1.33)
	nearlyEqual(t, "wholesalePrice", result.WholesalePrice, 35.36059813084112)
	nearlyEqual(t, "retailPriceRaw", result.RetailPriceRaw, 87.69428336448597)
	nearlyEqual(t, "retailPrice", result.RetailPrice, 89.9)
	nearlyEqual(t, "companyMargin", result.CompanyMargin, 0.24812030075187966)

	if result.PurchaseCurrency != "USD" || result.SellingCurrency != "EUR" {
		t.Fatalf("currencies = %s/%s, want USD/EUR", result.PurchaseCurrency, result.SellingCurrency)
	}
}

func TestCalculateSellingPrice_IgnoresStoredCompanyMultiplier(t *testing.T) {
	params := defaultParams()
	params.CompanyMultiplier = 7

	result := CalculateSellingPrice(21, params)

	nearlyEqual(t, "companyMultiplier", result.CompanyMultiplier, 1.33)
	nearlyEqual(t, "params.companyMultiplier", result.Params.CompanyMultiplier, 1.33)
	nearlyEqual(t, "retailPrice", result.RetailPrice, 89.9)
	if params.CompanyMultiplier != 7 {
		t.Fatalf("input params mutated: companyMultiplier = %v", params.CompanyMultiplier)
	}
}

func TestCalculateSellingPrice_ToolsAddedBeforeTransportAndDuty(t *testing.T) {
	params := ParameterSet{
		QualityControlPercent:  10,
		TransportInsuranceCost: 5,
		Duty:                   10,
		ExchangeRate:           1,
		Tools:                  10,
		RetailMultiplier:       1,
	}

	result := CalculateSellingPrice(100, params)

	// (100 + 10 + 10 + 5) * 1.10
	nearlyEqual(t, "priceWithDuty", result.PriceWithDuty, 137.5)
	nearlyEqual(t, "landedCost", result.LandedCost, 137.5)
	nearlyEqual(t, "wholesalePrice", result.WholesalePrice, 137.5)
	nearlyEqual(t, "companyMargin", result.CompanyMargin, 0)
}

func TestCalculateSellingPrice_Deterministic(t *testing.T) {
	first := CalculateSellingPrice(21, defaultParams())
	for i := 0; i < 100; i++ {
		if got := CalculateSellingPrice(21, defaultParams()); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestCalculatePurchasePrice_DefaultScenario(t *testing.T) {
	result := CalculatePurchasePrice(89.9, defaultParams())

	nearlyEqual(t, "wholesalePrice", result.WholesalePrice, 36.25)
	nearlyEqual(t, "landedCost", result.LandedCost, 27.25563909774436)
	nearlyEqual(t, "priceWithoutAccessories", result.PriceWithoutAccessories, 26.25563909774436)
	nearlyEqual(t, "priceWithoutDuty", result.PriceWithoutDuty, 24.310776942355886)
	nearlyEqual(t, "dutyCost", result.DutyCost, 1.9448621553884742)
	nearlyEqual(t, "priceWithoutDutyInPurchasingCurrency", result.PriceWithoutDutyInPurchasingCurrency, 26.0125313283208)
	nearlyEqual(t, "priceWithoutTransport", result.PriceWithoutTransport, 23.7125313283208)
	nearlyEqual(t, "purchasePriceBeforeTools", result.PurchasePriceBeforeTools, 22.583363169829333)
	nearlyEqual(t, "qualityControlCost", result.QualityControlCost, 1.129168158491467)
	nearlyEqual(t, "purchasePriceRaw", result.PurchasePriceRaw, 21.583363169829333)
	nearlyEqual(t, "purchasePrice", result.PurchasePrice, 21.5)
	nearlyEqual(t, "companyMargin", result.CompanyMargin, 0.2481203007518797)
}

// The inverse divides tools by (1+qc) along with the price, so with tools the
// round trip drifts by tools*qc/(1+qc) on top of the 0.1 floor truncation.
func TestCalculatePurchasePrice_RoundTripWithinToolsDrift(t *testing.T) {
	params := defaultParams()
	qc := params.QualityControlPercent / 100
	bound := 0.1 + params.Tools*qc/(1+qc) + 1e-9

	for _, purchase := range []float64{21, 21.04, 35.5, 50.03, 120, 999.9} {
		forward := CalculateSellingPrice(purchase, params)
		back := CalculatePurchasePrice(forward.RetailPriceRaw, params)
		if diff := math.Abs(back.PurchasePrice - purchase); diff > bound {
			t.Fatalf("purchase %v: round trip gave %v (diff %v, bound %v)", purchase, back.PurchasePrice, diff, bound)
		}
	}

	forward := CalculateSellingPrice(21.04, params)
	back := CalculatePurchasePrice(forward.RetailPriceRaw, params)
	nearlyEqual(t, "purchasePrice", back.PurchasePrice, 20.9)
}

func TestCalculatePurchasePrice_ExactInverseWithoutTools(t *testing.T) {
	params := defaultParams()
	params.Tools = 0

	forward := CalculateSellingPrice(40, params)
	back := CalculatePurchasePrice(forward.RetailPriceRaw, params)

	nearlyEqual(t, "purchasePriceRaw", back.PurchasePriceRaw, 40)
	nearlyEqual(t, "landedCost", back.LandedCost, forward.LandedCost)
}

func TestCalculateMargin_MatchesForwardMarginAtRawRetail(t *testing.T) {
	params := defaultParams()
	forward := CalculateSellingPrice(21, params)

	margin := CalculateMargin(21, forward.RetailPriceRaw, params)

	nearlyEqual(t, "landedCost", margin.LandedCost, forward.LandedCost)
	nearlyEqual(t, "wholesalePrice", margin.WholesalePrice, forward.WholesalePrice)
	nearlyEqual(t, "companyMargin", margin.CompanyMargin, forward.CompanyMargin)
}

func TestCalculateMargin_HigherRetailRaisesMargin(t *testing.T) {
	params := defaultParams()

	low := CalculateMargin(21, 70, params)
	high := CalculateMargin(21, 120, params)

	nearlyEqual(t, "landedCost", low.LandedCost, high.LandedCost)
	if !(high.CompanyMargin > low.CompanyMargin) {
		t.Fatalf("margin at 120 (%v) should exceed margin at 70 (%v)", high.CompanyMargin, low.CompanyMargin)
	}
}

func TestRoundRetailPrice(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{name: "below ten", price: 5, want: 9.9},
		{name: "just below ten", price: 9.99, want: 9.9},
		{name: "ten drops to floor", price: 10, want: 9.9},
		{name: "low band", price: 21, want: 19.9},
		{name: "middle band lower edge", price: 12.5, want: 14.9},
		{name: "middle band", price: 25, want: 24.9},
		{name: "middle band upper edge", price: 17.4, want: 14.9},
		{name: "high band lower edge", price: 17.5, want: 19.9},
		{name: "high band", price: 87.69428336448597, want: 89.9},
		{name: "high band upper edge", price: 19.9, want: 19.9},
		{name: "past high band", price: 19.95, want: 14.9},
		{name: "hundred", price: 100, want: 99.9},
		{name: "large", price: 999.99, want: 994.9},
		{name: "zero", price: 0, want: 0},
		{name: "negative", price: -5, want: 0},
		{name: "nan", price: math.NaN(), want: 0},
		{name: "infinity", price: math.Inf(1), want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nearlyEqual(t, "roundRetailPrice", RoundRetailPrice(tc.price), tc.want)
		})
	}
}

func TestRoundPurchasePrice(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{price: 21.49, want: 21.4},
		{price: 21.40, want: 21.4},
		{price: 20.952380952380945, want: 20.9},
		{price: -3.25, want: -3.3},
		{price: math.NaN(), want: 0},
		{price: math.Inf(-1), want: 0},
	}

	for _, tc := range tests {
		nearlyEqual(t, "roundPurchasePrice", RoundPurchasePrice(tc.price), tc.want)
	}
}

func TestCalculateCompanyMultiplier(t *testing.T) {
	tests := []struct {
		margin float64
		want   float64
	}{
		{margin: 0, want: 1},
		{margin: -10, want: 1},
		{margin: 100, want: 1},
		{margin: 150, want: 1},
		{margin: math.NaN(), want: 1},
		{margin: 25, want: 1.33},
		{margin: 20, want: 1.25},
		{margin: 33, want: 1.49},
		{margin: 50, want: 2},
	}

	for _, tc := range tests {
		nearlyEqual(t, "companyMultiplier", CalculateCompanyMultiplier(tc.margin), tc.want)
	}
}

func TestDegenerateInputsDoNotPanic(t *testing.T) {
	params := defaultParams()
	params.ExchangeRate = 0

	forward := CalculateSellingPrice(21, params)
	nearlyEqual(t, "retailPrice", forward.RetailPrice, 0)

	inverse := CalculatePurchasePrice(math.NaN(), defaultParams())
	nearlyEqual(t, "purchasePrice", inverse.PurchasePrice, 0)

	zero := CalculateSellingPrice(0, ParameterSet{ExchangeRate: 1, RetailMultiplier: 1})
	nearlyEqual(t, "retailPrice", zero.RetailPrice, 0)
}
