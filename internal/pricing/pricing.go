package pricing

import "math"

// ParameterSet holds the cost factors applied between a purchase price and a retail price.
type ParameterSet struct {
	PurchaseCurrency       string  `json:"purchaseCurrency" validate:"required,iso4217"`
	SellingCurrency        string  `json:"sellingCurrency" validate:"required,iso4217"`
	QualityControlPercent  float64 `json:"qualityControlPercent" validate:"gte=0"`
	TransportInsuranceCost float64 `json:"transportInsuranceCost" validate:"gte=0"`
	Duty                   float64 `json:"duty" validate:"gte=0"`
	ExchangeRate           float64 `json:"exchangeRate" validate:"gt=0"`
	ItalyAccessoryCosts    float64 `json:"italyAccessoryCosts" validate:"gte=0"`
	Tools                  float64 `json:"tools" validate:"gte=0"`
	RetailMultiplier       float64 `json:"retailMultiplier" validate:"gte=1"`
	OptimalMargin          float64 `json:"optimalMargin" validate:"gte=0,lt=100"`
	CompanyMultiplier      float64 `json:"companyMultiplier"`
}

// WithDerived returns a copy with CompanyMultiplier recomputed from OptimalMargin.
func (p ParameterSet) WithDerived() ParameterSet {
	p.CompanyMultiplier = CalculateCompanyMultiplier(p.OptimalMargin)
	return p
}

// SellingPriceResult is the full cost ladder from a purchase price to a retail price.
type SellingPriceResult struct {
	PurchasePrice                  float64      `json:"purchasePrice"`
	QualityControlCost             float64      `json:"qualityControlCost"`
	PriceWithQC                    float64      `json:"priceWithQC"`
	PriceWithTransport             float64      `json:"priceWithTransport"`
	DutyCost                       float64      `json:"dutyCost"`
	PriceWithDuty                  float64      `json:"priceWithDuty"`
	PriceWithDutyInSellingCurrency float64      `json:"priceWithDutyInSellingCurrency"`
	LandedCost                     float64      `json:"landedCost"`
	CompanyMultiplier              float64      `json:"companyMultiplier"`
	WholesalePrice                 float64      `json:"wholesalePrice"`
	RetailPriceRaw                 float64      `json:"retailPriceRaw"`
	RetailPrice                    float64      `json:"retailPrice"`
	CompanyMargin                  float64      `json:"companyMargin"`
	PurchaseCurrency               string       `json:"purchaseCurrency"`
	SellingCurrency                string       `json:"sellingCurrency"`
	Params                         ParameterSet `json:"params"`
}

// PurchasePriceResult is the cost ladder walked backwards from a retail price.
type PurchasePriceResult struct {
	RetailPrice                          float64      `json:"retailPrice"`
	WholesalePrice                       float64      `json:"wholesalePrice"`
	CompanyMultiplier                    float64      `json:"companyMultiplier"`
	LandedCost                           float64      `json:"landedCost"`
	PriceWithoutAccessories              float64      `json:"priceWithoutAccessories"`
	PriceWithoutDuty                     float64      `json:"priceWithoutDuty"`
	DutyCost                             float64      `json:"dutyCost"`
	PriceWithoutDutyInPurchasingCurrency float64      `json:"priceWithoutDutyInPurchasingCurrency"`
	PriceWithoutTransport                float64      `json:"priceWithoutTransport"`
	PurchasePriceBeforeTools             float64      `json:"purchasePriceBeforeTools"`
	QualityControlCost                   float64      `json:"qualityControlCost"`
	PurchasePriceRaw                     float64      `json:"purchasePriceRaw"`
	PurchasePrice                        float64      `json:"purchasePrice"`
	CompanyMargin                        float64      `json:"companyMargin"`
	PurchaseCurrency                     string       `json:"purchaseCurrency"`
	SellingCurrency                      string       `json:"sellingCurrency"`
	Params                               ParameterSet `json:"params"`
}

// MarginResult compares the landed cost of a purchase price with the wholesale price behind a retail price.
type MarginResult struct {
	LandedCost     float64 `json:"landedCost"`
	WholesalePrice float64 `json:"wholesalePrice"`
	CompanyMargin  float64 `json:"companyMargin"`
}

// CalculateSellingPrice walks a purchase price up to a retail price.
// Every step feeds the next one, so the order below is part of the result.
func CalculateSellingPrice(purchasePrice float64, params ParameterSet) SellingPriceResult {
	params = params.WithDerived()

	qualityControlCost := purchasePrice * (params.QualityControlPercent / 100.0)
	priceWithQC := purchasePrice + qualityControlCost + params.Tools
	priceWithTransport := priceWithQC + params.TransportInsuranceCost
	dutyCost := priceWithTransport * (params.Duty / 100.0)
	priceWithDuty := priceWithTransport + dutyCost

	priceWithDutyInSellingCurrency := priceWithDuty / params.ExchangeRate
	landedCost := priceWithDutyInSellingCurrency + params.ItalyAccessoryCosts
	wholesalePrice := landedCost * params.CompanyMultiplier
	retailPriceRaw := wholesalePrice * params.RetailMultiplier

	return SellingPriceResult{
		PurchasePrice:                  purchasePrice,
		QualityControlCost:             qualityControlCost,
		PriceWithQC:                    priceWithQC,
		PriceWithTransport:             priceWithTransport,
		DutyCost:                       dutyCost,
		PriceWithDuty:                  priceWithDuty,
		PriceWithDutyInSellingCurrency: priceWithDutyInSellingCurrency,
		LandedCost:                     landedCost,
		CompanyMultiplier:              params.CompanyMultiplier,
		WholesalePrice:                 wholesalePrice,
		RetailPriceRaw:                 retailPriceRaw,
		RetailPrice:                    RoundRetailPrice(retailPriceRaw),
		CompanyMargin:                  companyMargin(wholesalePrice, landedCost),
		PurchaseCurrency:               params.PurchaseCurrency,
		SellingCurrency:                params.SellingCurrency,
		Params:                         params,
	}
}

// CalculatePurchasePrice walks a retail price back down to a purchase price.
func CalculatePurchasePrice(retailPrice float64, params ParameterSet) PurchasePriceResult {
	params = params.WithDerived()

	wholesalePrice := retailPrice / params.RetailMultiplier
	landedCost := wholesalePrice / params.CompanyMultiplier
	priceWithoutAccessories := landedCost - params.ItalyAccessoryCosts

	priceWithoutDuty := priceWithoutAccessories / (1 + params.Duty/100.0)
	dutyCost := priceWithoutAccessories - priceWithoutDuty

	priceWithoutDutyInPurchasingCurrency := priceWithoutDuty * params.ExchangeRate
	priceWithoutTransport := priceWithoutDutyInPurchasingCurrency - params.TransportInsuranceCost

	purchasePriceBeforeTools := priceWithoutTransport / (1 + params.QualityControlPercent/100.0)
	qualityControlCost := priceWithoutTransport - purchasePriceBeforeTools
	purchasePriceRaw := purchasePriceBeforeTools - params.Tools

	return PurchasePriceResult{
		RetailPrice:                          retailPrice,
		WholesalePrice:                       wholesalePrice,
		CompanyMultiplier:                    params.CompanyMultiplier,
		LandedCost:                           landedCost,
		PriceWithoutAccessories:              priceWithoutAccessories,
		PriceWithoutDuty:                     priceWithoutDuty,
		DutyCost:                             dutyCost,
		PriceWithoutDutyInPurchasingCurrency: priceWithoutDutyInPurchasingCurrency,
		PriceWithoutTransport:                priceWithoutTransport,
		PurchasePriceBeforeTools:             purchasePriceBeforeTools,
		QualityControlCost:                   qualityControlCost,
		PurchasePriceRaw:                     purchasePriceRaw,
		PurchasePrice:                        RoundPurchasePrice(purchasePriceRaw),
		CompanyMargin:                        companyMargin(wholesalePrice, landedCost),
		PurchaseCurrency:                     params.PurchaseCurrency,
		SellingCurrency:                      params.SellingCurrency,
		Params:                               params,
	}
}

// CalculateMargin runs the purchase price through the forward chain and the
// retail price through the inverse chain, then compares the two legs.
func CalculateMargin(purchasePrice, retailPrice float64, params ParameterSet) MarginResult {
	landedCost := CalculateSellingPrice(purchasePrice, params).LandedCost
	wholesalePrice := CalculatePurchasePrice(retailPrice, params).WholesalePrice

	return MarginResult{
		LandedCost:     landedCost,
		WholesalePrice: wholesalePrice,
		CompanyMargin:  companyMargin(wholesalePrice, landedCost),
	}
}

func companyMargin(wholesalePrice, landedCost float64) float64 {
	return (wholesalePrice - landedCost) / wholesalePrice
}

// CalculateCompanyMultiplier converts a target margin percentage into a markup factor
// rounded to two decimals. Margins outside (0, 100) yield 1.
func CalculateCompanyMultiplier(optimalMargin float64) float64 {
	if math.IsNaN(optimalMargin) || optimalMargin <= 0 || optimalMargin >= 100 {
		return 1
	}
	return math.Round(1/(1-optimalMargin/100)*100) / 100
}

// RoundRetailPrice snaps a raw retail price to a charm price ending in 4.9 or 9.9.
//
// Bands are taken on the units digit plus the fractional part:
// [0, 2.4] drops to the previous ...9.9, [2.5, 7.4] goes to ...4.9 and
// [7.5, 9.9] goes to ...9.9. Values falling between bands land on ...4.9.
func RoundRetailPrice(price float64) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0
	}
	if price < 10 {
		return 9.9
	}

	integerPart := math.Floor(price)
	tens := math.Floor(integerPart/10) * 10
	finalPart := math.Mod(integerPart, 10) + (price - integerPart)

	switch {
	case finalPart >= 0.0 && finalPart <= 2.4:
		return math.Max(9.9, tens-10+9.9)
	case finalPart >= 2.5 && finalPart <= 7.4:
		return tens + 4.9
	case finalPart >= 7.5 && finalPart <= 9.9:
		return tens + 9.9
	default:
		return tens + 4.9
	}
}

// RoundPurchasePrice truncates a purchase price down to one decimal.
func RoundPurchasePrice(price float64) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	return math.Floor(price*10) / 10
}
