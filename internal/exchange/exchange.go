package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/metrics"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceIdentity Source = "identity"
)

// Quote is the number of purchase-currency units paid for one selling-currency unit.
type Quote struct {
	PurchaseCurrency string    `json:"purchaseCurrency"`
	SellingCurrency  string    `json:"sellingCurrency"`
	Rate             float64   `json:"rate"`
	Source           Source    `json:"source"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

type Config struct {
	APIURL   string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type Provider struct {
	apiURL     string
	httpClient *http.Client
	cache      *cache.Cache
	now        func() time.Time
}

func NewProvider(cfg Config) *Provider {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Provider{
		apiURL:     cfg.APIURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		now:        time.Now,
	}
}

// Rate returns the rate for the pair. Live answers are cached; when the
// remote source is unavailable the static table answers instead.
func (p *Provider) Rate(ctx context.Context, purchaseCurrency, sellingCurrency string) (Quote, error) {
	purchase := strings.ToUpper(strings.TrimSpace(purchaseCurrency))
	selling := strings.ToUpper(strings.TrimSpace(sellingCurrency))
	if purchase == "" || selling == "" {
		return Quote{}, fmt.Errorf("%w: empty currency code", ErrUnsupportedCurrency)
	}

	if purchase == selling {
		return p.record(Quote{
			PurchaseCurrency: purchase,
			SellingCurrency:  selling,
			Rate:             1,
			Source:           SourceIdentity,
			FetchedAt:        p.now().UTC(),
		}), nil
	}

	key := selling + "/" + purchase
	if cached, found := p.cache.Get(key); found {
		q := cached.(Quote)
		q.Source = SourceCache
		return p.record(q), nil
	}

	rate, err := p.fetch(ctx, selling, purchase)
	if err == nil {
		q := Quote{
			PurchaseCurrency: purchase,
			SellingCurrency:  selling,
			Rate:             rate,
			Source:           SourceLive,
			FetchedAt:        p.now().UTC(),
		}
		p.cache.SetDefault(key, q)
		return p.record(q), nil
	}

	zap.S().Named("exchange").Warnw("live exchange rate unavailable, using fallback table",
		"from", selling, "to", purchase, "error", err)

	rate, ok := fallbackRate(purchase, selling)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedCurrency, purchase, selling)
	}
	return p.record(Quote{
		PurchaseCurrency: purchase,
		SellingCurrency:  selling,
		Rate:             rate,
		Source:           SourceFallback,
		FetchedAt:        p.now().UTC(),
	}), nil
}

func (p *Provider) record(q Quote) Quote {
	metrics.IncreaseExchangeRateLookups(string(q.Source))
	return q
}

type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// fetch asks the remote API how many units of to one unit of from buys.
func (p *Provider) fetch(ctx context.Context, from, to string) (float64, error) {
	if p.apiURL == "" {
		return 0, errors.New("no exchange rate API configured")
	}

	u, err := url.Parse(p.apiURL)
	if err != nil {
		return 0, fmt.Errorf("parse exchange rate API url: %w", err)
	}
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build exchange rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request exchange rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("exchange rate API returned status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode exchange rate response: %w", err)
	}

	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("exchange rate response has no positive rate for %s", to)
	}
	return rate, nil
}
