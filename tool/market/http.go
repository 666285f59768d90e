package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	alphaVantageURL = "https://www.alphavantage.co/query"
	fmpURL          = "https://financialmodelingprep.com/api/v3"
)

// HTTPOptions configures the live providers.
type HTTPOptions struct {
	AlphaVantageKey string
	FMPKey          string
	// BaseURLs override the public endpoints, mainly for tests.
	AlphaVantageURL string
	FMPURL          string
	Client          *http.Client
}

// HTTPProvider fetches quotes from Alpha Vantage and history from Financial
// Modeling Prep.
type HTTPProvider struct {
	opts HTTPOptions
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a live provider.
func NewHTTPProvider(optFns ...func(o *HTTPOptions)) *HTTPProvider {
	opts := HTTPOptions{
		AlphaVantageURL: alphaVantageURL,
		FMPURL:          fmpURL,
		Client:          &http.Client{Timeout: 10 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &HTTPProvider{opts: opts}
}

type globalQuoteResponse struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

// Quote implements Provider using the GLOBAL_QUOTE function.
func (p *HTTPProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = NormalizeSymbol(symbol)
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", p.opts.AlphaVantageKey)

	var out globalQuoteResponse
	if err := p.getJSON(ctx, p.opts.AlphaVantageURL+"?"+q.Encode(), &out); err != nil {
		return Quote{}, fmt.Errorf("alpha vantage quote %s: %w", symbol, err)
	}
	if out.ErrorMessage != "" {
		return Quote{}, fmt.Errorf("alpha vantage quote %s: %s", symbol, out.ErrorMessage)
	}
	if out.Quote.Symbol == "" {
		if out.Note != "" {
			return Quote{}, fmt.Errorf("alpha vantage quote %s: %s", symbol, out.Note)
		}
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	price, _ := strconv.ParseFloat(out.Quote.Price, 64)
	volume, _ := strconv.ParseInt(out.Quote.Volume, 10, 64)
	change, _ := strconv.ParseFloat(strings.TrimSuffix(out.Quote.ChangePercent, "%"), 64)
	ts, err := time.Parse(time.DateOnly, out.Quote.LatestDay)
	if err != nil {
		ts = time.Now().UTC()
	}
	return Quote{Symbol: out.Quote.Symbol, Price: price, Volume: volume, ChangePercent: change, Timestamp: ts}, nil
}

type historicalResponse struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	} `json:"historical"`
}

// Bars implements Provider using the historical-price-full endpoint.
func (p *HTTPProvider) Bars(ctx context.Context, symbol string, days int) ([]Bar, error) {
	symbol = NormalizeSymbol(symbol)
	q := url.Values{}
	q.Set("timeseries", strconv.Itoa(days))
	q.Set("apikey", p.opts.FMPKey)

	var out historicalResponse
	endpoint := fmt.Sprintf("%s/historical-price-full/%s?%s", p.opts.FMPURL, url.PathEscape(symbol), q.Encode())
	if err := p.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("fmp history %s: %w", symbol, err)
	}
	if len(out.Historical) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	n := min(days, len(out.Historical))
	bars := make([]Bar, 0, n)
	for _, h := range out.Historical[:n] {
		bars = append(bars, Bar{Date: h.Date, Close: h.Close})
	}
	return bars, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
