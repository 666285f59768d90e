// Package market provides the stock data tools exposed to agents:
// get_stock_price and get_stock_history.
//
// Data comes from a Provider. A deterministic simulated provider is used when
// no API keys are configured; live providers call Alpha Vantage for quotes and
// Financial Modeling Prep for price history. CachedProvider wraps either with
// an expiring LRU cache.
package market

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// ErrUnknownSymbol is returned when a provider has no data for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// DefaultHistoryDays is used when get_stock_history is called without days.
const DefaultHistoryDays = 30

// historyPreview is the number of data points returned to the model.
const historyPreview = 5

// Quote is a point-in-time price snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Volume        int64     `json:"volume"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Bar is one daily closing price.
type Bar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// History summarizes a window of daily prices. Dates and Prices hold a short
// preview, most recent first; the statistics cover the whole window.
type History struct {
	Symbol     string    `json:"symbol"`
	Days       int       `json:"days"`
	Dates      []string  `json:"dates"`
	Prices     []float64 `json:"prices"`
	AvgPrice   float64   `json:"avg_price"`
	Volatility float64   `json:"volatility"`
	Trend      string    `json:"trend"`
}

// Provider supplies market data.
type Provider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	Bars(ctx context.Context, symbol string, days int) ([]Bar, error)
}

// Summarize computes History from bars ordered most recent first.
func Summarize(symbol string, bars []Bar) History {
	h := History{Symbol: symbol, Days: len(bars), Trend: "flat"}
	if len(bars) == 0 {
		return h
	}

	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	h.AvgPrice = round2(sum / float64(len(bars)))

	var sq float64
	for _, b := range bars {
		d := b.Close - sum/float64(len(bars))
		sq += d * d
	}
	h.Volatility = round2(math.Sqrt(sq / float64(len(bars))))

	latest, oldest := bars[0].Close, bars[len(bars)-1].Close
	switch {
	case latest > oldest:
		h.Trend = "bullish"
	case latest < oldest:
		h.Trend = "bearish"
	}

	n := min(historyPreview, len(bars))
	for _, b := range bars[:n] {
		h.Dates = append(h.Dates, b.Date)
		h.Prices = append(h.Prices, b.Close)
	}
	return h
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
