package market

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"time"
)

// SimulatedProvider generates deterministic synthetic prices per symbol so
// offline runs and tests are reproducible.
type SimulatedProvider struct {
	now func() time.Time
}

var _ Provider = (*SimulatedProvider)(nil)

// NewSimulatedProvider creates a provider; now defaults to time.Now.
func NewSimulatedProvider(now func() time.Time) *SimulatedProvider {
	if now == nil {
		now = time.Now
	}
	return &SimulatedProvider{now: now}
}

func (p *SimulatedProvider) rng(symbol string, salt uint64) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return rand.New(rand.NewPCG(h.Sum64(), salt))
}

// Quote implements Provider.
func (p *SimulatedProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	symbol = NormalizeSymbol(symbol)
	r := p.rng(symbol, 1)
	return Quote{
		Symbol:        symbol,
		Price:         round2(100 + r.Float64()*400),
		Volume:        1_000_000 + r.Int64N(9_000_000),
		ChangePercent: round2(r.Float64()*10 - 5),
		Timestamp:     p.now().UTC(),
	}, nil
}

// Bars implements Provider.
func (p *SimulatedProvider) Bars(ctx context.Context, symbol string, days int) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)
	r := p.rng(symbol, 2)
	today := p.now().UTC()

	price := 100 + r.Float64()*400
	bars := make([]Bar, days)
	for i := 0; i < days; i++ {
		bars[i] = Bar{
			Date:  today.AddDate(0, 0, -i).Format(time.DateOnly),
			Close: round2(price),
		}
		price *= 1 + (r.Float64()*4-2)/100
	}
	return bars, nil
}
