package market

import (
	"context"
	"regexp"

	"github.com/artdevesa7/Agentic-AI-designs/internal/util"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
)

// Tool names.
const (
	PriceToolName   = "get_stock_price"
	HistoryToolName = "get_stock_history"
)

const maxHistoryDays = 365

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// NewPriceTool exposes Provider.Quote as get_stock_price.
func NewPriceTool(p Provider) *tool.FunctionTool {
	return tool.NewFunctionTool(
		PriceToolName,
		"Fetch the current stock price, trading volume and daily change percent for a ticker symbol (e.g. AAPL, GOOGL).",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{"type": "string", "description": "Stock ticker symbol", "minLength": 1},
			},
			"required": []string{"symbol"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			symbol, err := symbolArg(PriceToolName, args)
			if err != nil {
				return nil, err
			}
			return p.Quote(ctx, symbol)
		},
	)
}

// NewHistoryTool exposes Provider.Bars as get_stock_history.
func NewHistoryTool(p Provider) *tool.FunctionTool {
	return tool.NewFunctionTool(
		HistoryToolName,
		"Fetch historical daily prices for a ticker symbol with average price, volatility and trend.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{"type": "string", "description": "Stock ticker symbol", "minLength": 1},
				"days":   map[string]any{"type": "integer", "description": "Number of days of history (default 30)", "minimum": 1, "maximum": maxHistoryDays},
			},
			"required": []string{"symbol"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			symbol, err := symbolArg(HistoryToolName, args)
			if err != nil {
				return nil, err
			}
			days := util.IntArg(args, "days", DefaultHistoryDays)
			bars, err := p.Bars(ctx, symbol, days)
			if err != nil {
				return nil, err
			}
			return Summarize(symbol, bars), nil
		},
	)
}

// Register adds both market tools to r.
func Register(r *tool.Registry, p Provider) error {
	if err := r.Register(NewPriceTool(p)); err != nil {
		return err
	}
	return r.Register(NewHistoryTool(p))
}

func symbolArg(toolName string, args map[string]any) (string, error) {
	symbol := NormalizeSymbol(util.StringArg(args, "symbol"))
	if !symbolPattern.MatchString(symbol) {
		return "", tool.InvalidArguments(toolName, "invalid ticker symbol %q", symbol)
	}
	return symbol, nil
}
