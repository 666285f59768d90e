package memory

import (
	"context"
	"errors"

	"github.com/artdevesa7/Agentic-AI-designs/internal/util"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
)

// SearchToolName is the registered name of the retrieval tool.
const SearchToolName = "vector_db_search"

const maxTopK = 50

// NewSearchTool exposes idx as vector_db_search.
func NewSearchTool(idx Index) *tool.FunctionTool {
	return tool.NewFunctionTool(
		SearchToolName,
		"Search the research database for stock analysis reports and market news semantically similar to the query.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query", "minLength": 1},
				"top_k": map[string]any{"type": "integer", "description": "Number of results to return (default 5)", "minimum": 1, "maximum": maxTopK},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			res, err := idx.Search(ctx, util.StringArg(args, "query"), util.IntArg(args, "top_k", DefaultTopK))
			if errors.Is(err, ErrEmptyQuery) {
				return nil, tool.InvalidArguments(SearchToolName, "%v", err)
			}
			if err != nil {
				return nil, err
			}
			return res, nil
		},
	)
}
