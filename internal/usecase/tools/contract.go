package tools

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
)

// WebSearcher returns a provider's raw search response.
type WebSearcher interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
}

// PageSearcher returns search hits reduced to title, description, url and metadata.
type PageSearcher interface {
	Search(ctx context.Context, query string) (tool.PageSet, error)
}

// SalesSource fetches shop sales figures.
type SalesSource interface {
	Trend(ctx context.Context, q tool.SalesQuery) (tool.SalesData, error)
}
