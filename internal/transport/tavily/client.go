// Package tavily calls the Tavily search API.
package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/transport/upstream"
)

// Config holds the Tavily settings.
type Config struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client searches the web through Tavily.
type Client struct {
	cfg  Config
	post *upstream.Client
}

// NewClient creates a Tavily client.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, post: upstream.New(string(tool.Tavily), cfg.HTTPClient, cfg.Timeout)}
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// Search runs query and returns Tavily's response as is.
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.post.PostJSON(ctx, c.cfg.BaseURL+"/search", upstream.Bearer(c.cfg.APIKey), searchRequest{
		Query:       query,
		MaxResults:  c.cfg.MaxResults,
		SearchDepth: c.cfg.SearchDepth,
	}, &out)
	if err != nil {
		return nil, err //nolint:wrapcheck // already an UpstreamToolError
	}
	return out, nil
}
