// Package firecrawl calls the Firecrawl search API.
package firecrawl

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/transport/upstream"
)

// Config holds the Firecrawl settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Limit      int
	TimeoutMS  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client searches and scrapes the web through Firecrawl.
type Client struct {
	cfg  Config
	post *upstream.Client
}

// NewClient creates a Firecrawl client.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, post: upstream.New(string(tool.Firecrawl), cfg.HTTPClient, cfg.Timeout)}
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type searchRequest struct {
	Query         string        `json:"query"`
	Limit         int           `json:"limit"`
	Timeout       int           `json:"timeout"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type searchResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Data    []tool.Page `json:"data"`
}

// Search runs query and returns the hits with their title, description, url and metadata.
func (c *Client) Search(ctx context.Context, query string) (tool.PageSet, error) {
	var out searchResponse
	err := c.post.PostJSON(ctx, c.cfg.BaseURL+"/v1/search", upstream.Bearer(c.cfg.APIKey), searchRequest{
		Query:         query,
		Limit:         c.cfg.Limit,
		Timeout:       c.cfg.TimeoutMS,
		ScrapeOptions: scrapeOptions{Formats: []string{"markdown"}},
	}, &out)
	if err != nil {
		return tool.PageSet{}, err //nolint:wrapcheck // already an UpstreamToolError
	}
	if !out.Success {
		return tool.PageSet{}, domain.NewUpstreamToolError(string(tool.Firecrawl), 0, "failed to crawl: "+out.Error)
	}

	pages := out.Data
	if pages == nil {
		pages = []tool.Page{}
	}
	return tool.PageSet{Data: pages}, nil
}
