// Package sales calls the shop trend sales API.
package sales

import (
	"context"
	"net/http"
	"time"

	"github.com/kailas-cloud/deepresearch/internal/domain/tool"
	"github.com/kailas-cloud/deepresearch/internal/transport/upstream"
)

// Config holds the sales API settings.
type Config struct {
	Endpoint   string
	Cookie     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches shop sales figures. The API authenticates by session cookie.
type Client struct {
	cfg  Config
	post *upstream.Client
}

// NewClient creates a sales API client.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, post: upstream.New(string(tool.Sales), cfg.HTTPClient, cfg.Timeout)}
}

type trendRequest struct {
	Data tool.SalesQuery `json:"data"`
}

type trendResponse struct {
	Data tool.SalesData `json:"data"`
}

// Trend fetches the sales trend selected by q.
func (c *Client) Trend(ctx context.Context, q tool.SalesQuery) (tool.SalesData, error) {
	header := http.Header{}
	if c.cfg.Cookie != "" {
		header.Set("Cookie", c.cfg.Cookie)
	}

	var out trendResponse
	if err := c.post.PostJSON(ctx, c.cfg.Endpoint, header, trendRequest{Data: q}, &out); err != nil {
		return tool.SalesData{}, err //nolint:wrapcheck // already an UpstreamToolError
	}
	return out.Data, nil
}
