// Package tool holds the value types exchanged with the web-search and sales-data providers.
package tool

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Name identifies a tool handler.
type Name string

// Tool handlers.
const (
	Tavily    Name = "tavily"
	Firecrawl Name = "firecrawl"
	Sales     Name = "sales"
)

// Names lists every tool handler.
var Names = []Name{Tavily, Firecrawl, Sales}

// Valid reports whether n names a known tool.
func (n Name) Valid() bool {
	for _, k := range Names {
		if n == k {
			return true
		}
	}
	return false
}

// Page is one web search hit as passed back to the agent.
type Page struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// PageSet wraps the hits of one search.
type PageSet struct {
	Data []Page `json:"data"`
}

// SalesQuery selects shop sales figures. Field names are the provider's.
type SalesQuery struct {
	DateEnd           string   `json:"date_end"`
	DateStart         string   `json:"date_start"`
	DateType          string   `json:"date_type"`
	Market            string   `json:"market"`
	PlatformShopCodes []string `json:"platform_shop_codes"`
	RequestPage       string   `json:"request_page"`
}

// SalesData is the provider's answer. Items are passed through untouched.
type SalesData struct {
	Dates []json.RawMessage `json:"dates"`
	List  []json.RawMessage `json:"list"`
}

// SalesSummary is what the agent receives: every date and the first items of the list.
type SalesSummary struct {
	Dates       []json.RawMessage `json:"dates"`
	LimitedList []json.RawMessage `json:"limitedList"`
}

// Summarize keeps the first topN list items. Nil slices become empty.
func (d SalesData) Summarize(topN int) SalesSummary {
	list := d.List
	if topN >= 0 && len(list) > topN {
		list = list[:topN]
	}
	s := SalesSummary{Dates: d.Dates, LimitedList: list}
	if s.Dates == nil {
		s.Dates = []json.RawMessage{}
	}
	if s.LimitedList == nil {
		s.LimitedList = []json.RawMessage{}
	}
	return s
}

var (
	dateEndRe   = regexp.MustCompile(`date_end=([\d-]+)`)
	dateStartRe = regexp.MustCompile(`date_start=([\d-]+)`)
	dateTypeRe  = regexp.MustCompile(`date_type=(\w+)`)
	marketRe    = regexp.MustCompile(`market=(\w+)`)
	shopCodesRe = regexp.MustCompile(`platform_shop_codes=\[(.*?)\]`)
)

// ParseSalesQuery reads the loosely formatted object the agent sends, e.g.
// "{date_end=2025-01-31, date_start=2025-01-01, date_type=day, market=yahoo, platform_shop_codes=[a,b]}".
// Missing keys stay empty. requestPage is always used as the page; the agent's value is ignored.
func ParseSalesQuery(value, requestPage string) SalesQuery {
	q := SalesQuery{
		DateEnd:           submatch(dateEndRe, value),
		DateStart:         submatch(dateStartRe, value),
		DateType:          submatch(dateTypeRe, value),
		Market:            submatch(marketRe, value),
		PlatformShopCodes: []string{},
		RequestPage:       requestPage,
	}
	if m := shopCodesRe.FindStringSubmatch(value); m != nil {
		for _, code := range strings.Split(m[1], ",") {
			if code != "" {
				q.PlatformShopCodes = append(q.PlatformShopCodes, code)
			}
		}
	}
	return q
}

func submatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
