// Package research holds the value types of a research run and the lenient
// parser for the query set produced by the query-generating agent.
package research

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxIterations applies when a request carries no positive iteration budget.
const DefaultMaxIterations = 3

// Conclusion is the fixed closing line of every aggregate result.
const Conclusion = "Based on the research conducted, here are the key findings..."

// FailureMessage is the only error text surfaced to callers when a run fails.
const FailureMessage = "An error occurred during the deep research process"

// Query is one generated research query.
type Query struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

// Outcome pairs a query with the search agent's answer.
type Outcome struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
	SearchResult string `json:"searchResult"`
}

// NewOutcome builds the outcome for q.
func NewOutcome(q Query, result string) Outcome {
	return Outcome{Query: q.Query, ResearchGoal: q.ResearchGoal, SearchResult: result}
}

// Aggregate is the final result of a research run.
type Aggregate struct {
	OriginalQuery   string    `json:"original_query"`
	Summary         string    `json:"summary"`
	ResearchDetails []Outcome `json:"research_details"`
	Conclusion      string    `json:"conclusion"`
}

// NewAggregate assembles the result for query. details is never serialized as null.
func NewAggregate(query string, details []Outcome) Aggregate {
	if details == nil {
		details = []Outcome{}
	}
	return Aggregate{
		OriginalQuery:   query,
		Summary:         Summary(query),
		ResearchDetails: details,
		Conclusion:      Conclusion,
	}
}

// Summary returns the summary line for query.
func Summary(query string) string {
	return fmt.Sprintf("Deep research results for: %s", query)
}

// Request is an inbound research request.
type Request struct {
	Query         string `json:"query"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// Budget returns the iteration budget, falling back to DefaultMaxIterations.
func (r Request) Budget() int {
	if r.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return r.MaxIterations
}

// UnmarshalJSON reads max_iterations leniently. A value that is not an
// integer, or a string holding one, leaves the budget at its default.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		Query         string          `json:"query"`
		MaxIterations json.RawMessage `json:"max_iterations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err //nolint:wrapcheck // wrapped by the caller
	}
	*r = Request{Query: raw.Query, MaxIterations: lenientInt(raw.MaxIterations)}
	return nil
}

func lenientInt(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		raw = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}
