package research

import (
	"encoding/json"
	"strings"
)

// ParseQuerySet extracts research queries from the query agent's reply.
//
// The expected shape is {"queries":[{"query":..., "researchGoal":...}]}. Parsing
// is lenient: text that is not such an object, or whose "queries" is missing or
// not a list, yields an empty slice. Elements without a non-empty string "query"
// are dropped; a missing or non-string "researchGoal" becomes "". When the whole
// text is not JSON, the outermost {...} span is tried, since agents tend to wrap
// the object in prose or a code fence.
func ParseQuerySet(raw string) []Query {
	if qs, ok := parseObject(raw); ok {
		return qs
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		if qs, ok := parseObject(raw[start : end+1]); ok {
			return qs
		}
	}
	return []Query{}
}

func parseObject(raw string) ([]Query, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(doc["queries"], &items); err != nil {
		return []Query{}, true
	}

	out := make([]Query, 0, len(items))
	for _, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		q, _ := fields["query"].(string)
		if q == "" {
			continue
		}
		goal, _ := fields["researchGoal"].(string)
		out = append(out, Query{Query: q, ResearchGoal: goal})
	}
	return out, true
}
