package research

import (
	"encoding/json"
	"strings"

	domres "github.com/kailas-cloud/deepresearch/internal/domain/research"
)

// refinementInput asks the research agent for follow-up queries given what is already known.
func refinementInput(query string, details []domres.Outcome) string {
	findings, _ := json.Marshal(details) //nolint:errchkjson // plain string fields

	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\nResearch so far (JSON):\n")
	b.Write(findings)
	b.WriteString("\n\nGenerate follow-up research queries that close the remaining gaps. " +
		`Reply with {"queries":[{"query":"...","researchGoal":"..."}]}, or {"queries":[]} if nothing is missing.`)
	return b.String()
}

// unseen returns the queries whose text is not in seen and records them.
func unseen(queries []domres.Query, seen map[string]struct{}) []domres.Query {
	var fresh []domres.Query
	for _, q := range queries {
		if _, ok := seen[q.Query]; ok {
			continue
		}
		seen[q.Query] = struct{}{}
		fresh = append(fresh, q)
	}
	return fresh
}
