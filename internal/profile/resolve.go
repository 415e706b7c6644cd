package profile

import (
	"strings"

	"github.com/sells-group/profiler-cli/internal/model"
)

// effectiveName picks the canonical name for downstream lookups: the
// directory record's name when present, else the regulatory record's matched
// name, else the raw query. This is an override chain, not a scored merge —
// directory identity always wins regardless of regulatory-match confidence.
func effectiveName(query string, dir model.Outcome[model.DirectoryRecord], reg model.Outcome[model.RegulatoryRecord]) string {
	if rec, ok := dir.Get(); ok && rec.Name != "" {
		return rec.Name
	}
	if rec, ok := reg.Get(); ok && rec.Name != "" {
		return rec.Name
	}
	return query
}

// tokenOverlap counts how many whitespace-delimited tokens of the lowercased
// query appear as substrings of the lowercased candidate name. Used to pick
// the best regulatory dataset row for a free-text query.
func tokenOverlap(query, candidate string) int {
	cand := strings.ToLower(candidate)
	score := 0
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(cand, tok) {
			score++
		}
	}
	return score
}
