package profile

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/model"
)

// Rating thresholds are half-open: a rating below lowRating flags the uplift
// opportunity, at or above strongRating flags the strong-experience
// opportunity, and [lowRating, strongRating) flags neither.
const (
	lowRating        = 3.6
	strongRating     = 4.4
	largeSampleCount = 300
)

// Opportunity labels emitted by the numeric threshold checks.
const (
	oppUplift      = "patient-experience uplift opportunity (ratings trending low)"
	oppStrongPX    = "leverage strong patient experience in case studies"
	oppLargeSample = "large public feedback sample available"
)

type compiledRule struct {
	re    *regexp.Regexp
	label string
}

// Scorer evaluates a configured pattern-rule list and fixed rating
// thresholds against a directory record's review corpus. The rule list is a
// first-class input so tests and deployments can substitute rule sets.
type Scorer struct {
	rules []compiledRule
}

// NewScorer compiles the rule patterns case-insensitively. Patterns that do
// not compile are skipped with a warning; their labels never fire.
func NewScorer(rules []model.Rule) *Scorer {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			zap.L().Warn("scorer: skipping invalid rule pattern",
				zap.String("pattern", r.Pattern),
				zap.Error(err),
			)
			continue
		}
		compiled = append(compiled, compiledRule{re: re, label: r.Label})
	}
	return &Scorer{rules: compiled}
}

// Score evaluates every rule against the newline-joined review corpus and
// the thresholds against the aggregate rating statistics. An Unavailable
// record yields two empty lists. Both outputs are deduplicated and sorted,
// so rule order never affects them and scoring is idempotent.
func (s *Scorer) Score(rec model.Outcome[model.DirectoryRecord]) (risks, opportunities []string) {
	risks = []string{}
	opportunities = []string{}

	record, ok := rec.Get()
	if !ok {
		return risks, opportunities
	}

	texts := make([]string, 0, len(record.Reviews))
	for _, r := range record.Reviews {
		texts = append(texts, r.Text)
	}
	corpus := strings.Join(texts, "\n")

	riskSet := make(map[string]struct{})
	for _, rule := range s.rules {
		if rule.re.MatchString(corpus) {
			riskSet[rule.label] = struct{}{}
		}
	}

	oppSet := make(map[string]struct{})
	if record.Rating != nil {
		switch {
		case *record.Rating < lowRating:
			oppSet[oppUplift] = struct{}{}
		case *record.Rating >= strongRating:
			oppSet[oppStrongPX] = struct{}{}
		}
	}
	if record.RatingCount > largeSampleCount {
		oppSet[oppLargeSample] = struct{}{}
	}

	return sortedLabels(riskSet), sortedLabels(oppSet)
}

func sortedLabels(set map[string]struct{}) []string {
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
