package model

// Rule pairs a case-insensitive text pattern with the label it emits on a
// match. Rule lists are ordered, but evaluation order never affects scorer
// output because results are deduplicated and sorted before exposure.
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Label   string `json:"label" yaml:"label"`
}
