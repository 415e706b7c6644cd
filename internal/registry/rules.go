// Package registry loads scoring-rule sets from their three sources: the
// built-in defaults, a YAML rules file, and a Notion rule database. Every
// loader returns a plain []model.Rule; the profile engine never knows where
// its rules came from.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/profiler-cli/internal/model"
)

// Defaults returns the built-in rule set: the five review-complaint patterns
// shipped with the scorer. Callers get a fresh copy.
func Defaults() []model.Rule {
	return []model.Rule{
		{Pattern: `wait|delay`, Label: "long wait or delay complaints in reviews"},
		{Pattern: `billing|insurance`, Label: "billing or insurance friction in reviews"},
		{Pattern: `rude|front desk`, Label: "staff courtesy complaints in reviews"},
		{Pattern: `parking|access`, Label: "parking or access complaints in reviews"},
		{Pattern: `communication|phone`, Label: "communication or phone-answering complaints in reviews"},
	}
}

type ruleFile struct {
	Rules []model.Rule `yaml:"rules"`
}

// LoadFile reads a YAML rule set:
//
//	rules:
//	  - pattern: "wait|delay"
//	    label: "long wait or delay complaints in reviews"
//
// A file that parses but carries no usable rules is an error; silently
// scoring with nothing would look like a clean run.
func LoadFile(path string) ([]model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read rules file")
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "registry: parse rules file")
	}
	if len(f.Rules) == 0 {
		return nil, eris.Errorf("registry: no rules in %s", path)
	}
	for i, r := range f.Rules {
		if r.Pattern == "" || r.Label == "" {
			return nil, eris.Errorf("registry: rule %d in %s missing pattern or label", i, path)
		}
	}

	return f.Rules, nil
}
