package predict

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule maps descriptions matching a pattern to a fixed account, bypassing
// the classifier.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Account string `yaml:"account"`

	re *regexp.Regexp
}

// RuleSet is an ordered list of rules; the first match wins.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a rule file. A missing path yields an empty set.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return &RuleSet{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleSet{}, nil
		}
		return nil, err
	}
	return ParseRules(data)
}

// ParseRules decodes and compiles a YAML rule document.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("unable to parse rules: %w", err)
	}
	for i := range rs.Rules {
		re, err := regexp.Compile("(?i)" + rs.Rules[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rs.Rules[i].re = re
	}
	return &rs, nil
}

// Match returns the account of the first rule whose pattern matches the
// description.
func (rs *RuleSet) Match(description string) (string, bool) {
	for _, r := range rs.Rules {
		if r.re != nil && r.re.MatchString(description) {
			return r.Account, true
		}
	}
	return "", false
}
