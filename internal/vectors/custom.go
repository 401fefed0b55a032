package vectors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Check is one caller-supplied probe value folded into the suite.
type Check struct {
	Name  string
	Value float64
}

type checkFile struct {
	Checks []struct {
		Name  string `yaml:"name"`
		Value string `yaml:"value"`
	} `yaml:"checks"`
}

// LoadChecks reads a YAML file of extra probe values:
//
//	checks:
//	  - name: bfloat16 boundary
//	    value: 3.3895314e38
//	  - value: "-Infinity"
//
// Values go through ParseValue, so symbolic names and hex literals work.
// A check without a name borrows its value text.
func LoadChecks(path string) ([]Check, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checks: %w", err)
	}
	var doc checkFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse checks %s: %w", path, err)
	}
	checks := make([]Check, 0, len(doc.Checks))
	for i, c := range doc.Checks {
		v, err := ParseValue(c.Value)
		if err != nil {
			return nil, fmt.Errorf("check %d (%q): %w", i, c.Name, err)
		}
		name := c.Name
		if name == "" {
			name = c.Value
		}
		checks = append(checks, Check{Name: name, Value: v})
	}
	return checks, nil
}
