package analyzer

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/remedian/remedian/internal/database"
)

// RulesFile is the YAML policy document operators can supply to extend
// or replace the built-in pattern tables
type RulesFile struct {
	// Replace drops the built-in rules for any source listed here
	// instead of prepending to them
	Replace bool `yaml:"replace"`

	Sources map[string][]Rule `yaml:"sources"`
}

// NewFromFile creates an analyzer whose knowledge base is extended from
// a YAML rules file. Custom rules are evaluated before the built-in
// ones so operators can override specific patterns.
func NewFromFile(path string) (*Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyzer rules: %w", err)
	}

	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse analyzer rules: %w", err)
	}

	a := New()
	for name, custom := range file.Sources {
		if !database.IsValidAlertSource(name) {
			log.Printf("Analyzer rules: skipping unknown source %q", name)
			continue
		}
		source := database.AlertSource(name)
		if file.Replace {
			a.rules[source] = custom
		} else {
			a.rules[source] = append(custom, a.rules[source]...)
		}
		log.Printf("Analyzer rules: loaded %d custom rules for source %s", len(custom), source)
	}

	return a, nil
}
