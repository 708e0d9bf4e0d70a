package readability

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules is the vocabulary and thresholds the analyzer works from.
type Rules struct {
	// A sentence with more than LongSentence words is long, more than
	// VeryLongSentence very long.
	LongSentence     int `yaml:"long_sentence"`
	VeryLongSentence int `yaml:"very_long_sentence"`

	PassiveAuxiliaries   []string          `yaml:"passive_auxiliaries"`
	IrregularParticiples []string          `yaml:"irregular_participles"`
	AdverbExceptions     []string          `yaml:"adverb_exceptions"`
	ComplexWords         map[string]string `yaml:"complex_words"`
	WeakTransitions      []string          `yaml:"weak_transitions"`
}

// DefaultRules returns a fresh copy of the built-in rules.
func DefaultRules() Rules {
	var r Rules
	if err := yaml.Unmarshal(defaultRules, &r); err != nil {
		panic(fmt.Sprintf("readability: invalid built-in rules: %v", err))
	}
	return r
}

// ParseRules decodes YAML over the defaults. Lists given in data replace the
// built-in ones; complex words are merged.
func ParseRules(data []byte) (Rules, error) {
	r := DefaultRules()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("failed to parse readability rules: %w", err)
	}
	if r.VeryLongSentence < r.LongSentence {
		return Rules{}, fmt.Errorf("very_long_sentence (%d) is below long_sentence (%d)", r.VeryLongSentence, r.LongSentence)
	}
	return r, nil
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read readability rules: %w", err)
	}
	return ParseRules(data)
}
