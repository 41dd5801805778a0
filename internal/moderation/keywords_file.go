package moderation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// keywordsFile is the on-disk shape of an optional banned-keyword override:
//
//	keywords:
//	  - violence
//	  - blood
type keywordsFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadKeywordsFile reads a YAML file of banned keywords and builds a
// DefaultEngine from it. Operators use this to extend or replace
// DefaultKeywords without a code change.
func LoadKeywordsFile(path string) (*DefaultEngine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}

	var doc keywordsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse keywords file: %w", err)
	}

	return NewDefaultEngine(doc.Keywords), nil
}
