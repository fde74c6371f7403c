package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a rule file. Sections left out fall back to
// the built-in defaults.
type File struct {
	Product *FieldTable  `yaml:"product,omitempty"`
	Query   *LinkRuleSet `yaml:"query,omitempty"`
	Crawl   *LinkRuleSet `yaml:"crawl,omitempty"`
}

// Set is the complete, validated rule configuration of a run.
type Set struct {
	Product FieldTable
	Query   LinkRuleSet
	Crawl   LinkRuleSet
}

// Defaults returns the built-in rule set.
func Defaults() *Set {
	return &Set{
		Product: DefaultProductTable(),
		Query:   DefaultQueryLinks(),
		Crawl:   DefaultCrawlLinks(),
	}
}

// Validate checks every table in the set.
func (s *Set) Validate() error {
	if err := s.Product.Validate(); err != nil {
		return fmt.Errorf("product table: %w", err)
	}
	if err := s.Query.Validate(); err != nil {
		return fmt.Errorf("query rules: %w", err)
	}
	if err := s.Crawl.Validate(); err != nil {
		return fmt.Errorf("crawl rules: %w", err)
	}
	return nil
}

// Load returns the defaults when path is empty, otherwise the rule file
// at path merged over the defaults.
func Load(path string) (*Set, error) {
	set := Defaults()
	if path == "" {
		return set, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied rules path
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := set.merge(data); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return set, nil
}

// Parse merges YAML rule data over the defaults and validates the result.
func Parse(data []byte) (*Set, error) {
	set := Defaults()
	if err := set.merge(data); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Set) merge(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if f.Product != nil {
		s.Product = *f.Product
	}
	if f.Query != nil {
		s.Query = *f.Query
	}
	if f.Crawl != nil {
		s.Crawl = *f.Crawl
	}
	return s.Validate()
}
