// Package rules holds the declarative tables that drive extraction and link
// discovery: which regions of a product page hold which fields, and which
// links on a page become new crawl tasks.
package rules

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/user/product-crawler/internal/domain"
)

// ErrInvalidRule is returned when a rule table cannot be used as written.
var ErrInvalidRule = errors.New("invalid rule")

// SelectorKind is the query language of a Selector.
type SelectorKind string

const (
	CSS   SelectorKind = "css"
	XPath SelectorKind = "xpath"
)

// Selector locates nodes below a scope and says what to read from them.
type Selector struct {
	Kind  SelectorKind `yaml:"kind"`
	Query string       `yaml:"query"`
	// Attr reads an attribute instead of the node text.
	Attr string `yaml:"attr,omitempty"`
	// Regex keeps the first capture group of each value, dropping values
	// that do not match.
	Regex string `yaml:"regex,omitempty"`
}

// Validate compiles the selector's query and regex.
func (s Selector) Validate() error {
	switch s.Kind {
	case CSS:
		if _, err := cascadia.Compile(s.Query); err != nil {
			return fmt.Errorf("%w: css %q: %v", ErrInvalidRule, s.Query, err)
		}
	case XPath:
		if _, err := xpath.Compile(s.Query); err != nil {
			return fmt.Errorf("%w: xpath %q: %v", ErrInvalidRule, s.Query, err)
		}
	default:
		return fmt.Errorf("%w: unknown selector kind %q", ErrInvalidRule, s.Kind)
	}
	if s.Regex != "" {
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return fmt.Errorf("%w: regex %q: %v", ErrInvalidRule, s.Regex, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("%w: regex %q has no capture group", ErrInvalidRule, s.Regex)
		}
	}
	return nil
}

// Region is a named sub-tree of a document. Steps are applied in order,
// each one scoped to the nodes the previous step produced, starting from
// the Parent region (or the whole document when Parent is empty).
type Region struct {
	Name   string     `yaml:"name"`
	Parent string     `yaml:"parent,omitempty"`
	Steps  []Selector `yaml:"steps"`
}

// FieldRule pulls one field out of a region.
type FieldRule struct {
	Name     string   `yaml:"name"`
	Region   string   `yaml:"region"`
	Selector Selector `yaml:"selector"`
}

// FieldTable is the full extraction table for one page type.
type FieldTable struct {
	// Root is the region every page of this type must contain. A page
	// where it is missing means the table does not describe the site.
	Root    string      `yaml:"root"`
	Regions []Region    `yaml:"regions"`
	Fields  []FieldRule `yaml:"fields"`
}

// Region returns the region with the given name.
func (t *FieldTable) Region(name string) (Region, bool) {
	for _, r := range t.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Validate checks that every reference in the table resolves and that
// region parents do not form a cycle.
func (t *FieldTable) Validate() error {
	seen := make(map[string]bool, len(t.Regions))
	for _, r := range t.Regions {
		if r.Name == "" {
			return fmt.Errorf("%w: region without a name", ErrInvalidRule)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate region %q", ErrInvalidRule, r.Name)
		}
		seen[r.Name] = true
		if len(r.Steps) == 0 {
			return fmt.Errorf("%w: region %q has no steps", ErrInvalidRule, r.Name)
		}
		for _, s := range r.Steps {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("region %q: %w", r.Name, err)
			}
		}
	}
	for _, r := range t.Regions {
		if err := t.checkAncestry(r); err != nil {
			return err
		}
	}
	if t.Root != "" && !seen[t.Root] {
		return fmt.Errorf("%w: root region %q is not declared", ErrInvalidRule, t.Root)
	}
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field without a name", ErrInvalidRule)
		}
		if f.Region != "" && !seen[f.Region] {
			return fmt.Errorf("%w: field %q references unknown region %q", ErrInvalidRule, f.Name, f.Region)
		}
		if err := f.Selector.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func (t *FieldTable) checkAncestry(r Region) error {
	visited := map[string]bool{r.Name: true}
	for parent := r.Parent; parent != ""; {
		if visited[parent] {
			return fmt.Errorf("%w: region %q has a parent cycle", ErrInvalidRule, r.Name)
		}
		visited[parent] = true
		p, ok := t.Region(parent)
		if !ok {
			return fmt.Errorf("%w: region %q references unknown parent %q", ErrInvalidRule, r.Name, parent)
		}
		parent = p.Parent
	}
	return nil
}

// LinkRule turns links found on a page into crawl tasks.
type LinkRule struct {
	Name string `yaml:"name"`
	// Allow and Deny are regular expressions searched in the absolute URL.
	Allow        []string `yaml:"allow,omitempty"`
	Deny         []string `yaml:"deny,omitempty"`
	AllowDomains []string `yaml:"allow_domains,omitempty"`
	// Restrict limits the search to these sub-trees; empty means the whole page.
	Restrict []Selector `yaml:"restrict,omitempty"`
	// Links selects the href values. Defaults to every a[href].
	Links *Selector `yaml:"links,omitempty"`
	// Kind is the kind of task produced: search, product or listing.
	Kind string `yaml:"kind"`
	// SameDepth keeps the parent's depth, used for pagination chains.
	SameDepth bool `yaml:"same_depth,omitempty"`
	// First stops after the first accepted link.
	First bool `yaml:"first,omitempty"`
}

// DefaultLinks is the selector used when a LinkRule has none.
var DefaultLinks = Selector{Kind: CSS, Query: "a[href]", Attr: "href"}

// LinkSelector returns the rule's href selector.
func (r LinkRule) LinkSelector() Selector {
	if r.Links == nil {
		return DefaultLinks
	}
	return *r.Links
}

// TaskKind returns the kind of task the rule produces.
func (r LinkRule) TaskKind() (domain.TaskKind, error) {
	k, ok := domain.ParseTaskKind(r.Kind)
	if !ok {
		return 0, fmt.Errorf("%w: link rule %q has unknown kind %q", ErrInvalidRule, r.Name, r.Kind)
	}
	return k, nil
}

// Validate compiles every pattern and selector of the rule.
func (r LinkRule) Validate() error {
	if _, err := r.TaskKind(); err != nil {
		return err
	}
	for _, p := range append(append([]string(nil), r.Allow...), r.Deny...) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: link rule %q pattern %q: %v", ErrInvalidRule, r.Name, p, err)
		}
	}
	for _, s := range r.Restrict {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("link rule %q: %w", r.Name, err)
		}
	}
	if err := r.LinkSelector().Validate(); err != nil {
		return fmt.Errorf("link rule %q: %w", r.Name, err)
	}
	return nil
}

// LinkRuleSet is an ordered list of link rules; earlier rules win.
type LinkRuleSet struct {
	Name  string     `yaml:"name"`
	Rules []LinkRule `yaml:"rules"`
}

func (s LinkRuleSet) Validate() error {
	if len(s.Rules) == 0 {
		return fmt.Errorf("%w: link rule set %q is empty", ErrInvalidRule, s.Name)
	}
	for _, r := range s.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
