package extract

import (
	"fmt"
	"slices"

	"golang.org/x/net/html"

	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/rules"
)

type region struct {
	name   string
	parent string
	steps  []*Query
}

type field struct {
	name   string
	region string
	query  *Query
}

// Extractor applies a rules.FieldTable to documents. It holds no per-page
// state and is safe for concurrent use.
type Extractor struct {
	root    string
	regions map[string]region
	fields  []field
}

// Report describes what a single extraction pass could not find.
type Report struct {
	MissingRegions []string
}

// Missing reports whether the named region matched no node.
func (r Report) Missing(name string) bool {
	for _, m := range r.MissingRegions {
		if m == name {
			return true
		}
	}
	return false
}

// NewExtractor validates and compiles a field table.
func NewExtractor(table rules.FieldTable) (*Extractor, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{
		root:    table.Root,
		regions: make(map[string]region, len(table.Regions)),
	}
	for _, r := range table.Regions {
		cr := region{name: r.Name, parent: r.Parent}
		for _, s := range r.Steps {
			q, err := Compile(s)
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", r.Name, err)
			}
			cr.steps = append(cr.steps, q)
		}
		e.regions[r.Name] = cr
	}
	for _, f := range table.Fields {
		q, err := Compile(f.Selector)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		e.fields = append(e.fields, field{name: f.Name, region: f.Region, query: q})
	}
	return e, nil
}

// Root is the name of the region every page must contain.
func (e *Extractor) Root() string { return e.root }

// FieldRegions lists the region a field is read from followed by its
// ancestors. It is empty for unknown fields and fields scoped to the
// whole document.
func (e *Extractor) FieldRegions(name string) []string {
	var chain []string
	for _, f := range e.fields {
		if f.name != name {
			continue
		}
		for r := f.region; r != ""; r = e.regions[r].parent {
			chain = append(chain, r)
		}
		break
	}
	return chain
}

// Extract pulls every declared field out of doc. Fields whose region or
// selector matched nothing map to an empty slice.
func (e *Extractor) Extract(doc *Document) (domain.RawFieldBag, Report) {
	resolved := make(map[string][]*html.Node, len(e.regions))
	bag := make(domain.RawFieldBag, len(e.fields))
	var report Report

	if e.root != "" {
		e.resolve(doc, e.root, resolved)
	}
	for _, f := range e.fields {
		scope := []*html.Node{doc.Root()}
		if f.region != "" {
			scope = e.resolve(doc, f.region, resolved)
		}
		bag[f.name] = doc.Values(scope, f.query)
	}
	for _, name := range e.regionOrder(resolved) {
		if len(resolved[name]) == 0 {
			report.MissingRegions = append(report.MissingRegions, name)
		}
	}
	return bag, report
}

func (e *Extractor) resolve(doc *Document, name string, memo map[string][]*html.Node) []*html.Node {
	if nodes, ok := memo[name]; ok {
		return nodes
	}
	r := e.regions[name]
	scope := []*html.Node{doc.Root()}
	if r.parent != "" {
		scope = e.resolve(doc, r.parent, memo)
	}
	for _, step := range r.steps {
		if len(scope) == 0 {
			break
		}
		scope = doc.Select(scope, step)
	}
	memo[name] = scope
	return scope
}

// regionOrder lists resolved regions root first, then alphabetically, so
// reports are stable.
func (e *Extractor) regionOrder(resolved map[string][]*html.Node) []string {
	names := make([]string, 0, len(resolved))
	for name := range resolved {
		if name != e.root {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	if _, ok := resolved[e.root]; ok && e.root != "" {
		names = append([]string{e.root}, names...)
	}
	return names
}
