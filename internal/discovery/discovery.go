// Package discovery turns the links on a fetched page into new crawl tasks
// according to an ordered set of link rules.
package discovery

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/extract"
	"github.com/user/product-crawler/internal/rules"
	"github.com/user/product-crawler/pkg/utils"
)

// IgnoredExtensions are file types that never lead to an HTML page.
var IgnoredExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico",
	".pdf", ".zip", ".gz", ".rar", ".mp3", ".mp4", ".avi",
	".css", ".js", ".xml", ".json",
}

type rule struct {
	name      string
	allow     []*regexp.Regexp
	deny      []*regexp.Regexp
	domains   []string
	restrict  []*extract.Query
	links     *extract.Query
	kind      domain.TaskKind
	sameDepth bool
	first     bool
}

// Options bounds what a Discoverer may produce.
type Options struct {
	// AllowedDomains keeps only tasks whose host is one of these domains or
	// a subdomain of one. Empty allows every host.
	AllowedDomains []string
	// MaxDepth drops tasks deeper than this. Zero means unlimited.
	MaxDepth int
}

// Discoverer applies a compiled rules.LinkRuleSet. It is safe for
// concurrent use.
type Discoverer struct {
	name     string
	rules    []rule
	allowed  []string
	maxDepth int
}

// New compiles set.
func New(set rules.LinkRuleSet, opts Options) (*Discoverer, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	d := &Discoverer{name: set.Name, allowed: opts.AllowedDomains, maxDepth: opts.MaxDepth}
	for _, lr := range set.Rules {
		r, err := compile(lr)
		if err != nil {
			return nil, fmt.Errorf("link rule %q: %w", lr.Name, err)
		}
		d.rules = append(d.rules, r)
	}
	return d, nil
}

func compile(lr rules.LinkRule) (rule, error) {
	kind, err := lr.TaskKind()
	if err != nil {
		return rule{}, err
	}
	r := rule{
		name:      lr.Name,
		domains:   lr.AllowDomains,
		kind:      kind,
		sameDepth: lr.SameDepth,
		first:     lr.First,
	}
	for _, p := range lr.Allow {
		r.allow = append(r.allow, regexp.MustCompile(p))
	}
	for _, p := range lr.Deny {
		r.deny = append(r.deny, regexp.MustCompile(p))
	}
	for _, s := range lr.Restrict {
		q, err := extract.Compile(s)
		if err != nil {
			return rule{}, err
		}
		r.restrict = append(r.restrict, q)
	}
	if r.links, err = extract.Compile(lr.LinkSelector()); err != nil {
		return rule{}, err
	}
	return r, nil
}

// Name is the name of the rule set.
func (d *Discoverer) Name() string { return d.name }

// Discover returns the tasks produced by the links on doc, which was
// fetched for parent. Product pages are terminal and produce nothing.
// Rules run in order; a URL accepted by one rule is not offered to the
// rules after it.
func (d *Discoverer) Discover(doc *extract.Document, parent domain.CrawlTask) []domain.CrawlTask {
	if parent.Kind == domain.ProductPage {
		return nil
	}

	claimed := make(map[string]bool)
	var out []domain.CrawlTask
	for _, r := range d.rules {
		depth := parent.Depth + 1
		if r.sameDepth {
			depth = parent.Depth
		}

		for _, href := range doc.Values(r.scope(doc), r.links) {
			u, err := doc.Resolve(href)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				continue
			}
			link := u.String()
			if claimed[link] || !r.matches(link, u.Hostname(), u.Path) {
				continue
			}
			claimed[link] = true
			if d.maxDepth > 0 && depth > d.maxDepth {
				continue
			}
			if !d.onsite(u.Hostname()) {
				continue
			}
			out = append(out, domain.CrawlTask{URL: link, Kind: r.kind, Depth: depth})
			if r.first {
				break
			}
		}
	}
	return out
}

func (r *rule) scope(doc *extract.Document) []*html.Node {
	root := []*html.Node{doc.Root()}
	if len(r.restrict) == 0 {
		return root
	}
	var scope []*html.Node
	for _, q := range r.restrict {
		scope = append(scope, doc.Select(root, q)...)
	}
	return scope
}

func (r *rule) matches(link, host, urlPath string) bool {
	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" {
		for _, ignored := range IgnoredExtensions {
			if ext == ignored {
				return false
			}
		}
	}
	if len(r.domains) > 0 && !hostIn(host, r.domains) {
		return false
	}
	if len(r.allow) > 0 && !anyMatch(r.allow, link) {
		return false
	}
	return !anyMatch(r.deny, link)
}

func (d *Discoverer) onsite(host string) bool {
	return len(d.allowed) == 0 || hostIn(host, d.allowed)
}

func hostIn(host string, domains []string) bool {
	for _, dom := range domains {
		if utils.HostMatches(host, dom) {
			return true
		}
	}
	return false
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
