package extract

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/user/product-crawler/internal/rules"
	"github.com/user/product-crawler/pkg/utils"
)

// Document is a parsed HTML page. The same node tree answers both CSS
// (goquery) and XPath (htmlquery) queries.
type Document struct {
	url  *url.URL
	base *url.URL
	root *html.Node
}

// Parse reads an HTML document fetched from pageURL.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDocument(root, u), nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node, u *url.URL) *Document {
	d := &Document{url: u, base: u, root: root}
	if n := htmlquery.FindOne(root, "//head/base[@href]"); n != nil {
		if b, err := u.Parse(htmlquery.SelectAttr(n, "href")); err == nil {
			d.base = b
		}
	}
	return d
}

// URL is the address the document was fetched from.
func (d *Document) URL() *url.URL { return d.url }

// Root is the document node.
func (d *Document) Root() *html.Node { return d.root }

// Resolve turns an href found in the document into an absolute URL,
// honouring <base href>. The fragment is dropped.
func (d *Document) Resolve(href string) (*url.URL, error) {
	return utils.ToAbsoluteURL(d.base, href)
}

// Query is a compiled rules.Selector.
type Query struct {
	sel rules.Selector
	css cascadia.Selector
	xp  *xpath.Expr
	re  *regexp.Regexp
}

// Compile prepares a selector for repeated use.
func Compile(sel rules.Selector) (*Query, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	q := &Query{sel: sel}
	var err error
	switch sel.Kind {
	case rules.CSS:
		q.css, err = cascadia.Compile(sel.Query)
	case rules.XPath:
		q.xp, err = xpath.Compile(sel.Query)
	}
	if err != nil {
		return nil, err
	}
	if sel.Regex != "" {
		q.re = regexp.MustCompile(sel.Regex)
	}
	return q, nil
}

// MustCompile is Compile for selectors known to be valid.
func MustCompile(sel rules.Selector) *Query {
	q, err := Compile(sel)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Query) String() string { return string(q.sel.Kind) + ":" + q.sel.Query }

// Select returns the nodes matched below each scope node, in scope order.
func (d *Document) Select(scope []*html.Node, q *Query) []*html.Node {
	var out []*html.Node
	for _, n := range scope {
		switch q.sel.Kind {
		case rules.CSS:
			out = append(out, goquery.NewDocumentFromNode(n).FindMatcher(q.css).Nodes...)
		case rules.XPath:
			out = append(out, htmlquery.QuerySelectorAll(n, q.xp)...)
		}
	}
	return out
}

// Values returns the trimmed, non-empty strings the query reads below
// each scope node.
func (d *Document) Values(scope []*html.Node, q *Query) []string {
	var out []string
	for _, n := range d.Select(scope, q) {
		v, ok := q.read(n)
		if !ok {
			continue
		}
		if q.re == nil {
			if v = trim(v); v != "" {
				out = append(out, v)
			}
			continue
		}
		for _, m := range q.re.FindAllStringSubmatch(v, -1) {
			if c := trim(m[1]); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

func (q *Query) read(n *html.Node) (string, bool) {
	if q.sel.Kind == rules.CSS {
		s := goquery.NewDocumentFromNode(n).Selection
		if q.sel.Attr != "" {
			return s.Attr(q.sel.Attr)
		}
		return s.Text(), true
	}
	if q.sel.Attr != "" {
		for _, a := range n.Attr {
			if a.Key == q.sel.Attr {
				return a.Val, true
			}
		}
		return "", false
	}
	return htmlquery.InnerText(n), true
}

// trim drops surrounding ASCII whitespace. U+00A0 is left for the
// normalizer so that hard-space handling stays in one place.
func trim(s string) string {
	return strings.Trim(s, " \t\r\n\f")
}
