// Package testutil renders HTML pages shaped like the site the built-in
// rule tables describe, for use in tests across packages.
package testutil

import (
	"fmt"
	"html"
	"strings"
)

// ProductPage describes a product detail page.
type ProductPage struct {
	Title        string
	PriceParts   []string
	Breadcrumb   []string
	RatingWidth  string // e.g. "80" renders style="width: 80%"; empty renders no stars
	RatingsCount string // e.g. "(123)"; empty renders no counter
	Features     []string
}

// HTML renders the page.
func (p ProductPage) HTML() string {
	var b strings.Builder
	b.WriteString(`<html><head><title>`)
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString(`</title></head><body><main class="osh-container">`)

	b.WriteString(`<nav class="osh-breadcrumb"><ul>`)
	for _, c := range p.Breadcrumb {
		fmt.Fprintf(&b, `<li><a href="#">%s</a></li>`, html.EscapeString(c))
	}
	b.WriteString(`</ul></nav>`)

	b.WriteString(`<section class="sku-detail"><div class="details-wrapper"><div class="details -validate-size">`)
	fmt.Fprintf(&b, `<span><h1 class="title">%s</h1></span>`, html.EscapeString(p.Title))

	b.WriteString(`<div class="rating-stars">`)
	if p.RatingWidth != "" {
		fmt.Fprintf(&b, `<div class="stars-container"><div class="stars" style="width: %s%%"></div></div>`, p.RatingWidth)
	}
	if p.RatingsCount != "" {
		fmt.Fprintf(&b, `<div class="total-ratings">%s</div>`, html.EscapeString(p.RatingsCount))
	}
	b.WriteString(`</div>`)

	b.WriteString(`<div class="detail-features"><div class="list -features -compact -no-float"><ul>`)
	for _, f := range p.Features {
		fmt.Fprintf(&b, "<li>\n  %s\n</li>", html.EscapeString(f))
	}
	b.WriteString(`</ul></div></div>`)

	b.WriteString(`<div class="details-footer"><div class="price-box"><div><span class="price">`)
	for _, part := range p.PriceParts {
		fmt.Fprintf(&b, `<span>%s</span>`, html.EscapeString(part))
	}
	b.WriteString(`</span></div></div></div>`)

	b.WriteString(`</div></div></section></main></body></html>`)
	return b.String()
}

// SearchPage is a search results page.
type SearchPage struct {
	ProductLinks []string
	NextLink     string
}

// HTML renders the page.
func (p SearchPage) HTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="products">`)
	for _, l := range p.ProductLinks {
		fmt.Fprintf(&b, `<div class="sku -gallery"><a href="%s">item</a></div>`, html.EscapeString(l))
	}
	b.WriteString(`</section>`)
	if p.NextLink != "" {
		fmt.Fprintf(&b, `<ul class="osh-pagination -horizontal"><li><a title="Next" href="%s">next</a></li></ul>`,
			html.EscapeString(p.NextLink))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// ListingPage is a category page with a menu, a results grid, pagination
// and some links that should never be followed.
type ListingPage struct {
	MenuLinks       []string
	ProductLinks    []string
	PaginationLinks []string
	OtherLinks      []string
}

// HTML renders the page.
func (p ListingPage) HTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="menu-items">`)
	for _, l := range p.MenuLinks {
		fmt.Fprintf(&b, `<li><a href="%s">menu</a></li>`, html.EscapeString(l))
	}
	b.WriteString(`</ul><section class="products">`)
	for _, l := range p.ProductLinks {
		fmt.Fprintf(&b, `<div class="sku -gallery"><a href="%s">item</a></div>`, html.EscapeString(l))
	}
	b.WriteString(`</section><ul class="osh-pagination -horizontal">`)
	for _, l := range p.PaginationLinks {
		fmt.Fprintf(&b, `<li><a href="%s">page</a></li>`, html.EscapeString(l))
	}
	b.WriteString(`</ul><footer>`)
	for _, l := range p.OtherLinks {
		fmt.Fprintf(&b, `<a href="%s">other</a>`, html.EscapeString(l))
	}
	b.WriteString(`</footer></body></html>`)
	return b.String()
}
