package discovery

import (
	"slices"
	"testing"

	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/extract"
	"github.com/user/product-crawler/internal/rules"
	"github.com/user/product-crawler/internal/testutil"
)

func newDiscoverer(t *testing.T, set rules.LinkRuleSet, opts Options) *Discoverer {
	t.Helper()
	d, err := New(set, opts)
	if err != nil {
		t.Fatalf("failed to compile rules: %v", err)
	}
	return d
}

func parse(t *testing.T, body, pageURL string) *extract.Document {
	t.Helper()
	doc, err := extract.ParseString(body, pageURL)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	return doc
}

func TestDiscoverQueryMode(t *testing.T) {
	t.Parallel()

	page := testutil.SearchPage{
		ProductLinks: []string{"/a.html", "//www.daraz.pk/b.html#reviews", "/a.html", "https://evil.example/c.html"},
		NextLink:     "/catalog/?q=laptops&page=2",
	}
	doc := parse(t, page.HTML(), "https://www.daraz.pk/catalog/?q=laptops")
	d := newDiscoverer(t, rules.DefaultQueryLinks(), Options{AllowedDomains: []string{rules.DefaultDomain}})

	got := d.Discover(doc, domain.CrawlTask{URL: doc.URL().String(), Kind: domain.SearchPage, Depth: 3})
	want := []domain.CrawlTask{
		{URL: "https://www.daraz.pk/a.html", Kind: domain.ProductPage, Depth: 4},
		{URL: "https://www.daraz.pk/b.html", Kind: domain.ProductPage, Depth: 4},
		{URL: "https://www.daraz.pk/catalog/?q=laptops&page=2", Kind: domain.SearchPage, Depth: 3},
	}
	if !slices.Equal(got, want) {
		t.Errorf("unexpected tasks\nwant %+v\ngot  %+v", want, got)
	}
}

func TestDiscoverLastSearchPage(t *testing.T) {
	t.Parallel()

	doc := parse(t, testutil.SearchPage{ProductLinks: []string{"/z.html"}}.HTML(), "https://www.daraz.pk/catalog/?q=x&page=9")
	d := newDiscoverer(t, rules.DefaultQueryLinks(), Options{})

	got := d.Discover(doc, domain.CrawlTask{Kind: domain.SearchPage})
	if len(got) != 1 || got[0].Kind != domain.ProductPage {
		t.Errorf("expected a single product task, got %+v", got)
	}
}

func TestDiscoverCrawlMode(t *testing.T) {
	t.Parallel()

	page := testutil.ListingPage{
		MenuLinks:       []string{"/laptops/", "/ur/phones/", "/logo.png"},
		ProductLinks:    []string{"/item-1.html", "/ur/item-2.html"},
		PaginationLinks: []string{"/laptops/?page=2"},
		OtherLinks:      []string{"/about/", "https://other.example/x.html", "mailto:help@daraz.pk"},
	}
	doc := parse(t, page.HTML(), "https://www.daraz.pk/")
	d := newDiscoverer(t, rules.DefaultCrawlLinks(), Options{AllowedDomains: []string{rules.DefaultDomain}})

	got := d.Discover(doc, domain.CrawlTask{URL: "https://www.daraz.pk/", Kind: domain.ListingPage})
	want := []domain.CrawlTask{
		{URL: "https://www.daraz.pk/laptops/", Kind: domain.ListingPage, Depth: 1},
		{URL: "https://www.daraz.pk/laptops/?page=2", Kind: domain.ListingPage, Depth: 1},
		{URL: "https://www.daraz.pk/item-1.html", Kind: domain.ProductPage, Depth: 1},
	}
	if !slices.Equal(got, want) {
		t.Errorf("unexpected tasks\nwant %+v\ngot  %+v", want, got)
	}
}

func TestDiscoverProductPageIsTerminal(t *testing.T) {
	t.Parallel()

	doc := parse(t, testutil.ListingPage{ProductLinks: []string{"/x.html"}}.HTML(), "https://www.daraz.pk/y.html")
	d := newDiscoverer(t, rules.DefaultCrawlLinks(), Options{})

	if got := d.Discover(doc, domain.CrawlTask{Kind: domain.ProductPage}); len(got) != 0 {
		t.Errorf("expected no tasks from a product page, got %+v", got)
	}
}

func TestDiscoverEarlierRuleWins(t *testing.T) {
	t.Parallel()

	set := rules.LinkRuleSet{Name: "overlap", Rules: []rules.LinkRule{
		{Name: "first", Allow: []string{`/sale/`}, Kind: "listing"},
		{Name: "second", Allow: []string{`[.]html$`}, Kind: "product"},
	}}
	body := `<html><body><a href="/sale/tv.html">a</a><a href="/tv.html">b</a></body></html>`
	d := newDiscoverer(t, set, Options{})

	got := d.Discover(parse(t, body, "https://shop.example/"), domain.CrawlTask{Kind: domain.ListingPage})
	want := []domain.CrawlTask{
		{URL: "https://shop.example/sale/tv.html", Kind: domain.ListingPage, Depth: 1},
		{URL: "https://shop.example/tv.html", Kind: domain.ProductPage, Depth: 1},
	}
	if !slices.Equal(got, want) {
		t.Errorf("unexpected tasks\nwant %+v\ngot  %+v", want, got)
	}
}

func TestDiscoverMaxDepth(t *testing.T) {
	t.Parallel()

	page := testutil.SearchPage{ProductLinks: []string{"/a.html"}, NextLink: "/catalog/?page=2"}
	doc := parse(t, page.HTML(), "https://www.daraz.pk/catalog/")
	d := newDiscoverer(t, rules.DefaultQueryLinks(), Options{MaxDepth: 1})

	got := d.Discover(doc, domain.CrawlTask{Kind: domain.SearchPage, Depth: 1})
	want := []domain.CrawlTask{{URL: "https://www.daraz.pk/catalog/?page=2", Kind: domain.SearchPage, Depth: 1}}
	if !slices.Equal(got, want) {
		t.Errorf("unexpected tasks\nwant %+v\ngot  %+v", want, got)
	}
}

func TestNewRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	set := rules.LinkRuleSet{Name: "bad", Rules: []rules.LinkRule{{Name: "r", Allow: []string{"("}, Kind: "product"}}}
	if _, err := New(set, Options{}); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}
