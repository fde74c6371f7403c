package rules

// Field names produced by the product table.
const (
	FieldTitle        = "title"
	FieldPrice        = "price"
	FieldCategoryList = "category_list"
	FieldRating       = "rating"
	FieldRatingsCount = "ratings_count"
	FieldFeatures     = "features"
)

// DefaultDomain is the site the built-in tables were written for.
const DefaultDomain = "daraz.pk"

// DefaultProductTable describes a daraz.pk product detail page.
func DefaultProductTable() FieldTable {
	return FieldTable{
		Root: "container",
		Regions: []Region{
			{Name: "container", Steps: []Selector{
				{Kind: CSS, Query: "main.osh-container"},
			}},
			{Name: "details", Parent: "container", Steps: []Selector{
				{Kind: CSS, Query: "section.sku-detail div.details-wrapper"},
				{Kind: XPath, Query: `.//div[@class="details -validate-size"]`},
			}},
			{Name: "price_box", Parent: "details", Steps: []Selector{
				{Kind: CSS, Query: "div.details-footer div.price-box div span.price"},
			}},
			{Name: "breadcrumb", Parent: "container", Steps: []Selector{
				{Kind: CSS, Query: "nav.osh-breadcrumb"},
			}},
			{Name: "feature_box", Parent: "details", Steps: []Selector{
				{Kind: CSS, Query: "div.detail-features"},
			}},
		},
		Fields: []FieldRule{
			{Name: FieldTitle, Region: "details", Selector: Selector{
				Kind: XPath, Query: `.//span/h1[@class="title"]/text()`,
			}},
			{Name: FieldPrice, Region: "price_box", Selector: Selector{
				Kind: XPath, Query: `./span/text()`,
			}},
			{Name: FieldCategoryList, Region: "breadcrumb", Selector: Selector{
				Kind: XPath, Query: `.//ul/li/a/text()`,
			}},
			{Name: FieldRating, Region: "details", Selector: Selector{
				Kind:  CSS,
				Query: "div.rating-stars div.stars-container div.stars",
				Attr:  "style",
				Regex: `width:\s*(\d+[.]?\d+)%`,
			}},
			{Name: FieldRatingsCount, Region: "details", Selector: Selector{
				Kind: CSS, Query: "div.rating-stars div.total-ratings",
			}},
			{Name: FieldFeatures, Region: "feature_box", Selector: Selector{
				Kind: XPath, Query: `.//div[@class="list -features -compact -no-float"]/ul/li//text()`,
			}},
		},
	}
}

// DefaultQueryLinks follows a search result listing: every product tile,
// plus the "Next" pagination link.
func DefaultQueryLinks() LinkRuleSet {
	return LinkRuleSet{
		Name: "query",
		Rules: []LinkRule{
			{
				Name:     "products",
				Restrict: []Selector{{Kind: CSS, Query: "section.products"}},
				Links:    &Selector{Kind: XPath, Query: `.//div[@class="sku -gallery"]/a/@href`},
				Kind:     "product",
			},
			{
				Name:      "next-page",
				Links:     &Selector{Kind: XPath, Query: `.//a[@title="Next"]/@href`},
				Kind:      "search",
				SameDepth: true,
				First:     true,
			},
		},
	}
}

// DefaultCrawlLinks walks menus, category lists, result grids and
// pagination, and hands every .html detail page to the record builder.
func DefaultCrawlLinks() LinkRuleSet {
	return LinkRuleSet{
		Name: "crawl",
		Rules: []LinkRule{
			{
				Name:         "navigation",
				Allow:        []string{`https://www\.daraz\.pk/.*`},
				Deny:         []string{`[.]html$`, `/ur/`},
				AllowDomains: []string{DefaultDomain},
				Restrict: []Selector{
					{Kind: CSS, Query: "ul.menu-items"},
					{Kind: CSS, Query: "div.page-sub-category"},
					{Kind: CSS, Query: "section.products"},
					{Kind: XPath, Query: `//ul[@class="osh-pagination -horizontal"]`},
				},
				Kind: "listing",
			},
			{
				Name:         "products",
				Allow:        []string{`[.]html$`},
				Deny:         []string{`/ur/`},
				AllowDomains: []string{DefaultDomain},
				Kind:         "product",
			},
		},
	}
}
