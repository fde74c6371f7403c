package product

import (
	"errors"
	"fmt"
	"slices"

	"github.com/user/product-crawler/internal/domain"
	"github.com/user/product-crawler/internal/extract"
	"github.com/user/product-crawler/internal/normalize"
	"github.com/user/product-crawler/internal/rules"
)

var (
	// ErrMissingTitle means the page produced no usable dedup key.
	ErrMissingTitle = errors.New("missing title")
	// ErrRegionMissing means the page lacks the root region of the field
	// table or a region the title is read from. Seen on the first product
	// page it points at a rule table that does not describe the site.
	ErrRegionMissing = errors.New("required region not found")
)

// Builder turns a product detail page into a Product. It is stateless
// and safe for concurrent use.
type Builder struct {
	extractor *extract.Extractor
	required  []string
}

// NewBuilder compiles the product field table.
func NewBuilder(table rules.FieldTable) (*Builder, error) {
	ex, err := extract.NewExtractor(table)
	if err != nil {
		return nil, fmt.Errorf("product table: %w", err)
	}
	var required []string
	if root := ex.Root(); root != "" {
		required = append(required, root)
	}
	for _, r := range ex.FieldRegions(rules.FieldTitle) {
		if !slices.Contains(required, r) {
			required = append(required, r)
		}
	}
	return &Builder{extractor: ex, required: required}, nil
}

// Build extracts, normalizes and validates one product record.
func (b *Builder) Build(doc *extract.Document) (*domain.Product, error) {
	bag, report := b.extractor.Extract(doc)
	for _, name := range b.required {
		if report.Missing(name) {
			return nil, fmt.Errorf("%w: %q on %s", ErrRegionMissing, name, doc.URL())
		}
	}

	p := &domain.Product{
		URL:          doc.URL().String(),
		Title:        normalize.Title(bag[rules.FieldTitle]),
		Price:        normalize.Price(bag[rules.FieldPrice]),
		CategoryList: normalize.CategoryList(bag[rules.FieldCategoryList]),
		Rating:       normalize.Rating(bag[rules.FieldRating]),
		RatingsCount: normalize.RatingsCount(bag[rules.FieldRatingsCount]),
		Features:     normalize.Features(bag[rules.FieldFeatures]),
	}
	if p.Title == "" {
		return nil, fmt.Errorf("%w on %s", ErrMissingTitle, doc.URL())
	}
	return p, nil
}
