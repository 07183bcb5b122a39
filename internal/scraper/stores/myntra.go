package stores

import (
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

var myntraPriceSelectors = []string{
	"span.pdp-price",
	"span.pdp-mrp",
	"div.price-container span",
	".price-heading",
	".pdp-price",
	"[data-price]",
	".price",
}

var myntraNameSelectors = []string{
	"h1.pdp-title",
	"h1.pdp-name",
}

type myntraAdapter struct{}

func (myntraAdapter) Retailer() retailer.Retailer {
	return retailer.Myntra
}

func (m myntraAdapter) ExtractPrice(doc *goquery.Document) (float64, error) {
	if price, ok := priceFromSelectors(doc.Selection, myntraPriceSelectors); ok {
		return price, nil
	}
	if price, ok := priceFromSymbol(doc); ok {
		return price, nil
	}
	return 0, priceNotFound(m.Retailer())
}

func (myntraAdapter) ExtractName(doc *goquery.Document) string {
	return extractName(doc, myntraNameSelectors)
}

// myntra renders its search results client side, there is nothing to extract.
func (m myntraAdapter) ExtractSearchResult(*goquery.Document) (SearchResult, error) {
	return SearchResult{}, scraper.Errorf(scraper.CauseUnsupported, "", "%s has no search page", m.Retailer().Title())
}
