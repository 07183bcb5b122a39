// Package stores turns retailer markup into prices, names and search results.
//
// every retailer gets its own Adapter, each capability of an adapter tries an ordered list
// of selectors and falls back to scanning for a rupee amount. selectors are expected to
// break whenever a retailer ships a redesign, so new ones go to the front of the list and
// old ones stay as long as some pages still use them.
package stores

import (
	"regexp"

	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/internal/scraper"
	"pricetracker-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// UnknownName is the name given to a product whose page has no recognizable title.
const UnknownName = "Unknown Product"

type SearchResult struct {
	URL  string
	Name string
	// EstimatedPrice is the price shown on the search page, nil if there was none.
	EstimatedPrice *float64
}

type Adapter interface {
	Retailer() retailer.Retailer
	// ExtractPrice fails with a not_found ScraperError if no price can be found.
	ExtractPrice(doc *goquery.Document) (float64, error)
	// ExtractName returns "" if no name can be found.
	ExtractName(doc *goquery.Document) string
	// ExtractSearchResult fails with not_found when the page lists no product and with
	// unsupported when the retailer has no search page.
	ExtractSearchResult(doc *goquery.Document) (SearchResult, error)
}

// firstText returns the text of the first element of the first selector that has
// non-empty text.
func firstText(sel *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		text := htmlutil.SelectionText(sel.Find(s).First())
		if text != "" {
			return text
		}
	}
	return ""
}

// priceFromSelectors is firstText except a text that does not parse as a price moves on to
// the next selector instead of failing.
func priceFromSelectors(sel *goquery.Selection, selectors []string) (float64, bool) {
	for _, s := range selectors {
		text := htmlutil.SelectionText(sel.Find(s).First())
		if text == "" {
			continue
		}
		price, err := ParsePrice(text)
		if err != nil {
			continue
		}
		return price, true
	}
	return 0, false
}

var symbolPrice = regexp.MustCompile(retailer.CurrencySymbol + `\s*[\d,]+\.?\d*`)

// priceFromSymbol takes the first rupee amount anywhere in the document's text.
func priceFromSymbol(doc *goquery.Document) (float64, bool) {
	if len(doc.Nodes) == 0 {
		return 0, false
	}
	match := symbolPrice.FindString(htmlutil.GetText(doc.Nodes[0]))
	if match == "" {
		return 0, false
	}
	price, err := ParsePrice(match)
	if err != nil {
		return 0, false
	}
	return price, true
}

func priceNotFound(r retailer.Retailer) error {
	return scraper.Errorf(scraper.CauseNotFound, "", "could not find price on %s page", r.Title())
}

func resultNotFound(r retailer.Retailer) error {
	return scraper.Errorf(scraper.CauseNotFound, "", "no product listed on %s search page", r.Title())
}

// genericNameSelectors are tried after the retailer specific ones.
var genericNameSelectors = []string{
	"h1.product-title",
	"h1.product-name",
	"h1.prod-name",
}

func extractName(doc *goquery.Document, selectors []string) string {
	name := firstText(doc.Selection, selectors)
	if name != "" {
		return name
	}
	name = firstText(doc.Selection, genericNameSelectors)
	if name != "" {
		return name
	}
	content, _ := doc.Find("meta[property='og:title']").First().Attr("content")
	return htmlutil.CleanText(content)
}
