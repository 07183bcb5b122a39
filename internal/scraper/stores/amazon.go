package stores

import (
	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var amazonPriceSelectors = []string{
	"#corePriceDisplay_desktop_feature_div .a-price-whole",
	"#corePrice_feature_div .a-price .a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	".a-price .a-offscreen",
	".a-price-whole",
	".a-color-price",
	"#price_inside_buybox",
	".a-price span[aria-hidden='true']",
}

var amazonNameSelectors = []string{
	"#productTitle",
	".a-size-large.product-title-word-break",
}

type amazonAdapter struct{}

func (amazonAdapter) Retailer() retailer.Retailer {
	return retailer.Amazon
}

func (a amazonAdapter) ExtractPrice(doc *goquery.Document) (float64, error) {
	if price, ok := priceFromSelectors(doc.Selection, amazonPriceSelectors); ok {
		return price, nil
	}
	if price, ok := priceFromSymbol(doc); ok {
		return price, nil
	}
	return 0, priceNotFound(a.Retailer())
}

func (amazonAdapter) ExtractName(doc *goquery.Document) string {
	return extractName(doc, amazonNameSelectors)
}

// ExtractSearchResult takes the first organic result, the link wrapping the product image.
// newer layouts moved the title and price out of that link into the surrounding result
// card so both places are checked.
func (a amazonAdapter) ExtractSearchResult(doc *goquery.Document) (SearchResult, error) {
	var link *goquery.Selection
	doc.Find("a.a-link-normal.s-no-outline").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, _ := s.Attr("href"); href != "" {
			link = s
			return false
		}
		return true
	})
	if link == nil {
		return SearchResult{}, resultNotFound(a.Retailer())
	}

	href, _ := link.Attr("href")
	result := SearchResult{URL: htmlutil.ResolveHref(a.Retailer().Origin(), href)}
	if result.URL == "" {
		return SearchResult{}, resultNotFound(a.Retailer())
	}

	card := link.Closest("[data-component-type='s-search-result']")
	result.Name = firstText(link, []string{"h2.a-size-mini", "h2"})
	if result.Name == "" && card.Length() > 0 {
		result.Name = firstText(card, []string{"h2.a-size-mini", "h2"})
	}
	if price, ok := priceFromSelectors(link, []string{".a-price-whole"}); ok {
		result.EstimatedPrice = &price
	} else if price, ok := priceFromSelectors(card, []string{".a-price-whole"}); ok {
		result.EstimatedPrice = &price
	}
	return result, nil
}
