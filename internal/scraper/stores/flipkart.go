package stores

import (
	"strings"
	"unicode/utf8"

	"pricetracker-backend/internal/retailer"
	"pricetracker-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var flipkartPriceSelectors = []string{
	"div._30jeq3._16Jk6d",
	"div._19_Y9G._8XxizX",
	"div._19_Y9G._1PLdiu",
	"div._30jeq3",
	"span._30jeq3",
	"div.Nx9bqj",
}

var flipkartNameSelectors = []string{
	"h1 span",
	"span.VU-ZEz",
	"span.B_NuCI",
}

// rupee amounts in these contexts are discounts or fees, not the listing price.
var flipkartNoise = []string{"off", "cashback", "fee", "up to"}

type flipkartAdapter struct{}

func (flipkartAdapter) Retailer() retailer.Retailer {
	return retailer.Flipkart
}

func (f flipkartAdapter) ExtractPrice(doc *goquery.Document) (float64, error) {
	if price, ok := priceFromSelectors(doc.Selection, flipkartPriceSelectors); ok {
		return price, nil
	}
	if price, ok := f.priceFromShortText(doc); ok {
		return price, nil
	}
	return 0, priceNotFound(f.Retailer())
}

// priceFromShortText looks at every short text node carrying the rupee symbol, class names
// on flipkart are obfuscated and change often but the price itself is always rendered alone.
func (flipkartAdapter) priceFromShortText(doc *goquery.Document) (float64, bool) {
	if len(doc.Nodes) == 0 {
		return 0, false
	}
outer:
	for _, text := range htmlutil.TextNodes(doc.Nodes[0]) {
		trimmed := strings.TrimSpace(text)
		if !strings.Contains(trimmed, retailer.CurrencySymbol) || utf8.RuneCountInString(trimmed) >= 20 {
			continue
		}
		lowered := strings.ToLower(trimmed)
		for _, word := range flipkartNoise {
			if strings.Contains(lowered, word) {
				continue outer
			}
		}
		price, err := ParsePrice(trimmed)
		if err != nil {
			continue
		}
		return price, true
	}
	return 0, false
}

func (flipkartAdapter) ExtractName(doc *goquery.Document) string {
	return extractName(doc, flipkartNameSelectors)
}

func (f flipkartAdapter) ExtractSearchResult(doc *goquery.Document) (SearchResult, error) {
	product := doc.Find("a[href*='/p/']").First()
	href, _ := product.Attr("href")
	url := htmlutil.ResolveHref(f.Retailer().Origin(), href)
	if url == "" {
		return SearchResult{}, resultNotFound(f.Retailer())
	}

	result := SearchResult{
		URL:  url,
		Name: firstText(product, []string{"div.RG5Slk", "div.KzDlHZ", "div._4rR01T"}),
	}
	product.Find("div.HZ0E6r.Rm9_cy, div.Nx9bqj, div._30jeq3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := htmlutil.SelectionText(s)
		if !strings.Contains(text, retailer.CurrencySymbol) {
			return true
		}
		price, err := ParsePrice(text)
		if err != nil {
			return true
		}
		result.EstimatedPrice = &price
		return false
	})
	return result, nil
}
