// Package retailer is the closed set of e-commerce sites the tracker knows how to scrape.
package retailer

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricetracker-backend/internal/scraper"
)

type Retailer string

const (
	Amazon   Retailer = "amazon"
	Flipkart Retailer = "flipkart"
	Myntra   Retailer = "myntra"
)

// DefaultCurrency is the currency every supported retailer lists prices in.
const DefaultCurrency = "INR"

// CurrencySymbol is the symbol prices are prefixed with in retailer markup.
const CurrencySymbol = "₹"

type info struct {
	origin string
	// searchTemplate is formatted with the '+' joined query, empty if the retailer
	// has no server rendered search page.
	searchTemplate string
	cookieDomain   string
}

var registry = map[Retailer]info{
	Amazon: {
		origin:         "https://www.amazon.in",
		searchTemplate: "https://www.amazon.in/s?k=%s&ref=sr_pg_1",
		cookieDomain:   ".amazon.in",
	},
	Flipkart: {
		origin:         "https://www.flipkart.com",
		searchTemplate: "https://www.flipkart.com/search?q=%s&page=1",
		cookieDomain:   ".flipkart.com",
	},
	Myntra: {
		origin:       "https://www.myntra.com",
		cookieDomain: ".myntra.com",
	},
}

// All returns every supported retailer in a stable order.
func All() []Retailer {
	return []Retailer{Amazon, Flipkart, Myntra}
}

// Searchable returns the retailers whose search page can be scraped.
func Searchable() []Retailer {
	var out []Retailer
	for _, r := range All() {
		if registry[r].searchTemplate != "" {
			out = append(out, r)
		}
	}
	return out
}

func (r Retailer) Valid() bool {
	_, ok := registry[r]
	return ok
}

// Title is the display form of the retailer, "amazon" -> "Amazon".
func (r Retailer) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// Origin is the scheme + host relative links on the retailer are resolved against.
func (r Retailer) Origin() string {
	return registry[r].origin
}

// Parse accepts loose spellings ("Amazon.in", " FLIPKART ") and fails fast with an
// unsupported ScraperError for anything outside the closed set.
func Parse(s string) (Retailer, error) {
	lowered := strings.ToLower(strings.TrimSpace(s))
	for _, r := range All() {
		if strings.Contains(lowered, string(r)) {
			return r, nil
		}
	}
	return "", scraper.Errorf(scraper.CauseUnsupported, "", "retailer %q is not supported", s)
}

// Detect figures out the retailer from a product url.
func Detect(rawUrl string) (Retailer, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawUrl))
	if err != nil || parsed.Host == "" {
		return "", scraper.Errorf(scraper.CauseUnsupported, rawUrl, "invalid product url")
	}
	host := strings.ToLower(parsed.Hostname())
	for _, r := range All() {
		if strings.Contains(host, string(r)) {
			return r, nil
		}
	}
	return "", scraper.Errorf(scraper.CauseUnsupported, rawUrl, "unsupported store url")
}

// SearchURL builds the url of the retailer's search page for a product name.
func SearchURL(r Retailer, productName string) (string, error) {
	template := registry[r].searchTemplate
	if template == "" {
		return "", scraper.Errorf(scraper.CauseUnsupported, "", "retailer %q has no search page", r)
	}
	query := url.QueryEscape(strings.Join(strings.Fields(productName), " "))
	return fmt.Sprintf(template, query), nil
}

func randomDigits(rndm *rand.Rand, groups int) string {
	parts := make([]string, groups)
	for i := range parts {
		parts[i] = strconv.Itoa(1000 + rndm.Intn(9000))
	}
	return strings.Join(parts, "-")
}

// SessionCookies are the cookies a returning visitor of the retailer would already carry.
// They are generated fresh for every fetch so sessions are never shared between fetches.
func SessionCookies(r Retailer, rndm *rand.Rand, now time.Time) []*http.Cookie {
	domain := registry[r].cookieDomain
	cookie := func(name, value string) *http.Cookie {
		return &http.Cookie{Name: name, Value: value, Domain: domain, Path: "/"}
	}

	switch r {
	case Amazon:
		return []*http.Cookie{
			cookie("session-id", fmt.Sprintf("%d-%s", 100+rndm.Intn(900), randomDigits(rndm, 4))),
			cookie("session-id-time", strconv.FormatInt(now.Unix(), 10)),
			cookie("ubid-main", fmt.Sprintf("%d-%s", 100+rndm.Intn(900), randomDigits(rndm, 3))),
			cookie("lc-main", "en_IN"),
		}
	case Flipkart:
		return []*http.Cookie{
			cookie("fk_affiliate", ""),
			cookie("AMCVS_17EB401053DAF4840A490D4C%40AdobeOrg", "1"),
			cookie(
				"AMCV_17EB401053DAF4840A490D4C%40AdobeOrg",
				"179643557%7CMCIDTS%7C19917%7CMCMID%7C1234567890%7CMCAAMLH-1234567890%7C9%7CMCAAMB-1234567890%7C6G1ynYcLPuiQxYZrsz_pkqfLG9yMXBpb2zX5dvJdYQJzPXImdj0y%7CMCOPTOUT-1234567890s%7CNONE%7CMCAID%7CNONE",
			),
		}
	}
	return nil
}
