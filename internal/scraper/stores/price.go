package stores

import (
	"strconv"
	"strings"

	"pricetracker-backend/internal/scraper"
)

// ParsePrice keeps only the digits and decimal points of text and parses the result,
// "₹ 13,999.00" -> 13999. Leading points are dropped so "Rs.499" is 499 and not 0.499.
func ParsePrice(text string) (float64, error) {
	var cleaned strings.Builder
	for _, c := range text {
		if (c >= '0' && c <= '9') || c == '.' {
			cleaned.WriteRune(c)
		}
	}
	digits := strings.TrimLeft(cleaned.String(), ".")
	if digits == "" {
		return 0, scraper.Errorf(scraper.CauseNotFound, "", "could not parse price from %q", text)
	}
	price, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, scraper.Errorf(scraper.CauseNotFound, "", "could not parse price from %q: %w", text, err)
	}
	return price, nil
}
