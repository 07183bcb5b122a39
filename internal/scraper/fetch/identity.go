package fetch

import (
	"math/rand"
	"net/url"
	"strings"
	"sync"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.9,hi;q=0.8",
	"en-GB,en;q=0.9",
}

// an empty referer means the header is not sent at all, like a typed-in url.
var referers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"",
}

// the headers chrome 131 on windows sends for a top level navigation.
// accept-encoding is left out on purpose, setting it by hand turns off transparent
// gzip decoding in net/http.
var browserHeaders = map[string]string{
	"Accept":                        "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"DNT":                           "1",
	"Upgrade-Insecure-Requests":     "1",
	"Cache-Control":                 "max-age=0",
	"Sec-Fetch-Dest":                "document",
	"Sec-Fetch-Mode":                "navigate",
	"Sec-Fetch-Site":                "none",
	"Sec-Fetch-User":                "?1",
	"Sec-CH-UA":                     `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
	"Sec-CH-UA-Mobile":              "?0",
	"Sec-CH-UA-Platform":            `"Windows"`,
	"Sec-CH-UA-Platform-Version":    `"15.0.0"`,
	"Sec-CH-UA-Arch":                `"x86"`,
	"Sec-CH-UA-Bitness":             `"64"`,
	"Sec-CH-UA-Full-Version":        `"131.0.6778.86"`,
	"Sec-CH-UA-Full-Version-List":   `"Google Chrome";v="131.0.6778.86", "Chromium";v="131.0.6778.86", "Not_A Brand";v="24.0.0.0"`,
	"Sec-CH-UA-Model":               `""`,
	"Sec-CH-Viewport-Width":         "1920",
	"Sec-CH-Viewport-Height":        "1080",
	"Sec-CH-Device-Memory":          "8",
	"Sec-CH-DPR":                    "1",
	"Sec-CH-Prefers-Color-Scheme":   "light",
	"Sec-CH-Prefers-Reduced-Motion": "no-preference",
}

// lockedRand lets concurrent fetches (discovery fans out) share one seedable source.
type lockedRand struct {
	mutex sync.Mutex
	rndm  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.rndm.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.rndm.Intn(n)
}

// Uniform returns a float64 in [min, max).
func (l *lockedRand) Uniform(min, max float64) float64 {
	return min + (max-min)*l.Float64()
}

// isSearchURL reports whether the url points at a search results page, those are
// always reached from a search engine in real traffic.
func isSearchURL(target *url.URL) bool {
	if strings.Contains(strings.ToLower(target.Path), "search") {
		return true
	}
	query := target.Query()
	return query.Has("q") || query.Has("k")
}

// identity returns the headers for a single attempt, every attempt picks a new identity.
func identity(rndm *lockedRand, target *url.URL) map[string]string {
	headers := make(map[string]string, len(browserHeaders)+3)
	for k, v := range browserHeaders {
		headers[k] = v
	}
	headers["User-Agent"] = userAgents[rndm.Intn(len(userAgents))]
	headers["Accept-Language"] = acceptLanguages[rndm.Intn(len(acceptLanguages))]

	referer := referers[0]
	if !isSearchURL(target) {
		referer = referers[rndm.Intn(len(referers))]
	}
	if referer != "" {
		headers["Referer"] = referer
	}
	return headers
}
