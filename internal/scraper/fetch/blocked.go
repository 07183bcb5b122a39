package fetch

import "strings"

var blockedMarkers = []string{
	"access denied",
	"captcha",
	"robot check",
	"are you a human",
	"request blocked",
}

// LooksBlocked is a best-effort guess of whether a successful response is actually a block
// page, it only feeds telemetry and never changes what Fetch returns.
func LooksBlocked(body string) bool {
	if len(body) < 1000 {
		return true
	}
	lowered := strings.ToLower(body)
	for _, marker := range blockedMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
