package checkout

import (
	"net/url"
	"strings"
)

// Return carries what the provider redirect hands back when a card charge
// finishes inside the web view.
type Return struct {
	Status    string // raw "status" query param, may be empty
	Reference string // raw "reference" query param, may be empty
}

// returnPath and closeParam are the provider's completion conventions. They
// are matched byte-for-byte; changing either breaks compatibility with the
// hosted payment pages.
const (
	returnPath = "/deposits/return"
	closeParam = "action=close_webview"
)

// ParseReturn inspects a navigated URL and reports whether it marks webview
// completion: either the path contains /deposits/return or the query carries
// action=close_webview. The web view observer feeds every navigation through
// this and tears the view down on the first match.
func ParseReturn(rawURL string) (Return, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Return{}, false
	}

	q := u.Query()
	completed := strings.Contains(u.Path, returnPath) || q.Get("action") == "close_webview"
	if !completed {
		// Some providers mangle the query; fall back to a raw substring match
		// so an encoded action=close_webview still counts.
		completed = strings.Contains(rawURL, closeParam)
	}
	if !completed {
		return Return{}, false
	}

	return Return{
		Status:    q.Get("status"),
		Reference: q.Get("reference"),
	}, true
}
