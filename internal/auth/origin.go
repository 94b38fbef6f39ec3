package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// sameOrigin reports whether a state-changing request came from a page
// on this host. Browsers send Sec-Fetch-Site; older ones send Origin on
// POST. A request with neither header did not come from a browser form
// and is allowed.
func sameOrigin(r *http.Request) bool {
	if site := r.Header.Get("Sec-Fetch-Site"); site != "" {
		return site == "same-origin"
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	return strings.EqualFold(u.Host, r.Host)
}
