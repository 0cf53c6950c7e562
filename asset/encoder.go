// Package asset opaquely encodes upstream image/video URLs into proxy paths
// so the image-proxy collaborator can later resolve and stream the
// original bytes without leaking the upstream URL to the client.
package asset

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Encode opaquely encodes a raw asset URL r into a proxy path segment.
//
// Absolute URLs become "u_<base64url(url)>"; anything else is treated as a
// path and becomes "p_<base64url(path)>", with a leading slash added if
// missing. Encoding is total (every input produces an output) and
// deterministic, with padding stripped so the result is URL-safe without
// escaping.
func Encode(r string) string {
	if isAbsoluteURL(r) {
		return "u_" + b64(r)
	}

	path := r
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return "p_" + b64(path)
}

func b64(s string) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(s)), "=")
}

func isAbsoluteURL(r string) bool {
	u, err := url.Parse(r)
	if err != nil {
		return false
	}

	return u.IsAbs() && u.Host != ""
}

// NormalizeList filters a raw, untyped list of candidate asset URLs down to
// the ones worth encoding: strings only, non-empty after trimming, not a
// bare "/", and not an absolute URL whose path is "/" with no query or
// fragment (i.e. a site root, never a real asset).
func NormalizeList(raw []any) []string {
	candidates := lo.FilterMap(raw, func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		if !ok {
			return "", false
		}

		s = strings.TrimSpace(s)
		if s == "" || s == "/" {
			return "", false
		}

		return s, true
	})

	return lo.Filter(candidates, func(s string, _ int) bool {
		return !isSiteRoot(s)
	})
}

func isSiteRoot(s string) bool {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}

	return u.Path == "/" && u.RawQuery == "" && u.Fragment == ""
}

// ProxyURL joins baseURL with the "/images/<encoded>" path the image
// proxy serves. baseURL falls back to origin when
// empty.
func ProxyURL(baseURL, origin, rawAssetURL string) string {
	base := baseURL
	if base == "" {
		base = origin
	}

	base = strings.TrimRight(base, "/")

	return base + "/images/" + Encode(rawAssetURL)
}
