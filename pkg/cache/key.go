package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// KeyFunc derives the cache key for a request.
// Implementations must be pure: the same request always yields the same key.
type KeyFunc func(req *http.Request) string

// DeriveKey maps a URL string to a stable cache key.
// The key is the lowercase hex MD5 digest of the exact string; no URL
// normalization is applied.
//
// Example:
//
//	DeriveKey("https://ex.test/a.png") // 32 hex characters
func DeriveKey(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// URLKey is the default key policy. It hashes req.URL.String(), the canonical
// form of the parsed URL, so "https://ex.test/a b.png" and
// "https://ex.test/a%20b.png" share a key. Only the URL contributes, so two
// requests that differ only in method or headers share an entry.
func URLKey(req *http.Request) string {
	return DeriveKey(req.URL.String())
}

// MethodURLKey keys on method and URL.
func MethodURLKey(req *http.Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return DeriveKey(method + " " + req.URL.String())
}

// HeaderKey returns a key policy that includes the named request headers in
// addition to the URL. Header names are canonicalized and sorted so the
// order of names does not matter.
func HeaderKey(names ...string) KeyFunc {
	canonical := make([]string, 0, len(names))
	for _, name := range names {
		canonical = append(canonical, textproto.CanonicalMIMEHeaderKey(name))
	}
	sort.Strings(canonical)

	return func(req *http.Request) string {
		parts := []string{req.URL.String()}
		for _, name := range canonical {
			parts = append(parts, name+"="+strings.Join(req.Header.Values(name), ","))
		}
		return DeriveKey(strings.Join(parts, "\n"))
	}
}
