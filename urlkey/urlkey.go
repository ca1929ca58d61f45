// Package urlkey produces canonical URL strings used as cache, checkpoint,
// and dedup keys across the service.
package urlkey

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize canonicalizes a URL for use as a map key:
// lowercase host, default ports stripped, fragment removed, empty path
// replaced with "/", and query parameters sorted lexicographically by key
// (duplicate keys keep their original relative order).
//
// Malformed input falls back to the trimmed original string.
// Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	return u.String()
}

// sortQuery re-encodes a raw query with keys in lexicographic order.
// Values under the same key keep their original occurrence order.
func sortQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
