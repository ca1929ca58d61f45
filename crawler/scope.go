package crawler

import (
	"net/url"
	"path"
	"strings"
)

// InScope reports whether a discovered link may be followed under the
// crawl scope: "page" follows nothing, "domain" stays on the exact host,
// "subdomain" stays on the same base domain.
func InScope(linkURL string, base *url.URL, scope string) bool {
	parsed, err := url.Parse(linkURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	switch scope {
	case "page":
		return false
	case "domain":
		return strings.EqualFold(parsed.Host, base.Host)
	case "subdomain":
		return strings.EqualFold(baseDomain(parsed.Host), baseDomain(base.Host))
	default:
		return strings.EqualFold(parsed.Host, base.Host)
	}
}

// baseDomain reduces a host to its registrable-ish tail:
// "docs.example.com" -> "example.com". Ports are stripped first.
func baseDomain(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// Excluded reports whether a URL matches any of the exclude glob patterns.
// Patterns match against the URL path and against the full URL, so both
// "/admin/*" and "*.pdf" styles work.
func Excluded(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, parsed.Path); matched {
			return true
		}
		// Bare-filename patterns like "*.pdf" match the last path segment.
		if matched, _ := path.Match(pattern, path.Base(parsed.Path)); matched {
			return true
		}
	}
	return false
}
