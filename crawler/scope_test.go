package crawler

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestInScope(t *testing.T) {
	base := mustParse(t, "https://docs.example.com/start")

	tests := []struct {
		name  string
		link  string
		scope string
		want  bool
	}{
		{"same host, domain scope", "https://docs.example.com/page", "domain", true},
		{"sibling subdomain, domain scope", "https://www.example.com/page", "domain", false},
		{"sibling subdomain, subdomain scope", "https://www.example.com/page", "subdomain", true},
		{"apex host, subdomain scope", "https://example.com/page", "subdomain", true},
		{"other site, subdomain scope", "https://example.org/page", "subdomain", false},
		{"page scope follows nothing", "https://docs.example.com/page", "page", false},
		{"mailto rejected", "mailto:team@example.com", "subdomain", false},
		{"case-insensitive host", "https://DOCS.EXAMPLE.COM/page", "domain", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InScope(tt.link, base, tt.scope); got != tt.want {
				t.Errorf("InScope(%q, %q) = %v, want %v", tt.link, tt.scope, got, tt.want)
			}
		})
	}
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"docs.example.com", "example.com"},
		{"example.com", "example.com"},
		{"a.b.example.com", "example.com"},
		{"example.com:8080", "example.com"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		if got := baseDomain(tt.host); got != tt.want {
			t.Errorf("baseDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestExcluded(t *testing.T) {
	patterns := []string{"/admin/*", "*.pdf"}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/admin/users", true},
		{"https://example.com/docs/manual.pdf", true},
		{"https://example.com/blog/post", false},
		{"https://example.com/administrator", false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.url, patterns); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}

	if Excluded("https://example.com/admin/users", nil) {
		t.Error("no patterns means nothing is excluded")
	}
}
