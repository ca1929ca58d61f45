package urlkey

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical form", "HTTPS://Example.COM:443/a/?b=2&a=1#x", "https://example.com/a/?a=1&b=2"},
		{"default http port", "http://example.com:80/page", "http://example.com/page"},
		{"non-default port kept", "http://example.com:8080/page", "http://example.com:8080/page"},
		{"empty path", "https://example.com", "https://example.com/"},
		{"fragment dropped", "https://example.com/a#section", "https://example.com/a"},
		{"uppercase host", "https://WWW.Example.com/A/B", "https://www.example.com/A/B"},
		{"whitespace trimmed", "  https://example.com/x  ", "https://example.com/x"},
		{"duplicate keys keep order", "https://example.com/?b=2&a=x&a=y", "https://example.com/?a=x&a=y&b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM:443/a/?b=2&a=1#x",
		"http://example.com:80",
		"https://example.com/path?z=1&y=2&y=3",
		"not a url at all",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalize_MalformedFallsBack(t *testing.T) {
	got := Normalize("  ://bad url  ")
	if got != "://bad url" {
		t.Errorf("malformed URL should fall back to trimmed input, got %q", got)
	}
}

func TestNormalize_EquivalentURLsShareKey(t *testing.T) {
	a := Normalize("https://Example.com:443/p?x=1&a=2")
	b := Normalize("https://example.com/p?a=2&x=1#frag")
	if a != b {
		t.Errorf("semantically equal URLs got different keys: %q vs %q", a, b)
	}
}
