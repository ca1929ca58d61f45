package engine

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Shell detection thresholds: a page with plenty of markup but almost no
// visible text is a client-rendered app shell worth a browser render.
const (
	shellMinHTML        = 1000
	shellMaxVisibleText = 500
)

// looksLikeShell reports whether the HTML is likely an unrendered SPA
// shell. Non-HTML bodies never are.
func looksLikeShell(body []byte, contentType string) bool {
	if !strings.Contains(strings.ToLower(contentType), "html") {
		return false
	}
	if len(body) <= shellMinHTML {
		return false
	}
	return len(extractVisibleText(body)) < shellMaxVisibleText
}

// ExtractTitle returns the <title> content from raw HTML.
func ExtractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}

// ExtractLinks returns the absolute http(s) links found in anchor tags,
// resolved against base, deduplicated, fragments dropped, in document
// order.
func ExtractLinks(body []byte, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	seen := make(map[string]struct{})
	var links []string

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tn, hasAttr := tokenizer.TagName()
		if string(tn) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "href" {
				if link := resolveLink(baseURL, string(val)); link != "" {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						links = append(links, link)
					}
				}
				break
			}
			if !more {
				break
			}
		}
	}
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// extractVisibleText collects the text inside <body>, skipping script,
// style, and noscript content. Heuristic use only; whitespace is collapsed
// to single spaces.
func extractVisibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "body" {
				inBody = true
			}
			if tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "script" || tag == "style" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
