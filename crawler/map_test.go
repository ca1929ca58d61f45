package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/webpeel/webpeel/models"
)

func TestMapCombinesSitemapRobotsAndHomepage(t *testing.T) {
	var origin string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/from-sitemap</loc></url>
</urlset>`, origin)
		case "/robots.txt":
			fmt.Fprintf(w, "User-agent: *\nSitemap: %s/extra-sitemap.xml\n", origin)
		case "/extra-sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/from-robots-sitemap</loc></url>
</urlset>`, origin)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	origin = ts.URL

	home := origin + "/"
	site := map[string]string{
		home: page("home", origin+"/from-homepage", "https://other.org/away"),
	}
	c, _, _, _ := newTestCrawler(t, site)

	resp, err := c.Map(context.Background(), &models.MapRequest{URL: home})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("Success = false")
	}

	want := []string{"/from-sitemap", "/from-robots-sitemap", "/from-homepage"}
	for _, suffix := range want {
		found := false
		for _, u := range resp.URLs {
			if strings.HasSuffix(u, suffix) {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %s in %v", suffix, resp.URLs)
		}
	}
	for _, u := range resp.URLs {
		if strings.Contains(u, "other.org") {
			t.Errorf("off-domain homepage link leaked into map: %s", u)
		}
	}
	if resp.Total != len(resp.URLs) {
		t.Errorf("Total = %d, len(URLs) = %d", resp.Total, len(resp.URLs))
	}
}

func TestMapSitemapIndexRecursion(t *testing.T) {
	var origin string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`, origin)
		case "/sitemap-pages.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/nested-page</loc></url>
</urlset>`, origin)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	origin = ts.URL

	c, _, _, _ := newTestCrawler(t, map[string]string{})

	resp, err := c.Map(context.Background(), &models.MapRequest{URL: origin + "/"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, u := range resp.URLs {
		if strings.HasSuffix(u, "/nested-page") {
			found = true
		}
	}
	if !found {
		t.Errorf("sitemap index was not followed: %v", resp.URLs)
	}
}

func TestMapHonorsLimit(t *testing.T) {
	var origin string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		for i := 0; i < 20; i++ {
			fmt.Fprintf(w, "<url><loc>%s/p%d</loc></url>", origin, i)
		}
		fmt.Fprint(w, `</urlset>`)
	}))
	defer ts.Close()
	origin = ts.URL

	c, _, _, _ := newTestCrawler(t, map[string]string{})

	resp, err := c.Map(context.Background(), &models.MapRequest{URL: origin + "/", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.URLs) != 5 {
		t.Errorf("len(URLs) = %d, want 5", len(resp.URLs))
	}
}

func TestMapRejectsUnparsableURL(t *testing.T) {
	c, _, _, _ := newTestCrawler(t, nil)

	if _, err := c.Map(context.Background(), &models.MapRequest{URL: "://no-scheme"}); err == nil {
		t.Fatal("want error for unparsable URL")
	}
}
