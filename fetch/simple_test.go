package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webpeel/webpeel/models"
)

// newTestSimpleFetcher returns a SimpleFetcher rewired to speak plain HTTP
// against an httptest server (no utls, no DNS cache).
func newTestSimpleFetcher() *SimpleFetcher {
	return &SimpleFetcher{client: &http.Client{}}
}

func TestSimpleFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != chromeUA {
			t.Errorf("User-Agent = %q, want chrome default", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := newTestSimpleFetcher()
	res, err := f.Fetch(context.Background(), srv.URL, &Options{})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", res.StatusCode)
	}
	if res.ContentType != "text/html" {
		t.Errorf("ContentType = %q, want text/html (params stripped)", res.ContentType)
	}
	if res.Method != MethodSimple {
		t.Errorf("Method = %q, want %q", res.Method, MethodSimple)
	}
	if string(res.Body) != "<html><body>hello</body></html>" {
		t.Errorf("unexpected body: %q", res.Body)
	}
}

func TestSimpleFetchHeaderAndCookieOverrides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "custom-agent" {
			t.Errorf("User-Agent = %q, want custom-agent", ua)
		}
		if got := r.Header.Get("X-Custom"); got != "yes" {
			t.Errorf("X-Custom = %q, want yes", got)
		}
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			t.Errorf("session cookie = %v, %v", c, err)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestSimpleFetcher()
	opts := &Options{
		UserAgent: "custom-agent",
		Headers:   map[string]string{"X-Custom": "yes"},
		Cookies:   []models.Cookie{{Name: "session", Value: "abc"}},
	}
	if _, err := f.Fetch(context.Background(), srv.URL, opts); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
}

func TestSimpleFetchBlockedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		w.Write([]byte("Attention Required! | Cloudflare"))
	}))
	defer srv.Close()

	f := newTestSimpleFetcher()
	_, err := f.Fetch(context.Background(), srv.URL, &Options{})
	if !models.IsKind(err, models.KindBlocked) {
		t.Errorf("kind = %s, want blocked", models.KindOf(err))
	}
}

func TestSimpleFetchEmptyHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		// 200 with nothing in it.
	}))
	defer srv.Close()

	f := newTestSimpleFetcher()
	_, err := f.Fetch(context.Background(), srv.URL, &Options{})
	if !models.IsKind(err, models.KindBlocked) {
		t.Errorf("kind = %s, want blocked for empty HTML body", models.KindOf(err))
	}
}

func TestSimpleFetchFollowsRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, srv.URL+"/final", http.StatusFound)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer srv.Close()

	f := newTestSimpleFetcher()
	res, err := f.Fetch(context.Background(), srv.URL+"/start", &Options{})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if res.FinalURL != srv.URL+"/final" {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, srv.URL+"/final")
	}
}

func TestDetectContentType(t *testing.T) {
	if got := detectContentType("application/json; charset=utf-8", nil); got != "application/json" {
		t.Errorf("got %q, want application/json", got)
	}
	if got := detectContentType("", []byte(`{"a":1}`)); got == "" {
		t.Error("expected sniffed content type for undeclared body")
	}
}
