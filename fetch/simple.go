package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/webpeel/webpeel/dnscache"
	"github.com/webpeel/webpeel/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps response bodies at 10 MB.
const maxBody = 10 << 20

// SimpleFetcher is the cheapest strategy: a direct request with a Chrome
// TLS fingerprint over a transport bound to the DNS cache. ALPN is locked
// to http/1.1 so the server never negotiates HTTP/2, which Go's transport
// cannot frame over a utls connection.
type SimpleFetcher struct {
	client *http.Client
	dns    *dnscache.Cache
}

// chromeH1Spec is a Chrome-like ClientHello with ALPN forced to http/1.1.
// Computed once and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewSimpleFetcher creates a SimpleFetcher whose dials resolve through the
// shared DNS cache.
func NewSimpleFetcher(dns *dnscache.Cache) *SimpleFetcher {
	f := &SimpleFetcher{dns: dns}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if dns != nil {
				return dns.DialContext(ctx, network, addr)
			}
			return (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, network, addr)
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return f.dialTLSChrome(ctx, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	f.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	return f
}

func (f *SimpleFetcher) Name() string { return MethodSimple }

// Fetch performs one plain HTTP attempt. Callers that want the retry ladder
// should go through FetchWithRetry.
func (f *SimpleFetcher) Fetch(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, models.NewPeelError(models.KindInvalidURL, "cannot build request for URL", err)
	}

	// Browser-like headers; caller headers override.
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")
	if opts != nil {
		if opts.UserAgent != "" {
			req.Header.Set("User-Agent", opts.UserAgent)
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
		for _, c := range opts.Cookies {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain})
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyErr(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classifyErr(err, "read body failed")
	}

	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, body, contentType)
	}
	if looksBlocked(resp.StatusCode, body, contentType) {
		return nil, models.NewPeelError(models.KindBlocked, "empty HTML body, likely a block page", nil)
	}

	return &Result{
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: detectContentType(contentType, body),
		Headers:     resp.Header.Clone(),
		Duration:    time.Since(start),
		Method:      MethodSimple,
	}, nil
}

// FetchWithRetry wraps Fetch in the retry ladder: up to 3 attempts with
// exponential backoff, retrying network failures only.
func (f *SimpleFetcher) FetchWithRetry(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	return WithRetry(ctx, 3, func() (*Result, error) {
		return f.Fetch(ctx, rawURL, opts)
	})
}

// dialTLSChrome establishes a TLS connection with the Chrome fingerprint,
// dialing the raw TCP connection through the DNS cache when available.
func (f *SimpleFetcher) dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	var rawConn net.Conn
	var err error

	if f.dns != nil {
		rawConn, err = f.dns.DialContext(ctx, network, addr)
	} else {
		rawConn, err = (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, network, addr)
	}
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(rawConn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// detectContentType prefers the declared header and sniffs when absent.
func detectContentType(declared string, body []byte) string {
	if declared != "" {
		if i := strings.IndexByte(declared, ';'); i > 0 {
			return strings.TrimSpace(declared[:i])
		}
		return declared
	}
	return http.DetectContentType(body)
}
