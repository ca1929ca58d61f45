// Package dnscache keeps a warmed host→IPv4 table shared with the HTTP
// transports, so repeated fetches skip resolver round-trips.
package dnscache

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// entryTTL is how long a resolved address set stays valid.
const entryTTL = 30 * time.Minute

// Addr is one resolved address with its IP family tag.
type Addr struct {
	Address string
	Family  int // 4 or 6
}

// entry holds the resolved IPv4 set for one host plus the round-robin cursor.
type entry struct {
	ips       []string
	expiresAt time.Time
	cursor    atomic.Uint64
}

// Cache is an in-memory DNS cache. It stores IPv4 addresses only; IPv6
// lookups always bypass it. It is safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	store    map[string]*entry
	resolver *net.Resolver
	warmOnce sync.Once
}

// New creates an empty Cache backed by the system resolver.
func New() *Cache {
	return &Cache{
		store:    make(map[string]*entry),
		resolver: net.DefaultResolver,
	}
}

// GetCached returns the cached IPv4 set for a host. Expired entries are
// pruned on access.
func (c *Cache) GetCached(host string) ([]string, bool) {
	c.mu.RLock()
	e, ok := c.store[host]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry.
		if cur, still := c.store[host]; still && cur == e {
			delete(c.store, host)
		}
		c.mu.Unlock()
		return nil, false
	}

	ips := make([]string, len(e.ips))
	copy(ips, e.ips)
	return ips, true
}

// ResolveAndCache resolves a host and stores its IPv4 addresses.
// Hosts with no IPv4 address are not cached.
func (c *Cache) ResolveAndCache(ctx context.Context, host string) ([]string, error) {
	addrs, err := c.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}

	ips := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			ips = append(ips, v4.String())
		}
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IPv4 addresses", Name: host}
	}

	c.mu.Lock()
	c.store[host] = &entry{ips: ips, expiresAt: time.Now().Add(entryTTL)}
	c.mu.Unlock()

	return ips, nil
}

// Pick returns one cached IPv4 address for a host, rotating round-robin
// across the address set on every call.
func (c *Cache) Pick(host string) (string, bool) {
	c.mu.RLock()
	e, ok := c.store[host]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	n := e.cursor.Add(1) - 1
	return e.ips[n%uint64(len(e.ips))], true
}

// Lookup is the resolver hook used by transports. Literal IPs return
// immediately with the correct family and never touch the resolver.
// Hostnames are served from the cache when possible (round-robin), resolved
// and cached on miss, and fall back to the system resolver on resolve error.
func (c *Cache) Lookup(ctx context.Context, host string) (Addr, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() != nil {
			return Addr{Address: host, Family: 4}, nil
		}
		return Addr{Address: host, Family: 6}, nil
	}

	if picked, ok := c.Pick(host); ok {
		return Addr{Address: picked, Family: 4}, nil
	}

	if _, err := c.ResolveAndCache(ctx, host); err == nil {
		if picked, ok := c.Pick(host); ok {
			return Addr{Address: picked, Family: 4}, nil
		}
	}

	// System fallback, any family.
	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return Addr{}, err
	}
	family := 6
	if ip := net.ParseIP(addrs[0]); ip != nil && ip.To4() != nil {
		family = 4
	}
	return Addr{Address: addrs[0], Family: family}, nil
}

// LookupAll returns the full address list with family tags (the all=true
// variant of the hook). Cached hosts return the whole IPv4 set.
func (c *Cache) LookupAll(ctx context.Context, host string) ([]Addr, error) {
	if ip := net.ParseIP(host); ip != nil {
		family := 6
		if ip.To4() != nil {
			family = 4
		}
		return []Addr{{Address: host, Family: family}}, nil
	}

	ips, ok := c.GetCached(host)
	if !ok {
		var err error
		ips, err = c.ResolveAndCache(ctx, host)
		if err != nil {
			addrs, sysErr := c.resolver.LookupHost(ctx, host)
			if sysErr != nil {
				return nil, sysErr
			}
			out := make([]Addr, 0, len(addrs))
			for _, a := range addrs {
				family := 6
				if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
					family = 4
				}
				out = append(out, Addr{Address: a, Family: family})
			}
			return out, nil
		}
	}

	out := make([]Addr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, Addr{Address: ip, Family: 4})
	}
	return out, nil
}

// DialContext is the transport hook. It swaps the hostname in addr for a
// cached IPv4 address before dialing. Misses dial the original address and
// populate the cache in the background for the next request.
func (c *Cache) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	host, port, err := net.SplitHostPort(addr)
	if err != nil || net.ParseIP(host) != nil {
		return dialer.DialContext(ctx, network, addr)
	}

	if ip, ok := c.Pick(host); ok {
		return dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}

	// Populate asynchronously; this dial uses system resolution.
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.ResolveAndCache(bg, host); err != nil {
			slog.Debug("dns cache populate failed", "host", host, "error", err)
		}
	}()

	return dialer.DialContext(ctx, network, addr)
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.store = make(map[string]*entry)
	c.mu.Unlock()
}

// Len returns the number of cached hosts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Warmup pre-resolves the fixed popular-host list. It runs at most once per
// Cache, asynchronously and best-effort: individual failures are ignored.
func (c *Cache) Warmup(ctx context.Context) {
	c.warmOnce.Do(func() {
		go func() {
			start := time.Now()
			var ok int
			for _, host := range warmDomains {
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if _, err := c.ResolveAndCache(hctx, host); err == nil {
					ok++
				}
				cancel()
				if ctx.Err() != nil {
					return
				}
			}
			slog.Info("dns warmup finished",
				"resolved", ok,
				"total", len(warmDomains),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
		}()
	})
}

// warmDomains are popular hosts pre-resolved at startup.
var warmDomains = []string{
	"google.com", "www.google.com", "youtube.com", "www.youtube.com",
	"facebook.com", "www.facebook.com", "instagram.com", "www.instagram.com",
	"twitter.com", "x.com", "wikipedia.org", "en.wikipedia.org",
	"amazon.com", "www.amazon.com", "reddit.com", "www.reddit.com",
	"yahoo.com", "www.yahoo.com", "linkedin.com", "www.linkedin.com",
	"netflix.com", "www.netflix.com", "bing.com", "www.bing.com",
	"github.com", "stackoverflow.com", "medium.com", "nytimes.com",
	"www.nytimes.com", "cnn.com", "www.cnn.com", "bbc.com", "www.bbc.com",
	"theguardian.com", "www.theguardian.com", "bloomberg.com",
	"www.bloomberg.com", "apple.com", "www.apple.com", "microsoft.com",
	"www.microsoft.com", "cloudflare.com", "www.cloudflare.com",
	"shopify.com", "wordpress.com", "ebay.com", "www.ebay.com",
	"walmart.com", "www.walmart.com", "espn.com",
}
