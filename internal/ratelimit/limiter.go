package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config contains per-client rate limiting settings
type Config struct {
	Enabled        bool
	RequestsPerMin int
	Burst          int
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For
	// header is honoured. Empty means the header is ignored.
	TrustedProxies []string
}

// Limiter implements per-client token bucket rate limiting
type Limiter struct {
	config  Config
	trusted []*net.IPNet
	clients map[string]*client
	mu      sync.Mutex
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a new rate limiter
func New(config Config) *Limiter {
	return &Limiter{
		config:  config,
		trusted: ParseTrustedProxies(config.TrustedProxies),
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow reports whether a request from clientID may proceed
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.config.Enabled {
		return true
	}

	now := l.now()
	c, exists := l.clients[clientID]
	if !exists {
		c = &client{limiter: rate.NewLimiter(l.limit(), l.burst())}
		l.clients[clientID] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// Update swaps the limits. Existing buckets are dropped so every client
// starts again under the new limits.
func (l *Limiter) Update(config Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.config = config
	l.trusted = ParseTrustedProxies(config.TrustedProxies)
	l.clients = make(map[string]*client)
}

// Clients returns the number of tracked clients
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// CleanupIdle removes clients not seen for longer than maxIdle
func (l *Limiter) CleanupIdle(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	for id, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, id)
		}
	}
}

// StartCleanupRoutine removes idle clients every interval until ctx is done
func (l *Limiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.CleanupIdle(3 * interval)
			}
		}
	}()
}

func (l *Limiter) limit() rate.Limit {
	return rate.Limit(float64(l.config.RequestsPerMin) / 60.0)
}

func (l *Limiter) burst() int {
	if l.config.Burst > 0 {
		return l.config.Burst
	}
	return l.config.RequestsPerMin
}

// ClientIP returns the address a request is rate limited under. The
// X-Forwarded-For chain is only followed while each hop, starting at the
// direct peer, is a trusted proxy; the first untrusted hop is the client.
func (l *Limiter) ClientIP(r *http.Request) string {
	ip := RemoteIP(r)

	l.mu.Lock()
	trusted := l.trusted
	l.mu.Unlock()

	if len(trusted) == 0 || !isTrusted(trusted, ip) {
		return ip
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" || net.ParseIP(hop) == nil {
			break
		}
		ip = hop
		if !isTrusted(trusted, hop) {
			break
		}
	}
	return ip
}

// RemoteIP returns the address of the direct peer
func RemoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return ip
}

// ParseTrustedProxies converts addresses and CIDRs to networks. Entries that
// parse as neither are skipped; config validation reports them.
func ParseTrustedProxies(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

func isTrusted(nets []*net.IPNet, addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
