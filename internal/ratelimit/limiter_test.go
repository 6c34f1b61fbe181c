package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	t.Run("EnforcesBurstPerClient", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60, Burst: 2})
		fixed := time.Now()
		l.now = func() time.Time { return fixed }

		if !l.Allow("a") || !l.Allow("a") {
			t.Fatal("First two requests should be allowed")
		}
		if l.Allow("a") {
			t.Error("Third request should be rejected")
		}
		if !l.Allow("b") {
			t.Error("Other clients have their own bucket")
		}

		// one token per second at 60/min
		fixed = fixed.Add(time.Second)
		if !l.Allow("a") {
			t.Error("Request after refill should be allowed")
		}
	})

	t.Run("DisabledAllowsEverything", func(t *testing.T) {
		l := New(Config{Enabled: false, RequestsPerMin: 1, Burst: 1})
		for i := 0; i < 10; i++ {
			if !l.Allow("a") {
				t.Fatal("Disabled limiter rejected a request")
			}
		}
		if l.Clients() != 0 {
			t.Error("Disabled limiter should not track clients")
		}
	})

	t.Run("UpdateResetsBuckets", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60, Burst: 1})
		l.Allow("a")
		if l.Allow("a") {
			t.Fatal("Expected rejection before update")
		}

		l.Update(Config{Enabled: true, RequestsPerMin: 600, Burst: 5})
		if !l.Allow("a") {
			t.Error("Expected new bucket after update")
		}
	})

	t.Run("CleanupIdle", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60})
		start := time.Now()
		l.now = func() time.Time { return start }
		l.Allow("old")

		l.now = func() time.Time { return start.Add(10 * time.Minute) }
		l.Allow("new")
		l.CleanupIdle(5 * time.Minute)

		if l.Clients() != 1 {
			t.Errorf("Expected 1 client after cleanup, got %d", l.Clients())
		}
	})
}

func TestClientIP(t *testing.T) {
	request := func(remote, forwarded string) *http.Request {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = remote
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		return r
	}

	t.Run("IgnoresForwardedForWithoutTrustedProxies", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60})
		if got := l.ClientIP(request("10.0.0.1:5555", "203.0.113.7")); got != "10.0.0.1" {
			t.Errorf("Expected peer address, got %s", got)
		}
	})

	t.Run("FollowsForwardedForBehindTrustedProxy", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60, TrustedProxies: []string{"10.0.0.0/8"}})
		if got := l.ClientIP(request("10.0.0.1:5555", "203.0.113.7, 10.0.0.2")); got != "203.0.113.7" {
			t.Errorf("Expected forwarded client, got %s", got)
		}
	})

	t.Run("SpoofedLeftmostHopIsNotTrusted", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60, TrustedProxies: []string{"10.0.0.1"}})
		// the proxy appends the real peer; anything left of it came from the client
		if got := l.ClientIP(request("10.0.0.1:5555", "198.51.100.1, 203.0.113.7")); got != "203.0.113.7" {
			t.Errorf("Expected the hop added by the proxy, got %s", got)
		}
	})

	t.Run("UntrustedPeerCannotRotateBuckets", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60, Burst: 1, TrustedProxies: []string{"10.0.0.0/8"}})
		if !l.Allow(l.ClientIP(request("192.0.2.9:1000", "203.0.113.1"))) {
			t.Fatal("Expected first request to pass")
		}
		if l.Allow(l.ClientIP(request("192.0.2.9:1000", "203.0.113.2"))) {
			t.Error("Changing X-Forwarded-For must not yield a fresh bucket")
		}
	})

	t.Run("UpdateReplacesTrustedProxies", func(t *testing.T) {
		l := New(Config{Enabled: true, RequestsPerMin: 60, TrustedProxies: []string{"10.0.0.1"}})
		l.Update(Config{Enabled: true, RequestsPerMin: 60})
		if got := l.ClientIP(request("10.0.0.1:5555", "203.0.113.7")); got != "10.0.0.1" {
			t.Errorf("Expected peer address after update, got %s", got)
		}
	})

	t.Run("RemoteIPWithoutPort", func(t *testing.T) {
		if got := RemoteIP(request("[::1]", "")); got != "::1" {
			t.Errorf("Expected ::1, got %s", got)
		}
	})
}
