package auth

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// rateLimitPruneThreshold is the number of tracked IPs above which
	// the limiter prunes expired entries to prevent unbounded growth.
	rateLimitPruneThreshold = 1000
)

// rateLimiter counts attempts per IP in a sliding window. After max
// attempts within the window, further attempts are rejected until the
// oldest ones age out.
type rateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	max    int
	now    func() time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		hits:   make(map[string][]time.Time),
		window: window,
		max:    max,
		now:    time.Now,
	}
}

// limited returns true if the IP is currently rate-limited.
func (rl *rateLimiter) limited(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)

	if len(rl.hits) > rateLimitPruneThreshold {
		for k, times := range rl.hits {
			if len(times) == 0 || times[len(times)-1].Before(cutoff) {
				delete(rl.hits, k)
			}
		}
	}

	recent := rl.hits[ip][:0]
	for _, t := range rl.hits[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) == 0 {
		delete(rl.hits, ip)
	} else {
		rl.hits[ip] = recent
	}

	return len(recent) >= rl.max
}

// record adds an attempt for the IP.
func (rl *rateLimiter) record(ip string) {
	rl.mu.Lock()
	rl.hits[ip] = append(rl.hits[ip], rl.now())
	rl.mu.Unlock()
}

// remoteIP extracts the IP address from r.RemoteAddr, stripping the
// port. Falls back to the raw value if parsing fails.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
