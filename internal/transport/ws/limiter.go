package ws

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// connLimiter caps concurrent websocket connections per client IP. Counts are
// kept in process: a connection lives on the node that accepted it, so a
// shared counter would overcount.
type connLimiter struct {
	max int

	mu    sync.Mutex
	perIP map[string]int
}

func newConnLimiter(max int) *connLimiter {
	return &connLimiter{max: max, perIP: make(map[string]int)}
}

// acquire reserves a connection slot for ip, returning false if the IP is at
// its limit.
func (l *connLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] >= l.max {
		return false
	}
	l.perIP[ip]++
	return true
}

// release frees a slot taken by acquire.
func (l *connLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.perIP[ip]--
	if l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// realIP extracts the client IP from proxy headers or the connection.
func realIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
