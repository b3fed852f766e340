package httpserver

import "sync"

// streamLimiter caps concurrent streams per client IP. A limit of zero or
// less disables it.
type streamLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func newStreamLimiter(maxPer int) *streamLimiter {
	return &streamLimiter{ips: make(map[string]int), maxPer: maxPer}
}

func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxPer > 0 && l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}
