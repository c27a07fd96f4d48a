package stream

import (
	"errors"
	"sync"
)

// defaultMaxTotal caps concurrent streams across all clients.
const defaultMaxTotal = 1000

var (
	errClientLimit = errors.New("too many concurrent streams from this client")
	errServerFull  = errors.New("stream capacity reached")
)

// streamLimiter counts open streams per client address and in total.
type streamLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: defaultMaxTotal,
	}
}

// lease is one admitted stream.
type lease struct {
	limiter *streamLimiter
	ip      string
	once    sync.Once
}

// Release returns the slot. Calls after the first are no-ops.
func (s *lease) Release() {
	s.once.Do(func() { s.limiter.drop(s.ip) })
}

// admit opens a stream for ip, or reports which cap refused it.
func (l *streamLimiter) admit(ip string) (*lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return nil, errServerFull
	case l.open[ip] >= l.maxPerIP:
		return nil, errClientLimit
	}
	l.open[ip]++
	l.total++
	return &lease{limiter: l, ip: ip}, nil
}

func (l *streamLimiter) drop(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.open[ip]
	if n <= 0 {
		return
	}
	l.total--
	if n == 1 {
		delete(l.open, ip)
		return
	}
	l.open[ip] = n - 1
}

// count returns the open streams of ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}

// active returns the open streams across all clients.
func (l *streamLimiter) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
