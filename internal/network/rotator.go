package network

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrNoProxies = errors.New("no proxies available")

// MaxBan caps how long a provider's Retry-After can bench a proxy.
const MaxBan = 24 * time.Hour

// StatusTransportError is reported when a request through a proxy failed
// before any response arrived.
const StatusTransportError = 0

// Rotator hands out proxies round-robin, separately for each provider
// host. A proxy that a host throttles, or that fails at the gateway or
// transport level, is benched for that host only.
type Rotator struct {
	proxies     []*url.URL
	banDuration time.Duration
	bannedUntil map[banKey]time.Time
	cursor      map[string]int
	now         func() time.Time
	mu          sync.Mutex
}

type banKey struct {
	proxy string
	host  string
}

// NewRotator parses the proxy URLs. banDuration applies when the provider
// sends no usable Retry-After.
func NewRotator(raw []string, banDuration time.Duration) (*Rotator, error) {
	rotator := &Rotator{
		banDuration: banDuration,
		bannedUntil: map[banKey]time.Time{},
		cursor:      map[string]int{},
		now:         time.Now,
	}

	for _, proxy := range raw {
		u, err := url.Parse(strings.TrimSpace(proxy))
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("invalid proxy url: " + proxy)
		}
		rotator.proxies = append(rotator.proxies, u)
	}

	return rotator, nil
}

func (r *Rotator) Len() int {
	return len(r.proxies)
}

// Next returns the next proxy not benched for host.
func (r *Rotator) Next(host string) (*url.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.proxies) == 0 {
		return nil, ErrNoProxies
	}

	start := r.cursor[host] % len(r.proxies)
	for i := 0; i < len(r.proxies); i++ {
		idx := (start + i) % len(r.proxies)
		proxy := r.proxies[idx]
		if !r.isBanned(proxy, host) {
			r.cursor[host] = idx + 1
			return proxy, nil
		}
	}
	return nil, ErrNoProxies
}

// Report records the outcome of a request sent to host through proxy.
// 429 and 502-504 responses, 407 and transport failures bench the proxy
// for host. A 403 from a keyed API is a credential problem and is ignored.
func (r *Rotator) Report(proxy *url.URL, host string, status int, retryAfter string) {
	if proxy == nil || !benches(status) {
		return
	}

	ban := r.banDuration
	if status == 429 || status == 503 {
		if d, ok := ParseRetryAfter(retryAfter); ok && d > 0 {
			ban = min(d, MaxBan)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannedUntil[banKey{proxy: proxy.String(), host: host}] = r.now().Add(ban)
}

// BannedUntil reports when proxy becomes usable for host again.
func (r *Rotator) BannedUntil(proxy *url.URL, host string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isBanned(proxy, host) {
		return time.Time{}, false
	}
	return r.bannedUntil[banKey{proxy: proxy.String(), host: host}], true
}

func benches(status int) bool {
	switch status {
	case StatusTransportError, 407, 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

func (r *Rotator) isBanned(proxy *url.URL, host string) bool {
	key := banKey{proxy: proxy.String(), host: host}
	until, ok := r.bannedUntil[key]
	if !ok {
		return false
	}
	if !r.now().Before(until) {
		delete(r.bannedUntil, key)
		return false
	}
	return true
}

// maxRetryAfterSeconds is the largest value that fits a time.Duration.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// ParseRetryAfter accepts only a non-negative integer number of seconds
// that fits a time.Duration.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds > maxRetryAfterSeconds {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
