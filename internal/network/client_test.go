package network

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
)

// fakeDialer hands out one fake per proxy and answers with the queued
// statuses in order.
type fakeDialer struct {
	mu       sync.Mutex
	statuses []int
	headers  map[int]string
	dialed   []string
	used     []string
	failWith error
}

type fakeProxyClient struct {
	proxy  string
	dialer *fakeDialer
}

func (f *fakeProxyClient) Do(req *fhttp.Request) (*fhttp.Response, error) {
	d := f.dialer
	d.mu.Lock()
	defer d.mu.Unlock()
	d.used = append(d.used, f.proxy)
	if d.failWith != nil {
		return nil, d.failWith
	}
	status := 200
	if len(d.statuses) > 0 {
		status, d.statuses = d.statuses[0], d.statuses[1:]
	}
	header := fhttp.Header{}
	if v, ok := d.headers[status]; ok {
		header.Set("Retry-After", v)
	}
	return &fhttp.Response{StatusCode: status, Header: header, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func (d *fakeDialer) dial(proxy string, _ time.Duration) (Doer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, proxy)
	return &fakeProxyClient{proxy: proxy, dialer: d}, nil
}

func newTestClient(rotator *Rotator, d *fakeDialer) *Client {
	return &Client{timeout: time.Second, rotator: rotator, clients: map[string]Doer{}, dial: d.dial}
}

func get(t *testing.T, c *Client, target string) (*fhttp.Response, error) {
	t.Helper()
	req, err := fhttp.NewRequest(fhttp.MethodGet, target, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return c.Do(req)
}

func TestClientDirectWithoutRotator(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(nil, d)

	resp, err := get(t, c, "https://api.adzuna.com/v1/api/jobs/ca/search/1")
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("Do() = %v, %v", resp, err)
	}
	if len(d.used) != 1 || d.used[0] != "" {
		t.Fatalf("expected one direct request, got %v", d.used)
	}
}

func TestClientRotatesAndReusesProxyClients(t *testing.T) {
	rotator, _ := NewRotator([]string{"http://a:1", "http://b:2"}, time.Minute)
	d := &fakeDialer{}
	c := newTestClient(rotator, d)

	for i := 0; i < 4; i++ {
		if _, err := get(t, c, "https://api.adzuna.com/x"); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	want := []string{"http://a:1", "http://b:2", "http://a:1", "http://b:2"}
	for i := range want {
		if d.used[i] != want[i] {
			t.Fatalf("used = %v, want %v", d.used, want)
		}
	}
	if len(d.dialed) != 2 {
		t.Fatalf("expected one client per proxy, dialed %v", d.dialed)
	}
}

func TestClientFailsWhenAllProxiesBenched(t *testing.T) {
	rotator, _ := NewRotator([]string{"http://a:1"}, time.Minute)
	d := &fakeDialer{statuses: []int{429}, headers: map[int]string{429: "120"}}
	c := newTestClient(rotator, d)

	resp, err := get(t, c, "https://api.adzuna.com/x")
	if err != nil || resp.StatusCode != 429 {
		t.Fatalf("first Do() = %v, %v", resp, err)
	}

	_, err = get(t, c, "https://api.adzuna.com/x")
	if !errors.Is(err, ErrNoProxies) || !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrNoProxies, got %v", err)
	}
	if len(d.used) != 1 {
		t.Fatalf("benched request must not go out, used %v", d.used)
	}

	if _, err := get(t, c, "https://jooble.org/api/key"); err != nil {
		t.Fatalf("other hosts keep using the proxy, got %v", err)
	}
}

func TestClientBenchesProxyOnTransportError(t *testing.T) {
	rotator, _ := NewRotator([]string{"http://a:1"}, time.Minute)
	d := &fakeDialer{failWith: errors.New("proxy refused connection")}
	c := newTestClient(rotator, d)

	if _, err := get(t, c, "https://api.adzuna.com/x"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if _, banned := rotator.BannedUntil(rotator.proxies[0], "api.adzuna.com"); !banned {
		t.Fatalf("proxy should be benched after a transport error")
	}
}
