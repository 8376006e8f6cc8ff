package network

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const (
	DefaultTimeout = 20 * time.Second
	userAgent      = "jobscan/1.0 (+https://github.com/MrJJimenez/jobscan)"
)

var ErrRequestFailed = errors.New("request failed")

// Doer is the transport seam used by source adapters.
type Doer interface {
	Do(req *fhttp.Request) (*fhttp.Response, error)
}

// Client sends requests directly or through the rotator's proxies. Each
// proxy gets its own tls client, so concurrent requests never share a
// proxy setting.
type Client struct {
	timeout time.Duration
	rotator *Rotator

	mu      sync.Mutex
	clients map[string]Doer
	dial    func(proxy string, timeout time.Duration) (Doer, error)
}

// NewClient builds a client with a fixed per-request timeout. A nil or
// empty rotator sends every request directly.
func NewClient(rotator *Rotator, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if rotator != nil && rotator.Len() == 0 {
		rotator = nil
	}
	c := &Client{
		timeout: timeout,
		rotator: rotator,
		clients: map[string]Doer{},
		dial:    newTLSClient,
	}
	// Fail fast on a bad client profile rather than on the first request.
	if _, err := c.clientFor(nil); err != nil {
		return nil, err
	}
	return c, nil
}

func newTLSClient(proxy string, timeout time.Duration) (Doer, error) {
	opts := []tls_client.HttpClientOption{
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithTimeoutSeconds(int(timeout / time.Second)),
	}
	if proxy != "" {
		opts = append(opts, tls_client.WithProxyUrl(proxy))
	}
	return tls_client.NewHttpClient(tls_client.NewNoopLogger(), opts...)
}

// Do picks a proxy for the request host, sends the request and reports the
// outcome back to the rotator. When every proxy is benched for the host the
// request fails with ErrNoProxies instead of going out unproxied.
func (c *Client) Do(req *fhttp.Request) (*fhttp.Response, error) {
	host := req.URL.Host

	var proxy *url.URL
	if c.rotator != nil {
		next, err := c.rotator.Next(host)
		if err != nil {
			return nil, errors.Join(ErrRequestFailed, err)
		}
		proxy = next
	}

	httpClient, err := c.clientFor(proxy)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if proxy != nil {
			c.rotator.Report(proxy, host, StatusTransportError, "")
		}
		return nil, errors.Join(ErrRequestFailed, err)
	}
	if proxy != nil {
		c.rotator.Report(proxy, host, resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	return resp, nil
}

func (c *Client) clientFor(proxy *url.URL) (Doer, error) {
	key := ""
	if proxy != nil {
		key = proxy.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.clients[key]; ok {
		return existing, nil
	}
	created, err := c.dial(key, c.timeout)
	if err != nil {
		if key == "" {
			return nil, err
		}
		return nil, fmt.Errorf("proxy %s: %w", proxy.Redacted(), err)
	}
	c.clients[key] = created
	return created, nil
}
