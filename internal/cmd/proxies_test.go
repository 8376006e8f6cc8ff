package cmd

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	fhttp "github.com/bogdanfinn/fhttp"
)

// hostStatusDoer answers each host with a fixed status.
type hostStatusDoer struct {
	mu       sync.Mutex
	statuses map[string]int
	hosts    []string
}

func (d *hostStatusDoer) Do(req *fhttp.Request) (*fhttp.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hosts = append(d.hosts, req.URL.Host)
	status, ok := d.statuses[req.URL.Host]
	if !ok {
		status = 200
	}
	header := fhttp.Header{}
	if status == 429 {
		header.Set("Retry-After", "90")
	}
	return &fhttp.Response{StatusCode: status, Header: header, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func TestProxyCheckConfiguredProviders(t *testing.T) {
	doer := &hostStatusDoer{statuses: map[string]int{
		"api.adzuna.com": 404,
		"jooble.org":     429,
	}}
	ctx, out := testContext(t, nil)
	ctx.Doer = doer
	ctx.Config.SourceOrder = []string{"adzuna", "jooble", "jsearch"}
	ctx.Config.JSearchBaseURL = "https://gateway.example.com/"

	cmd := &ProxyCheckCmd{Proxies: "http://p1:8080", Timeout: 5}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var results []ProxyCheckResult
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if len(results) != 3 {
		t.Fatalf("expected one result per provider, got %+v", results)
	}

	want := []struct {
		source string
		status string
		code   int
		retry  int64
	}{
		{"adzuna", checkOK, 404, 0},
		{"jooble", checkThrottled, 429, 90},
		{"jsearch", checkOK, 200, 0},
	}
	for i, w := range want {
		got := results[i]
		if got.Proxy != "http://p1:8080" || got.Source != w.source || got.Status != w.status || got.Code != w.code || got.RetryAfterS != w.retry {
			t.Fatalf("results[%d] = %+v, want %+v", i, got, w)
		}
	}
	if doer.hosts[2] != "gateway.example.com" {
		t.Fatalf("base url override not used: %v", doer.hosts)
	}
}

func TestProxyCheckCustomTarget(t *testing.T) {
	doer := &hostStatusDoer{statuses: map[string]int{"status.example.com": 502}}
	ctx, out := testContext(t, nil)
	ctx.Doer = doer

	cmd := &ProxyCheckCmd{Proxies: "http://p1:8080,http://p2:8080", Target: "https://status.example.com/health", Timeout: 5}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var results []ProxyCheckResult
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 || results[1].Proxy != "http://p2:8080" || results[1].Status != checkGateway {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClassifyCheck(t *testing.T) {
	cases := map[int]string{200: checkOK, 401: checkOK, 403: checkOK, 407: checkProxyAuth, 429: checkThrottled, 503: checkGateway}
	for status, want := range cases {
		if got := classifyCheck(status); got != want {
			t.Fatalf("classifyCheck(%d) = %q, want %q", status, got, want)
		}
	}
}
