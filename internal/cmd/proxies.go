package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/network"
	"github.com/MrJJimenez/jobscan/internal/source"
)

type ProxiesCmd struct {
	Check ProxyCheckCmd `cmd:"" help:"Check each proxy against the configured provider endpoints."`
}

type ProxyCheckCmd struct {
	Target  string `help:"Check this URL instead of the configured providers."`
	Proxies string `help:"Comma-separated proxy URLs (default: proxies.txt)." env:"JOBSCAN_PROXIES"`
	Timeout int    `help:"Timeout in seconds." default:"15"`
}

type ProxyCheckResult struct {
	Proxy       string `json:"proxy"`
	Source      string `json:"source"`
	Status      string `json:"status"`
	Code        int    `json:"code,omitempty"`
	LatencyMS   int64  `json:"latency_ms"`
	RetryAfterS int64  `json:"retry_after_s,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Check statuses.
const (
	checkOK        = "ok"
	checkThrottled = "throttled"
	checkProxyAuth = "proxy_auth"
	checkGateway   = "gateway_error"
	checkError     = "error"
)

func (p *ProxyCheckCmd) Run(ctx *Context) error {
	proxies, err := config.LoadProxies(p.Proxies)
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		return network.ErrNoProxies
	}

	targets := source.Endpoints(ctx.Config)
	if strings.TrimSpace(p.Target) != "" {
		targets = []source.Endpoint{{Source: "custom", URL: strings.TrimSpace(p.Target)}}
	}
	timeout := time.Duration(p.Timeout) * time.Second

	results := make([]ProxyCheckResult, 0, len(proxies)*len(targets))
	for _, proxy := range proxies {
		doer, err := proxyDoer(ctx, proxy, timeout)
		for _, target := range targets {
			if err != nil {
				results = append(results, ProxyCheckResult{Proxy: proxy, Source: target.Source, Status: checkError, Error: err.Error()})
				continue
			}
			results = append(results, checkEndpoint(doer, proxy, target, timeout))
		}
	}

	return writeProxyResults(ctx, results)
}

// proxyDoer builds a client pinned to a single proxy.
func proxyDoer(ctx *Context, proxy string, timeout time.Duration) (network.Doer, error) {
	if ctx.Doer != nil {
		return ctx.Doer, nil
	}
	rotator, err := network.NewRotator([]string{proxy}, proxyBanDuration)
	if err != nil {
		return nil, err
	}
	return network.NewClient(rotator, timeout)
}

func checkEndpoint(doer network.Doer, proxy string, target source.Endpoint, timeout time.Duration) ProxyCheckResult {
	result := ProxyCheckResult{Proxy: proxy, Source: target.Source}

	reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := fhttp.NewRequestWithContext(reqCtx, fhttp.MethodGet, target.URL, nil)
	if err != nil {
		result.Status, result.Error = checkError, err.Error()
		return result
	}

	start := time.Now()
	resp, err := doer.Do(req)
	if err != nil {
		result.Status, result.Error = checkError, err.Error()
		return result
	}
	_ = resp.Body.Close()

	result.LatencyMS = time.Since(start).Milliseconds()
	result.Code = resp.StatusCode
	result.Status = classifyCheck(resp.StatusCode)
	if d, ok := network.ParseRetryAfter(resp.Header.Get("Retry-After")); ok && result.Status == checkThrottled {
		result.RetryAfterS = int64(d / time.Second)
	}
	return result
}

// classifyCheck treats any answer from the provider, including 401/403/404
// for an unauthenticated request, as a working proxy.
func classifyCheck(status int) string {
	switch {
	case status == 407:
		return checkProxyAuth
	case status == 429:
		return checkThrottled
	case status >= 500:
		return checkGateway
	default:
		return checkOK
	}
}

func writeProxyResults(ctx *Context, results []ProxyCheckResult) error {
	if ctx.JSONOutput {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if ctx.PlainText {
		for _, res := range results {
			line := []string{res.Proxy, res.Source, res.Status, strconv.Itoa(res.Code), strconv.FormatInt(res.LatencyMS, 10), res.Error}
			fmt.Fprintln(ctx.Out, strings.Join(line, "\t"))
		}
		return nil
	}

	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "proxy\tsource\tstatus\tcode\tlatency_ms\tnote")
	for _, res := range results {
		note := res.Error
		if res.RetryAfterS > 0 {
			note = fmt.Sprintf("retry after %ds", res.RetryAfterS)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", res.Proxy, res.Source, res.Status, res.Code, res.LatencyMS, note)
	}
	return tw.Flush()
}
