package source

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/cache"
	"github.com/MrJJimenez/jobscan/internal/models"
	"github.com/MrJJimenez/jobscan/internal/network"
	"github.com/MrJJimenez/jobscan/internal/ratelimit"
)

const maxBodyBytes = 16 << 20

// Deps are the collaborators every adapter is built with. Cache is shared
// across adapters; the limiter is per adapter and created by the caller.
type Deps struct {
	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
	Doer    network.Doer
	Logger  zerolog.Logger
	Policy  Policy
	Sleep   Sleeper
}

type base struct {
	name    string
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	doer    network.Doer
	logger  zerolog.Logger
	policy  Policy
	sleep   Sleeper
}

func newBase(name string, deps Deps) base {
	b := base{
		name:    name,
		cache:   deps.Cache,
		limiter: deps.Limiter,
		doer:    deps.Doer,
		logger:  deps.Logger.With().Str("source", name).Logger(),
		policy:  deps.Policy.normalized(),
		sleep:   deps.Sleep,
	}
	if b.cache == nil {
		b.cache = cache.New(cache.DefaultTTL)
	}
	if b.limiter == nil {
		b.limiter = ratelimit.New(ratelimit.DefaultPerMinute, ratelimit.DefaultPerDay)
	}
	if b.sleep == nil {
		b.sleep = SleepContext
	}
	return b
}

func (b *base) Name() string {
	return b.name
}

// request describes one provider call. build is invoked per attempt so
// request bodies can be replayed; extract maps the decoded payload.
type request struct {
	query   models.Query
	enabled bool
	build   func(ctx context.Context) (*fhttp.Request, error)
	extract func(payload map[string]any) []models.Posting
}

// search runs the shared cache, credentials, limiter, retry, record and
// store sequence.
func (b *base) search(ctx context.Context, r request) []models.Posting {
	q := r.query
	key := cache.Key(b.name, q.What, q.Where, q.Page, q.ResultsPerPage)
	if cached, ok := b.cache.Get(key); ok {
		b.logger.Debug().Str("reason", "cache_hit").Int("count", len(cached)).Msg("served from cache")
		return cached
	}

	if !r.enabled {
		b.logger.Debug().Str("reason", "disabled").Msg("source skipped: missing credentials")
		return []models.Posting{}
	}

	if !b.limiter.Allow() {
		b.logger.Warn().Str("reason", "rate_limited").Msg("source skipped: local rate limit reached")
		return []models.Posting{}
	}

	if b.doer == nil {
		b.logger.Error().Str("reason", "no_transport").Msg("source skipped: no http client")
		return []models.Posting{}
	}

	var payload map[string]any
	trace := b.policy.Run(ctx, b.sleep, func(ctx context.Context, attempt int) Attempt {
		res, decoded := b.attempt(ctx, r.build)
		if res.Outcome != OutcomeSuccess {
			b.logger.Debug().
				Str("reason", res.Reason).
				Int("status", res.Status).
				Int("attempt", attempt).
				Msg("attempt failed")
		}
		payload = decoded
		return res
	})

	if trace.Final != Succeeded {
		reason := trace.Last.Reason
		if trace.Last.Outcome != OutcomeTerminal && reason != "canceled" {
			reason = "exhausted"
		}
		b.logger.Warn().
			Str("reason", reason).
			Str("last_error", trace.Last.Reason).
			Int("status", trace.Last.Status).
			Int("attempts", trace.Attempts).
			Msg("source gave up")
		return []models.Posting{}
	}

	b.limiter.Record()
	postings := r.extract(payload)
	if postings == nil {
		postings = []models.Posting{}
	}
	b.cache.Set(key, postings)
	b.logger.Debug().Int("count", len(postings)).Int("attempts", trace.Attempts).Msg("source returned")
	return postings
}

func (b *base) attempt(ctx context.Context, build func(context.Context) (*fhttp.Request, error)) (Attempt, map[string]any) {
	req, err := build(ctx)
	if err != nil {
		return Attempt{Outcome: OutcomeTerminal, Reason: "build_request"}, nil
	}

	resp, err := b.doer.Do(req)
	if err != nil {
		return Attempt{Outcome: OutcomeTransient, Reason: "transport"}, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	status := resp.StatusCode
	if status == fhttp.StatusTooManyRequests || (status >= 500 && status < 600) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		res := Attempt{Outcome: OutcomeThrottled, Reason: "http_status", Status: status}
		if resp.Header != nil {
			res.RetryAfter, res.HasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return res, nil
	}
	if status < 200 || status >= 300 {
		return Attempt{Outcome: OutcomeTerminal, Reason: "http_status", Status: status}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Attempt{Outcome: OutcomeTransient, Reason: "transport", Status: status}, nil
	}

	payload, err := decodePayload(body)
	if err != nil {
		return Attempt{Outcome: OutcomeTransient, Reason: "decode", Status: status}, nil
	}
	return Attempt{Outcome: OutcomeSuccess, Status: status}, payload
}

// decodePayload requires valid JSON; a valid document that is not an
// object (null, array, scalar) decodes to an empty payload.
func decodePayload(body []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return payload, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
