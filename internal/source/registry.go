package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/cache"
	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/network"
	"github.com/MrJJimenez/jobscan/internal/ratelimit"
)

// Shared holds what the registry injects into every adapter.
type Shared struct {
	Cache  *cache.Cache
	Doer   network.Doer
	Logger zerolog.Logger
	Sleep  Sleeper
	Clock  func() time.Time
}

// Registry builds every known adapter. Each gets its own limiter sized
// from cfg.RateLimits; all share one cache.
func Registry(cfg config.Config, shared Shared) map[string]Adapter {
	if shared.Cache == nil {
		shared.Cache = cache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	}
	deps := func(name string) Deps {
		return Deps{
			Cache:   shared.Cache,
			Limiter: limiterFor(cfg, name, shared.Clock),
			Doer:    shared.Doer,
			Logger:  shared.Logger,
			Policy:  DefaultPolicy(),
			Sleep:   shared.Sleep,
		}
	}

	return map[string]Adapter{
		SourceAdzuna: NewAdzuna(AdzunaOptions{
			AppID:           cfg.AdzunaAppID,
			AppKey:          cfg.AdzunaAppKey,
			Country:         cfg.AdzunaCountryCode,
			BaseURL:         cfg.AdzunaBaseURL,
			DefaultLocation: cfg.DefaultCountry,
		}, deps(SourceAdzuna)),
		SourceJooble: NewJooble(JoobleOptions{
			APIKey:          cfg.JoobleAPIKey,
			BaseURL:         cfg.JoobleBaseURL,
			DefaultLocation: cfg.DefaultCountry,
		}, deps(SourceJooble)),
		SourceJSearch: NewJSearch(JSearchOptions{
			APIKey:  cfg.JSearchAPIKey,
			BaseURL: cfg.JSearchBaseURL,
			Country: cfg.JSearchCountry,
		}, deps(SourceJSearch)),
	}
}

// Ordered returns adapters in the priority order named by cfg.SourceOrder.
func Ordered(cfg config.Config, shared Shared) ([]Adapter, error) {
	registry := Registry(cfg, shared)
	names := NormalizeSources(cfg.SourceOrder)
	if len(names) == 0 {
		names = []string{SourceAdzuna, SourceJooble, SourceJSearch}
	}
	return Select(registry, names)
}

// Endpoint is a provider's base URL, used for reachability checks.
type Endpoint struct {
	Source string
	URL    string
}

// Endpoints lists the base URLs of the sources in cfg.SourceOrder, with
// configured overrides applied. Unknown names are skipped.
func Endpoints(cfg config.Config) []Endpoint {
	bases := map[string]string{
		SourceAdzuna:  orDefault(cfg.AdzunaBaseURL, adzunaBaseURL),
		SourceJooble:  orDefault(cfg.JoobleBaseURL, joobleBaseURL),
		SourceJSearch: orDefault(cfg.JSearchBaseURL, jsearchBaseURL),
	}
	names := NormalizeSources(cfg.SourceOrder)
	if len(names) == 0 {
		names = []string{SourceAdzuna, SourceJooble, SourceJSearch}
	}

	var out []Endpoint
	seen := map[string]struct{}{}
	for _, name := range names {
		base, ok := bases[name]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, Endpoint{Source: name, URL: strings.TrimSuffix(base, "/")})
	}
	return out
}

// Select picks adapters by name, keeping order and dropping repeats.
func Select(registry map[string]Adapter, names []string) ([]Adapter, error) {
	out := make([]Adapter, 0, len(names))
	seen := map[string]struct{}{}
	for _, name := range NormalizeSources(names) {
		adapter, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown source: %s", name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, adapter)
	}
	return out, nil
}

func NormalizeSources(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		switch name {
		case "rapidapi", "j-search":
			name = SourceJSearch
		}
		out = append(out, name)
	}
	return out
}

func limiterFor(cfg config.Config, name string, clock func() time.Time) *ratelimit.Limiter {
	limit := cfg.RateLimits[name]
	var opts []ratelimit.Option
	if clock != nil {
		opts = append(opts, ratelimit.WithClock(clock))
	}
	return ratelimit.New(limit.PerMinute, limit.PerDay, opts...)
}
