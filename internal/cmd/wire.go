package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrJJimenez/jobscan/internal/aggregate"
	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/network"
	"github.com/MrJJimenez/jobscan/internal/rank"
	"github.com/MrJJimenez/jobscan/internal/source"
)

const proxyBanDuration = 10 * time.Minute

func transport(ctx *Context, proxiesFlag string) (network.Doer, error) {
	if ctx.Doer != nil {
		return ctx.Doer, nil
	}

	proxies, err := config.LoadProxies(proxiesFlag)
	if err != nil {
		return nil, err
	}
	var rotator *network.Rotator
	if len(proxies) > 0 {
		rotator, err = network.NewRotator(proxies, proxyBanDuration)
		if err != nil {
			return nil, err
		}
	}

	client, err := network.NewClient(rotator, time.Duration(ctx.Config.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	return client, nil
}

func loadScorer(cfg config.Config) (rank.KeywordScorer, error) {
	if strings.TrimSpace(cfg.ScoringRulesPath) == "" {
		return rank.NewKeywordScorer(rank.DefaultRules()), nil
	}
	rules, err := rank.LoadRules(cfg.ScoringRulesPath)
	if err != nil {
		return rank.KeywordScorer{}, fmt.Errorf("load scoring rules: %w", err)
	}
	return rank.NewKeywordScorer(rules), nil
}

// adapters returns the adapters named in sourcesArg, or the configured
// priority order when it is empty.
func adapters(ctx *Context, sourcesArg string, proxiesFlag string) ([]source.Adapter, error) {
	doer, err := transport(ctx, proxiesFlag)
	if err != nil {
		return nil, err
	}

	cfg := ctx.Config
	if names := splitCSV(sourcesArg); len(names) > 0 {
		cfg.SourceOrder = names
	}
	return source.Ordered(cfg, source.Shared{
		Doer:   doer,
		Logger: ctx.Logger,
		Clock:  ctx.Clock,
	})
}

func buildAggregator(ctx *Context, sourcesArg string, proxiesFlag string) (*aggregate.Aggregator, error) {
	list, err := adapters(ctx, sourcesArg, proxiesFlag)
	if err != nil {
		return nil, err
	}
	scorer, err := loadScorer(ctx.Config)
	if err != nil {
		return nil, err
	}
	return aggregate.New(list, aggregate.Options{
		DefaultLocation:   ctx.Config.DefaultCountry,
		MinResultsPrimary: ctx.Config.MinResultsPrimary,
		MaxResults:        ctx.Config.MaxResults,
		Scorer:            scorer,
		Clock:             ctx.Clock,
	}, ctx.Logger), nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
