package aggregate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/models"
	"github.com/MrJJimenez/jobscan/internal/rank"
	"github.com/MrJJimenez/jobscan/internal/source"
)

const (
	DefaultLocation          = "Canada"
	DefaultMinResultsPrimary = 40
	DefaultMaxResults        = 100
)

type Options struct {
	DefaultLocation   string
	MinResultsPrimary int
	MaxResults        int
	Scorer            rank.Scorer
	Clock             func() time.Time
}

// Aggregator calls adapters in priority order, then merges, dedups, ranks
// and truncates their results. Calls are sequential.
type Aggregator struct {
	adapters []source.Adapter
	opts     Options
	logger   zerolog.Logger
}

func New(adapters []source.Adapter, opts Options, logger zerolog.Logger) *Aggregator {
	if strings.TrimSpace(opts.DefaultLocation) == "" {
		opts.DefaultLocation = DefaultLocation
	}
	if opts.MinResultsPrimary <= 0 {
		opts.MinResultsPrimary = DefaultMinResultsPrimary
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Scorer == nil {
		opts.Scorer = rank.NewKeywordScorer(rank.DefaultRules())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Aggregator{adapters: adapters, opts: opts, logger: logger}
}

func (a *Aggregator) GetJobs(ctx context.Context, query models.Query) models.Result {
	if strings.TrimSpace(query.Where) == "" {
		query.Where = a.opts.DefaultLocation
	}
	query = query.Normalize()

	var (
		merged []models.Posting
		called []string
	)
	for i, adapter := range a.adapters {
		if i > 0 && len(merged) >= a.opts.MinResultsPrimary {
			break
		}
		items := adapter.Search(ctx, query)
		a.logger.Debug().
			Str("source", adapter.Name()).
			Int("count", len(items)).
			Int("accumulated", len(merged)+len(items)).
			Msg("adapter queried")
		if len(items) > 0 {
			called = append(called, adapter.Name())
		}
		merged = append(merged, items...)
	}

	unique := Dedupe(merged)
	ranked := rank.Rank(unique, a.opts.Scorer, a.opts.Clock())
	if len(ranked) > a.opts.MaxResults {
		ranked = ranked[:a.opts.MaxResults]
	}
	if called == nil {
		called = []string{}
	}

	a.logger.Info().
		Str("what", query.What).
		Str("where", query.Where).
		Int("merged", len(merged)).
		Int("unique", len(unique)).
		Int("returned", len(ranked)).
		Strs("sources", called).
		Msg("aggregation complete")

	return models.Result{Items: ranked, SourcesCalled: called, Total: len(ranked)}
}

// Dedupe keeps the first posting for every lower-cased
// title|company|location key.
func Dedupe(postings []models.Posting) []models.Posting {
	seen := make(map[string]struct{}, len(postings))
	out := make([]models.Posting, 0, len(postings))
	for _, p := range postings {
		key := p.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
