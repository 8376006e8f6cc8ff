package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/filter"
	"github.com/MrJJimenez/jobscan/internal/models"
	"github.com/MrJJimenez/jobscan/internal/notify"
	"github.com/MrJJimenez/jobscan/internal/seen"
)

const DefaultRetentionDays = 30

// Aggregator is the search side of a scan.
type Aggregator interface {
	GetJobs(ctx context.Context, query models.Query) models.Result
}

// Report summarises one scan cycle.
type Report struct {
	RunID         string         `json:"run_id"`
	Count         int            `json:"count"`
	Matches       []models.Match `json:"matches"`
	Scanned       int            `json:"total_jobs_scanned"`
	InMemory      int            `json:"total_jobs_in_memory"`
	SourcesCalled []string       `json:"sources_called"`
	Message       string         `json:"message,omitempty"`
}

// Tagger names the ranking rules a posting matched.
type Tagger interface {
	Tags(p models.Posting) []string
}

type Runner struct {
	Aggregator    Aggregator
	Classifier    filter.Classifier
	Tagger        Tagger
	Sender        notify.Sender
	SeenPath      string
	RetentionDays int
	// DryRun skips persisting the seen store.
	DryRun bool
	Logger zerolog.Logger
	Clock  func() time.Time
}

// Run aggregates, drops already seen postings, classifies the rest, sends
// the matches and persists them as seen. The store is only saved after a
// successful send so failed notifications are retried next run.
func (r *Runner) Run(ctx context.Context, query models.Query) (Report, error) {
	now := time.Now()
	if r.Clock != nil {
		now = r.Clock()
	}
	report := Report{RunID: uuid.NewString(), Matches: []models.Match{}}
	logger := r.Logger.With().Str("run_id", report.RunID).Logger()

	store, err := seen.Load(r.SeenPath)
	if err != nil {
		if !errors.Is(err, seen.ErrCorrupt) {
			return report, fmt.Errorf("load seen store: %w", err)
		}
		logger.Warn().Err(err).Msg("starting with empty seen store")
	}

	retention := r.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	if pruned := store.Prune(now, retention); pruned > 0 {
		logger.Debug().Int("pruned", pruned).Msg("seen store pruned")
	}

	result := r.Aggregator.GetJobs(ctx, query)
	report.Scanned = len(result.Items)
	report.SourcesCalled = result.SourcesCalled
	if report.Scanned == 0 {
		report.Message = "no jobs found from any source"
	}

	unseen := store.Diff(result.Items)
	matches := r.Classifier.Filter(unseen)
	if matches != nil {
		report.Matches = matches
	}
	if r.Tagger != nil {
		for i := range report.Matches {
			report.Matches[i].Tags = r.Tagger.Tags(report.Matches[i].Posting)
		}
	}
	report.Count = len(report.Matches)

	logger.Info().
		Int("scanned", report.Scanned).
		Int("unseen", len(unseen)).
		Int("matches", report.Count).
		Strs("sources", report.SourcesCalled).
		Msg("scan classified")

	if r.Sender != nil {
		if err := r.Sender.Send(ctx, report.Matches); err != nil {
			report.InMemory = store.Len()
			return report, fmt.Errorf("notify: %w", err)
		}
	}

	posted := make([]models.Posting, len(report.Matches))
	for i, m := range report.Matches {
		posted[i] = m.Posting
	}
	store.Mark(posted, now)
	report.InMemory = store.Len()

	if r.DryRun {
		return report, nil
	}
	if err := store.Save(r.SeenPath, now); err != nil {
		return report, fmt.Errorf("save seen store: %w", err)
	}
	return report, nil
}

// ShouldRunNow reports whether now, in tz, falls on one of the comma
// separated hours. An empty hour list or zone disables the gate.
func ShouldRunNow(hoursCSV, tz string, now time.Time) (bool, error) {
	hoursCSV = strings.TrimSpace(hoursCSV)
	tz = strings.TrimSpace(tz)
	if hoursCSV == "" || tz == "" {
		return true, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return false, fmt.Errorf("gate timezone %q: %w", tz, err)
	}

	hour := now.In(loc).Hour()
	for _, part := range strings.Split(hoursCSV, ",") {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if h == hour {
			return true, nil
		}
	}
	return false, nil
}
