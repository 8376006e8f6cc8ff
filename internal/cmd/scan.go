package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/MrJJimenez/jobscan/internal/filter"
	"github.com/MrJJimenez/jobscan/internal/models"
	"github.com/MrJJimenez/jobscan/internal/notify"
	"github.com/MrJJimenez/jobscan/internal/scan"
)

type ScanCmd struct {
	Query   string `arg:"" optional:"" help:"Search keywords (default: config default_query)."`
	Where   string `help:"Location; defaults to config default_country."`
	Sources string `help:"Comma-separated sources in priority order."`
	Proxies string `help:"Comma-separated proxy URLs." env:"JOBSCAN_PROXIES"`
	DryRun  bool   `help:"Print matches instead of mailing them and leave the seen store untouched."`
	Force   bool   `help:"Ignore the RUN_HOURS_LOCAL/GATE_TZ hour gate."`
}

func (s *ScanCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	if !s.Force {
		ok, err := scan.ShouldRunNow(cfg.RunHoursLocal, cfg.GateTZ, ctx.now())
		if err != nil {
			return err
		}
		if !ok {
			ctx.UI.Infof("Gate skipped: current hour in %s not in %s", cfg.GateTZ, cfg.RunHoursLocal)
			return nil
		}
	}

	agg, err := buildAggregator(ctx, s.Sources, s.Proxies)
	if err != nil {
		return err
	}
	runner, err := newScanRunner(ctx, agg, s.DryRun)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	what := strings.TrimSpace(s.Query)
	if what == "" {
		what = cfg.DefaultQuery
	}
	report, err := runner.Run(runCtx, models.Query{What: what, Where: s.Where})
	if err != nil {
		return err
	}
	return writeScanReport(ctx, report)
}

func newScanRunner(ctx *Context, agg scan.Aggregator, dryRun bool) (*scan.Runner, error) {
	seenPath, err := ctx.Config.ResolveSeenPath()
	if err != nil {
		return nil, err
	}

	var sender notify.Sender
	switch {
	case dryRun:
		sender = notify.WriterSender{W: ctx.Err}
	case notify.Configured(ctx.Config.SMTP):
		sender = notify.NewSMTPSender(ctx.Config.SMTP)
	default:
		ctx.Logger.Warn().Msg("smtp not configured (SMTP_HOST, EMAIL_FROM, EMAIL_TO); matches are only logged")
		sender = notify.LogSender{Logger: ctx.Logger}
	}

	scorer, err := loadScorer(ctx.Config)
	if err != nil {
		return nil, err
	}

	return &scan.Runner{
		Aggregator:    agg,
		Tagger:        scorer,
		Classifier:    filter.FromConfig(ctx.Config.Eligibility),
		Sender:        sender,
		SeenPath:      seenPath,
		RetentionDays: ctx.Config.SeenRetentionDays,
		DryRun:        dryRun,
		Logger:        ctx.Logger,
		Clock:         ctx.Clock,
	}, nil
}

func writeScanReport(ctx *Context, report scan.Report) error {
	if ctx.JSONOutput {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	if ctx.PlainText {
		for _, m := range report.Matches {
			fmt.Fprintln(ctx.Out, strings.Join([]string{m.Source, m.Title, m.Company, m.Location, m.URL, m.Reason}, "\t"))
		}
		return nil
	}

	ctx.UI.Successf("Run %s: %d new match(es) out of %d scanned", report.RunID, report.Count, report.Scanned)
	for _, m := range report.Matches {
		fmt.Fprintf(ctx.Out, "- %s at %s (%s)\n  %s\n  %s\n", m.Title, m.Company, m.Location, m.Reason, ctx.UI.LinkText(m.URL))
	}
	if report.Message != "" {
		ctx.UI.Warnf("%s", report.Message)
	}
	ctx.UI.Notef("sources=%s seen_store=%d", strings.Join(report.SourcesCalled, ","), report.InMemory)
	return nil
}
