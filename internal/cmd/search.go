package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"github.com/MrJJimenez/jobscan/internal/aggregate"
	"github.com/MrJJimenez/jobscan/internal/export"
	"github.com/MrJJimenez/jobscan/internal/models"
	"github.com/MrJJimenez/jobscan/internal/seen"
)

type SearchCmd struct {
	Query   string `arg:"" optional:"" help:"Search keywords (comma-separated for several queries). Optional when --query-file is provided."`
	Sources string `help:"Comma-separated sources in priority order (default: config source_order)."`
	SearchOptions
}

type SourceCmd struct {
	Name  string `arg:"" enum:"adzuna,jooble,jsearch,rapidapi" help:"Source to query."`
	Query string `arg:"" optional:"" help:"Search keywords (comma-separated for several queries)."`
	SearchOptions
}

type SearchOptions struct {
	Where      string `help:"Location; defaults to config default_country." env:"JOBSCAN_DEFAULT_LOCATION"`
	Page       int    `help:"1-based result page." default:"1"`
	Size       int    `help:"Results per page (10-50)." default:"20"`
	Format     string `help:"Output format: csv, json, md, tsv, table." enum:",csv,json,md,tsv,table" default:""`
	Links      string `help:"Table link display: short or full." enum:"short,full" default:"full"`
	Output     string `name:"output" short:"o" help:"Write output to a file."`
	Proxies    string `help:"Comma-separated proxy URLs." env:"JOBSCAN_PROXIES"`
	QueryFile  string `help:"Path to JSON file with queries (top-level string array or object with job_titles array)."`
	Seen       string `help:"Path to seen postings JSON file."`
	NewOnly    bool   `help:"Output only unseen postings (requires --seen)."`
	NewOut     string `help:"Write unseen postings JSON to a file (requires --seen)."`
	SeenUpdate bool   `help:"Merge unseen postings into the --seen file after the search."`
}

const maxQueries = 10

func (s *SearchCmd) Run(ctx *Context) error {
	return runSearch(ctx, s.Query, s.Sources, s.SearchOptions)
}

func (s *SourceCmd) Run(ctx *Context) error {
	return runSearch(ctx, s.Query, s.Name, s.SearchOptions)
}

func runSearch(ctx *Context, query string, sourcesArg string, opts SearchOptions) error {
	if err := validateSeenFlags(opts); err != nil {
		return err
	}
	queries, err := resolveQueries(query, opts.QueryFile)
	if err != nil {
		return err
	}

	agg, err := buildAggregator(ctx, sourcesArg, opts.Proxies)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stopIndicator := startSearchIndicator(ctx)
	postings, called := searchAll(runCtx, agg, queries, opts)
	if stopIndicator != nil {
		stopIndicator()
	}
	if len(called) == 0 && ctx.UI != nil {
		ctx.UI.Warnf("No source returned results. Check credentials with `jobscan config path` and --verbose.")
	}

	var unseen []models.Posting
	if strings.TrimSpace(opts.Seen) != "" {
		history, err := seen.ReadPostingsAllowMissing(opts.Seen)
		if err != nil {
			return fmt.Errorf("read --seen: %w", err)
		}
		unseen, _ = seen.Diff(postings, history)
	}

	output := postings
	if opts.NewOnly {
		output = unseen
	}

	if strings.TrimSpace(opts.NewOut) != "" {
		if err := seen.WritePostings(opts.NewOut, unseen); err != nil {
			return fmt.Errorf("write --new-out: %w", err)
		}
	}
	if err := writeOutput(ctx, opts, output); err != nil {
		return err
	}
	if opts.SeenUpdate {
		if err := updateSeenHistory(opts.Seen, unseen); err != nil {
			return err
		}
	}

	summary := postings
	if strings.TrimSpace(opts.Seen) != "" {
		summary = unseen
	}
	if ctx.Err != nil {
		fmt.Fprintln(ctx.Err, formatSearchSummary(summary, called))
	}
	return nil
}

// searchAll runs every query through the aggregator and merges the results,
// first occurrence wins.
func searchAll(ctx context.Context, agg *aggregate.Aggregator, queries []string, opts SearchOptions) ([]models.Posting, []string) {
	var (
		all    []models.Posting
		called []string
		known  = map[string]struct{}{}
	)
	for _, q := range queries {
		result := agg.GetJobs(ctx, models.Query{
			What:           q,
			Where:          opts.Where,
			Page:           opts.Page,
			ResultsPerPage: opts.Size,
		})
		all = aggregate.Dedupe(append(all, result.Items...))
		for _, name := range result.SourcesCalled {
			if _, ok := known[name]; !ok {
				known[name] = struct{}{}
				called = append(called, name)
			}
		}
	}
	return all, called
}

func validateSeenFlags(opts SearchOptions) error {
	hasSeen := strings.TrimSpace(opts.Seen) != ""
	switch {
	case opts.NewOnly && !hasSeen:
		return fmt.Errorf("--new-only requires --seen")
	case strings.TrimSpace(opts.NewOut) != "" && !hasSeen:
		return fmt.Errorf("--new-out requires --seen")
	case opts.SeenUpdate && !hasSeen:
		return fmt.Errorf("--seen-update requires --seen")
	}
	if pathsEqual(opts.Output, opts.Seen) {
		return fmt.Errorf("--output path must differ from --seen")
	}
	if pathsEqual(opts.NewOut, opts.Output) {
		return fmt.Errorf("--new-out path must differ from --output")
	}
	if pathsEqual(opts.NewOut, opts.Seen) {
		return fmt.Errorf("--new-out path must differ from --seen")
	}
	return nil
}

func writeOutput(ctx *Context, opts SearchOptions, postings []models.Posting) error {
	format, err := resolveFormat(ctx, opts.Format, opts.Output)
	if err != nil {
		return err
	}

	writer := ctx.Out
	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer file.Close()
		writer = file
	}

	colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled
	linkStyle := export.LinkStyleShort
	if strings.EqualFold(opts.Links, string(export.LinkStyleFull)) {
		linkStyle = export.LinkStyleFull
	}
	return export.WritePostings(writer, postings, format, export.WriteOptions{
		ColorEnabled: colorEnabled,
		Hyperlinks:   colorEnabled && isTTY(writer),
		LinkStyle:    linkStyle,
	})
}

func pathsEqual(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil {
		return absA == absB
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func updateSeenHistory(seenPath string, input []models.Posting) error {
	history, err := seen.ReadPostingsAllowMissing(seenPath)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}
	merged, _ := seen.Merge(history, input)
	if err := seen.WritePostings(seenPath, merged); err != nil {
		return fmt.Errorf("write --seen: %w", err)
	}
	return nil
}

func formatSearchSummary(postings []models.Posting, called []string) string {
	totals := make(map[string]int, len(postings))
	for _, p := range postings {
		name := strings.ToLower(strings.TrimSpace(p.Source))
		if name == "" {
			name = "unknown"
		}
		totals[name]++
	}

	sourcesPart := "none"
	if len(called) > 0 {
		sourcesPart = strings.Join(called, ",")
	}
	if len(totals) == 0 {
		return fmt.Sprintf("summary: postings=0 by_source=none sources_called=%s", sourcesPart)
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, totals[name]))
	}
	return fmt.Sprintf("summary: postings=%d by_source=%s sources_called=%s", len(postings), strings.Join(parts, ", "), sourcesPart)
}

func parseQueries(raw string) ([]string, error) {
	return mergeAndNormalizeQueries(splitQueries(raw), nil)
}

func resolveQueries(raw string, queryFile string) ([]string, error) {
	var fileQueries []string
	if strings.TrimSpace(queryFile) != "" {
		var err error
		fileQueries, err = loadQueriesFromJSON(queryFile)
		if err != nil {
			return nil, err
		}
	}
	return mergeAndNormalizeQueries(splitQueries(raw), fileQueries)
}

func splitQueries(raw string) []string {
	return splitCSV(raw)
}

func mergeAndNormalizeQueries(primary []string, secondary []string) ([]string, error) {
	queries := make([]string, 0, len(primary)+len(secondary))
	known := make(map[string]struct{}, len(primary)+len(secondary))

	for _, q := range append(append([]string{}, primary...), secondary...) {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}
		queries = append(queries, q)
	}

	if len(queries) == 0 {
		return nil, fmt.Errorf("at least one non-empty query is required")
	}
	if len(queries) > maxQueries {
		return nil, fmt.Errorf("too many queries: max %d", maxQueries)
	}
	return queries, nil
}

func loadQueriesFromJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read --query-file %q: %w", path, err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("parse --query-file %q: %w", path, err)
	}

	schemaErr := fmt.Errorf("invalid --query-file %q: expected top-level string array or object with \"job_titles\" string array", path)
	switch value := decoded.(type) {
	case []any:
		return parseStringArray(value, path, "root array")
	case map[string]any:
		rawTitles, ok := value["job_titles"]
		if !ok {
			return nil, schemaErr
		}
		titles, ok := rawTitles.([]any)
		if !ok {
			return nil, fmt.Errorf("invalid --query-file %q: field \"job_titles\" must be an array of strings", path)
		}
		return parseStringArray(titles, path, "job_titles")
	default:
		return nil, schemaErr
	}
}

func parseStringArray(values []any, path string, fieldName string) ([]string, error) {
	queries := make([]string, 0, len(values))
	for idx, rawValue := range values {
		q, ok := rawValue.(string)
		if !ok {
			return nil, fmt.Errorf("invalid --query-file %q: %s[%d] must be a string", path, fieldName, idx)
		}
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

func resolveFormat(ctx *Context, format string, outputPath string) (export.Format, error) {
	switch {
	case ctx.JSONOutput:
		return export.FormatJSON, nil
	case ctx.PlainText:
		return export.FormatTSV, nil
	case format != "":
		return parseFormat(format)
	case outputPath != "":
		return export.FormatCSV, nil
	case isTTY(ctx.Out):
		return export.FormatTable, nil
	default:
		return export.FormatCSV, nil
	}
}

func parseFormat(value string) (export.Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return export.FormatCSV, nil
	case "json":
		return export.FormatJSON, nil
	case "md", "markdown":
		return export.FormatMarkdown, nil
	case "tsv":
		return export.FormatTSV, nil
	case "table", "":
		return export.FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func isTTY(out io.Writer) bool {
	return termenv.NewOutput(out).ColorProfile() != termenv.Ascii
}

func startSearchIndicator(ctx *Context) func() {
	if ctx == nil || ctx.Err == nil || ctx.UI == nil || !isTTY(ctx.Err) {
		return nil
	}

	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		start := time.Now()
		frames := []string{"|", "/", "-", "\\"}
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for index := 0; ; index++ {
			select {
			case <-done:
				fmt.Fprint(ctx.Err, "\r\033[2K")
				return
			case <-ticker.C:
				seconds := int(time.Since(start).Seconds())
				fmt.Fprintf(ctx.Err, "\r\033[2KSearching... %ds %s", seconds, frames[index%len(frames)])
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
