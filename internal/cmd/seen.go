package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/MrJJimenez/jobscan/internal/seen"
)

type SeenCmd struct {
	Diff   SeenDiffCmd   `cmd:"" help:"Write unseen postings (A-B) to JSON."`
	Update SeenUpdateCmd `cmd:"" help:"Merge new postings into a seen history JSON."`
	List   SeenListCmd   `cmd:"" help:"List the scan seen store."`
	Prune  SeenPruneCmd  `cmd:"" help:"Drop scan seen store entries older than the retention window."`
}

type SeenDiffCmd struct {
	New   string `name:"new" required:"" help:"Path to new postings JSON file (A)."`
	Seen  string `name:"seen" required:"" help:"Path to seen postings JSON file (B). Missing file is treated as empty."`
	Out   string `name:"out" required:"" help:"Output path for unseen postings JSON file (C)."`
	Stats bool   `name:"stats" help:"Print comparison stats."`
}

type SeenUpdateCmd struct {
	Seen  string `name:"seen" required:"" help:"Path to seen postings JSON file (B). Missing file is treated as empty."`
	Input string `name:"input" required:"" help:"Path to input postings JSON file to merge into seen history."`
	Out   string `name:"out" required:"" help:"Output path for updated seen postings JSON."`
	Stats bool   `name:"stats" help:"Print merge stats."`
}

type SeenListCmd struct{}

type SeenPruneCmd struct {
	Days int `help:"Retention in days (default: config seen_retention_days)."`
}

func (c *SeenDiffCmd) Run(ctx *Context) error {
	fresh, err := seen.ReadPostings(c.New)
	if err != nil {
		return fmt.Errorf("read --new: %w", err)
	}
	history, err := seen.ReadPostingsAllowMissing(c.Seen)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}

	unseen, stats := seen.Diff(fresh, history)
	if err := seen.WritePostings(c.Out, unseen); err != nil {
		return fmt.Errorf("write --out: %w", err)
	}
	if !c.Stats {
		return nil
	}
	_, err = fmt.Fprintf(ctx.Out, "total_new=%d total_seen=%d invalid_skipped=%d unseen_emitted=%d\n",
		stats.TotalNew, stats.TotalSeen, stats.InvalidSkipped(), stats.Unseen)
	return err
}

func (c *SeenUpdateCmd) Run(ctx *Context) error {
	history, err := seen.ReadPostingsAllowMissing(c.Seen)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}
	input, err := seen.ReadPostings(c.Input)
	if err != nil {
		return fmt.Errorf("read --input: %w", err)
	}

	merged, stats := seen.Merge(history, input)
	if err := seen.WritePostings(c.Out, merged); err != nil {
		return fmt.Errorf("write --out: %w", err)
	}
	if !c.Stats {
		return nil
	}
	_, err = fmt.Fprintf(ctx.Out, "total_seen=%d total_input=%d invalid_skipped=%d added=%d total_out=%d\n",
		stats.TotalSeen, stats.TotalInput, stats.InvalidSkipped(), stats.Added, stats.TotalOut)
	return err
}

func (c *SeenListCmd) Run(ctx *Context) error {
	path, err := ctx.Config.ResolveSeenPath()
	if err != nil {
		return err
	}
	store, err := seen.Load(path)
	if err != nil {
		return err
	}
	entries := store.Entries()

	if ctx.JSONOutput {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "first_seen\tlast_seen\ttitle\tcompany\tlocation")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.FirstSeen, e.LastSeen, e.Title, e.Company, e.Location)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if ctx.UI != nil {
		ctx.UI.Notef("%d entries in %s (last updated %s)", len(entries), path, store.LastUpdated())
	}
	return nil
}

func (c *SeenPruneCmd) Run(ctx *Context) error {
	path, err := ctx.Config.ResolveSeenPath()
	if err != nil {
		return err
	}
	store, err := seen.Load(path)
	if err != nil {
		return err
	}

	days := c.Days
	if days <= 0 {
		days = ctx.Config.SeenRetentionDays
	}
	now := ctx.now()
	removed := store.Prune(now, days)
	if err := store.Save(path, now); err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.Out, "removed=%d remaining=%d\n", removed, store.Len())
	return err
}
