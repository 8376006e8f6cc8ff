package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/muesli/termenv"

	"github.com/MrJJimenez/jobscan/internal/models"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

const (
	linkColor       = "#87CEEB"
	maxSnippetRunes = 200
)

func WritePostings(w io.Writer, postings []models.Posting, format Format, opts WriteOptions) error {
	if postings == nil {
		postings = []models.Posting{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, postings)
	case FormatCSV:
		return writeCSV(w, postings, ',')
	case FormatTSV:
		return writeCSV(w, postings, '\t')
	case FormatMarkdown:
		return writeMarkdown(w, postings)
	default:
		return writeTable(w, postings, opts)
	}
}

func writeJSON(w io.Writer, postings []models.Posting) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(postings)
}

func writeCSV(w io.Writer, postings []models.Posting, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range postings {
		if err := writer.Write(csvRow(p)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(w io.Writer, postings []models.Posting, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "source\ttitle\tcompany\tlocation\turl")
	output := termenv.NewOutput(w)
	for _, p := range postings {
		fmt.Fprintln(tw, strings.Join(tableRow(p, output, opts), "\t"))
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, postings []models.Posting) error {
	if len(postings) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for _, p := range postings {
		urlLine := "  URL: -"
		if link := safe(p.URL); link != "" {
			urlLine = fmt.Sprintf("  URL: [Open listing](<%s>)", link)
		}
		lines := []string{
			fmt.Sprintf("- **%s** (%s)", safe(p.Title), safe(p.Company)),
			fmt.Sprintf("  Location: %s", orDash(p.Location)),
			fmt.Sprintf("  Source: %s", safe(p.Source)),
			urlLine,
		}
		if posted := postedAt(p); posted != "" {
			lines = append(lines, fmt.Sprintf("  Posted: %s", posted))
		}
		if summary := snippet(p.Description); summary != "" {
			lines = append(lines, fmt.Sprintf("  Summary: %s", summary))
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

var csvHeader = []string{"source", "title", "company", "location", "url", "posted_at", "description"}

func csvRow(p models.Posting) []string {
	return []string{
		p.Source,
		p.Title,
		p.Company,
		p.Location,
		p.URL,
		postedAt(p),
		snippet(p.Description),
	}
}

func postedAt(p models.Posting) string {
	if p.PostedAt == nil {
		return ""
	}
	return safe(*p.PostedAt)
}

// snippet collapses whitespace and cuts long descriptions on a rune
// boundary.
func snippet(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= maxSnippetRunes {
		return value
	}
	return string(runes[:maxSnippetRunes-3]) + "..."
}

func safe(value string) string {
	return strings.TrimSpace(value)
}

func orDash(value string) string {
	if v := safe(value); v != "" {
		return v
	}
	return "-"
}

func tableRow(p models.Posting, output *termenv.Output, opts WriteOptions) []string {
	link := safe(p.URL)
	displayURL := "-"
	if link != "" {
		displayURL = link
		if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
			displayURL = shortURLLabel(link)
		}
		if opts.ColorEnabled {
			displayURL = output.String(displayURL).Foreground(output.Color(linkColor)).String()
		}
		if opts.Hyperlinks {
			displayURL = hyperlink(link, displayURL)
		}
	}
	return []string{
		safe(p.Source),
		safe(p.Title),
		safe(p.Company),
		orDash(p.Location),
		displayURL,
	}
}

func hyperlink(target string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + target + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	const maxLen = 60
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		if host := strings.TrimPrefix(parsed.Host, "www."); host != "" {
			label = host + parsed.Path
		}
	}
	if label == "" {
		label = raw
	}
	if len(label) > maxLen {
		label = label[:maxLen-3] + "..."
	}
	return label
}
