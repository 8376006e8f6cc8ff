package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MrJJimenez/jobscan/internal/models"
)

func samplePostings() []models.Posting {
	return []models.Posting{
		{
			Title:       "Data Analyst",
			Company:     "Acme",
			Location:    "Toronto, CA",
			Description: "Build   dashboards\nwith SQL",
			URL:         "https://www.example.com/jobs/1?ref=x",
			PostedAt:    models.StringPtr("2025-08-30T10:00:00Z"),
			Source:      "adzuna",
		},
		{Title: "BI Developer", Company: "Beta", Source: "jooble"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePostings(&buf, samplePostings(), FormatCSV, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "source,title,company,location,url,posted_at,description" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][5] != "2025-08-30T10:00:00Z" || rows[1][6] != "Build dashboards with SQL" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
	if rows[2][5] != "" {
		t.Fatalf("missing posted_at should be blank: %v", rows[2])
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePostings(&buf, samplePostings(), FormatTSV, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if strings.Count(first, "\t") != 6 {
		t.Fatalf("expected tab separated header, got %q", first)
	}
}

func TestWriteJSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePostings(&buf, nil, FormatJSON, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	var decoded []models.Posting
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", buf.String())
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePostings(&buf, samplePostings(), FormatMarkdown, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"- **Data Analyst** (Acme)",
		"  Source: adzuna",
		"  URL: [Open listing](<https://www.example.com/jobs/1?ref=x>)",
		"  Posted: 2025-08-30T10:00:00Z",
		"  Location: -",
		"  URL: -",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WritePostings(&buf, nil, FormatMarkdown, WriteOptions{}); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	if buf.String() != "No results.\n" {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}
}

func TestTableShortLinks(t *testing.T) {
	var buf bytes.Buffer
	opts := WriteOptions{Hyperlinks: true, LinkStyle: LinkStyleShort}
	if err := WritePostings(&buf, samplePostings()[:1], FormatTable, opts); err != nil {
		t.Fatalf("WritePostings() error = %v", err)
	}
	if !strings.Contains(buf.String(), "example.com/jobs/1") {
		t.Fatalf("expected short label in table: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "\x1b]8;;https://www.example.com/jobs/1?ref=x") {
		t.Fatalf("expected OSC 8 hyperlink: %q", buf.String())
	}
}

func TestSnippetTruncatesOnRunes(t *testing.T) {
	long := strings.Repeat("é", maxSnippetRunes+10)
	got := snippet(long)
	if len([]rune(got)) != maxSnippetRunes || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected snippet length %d", len([]rune(got)))
	}
}
