package filter

import (
	"fmt"
	"strings"

	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/models"
)

var (
	DefaultEligible = []string{
		"co-op", "coop", "intern", "internship", "co-operative",
		"work-study", "student", "new grad", "entry level",
	}
	DefaultIneligible = []string{
		"permanent resident", "pr required", "citizenship required",
		"security clearance", "must be citizen", "canadian citizen only",
	}
	DefaultPreferred = []string{
		"fall 2025", "september 2025", "sept 2025", "sep 2025",
		"fall", "september", "sept", "sep", "autumn 2025",
		"starting september", "begin september", "sep-dec", "sept-dec",
	}
	DefaultExcluded = []string{
		"winter 2025", "winter 2026", "spring 2025", "spring 2026",
		"summer 2025", "january 2025", "january 2026", "jan 2025", "jan 2026",
		"may 2025", "may 2026", "summer", "january", "jan", "may",
	}
)

const (
	DefaultTermLabel = "Fall 2025"
	DefaultTermYear  = "2025"
)

// Classifier accepts or rejects postings by plain substring matching over
// the lower-cased title and description. The first matching list decides.
type Classifier struct {
	Eligible   []string
	Ineligible []string
	Preferred  []string
	Excluded   []string
	TermLabel  string
	TermYear   string
}

func Default() Classifier {
	return Classifier{
		Eligible:   DefaultEligible,
		Ineligible: DefaultIneligible,
		Preferred:  DefaultPreferred,
		Excluded:   DefaultExcluded,
		TermLabel:  DefaultTermLabel,
		TermYear:   DefaultTermYear,
	}
}

// FromConfig builds a classifier, keeping defaults for empty lists.
func FromConfig(cfg config.Eligibility) Classifier {
	c := Default()
	if len(cfg.Eligible) > 0 {
		c.Eligible = cfg.Eligible
	}
	if len(cfg.Ineligible) > 0 {
		c.Ineligible = cfg.Ineligible
	}
	if len(cfg.Preferred) > 0 {
		c.Preferred = cfg.Preferred
	}
	if len(cfg.Excluded) > 0 {
		c.Excluded = cfg.Excluded
	}
	if strings.TrimSpace(cfg.TermLabel) != "" {
		c.TermLabel = cfg.TermLabel
	}
	if strings.TrimSpace(cfg.TermYear) != "" {
		c.TermYear = cfg.TermYear
	}
	return c
}

// Classify reports whether a posting should be notified about and why.
func (c Classifier) Classify(p models.Posting) (bool, string) {
	text := strings.ToLower(p.Title + " " + p.Description)

	if kw, ok := firstMatch(text, c.Ineligible); ok {
		return false, "requires " + kw
	}
	if kw, ok := firstMatch(text, c.Excluded); ok {
		return false, "wrong term: " + kw
	}

	keyword, ok := firstMatch(text, c.Eligible)
	if !ok {
		return false, "no eligible keywords found"
	}

	if term, ok := firstMatch(text, c.Preferred); ok {
		return true, fmt.Sprintf("%s %s (matched '%s')", c.TermLabel, keyword, term)
	}

	// A posting that names the term year without a preferred term is for
	// some other term.
	year := strings.ToLower(strings.TrimSpace(c.TermYear))
	if year != "" && strings.Contains(text, year) {
		return false, "not " + c.TermLabel + " term"
	}
	return true, fmt.Sprintf("generic %s (could be %s)", keyword, c.TermLabel)
}

// Filter returns the eligible postings paired with their reasons.
func (c Classifier) Filter(postings []models.Posting) []models.Match {
	var out []models.Match
	for _, p := range postings {
		if ok, reason := c.Classify(p); ok {
			out = append(out, models.Match{Posting: p, Reason: reason})
		}
	}
	return out
}

func firstMatch(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle != "" && strings.Contains(text, needle) {
			return needle, true
		}
	}
	return "", false
}
