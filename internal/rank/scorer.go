package rank

import (
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrJJimenez/jobscan/internal/models"
)

// Scorer assigns a relevance score to a posting. Higher ranks first.
type Scorer interface {
	Score(p models.Posting, now time.Time) float64
}

// Rule awards Weight when any of the phrases occurs in title+description.
type Rule struct {
	Tag    string   `yaml:"tag"`
	Weight float64  `yaml:"weight"`
	Any    []string `yaml:"any"`
}

// Rules is the scoring taxonomy. Seniority rules are exclusive (only the
// best match counts); keyword rules stack.
type Rules struct {
	Seniority      []Rule  `yaml:"seniority"`
	Keywords       []Rule  `yaml:"keywords"`
	MaxRecency     float64 `yaml:"max_recency"`
	RecencyHorizon int     `yaml:"recency_horizon_days"`
}

func DefaultRules() Rules {
	return Rules{
		Seniority: []Rule{
			{Tag: "junior", Weight: 10, Any: []string{"junior", "jr.", "entry level", "entry-level"}},
			{Tag: "graduate", Weight: 6, Any: []string{"graduate", "new grad", "associate", "intern", "internship", "co-op", "coop"}},
		},
		Keywords: []Rule{
			{Tag: "machine learning", Weight: 2, Any: []string{"machine learning"}},
			{Tag: "data scientist", Weight: 2, Any: []string{"data scientist"}},
			{Tag: "data analyst", Weight: 2, Any: []string{"data analyst"}},
			{Tag: "analytics", Weight: 2, Any: []string{"analytics"}},
			{Tag: "python", Weight: 2, Any: []string{"python"}},
			{Tag: "sql", Weight: 2, Any: []string{"sql"}},
			{Tag: "software engineer", Weight: 2, Any: []string{"software engineer", "software developer"}},
		},
		MaxRecency:     10,
		RecencyHorizon: 30,
	}
}

// LoadRules reads a YAML rules file; sections left empty keep defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, err
	}

	var overlay Rules
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return rules, err
	}
	if len(overlay.Seniority) > 0 {
		rules.Seniority = overlay.Seniority
	}
	if len(overlay.Keywords) > 0 {
		rules.Keywords = overlay.Keywords
	}
	if overlay.MaxRecency > 0 {
		rules.MaxRecency = overlay.MaxRecency
	}
	if overlay.RecencyHorizon > 0 {
		rules.RecencyHorizon = overlay.RecencyHorizon
	}
	return rules, nil
}

// KeywordScorer matches rule phrases as whole words, so "intern" does not
// hit "international" and "sql" does not hit "nosql".
type KeywordScorer struct {
	Rules Rules

	seniority []matcher
	keywords  []matcher
}

type matcher struct {
	rule Rule
	re   *regexp.Regexp
}

func NewKeywordScorer(rules Rules) KeywordScorer {
	return KeywordScorer{
		Rules:     rules,
		seniority: compileRules(rules.Seniority),
		keywords:  compileRules(rules.Keywords),
	}
}

// compileRules builds one case-insensitive pattern per rule. Boundaries are
// any non letter or digit rune, which keeps phrases like "jr." and "co-op"
// matchable where \b would not.
func compileRules(rules []Rule) []matcher {
	out := make([]matcher, 0, len(rules))
	for _, rule := range rules {
		var alts []string
		for _, phrase := range rule.Any {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				alts = append(alts, regexp.QuoteMeta(strings.ToLower(phrase)))
			}
		}
		m := matcher{rule: rule}
		if len(alts) > 0 {
			m.re = regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(alts, "|") + `)(?:[^\pL\pN]|$)`)
		}
		out = append(out, m)
	}
	return out
}

func (m matcher) match(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}

func (s KeywordScorer) Score(p models.Posting, now time.Time) float64 {
	text := p.Title + " " + p.Description

	best := 0.0
	for _, m := range s.seniority {
		if m.rule.Weight > best && m.match(text) {
			best = m.rule.Weight
		}
	}

	score := best
	for _, m := range s.keywords {
		if m.match(text) {
			score += m.rule.Weight
		}
	}

	return score + s.recency(p, now)
}

// recency is MaxRecency for postings up to a day old, MaxRecency/ageDays
// up to the horizon, and zero beyond it or without a timestamp.
func (s KeywordScorer) recency(p models.Posting, now time.Time) float64 {
	posted, ok := p.PostedTime()
	if !ok {
		return 0
	}
	ageDays := now.Sub(posted).Hours() / 24
	if ageDays <= 1 {
		return s.Rules.MaxRecency
	}
	if s.Rules.RecencyHorizon > 0 && ageDays > float64(s.Rules.RecencyHorizon) {
		return 0
	}
	return math.Min(s.Rules.MaxRecency, s.Rules.MaxRecency/ageDays)
}

// Tags lists the rule tags a posting matched. Scans attach them to each
// match.
func (s KeywordScorer) Tags(p models.Posting) []string {
	text := p.Title + " " + p.Description
	var tags []string
	for _, group := range [][]matcher{s.seniority, s.keywords} {
		for _, m := range group {
			if m.match(text) {
				tags = append(tags, m.rule.Tag)
			}
		}
	}
	return tags
}

// Rank sorts by descending score. The sort is stable, so equal scores keep
// their input order.
func Rank(postings []models.Posting, scorer Scorer, now time.Time) []models.Posting {
	type scored struct {
		posting models.Posting
		score   float64
	}
	items := make([]scored, len(postings))
	for i, p := range postings {
		items[i] = scored{posting: p, score: scorer.Score(p, now)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	out := make([]models.Posting, len(items))
	for i, item := range items {
		out[i] = item.posting
	}
	return out
}
