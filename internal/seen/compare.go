package seen

import (
	"strings"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const keySeparator = "::"

// DiffStats captures stats for A-B unseen filtering.
type DiffStats struct {
	TotalNew    int
	TotalSeen   int
	InvalidNew  int
	InvalidSeen int
	Unseen      int
}

// InvalidSkipped returns the total invalid records skipped during comparison.
func (s DiffStats) InvalidSkipped() int {
	return s.InvalidNew + s.InvalidSeen
}

// MergeStats captures stats for seen history updates.
type MergeStats struct {
	TotalSeen    int
	TotalInput   int
	InvalidSeen  int
	InvalidInput int
	Added        int
	TotalOut     int
}

// InvalidSkipped returns the total invalid records skipped during merge.
func (s MergeStats) InvalidSkipped() int {
	return s.InvalidSeen + s.InvalidInput
}

// Normalize lower-cases and collapses whitespace.
func Normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// Key builds the normalized title+company key for a posting. Postings
// missing either field have no key.
func Key(p models.Posting) (string, bool) {
	title := Normalize(p.Title)
	company := Normalize(p.Company)
	if title == "" || company == "" {
		return "", false
	}
	return title + keySeparator + company, true
}

type keySet map[string]struct{}

// add reports whether key was new.
func (s keySet) add(key string) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Diff returns postings from fresh whose key is not in history. Repeated
// keys within fresh are reported once.
func Diff(fresh, history []models.Posting) ([]models.Posting, DiffStats) {
	stats := DiffStats{TotalNew: len(fresh), TotalSeen: len(history)}

	known := make(keySet, len(history))
	for _, p := range history {
		key, ok := Key(p)
		if !ok {
			stats.InvalidSeen++
			continue
		}
		known.add(key)
	}

	emitted := make(keySet, len(fresh))
	unseen := make([]models.Posting, 0, len(fresh))
	for _, p := range fresh {
		key, ok := Key(p)
		if !ok {
			stats.InvalidNew++
			continue
		}
		if !emitted.add(key) {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		unseen = append(unseen, p)
	}

	stats.Unseen = len(unseen)
	return unseen, stats
}

// Merge appends unseen input postings to history. History entries win
// collisions; keyless history entries are kept as-is.
func Merge(history, input []models.Posting) ([]models.Posting, MergeStats) {
	stats := MergeStats{TotalSeen: len(history), TotalInput: len(input)}

	keys := make(keySet, len(history)+len(input))
	out := make([]models.Posting, 0, len(history)+len(input))

	for _, p := range history {
		key, ok := Key(p)
		if !ok {
			stats.InvalidSeen++
			out = append(out, p)
			continue
		}
		if keys.add(key) {
			out = append(out, p)
		}
	}

	for _, p := range input {
		key, ok := Key(p)
		if !ok {
			stats.InvalidInput++
			continue
		}
		if keys.add(key) {
			out = append(out, p)
			stats.Added++
		}
	}

	stats.TotalOut = len(out)
	return out, stats
}
