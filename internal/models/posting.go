package models

import (
	"strings"
	"time"
)

// Posting is the normalized listing returned by every source adapter.
type Posting struct {
	Title       string  `json:"title"`
	Company     string  `json:"company"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	PostedAt    *string `json:"posted_at,omitempty"`
	Source      string  `json:"source"`
}

var postedLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

// PostedTime parses PostedAt. ok is false when the source supplied no
// timestamp or one in an unknown layout.
func (p Posting) PostedTime() (time.Time, bool) {
	if p.PostedAt == nil {
		return time.Time{}, false
	}
	value := strings.TrimSpace(*p.PostedAt)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range postedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DedupKey is the lower-cased title|company|location triple.
func (p Posting) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(p.Title)) + "|" +
		strings.ToLower(strings.TrimSpace(p.Company)) + "|" +
		strings.ToLower(strings.TrimSpace(p.Location))
}

// StringPtr returns nil for blank values so optional timestamps stay absent.
func StringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Match is a posting accepted by the scan classifier.
type Match struct {
	Posting
	Reason string   `json:"why_matched"`
	Tags   []string `json:"tags,omitempty"`
}
