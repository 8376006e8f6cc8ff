package models

const (
	MinResultsPerPage     = 10
	MaxResultsPerPage     = 50
	DefaultResultsPerPage = 20
)

// Query captures the search inputs passed to the aggregator and adapters.
type Query struct {
	What           string
	Where          string
	Page           int
	ResultsPerPage int
}

// Normalize clamps paging into the range the providers accept.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.ResultsPerPage <= 0:
		q.ResultsPerPage = DefaultResultsPerPage
	case q.ResultsPerPage < MinResultsPerPage:
		q.ResultsPerPage = MinResultsPerPage
	case q.ResultsPerPage > MaxResultsPerPage:
		q.ResultsPerPage = MaxResultsPerPage
	}
	return q
}

// Result is what the aggregator hands back to callers.
type Result struct {
	Items         []Posting `json:"items"`
	SourcesCalled []string  `json:"sources_called"`
	Total         int       `json:"total"`
}
