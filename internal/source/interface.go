package source

import (
	"context"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const (
	SourceAdzuna  = "adzuna"
	SourceJooble  = "jooble"
	SourceJSearch = "jsearch"
)

// Adapter wraps one job-search provider. Search is total: every failure
// (missing credentials, local rate limit, provider errors) degrades to an
// empty slice and is only visible in the logs.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query models.Query) []models.Posting
}
