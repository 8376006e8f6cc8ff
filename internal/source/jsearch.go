package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const (
	jsearchBaseURL = "https://jsearch.p.rapidapi.com"
	jsearchHost    = "jsearch.p.rapidapi.com"
	jsearchCountry = "ca"
)

// JSearchOptions configures the RapidAPI-hosted JSearch endpoint.
type JSearchOptions struct {
	APIKey  string
	BaseURL string
	Country string
}

type JSearch struct {
	base
	opts JSearchOptions
}

func NewJSearch(opts JSearchOptions, deps Deps) *JSearch {
	opts.BaseURL = strings.TrimSuffix(orDefault(opts.BaseURL, jsearchBaseURL), "/")
	opts.Country = strings.ToLower(orDefault(opts.Country, jsearchCountry))
	return &JSearch{base: newBase(SourceJSearch, deps), opts: opts}
}

func (j *JSearch) Search(ctx context.Context, query models.Query) []models.Posting {
	query = query.Normalize()
	return j.search(ctx, request{
		query:   query,
		enabled: j.opts.APIKey != "",
		build: func(ctx context.Context) (*fhttp.Request, error) {
			values := url.Values{}
			values.Set("query", query.What)
			values.Set("page", fmt.Sprint(query.Page))
			values.Set("num_pages", "1")
			values.Set("country", j.opts.Country)

			req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, j.opts.BaseURL+"/search?"+values.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-RapidAPI-Key", j.opts.APIKey)
			req.Header.Set("X-RapidAPI-Host", jsearchHost)
			req.Header.Set("Accept", "application/json")
			return req, nil
		},
		extract: func(payload map[string]any) []models.Posting {
			results := objects(payload["data"])
			out := make([]models.Posting, 0, len(results))
			for _, item := range results {
				out = append(out, jsearchPosting(item))
			}
			return out
		},
	})
}

func jsearchPosting(item map[string]any) models.Posting {
	country := stringValue(item["job_country"])
	if country == "" {
		country = "CA"
	}
	return models.Posting{
		Title:       cleanText(stringValue(item["job_title"])),
		Company:     stringValue(item["employer_name"]),
		Location:    joinNonEmpty(", ", stringValue(item["job_city"]), country),
		Description: cleanText(stringValue(item["job_description"])),
		URL:         stringValue(item["job_apply_link"]),
		PostedAt:    models.StringPtr(stringValue(item["job_posted_at_datetime_utc"])),
		Source:      SourceJSearch,
	}
}
