package source

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const joobleBaseURL = "https://jooble.org"

// JoobleOptions configures the Jooble keyword+location POST search.
type JoobleOptions struct {
	APIKey          string
	BaseURL         string
	DefaultLocation string
}

type Jooble struct {
	base
	opts JoobleOptions
}

type joobleRequest struct {
	Keywords string `json:"keywords"`
	Location string `json:"location"`
	Page     int    `json:"page"`
	Size     int    `json:"size"`
}

func NewJooble(opts JoobleOptions, deps Deps) *Jooble {
	opts.BaseURL = strings.TrimSuffix(orDefault(opts.BaseURL, joobleBaseURL), "/")
	return &Jooble{base: newBase(SourceJooble, deps), opts: opts}
}

func (j *Jooble) Search(ctx context.Context, query models.Query) []models.Posting {
	query = query.Normalize()
	return j.search(ctx, request{
		query:   query,
		enabled: j.opts.APIKey != "",
		build: func(ctx context.Context) (*fhttp.Request, error) {
			body, err := json.Marshal(joobleRequest{
				Keywords: query.What,
				Location: orDefault(query.Where, j.opts.DefaultLocation),
				Page:     query.Page,
				Size:     query.ResultsPerPage,
			})
			if err != nil {
				return nil, err
			}
			// the key is part of the path, so this URL must never be logged
			target := j.opts.BaseURL + "/api/" + url.PathEscape(j.opts.APIKey)
			req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodPost, target, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			return req, nil
		},
		extract: func(payload map[string]any) []models.Posting {
			results := objects(payload["jobs"])
			if len(results) == 0 {
				results = objects(payload["results"])
			}
			out := make([]models.Posting, 0, len(results))
			for _, item := range results {
				out = append(out, jooblePosting(item))
			}
			return out
		},
	})
}

func jooblePosting(item map[string]any) models.Posting {
	return models.Posting{
		Title:       cleanText(stringValue(item["title"])),
		Company:     stringValue(item["company"]),
		Location:    stringValue(item["location"], item["city"]),
		Description: cleanText(stringValue(item["snippet"], item["description"])),
		URL:         stringValue(item["link"], item["url"]),
		PostedAt:    models.StringPtr(stringValue(item["updated"], item["created"])),
		Source:      SourceJooble,
	}
}
