package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const (
	adzunaBaseURL    = "https://api.adzuna.com"
	adzunaCountry    = "ca"
	adzunaMaxDaysOld = 14
)

// AdzunaOptions configures the Adzuna per-country search endpoint.
type AdzunaOptions struct {
	AppID           string
	AppKey          string
	Country         string
	BaseURL         string
	DefaultLocation string
}

type Adzuna struct {
	base
	opts AdzunaOptions
}

func NewAdzuna(opts AdzunaOptions, deps Deps) *Adzuna {
	opts.Country = strings.ToLower(orDefault(opts.Country, adzunaCountry))
	opts.BaseURL = strings.TrimSuffix(orDefault(opts.BaseURL, adzunaBaseURL), "/")
	return &Adzuna{base: newBase(SourceAdzuna, deps), opts: opts}
}

func (a *Adzuna) Search(ctx context.Context, query models.Query) []models.Posting {
	query = query.Normalize()
	return a.search(ctx, request{
		query:   query,
		enabled: a.opts.AppID != "" && a.opts.AppKey != "",
		build: func(ctx context.Context) (*fhttp.Request, error) {
			target, err := a.searchURL(query)
			if err != nil {
				return nil, err
			}
			req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			return req, nil
		},
		extract: func(payload map[string]any) []models.Posting {
			results := objects(payload["results"])
			out := make([]models.Posting, 0, len(results))
			for _, item := range results {
				out = append(out, adzunaPosting(item, a.opts.Country))
			}
			return out
		},
	})
}

func (a *Adzuna) searchURL(query models.Query) (string, error) {
	u, err := url.Parse(a.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("adzuna: parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, "v1", "api", "jobs", a.opts.Country, "search", fmt.Sprint(query.Page))

	values := url.Values{}
	values.Set("app_id", a.opts.AppID)
	values.Set("app_key", a.opts.AppKey)
	values.Set("what", query.What)
	values.Set("where", orDefault(query.Where, a.opts.DefaultLocation))
	values.Set("results_per_page", fmt.Sprint(query.ResultsPerPage))
	values.Set("max_days_old", fmt.Sprint(adzunaMaxDaysOld))
	values.Set("sort_by", "date")
	values.Set("content-type", "application/json")
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// adzunaPosting maps one results[] entry. The city is the last element of
// location.area; the configured country code is appended.
func adzunaPosting(item map[string]any, country string) models.Posting {
	city := ""
	if area := sliceValue(mapValue(item["location"], "area")); len(area) > 0 {
		city = stringValue(area[len(area)-1])
	}
	return models.Posting{
		Title:       cleanText(stringValue(item["title"])),
		Company:     stringValue(mapValue(item["company"], "display_name")),
		Location:    joinNonEmpty(", ", city, strings.ToUpper(country)),
		Description: cleanText(stringValue(item["description"])),
		URL:         stringValue(item["redirect_url"]),
		PostedAt:    models.StringPtr(stringValue(item["created"])),
		Source:      SourceAdzuna,
	}
}
