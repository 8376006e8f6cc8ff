package filter

import (
	"testing"

	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/models"
)

func TestClassify(t *testing.T) {
	c := Default()

	cases := []struct {
		name       string
		job        models.Posting
		wantOK     bool
		wantReason string
	}{
		{
			name:       "ineligible wins",
			job:        models.Posting{Title: "Software Co-op", Description: "Security clearance needed, fall start"},
			wantOK:     false,
			wantReason: "requires security clearance",
		},
		{
			name:       "excluded term",
			job:        models.Posting{Title: "Software Intern", Description: "Winter 2026 placement"},
			wantOK:     false,
			wantReason: "wrong term: winter 2026",
		},
		{
			name:       "no keywords",
			job:        models.Posting{Title: "Senior Engineer", Description: "Lead the platform team"},
			wantOK:     false,
			wantReason: "no eligible keywords found",
		},
		{
			name:       "preferred term",
			job:        models.Posting{Title: "Software Co-op", Description: "Fall 2025 term"},
			wantOK:     true,
			wantReason: "Fall 2025 co-op (matched 'fall 2025')",
		},
		{
			name:       "generic",
			job:        models.Posting{Title: "Data Intern", Description: "Work on dashboards"},
			wantOK:     true,
			wantReason: "generic intern (could be Fall 2025)",
		},
		{
			name:       "other term in year",
			job:        models.Posting{Title: "Student Developer", Description: "Starts October 2025"},
			wantOK:     false,
			wantReason: "not Fall 2025 term",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := c.Classify(tc.job)
			if ok != tc.wantOK || reason != tc.wantReason {
				t.Fatalf("Classify() = (%v, %q), want (%v, %q)", ok, reason, tc.wantOK, tc.wantReason)
			}
		})
	}
}

func TestFromConfigOverrides(t *testing.T) {
	c := FromConfig(config.Eligibility{
		Eligible:  []string{"graduate"},
		Preferred: []string{"winter 2027"},
		Excluded:  []string{"contract"},
		TermLabel: "Winter 2027",
		TermYear:  "2027",
	})

	if len(c.Ineligible) != len(DefaultIneligible) {
		t.Fatalf("empty ineligible list should keep defaults")
	}

	ok, reason := c.Classify(models.Posting{Title: "Graduate Analyst", Description: "Winter 2027 intake"})
	if !ok || reason != "Winter 2027 graduate (matched 'winter 2027')" {
		t.Fatalf("Classify() = (%v, %q)", ok, reason)
	}

	ok, _ = c.Classify(models.Posting{Title: "Graduate Analyst", Description: "contract role"})
	if ok {
		t.Fatalf("excluded term should reject")
	}
}

func TestFilter(t *testing.T) {
	jobs := []models.Posting{
		{Title: "Software Co-op", Company: "Acme"},
		{Title: "Principal Engineer", Company: "Beta"},
		{Title: "QA Intern", Company: "Gamma", Description: "September 2025"},
	}

	matches := Default().Filter(jobs)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Company != "Acme" || matches[1].Company != "Gamma" {
		t.Fatalf("unexpected order: %+v", matches)
	}
	if matches[1].Reason != "Fall 2025 intern (matched 'september 2025')" {
		t.Fatalf("unexpected reason: %q", matches[1].Reason)
	}
}
