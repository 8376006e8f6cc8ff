package seen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MrJJimenez/jobscan/internal/models"
)

var errPathRequired = errors.New("path is required")

// ReadPostings reads a JSON array of postings, e.g. the output of
// `jobscan search --json`.
func ReadPostings(path string) ([]models.Posting, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errPathRequired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []models.Posting{}, nil
	}

	var postings []models.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if postings == nil {
		postings = []models.Posting{}
	}
	return postings, nil
}

// ReadPostingsAllowMissing treats a missing file as empty history.
func ReadPostingsAllowMissing(path string) ([]models.Posting, error) {
	postings, err := ReadPostings(path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Posting{}, nil
	}
	return postings, err
}

// WritePostings writes postings as indented JSON.
func WritePostings(path string, postings []models.Posting) error {
	if strings.TrimSpace(path) == "" {
		return errPathRequired
	}
	if postings == nil {
		postings = []models.Posting{}
	}
	data, err := json.MarshalIndent(postings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
