package seen

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/MrJJimenez/jobscan/internal/models"
)

const dateLayout = "2006-01-02"

// ErrCorrupt is returned by Load alongside an empty store when the file
// exists but cannot be decoded.
var ErrCorrupt = errors.New("seen store is corrupt")

// Entry is one previously notified posting.
type Entry struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen,omitempty"`
	URL       string `json:"url"`
}

type document struct {
	LastUpdated string           `json:"last_updated"`
	SeenJobs    map[string]Entry `json:"seen_jobs"`
}

// Store is the hash-keyed seen history used by scans.
type Store struct {
	mu          sync.Mutex
	lastUpdated string
	entries     map[string]Entry
}

func NewStore() *Store {
	return &Store{entries: map[string]Entry{}}
}

// Hash is the md5 of lower(title)-lower(company)-lower(location).
func Hash(title, company, location string) string {
	sum := md5.Sum([]byte(strings.ToLower(title) + "-" + strings.ToLower(company) + "-" + strings.ToLower(location)))
	return hex.EncodeToString(sum[:])
}

func hashOf(p models.Posting) string {
	return Hash(p.Title, p.Company, p.Location)
}

// Load reads the store at path. A missing or empty file is an empty store.
func Load(path string) (*Store, error) {
	store := NewStore()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return store, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return store, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return store, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	store.lastUpdated = doc.LastUpdated
	for hash, entry := range doc.SeenJobs {
		store.entries[hash] = entry
	}
	return store, nil
}

// Save stamps last_updated and writes the store atomically while holding
// an exclusive lock on path+".lock".
func (s *Store) Save(path string, now time.Time) error {
	if strings.TrimSpace(path) == "" {
		return errPathRequired
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	s.mu.Lock()
	s.lastUpdated = now.Format(time.RFC3339)
	doc := document{LastUpdated: s.lastUpdated, SeenJobs: make(map[string]Entry, len(s.entries))}
	for hash, entry := range s.entries {
		doc.SeenJobs[hash] = entry
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Prune drops entries last seen (or first seen, for older files) before
// now minus days. It returns the number removed.
func (s *Store) Prune(now time.Time, days int) int {
	if days <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -days).Format(dateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, entry := range s.entries {
		seen := entry.LastSeen
		if seen == "" {
			seen = entry.FirstSeen
		}
		if seen == "" {
			seen = "0000-00-00"
		}
		if seen < cutoff {
			delete(s.entries, hash)
			removed++
		}
	}
	return removed
}

func (s *Store) Contains(p models.Posting) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[hashOf(p)]
	return ok
}

// Diff returns the postings not yet in the store, in input order.
func (s *Store) Diff(postings []models.Posting) []models.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Posting, 0, len(postings))
	for _, p := range postings {
		if _, ok := s.entries[hashOf(p)]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Mark records postings as seen on now's date. first_seen is set only on
// insert. It returns the number of new entries.
func (s *Store) Mark(postings []models.Posting, now time.Time) int {
	today := now.Format(dateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range postings {
		hash := hashOf(p)
		entry, ok := s.entries[hash]
		if !ok {
			location := p.Location
			if strings.TrimSpace(location) == "" {
				location = "Remote/Unknown"
			}
			entry = Entry{
				Title:     p.Title,
				Company:   p.Company,
				Location:  location,
				FirstSeen: today,
				URL:       p.URL,
			}
			added++
		}
		entry.LastSeen = today
		s.entries[hash] = entry
	}
	return added
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) LastUpdated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Entries returns a snapshot sorted by first_seen, newest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen > out[j].FirstSeen
		}
		return out[i].Title < out[j].Title
	})
	return out
}
