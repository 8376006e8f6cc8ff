package cache

import (
	"reflect"
	"testing"
	"time"

	"github.com/MrJJimenez/jobscan/internal/models"
)

func TestSetGetRoundTrip(t *testing.T) {
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	c := New(time.Hour, WithClock(func() time.Time { return now }))

	value := []models.Posting{{Title: "Data Analyst", Company: "Acme", Source: "adzuna"}}
	key := Key("adzuna", "Data", "Toronto", 1, 20)
	c.Set(key, value)

	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("Get() = %+v, want %+v", got, value)
	}
}

func TestGetExpiresLazily(t *testing.T) {
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	c := New(10*time.Second, WithClock(func() time.Time { return now }))

	c.Set("k", []models.Posting{{Title: "x"}})

	now = now.Add(10 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry exactly at TTL should still be served")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read, Len() = %d", c.Len())
	}
}

func TestKeyNormalizesQuery(t *testing.T) {
	got := Key("jsearch", "Junior DATA", "Toronto", 2, 25)
	want := "jsearch|junior data|toronto|2|25"
	if got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
	if Key("adzuna", "x", "y", 1, 10) == Key("jooble", "x", "y", 1, 10) {
		t.Fatalf("keys for different sources must differ")
	}
}

func TestSetNilStoresEmptyHit(t *testing.T) {
	c := New(0)
	c.Set("empty", nil)
	got, ok := c.Get("empty")
	if !ok || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil hit, got %v %v", got, ok)
	}
}
