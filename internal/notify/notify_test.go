package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/models"
)

func sampleMatches() []models.Match {
	return []models.Match{
		{
			Posting: models.Posting{Title: "Software Co-op", Company: "Acme", Location: "Toronto, CA", URL: "https://example.com/1"},
			Reason:  "Fall 2025 co-op (matched 'fall 2025')",
			Tags:    []string{"graduate", "software engineer"},
		},
		{
			Posting: models.Posting{Title: "Data Intern", Company: "Beta"},
			Reason:  "generic intern (could be Fall 2025)",
		},
	}
}

func TestDigest(t *testing.T) {
	got := Digest(sampleMatches())

	for _, want := range []string{
		"# jobscan: 2 new matches",
		"1. **Software Co-op** at Acme (Toronto, CA)",
		"   - why: Fall 2025 co-op (matched 'fall 2025')",
		"   - tags: graduate, software engineer",
		"   - https://example.com/1",
		"2. **Data Intern** at Beta (Remote/Unknown)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("digest missing %q:\n%s", want, got)
		}
	}
}

func TestWriterSender(t *testing.T) {
	var buf bytes.Buffer
	sender := WriterSender{W: &buf}

	if err := sender.Send(context.Background(), nil); err != nil {
		t.Fatalf("Send(nil) error = %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("empty batch should write nothing")
	}
	if err := sender.Send(context.Background(), sampleMatches()[:1]); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "# jobscan: 1 new match\n") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestSMTPSenderComposesMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
		gotAuth smtp.Auth
	)
	sender := NewSMTPSender(config.SMTP{
		Host:     "smtp.example.com",
		Username: "bot",
		Password: "secret",
		From:     "bot@example.com",
		To:       []string{"me@example.com", "you@example.com"},
	})
	sender.now = func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	if err := sender.Send(context.Background(), sampleMatches()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if gotAuth == nil {
		t.Fatalf("expected PLAIN auth when username is set")
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 2 {
		t.Fatalf("envelope = %q %v", gotFrom, gotTo)
	}

	r, err := mail.CreateReader(bytes.NewReader(gotMsg))
	if err != nil {
		t.Fatalf("parse composed message: %v", err)
	}
	subject, err := r.Header.Subject()
	if err != nil || subject != "jobscan: 2 new matches" {
		t.Fatalf("Subject = %q, %v", subject, err)
	}
	part, err := r.NextPart()
	if err != nil {
		t.Fatalf("NextPart() error = %v", err)
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "**Software Co-op** at Acme") {
		t.Fatalf("body missing digest: %s", body)
	}
}

func TestSMTPSenderRequiresSettings(t *testing.T) {
	sender := NewSMTPSender(config.SMTP{Host: "smtp.example.com"})
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatalf("send should not be called")
		return nil
	}

	if err := sender.Send(context.Background(), nil); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
	if err := sender.Send(context.Background(), sampleMatches()); !errors.Is(err, ErrMissingSMTP) {
		t.Fatalf("expected ErrMissingSMTP, got %v", err)
	}
}

func TestSMTPSenderWrapsSendError(t *testing.T) {
	boom := errors.New("connection refused")
	sender := NewSMTPSender(config.SMTP{Host: "localhost", Port: 2525, From: "a@example.com", To: []string{"b@example.com"}})
	sender.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := sender.Send(context.Background(), sampleMatches())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "localhost:2525") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := LogSender{Logger: zerolog.New(&buf)}

	if err := sender.Send(context.Background(), sampleMatches()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one log line per match, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"title":"Software Co-op"`) || !strings.Contains(lines[0], `"message":"new match"`) {
		t.Fatalf("unexpected log line: %s", lines[0])
	}
}

func TestConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.SMTP
		want bool
	}{
		{"defaults", config.DefaultConfig().SMTP, false},
		{"no recipients", config.SMTP{Host: "smtp.example.com", From: "a@example.com"}, false},
		{"no sender", config.SMTP{Host: "smtp.example.com", To: []string{"b@example.com"}}, false},
		{"complete", config.SMTP{Host: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Configured(tc.cfg); got != tc.want {
				t.Fatalf("Configured() = %v, want %v", got, tc.want)
			}
		})
	}
}
