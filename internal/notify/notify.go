package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"github.com/MrJJimenez/jobscan/internal/config"
	"github.com/MrJJimenez/jobscan/internal/models"
)

var ErrMissingSMTP = errors.New("smtp host, sender and recipients are required")

// Sender delivers the matches of one scan. Implementations do nothing for
// an empty slice.
type Sender interface {
	Send(ctx context.Context, matches []models.Match) error
}

// Subject is the notification title for a batch of matches.
func Subject(matches []models.Match) string {
	if len(matches) == 1 {
		return "jobscan: 1 new match"
	}
	return fmt.Sprintf("jobscan: %d new matches", len(matches))
}

// Digest renders matches as a markdown list.
func Digest(matches []models.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Subject(matches))
	for i, m := range matches {
		location := m.Location
		if strings.TrimSpace(location) == "" {
			location = "Remote/Unknown"
		}
		fmt.Fprintf(&b, "%d. **%s** at %s (%s)\n", i+1, m.Title, m.Company, location)
		if m.Reason != "" {
			fmt.Fprintf(&b, "   - why: %s\n", m.Reason)
		}
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "   - tags: %s\n", strings.Join(m.Tags, ", "))
		}
		if m.URL != "" {
			fmt.Fprintf(&b, "   - %s\n", m.URL)
		}
	}
	return b.String()
}

// WriterSender prints the digest, e.g. to stdout for dry runs.
type WriterSender struct {
	W io.Writer
}

func (s WriterSender) Send(_ context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := io.WriteString(s.W, Digest(matches))
	return err
}

// LogSender records matches in the log only. Scans use it when no mail
// transport is configured so matches are still marked seen.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, matches []models.Match) error {
	for _, m := range matches {
		s.Logger.Info().
			Str("source", m.Source).
			Str("title", m.Title).
			Str("company", m.Company).
			Str("url", m.URL).
			Str("why_matched", m.Reason).
			Msg("new match")
	}
	return nil
}

// Configured reports whether cfg names a host, a sender and at least one
// recipient.
func Configured(cfg config.SMTP) bool {
	return strings.TrimSpace(cfg.Host) != "" && strings.TrimSpace(cfg.From) != "" && len(cfg.To) > 0
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender mails the digest as text/plain.
type SMTPSender struct {
	cfg  config.SMTP
	now  func() time.Time
	send sendFunc
}

func NewSMTPSender(cfg config.SMTP) *SMTPSender {
	return &SMTPSender{cfg: cfg, now: time.Now, send: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	if !Configured(s.cfg) {
		return ErrMissingSMTP
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.compose(matches)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}

	port := s.cfg.Port
	if port <= 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.From, s.cfg.To, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

func (s *SMTPSender) compose(matches []models.Match) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetSubject(Subject(matches))
	h.SetAddressList("From", []*mail.Address{{Address: s.cfg.From}})
	to := make([]*mail.Address, 0, len(s.cfg.To))
	for _, addr := range s.cfg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, Digest(matches)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
