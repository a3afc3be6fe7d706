package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"sync"
	"time"

	"dommerportal/internal/config"
)

var (
	// ErrInvalidInput is returned when a contact submission fails validation
	ErrInvalidInput = errors.New("invalid contact submission")
	// ErrSpamSuspected is returned when a submission trips a spam heuristic
	ErrSpamSuspected = errors.New("submission rejected")
	// ErrTooManyRequests is returned when an address exceeds its window quota
	ErrTooManyRequests = errors.New("too many requests")
)

const (
	maxContactNameLen    = 80
	maxContactEmailLen   = 120
	maxContactMessageLen = 4000
)

var urlPattern = regexp.MustCompile(`(?i)(https?://|www\.)`)

// ContactMailer forwards contact form submissions
type ContactMailer interface {
	SendContactEmail(to, replyTo, subject, body string) error
}

// ContactInput carries a contact form submission
type ContactInput struct {
	Name    string
	Email   string
	Message string
	// Website is the honeypot field; humans never see it
	Website string
	// StartedAt is when the form was opened, in Unix milliseconds
	StartedAt int64
}

type contactWindow struct {
	start time.Time
	count int
}

// ContactService forwards contact submissions to the association and
// filters out bot traffic
type ContactService struct {
	mailer ContactMailer
	config *config.ContactConfig
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*contactWindow
}

// NewContactService creates a new contact service
func NewContactService(mailer ContactMailer, cfg *config.ContactConfig) *ContactService {
	return &ContactService{
		mailer:  mailer,
		config:  cfg,
		now:     time.Now,
		windows: make(map[string]*contactWindow),
	}
}

// Submit validates and forwards a contact form submission. A filled
// honeypot is swallowed silently so bots cannot tell they were caught.
func (s *ContactService) Submit(input ContactInput, ipAddress string) error {
	if input.Website != "" {
		slog.Info("Contact honeypot triggered", "ip", ipAddress)
		return nil
	}

	if input.Name == "" || input.Email == "" || input.Message == "" {
		return ErrInvalidInput
	}
	if len(input.Name) > maxContactNameLen ||
		len(input.Email) > maxContactEmailLen ||
		len(input.Message) > maxContactMessageLen {
		return ErrInvalidInput
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return ErrInvalidInput
	}
	// The form always stamps when it was opened; a request without the
	// stamp did not come from the form
	if input.StartedAt <= 0 {
		return ErrInvalidInput
	}

	if !s.allow(ipAddress) {
		return ErrTooManyRequests
	}

	elapsed := s.now().Sub(time.UnixMilli(input.StartedAt))
	if elapsed < s.config.MinFillTime {
		slog.Info("Contact form filled too fast", "ip", ipAddress, "elapsed", elapsed)
		return ErrSpamSuspected
	}

	if len(urlPattern.FindAllStringIndex(input.Message, -1)) > s.config.MaxLinks {
		slog.Info("Contact message rejected for link count", "ip", ipAddress)
		return ErrSpamSuspected
	}

	subject := fmt.Sprintf("Kontaktskjema: %s", input.Name)
	body := fmt.Sprintf("Navn: %s\r\nE-post: %s\r\n\r\n%s\r\n", input.Name, input.Email, input.Message)

	if err := s.mailer.SendContactEmail(s.config.Recipient, input.Email, subject, body); err != nil {
		return fmt.Errorf("failed to forward contact message: %w", err)
	}

	slog.Info("Contact message forwarded", "ip", ipAddress)
	return nil
}

// allow enforces a fixed window of submissions per source address
func (s *ContactService) allow(ipAddress string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[ipAddress]
	if !ok || now.Sub(w.start) >= s.config.Window {
		s.windows[ipAddress] = &contactWindow{start: now, count: 1}
		s.pruneLocked(now)
		return true
	}
	if w.count >= s.config.MaxRequests {
		return false
	}
	w.count++
	return true
}

// pruneLocked drops expired windows so the map does not grow unbounded
func (s *ContactService) pruneLocked(now time.Time) {
	for ip, w := range s.windows {
		if now.Sub(w.start) >= s.config.Window {
			delete(s.windows, ip)
		}
	}
}
