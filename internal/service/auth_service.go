package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"app/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidMagicLink is returned when a magic-link token is unknown,
// expired, or already consumed.
var ErrInvalidMagicLink = errors.New("invalid_magic_link")

// EmailSender delivers the magic-link email. Delivery itself is an external
// concern; implementations only need to hand the link off.
type EmailSender interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogEmailSender writes the link to the log instead of sending mail. Used
// in development and as the default when no mail provider is wired.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendMagicLink(_ context.Context, email, link string) error {
	s.Logger.Info().Str("email", email).Str("link", link).Msg("Magic link issued")
	return nil
}

// AuthService implements passwordless email sign-in: request a one-time
// magic link, verify it, receive a session token. Verification also creates
// the credit account (first signed-in action).
type AuthService interface {
	RequestLink(ctx context.Context, email string) error
	// VerifyLink consumes the one-time token and returns a session JWT.
	VerifyLink(ctx context.Context, token string) (sessionJWT string, accountID string, err error)
}

type magicLink struct {
	email     string
	expiresAt time.Time
}

type authService struct {
	sender      EmailSender
	credits     CreditService
	jwtSecret   string
	linkTTL     time.Duration
	sessionTTL  time.Duration
	linkBaseURL string
	logger      zerolog.Logger

	// Pending tokens are genuinely ephemeral, so an in-process store is
	// fine here; everything billing-adjacent lives in Postgres.
	mu      sync.Mutex
	pending map[string]magicLink
}

// NewAuthService creates a new AuthService.
func NewAuthService(sender EmailSender, credits CreditService, jwtSecret string, linkTTL, sessionTTL time.Duration, linkBaseURL string, logger zerolog.Logger) AuthService {
	return &authService{
		sender:      sender,
		credits:     credits,
		jwtSecret:   jwtSecret,
		linkTTL:     linkTTL,
		sessionTTL:  sessionTTL,
		linkBaseURL: linkBaseURL,
		logger:      logger.With().Str("service", "AuthService").Logger(),
		pending:     make(map[string]magicLink),
	}
}

func (s *authService) RequestLink(ctx context.Context, email string) error {
	normalized := util.NormalizeEmail(email)
	token := uuid.NewString()

	s.mu.Lock()
	s.prunePendingLocked()
	s.pending[token] = magicLink{email: normalized, expiresAt: time.Now().Add(s.linkTTL)}
	s.mu.Unlock()

	link := fmt.Sprintf("%s?token=%s", s.linkBaseURL, token)
	if err := s.sender.SendMagicLink(ctx, normalized, link); err != nil {
		s.logger.Error().Err(err).Str("email", normalized).Msg("Failed to send magic link")
		return err
	}
	return nil
}

func (s *authService) VerifyLink(ctx context.Context, token string) (string, string, error) {
	s.mu.Lock()
	link, ok := s.pending[token]
	if ok {
		// One-time use: consume on first verification attempt.
		delete(s.pending, token)
	}
	s.mu.Unlock()

	if !ok || time.Now().After(link.expiresAt) {
		return "", "", ErrInvalidMagicLink
	}

	// First signed-in action: make sure the ledger account exists.
	if _, err := s.credits.EnsureAccount(ctx, link.email); err != nil {
		return "", "", fmt.Errorf("ensuring account for %s: %w", link.email, err)
	}

	session, err := util.SignSessionJWT(link.email, s.jwtSecret, s.sessionTTL)
	if err != nil {
		return "", "", err
	}
	return session, link.email, nil
}

// prunePendingLocked drops expired tokens; callers hold the mutex.
func (s *authService) prunePendingLocked() {
	now := time.Now()
	for token, link := range s.pending {
		if now.After(link.expiresAt) {
			delete(s.pending, token)
		}
	}
}
