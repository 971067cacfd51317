package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/internal/mailer"
	"github.com/2beens/contenthub/internal/telemetry/metrics"
	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/internal/verification"
	"github.com/2beens/contenthub/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=auth_test

type adminRepo interface {
	GetByEmail(ctx context.Context, email string) (*admin.Admin, error)
	GetByID(ctx context.Context, id string) (*admin.Admin, error)
}

// Session is the outcome of a successful verification.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Admin     *admin.Admin
}

type Service struct {
	admins         adminRepo
	codes          verification.Store
	dispatcher     mailer.Dispatcher
	tokens         *TokenIssuer
	codeTTL        time.Duration
	metricsManager *metrics.Manager

	// injectable for tests
	CodeFunc func() (string, error)
	NowFunc  func() time.Time
}

func NewService(
	admins adminRepo,
	codes verification.Store,
	dispatcher mailer.Dispatcher,
	tokens *TokenIssuer,
	codeTTL time.Duration,
	metricsManager *metrics.Manager,
) *Service {
	if codeTTL <= 0 {
		codeTTL = verification.DefaultTTL
	}
	return &Service{
		admins:         admins,
		codes:          codes,
		dispatcher:     dispatcher,
		tokens:         tokens,
		codeTTL:        codeTTL,
		metricsManager: metricsManager,
		CodeFunc:       verification.Generate,
		NowFunc:        time.Now,
	}
}

// Login checks the password and, on success, sends a fresh verification code to the admin.
func (s *Service) Login(ctx context.Context, email, password string) (_ string, err error) {
	ctx, span := tracing.Start(ctx, "authService.login")
	defer func() {
		tracing.EndSpan(span, err)
		s.metricsManager.CounterLoginAttempts.WithLabelValues(outcome(err)).Inc()
	}()

	a, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, admin.ErrAdminNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get admin by email: %w", err)
	}
	span.SetAttributes(attribute.String("admin.id", a.ID))

	if !pkg.CheckPasswordHash(password, a.PasswordHash) {
		log.Tracef("=> login: wrong password for admin %s", a.ID)
		return "", ErrInvalidCredentials
	}

	code, err := s.CodeFunc()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}

	expiresAt := s.NowFunc().Add(s.codeTTL)
	if _, err := s.codes.Create(ctx, a.ID, code, expiresAt); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}

	if err := s.dispatcher.SendVerificationCode(ctx, a.Email, code); err != nil {
		return "", fmt.Errorf("dispatch verification code: %w", err)
	}

	log.Debugf("=> login: verification code sent to admin %s, expires at %s", a.ID, expiresAt.Format(time.RFC3339))
	return a.ID, nil
}

// Verify consumes the code and mints a session token. Wrong, expired and reused codes are not told apart.
func (s *Service) Verify(ctx context.Context, adminID, code string) (_ *Session, err error) {
	ctx, span := tracing.Start(ctx, "authService.verify")
	defer func() {
		tracing.EndSpan(span, err)
		s.metricsManager.CounterVerifyAttempts.WithLabelValues(outcome(err)).Inc()
	}()
	span.SetAttributes(attribute.String("admin.id", adminID))

	if !verification.IsWellFormed(code) {
		return nil, ErrInvalidOrExpired
	}

	now := s.NowFunc()
	if _, err := s.codes.Consume(ctx, adminID, code, now); err != nil {
		if errors.Is(err, verification.ErrCodeNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("consume verification code: %w", err)
	}

	a, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, admin.ErrAdminNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by id: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(a, now)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	log.Debugf("=> verify: admin %s authenticated, session expires at %s", a.ID, expiresAt.Format(time.RFC3339))
	return &Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Admin:     a,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return metrics.OutcomeInvalidCredentials
	case errors.Is(err, ErrInvalidOrExpired):
		return metrics.OutcomeInvalidOrExpired
	default:
		return metrics.OutcomeError
	}
}
