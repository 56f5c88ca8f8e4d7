package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"intranet/internal/auth/models"
	jwttoken "intranet/internal/jwt_token"
	"intranet/internal/mail"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
)

// UserStore persists accounts. Lookups by email are case-insensitive.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.UserFilter, page paging.Page) ([]*models.User, int, error)
	CountActiveAdmins(ctx context.Context) (int, error)
}

// OTPStore keeps one pending code per email and purpose.
type OTPStore interface {
	Save(ctx context.Context, otp *models.OTP) error
	Find(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTP, error)
	IncrementAttempts(ctx context.Context, email string, purpose models.OTPPurpose) (int, error)
	Delete(ctx context.Context, email string, purpose models.OTPPurpose) error
	RecordSend(ctx context.Context, email string, now time.Time, window time.Duration) (int, error)
}

// LockoutStore counts failed logins. Get returns nil for a clean identifier.
type LockoutStore interface {
	Get(ctx context.Context, identifier string) (*models.Lockout, error)
	RecordFailure(ctx context.Context, identifier string, now time.Time, window time.Duration) (*models.Lockout, error)
	Lock(ctx context.Context, identifier string, until time.Time) error
	Clear(ctx context.Context, identifier string) error
}

// RevocationList is the logout blacklist keyed by token ID.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(sub jwttoken.Subject, expiresIn time.Duration) (*jwttoken.IssuedToken, error)
}

// Mailer queues outgoing email.
type Mailer interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

type AuditPublisher = audit.Emitter

// Metrics is the subset of platform metrics the auth flows record.
type Metrics interface {
	ObserveLogin(method, outcome string)
	ObserveOTPSent(purpose string)
	ObserveOTPVerified(purpose, outcome string)
	IncrementTokensRevoked()
	IncrementUsersCreated()
}

// Config carries the auth policy knobs.
type Config struct {
	TokenTTL          time.Duration
	OTPTTL            time.Duration
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration
	OTPHourlyLimit    int
	LockoutThreshold  int
	LockoutWindow     time.Duration
	LockoutDuration   time.Duration
	BcryptCost        int
}

// DefaultConfig mirrors the environment defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:          12 * time.Hour,
		OTPTTL:            10 * time.Minute,
		OTPMaxAttempts:    5,
		OTPResendCooldown: time.Minute,
		OTPHourlyLimit:    5,
		LockoutThreshold:  5,
		LockoutWindow:     15 * time.Minute,
		LockoutDuration:   15 * time.Minute,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// Service implements login, one-time codes, password management, logout
// and account administration.
type Service struct {
	users    UserStore
	otps     OTPStore
	lockouts LockoutStore
	trl      RevocationList
	tokens   TokenIssuer
	mailer   Mailer

	cfg            Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        Metrics

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func New(
	users UserStore,
	otps OTPStore,
	lockouts LockoutStore,
	trl RevocationList,
	tokens TokenIssuer,
	mailer Mailer,
	opts ...Option,
) (*Service, error) {
	if users == nil || otps == nil || lockouts == nil || trl == nil {
		return nil, errors.New("auth stores are required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	s := &Service{
		users:    users,
		otps:     otps,
		lockouts: lockouts,
		trl:      trl,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      DefaultConfig(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.BcryptCost == 0 {
		s.cfg.BcryptCost = bcrypt.DefaultCost
	}
	return s, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, userID string, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "user", userID, attrs...)
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// comparePassword runs a bcrypt comparison even when the account has no
// hash, so unknown and known emails take the same time.
func (s *Service) comparePassword(hash, password string) bool {
	if hash == "" {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("intranet-timing-equaliser"), s.cfg.BcryptCost)
		})
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
