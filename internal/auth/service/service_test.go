package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"intranet/internal/auth/models"
	"intranet/internal/auth/store/lockout"
	"intranet/internal/auth/store/otp"
	"intranet/internal/auth/store/revocation"
	userStore "intranet/internal/auth/store/user"
	jwttoken "intranet/internal/jwt_token"
	"intranet/internal/mail"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,OTPStore,LockoutStore,RevocationList,TokenIssuer,Mailer

type capturingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *capturingMailer) Enqueue(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func (m *capturingMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	match := codePattern.FindStringSubmatch(m.sent[len(m.sent)-1].Text)
	if match == nil {
		return ""
	}
	return match[1]
}

func (m *capturingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ServiceSuite drives the auth flows over the in-memory stores.
type ServiceSuite struct {
	suite.Suite
	service *Service
	users   *userStore.InMemoryUserStore
	trl     *revocation.InMemoryTRL
	jwt     *jwttoken.JWTService
	mailer  *capturingMailer
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	s.users = userStore.New()
	s.trl = revocation.NewInMemoryTRL(func() time.Time { return s.now })
	s.jwt = jwttoken.NewJWTService("test-signing-key-0123456789", "intranet", "intranet-web")
	s.mailer = &capturingMailer{}

	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.LockoutThreshold = 3

	svc, err := New(s.users, otp.NewInMemory(), lockout.NewInMemory(), s.trl, s.jwt, s.mailer, WithConfig(cfg))
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithClientMetadata(ctx, "10.0.0.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
}

func (s *ServiceSuite) createUser(email, password string, role models.Role) *models.User {
	user, err := s.service.CreateUser(s.ctx(), &models.CreateUserRequest{Email: email, Password: password, Role: role})
	s.Require().NoError(err)
	return user
}

func (s *ServiceSuite) TestLogin() {
	s.createUser("Jane.Doe@Corp.example", "secret123", models.RoleStaff)

	s.Run("valid credentials issue a token and record the device", func() {
		result, err := s.service.Login(s.ctx(), &models.LoginRequest{Email: "jane.doe@corp.example", Password: "secret123"})
		s.Require().NoError(err)
		s.Equal("Bearer", result.TokenType)
		s.Equal("Jane Doe", result.User.Name)

		claims, err := s.jwt.ValidateToken(result.AccessToken)
		s.Require().NoError(err)
		s.Equal(result.User.ID.String(), claims.UserID)
		s.Equal("staff", claims.Role)

		stored, err := s.users.FindByEmail(context.Background(), "jane.doe@corp.example")
		s.Require().NoError(err)
		s.Require().NotNil(stored.LastLoginAt)
		s.Contains(stored.LastLoginDevice, "Chrome")
	})

	s.Run("email lookup ignores case", func() {
		_, err := s.service.Login(s.ctx(), &models.LoginRequest{Email: "JANE.DOE@corp.example", Password: "secret123"})
		s.NoError(err)
	})

	s.Run("wrong password and unknown email look the same", func() {
		_, errWrong := s.service.Login(s.ctx(), &models.LoginRequest{Email: "jane.doe@corp.example", Password: "nope12345"})
		_, errUnknown := s.service.Login(s.ctx(), &models.LoginRequest{Email: "ghost@corp.example", Password: "nope12345"})
		s.True(dErrors.HasCode(errWrong, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(errUnknown, dErrors.CodeUnauthorized))
		s.Equal(dErrors.MessageOf(errWrong), dErrors.MessageOf(errUnknown))
	})
}

func (s *ServiceSuite) TestLogin_InactiveUser() {
	user := s.createUser("inactive@corp.example", "secret123", models.RoleStaff)
	ctx, _ := adminCtx(s.ctx())
	_, err := s.service.SetActive(ctx, user.ID, false)
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx(), &models.LoginRequest{Email: "inactive@corp.example", Password: "secret123"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(invalidCredentials, dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestLogin_Lockout() {
	s.createUser("locked@corp.example", "secret123", models.RoleStaff)
	bad := &models.LoginRequest{Email: "locked@corp.example", Password: "wrong1234"}

	for range 2 {
		_, err := s.service.Login(s.ctx(), bad)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	}
	_, err := s.service.Login(s.ctx(), bad)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited), "third failure locks")

	_, err = s.service.Login(s.ctx(), &models.LoginRequest{Email: "locked@corp.example", Password: "secret123"})
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited), "correct password is refused while locked")

	s.now = s.now.Add(16 * time.Minute)
	_, err = s.service.Login(s.ctx(), &models.LoginRequest{Email: "locked@corp.example", Password: "secret123"})
	s.NoError(err, "lock lapses after the lockout duration")
}

func (s *ServiceSuite) TestOTPLogin() {
	s.createUser("otp@corp.example", "", models.RoleStaff)

	s.Require().NoError(s.service.RequestOTP(s.ctx(), &models.OTPRequest{Email: "otp@corp.example"}))
	s.Require().Equal(1, s.mailer.count())
	code := s.mailer.lastCode()
	s.Require().Len(code, 6)

	s.Run("wrong purpose code is rejected", func() {
		err := s.service.ResetPassword(s.ctx(), &models.ResetPasswordRequest{Email: "otp@corp.example", Code: code, NewPassword: "newpass123"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	result, err := s.service.VerifyOTP(s.ctx(), &models.OTPVerifyRequest{Email: "otp@corp.example", Code: code})
	s.Require().NoError(err)
	s.NotEmpty(result.AccessToken)

	_, err = s.service.VerifyOTP(s.ctx(), &models.OTPVerifyRequest{Email: "otp@corp.example", Code: code})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "codes are single use")
}

func (s *ServiceSuite) TestRequestOTP_UnknownEmailSendsNothing() {
	err := s.service.RequestOTP(s.ctx(), &models.OTPRequest{Email: "nobody@corp.example"})
	s.NoError(err)
	s.Zero(s.mailer.count())
}

func (s *ServiceSuite) TestRequestOTP_RateLimits() {
	s.createUser("busy@corp.example", "", models.RoleStaff)
	req := func() error {
		return s.service.RequestOTP(s.ctx(), &models.OTPRequest{Email: "busy@corp.example"})
	}

	s.Require().NoError(req())
	s.True(dErrors.HasCode(req(), dErrors.CodeRateLimited), "cooldown applies")

	for range 4 {
		s.now = s.now.Add(2 * time.Minute)
		s.Require().NoError(req())
	}
	s.now = s.now.Add(2 * time.Minute)
	s.True(dErrors.HasCode(req(), dErrors.CodeRateLimited), "hourly cap applies")
	s.Equal(5, s.mailer.count())
}

func (s *ServiceSuite) TestVerifyOTP_ExpiryAndAttempts() {
	s.createUser("codes@corp.example", "", models.RoleStaff)

	s.Run("expired", func() {
		s.Require().NoError(s.service.RequestOTP(s.ctx(), &models.OTPRequest{Email: "codes@corp.example"}))
		code := s.mailer.lastCode()
		s.now = s.now.Add(11 * time.Minute)
		_, err := s.service.VerifyOTP(s.ctx(), &models.OTPVerifyRequest{Email: "codes@corp.example", Code: code})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("code has expired", dErrors.MessageOf(err))
	})

	s.Run("attempts exhausted", func() {
		s.now = s.now.Add(2 * time.Minute)
		s.Require().NoError(s.service.RequestOTP(s.ctx(), &models.OTPRequest{Email: "codes@corp.example"}))
		code := s.mailer.lastCode()
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		for range 5 {
			_, err := s.service.VerifyOTP(s.ctx(), &models.OTPVerifyRequest{Email: "codes@corp.example", Code: wrong})
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		}
		_, err := s.service.VerifyOTP(s.ctx(), &models.OTPVerifyRequest{Email: "codes@corp.example", Code: code})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "the code was discarded")
	})
}

func (s *ServiceSuite) TestResetPassword() {
	s.createUser("reset@corp.example", "oldpass123", models.RoleStaff)
	s.Require().NoError(s.service.RequestOTP(s.ctx(), &models.OTPRequest{Email: "reset@corp.example", Purpose: models.OTPPurposePasswordReset}))
	code := s.mailer.lastCode()

	err := s.service.ResetPassword(s.ctx(), &models.ResetPasswordRequest{Email: "reset@corp.example", Code: code, NewPassword: "short"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.service.ResetPassword(s.ctx(), &models.ResetPasswordRequest{Email: "reset@corp.example", Code: code, NewPassword: "newpass123"}))

	_, err = s.service.Login(s.ctx(), &models.LoginRequest{Email: "reset@corp.example", Password: "newpass123"})
	s.NoError(err)
	_, err = s.service.Login(s.ctx(), &models.LoginRequest{Email: "reset@corp.example", Password: "oldpass123"})
	s.Error(err)
}

func (s *ServiceSuite) TestChangePassword() {
	user := s.createUser("change@corp.example", "oldpass123", models.RoleStaff)

	err := s.service.ChangePassword(s.ctx(), user.ID, &models.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newpass123"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	err = s.service.ChangePassword(s.ctx(), user.ID, &models.ChangePasswordRequest{CurrentPassword: "oldpass123", NewPassword: "lettersonly"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = s.service.ChangePassword(s.ctx(), user.ID, &models.ChangePasswordRequest{CurrentPassword: "oldpass123", NewPassword: strings.Repeat("a1", 40)})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "longer than bcrypt accepts")

	s.Require().NoError(s.service.ChangePassword(s.ctx(), user.ID, &models.ChangePasswordRequest{CurrentPassword: "oldpass123", NewPassword: "newpass123"}))
	_, err = s.service.Login(s.ctx(), &models.LoginRequest{Email: "change@corp.example", Password: "newpass123"})
	s.NoError(err)
}

func (s *ServiceSuite) TestLogout() {
	s.createUser("bye@corp.example", "secret123", models.RoleStaff)
	result, err := s.service.Login(s.ctx(), &models.LoginRequest{Email: "bye@corp.example", Password: "secret123"})
	s.Require().NoError(err)
	claims, err := s.jwt.ValidateToken(result.AccessToken)
	s.Require().NoError(err)

	revoked, err := s.service.IsTokenRevoked(s.ctx(), claims.ID)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.service.Logout(s.ctx(), requestcontext.Principal{
		UserID:    result.User.ID,
		TokenID:   claims.ID,
		ExpiresAt: s.now.Add(time.Hour),
	}))

	revoked, err = s.service.IsTokenRevoked(s.ctx(), claims.ID)
	s.Require().NoError(err)
	s.True(revoked)

	s.now = s.now.Add(2 * time.Hour)
	revoked, err = s.service.IsTokenRevoked(s.ctx(), claims.ID)
	s.Require().NoError(err)
	s.False(revoked, "entry expires with the token")
}

func (s *ServiceSuite) TestIsAccountActive() {
	user := s.createUser("leaver@corp.example", "secret123", models.RoleStaff)

	active, err := s.service.IsAccountActive(s.ctx(), user.ID)
	s.Require().NoError(err)
	s.True(active)

	ctx, _ := adminCtx(s.ctx())
	_, err = s.service.SetActive(ctx, user.ID, false)
	s.Require().NoError(err)
	active, err = s.service.IsAccountActive(s.ctx(), user.ID)
	s.Require().NoError(err)
	s.False(active)

	active, err = s.service.IsAccountActive(s.ctx(), uuid.New())
	s.Require().NoError(err)
	s.False(active, "unknown users are inactive")
}

func (s *ServiceSuite) TestMe() {
	user := s.createUser("me@corp.example", "", models.RoleEditor)
	got, err := s.service.Me(s.ctx(), user.ID)
	s.Require().NoError(err)
	s.Equal(models.RoleEditor, got.Role)

	_, err = s.service.Me(s.ctx(), uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"abc12345":                     true,
		"abc1234":                      false,
		"abcdefgh":                     false,
		"12345678":                     false,
		"pässwort1":                    true,
		strings.Repeat("a1", 36):       true,
		strings.Repeat("a1", 36) + "b": false,
		strings.Repeat("ä", 36) + "1":  false,
	}
	for pw, ok := range cases {
		err := ValidatePassword(pw)
		if ok && err != nil {
			t.Errorf("%q: unexpected error %v", pw, err)
		}
		if !ok && !dErrors.HasCode(err, dErrors.CodeValidation) {
			t.Errorf("%q: expected validation error, got %v", pw, err)
		}
	}
}

func TestGenerateCode(t *testing.T) {
	for range 50 {
		code, err := generateCode()
		if err != nil {
			t.Fatal(err)
		}
		if !codePattern.MatchString(code) || len(code) != 6 {
			t.Fatalf("bad code %q", code)
		}
	}
}

func adminCtx(ctx context.Context) (context.Context, uuid.UUID) {
	id := uuid.New()
	return requestcontext.WithPrincipal(ctx, requestcontext.Principal{UserID: id, Role: "admin"}), id
}
