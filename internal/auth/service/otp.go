package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"intranet/internal/auth/models"
	"intranet/internal/mail"
	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

const (
	otpDigits     = 6
	otpSendWindow = time.Hour

	invalidCode = "invalid or expired code"
)

// RequestOTP emails a one-time code. Unknown or inactive addresses succeed
// without sending anything.
func (s *Service) RequestOTP(ctx context.Context, req *models.OTPRequest) error {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.DebugContext(ctx, "otp requested for unknown email")
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.Active {
		return nil
	}

	existing, err := s.otps.Find(ctx, user.Email, req.Purpose)
	switch {
	case err == nil:
		if now.Before(existing.CreatedAt.Add(s.cfg.OTPResendCooldown)) {
			return dErrors.New(dErrors.CodeRateLimited, "please wait before requesting another code")
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending code")
	}

	sends, err := s.otps.RecordSend(ctx, user.Email, now, otpSendWindow)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record code request")
	}
	if sends > s.cfg.OTPHourlyLimit {
		return dErrors.New(dErrors.CodeRateLimited, "too many codes requested, try again later")
	}

	code, err := generateCode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash code")
	}
	if err := s.otps.Save(ctx, &models.OTP{
		Email:     user.Email,
		Purpose:   req.Purpose,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store code")
	}

	msg, err := mail.OTPMessage(user.Email, user.Name, code, string(req.Purpose), s.cfg.OTPTTL)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render code email")
	}
	if err := s.mailer.Enqueue(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue code email", "error", err, "user_id", user.ID.String())
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not send code, try again later")
	}

	if s.metrics != nil {
		s.metrics.ObserveOTPSent(string(req.Purpose))
	}
	s.logAudit(ctx, audit.EventOTPRequested, user.ID.String(),
		"email", user.Email,
		"purpose", string(req.Purpose),
	)
	return nil
}

// VerifyOTP exchanges a login code for an access token.
func (s *Service) VerifyOTP(ctx context.Context, req *models.OTPVerifyRequest) (*models.LoginResult, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if err := s.checkLockout(ctx, req.Email, now); err != nil {
		s.observeLogin(methodOTP, "locked")
		return nil, err
	}
	user, err := s.activeUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.consumeOTP(ctx, req.Email, req.Code, models.OTPPurposeLogin, now); err != nil {
		s.observeLogin(methodOTP, "failure")
		return nil, err
	}

	result, err := s.completeLogin(ctx, user, now)
	if err != nil {
		return nil, err
	}
	s.observeLogin(methodOTP, "success")
	s.logAudit(ctx, audit.EventOTPVerified, user.ID.String(),
		"email", user.Email,
		"purpose", string(models.OTPPurposeLogin),
	)
	return result, nil
}

// ResetPassword sets a new password after verifying a password_reset code.
func (s *Service) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return err
	}
	if err := ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	user, err := s.activeUserByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if err := s.consumeOTP(ctx, req.Email, req.Code, models.OTPPurposePasswordReset, now); err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, req.NewPassword); err != nil {
		return err
	}
	if err := s.lockouts.Clear(ctx, user.Email); err != nil {
		s.logger.WarnContext(ctx, "failed to clear login failures", "error", err, "user_id", user.ID.String())
	}
	s.logAudit(ctx, audit.EventPasswordReset, user.ID.String(), "email", user.Email)
	return nil
}

func (s *Service) activeUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCode)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.Active {
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCode)
	}
	return user, nil
}

// consumeOTP checks code against the pending OTP. A match deletes it; a miss
// counts an attempt and discards the OTP once attempts run out.
func (s *Service) consumeOTP(ctx context.Context, email, code string, purpose models.OTPPurpose, now time.Time) error {
	pending, err := s.otps.Find(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeOTP(purpose, "missing")
			return dErrors.New(dErrors.CodeUnauthorized, invalidCode)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code")
	}

	if pending.IsExpiredAt(now) {
		s.discardOTP(ctx, email, purpose)
		s.observeOTP(purpose, "expired")
		return dErrors.New(dErrors.CodeUnauthorized, "code has expired")
	}
	if pending.Attempts >= s.cfg.OTPMaxAttempts {
		s.discardOTP(ctx, email, purpose)
		s.observeOTP(purpose, "exhausted")
		return dErrors.New(dErrors.CodeUnauthorized, invalidCode)
	}

	if bcrypt.CompareHashAndPassword([]byte(pending.CodeHash), []byte(code)) != nil {
		attempts, err := s.otps.IncrementAttempts(ctx, email, purpose)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attempt")
		}
		if attempts >= s.cfg.OTPMaxAttempts {
			s.discardOTP(ctx, email, purpose)
		}
		s.observeOTP(purpose, "invalid")
		return dErrors.New(dErrors.CodeUnauthorized, invalidCode)
	}

	if err := s.otps.Delete(ctx, email, purpose); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume code")
	}
	s.observeOTP(purpose, "success")
	return nil
}

func (s *Service) discardOTP(ctx context.Context, email string, purpose models.OTPPurpose) {
	if err := s.otps.Delete(ctx, email, purpose); err != nil {
		s.logger.WarnContext(ctx, "failed to discard code", "error", err, "purpose", string(purpose))
	}
}

func (s *Service) observeOTP(purpose models.OTPPurpose, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOTPVerified(string(purpose), outcome)
	}
}

// generateCode returns a uniformly random zero-padded decimal code.
func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
