package service

import (
	"context"
	"strings"

	"github.com/sudheendra1210/Citycycle/internal/credential"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	"github.com/sudheendra1210/Citycycle/internal/ports"
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
	minCodeDigits  = 4
	maxCodeDigits  = 8
	maxNameLength  = 120
)

// NormalizePhone strips common separators and checks the result is "+" followed by 8-15 digits.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", apperrors.ValidationField("phone", "phone number is required")
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", apperrors.ValidationField("phone", "phone number contains invalid characters")
		}
	}

	out := b.String()
	if !strings.HasPrefix(out, "+") {
		return "", apperrors.ValidationField("phone", "phone number must include a country code, e.g. +15551234567")
	}
	if n := len(out) - 1; n < minPhoneDigits || n > maxPhoneDigits {
		return "", apperrors.ValidationField("phone", "phone number must have between 8 and 15 digits")
	}
	return out, nil
}

// ValidateCode checks an OTP code is 4-8 digits.
func ValidateCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if len(code) < minCodeDigits || len(code) > maxCodeDigits {
		return "", apperrors.ValidationField("code", "code must have between 4 and 8 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", apperrors.ValidationField("code", "code must contain digits only")
		}
	}
	return code, nil
}

// StartPhoneVerification asks the backend to text a one-time code. The credential is unchanged.
func (b *Bridge) StartPhoneVerification(ctx context.Context, phone, name string) error {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		return apperrors.ValidationField("name", "name is too long")
	}

	if err := b.api.SendPhoneOTP(ctx, normalized, name); err != nil {
		b.logger.WarnContext(ctx, "send phone otp failed", "error", err)
		return err
	}
	return nil
}

// CompletePhoneVerification verifies a code and signs in with the returned backend token.
//
// The token is persisted and the user committed under one lock. When a provider session is
// active the provider keeps precedence: the token is stored as the fallback and a full pass runs.
// Verification failures leave every piece of state untouched.
func (b *Bridge) CompletePhoneVerification(ctx context.Context, phone, code string) (domainauth.ResolvedUser, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return domainauth.ResolvedUser{}, err
	}
	code, err = ValidateCode(code)
	if err != nil {
		return domainauth.ResolvedUser{}, err
	}

	res, err := b.api.VerifyPhoneOTP(ctx, normalized, code)
	if err != nil {
		b.logger.WarnContext(ctx, "verify phone otp failed", "error", err)
		return domainauth.ResolvedUser{}, err
	}
	if res.Token == "" {
		return domainauth.ResolvedUser{}, apperrors.Unavailable("backend returned no session token")
	}
	cred := domainauth.Credential{Source: domainauth.SourceOTP, Token: res.Token}

	if p := b.chain.ActiveProvider(ctx); p != nil {
		if err := b.persist(ctx, res.Token); err != nil {
			return domainauth.ResolvedUser{}, err
		}
		b.logger.InfoContext(ctx, "phone verified under provider session",
			"source", string(p.Source()),
			"fingerprint", cred.Fingerprint())
		t := b.ticket.Add(1)
		b.passMu.Lock()
		b.runPass(ctx, t, TriggerPhoneVerified)
		b.passMu.Unlock()
		return res.User, nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.tokens.Set(ctx, res.Token); err != nil {
		b.logger.ErrorContext(ctx, "persist token failed", "error", err)
		return domainauth.ResolvedUser{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "persist session token")
	}
	b.ticket.Add(1)
	user := res.User
	b.commitLocked(cred, &user, domainauth.ReasonNone)
	b.logger.InfoContext(ctx, "phone verified", "user_id", user.ID, "fingerprint", cred.Fingerprint())
	return user, nil
}

func (b *Bridge) persist(ctx context.Context, token string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.tokens.Set(ctx, token); err != nil {
		b.logger.ErrorContext(ctx, "persist token failed", "error", err)
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "persist session token")
	}
	return nil
}

// hostedBearer picks the bearer for calls that must run under an existing session:
// the provider token when obtainable, else the stored fallback token.
func (b *Bridge) hostedBearer(ctx context.Context) (domainauth.Credential, error) {
	res := b.chain.Resolve(ctx, credential.FallThrough)
	if res.Credential.IsZero() {
		return domainauth.Credential{}, apperrors.Unauthorized("sign in before verifying a phone number")
	}
	return res.Credential, nil
}

// RequestHostedVerification asks the backend to text a code to phone under the current session.
func (b *Bridge) RequestHostedVerification(ctx context.Context, phone string) error {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	cred, err := b.hostedBearer(ctx)
	if err != nil {
		return err
	}
	if err := b.api.RequestOTP(ctx, cred.Token, normalized); err != nil {
		b.logger.WarnContext(ctx, "request otp failed", "source", string(cred.Source), "error", err)
		return err
	}
	return nil
}

// VerifyHostedVerification checks a code under the current session and refreshes the resolved
// user once the backend confirms the phone number.
func (b *Bridge) VerifyHostedVerification(ctx context.Context, phone, code string) (ports.HostedVerification, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return ports.HostedVerification{}, err
	}
	code, err = ValidateCode(code)
	if err != nil {
		return ports.HostedVerification{}, err
	}
	cred, err := b.hostedBearer(ctx)
	if err != nil {
		return ports.HostedVerification{}, err
	}

	res, err := b.api.VerifyOTP(ctx, cred.Token, normalized, code)
	if err != nil {
		b.logger.WarnContext(ctx, "verify otp failed", "source", string(cred.Source), "error", err)
		return ports.HostedVerification{}, err
	}
	if !res.Verified {
		msg := res.Message
		if msg == "" {
			msg = "Invalid verification code"
		}
		return res, apperrors.Verification(msg)
	}

	if _, err := b.RefreshResolvedUser(ctx); err != nil {
		b.logger.WarnContext(ctx, "refresh after phone verification failed", "error", err)
	}
	return res, nil
}

// UpdateProfile sends partial profile fields and refreshes the resolved user.
func (b *Bridge) UpdateProfile(ctx context.Context, upd ports.ProfileUpdate) (domainauth.Snapshot, error) {
	if upd.Name == nil && upd.Area == nil {
		return domainauth.Snapshot{}, apperrors.Validation("nothing to update")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return domainauth.Snapshot{}, apperrors.ValidationField("name", "name cannot be empty")
		}
		if len(name) > maxNameLength {
			return domainauth.Snapshot{}, apperrors.ValidationField("name", "name is too long")
		}
		upd.Name = &name
	}
	if upd.Area != nil {
		area := strings.TrimSpace(*upd.Area)
		upd.Area = &area
	}

	if err := b.api.UpdateProfile(ctx, upd); err != nil {
		b.logger.WarnContext(ctx, "update profile failed", "error", err)
		return domainauth.Snapshot{}, err
	}
	return b.RefreshResolvedUser(ctx)
}
