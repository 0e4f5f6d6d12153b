package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/audit"
	"github.com/kmalykhin/storefront/internal/hash"
	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/mail"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
	"github.com/kmalykhin/storefront/internal/tokens"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
	resetTokenTTL   = time.Hour
)

// AuthService owns the session lifecycle: issuance, rotation and revocation
// of access/refresh pairs. Refresh tokens are opaque; only their sha256 hash
// is stored, in a UserSession row that is rotated in place on refresh and
// revoked (never deleted) on logout.
type AuthService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
	Audit     audit.Sink
	Mail      mail.Sender
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// ClientInfo carries request metadata into session rows and audit events.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (s *AuthService) Register(ctx context.Context, email, username, password, firstName, lastName string, client ClientInfo) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", username)

	if email == "" || username == "" || password == "" {
		return nil, fmt.Errorf("email, username and password required: %w", ErrValidation)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "hash", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        strings.ToLower(email),
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("email or username taken: %w", ErrConflict)
		}
		l.Error("register_failed", "reason", "db", "error", err)
		return nil, err
	}

	s.auditLog(ctx, audit.Event{
		Type: "register", UserID: user.ID, Email: user.Email,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("register_success", "user_id", user.ID)
	return user, nil
}

// Login resolves the identifier as email or username and gates on account
// state. All rejections surface the same generic error so callers cannot
// probe which accounts exist; the audit trail records the real reason.
func (s *AuthService) Login(ctx context.Context, identifier, password string, client ClientInfo) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "identifier", identifier)

	fail := func(userID uint, email, reason string) (*TokenPair, error) {
		s.auditLog(ctx, audit.Event{
			Type: "login", UserID: userID, Email: email,
			IP: client.IP, UserAgent: client.UserAgent, Success: false,
			Detail: map[string]any{"reason": reason},
		})
		l.Warn("login_failed", "reason", reason)
		return nil, fmt.Errorf("invalid credentials: %w", ErrValidation)
	}

	user, err := s.Repo.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(0, identifier, "user_not_found")
		}
		l.Error("login_failed", "reason", "db", "error", err)
		return nil, err
	}
	if !user.IsActive || user.IsDeleted {
		return fail(user.ID, user.Email, "account_disabled")
	}
	if !user.IsEmailConfirmed && !isAdminRole(user.Role) {
		return fail(user.ID, user.Email, "email_unconfirmed")
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return fail(user.ID, user.Email, "password_mismatch")
	}

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		l.Error("login_failed", "reason", "issue", "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.Repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		l.Error("login_failed", "reason", "last_login", "error", err)
		return nil, err
	}

	s.auditLog(ctx, audit.Event{
		Type: "login", UserID: user.ID, Email: user.Email,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("login_success", "user_id", user.ID)
	return pair, nil
}

// Refresh exchanges an expired access token plus the matching refresh token
// for a fresh pair. The matched session row is rotated in place: new hash,
// extended expiry, no new row, and the old refresh token dies immediately.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string, client ClientInfo) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.AccessClaimsIgnoringExpiry(accessToken, s.JWTSecret)
	if err != nil {
		if errors.Is(err, tokens.ErrMalformed) {
			l.Warn("refresh_rejected", "reason", "malformed_token_format")
		}
		return nil, fmt.Errorf("access token: %w", ErrUnauthorized)
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, fmt.Errorf("missing subject: %w", ErrUnauthorized)
	}

	user, err := s.Repo.GetUserByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user gone: %w", ErrUnauthorized)
		}
		return nil, err
	}

	sessions, err := s.Repo.ActiveSessions(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	presented := hash.Sha256Hex(refreshToken)
	var matched *models.UserSession
	for i := range sessions {
		if hash.EqualHex(sessions[i].TokenHash, presented) {
			matched = &sessions[i]
			break
		}
	}
	if matched == nil {
		s.auditLog(ctx, audit.Event{
			Type: "refresh", UserID: user.ID, Email: user.Email,
			IP: client.IP, UserAgent: client.UserAgent, Success: false,
			Detail: map[string]any{"reason": "no_matching_session"},
		})
		return nil, fmt.Errorf("no matching session: %w", ErrUnauthorized)
	}
	if time.Now().After(matched.ExpiresAt) {
		return nil, fmt.Errorf("session expired: %w", ErrUnauthorized)
	}

	newRefresh, err := hash.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	refreshExp := time.Now().Add(RefreshTokenTTL)
	if err := s.Repo.RotateSession(ctx, matched.ID, hash.Sha256Hex(newRefresh), refreshExp); err != nil {
		return nil, err
	}

	accessExp := time.Now().Add(AccessTokenTTL)
	access, err := s.signAccess(user, accessExp)
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, audit.Event{
		Type: "refresh", UserID: user.ID, Email: user.Email,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("refresh_success", "user_id", user.ID, "session_id", matched.ID)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newRefresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// RevokeAll marks every live session for the user revoked. Idempotent.
func (s *AuthService) RevokeAll(ctx context.Context, userID uint, client ClientInfo) error {
	l := logging.FromContext(ctx).With("svc", "auth.revoke_all", "user_id", userID)

	if err := s.Repo.RevokeAllSessions(ctx, userID); err != nil {
		l.Error("revoke_failed", "error", err)
		return err
	}
	s.auditLog(ctx, audit.Event{
		Type: "revoke_all", UserID: userID,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("sessions_revoked")
	return nil
}

// ChangePassword verifies the current password before accepting the new
// one. Existing sessions stay live; only password reset revokes them.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, newPassword string, client ClientInfo) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)

	if newPassword == "" {
		return fmt.Errorf("new password required: %w", ErrValidation)
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user: %w", ErrNotFound)
		}
		return err
	}
	if !hash.CheckPassword(user.PasswordHash, current) {
		s.auditLog(ctx, audit.Event{
			Type: "change_password", UserID: userID, Email: user.Email,
			IP: client.IP, UserAgent: client.UserAgent, Success: false,
			Detail: map[string]any{"reason": "password_mismatch"},
		})
		return fmt.Errorf("current password mismatch: %w", ErrValidation)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePasswordHash(ctx, userID, pwHash); err != nil {
		return err
	}

	s.auditLog(ctx, audit.Event{
		Type: "change_password", UserID: userID, Email: user.Email,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("password_changed")
	return nil
}

// ForgotPassword always reports success so the endpoint cannot be used to
// enumerate accounts. Eligible users get a hashed single-use reset token
// with a one-hour expiry and a mail with the plaintext.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, client ClientInfo) error {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")

	user, err := s.Repo.FindUserByIdentifier(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Info("forgot_password_noop", "reason", "user_not_found")
			return nil
		}
		return err
	}
	if !user.IsActive || user.IsDeleted || !user.IsEmailConfirmed {
		l.Info("forgot_password_noop", "reason", "account_ineligible")
		return nil
	}

	token := newResetToken()
	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.Repo.SetResetToken(ctx, user.ID, hash.Sha256Hex(normalizeResetToken(token)), expiresAt); err != nil {
		return err
	}
	if err := s.Mail.SendPasswordReset(ctx, user.Email, token); err != nil {
		l.Error("reset_mail_failed", "error", err)
		return err
	}

	s.auditLog(ctx, audit.Event{
		Type: "forgot_password", UserID: user.ID, Email: user.Email,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("reset_token_issued", "user_id", user.ID)
	return nil
}

// ResetPassword consumes a reset token: the presented value is normalized,
// verified against every stored hash (the token is hashed, so no index
// lookup is possible), and on success the password is replaced, the token
// cleared, all sessions revoked and a fresh pair issued.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, client ClientInfo) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	if newPassword == "" {
		return nil, fmt.Errorf("new password required: %w", ErrValidation)
	}

	presented := hash.Sha256Hex(normalizeResetToken(token))
	candidates, err := s.Repo.UsersWithResetToken(ctx)
	if err != nil {
		return nil, err
	}

	var user *models.User
	for i := range candidates {
		if candidates[i].ResetTokenHash != nil && hash.EqualHex(*candidates[i].ResetTokenHash, presented) {
			user = &candidates[i]
			break
		}
	}
	if user == nil {
		l.Warn("reset_rejected", "reason", "token_unknown")
		return nil, fmt.Errorf("reset token: %w", ErrUnauthorized)
	}
	if user.ResetTokenExpiresAt == nil || time.Now().After(*user.ResetTokenExpiresAt) {
		l.Warn("reset_rejected", "reason", "token_expired")
		return nil, fmt.Errorf("reset token expired: %w", ErrUnauthorized)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdatePasswordHash(ctx, user.ID, pwHash); err != nil {
		return nil, err
	}
	if err := s.Repo.ClearResetToken(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.Repo.RevokeAllSessions(ctx, user.ID); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, audit.Event{
		Type: "reset_password", UserID: user.ID, Email: user.Email,
		IP: client.IP, UserAgent: client.UserAgent, Success: true,
	})
	l.Info("password_reset", "user_id", user.ID)
	return pair, nil
}

// ValidateAccess checks a presented access token end to end, including the
// pre-parse segment-count guard. Malformed formats are logged as suspicious.
func (s *AuthService) ValidateAccess(ctx context.Context, raw string) (*tokens.AccessClaims, error) {
	claims, err := tokens.AccessClaimsFromToken(raw, s.JWTSecret)
	if err != nil {
		if errors.Is(err, tokens.ErrMalformed) {
			logging.FromContext(ctx).Warn("suspicious_token_format", "svc", "auth.validate")
		}
		return nil, fmt.Errorf("access token: %w", ErrUnauthorized)
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User, client ClientInfo) (*TokenPair, error) {
	accessExp := time.Now().Add(AccessTokenTTL)
	access, err := s.signAccess(user, accessExp)
	if err != nil {
		return nil, err
	}

	refresh, err := hash.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	refreshExp := time.Now().Add(RefreshTokenTTL)
	session := &models.UserSession{
		UserID:    user.ID,
		TokenHash: hash.Sha256Hex(refresh),
		ExpiresAt: refreshExp,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	}
	if err := s.Repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) signAccess(user *models.User, exp time.Time) (string, error) {
	claims := tokens.NewAccessClaims(
		strconv.FormatUint(uint64(user.ID), 10),
		user.Email, user.Username, user.FirstName, user.LastName, user.Role,
		exp,
	)
	return tokens.SignAccessToken(claims, s.JWTSecret)
}

func (s *AuthService) auditLog(ctx context.Context, e audit.Event) {
	if err := s.Audit.Log(ctx, e); err != nil {
		logging.FromContext(ctx).Error("audit_log_failed", "event", e.Type, "error", err)
	}
}

func isAdminRole(role string) bool { return role == "admin" }

func normalizeResetToken(token string) string {
	return strings.ToLower(strings.ReplaceAll(token, "-", ""))
}

func newResetToken() string {
	// uuid keeps the mailed code short enough to retype; hyphens are
	// stripped before hashing on both sides.
	return uuid.NewString()
}
