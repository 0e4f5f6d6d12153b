package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmalykhin/storefront/internal/audit"
	"github.com/kmalykhin/storefront/internal/mail"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

var testClient = ClientInfo{IP: "127.0.0.1", UserAgent: "go-test"}

// captureMail records the last reset token instead of sending anything.
type captureMail struct {
	to    string
	token string
}

func (m *captureMail) SendPasswordReset(_ context.Context, toEmail, token string) error {
	m.to = toEmail
	m.token = token
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *repo.GormRepo) {
	t.Helper()
	r := newTestRepo(t)
	svc := &AuthService{
		Repo:      r,
		JWTSecret: []byte("test-secret"),
		Audit:     audit.Nop{},
		Mail:      mail.Nop{},
	}
	return svc, r
}

func registerConfirmed(t *testing.T, svc *AuthService, r *repo.GormRepo, email, username, password string) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), email, username, password, "Test", "User", testClient)
	require.NoError(t, err)
	require.NoError(t, r.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_email_confirmed", true).Error)
	user.IsEmailConfirmed = true
	return user
}

func sessionCount(t *testing.T, r *repo.GormRepo, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, r.DB.Model(&models.UserSession{}).
		Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestRegisterAndLogin(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "Anna@Example.com", "anna", "s3cret-pw")
	assert.Equal(t, "anna@example.com", user.Email)
	assert.Equal(t, "user", user.Role)

	// by email
	pair, err := svc.Login(ctx, "anna@example.com", "s3cret-pw", testClient)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// by username
	_, err = svc.Login(ctx, "anna", "s3cret-pw", testClient)
	require.NoError(t, err)

	stored, err := r.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	registerConfirmed(t, svc, r, "bob@example.com", "bob", "pw-one-two")

	_, err := svc.Register(ctx, "bob@example.com", "other", "pw-one-two", "", "", testClient)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Register(ctx, "other@example.com", "bob", "pw-one-two", "", "", testClient)
	require.ErrorIs(t, err, ErrConflict)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "carol@example.com", "carol", "right-password")

	_, unknownErr := svc.Login(ctx, "ghost@example.com", "whatever", testClient)
	require.ErrorIs(t, unknownErr, ErrValidation)

	_, badPwErr := svc.Login(ctx, "carol@example.com", "wrong-password", testClient)
	require.ErrorIs(t, badPwErr, ErrValidation)

	assert.Equal(t, unknownErr.Error(), badPwErr.Error())
	assert.Zero(t, sessionCount(t, r, user.ID))
}

func TestLoginRejectsUnconfirmedEmail(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "dave@example.com", "dave", "correct-pw", "", "", testClient)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "dave@example.com", "correct-pw", testClient)
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, sessionCount(t, r, user.ID))
}

func TestLoginAdminBypassesEmailConfirmation(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "root@example.com", "root", "admin-pw-123", "", "", testClient)
	require.NoError(t, err)
	require.NoError(t, r.DB.Model(&models.User{}).
		Where("id = ?", user.ID).Update("role", "admin").Error)

	_, err = svc.Login(ctx, "root", "admin-pw-123", testClient)
	require.NoError(t, err)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "eve@example.com", "eve", "some-pw-123")
	require.NoError(t, r.DB.Model(&models.User{}).
		Where("id = ?", user.ID).Update("is_active", false).Error)

	_, err := svc.Login(ctx, "eve", "some-pw-123", testClient)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRefreshRotatesSessionInPlace(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "fred@example.com", "fred", "pw-fred-77")
	pair, err := svc.Login(ctx, "fred", "pw-fred-77", testClient)
	require.NoError(t, err)
	require.EqualValues(t, 1, sessionCount(t, r, user.ID))

	next, err := svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, testClient)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// still exactly one row: rotation never appends
	require.EqualValues(t, 1, sessionCount(t, r, user.ID))

	// the replaced refresh token is dead
	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)

	// the rotated one works
	_, err = svc.Refresh(ctx, next.AccessToken, next.RefreshToken, testClient)
	require.NoError(t, err)
}

func TestRefreshRejectsGarbageAccessToken(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	registerConfirmed(t, svc, r, "gina@example.com", "gina", "pw-gina-88")
	pair, err := svc.Login(ctx, "gina", "pw-gina-88", testClient)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, "not-a-jwt", pair.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Refresh(ctx, "a.b", pair.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRejectsForeignRefreshToken(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	registerConfirmed(t, svc, r, "hank@example.com", "hank", "pw-hank-99")
	pair, err := svc.Login(ctx, "hank", "pw-hank-99", testClient)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken, "deadbeef", testClient)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "iris@example.com", "iris", "pw-iris-11")
	pair, err := svc.Login(ctx, "iris", "pw-iris-11", testClient)
	require.NoError(t, err)

	require.NoError(t, r.DB.Model(&models.UserSession{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRevokeAllIsSticky(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "jack@example.com", "jack", "pw-jack-22")
	pair1, err := svc.Login(ctx, "jack", "pw-jack-22", testClient)
	require.NoError(t, err)
	pair2, err := svc.Login(ctx, "jack", "pw-jack-22", testClient)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, user.ID, testClient))

	_, err = svc.Refresh(ctx, pair1.AccessToken, pair1.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Refresh(ctx, pair2.AccessToken, pair2.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)

	// rows are kept, only flagged
	require.EqualValues(t, 2, sessionCount(t, r, user.ID))

	// idempotent
	require.NoError(t, svc.RevokeAll(ctx, user.ID, testClient))
}

func TestChangePasswordKeepsSessionsAlive(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "kate@example.com", "kate", "old-pw-333")
	pair, err := svc.Login(ctx, "kate", "old-pw-333", testClient)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrong-old", "new-pw-444", testClient)
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "old-pw-333", "new-pw-444", testClient))

	// old password no longer logs in, new one does
	_, err = svc.Login(ctx, "kate", "old-pw-333", testClient)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Login(ctx, "kate", "new-pw-444", testClient)
	require.NoError(t, err)

	// the session issued before the change still refreshes
	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, testClient)
	require.NoError(t, err)
}

func TestForgotPasswordSilentForUnknownAccount(t *testing.T) {
	svc, _ := newTestAuthService(t)
	require.NoError(t, svc.ForgotPassword(context.Background(), "nobody@example.com", testClient))
}

func TestForgotPasswordSilentForUnconfirmedAccount(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "luke@example.com", "luke", "pw-luke-55", "", "", testClient)
	require.NoError(t, err)

	capture := &captureMail{}
	svc.Mail = capture
	require.NoError(t, svc.ForgotPassword(ctx, "luke@example.com", testClient))
	assert.Empty(t, capture.token)

	stored, err := r.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetTokenHash)
}

func TestResetPasswordFlow(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "mia@example.com", "mia", "old-pw-666")
	oldPair, err := svc.Login(ctx, "mia", "old-pw-666", testClient)
	require.NoError(t, err)

	capture := &captureMail{}
	svc.Mail = capture
	require.NoError(t, svc.ForgotPassword(ctx, "mia@example.com", testClient))
	require.NotEmpty(t, capture.token)
	assert.Equal(t, "mia@example.com", capture.to)

	// token matching ignores hyphens and case
	presented := strings.ToUpper(strings.ReplaceAll(capture.token, "-", ""))
	pair, err := svc.ResetPassword(ctx, presented, "new-pw-777", testClient)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)

	// all prior sessions are revoked
	_, err = svc.Refresh(ctx, oldPair.AccessToken, oldPair.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrUnauthorized)

	// the freshly issued pair works
	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, testClient)
	require.NoError(t, err)

	// token is single use
	_, err = svc.ResetPassword(ctx, capture.token, "again-888", testClient)
	require.ErrorIs(t, err, ErrUnauthorized)

	// new password logs in
	_, err = svc.Login(ctx, "mia", "new-pw-777", testClient)
	require.NoError(t, err)

	stored, err := r.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetTokenHash)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "nina@example.com", "nina", "pw-nina-12")

	capture := &captureMail{}
	svc.Mail = capture
	require.NoError(t, svc.ForgotPassword(ctx, "nina@example.com", testClient))

	require.NoError(t, r.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("reset_token_expires_at", time.Now().Add(-time.Minute)).Error)

	_, err := svc.ResetPassword(ctx, capture.token, "new-pw-13", testClient)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateAccess(t *testing.T) {
	svc, r := newTestAuthService(t)
	ctx := context.Background()

	user := registerConfirmed(t, svc, r, "olga@example.com", "olga", "pw-olga-14")
	pair, err := svc.Login(ctx, "olga", "pw-olga-14", testClient)
	require.NoError(t, err)

	claims, err := svc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "olga@example.com", claims.Email)
	assert.Equal(t, "olga", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, strconv.FormatUint(uint64(user.ID), 10), claims.Subject)

	_, err = svc.ValidateAccess(ctx, "one.two")
	require.ErrorIs(t, err, ErrUnauthorized)

	// wrong signing key
	other := &AuthService{Repo: r, JWTSecret: []byte("other"), Audit: audit.Nop{}, Mail: mail.Nop{}}
	_, err = other.ValidateAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}
