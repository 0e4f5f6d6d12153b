package repo

import (
	"context"
	"time"

	"github.com/kmalykhin/storefront/internal/models"
)

func (r *GormRepo) CreateSession(ctx context.Context, s *models.UserSession) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

// ActiveSessions returns every non-revoked session for the user. Expiry is
// checked by the caller against the matched row, not filtered here, so that
// an expired-but-matching token is rejected with the right reason.
func (r *GormRepo) ActiveSessions(ctx context.Context, userID uint) ([]models.UserSession, error) {
	var sessions []models.UserSession
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND NOT is_revoked", userID).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// RotateSession overwrites the stored hash and pushes the expiry forward.
// The same row is reused: refresh never accumulates session rows.
func (r *GormRepo) RotateSession(ctx context.Context, sessionID uint, newHash string, expiresAt time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.UserSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": expiresAt,
		}).Error
}

func (r *GormRepo) RevokeAllSessions(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND NOT is_revoked", userID).
		Update("is_revoked", true).Error
}
