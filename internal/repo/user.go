package repo

import (
	"context"
	"errors"
	"time"

	"github.com/kmalykhin/storefront/internal/models"
)

var ErrUserAlreadyExists = errors.New("user already exists")

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByIdentifier resolves a login identifier that may be either an
// email address or a username.
func (r *GormRepo) FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).
		Where("email = ? OR username = ?", identifier, identifier).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", u.Email, u.Username).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExists
	}
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error
}

func (r *GormRepo) SetResetToken(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": expiresAt,
		}).Error
}

func (r *GormRepo) ClearResetToken(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		}).Error
}

// UsersWithResetToken returns every user holding an unconsumed reset token.
// The token is stored hashed, so lookup has to scan and verify each row.
func (r *GormRepo) UsersWithResetToken(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.DB.WithContext(ctx).
		Where("reset_token_hash IS NOT NULL").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormRepo) TouchLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error
}
