package repo

import (
	"context"

	"github.com/kmalykhin/storefront/internal/models"
)

func (r *GormRepo) CreateFileObject(ctx context.Context, f *models.FileObject) error {
	return r.DB.WithContext(ctx).Create(f).Error
}

func (r *GormRepo) GetFileObject(ctx context.Context, id uint) (*models.FileObject, error) {
	var f models.FileObject
	if err := r.DB.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}
