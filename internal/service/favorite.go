package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

type FavoriteService struct {
	Repo *repo.GormRepo
}

func (s *FavoriteService) AddFavorite(ctx context.Context, productID uint, actor Actor) (*models.Favorite, error) {
	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	exists, err := s.Repo.FavoriteExists(ctx, actor.UserID, productID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("already in favorites: %w", ErrConflict)
	}

	f := &models.Favorite{UserID: actor.UserID, ProductID: productID}
	if err := s.Repo.CreateFavorite(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FavoriteService) ListFavorites(ctx context.Context, actor Actor) ([]models.Favorite, error) {
	return s.Repo.ListFavorites(ctx, actor.UserID)
}

func (s *FavoriteService) RemoveFavorite(ctx context.Context, productID uint, actor Actor) error {
	affected, err := s.Repo.DeleteFavorite(ctx, actor.UserID, productID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("favorite: %w", ErrNotFound)
	}
	return nil
}
