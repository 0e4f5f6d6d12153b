package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

type OrderService struct {
	Repo *repo.GormRepo
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrForbidden)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	return s.Repo.ListUserOrders(ctx, actor.UserID)
}
