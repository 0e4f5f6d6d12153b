package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/es"
	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

type ProductService struct {
	Repo *repo.GormRepo
	ES   *elasticsearch.Client
}

func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, from, limit int) ([]models.Product, int64, error) {
	return s.Repo.ListProducts(ctx, from, limit)
}

func (s *ProductService) CreateProduct(ctx context.Context, p *models.Product) error {
	l := logging.FromContext(ctx).With("svc", "product.create")

	if p.Name == "" || p.Price < 0 || p.Stock < 0 {
		return fmt.Errorf("name required, price and stock non-negative: %w", ErrValidation)
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.index(ctx, p)
	l.Info("product_created", "product_id", p.ID)
	return nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, p *models.Product) error {
	l := logging.FromContext(ctx).With("svc", "product.update", "product_id", p.ID)

	if _, err := s.GetProduct(ctx, p.ID); err != nil {
		return err
	}
	if err := s.Repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.index(ctx, p)
	l.Info("product_updated")
	return nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "product.delete", "product_id", id)

	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if s.ES != nil {
		if err := es.DeleteProduct(ctx, s.ES, id); err != nil {
			l.Error("es_delete_failed", "error", err)
		}
	}
	l.Info("product_deleted")
	return nil
}

func (s *ProductService) SearchProducts(ctx context.Context, query string, from, limit int) (int64, []models.Product, error) {
	if s.ES == nil {
		return 0, nil, fmt.Errorf("search unavailable: %w", ErrValidation)
	}
	return es.SearchProducts(ctx, s.ES, query, from, limit)
}

// Index failures must not fail the write: the catalog row is the source of
// truth, the search index catches up on the next update.
func (s *ProductService) index(ctx context.Context, p *models.Product) {
	if s.ES == nil {
		return
	}
	if err := es.IndexProduct(ctx, s.ES, p); err != nil {
		logging.FromContext(ctx).Error("es_index_failed", "product_id", p.ID, "error", err)
	}
}
