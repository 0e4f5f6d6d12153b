package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReviewOncePerProduct(t *testing.T) {
	r := newTestRepo(t)
	svc := &ReviewService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "lamp", 12.00, 5)

	review, err := svc.AddReview(ctx, p.ID, 4, "bright enough", actor)
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)

	_, err = svc.AddReview(ctx, p.ID, 5, "changed my mind", actor)
	require.ErrorIs(t, err, ErrConflict)

	// a different user may still review
	_, err = svc.AddReview(ctx, p.ID, 2, "too dim", Actor{UserID: 2, Role: "user"})
	require.NoError(t, err)

	reviews, total, err := svc.ListReviews(ctx, p.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, reviews, 2)
}

func TestAddReviewValidation(t *testing.T) {
	r := newTestRepo(t)
	svc := &ReviewService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "desk", 80.00, 5)

	_, err := svc.AddReview(ctx, p.ID, 0, "", actor)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddReview(ctx, p.ID, 6, "", actor)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddReview(ctx, 999, 3, "", actor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeleteOwnReview(t *testing.T) {
	r := newTestRepo(t)
	svc := &ReviewService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "chair", 45.00, 5)
	_, err := svc.AddReview(ctx, p.ID, 3, "ok", actor)
	require.NoError(t, err)

	updated, err := svc.UpdateReview(ctx, p.ID, 5, "grew on me", actor)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, "grew on me", updated.Comment)

	// a stranger has no review row to update
	_, err = svc.UpdateReview(ctx, p.ID, 1, "", Actor{UserID: 2, Role: "user"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteReview(ctx, p.ID, actor))
	require.ErrorIs(t, svc.DeleteReview(ctx, p.ID, actor), ErrNotFound)
}

func TestFavoriteLifecycle(t *testing.T) {
	r := newTestRepo(t)
	svc := &FavoriteService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "shelf", 30.00, 5)

	fav, err := svc.AddFavorite(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, p.ID, fav.ProductID)

	_, err = svc.AddFavorite(ctx, p.ID, actor)
	require.ErrorIs(t, err, ErrConflict)

	list, err := svc.ListFavorites(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.RemoveFavorite(ctx, p.ID, actor))
	require.ErrorIs(t, svc.RemoveFavorite(ctx, p.ID, actor), ErrNotFound)

	_, err = svc.AddFavorite(ctx, 999, actor)
	require.ErrorIs(t, err, ErrNotFound)
}
