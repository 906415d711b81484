// Package catalog reads culinary items and recipe details from the item store.
package catalog

import (
	"context"
	"fmt"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/normalize"
	"github.com/starford/larder/internal/query"
	"github.com/starford/larder/internal/store"
)

// Service runs catalog queries against a store.
type Service struct {
	store         store.Store
	fallbackImage string
}

// NewService creates a catalog service. An empty fallbackImage keeps the
// normalizer's default.
func NewService(st store.Store, fallbackImage string) *Service {
	return &Service{store: st, fallbackImage: fallbackImage}
}

// List builds the descriptor for p, fetches it and normalizes every row.
func (s *Service) List(ctx context.Context, p query.Params) ([]models.CulinaryItem, error) {
	d := query.Build(p)
	rows, err := s.store.Select(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", d.Table, err)
	}
	items := normalize.NormalizeAll(rows, p.Kind.OrRecipe())
	for i := range items {
		s.applyFallback(&items[i])
	}
	return items, nil
}

// RecipeDetail returns a recipe with its ingredients and ordered instructions.
// A missing row is apperr.ErrNotFound.
func (s *Service) RecipeDetail(ctx context.Context, id int64) (*models.RecipeDetail, error) {
	rows, err := s.store.Select(ctx, query.From(models.KindRecipe.Table()).Eq("id", id).WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("catalog: recipe %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, apperr.ErrNotFound
	}

	ingredients, err := s.store.Select(ctx, query.From(store.TableIngredients).Eq("recipe_id", id))
	if err != nil {
		return nil, fmt.Errorf("catalog: ingredients of %d: %w", id, err)
	}
	instructions, err := s.store.Select(ctx, query.From(store.TableInstructions).Eq("recipe_id", id).OrderBy("step", true))
	if err != nil {
		return nil, fmt.Errorf("catalog: instructions of %d: %w", id, err)
	}

	item := normalize.Normalize(rows[0], models.KindRecipe)
	s.applyFallback(&item)
	return &models.RecipeDetail{
		CulinaryItem: item,
		Ingredients:  ingredients,
		Instructions: instructions,
		Raw:          rows[0],
	}, nil
}

// RecipeIDs returns the ids of every recipe, oldest first.
func (s *Service) RecipeIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.store.Select(ctx, query.From(models.KindRecipe.Table()).OrderBy("id", true))
	if err != nil {
		return nil, fmt.Errorf("catalog: recipe ids: %w", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID())
	}
	return ids, nil
}

func (s *Service) applyFallback(item *models.CulinaryItem) {
	if s.fallbackImage != "" && item.ImageURL == normalize.FallbackImage {
		item.ImageURL = s.fallbackImage
	}
}
