package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/starford/larder/internal/importer"
	"github.com/starford/larder/internal/models"
)

// ItemListResponse wraps a catalog listing.
type ItemListResponse struct {
	Items  []models.CulinaryItem `json:"items" validate:"required"`
	Count  int                   `json:"count" example:"12" validate:"required"`
	Status string                `json:"status" example:"ready" validate:"required"`
}

// ReplaceItemsRequest is the body of PUT /shopping-list.
type ReplaceItemsRequest struct {
	Items []models.ShoppingItem `json:"items" validate:"required"`
}

// ReplaceSlotsRequest is the body of PUT /meal-plan.
type ReplaceSlotsRequest struct {
	Recipes models.Slots `json:"recipes" validate:"required"`
}

// SetSlotRequest is the body of PUT /meal-plan/{day}/{meal}.
type SetSlotRequest struct {
	RecipeID int64 `json:"recipe_id" example:"42" validate:"required"`
}

// Validate checks the slot assignment.
func (r SetSlotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RecipeID, validation.Required, validation.Min(int64(1))),
	)
}

// EngagementResponse reports the tracked state after a toggle.
type EngagementResponse struct {
	Kind   models.EngagementKind `json:"kind" example:"bookmark" validate:"required"`
	ItemID int64                 `json:"item_id" example:"42" validate:"required"`
	Active bool                  `json:"active" validate:"required"`
}

// ImportResponse is the per-record import summary.
type ImportResponse = importer.Summary

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
}
