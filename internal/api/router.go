package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group so
// event streams are scoped to the same user as the rest of the API.
func NewRouter(d Deps, auth AuthSettings, sseHandler http.Handler) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	// Catalog.
	r.Get("/items", h.ListItems)
	r.Get("/recipes/{id}", h.GetRecipe)
	r.Post("/items/{kind}/{id}/{action:bookmark|like}", h.ToggleEngagement)

	// Shopping list.
	r.Route("/shopping-list", func(r chi.Router) {
		r.Get("/", h.GetShoppingList)
		r.Put("/", h.ReplaceShoppingList)
		r.Post("/items", h.AddShoppingItem)
		r.Post("/items/{itemID}/toggle", h.ToggleShoppingItem)
		r.Delete("/completed", h.RemoveCompleted)
		r.Post("/generate", h.GenerateShoppingList)
	})

	// Meal plan.
	r.Route("/meal-plan", func(r chi.Router) {
		r.Get("/", h.GetMealPlan)
		r.Put("/", h.ReplaceMealPlan)
		r.Post("/generate", h.GenerateMealPlan)
		r.Put("/{day}/{meal}", h.SetMealSlot)
		r.Delete("/{day}/{meal}", h.ClearMealSlot)
	})

	// Import.
	r.Post("/import", h.ImportRecipes)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
