package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/browse"
	"github.com/starford/larder/internal/catalog"
	"github.com/starford/larder/internal/documents"
	"github.com/starford/larder/internal/engagement"
	"github.com/starford/larder/internal/importer"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

const maxBody = 10 << 20

// Events receives notifications the handlers raise outside the document stores.
type Events interface {
	PublishImport(count int)
}

// Deps are the services the handlers call.
type Deps struct {
	Catalog    *catalog.Service
	Lists      *documents.ShoppingLists
	Plans      *documents.MealPlans
	Engagement *engagement.Actions
	Importer   *importer.Importer
	Events     Events
}

// Handler holds API route handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d}
}

// itemParams reads the browse state from the query string. Unknown values are
// dropped the way the query builder drops what it cannot express.
func itemParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	p := query.Params{
		Kind:       models.KindRecipe,
		Search:     q.Get("search"),
		Sort:       models.SortKey(q.Get("sort")),
		Collection: q.Get("collection"),
	}
	if k := q.Get("kind"); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			return p, err
		}
		p.Kind = kind
	}
	p.Filters.Difficulty = q.Get("difficulty")
	if tr, ok := query.ParseTimeRange(q.Get("time")); ok {
		p.Filters.TimeRange = tr
	}
	p.Filters.Categories = models.NewSet(q["category"]...)
	p.Filters.DietaryRestrictions = models.NewSet(q["dietary"]...)
	return p, nil
}

// ListItems handles GET /api/items.
//
//	@Summary		Browse one catalog kind with search, filters and sort
//	@Tags			items
//	@Produce		json
//	@Param			kind		query		string		false	"Item kind"	Enums(recipe, side, drink, sauce, seasoning_blend)
//	@Param			search		query		string		false	"Title or name substring"
//	@Param			difficulty	query		string		false	"Recipe difficulty"
//	@Param			time		query		string		false	"Total time bucket"	Enums(under30, 30to60, over60)
//	@Param			category	query		[]string	false	"Required categories"
//	@Param			dietary		query		[]string	false	"Required dietary restrictions"
//	@Param			sort		query		string		false	"Ordering"	Enums(newest, oldest, popular, rating)
//	@Param			collection	query		string		false	"Collection tag"
//	@Success		200			{object}	ItemListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	p, err := itemParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	items, err := h.Catalog.List(r.Context(), p)
	if err != nil {
		h.fail(w, r, "list items", err)
		return
	}
	status := browse.StatusReady
	if len(items) == 0 {
		status = browse.StatusEmpty
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Count: len(items), Status: string(status)})
}

// GetRecipe handles GET /api/recipes/{id}.
//
//	@Summary		Get a recipe with its ingredients and instructions
//	@Tags			items
//	@Produce		json
//	@Param			id	path		int	true	"Recipe id"
//	@Success		200	{object}	models.RecipeDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{id} [get]
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid recipe id"))
		return
	}
	detail, err := h.Catalog.RecipeDetail(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResponse{Error: "recipe not found", Back: "/api/items?kind=recipe"})
		return
	}
	if err != nil {
		h.fail(w, r, "get recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetShoppingList handles GET /api/shopping-list.
//
//	@Summary		Get the caller's active shopping list, creating it if needed
//	@Tags			shopping
//	@Produce		json
//	@Success		200	{object}	models.ShoppingList
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/shopping-list [get]
func (h *Handler) GetShoppingList(w http.ResponseWriter, r *http.Request) {
	l, err := h.Lists.FetchOrCreate(r.Context(), UserFromContext(r.Context()))
	h.writeList(w, r, "get shopping list", l, err)
}

// ReplaceShoppingList handles PUT /api/shopping-list.
//
//	@Summary		Replace every item of the shopping list
//	@Tags			shopping
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header		string				false	"Revision the edit is based on"
//	@Param			body		body		ReplaceItemsRequest	true	"New items"
//	@Success		200			{object}	models.ShoppingList
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/shopping-list [put]
func (h *Handler) ReplaceShoppingList(w http.ResponseWriter, r *http.Request) {
	var req ReplaceItemsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := h.Lists.Mutate(r.Context(), UserFromContext(r.Context()), documents.ReplaceAllItems{Items: req.Items}, ifMatch(r))
	h.writeList(w, r, "replace shopping list", l, err)
}

// AddShoppingItem handles POST /api/shopping-list/items.
//
//	@Summary		Append an item to the shopping list
//	@Tags			shopping
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.ShoppingItem	true	"Item to add"
//	@Success		201		{object}	models.ShoppingList
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/shopping-list/items [post]
func (h *Handler) AddShoppingItem(w http.ResponseWriter, r *http.Request) {
	var item models.ShoppingItem
	if !decodeBody(w, r, &item) {
		return
	}
	l, err := h.Lists.Mutate(r.Context(), UserFromContext(r.Context()), documents.AddItem{Item: item}, ifMatch(r))
	if err != nil {
		h.fail(w, r, "add shopping item", err)
		return
	}
	writeETag(w, l.Revision)
	writeJSON(w, http.StatusCreated, l)
}

// ToggleShoppingItem handles POST /api/shopping-list/items/{itemID}/toggle.
func (h *Handler) ToggleShoppingItem(w http.ResponseWriter, r *http.Request) {
	m := documents.ToggleItemCompleted{ID: chi.URLParam(r, "itemID")}
	l, err := h.Lists.Mutate(r.Context(), UserFromContext(r.Context()), m, ifMatch(r))
	h.writeList(w, r, "toggle shopping item", l, err)
}

// RemoveCompleted handles DELETE /api/shopping-list/completed.
func (h *Handler) RemoveCompleted(w http.ResponseWriter, r *http.Request) {
	l, err := h.Lists.Mutate(r.Context(), UserFromContext(r.Context()), documents.RemoveCompletedItems{}, ifMatch(r))
	h.writeList(w, r, "remove completed items", l, err)
}

// GenerateShoppingList handles POST /api/shopping-list/generate.
func (h *Handler) GenerateShoppingList(w http.ResponseWriter, r *http.Request) {
	l, err := h.Lists.Generate(r.Context(), UserFromContext(r.Context()), ifMatch(r))
	h.writeList(w, r, "generate shopping list", l, err)
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, op string, l models.ShoppingList, err error) {
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeETag(w, l.Revision)
	writeJSON(w, http.StatusOK, l)
}

// GetMealPlan handles GET /api/meal-plan.
//
//	@Summary		Get the caller's meal plan, creating an empty week if needed
//	@Tags			meal-plan
//	@Produce		json
//	@Success		200	{object}	models.MealPlan
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/meal-plan [get]
func (h *Handler) GetMealPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.FetchOrCreate(r.Context(), UserFromContext(r.Context()))
	h.writePlan(w, r, "get meal plan", p, err)
}

// ReplaceMealPlan handles PUT /api/meal-plan.
//
//	@Summary		Replace every slot of the meal plan
//	@Tags			meal-plan
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header		string				false	"Revision the edit is based on"
//	@Param			body		body		ReplaceSlotsRequest	true	"New slots"
//	@Success		200			{object}	models.MealPlan
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/meal-plan [put]
func (h *Handler) ReplaceMealPlan(w http.ResponseWriter, r *http.Request) {
	var req ReplaceSlotsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.Plans.Mutate(r.Context(), UserFromContext(r.Context()), documents.ReplaceAllSlots{Slots: req.Recipes}, ifMatch(r))
	h.writePlan(w, r, "replace meal plan", p, err)
}

// SetMealSlot handles PUT /api/meal-plan/{day}/{meal}.
//
//	@Summary		Assign a recipe to one slot
//	@Tags			meal-plan
//	@Accept			json
//	@Produce		json
//	@Param			day		path		string			true	"Day of week"
//	@Param			meal	path		string			true	"Meal"	Enums(breakfast, lunch, dinner)
//	@Param			body	body		SetSlotRequest	true	"Recipe"
//	@Success		200		{object}	models.MealPlan
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/meal-plan/{day}/{meal} [put]
func (h *Handler) SetMealSlot(w http.ResponseWriter, r *http.Request) {
	var req SetSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	day, meal := slotParams(r)
	m := documents.SetSlot{Day: day, Meal: meal, RecipeID: req.RecipeID}
	p, err := h.Plans.Mutate(r.Context(), UserFromContext(r.Context()), m, ifMatch(r))
	h.writePlan(w, r, "set meal slot", p, err)
}

// ClearMealSlot handles DELETE /api/meal-plan/{day}/{meal}.
func (h *Handler) ClearMealSlot(w http.ResponseWriter, r *http.Request) {
	day, meal := slotParams(r)
	p, err := h.Plans.Mutate(r.Context(), UserFromContext(r.Context()), documents.ClearSlot{Day: day, Meal: meal}, ifMatch(r))
	h.writePlan(w, r, "clear meal slot", p, err)
}

// GenerateMealPlan handles POST /api/meal-plan/generate.
// Every slot is filled with a recipe sampled from the catalog.
func (h *Handler) GenerateMealPlan(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Catalog.RecipeIDs(r.Context())
	if err != nil {
		h.fail(w, r, "generate meal plan", err)
		return
	}
	p, err := h.Plans.Generate(r.Context(), UserFromContext(r.Context()), ids, ifMatch(r))
	h.writePlan(w, r, "generate meal plan", p, err)
}

func (h *Handler) writePlan(w http.ResponseWriter, r *http.Request, op string, p models.MealPlan, err error) {
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeETag(w, p.Revision)
	writeJSON(w, http.StatusOK, p)
}

// slotParams reads {day} case-insensitively so /meal-plan/monday/lunch works.
// Unknown values pass through and fail slot validation.
func slotParams(r *http.Request) (models.DayOfWeek, models.MealType) {
	raw := chi.URLParam(r, "day")
	day := models.DayOfWeek(raw)
	for _, d := range models.Week {
		if strings.EqualFold(string(d), raw) {
			day = d
			break
		}
	}
	return day, models.MealType(strings.ToLower(chi.URLParam(r, "meal")))
}

// ToggleEngagement handles POST /api/items/{kind}/{id}/{action} for bookmark and like.
// Engagement edges reference recipes, so any other kind is rejected.
//
//	@Summary		Toggle a bookmark or like on an item
//	@Tags			items
//	@Produce		json
//	@Param			kind	path		string	true	"Item kind"	Enums(recipe, recipes)
//	@Param			id		path		int		true	"Recipe id"
//	@Param			action	path		string	true	"Engagement"	Enums(bookmark, like)
//	@Success		200		{object}	EngagementResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{kind}/{id}/{action} [post]
func (h *Handler) ToggleEngagement(w http.ResponseWriter, r *http.Request) {
	itemKind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if itemKind != models.KindRecipe {
		writeJSON(w, http.StatusBadRequest, errorBody("bookmarks and likes apply to recipes only"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	kind := models.EngagementKind(chi.URLParam(r, "action"))
	active, err := h.Engagement.Toggle(r.Context(), kind, id, UserFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "toggle "+string(kind), err)
		return
	}
	writeJSON(w, http.StatusOK, EngagementResponse{Kind: kind, ItemID: id, Active: active})
}

// ImportRecipes handles POST /api/import.
//
//	@Summary		Import recipes from a JSON, YAML or Markdown body
//	@Tags			import
//	@Accept			json
//	@Produce		json
//	@Param			format	query		string	false	"Body format when Content-Type is ambiguous"	Enums(json, yaml, md)
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) ImportRecipes(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody(apperr.ErrAuthRequired.Error()))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	recs, err := importer.Decode("upload."+importFormat(r), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	sum := h.Importer.Import(r.Context(), user, recs)
	if h.Events != nil && sum.SuccessCount > 0 {
		h.Events.PublishImport(sum.SuccessCount)
	}
	writeJSON(w, http.StatusOK, sum)
}

func importFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.ToLower(f)
	}
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "yaml"):
		return "yaml"
	case strings.Contains(ct, "markdown"):
		return "md"
	}
	return "json"
}

// Health handles GET /healthz and /readyz.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func ifMatch(r *http.Request) string {
	// Strip surrounding quotes if present (standard ETag format).
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

// fail maps service errors onto statuses. Anything unrecognised is logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("revision mismatch"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrAuthRequired), browse.IsAuthError(err):
		writeJSON(w, http.StatusUnauthorized, errorBody(err.Error()))
	default:
		slog.Error(op+" failed",
			slog.String("user", UserFromContext(r.Context())),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
