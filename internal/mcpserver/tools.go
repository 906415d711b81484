package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/browse"
	"github.com/starford/larder/internal/documents"
	"github.com/starford/larder/internal/importer"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found"), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

// browseActions turns the provided arguments into session actions. Arguments
// that are absent leave the session untouched.
func browseActions(args map[string]any, cur browse.State) ([]browse.Action, error) {
	var acts []browse.Action
	if clear, _ := args["clear_filters"].(bool); clear {
		acts = append(acts, browse.ClearFilters{})
		cur.Filters = models.FilterState{}
	}
	if v, ok := args["kind"].(string); ok && v != "" {
		kind, err := models.ParseKind(v)
		if err != nil {
			return nil, err
		}
		acts = append(acts, browse.SetItemKind{Kind: kind})
	}
	if v, ok := args["search"].(string); ok {
		acts = append(acts, browse.SetSearchText{Text: v})
	}
	if v, ok := args["difficulty"].(string); ok {
		acts = append(acts, browse.SetDifficulty{Difficulty: v})
	}
	if v, ok := args["time"].(string); ok {
		tr, valid := query.ParseTimeRange(v)
		if !valid {
			return nil, fmt.Errorf("unknown time range %q", v)
		}
		acts = append(acts, browse.SetTimeRange{Range: tr})
	}
	if v, ok := args["categories"]; ok {
		want, err := stringSet(v)
		if err != nil {
			return nil, fmt.Errorf("categories: %w", err)
		}
		acts = append(acts, setDiff(cur.Filters.Categories, want, func(c string, on bool) browse.Action {
			return browse.ToggleCategory{Category: c, On: on}
		})...)
	}
	if v, ok := args["dietary_restrictions"]; ok {
		want, err := stringSet(v)
		if err != nil {
			return nil, fmt.Errorf("dietary_restrictions: %w", err)
		}
		acts = append(acts, setDiff(cur.Filters.DietaryRestrictions, want, func(r string, on bool) browse.Action {
			return browse.ToggleDietaryRestriction{Restriction: r, On: on}
		})...)
	}
	if v, ok := args["sort"].(string); ok {
		acts = append(acts, browse.SetSortKey{Sort: models.SortKey(v)})
	}
	if v, ok := args["collection"].(string); ok {
		acts = append(acts, browse.SetCollection{Collection: v})
	}
	return acts, nil
}

func stringSet(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, errors.New("must be a list of strings")
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, errors.New("must be a list of strings")
		}
		out = append(out, s)
	}
	return models.NewSet(out...), nil
}

// setDiff emits the toggles that turn have into want.
func setDiff(have, want []string, toggle func(string, bool) browse.Action) []browse.Action {
	var acts []browse.Action
	for _, h := range have {
		if !slices.Contains(want, h) {
			acts = append(acts, toggle(h, false))
		}
	}
	for _, w := range want {
		if !slices.Contains(have, w) {
			acts = append(acts, toggle(w, true))
		}
	}
	return acts
}

func (s *Server) browseItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	acts, err := browseActions(req.GetArguments(), s.session.State())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for _, a := range acts {
		s.session.Dispatch(a)
	}
	s.session.Flush()
	s.session.Wait()
	// Nothing was ever fetched for this key (first call).
	if s.session.State().Status == browse.StatusLoading {
		s.session.Refresh()
		s.session.Wait()
	}

	st := s.session.State()
	if st.Status == browse.StatusError || st.Status == browse.StatusUnauthenticated {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", st.Status, st.Err)), nil
	}
	return jsonResult(st)
}

func (s *Server) getRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.d.Catalog.RecipeDetail(ctx, int64(id))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(detail)
}

func (s *Server) getShoppingList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, err := s.d.Lists.FetchOrCreate(ctx, s.d.UserID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(l)
}

func (s *Server) addShoppingItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item := models.ShoppingItem{
		Name:     req.GetString("name", ""),
		Category: req.GetString("category", ""),
		Quantity: req.GetInt("quantity", 0),
		Unit:     req.GetString("unit", ""),
	}
	return s.mutateList(ctx, documents.AddItem{Item: item})
}

func (s *Server) toggleShoppingItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.mutateList(ctx, documents.ToggleItemCompleted{ID: id})
}

func (s *Server) removeCompletedItems(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.mutateList(ctx, documents.RemoveCompletedItems{})
}

func (s *Server) generateShoppingList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	l, err := s.d.Lists.Generate(ctx, s.d.UserID, "")
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(l)
}

func (s *Server) mutateList(ctx context.Context, m documents.ShoppingMutation) (*mcp.CallToolResult, error) {
	l, err := s.d.Lists.Mutate(ctx, s.d.UserID, m, "")
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(l)
}

func (s *Server) getMealPlan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.d.Plans.FetchOrCreate(ctx, s.d.UserID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(p)
}

func (s *Server) setMealSlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("recipe_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m := documents.SetSlot{
		Day:      models.DayOfWeek(req.GetString("day", "")),
		Meal:     models.MealType(req.GetString("meal", "")),
		RecipeID: int64(id),
	}
	return s.mutatePlan(ctx, m)
}

func (s *Server) clearMealSlot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := documents.ClearSlot{
		Day:  models.DayOfWeek(req.GetString("day", "")),
		Meal: models.MealType(req.GetString("meal", "")),
	}
	return s.mutatePlan(ctx, m)
}

func (s *Server) generateMealPlan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.d.Catalog.RecipeIDs(ctx)
	if err != nil {
		return errorResult(err)
	}
	p, err := s.d.Plans.Generate(ctx, s.d.UserID, ids, "")
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(p)
}

func (s *Server) mutatePlan(ctx context.Context, m documents.MealPlanMutation) (*mcp.CallToolResult, error) {
	p, err := s.d.Plans.Mutate(ctx, s.d.UserID, m, "")
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(p)
}

func (s *Server) toggleEngagement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := models.EngagementKind(action)
	active, err := s.d.Engagement.Toggle(ctx, kind, int64(id), s.d.UserID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"action": kind, "item_id": id, "active": active})
}

func (s *Server) importRecipes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		name string
		data []byte
	)
	content := req.GetString("content", "")
	rawURL := req.GetString("url", "")
	switch {
	case content != "" && rawURL != "":
		return mcp.NewToolResultError("pass either content or url, not both"), nil
	case content != "":
		name, data = "import."+req.GetString("format", "json"), []byte(content)
	case rawURL != "":
		var err error
		name, data, err = loadSource(ctx, rawURL)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	default:
		return mcp.NewToolResultError("content or url is required"), nil
	}

	recs, err := importer.Decode(name, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.d.Importer.Import(ctx, s.d.UserID, recs))
}

func (s *Server) getImportContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readImportFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      importFormatURI,
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}
