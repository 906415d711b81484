// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes larder tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/larder/internal/browse"
	"github.com/starford/larder/internal/catalog"
	"github.com/starford/larder/internal/documents"
	"github.com/starford/larder/internal/engagement"
	"github.com/starford/larder/internal/importer"
	"github.com/starford/larder/internal/models"
)

const importFormatURI = "larder://import-format"

// Deps are the services the tools call. UserID is the identity every
// document, engagement and import tool acts as.
type Deps struct {
	Catalog    *catalog.Service
	Lists      *documents.ShoppingLists
	Plans      *documents.MealPlans
	Engagement *engagement.Actions
	Importer   *importer.Importer
	UserID     string
	Debounce   time.Duration
	Logger     *slog.Logger
}

// Server wraps the MCP server with larder tools. Browsing tools share one
// session so filters persist between calls.
type Server struct {
	mcp     *server.MCPServer
	d       Deps
	session *browse.ViewModel
}

// New creates a new MCP server with all larder tools registered. Close
// releases the browse session.
func New(ctx context.Context, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{d: d}
	s.session = browse.New(ctx, d.Catalog, browse.Initial(models.KindRecipe), browse.Options{
		Debounce: d.Debounce,
		Logger:   d.Logger,
	})

	s.mcp = server.NewMCPServer(
		"Larder",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("browse_items",
		mcp.WithDescription("Browse the catalog. Arguments adjust the persistent browse session "+
			"(kind, search, filters, sort); omitted arguments keep their current value. "+
			"Returns the session state with the matching items."),
		mcp.WithString("kind", mcp.Description("Item kind"),
			mcp.Enum("recipe", "side", "drink", "sauce", "seasoning_blend")),
		mcp.WithString("search", mcp.Description("Title or name substring; empty clears it")),
		mcp.WithString("difficulty", mcp.Description("Recipe difficulty; empty clears it")),
		mcp.WithString("time", mcp.Description("Total time bucket; empty clears it"),
			mcp.Enum("", "under30", "30to60", "over60")),
		mcp.WithArray("categories", mcp.Description("Required recipe categories (replaces the set)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("dietary_restrictions", mcp.Description("Required dietary restrictions (replaces the set)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("sort", mcp.Description("Ordering"),
			mcp.Enum("", "newest", "oldest", "popular", "rating")),
		mcp.WithString("collection", mcp.Description("Collection tag; empty clears it")),
		mcp.WithBoolean("clear_filters", mcp.Description("Reset recipe filters before applying the others")),
	), s.browseItems)

	s.mcp.AddTool(mcp.NewTool("get_recipe",
		mcp.WithDescription("Read a recipe with its ingredients and ordered instructions."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recipe id")),
	), s.getRecipe)

	s.mcp.AddTool(mcp.NewTool("get_shopping_list",
		mcp.WithDescription("Read the active shopping list, creating an empty one if none exists."),
	), s.getShoppingList)

	s.mcp.AddTool(mcp.NewTool("add_shopping_item",
		mcp.WithDescription("Append an item to the shopping list."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithString("category", mcp.Required(), mcp.Enum(documents.ItemCategories...)),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("Positive amount")),
		mcp.WithString("unit", mcp.Required(), mcp.Enum(documents.ItemUnits...)),
	), s.addShoppingItem)

	s.mcp.AddTool(mcp.NewTool("toggle_shopping_item",
		mcp.WithDescription("Flip the completed flag of a shopping list item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id from get_shopping_list")),
	), s.toggleShoppingItem)

	s.mcp.AddTool(mcp.NewTool("remove_completed_items",
		mcp.WithDescription("Drop every completed item from the shopping list."),
	), s.removeCompletedItems)

	s.mcp.AddTool(mcp.NewTool("generate_shopping_list",
		mcp.WithDescription("Replace the shopping list with a generated one."),
	), s.generateShoppingList)

	s.mcp.AddTool(mcp.NewTool("get_meal_plan",
		mcp.WithDescription("Read the meal plan, creating an empty week starting today if none exists."),
	), s.getMealPlan)

	s.mcp.AddTool(mcp.NewTool("set_meal_slot",
		mcp.WithDescription("Plan a recipe for one day and meal."),
		mcp.WithString("day", mcp.Required(), mcp.Enum(days()...)),
		mcp.WithString("meal", mcp.Required(), mcp.Enum("breakfast", "lunch", "dinner")),
		mcp.WithNumber("recipe_id", mcp.Required(), mcp.Description("Recipe id")),
	), s.setMealSlot)

	s.mcp.AddTool(mcp.NewTool("clear_meal_slot",
		mcp.WithDescription("Unplan one day and meal."),
		mcp.WithString("day", mcp.Required(), mcp.Enum(days()...)),
		mcp.WithString("meal", mcp.Required(), mcp.Enum("breakfast", "lunch", "dinner")),
	), s.clearMealSlot)

	s.mcp.AddTool(mcp.NewTool("generate_meal_plan",
		mcp.WithDescription("Fill every slot of the week with a random recipe from the catalog."),
	), s.generateMealPlan)

	s.mcp.AddTool(mcp.NewTool("toggle_engagement",
		mcp.WithDescription("Toggle a bookmark or like on a recipe. Returns the new state."),
		mcp.WithString("action", mcp.Required(), mcp.Enum("bookmark", "like")),
		mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Recipe id")),
	), s.toggleEngagement)

	s.mcp.AddTool(mcp.NewTool("import_recipes",
		mcp.WithDescription("Import recipes. Pass either content (with format) or url "+
			"(http(s) or base64 data URI). Read the format first via get_import_contract "+
			"or the "+importFormatURI+" resource."),
		mcp.WithString("content", mcp.Description("Inline JSON, YAML or Markdown")),
		mcp.WithString("format", mcp.Description("Format of content"), mcp.Enum("json", "yaml", "md")),
		mcp.WithString("url", mcp.Description("Location of an import file")),
	), s.importRecipes)

	s.mcp.AddTool(mcp.NewTool("get_import_contract",
		mcp.WithDescription("Returns the recipe import format. Call this before import_recipes."),
	), s.getImportContract)

	s.mcp.AddResource(
		mcp.NewResource(importFormatURI, "Recipe Import Format",
			mcp.WithResourceDescription("Fields, defaults and file shapes accepted by import_recipes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Close stops the browse session.
func (s *Server) Close() {
	s.session.Close()
}

func days() []string {
	out := make([]string, len(models.Week))
	for i, d := range models.Week {
		out[i] = string(d)
	}
	return out
}
