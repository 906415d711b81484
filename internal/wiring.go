package internal

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starford/larder/internal/api"
	"github.com/starford/larder/internal/catalog"
	"github.com/starford/larder/internal/documents"
	"github.com/starford/larder/internal/engagement"
	"github.com/starford/larder/internal/importer"
	"github.com/starford/larder/internal/mcpserver"
	"github.com/starford/larder/internal/store"
)

// services is the set of domain services every entry point shares.
type services struct {
	store      store.Store
	catalog    *catalog.Service
	lists      *documents.ShoppingLists
	plans      *documents.MealPlans
	engagement *engagement.Actions
	importer   *importer.Importer
}

// openStore opens the backend named by cfg.Store.Driver.
func openStore(cfg *Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case StoreDriverPostgREST:
		client := &http.Client{Timeout: cfg.Store.PostgREST.Timeout}
		return store.NewPostgREST(cfg.Store.PostgREST.URL, cfg.Store.PostgREST.APIKey, client), nil
	default:
		st, err := store.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return st, nil
	}
}

func newServices(cfg *Config, st store.Store, logger *slog.Logger, notify documents.Notifier) *services {
	var docOpts []documents.Option
	if notify != nil {
		docOpts = append(docOpts, documents.WithNotifier(notify))
	}
	return &services{
		store:      st,
		catalog:    catalog.NewService(st, cfg.Catalog.FallbackImage),
		lists:      documents.NewShoppingLists(st, docOpts...),
		plans:      documents.NewMealPlans(st, docOpts...),
		engagement: engagement.New(st),
		importer:   importer.New(st, logger),
	}
}

func (s *services) apiDeps(events api.Events) api.Deps {
	return api.Deps{
		Catalog:    s.catalog,
		Lists:      s.lists,
		Plans:      s.plans,
		Engagement: s.engagement,
		Importer:   s.importer,
		Events:     events,
	}
}

func (s *services) mcpDeps(cfg *Config, userID string, logger *slog.Logger) mcpserver.Deps {
	return mcpserver.Deps{
		Catalog:    s.catalog,
		Lists:      s.lists,
		Plans:      s.plans,
		Engagement: s.engagement,
		Importer:   s.importer,
		UserID:     userID,
		Debounce:   cfg.Catalog.SearchDebounce,
		Logger:     logger,
	}
}
