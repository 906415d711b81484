// Package importer bulk-inserts recipes from JSON, YAML and Markdown files.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/store"
)

// Defaults applied to imported recipes.
const (
	UntitledRecipe    = "Untitled Recipe"
	DefaultDifficulty = "medium"
)

var (
	nullableFields = []string{"image", "prep_time", "cook_time", "total_time", "servings"}
	listFields     = []string{"categories", "tags"}
)

// RecordError is one failed record of an import.
type RecordError struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Summary reports an import: every record is tried, successes stay committed.
type Summary struct {
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []RecordError `json:"errors"`
	IDs          []int64       `json:"ids"`
}

// Importer inserts recipes on behalf of one user.
type Importer struct {
	st     store.Store
	logger *slog.Logger
}

// New creates an importer writing to st.
func New(st store.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{st: st, logger: logger}
}

// Import inserts each record separately, owned by userID.
func (im *Importer) Import(ctx context.Context, userID string, recs []models.RawRecord) Summary {
	sum := Summary{Errors: []RecordError{}, IDs: []int64{}}
	for i, raw := range recs {
		rec, err := Prepare(raw, userID)
		if err == nil {
			var saved models.RawRecord
			saved, err = im.st.Insert(ctx, models.KindRecipe.Table(), rec)
			if err == nil {
				sum.SuccessCount++
				sum.IDs = append(sum.IDs, saved.ID())
				continue
			}
		}
		title := UntitledRecipe
		if t, ok := raw.String("title"); ok {
			title = t
		}
		im.logger.Warn("importer: record failed",
			slog.Int("index", i),
			slog.String("title", title),
			slog.String("error", err.Error()))
		sum.ErrorCount++
		sum.Errors = append(sum.Errors, RecordError{Index: i, Title: title, Error: err.Error()})
	}
	im.logger.Info("importer: done",
		slog.Int("success", sum.SuccessCount),
		slog.Int("errors", sum.ErrorCount))
	return sum
}

// Prepare maps a raw record onto the stored recipe shape with import defaults.
// Fields outside that shape are dropped.
func Prepare(raw models.RawRecord, userID string) (models.RawRecord, error) {
	if raw == nil {
		return nil, errors.New("record is not an object")
	}
	if userID == "" {
		return nil, errors.New("import needs a user id")
	}
	rec := models.RawRecord{
		"title":       UntitledRecipe,
		"description": "",
		"difficulty":  DefaultDifficulty,
		"user_id":     userID,
	}
	if t, ok := raw.String("title"); ok {
		rec["title"] = t
	}
	if d, ok := raw.String("description"); ok {
		rec["description"] = d
	}
	if d, ok := raw.String("difficulty"); ok {
		rec["difficulty"] = d
	}
	for _, f := range nullableFields {
		rec[f] = nil
		if v, ok := raw[f]; ok && v != nil {
			rec[f] = v
		}
	}
	for _, f := range listFields {
		rec[f] = []any{}
		switch v := raw[f].(type) {
		case nil:
		case []any:
			rec[f] = v
		case []string:
			list := make([]any, len(v))
			for i, s := range v {
				list[i] = s
			}
			rec[f] = list
		default:
			return nil, fmt.Errorf("%s must be a list", f)
		}
	}
	return rec, nil
}
