package query

import (
	"strings"

	"github.com/starford/larder/internal/models"
)

var timeRangeLabels = map[string]models.TimeRange{
	"< 30 mins":  models.TimeUnder30,
	"30-60 mins": models.Time30To60,
	"> 60 mins":  models.TimeOver60,
}

// ParseTimeRange accepts an enum value ("under30") or a filter label ("< 30 mins").
func ParseTimeRange(s string) (models.TimeRange, bool) {
	s = strings.TrimSpace(s)
	if tr, ok := timeRangeLabels[s]; ok {
		return tr, true
	}
	switch tr := models.TimeRange(s); tr {
	case models.TimeAny, models.TimeUnder30, models.Time30To60, models.TimeOver60:
		return tr, true
	}
	return models.TimeAny, false
}

// TimeRangeValues returns inclusive minute bounds for a time range; nil means unbounded.
// Unknown ranges yield (nil, nil).
func TimeRangeValues(s string) (lower, upper *int) {
	tr, _ := ParseTimeRange(s)
	switch tr {
	case models.TimeUnder30:
		return nil, bound(30)
	case models.Time30To60:
		return bound(30), bound(60)
	case models.TimeOver60:
		return bound(60), nil
	}
	return nil, nil
}

func bound(n int) *int { return &n }
