package models

import "time"

// EngagementKind is the type of user-to-item edge.
type EngagementKind string

const (
	Bookmark EngagementKind = "bookmark"
	Like     EngagementKind = "like"
)

// EngagementEdge records that a user bookmarked or liked an item.
type EngagementEdge struct {
	UserID    string         `json:"user_id"`
	ItemID    int64          `json:"item_id"`
	Kind      EngagementKind `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
}
