// Package domain contains the core data structures for the application,
// independent of the database or API layers.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle state of a tracked item.
type Status int

const (
	StatusNew        Status = 0
	StatusInProgress Status = 1
	StatusResolved   Status = 2
)

// ParseStatus converts a classifier reply into a Status. Anything that is
// not a known numeric status falls back to StatusNew.
func ParseStatus(s string) Status {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < int(StatusNew) || n > int(StatusResolved) {
		return StatusNew
	}
	return Status(n)
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	return s >= StatusNew && s <= StatusResolved
}

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusInProgress:
		return "in_progress"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Category identifies which tracker a message belongs to. Each category is
// backed by its own DynamoDB table.
type Category string

const (
	CategoryBugs    Category = "BUGS"
	CategoryBlocked Category = "BLOCKED"
	CategoryTasks   Category = "TASKS"
)

// Categories lists all known categories in a stable order.
func Categories() []Category {
	return []Category{CategoryBugs, CategoryBlocked, CategoryTasks}
}

// ParseCategory normalizes and validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether the category is one of the known trackers.
func (c Category) Valid() bool {
	switch c {
	case CategoryBugs, CategoryBlocked, CategoryTasks:
		return true
	}
	return false
}

// Item is a single tracked entry in a channel's category list.
type Item struct {
	ID               string `json:"id"`
	Message          string `json:"message,omitempty"`
	Status           Status `json:"status"`
	CreatedTimestamp string `json:"created_timestamp,omitempty"`
	UpdatedTimestamp string `json:"updated_timestamp,omitempty"`
}

// NewItem builds a fresh item for a category. The id embeds the lowercase
// category and a microsecond timestamp so ids sort by creation time.
func NewItem(category Category, message string, status Status, now time.Time) Item {
	ts := Timestamp(now)
	return Item{
		ID:               fmt.Sprintf("%s_%d", strings.ToLower(string(category)), now.UnixMicro()),
		Message:          message,
		Status:           status,
		CreatedTimestamp: ts,
		UpdatedTimestamp: ts,
	}
}

// Map renders the item in the map shape components and the wire format use.
func (i Item) Map() map[string]any {
	m := map[string]any{
		"id":     i.ID,
		"status": int(i.Status),
	}
	if i.Message != "" {
		m["message"] = i.Message
	}
	if i.CreatedTimestamp != "" {
		m["created_timestamp"] = i.CreatedTimestamp
	}
	if i.UpdatedTimestamp != "" {
		m["updated_timestamp"] = i.UpdatedTimestamp
	}
	return m
}

// ItemFromMap is the inverse of Map. Missing fields stay zero; numeric
// status values survive the float64 round trip of encoding/json.
func ItemFromMap(m map[string]any) Item {
	var it Item
	if v, ok := m["id"].(string); ok {
		it.ID = v
	}
	if v, ok := m["message"].(string); ok {
		it.Message = v
	}
	it.Status = coerceStatus(m["status"])
	if v, ok := m["created_timestamp"].(string); ok {
		it.CreatedTimestamp = v
	}
	if v, ok := m["updated_timestamp"].(string); ok {
		it.UpdatedTimestamp = v
	}
	return it
}

func coerceStatus(v any) Status {
	switch n := v.(type) {
	case Status:
		return n
	case int:
		return Status(n)
	case int64:
		return Status(n)
	case float64:
		return Status(int(n))
	case string:
		return ParseStatus(n)
	}
	return StatusNew
}

// ApplyUpdates merges a partial update map into the item. Unknown keys are
// ignored; updated_timestamp is stamped when the caller did not provide one.
func (i *Item) ApplyUpdates(updates map[string]any, now time.Time) {
	stamped := false
	for k, v := range updates {
		switch k {
		case "message":
			if s, ok := v.(string); ok {
				i.Message = s
			}
		case "status":
			i.Status = coerceStatus(v)
		case "updated_timestamp":
			if s, ok := v.(string); ok {
				i.UpdatedTimestamp = s
				stamped = true
			}
		}
	}
	if !stamped {
		i.UpdatedTimestamp = Timestamp(now)
	}
}

// Channel is one chat channel's row in a category table.
type Channel struct {
	ChannelID string `json:"channel_id"`
	Items     []Item `json:"items"`
	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FindItem returns the index of the item with the given id, or -1.
func (c *Channel) FindItem(itemID string) int {
	for idx, it := range c.Items {
		if it.ID == itemID {
			return idx
		}
	}
	return -1
}

// Run record status values.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunRecord is the persisted trace of one flow execution.
type RunRecord struct {
	FlowID     string         `json:"flow_id"`
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	ExpiresAt  int64          `json:"expires_at,omitempty"`
}

// Event detail types published after triage.
const (
	EventItemAppended = "ItemAppended"
	EventItemUpdated  = "ItemUpdated"
)

// ItemEvent is the payload published to the event bus after a message has
// been triaged into a channel's tracker.
type ItemEvent struct {
	EventType string         `json:"event_type"`
	ChannelID string         `json:"channel_id"`
	Category  Category       `json:"category"`
	Item      map[string]any `json:"item"`
	RunID     string         `json:"run_id,omitempty"`
}

// Timestamp renders a time in the canonical wire format (RFC 3339, UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
