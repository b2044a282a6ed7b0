package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Status
	}{
		{"new", "0", StatusNew},
		{"in progress", "1", StatusInProgress},
		{"resolved", "2", StatusResolved},
		{"whitespace", " 2 ", StatusResolved},
		{"not a digit", "unsure", StatusNew},
		{"out of range", "7", StatusNew},
		{"negative", "-1", StatusNew},
		{"empty", "", StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.input))
		})
	}
}

func TestParseCategory(t *testing.T) {
	t.Run("normalizes case and spacing", func(t *testing.T) {
		c, err := ParseCategory(" bugs ")
		require.NoError(t, err)
		assert.Equal(t, CategoryBugs, c)
	})

	t.Run("rejects unknown categories", func(t *testing.T) {
		_, err := ParseCategory("FEATURES")
		assert.Error(t, err)
	})
}

func TestNewItem(t *testing.T) {
	now := time.Date(2024, 3, 19, 12, 0, 0, 0, time.UTC)

	item := NewItem(CategoryBugs, "login button broken", StatusNew, now)

	assert.Equal(t, "bugs_1710849600000000", item.ID)
	assert.Equal(t, "login button broken", item.Message)
	assert.Equal(t, StatusNew, item.Status)
	assert.Equal(t, "2024-03-19T12:00:00Z", item.CreatedTimestamp)
	assert.Equal(t, item.CreatedTimestamp, item.UpdatedTimestamp)
}

func TestItemMapRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 19, 12, 0, 0, 0, time.UTC)
	item := NewItem(CategoryTasks, "write release notes", StatusInProgress, now)

	got := ItemFromMap(item.Map())

	assert.Equal(t, item, got)
}

func TestItemFromMapCoercesJSONNumbers(t *testing.T) {
	// encoding/json decodes numbers into float64.
	it := ItemFromMap(map[string]any{
		"id":     "bugs_1",
		"status": float64(2),
	})

	assert.Equal(t, StatusResolved, it.Status)
}

func TestApplyUpdates(t *testing.T) {
	now := time.Date(2024, 3, 19, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	t.Run("stamps updated_timestamp when absent", func(t *testing.T) {
		item := NewItem(CategoryBugs, "crash on save", StatusNew, now)
		item.ApplyUpdates(map[string]any{"status": 1}, later)

		assert.Equal(t, StatusInProgress, item.Status)
		assert.Equal(t, "2024-03-19T13:00:00Z", item.UpdatedTimestamp)
		assert.Equal(t, "2024-03-19T12:00:00Z", item.CreatedTimestamp)
	})

	t.Run("keeps caller supplied timestamp", func(t *testing.T) {
		item := NewItem(CategoryBugs, "crash on save", StatusNew, now)
		item.ApplyUpdates(map[string]any{
			"status":            "2",
			"updated_timestamp": "2024-03-20T00:00:00Z",
		}, later)

		assert.Equal(t, StatusResolved, item.Status)
		assert.Equal(t, "2024-03-20T00:00:00Z", item.UpdatedTimestamp)
	})

	t.Run("ignores unknown keys", func(t *testing.T) {
		item := NewItem(CategoryBugs, "crash on save", StatusNew, now)
		item.ApplyUpdates(map[string]any{"priority": "high"}, later)

		assert.Equal(t, "crash on save", item.Message)
		assert.Equal(t, StatusNew, item.Status)
	})
}

func TestChannelFindItem(t *testing.T) {
	ch := Channel{
		ChannelID: "C123",
		Items: []Item{
			{ID: "bugs_1"},
			{ID: "bugs_2"},
		},
	}

	assert.Equal(t, 1, ch.FindItem("bugs_2"))
	assert.Equal(t, -1, ch.FindItem("bugs_9"))
}
