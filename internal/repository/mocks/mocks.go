// Package mocks provides in-memory repository implementations for tests.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/repository"
	appErrors "channelflow-backend/pkg/errors"
)

// MockChannelRepository is an in-memory repository.ChannelRepository.
// Failures can be injected per operation with SetError.
type MockChannelRepository struct {
	mu           sync.RWMutex
	tables       map[string]map[string]*domain.Channel
	shouldFailOn map[string]error

	// Regions records every WithRegion call so tests can assert routing.
	Regions []string

	now func() time.Time
}

// NewMockChannelRepository creates an empty mock channel repository.
func NewMockChannelRepository() *MockChannelRepository {
	return &MockChannelRepository{
		tables:       make(map[string]map[string]*domain.Channel),
		shouldFailOn: make(map[string]error),
		now:          time.Now,
	}
}

// SetError makes the named operation return err until cleared.
func (m *MockChannelRepository) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn[operation] = err
}

// ClearErrors removes all injected errors.
func (m *MockChannelRepository) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn = make(map[string]error)
}

// SetNow pins the clock used for channel timestamps.
func (m *MockChannelRepository) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Seed installs a channel row directly, creating the table if needed.
func (m *MockChannelRepository) Seed(table, channelID string, items []domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)
	now := domain.Timestamp(m.now())
	t[channelID] = &domain.Channel{
		ChannelID: channelID,
		Items:     append([]domain.Item{}, items...),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *MockChannelRepository) checkError(operation string) error {
	if err, ok := m.shouldFailOn[operation]; ok {
		return err
	}
	return nil
}

// table returns the named table map. Callers hold the lock.
func (m *MockChannelRepository) table(name string) map[string]*domain.Channel {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]*domain.Channel)
		m.tables[name] = t
	}
	return t
}

// GetItems implements repository.ChannelRepository.
func (m *MockChannelRepository) GetItems(ctx context.Context, table, channelID string) ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkError("GetItems"); err != nil {
		return nil, err
	}
	t, ok := m.tables[table]
	if !ok {
		return []domain.Item{}, nil
	}
	ch, ok := t[channelID]
	if !ok {
		return []domain.Item{}, nil
	}
	return append([]domain.Item{}, ch.Items...), nil
}

// EnsureChannel implements repository.ChannelRepository.
func (m *MockChannelRepository) EnsureChannel(ctx context.Context, table, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkError("EnsureChannel"); err != nil {
		return err
	}
	t := m.table(table)
	if _, ok := t[channelID]; !ok {
		now := domain.Timestamp(m.now())
		t[channelID] = &domain.Channel{
			ChannelID: channelID,
			Items:     []domain.Item{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return nil
}

// AppendItem implements repository.ChannelRepository.
func (m *MockChannelRepository) AppendItem(ctx context.Context, table, channelID string, item domain.Item) (*domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkError("AppendItem"); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, appErrors.NewValidation("item id is required")
	}

	t := m.table(table)
	ch, ok := t[channelID]
	if !ok {
		now := domain.Timestamp(m.now())
		ch = &domain.Channel{ChannelID: channelID, Items: []domain.Item{}, CreatedAt: now, UpdatedAt: now}
		t[channelID] = ch
	}
	if ch.FindItem(item.ID) >= 0 {
		return nil, appErrors.NewConflict("item " + item.ID + " already exists")
	}

	ch.Items = append(ch.Items, item)
	ch.Version++
	ch.UpdatedAt = domain.Timestamp(m.now())
	return snapshot(ch), nil
}

// UpdateItem implements repository.ChannelRepository.
func (m *MockChannelRepository) UpdateItem(ctx context.Context, table, channelID, itemID string, updates map[string]any) (*domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkError("UpdateItem"); err != nil {
		return nil, err
	}

	t := m.table(table)
	ch, ok := t[channelID]
	if !ok {
		return nil, appErrors.NewNotFound("channel " + channelID + " not found")
	}
	idx := ch.FindItem(itemID)
	if idx < 0 {
		return nil, appErrors.NewNotFound("item " + itemID + " not found")
	}

	ch.Items[idx].ApplyUpdates(updates, m.now())
	ch.Version++
	ch.UpdatedAt = domain.Timestamp(m.now())
	return snapshot(ch), nil
}

// WithRegion implements repository.ChannelRepository. The mock keeps a
// single backing store; it only records the requested region.
func (m *MockChannelRepository) WithRegion(region string) repository.ChannelRepository {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Regions = append(m.Regions, region)
	return m
}

func snapshot(ch *domain.Channel) *domain.Channel {
	cp := *ch
	cp.Items = append([]domain.Item{}, ch.Items...)
	return &cp
}

// MockRunRepository is an in-memory repository.RunRepository.
type MockRunRepository struct {
	mu           sync.RWMutex
	runs         map[string]map[string]domain.RunRecord
	shouldFailOn map[string]error
}

// NewMockRunRepository creates an empty mock run repository.
func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{
		runs:         make(map[string]map[string]domain.RunRecord),
		shouldFailOn: make(map[string]error),
	}
}

// SetError makes the named operation return err until cleared.
func (m *MockRunRepository) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn[operation] = err
}

// ClearErrors removes all injected errors.
func (m *MockRunRepository) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn = make(map[string]error)
}

func (m *MockRunRepository) checkError(operation string) error {
	if err, ok := m.shouldFailOn[operation]; ok {
		return err
	}
	return nil
}

// SaveRun implements repository.RunRepository.
func (m *MockRunRepository) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkError("SaveRun"); err != nil {
		return err
	}
	if record.FlowID == "" || record.RunID == "" {
		return appErrors.NewValidation("run record needs flow id and run id")
	}
	byRun, ok := m.runs[record.FlowID]
	if !ok {
		byRun = make(map[string]domain.RunRecord)
		m.runs[record.FlowID] = byRun
	}
	byRun[record.RunID] = *record
	return nil
}

// GetRun implements repository.RunRepository.
func (m *MockRunRepository) GetRun(ctx context.Context, flowID, runID string) (*domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkError("GetRun"); err != nil {
		return nil, err
	}
	rec, ok := m.runs[flowID][runID]
	if !ok {
		return nil, appErrors.NewNotFound("run " + runID + " not found for flow " + flowID)
	}
	cp := rec
	return &cp, nil
}

// ListRuns implements repository.RunRepository. Records come back newest
// first, matching the DynamoDB implementation's reverse key order.
func (m *MockRunRepository) ListRuns(ctx context.Context, flowID string, limit int) ([]domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkError("ListRuns"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	records := make([]domain.RunRecord, 0, len(m.runs[flowID]))
	for _, rec := range m.runs[flowID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RunID > records[j].RunID })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Ping implements repository.RunRepository.
func (m *MockRunRepository) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkError("Ping")
}
