package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lfarias/chatrelay/pkg/model"
)

// MemoryStore provides an in-memory DataStore implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextTransferID int64

	groupOrder []string
	groups     map[string]*model.Group
	transfers  []model.Transfer
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:            now,
		nextTransferID: 1,
		groups:         make(map[string]*model.Group),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateGroup persists a new group seeded with its creator.
func (s *MemoryStore) CreateGroup(name, creator string) (*model.Group, error) {
	if err := model.ValidateGroupName(name); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	if err := model.ValidateHandle(creator); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[name]; exists {
		return nil, fmt.Errorf("store: create group: constraint failed: UNIQUE constraint failed: groups.name")
	}
	g := &model.Group{
		Name:      name,
		Members:   []string{creator},
		CreatedAt: s.now().UTC(),
	}
	s.groups[name] = g
	s.groupOrder = append(s.groupOrder, name)

	copyGroup := *g
	copyGroup.Members = append([]string(nil), g.Members...)
	return &copyGroup, nil
}

// AddGroupMember persists a membership addition. Adding an existing
// member is a no-op.
func (s *MemoryStore) AddGroupMember(name, member string) error {
	if err := model.ValidateHandle(member); err != nil {
		return fmt.Errorf("store: add member: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return fmt.Errorf("store: add member: group %q not found", name)
	}
	for _, m := range g.Members {
		if m == member {
			return nil
		}
	}
	g.Members = append(g.Members, member)
	return nil
}

// GetGroup retrieves a group by name. Returns (nil, nil) if not found.
func (s *MemoryStore) GetGroup(name string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	copyGroup := *g
	copyGroup.Members = append([]string(nil), g.Members...)
	sort.Strings(copyGroup.Members)
	return &copyGroup, nil
}

// ListGroups returns all groups with their full member sets.
func (s *MemoryStore) ListGroups() ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]model.Group, 0, len(s.groupOrder))
	for _, name := range s.groupOrder {
		g := s.groups[name]
		copyGroup := *g
		copyGroup.Members = append([]string(nil), g.Members...)
		sort.Strings(copyGroup.Members)
		groups = append(groups, copyGroup)
	}
	return groups, nil
}

// RecordTransfer appends one relayed-file audit record.
func (s *MemoryStore) RecordTransfer(t *model.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	t.ID = s.nextTransferID
	s.nextTransferID++
	s.transfers = append(s.transfers, *t)
	return nil
}

// ListTransfers returns the most recent transfer records, newest first.
func (s *MemoryStore) ListTransfers(limit int) ([]model.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transfers := make([]model.Transfer, 0, len(s.transfers))
	for i := len(s.transfers) - 1; i >= 0; i-- {
		if limit > 0 && len(transfers) == limit {
			break
		}
		transfers = append(transfers, s.transfers[i])
	}
	return transfers, nil
}

// Compile-time check: *MemoryStore implements DataStore.
var _ DataStore = (*MemoryStore)(nil)
