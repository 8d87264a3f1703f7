package server

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lfarias/chatrelay/pkg/model"
	"github.com/lfarias/chatrelay/pkg/store"
)

// AddResult reports the outcome of a membership addition.
type AddResult int

const (
	AddOK AddResult = iota
	AddGroupMissing
	AddRequesterNotMember
	AddAlreadyMember
)

// GroupRegistry manages named groups and their member sets. The
// in-memory map is the live authority; every mutation is written
// through to the store so groups survive a restart. Store failures are
// logged and never fail the client's request.
//
// Membership only grows and groups are never destroyed while the
// process runs.
type GroupRegistry struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // group name -> set of handles
	store   store.DataStore            // nil disables persistence
}

// NewGroupRegistry creates a group registry backed by the given store.
func NewGroupRegistry(st store.DataStore) *GroupRegistry {
	return &GroupRegistry{
		members: make(map[string]map[string]bool),
		store:   st,
	}
}

// Load seeds the registry from previously persisted groups. Existing
// in-memory groups are merged, not replaced.
func (g *GroupRegistry) Load(groups []model.Group) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, grp := range groups {
		set, ok := g.members[grp.Name]
		if !ok {
			set = make(map[string]bool)
			g.members[grp.Name] = set
		}
		for _, m := range grp.Members {
			set[m] = true
		}
	}
}

// Create makes a new group seeded with its creator as the sole member.
// Returns false if the name is invalid or already taken.
func (g *GroupRegistry) Create(name, creator string) bool {
	name = strings.TrimSpace(name)
	if model.ValidateGroupName(name) != nil {
		return false
	}

	g.mu.Lock()
	if _, exists := g.members[name]; exists {
		g.mu.Unlock()
		return false
	}
	g.members[name] = map[string]bool{creator: true}
	g.mu.Unlock()

	// Persist outside the lock; disk I/O must not stall registry reads.
	if g.store != nil {
		if _, err := g.store.CreateGroup(name, creator); err != nil {
			slog.Error("persist group failed", "group", name, "err", err)
		}
	}
	return true
}

// AddMember adds newMember to a group on behalf of requester. The
// check-then-add sequence is one critical section, so concurrent adds
// and membership checks can never observe a half-applied state.
func (g *GroupRegistry) AddMember(name, newMember, requester string) AddResult {
	g.mu.Lock()
	set, ok := g.members[name]
	if !ok {
		g.mu.Unlock()
		return AddGroupMissing
	}
	if !set[requester] {
		g.mu.Unlock()
		return AddRequesterNotMember
	}
	if set[newMember] {
		g.mu.Unlock()
		return AddAlreadyMember
	}
	set[newMember] = true
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.AddGroupMember(name, newMember); err != nil {
			slog.Error("persist member failed", "group", name, "member", newMember, "err", err)
		}
	}
	return AddOK
}

// Exists reports whether a group has been created.
func (g *GroupRegistry) Exists(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[name]
	return ok
}

// IsMember reports whether handle belongs to the group.
func (g *GroupRegistry) IsMember(name, handle string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.members[name][handle]
}

// Members returns a sorted snapshot of a group's member set, including
// offline members. The copy lets callers fan out without holding the
// registry lock across network writes.
func (g *GroupRegistry) Members(name string) ([]string, bool) {
	g.mu.RLock()
	set, ok := g.members[name]
	if !ok {
		g.mu.RUnlock()
		return nil, false
	}
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	g.mu.RUnlock()

	sort.Strings(members)
	return members, true
}

// GroupsOf returns the sorted names of all groups containing handle.
func (g *GroupRegistry) GroupsOf(handle string) []string {
	g.mu.RLock()
	var names []string
	for name, set := range g.members {
		if set[handle] {
			names = append(names, name)
		}
	}
	g.mu.RUnlock()

	sort.Strings(names)
	return names
}

// All returns the sorted names of every group.
func (g *GroupRegistry) All() []string {
	g.mu.RLock()
	names := make([]string, 0, len(g.members))
	for name := range g.members {
		names = append(names, name)
	}
	g.mu.RUnlock()

	sort.Strings(names)
	return names
}
