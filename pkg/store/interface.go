package store

import (
	"github.com/lfarias/chatrelay/pkg/model"
)

// DataStore defines the persistence interface for chatrelay's durable
// entities: group definitions (so membership survives a restart) and
// the file transfer audit log. Live connection state never touches the
// store; the in-memory registries stay authoritative while the process
// runs.
//
// Implementations include the default SQLite store and an in-memory
// store for testing.
type DataStore interface {
	// Close closes the underlying storage connection.
	Close() error

	// ---- Groups ----

	// CreateGroup persists a new group seeded with its creator as the
	// sole member. Fails if the name already exists.
	CreateGroup(name, creator string) (*model.Group, error)

	// AddGroupMember persists a membership addition. Adding an existing
	// member is a no-op.
	AddGroupMember(name, member string) error

	// GetGroup retrieves a group by name. Returns (nil, nil) if not found.
	GetGroup(name string) (*model.Group, error)

	// ListGroups returns all groups with their full member sets.
	ListGroups() ([]model.Group, error)

	// ---- Transfers ----

	// RecordTransfer appends one relayed-file audit record and fills in
	// the assigned ID.
	RecordTransfer(t *model.Transfer) error

	// ListTransfers returns the most recent transfer records, newest
	// first. limit <= 0 means no limit.
	ListTransfers(limit int) ([]model.Transfer, error)
}

// Compile-time check: *Store implements DataStore.
var _ DataStore = (*Store)(nil)
