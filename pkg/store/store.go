// Package store provides SQLite-backed persistence for groups and the
// file transfer log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lfarias/chatrelay/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Store provides database access for all chatrelay entities.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS groups (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL UNIQUE CHECK(length(name) > 0),
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id INTEGER NOT NULL REFERENCES groups(id),
		member   TEXT    NOT NULL CHECK(length(member) > 0),
		added_at TEXT    NOT NULL DEFAULT (datetime('now')),
		UNIQUE(group_id, member)
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sender      TEXT    NOT NULL,
		target      TEXT    NOT NULL,
		mode        TEXT    NOT NULL,
		filename    TEXT    NOT NULL,
		stored_path TEXT    NOT NULL,
		size        INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT    NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version      int
		statements   []string
		ignoreErrors bool
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_group_members_member ON group_members(member)",
				"CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender)",
			},
			ignoreErrors: true,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if err := s.execMigration(ctx, stmt, m.ignoreErrors); err != nil {
				return err
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("store: update schema version: %w", err)
	}
	return nil
}

func (s *Store) execMigration(ctx context.Context, stmt string, ignoreErrors bool) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		if ignoreErrors {
			return nil
		}
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// ---- Groups ----

// CreateGroup persists a new group seeded with its creator.
func (s *Store) CreateGroup(name, creator string) (*model.Group, error) {
	if err := model.ValidateGroupName(name); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	if err := model.ValidateHandle(creator); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx, "INSERT INTO groups (name, created_at) VALUES (?, ?)", name, formatDBTime(createdAt))
	if err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	id, _ := res.LastInsertId()
	if _, err := tx.ExecContext(ctx, "INSERT INTO group_members (group_id, member, added_at) VALUES (?, ?, ?)", id, creator, formatDBTime(createdAt)); err != nil {
		return nil, fmt.Errorf("store: create group: seed creator: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}

	return &model.Group{
		Name:      name,
		Members:   []string{creator},
		CreatedAt: createdAt,
	}, nil
}

// AddGroupMember persists a membership addition. Adding an existing
// member is a no-op.
func (s *Store) AddGroupMember(name, member string) error {
	if err := model.ValidateHandle(member); err != nil {
		return fmt.Errorf("store: add member: %w", err)
	}

	ctx := context.Background()
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM groups WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("store: add member: group %q not found", name)
	}
	if err != nil {
		return fmt.Errorf("store: add member: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO group_members (group_id, member, added_at) VALUES (?, ?, ?)",
		id, member, formatDBTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("store: add member: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by name. Returns (nil, nil) if not found.
func (s *Store) GetGroup(name string) (*model.Group, error) {
	ctx := context.Background()
	var id int64
	var createdAt string
	err := s.db.QueryRowContext(ctx, "SELECT id, created_at FROM groups WHERE name = ?", name).Scan(&id, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get group: %w", err)
	}

	g := &model.Group{Name: name}
	g.CreatedAt, err = parseDBTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: get group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT member FROM group_members WHERE group_id = ? ORDER BY member", id)
	if err != nil {
		return nil, fmt.Errorf("store: get group members: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("store: get group members: %w", err)
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get group members: %w", err)
	}
	return g, nil
}

// ListGroups returns all groups with their full member sets.
func (s *Store) ListGroups() ([]model.Group, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.name, g.created_at, m.member
		FROM groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		ORDER BY g.id, m.member`)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byName := make(map[string]*model.Group)
	var order []string
	for rows.Next() {
		var name, createdAt string
		var member sql.NullString
		if err := rows.Scan(&name, &createdAt, &member); err != nil {
			return nil, fmt.Errorf("store: list groups: %w", err)
		}
		g, ok := byName[name]
		if !ok {
			g = &model.Group{Name: name}
			g.CreatedAt, err = parseDBTime(createdAt)
			if err != nil {
				return nil, fmt.Errorf("store: list groups: %w", err)
			}
			byName[name] = g
			order = append(order, name)
		}
		if member.Valid {
			g.Members = append(g.Members, member.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}

	groups := make([]model.Group, 0, len(order))
	for _, name := range order {
		g := byName[name]
		sort.Strings(g.Members)
		groups = append(groups, *g)
	}
	return groups, nil
}

// ---- Transfers ----

// RecordTransfer appends one relayed-file audit record.
func (s *Store) RecordTransfer(t *model.Transfer) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO transfers (sender, target, mode, filename, stored_path, size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.Sender, t.Target, t.Mode, t.Filename, t.StoredPath, t.Size, formatDBTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: record transfer: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// ListTransfers returns the most recent transfer records, newest first.
func (s *Store) ListTransfers(limit int) ([]model.Transfer, error) {
	query := "SELECT id, sender, target, mode, filename, stored_path, size, created_at FROM transfers ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Sender, &t.Target, &t.Mode, &t.Filename, &t.StoredPath, &t.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("store: list transfers: %w", err)
		}
		t.CreatedAt, err = parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: list transfers: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list transfers: %w", err)
	}
	return transfers, nil
}
