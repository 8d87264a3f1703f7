// Package server implements the chatrelay router.
package server

import (
	"context"
	"net"

	"github.com/lfarias/chatrelay/pkg/store"
)

// Config holds server configuration.
type Config struct {
	Addr        string // TCP bind address (e.g. ":9700")
	FilesDir    string // directory for relayed file copies
	DBPath      string // SQLite database path
	MetricsAddr string // HTTP bind address for /metrics endpoint (empty = disabled)
	GroupsFile  string // YAML file defining groups to create on startup

	// CLI-only actions (run and exit)
	ExportGroups    bool // export all groups as YAML and exit
	ExportTransfers bool // export the file transfer log as YAML and exit
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.DataStore
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":9700",
		FilesDir:    "server_files",
		DBPath:      "chatrelay.db",
		MetricsAddr: ":9702",
	}
}

// Server is the chatrelay router: it owns the listener, the registry of
// connected identities, and the registry of groups.
type Server struct {
	cfg     Config
	clients *ClientRegistry
	groups  *GroupRegistry
	metrics *Metrics
	store   store.DataStore
	ln      net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		clients: NewClientRegistry(),
		groups:  NewGroupRegistry(deps.Store),
		metrics: NewMetrics(),
		store:   deps.Store,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Clients returns the identity registry.
func (s *Server) Clients() *ClientRegistry {
	return s.clients
}

// Groups returns the group registry.
func (s *Server) Groups() *GroupRegistry {
	return s.groups
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
