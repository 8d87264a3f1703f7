package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	defer func() { _ = s.store.Close() }()

	if err := os.MkdirAll(s.cfg.FilesDir, 0o755); err != nil {
		return fmt.Errorf("server: create files dir: %w", err)
	}

	// Rebuild the group registry from persisted state
	groups, err := s.store.ListGroups()
	if err != nil {
		return fmt.Errorf("server: load groups: %w", err)
	}
	s.groups.Load(groups)
	if len(groups) > 0 {
		slog.Info("loaded groups from store", "count", len(groups))
	}

	// Seed groups from YAML config if provided
	if s.cfg.GroupsFile != "" {
		if err := LoadGroupsFromYAML(s.cfg.GroupsFile, s.store); err != nil {
			slog.Error("failed to load groups config", "err", err)
		} else if seeded, err := s.store.ListGroups(); err == nil {
			s.groups.Load(seeded)
		}
	}

	if err := s.StartListener(); err != nil {
		return err
	}

	slog.Info("chatrelay server running",
		"addr", s.cfg.Addr,
		"files", s.cfg.FilesDir,
	)

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// StartListener starts the TCP listener and the accept loop.
func (s *Server) StartListener() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleConn(conn)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
}
