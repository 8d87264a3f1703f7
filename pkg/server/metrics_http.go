package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Bind address is :9702 by default — configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("chatrelay_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("chatrelay_connections_active", "Current active connections.", "gauge",
		m.ActiveConnections.Load())
	write("chatrelay_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("chatrelay_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("chatrelay_logins_success_total", "Successful identity registrations.", "counter",
		m.SuccessfulLogins.Load())
	write("chatrelay_logins_failed_total", "Rejected login attempts.", "counter",
		m.FailedLogins.Load())

	write("chatrelay_private_messages_total", "Private messages accepted for relay.", "counter",
		m.PrivateMessages.Load())
	write("chatrelay_group_messages_total", "Group messages accepted for relay.", "counter",
		m.GroupMessages.Load())
	write("chatrelay_notifications_delivered_total", "Notifications written to recipients.", "counter",
		m.NotificationsDelivered.Load())
	write("chatrelay_delivery_failures_total", "Notification writes that failed.", "counter",
		m.DeliveryFailures.Load())

	write("chatrelay_groups_created_total", "Groups created.", "counter",
		m.GroupsCreated.Load())
	write("chatrelay_members_added_total", "Membership additions.", "counter",
		m.MembersAdded.Load())

	write("chatrelay_files_relayed_total", "File payloads stored and relayed.", "counter",
		m.FilesRelayed.Load())
	write("chatrelay_file_bytes_stored_total", "Decoded file bytes written to disk.", "counter",
		m.FileBytesStored.Load())
}
