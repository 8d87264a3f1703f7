package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current active connections
	SuccessfulLogins  atomic.Int64 // successful identity registrations
	FailedLogins      atomic.Int64 // rejected login attempts
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Relay counters
	PrivateMessages        atomic.Int64 // private messages accepted for relay
	GroupMessages          atomic.Int64 // group messages accepted for relay
	NotificationsDelivered atomic.Int64 // notifications written to recipients
	DeliveryFailures       atomic.Int64 // notification writes that failed

	// Group counters
	GroupsCreated atomic.Int64 // groups created during this run
	MembersAdded  atomic.Int64 // membership additions during this run

	// File counters
	FilesRelayed    atomic.Int64 // file payloads stored and relayed
	FileBytesStored atomic.Int64 // decoded bytes written to the files dir
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a
// serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulLogins  int64 `json:"successful_logins"`
	FailedLogins      int64 `json:"failed_logins"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	PrivateMessages        int64 `json:"private_messages"`
	GroupMessages          int64 `json:"group_messages"`
	NotificationsDelivered int64 `json:"notifications_delivered"`
	DeliveryFailures       int64 `json:"delivery_failures"`

	GroupsCreated int64 `json:"groups_created"`
	MembersAdded  int64 `json:"members_added"`

	FilesRelayed    int64 `json:"files_relayed"`
	FileBytesStored int64 `json:"file_bytes_stored"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:                 uptime.Truncate(time.Second).String(),
		UptimeSeconds:          int64(uptime.Seconds()),
		ActiveConnections:      m.ActiveConnections.Load(),
		TotalConnections:       m.TotalConnections.Load(),
		SuccessfulLogins:       m.SuccessfulLogins.Load(),
		FailedLogins:           m.FailedLogins.Load(),
		TotalDisconnects:       m.TotalDisconnects.Load(),
		PrivateMessages:        m.PrivateMessages.Load(),
		GroupMessages:          m.GroupMessages.Load(),
		NotificationsDelivered: m.NotificationsDelivered.Load(),
		DeliveryFailures:       m.DeliveryFailures.Load(),
		GroupsCreated:          m.GroupsCreated.Load(),
		MembersAdded:           m.MembersAdded.Load(),
		FilesRelayed:           m.FilesRelayed.Load(),
		FileBytesStored:        m.FileBytesStored.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"logins", s.SuccessfulLogins,
		"private_msgs", s.PrivateMessages,
		"group_msgs", s.GroupMessages,
		"files", s.FilesRelayed,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
