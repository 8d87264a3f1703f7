package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lfarias/chatrelay/pkg/protocol"
)

// session is one client connection. The handle is empty until login
// succeeds and never changes afterwards; the read loop is the only
// writer, so handlers running inside the loop may read it freely.
type session struct {
	id   string
	conn net.Conn

	wmu sync.Mutex // serializes frames from handler replies and pushed notifications

	handle string
}

func newSession(conn net.Conn) *session {
	return &session{
		id:   uuid.NewString(),
		conn: conn,
	}
}

// Send writes one record to the peer. Safe for concurrent use; a frame
// is never interleaved with another.
func (s *session) Send(msg *protocol.Message) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return protocol.WriteMessage(s.conn, msg)
}

// handleConn owns a connection from accept to teardown. Teardown runs
// exactly once: the handle (if bound) leaves the registry, counters are
// adjusted, and the socket is closed.
func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(conn)
	remoteAddr := conn.RemoteAddr().String()

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "session", sess.id, "remote", remoteAddr)

	defer func() {
		if sess.handle != "" {
			s.clients.Unregister(sess.handle, sess)
			slog.Info("client disconnected", "session", sess.id, "handle", sess.handle, "remote", remoteAddr)
		} else {
			slog.Debug("connection closed", "session", sess.id, "remote", remoteAddr)
		}
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
		_ = conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				// Frame was fully consumed; the stream is still aligned.
				_ = sess.Send(&protocol.Message{
					Type:    protocol.TypeError,
					Message: "malformed message",
				})
				continue
			}
			if !isClosedErr(err) {
				slog.Warn("read failed", "session", sess.id, "remote", remoteAddr, "err", err)
			}
			return
		}

		s.handleMessage(sess, msg)
	}
}

// isClosedErr reports whether err is an ordinary end-of-connection.
func isClosedErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection reset by peer")
}
