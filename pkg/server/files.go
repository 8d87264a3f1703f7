package server

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lfarias/chatrelay/pkg/model"
	"github.com/lfarias/chatrelay/pkg/protocol"
)

// handleSendFile relays a base64 file payload to a user or a group. The
// server keeps its own copy on disk before relaying, so a relayed file
// can always be recovered from the server side.
func (s *Server) handleSendFile(sess *session, msg *protocol.Message) {
	ts := time.Now().Format(timeLayout)

	filename := filepath.Base(strings.TrimSpace(msg.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		s.replyFile(sess, protocol.StatusError, "invalid filename")
		return
	}

	if msg.FileData == "" {
		s.replyFile(sess, protocol.StatusError, "incomplete file data")
		return
	}
	data, err := base64.StdEncoding.DecodeString(msg.FileData)
	if err != nil {
		s.replyFile(sess, protocol.StatusError, "invalid file data: not valid base64")
		return
	}

	switch msg.FileType {
	case protocol.FileModePrivate:
		recipient := msg.Recipient
		if _, ok := s.clients.Lookup(recipient); !ok {
			s.replyFile(sess, protocol.StatusError, fmt.Sprintf("user %s not found", recipient))
			return
		}

		if err := s.storeFile(sess.handle, recipient, protocol.FileModePrivate, filename, data); err != nil {
			s.replyFile(sess, protocol.StatusError, fmt.Sprintf("could not store file %s on the server", filename))
			return
		}

		s.push(recipient, &protocol.Message{
			Type:      protocol.TypeFileReceived,
			Sender:    sess.handle,
			Filename:  filename,
			FileData:  msg.FileData,
			Timestamp: ts,
		})
		s.replyFile(sess, protocol.StatusSuccess, fmt.Sprintf("file %s sent to %s", filename, recipient))

	case protocol.FileModeGroup:
		name := msg.GroupName
		members, ok := s.groups.Members(name)
		if !ok {
			s.replyFile(sess, protocol.StatusError, fmt.Sprintf("group %s does not exist", name))
			return
		}
		if !contains(members, sess.handle) {
			s.replyFile(sess, protocol.StatusError, fmt.Sprintf("you are not a member of %s", name))
			return
		}

		if err := s.storeFile(sess.handle, name, protocol.FileModeGroup, filename, data); err != nil {
			s.replyFile(sess, protocol.StatusError, fmt.Sprintf("could not store file %s on the server", filename))
			return
		}

		note := &protocol.Message{
			Type:      protocol.TypeGroupFileReceived,
			Sender:    sess.handle,
			GroupName: name,
			Filename:  filename,
			FileData:  msg.FileData,
			Timestamp: ts,
		}
		delivered := 0
		for _, member := range members {
			if member == sess.handle {
				continue
			}
			if s.push(member, note) {
				delivered++
			}
		}
		s.replyFile(sess, protocol.StatusSuccess,
			fmt.Sprintf("file %s sent to %d member(s) of %s", filename, delivered, name))

	default:
		s.replyFile(sess, protocol.StatusError, fmt.Sprintf("invalid file type %q", msg.FileType))
	}
}

func (s *Server) replyFile(sess *session, status, text string) {
	s.reply(sess, &protocol.Message{
		Type:    protocol.TypeFileResponse,
		Status:  status,
		Message: text,
	})
}

// storeFile writes the server-side copy and records the transfer in the
// audit log. A failed disk write aborts the relay; the caller must not
// notify the recipient. The audit record stays best-effort.
func (s *Server) storeFile(sender, target, mode, filename string, data []byte) error {
	stored := filepath.Join(s.cfg.FilesDir, sender+"_"+filename)
	if err := os.WriteFile(stored, data, 0o644); err != nil {
		slog.Error("store file copy failed", "path", stored, "err", err)
		return fmt.Errorf("server: store file: %w", err)
	}
	s.metrics.FilesRelayed.Add(1)
	s.metrics.FileBytesStored.Add(int64(len(data)))

	if s.store != nil {
		t := &model.Transfer{
			Sender:     sender,
			Target:     target,
			Mode:       mode,
			Filename:   filename,
			StoredPath: stored,
			Size:       int64(len(data)),
		}
		if err := s.store.RecordTransfer(t); err != nil {
			slog.Error("record transfer failed", "sender", sender, "file", filename, "err", err)
		}
	}
	return nil
}
