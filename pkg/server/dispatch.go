package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lfarias/chatrelay/pkg/model"
	"github.com/lfarias/chatrelay/pkg/protocol"
)

// timeLayout is the wall-clock stamp attached to delivered messages and
// files. The server stamps it so every recipient sees the same time.
const timeLayout = "15:04:05"

// handleMessage routes one decoded record to its handler. Every request
// type except login requires a bound handle.
func (s *Server) handleMessage(sess *session, msg *protocol.Message) {
	if msg.Type == protocol.TypeLogin {
		s.handleLogin(sess, msg)
		return
	}

	if sess.handle == "" {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeError,
			Message: "please login first",
		})
		return
	}

	switch msg.Type {
	case protocol.TypePrivateMessage:
		s.handlePrivateMessage(sess, msg)
	case protocol.TypeCreateGroup:
		s.handleCreateGroup(sess, msg)
	case protocol.TypeGroupMessage:
		s.handleGroupMessage(sess, msg)
	case protocol.TypeAddMember:
		s.handleAddMember(sess, msg)
	case protocol.TypeListGroupMembers:
		s.handleListGroupMembers(sess, msg)
	case protocol.TypeListUsers:
		s.handleListUsers(sess)
	case protocol.TypeListGroups:
		s.handleListGroups(sess, msg)
	case protocol.TypeSendFile:
		s.handleSendFile(sess, msg)
	default:
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeError,
			Message: fmt.Sprintf("unrecognized message type %q", msg.Type),
		})
	}
}

// reply sends a response back on the requesting session. Reply failures
// mean the peer is going away; the read loop will notice on its own.
func (s *Server) reply(sess *session, msg *protocol.Message) {
	if err := sess.Send(msg); err != nil {
		slog.Debug("reply failed", "session", sess.id, "type", msg.Type, "err", err)
	}
}

// push delivers a notification to whichever session currently owns the
// handle. Returns true only if the write succeeded.
func (s *Server) push(handle string, msg *protocol.Message) bool {
	target, ok := s.clients.Lookup(handle)
	if !ok {
		return false
	}
	if err := target.Send(msg); err != nil {
		s.metrics.DeliveryFailures.Add(1)
		slog.Debug("push failed", "handle", handle, "type", msg.Type, "err", err)
		return false
	}
	s.metrics.NotificationsDelivered.Add(1)
	return true
}

func (s *Server) handleLogin(sess *session, msg *protocol.Message) {
	if sess.handle != "" {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeLoginResponse,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("already logged in as %s", sess.handle),
		})
		return
	}

	handle := strings.TrimSpace(msg.Username)
	if err := model.ValidateHandle(handle); err != nil {
		s.metrics.FailedLogins.Add(1)
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeLoginResponse,
			Status:  protocol.StatusError,
			Message: "invalid username: " + err.Error(),
		})
		return
	}

	if !s.clients.Register(handle, sess) {
		s.metrics.FailedLogins.Add(1)
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeLoginResponse,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("username %s is already taken", handle),
		})
		return
	}

	sess.handle = handle
	s.metrics.SuccessfulLogins.Add(1)
	slog.Info("client logged in", "session", sess.id, "handle", handle)
	s.reply(sess, &protocol.Message{
		Type:    protocol.TypeLoginResponse,
		Status:  protocol.StatusSuccess,
		Message: fmt.Sprintf("welcome, %s!", handle),
	})
}

func (s *Server) handlePrivateMessage(sess *session, msg *protocol.Message) {
	recipient := msg.Recipient
	ts := time.Now().Format(timeLayout)

	if recipient == "" || msg.Content == "" {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMessageResponse,
			Status:  protocol.StatusError,
			Message: "incomplete message data",
		})
		return
	}

	if _, ok := s.clients.Lookup(recipient); !ok {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMessageResponse,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("user %s not found", recipient),
		})
		return
	}

	s.metrics.PrivateMessages.Add(1)
	s.push(recipient, &protocol.Message{
		Type:      protocol.TypePrivateReceived,
		Sender:    sess.handle,
		Content:   msg.Content,
		Timestamp: ts,
	})

	// The recipient existed when we looked; a racing disconnect is the
	// same as one right after delivery, so the send still counts.
	s.reply(sess, &protocol.Message{
		Type:    protocol.TypeMessageResponse,
		Status:  protocol.StatusSuccess,
		Message: fmt.Sprintf("message sent to %s", recipient),
	})
}

func (s *Server) handleCreateGroup(sess *session, msg *protocol.Message) {
	name := strings.TrimSpace(msg.GroupName)
	if err := model.ValidateGroupName(name); err != nil {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeGroupResponse,
			Status:  protocol.StatusError,
			Message: "invalid group name: " + err.Error(),
		})
		return
	}

	if !s.groups.Create(name, sess.handle) {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeGroupResponse,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("group %s already exists", name),
		})
		return
	}

	s.metrics.GroupsCreated.Add(1)
	slog.Info("group created", "group", name, "creator", sess.handle)
	s.reply(sess, &protocol.Message{
		Type:    protocol.TypeGroupResponse,
		Status:  protocol.StatusSuccess,
		Message: fmt.Sprintf("group %s created", name),
	})
}

func (s *Server) handleGroupMessage(sess *session, msg *protocol.Message) {
	name := msg.GroupName
	ts := time.Now().Format(timeLayout)

	if name == "" || msg.Content == "" {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMessageResponse,
			Status:  protocol.StatusError,
			Message: "incomplete message data",
		})
		return
	}

	members, ok := s.groups.Members(name)
	if !ok {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMessageResponse,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("group %s does not exist", name),
		})
		return
	}
	if !contains(members, sess.handle) {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMessageResponse,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("you are not a member of %s, ask to be added", name),
		})
		return
	}

	note := &protocol.Message{
		Type:      protocol.TypeGroupReceived,
		Sender:    sess.handle,
		GroupName: name,
		Content:   msg.Content,
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

	s.metrics.GroupMessages.Add(1)
	s.reply(sess, &protocol.Message{
		Type:    protocol.TypeMessageResponse,
		Status:  protocol.StatusSuccess,
		Message: fmt.Sprintf("message sent to %d member(s) of %s", delivered, name),
	})
}

func (s *Server) handleAddMember(sess *session, msg *protocol.Message) {
	name := msg.GroupName
	newMember := strings.TrimSpace(msg.NewMember)

	// Early checks give the most specific error; the registry re-checks
	// everything atomically before mutating.
	if !s.groups.Exists(name) {
		s.replyMember(sess, protocol.StatusError, fmt.Sprintf("group %s does not exist", name))
		return
	}
	if !s.groups.IsMember(name, sess.handle) {
		s.replyMember(sess, protocol.StatusError, fmt.Sprintf("you are not a member of %s", name))
		return
	}
	if _, ok := s.clients.Lookup(newMember); !ok {
		s.replyMember(sess, protocol.StatusError, fmt.Sprintf("user %s not found", newMember))
		return
	}

	switch s.groups.AddMember(name, newMember, sess.handle) {
	case AddOK:
	case AddGroupMissing:
		s.replyMember(sess, protocol.StatusError, fmt.Sprintf("group %s does not exist", name))
		return
	case AddRequesterNotMember:
		s.replyMember(sess, protocol.StatusError, fmt.Sprintf("you are not a member of %s", name))
		return
	case AddAlreadyMember:
		s.replyMember(sess, protocol.StatusError, fmt.Sprintf("%s is already a member of %s", newMember, name))
		return
	}

	s.metrics.MembersAdded.Add(1)
	slog.Info("member added", "group", name, "member", newMember, "added_by", sess.handle)

	s.push(newMember, &protocol.Message{
		Type:      protocol.TypeAddedToGroup,
		GroupName: name,
		AddedBy:   sess.handle,
		Timestamp: time.Now().Format(timeLayout),
	})
	s.replyMember(sess, protocol.StatusSuccess, fmt.Sprintf("%s added to %s", newMember, name))
}

func (s *Server) replyMember(sess *session, status, text string) {
	s.reply(sess, &protocol.Message{
		Type:    protocol.TypeMemberResponse,
		Status:  status,
		Message: text,
	})
}

func (s *Server) handleListGroupMembers(sess *session, msg *protocol.Message) {
	name := msg.GroupName

	members, ok := s.groups.Members(name)
	if !ok {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMembersList,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("group %s does not exist", name),
		})
		return
	}
	if !contains(members, sess.handle) {
		s.reply(sess, &protocol.Message{
			Type:    protocol.TypeMembersList,
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("you are not a member of %s", name),
		})
		return
	}

	s.reply(sess, &protocol.Message{
		Type:      protocol.TypeMembersList,
		Status:    protocol.StatusSuccess,
		GroupName: name,
		Members:   members,
	})
}

func (s *Server) handleListUsers(sess *session) {
	s.reply(sess, &protocol.Message{
		Type:  protocol.TypeUsersList,
		Users: s.clients.Handles(),
	})
}

// handleListGroups returns every group containing the named handle, or
// every group when no handle is given.
func (s *Server) handleListGroups(sess *session, msg *protocol.Message) {
	groups := s.groups.All()
	if msg.Username != "" {
		groups = s.groups.GroupsOf(msg.Username)
	}
	s.reply(sess, &protocol.Message{
		Type:   protocol.TypeGroupsList,
		Groups: groups,
	})
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
