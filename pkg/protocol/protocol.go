// Package protocol defines the chat wire record and its framing.
//
// Every logical message is one self-contained JSON record carrying a
// "type" discriminator plus type-specific fields. Records are framed on
// the TCP stream with a 4-byte big-endian length prefix, so message
// boundaries never depend on how the transport happens to split reads.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize is the maximum framed record size (16 MiB). File
// payloads travel base64-encoded inside the record, so the cap has to
// leave room well beyond chat text.
const MaxMessageSize = 16 << 20

// ErrMalformed marks a complete frame whose payload is not a valid
// record. Callers must treat it as a per-message protocol violation:
// reply with an error record and keep reading. Any other error from
// ReadMessage is connection-fatal.
var ErrMalformed = errors.New("protocol: malformed message")

// Request types, chosen by clients.
const (
	TypeLogin            = "login"
	TypePrivateMessage   = "private_message"
	TypeCreateGroup      = "create_group"
	TypeGroupMessage     = "group_message"
	TypeSendFile         = "send_file"
	TypeListUsers        = "list_users"
	TypeListGroups       = "list_groups"
	TypeAddMember        = "add_member"
	TypeListGroupMembers = "list_group_members"
)

// Response types, sent to the requesting client.
const (
	TypeLoginResponse   = "login_response"
	TypeMessageResponse = "message_response"
	TypeGroupResponse   = "group_response"
	TypeMemberResponse  = "member_response"
	TypeMembersList     = "members_list_response"
	TypeFileResponse    = "file_response"
	TypeUsersList       = "users_list"
	TypeGroupsList      = "groups_list"
	TypeError           = "error"
)

// Notification types, pushed to other clients.
const (
	TypePrivateReceived   = "private_message_received"
	TypeGroupReceived     = "group_message_received"
	TypeAddedToGroup      = "added_to_group"
	TypeFileReceived      = "file_received"
	TypeGroupFileReceived = "group_file_received"
)

// Status values carried by response records.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// File delivery modes for send_file.
const (
	FileModePrivate = "private"
	FileModeGroup   = "group"
)

// Message is one wire record. Which fields are populated depends on
// Type; everything unused is omitted from the JSON.
type Message struct {
	Type string `json:"type"`

	// Response envelope.
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	// Identity and addressing.
	Username  string `json:"username,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	Creator   string `json:"creator,omitempty"`
	NewMember string `json:"new_member,omitempty"`
	Requester string `json:"requester,omitempty"`
	AddedBy   string `json:"added_by,omitempty"`

	// Payloads.
	Content  string `json:"content,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"` // base64 text
	FileType string `json:"file_type,omitempty"` // "private" or "group"

	// Server-stamped delivery time.
	Timestamp string `json:"timestamp,omitempty"`

	// Listing results.
	Users   []string `json:"users,omitempty"`
	Groups  []string `json:"groups,omitempty"`
	Members []string `json:"members,omitempty"`
}

// WriteMessage writes one length-prefixed JSON record to a writer.
// Format: [4-byte big-endian length][JSON payload]
func WriteMessage(w io.Writer, m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("protocol: message too large: %d bytes", len(data))
	}

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data))) //nolint:gosec // length already bounds-checked above
	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("protocol: write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed JSON record from a reader.
// A payload that fails to decode reports ErrMalformed; the frame has
// been fully consumed, so the caller may continue reading the stream.
func ReadMessage(r io.Reader) (*Message, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxMessageSize {
		return nil, fmt.Errorf("protocol: message too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}

	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}
