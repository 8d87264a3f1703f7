package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadWriteRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"login", Message{Type: TypeLogin, Username: "alice"}},
		{"private message", Message{Type: TypePrivateMessage, Sender: "alice", Recipient: "bob", Content: "oi"}},
		{"group fan-out", Message{Type: TypeGroupReceived, Sender: "alice", GroupName: "devs", Content: "standup", Timestamp: "09:30:00"}},
		{"file", Message{Type: TypeSendFile, Sender: "alice", Recipient: "bob", Filename: "report.pdf", FileData: "aGVsbG8=", FileType: FileModePrivate}},
		{"users list", Message{Type: TypeUsersList, Users: []string{"alice", "bob"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteMessage(&buf, &tt.msg); err != nil {
				t.Fatalf("WriteMessage: %v", err)
			}
			got, err := ReadMessage(&buf)
			if err != nil {
				t.Fatalf("ReadMessage: %v", err)
			}
			if diff := cmp.Diff(&tt.msg, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadMessageSequence(t *testing.T) {
	var buf bytes.Buffer
	first := &Message{Type: TypeLogin, Username: "alice"}
	second := &Message{Type: TypeListUsers}
	if err := WriteMessage(&buf, first); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := WriteMessage(&buf, second); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage first: %v", err)
	}
	if got.Type != TypeLogin {
		t.Errorf("first type = %q, want %q", got.Type, TypeLogin)
	}
	got, err = ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage second: %v", err)
	}
	if got.Type != TypeListUsers {
		t.Errorf("second type = %q, want %q", got.Type, TypeListUsers)
	}
}

func TestReadMessageMalformedPayload(t *testing.T) {
	payload := []byte("{not json")
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	buf.Write(lenBuf)
	buf.Write(payload)

	// The frame itself is well formed, so the decode failure must be
	// recoverable and the stream must stay aligned for the next record.
	if err := WriteMessage(&buf, &Message{Type: TypeListUsers}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	_, err := ReadMessage(&buf)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("ReadMessage = %v, want ErrMalformed", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage after malformed frame: %v", err)
	}
	if got.Type != TypeListUsers {
		t.Errorf("type after malformed frame = %q, want %q", got.Type, TypeListUsers)
	}
}

func TestReadMessageOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, MaxMessageSize+1)
	buf.Write(lenBuf)

	_, err := ReadMessage(&buf)
	if err == nil {
		t.Fatal("ReadMessage accepted oversized length prefix")
	}
	if errors.Is(err, ErrMalformed) {
		t.Fatal("oversized frame must be connection-fatal, not ErrMalformed")
	}
}

func TestWriteMessageTooLarge(t *testing.T) {
	msg := &Message{Type: TypeSendFile, FileData: strings.Repeat("A", MaxMessageSize)}
	if err := WriteMessage(io.Discard, msg); err == nil {
		t.Fatal("WriteMessage accepted oversized message")
	}
}

func TestReadMessageTruncatedStream(t *testing.T) {
	var full bytes.Buffer
	if err := WriteMessage(&full, &Message{Type: TypeLogin, Username: "alice"}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	truncated := full.Bytes()[:full.Len()-3]

	_, err := ReadMessage(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("ReadMessage succeeded on truncated stream")
	}
	if errors.Is(err, ErrMalformed) {
		t.Fatal("truncated stream must be connection-fatal, not ErrMalformed")
	}
}
