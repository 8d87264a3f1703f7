package server

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/lfarias/chatrelay/pkg/protocol"
)

func TestHandleSendFilePrivate(t *testing.T) {
	srv, st := newTestServer(t)
	alice, aliceConn := login(t, srv, "alice")
	_, bobConn := login(t, srv, "bob")

	payload := []byte("%PDF-1.4 quarterly numbers")
	encoded := base64.StdEncoding.EncodeToString(payload)

	srv.handleMessage(alice, &protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModePrivate,
		Recipient: "bob",
		Filename:  "report.pdf",
		FileData:  encoded,
	})

	resp := aliceConn.lastFrame(t)
	if resp.Type != protocol.TypeFileResponse || resp.Status != protocol.StatusSuccess {
		t.Fatalf("reply = %+v, want success file_response", resp)
	}

	note := bobConn.lastFrame(t)
	if note.Type != protocol.TypeFileReceived {
		t.Fatalf("notification type = %q", note.Type)
	}
	if note.Sender != "alice" || note.Filename != "report.pdf" || note.FileData != encoded {
		t.Fatalf("notification = %+v", note)
	}
	if note.Timestamp == "" {
		t.Fatal("notification missing timestamp")
	}

	// Server keeps its own copy named <sender>_<filename>.
	stored := filepath.Join(srv.cfg.FilesDir, "alice_report.pdf")
	data, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("read stored copy: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("stored copy does not match the decoded payload")
	}

	transfers, err := st.ListTransfers(0)
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer record, got %d", len(transfers))
	}
	rec := transfers[0]
	if rec.Sender != "alice" || rec.Target != "bob" || rec.Mode != "private" ||
		rec.Filename != "report.pdf" || rec.Size != int64(len(payload)) {
		t.Fatalf("transfer record = %+v", rec)
	}
}

func TestHandleSendFileGroup(t *testing.T) {
	srv, _ := newTestServer(t)
	alice, aliceConn := login(t, srv, "alice")
	_, bobConn := login(t, srv, "bob")

	srv.groups.Create("devs", "alice")
	srv.groups.AddMember("devs", "bob", "alice")
	srv.groups.AddMember("devs", "carol", "alice") // offline

	encoded := base64.StdEncoding.EncodeToString([]byte("meeting notes"))
	srv.handleMessage(alice, &protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModeGroup,
		GroupName: "devs",
		Filename:  "notes.txt",
		FileData:  encoded,
	})

	resp := aliceConn.lastFrame(t)
	if resp.Status != protocol.StatusSuccess {
		t.Fatalf("reply = %+v, want success", resp)
	}
	if want := "file notes.txt sent to 1 member(s) of devs"; resp.Message != want {
		t.Fatalf("reply message = %q, want %q", resp.Message, want)
	}

	note := bobConn.lastFrame(t)
	if note.Type != protocol.TypeGroupFileReceived || note.GroupName != "devs" || note.Sender != "alice" {
		t.Fatalf("notification = %+v", note)
	}

	if _, err := os.Stat(filepath.Join(srv.cfg.FilesDir, "alice_notes.txt")); err != nil {
		t.Fatalf("stored copy missing: %v", err)
	}
}

func TestHandleSendFileErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	alice, aliceConn := login(t, srv, "alice")
	login(t, srv, "bob")

	srv.groups.Create("ops", "bob")

	type tcase struct {
		msg     protocol.Message
		wantMsg string
	}

	good := base64.StdEncoding.EncodeToString([]byte("x"))
	tcases := map[string]tcase{
		"empty_file_data": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: protocol.FileModePrivate,
				Recipient: "bob", Filename: "a.txt", FileData: "",
			},
			wantMsg: "incomplete file data",
		},
		"bad_base64": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: protocol.FileModePrivate,
				Recipient: "bob", Filename: "a.txt", FileData: "not base64!!!",
			},
			wantMsg: "invalid file data: not valid base64",
		},
		"missing_recipient": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: protocol.FileModePrivate,
				Recipient: "ghost", Filename: "a.txt", FileData: good,
			},
			wantMsg: "user ghost not found",
		},
		"missing_group": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: protocol.FileModeGroup,
				GroupName: "nope", Filename: "a.txt", FileData: good,
			},
			wantMsg: "group nope does not exist",
		},
		"not_a_member": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: protocol.FileModeGroup,
				GroupName: "ops", Filename: "a.txt", FileData: good,
			},
			wantMsg: "you are not a member of ops",
		},
		"bad_mode": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: "broadcast",
				Recipient: "bob", Filename: "a.txt", FileData: good,
			},
			wantMsg: `invalid file type "broadcast"`,
		},
		"empty_filename": {
			msg: protocol.Message{
				Type: protocol.TypeSendFile, FileType: protocol.FileModePrivate,
				Recipient: "bob", Filename: "  ", FileData: good,
			},
			wantMsg: "invalid filename",
		},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			msg := tc.msg
			srv.handleMessage(alice, &msg)
			resp := aliceConn.lastFrame(t)
			if resp.Type != protocol.TypeFileResponse || resp.Status != protocol.StatusError {
				t.Fatalf("reply = %+v, want error file_response", resp)
			}
			if resp.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tc.wantMsg)
			}
		})
	}
}

func TestHandleSendFileStoreFailure(t *testing.T) {
	srv, st := newTestServer(t)
	alice, aliceConn := login(t, srv, "alice")
	_, bobConn := login(t, srv, "bob")

	// A regular file where the directory should be makes every write fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	srv.cfg.FilesDir = blocker

	encoded := base64.StdEncoding.EncodeToString([]byte("doomed"))
	srv.handleMessage(alice, &protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModePrivate,
		Recipient: "bob",
		Filename:  "report.pdf",
		FileData:  encoded,
	})

	resp := aliceConn.lastFrame(t)
	if resp.Type != protocol.TypeFileResponse || resp.Status != protocol.StatusError {
		t.Fatalf("reply = %+v, want error file_response", resp)
	}
	if got := bobConn.frames(t); len(got) != 0 {
		t.Fatalf("recipient was notified despite store failure: %+v", got)
	}

	// The same holds for the group path.
	srv.groups.Create("devs", "alice")
	srv.groups.AddMember("devs", "bob", "alice")
	srv.handleMessage(alice, &protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModeGroup,
		GroupName: "devs",
		Filename:  "notes.txt",
		FileData:  encoded,
	})
	resp = aliceConn.lastFrame(t)
	if resp.Status != protocol.StatusError {
		t.Fatalf("group reply = %+v, want error", resp)
	}
	if got := bobConn.frames(t); len(got) != 0 {
		t.Fatalf("group members were notified despite store failure: %+v", got)
	}

	// No audit record for a file that never hit disk.
	transfers, err := st.ListTransfers(0)
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if len(transfers) != 0 {
		t.Fatalf("expected no transfer records, got %d", len(transfers))
	}
}

func TestHandleSendFileStripsPath(t *testing.T) {
	srv, _ := newTestServer(t)
	alice, aliceConn := login(t, srv, "alice")
	_, bobConn := login(t, srv, "bob")

	encoded := base64.StdEncoding.EncodeToString([]byte("sneaky"))
	srv.handleMessage(alice, &protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModePrivate,
		Recipient: "bob",
		Filename:  "../../etc/passwd",
		FileData:  encoded,
	})

	resp := aliceConn.lastFrame(t)
	if resp.Status != protocol.StatusSuccess {
		t.Fatalf("reply = %+v, want success", resp)
	}

	// Only the base name survives.
	note := bobConn.lastFrame(t)
	if note.Filename != "passwd" {
		t.Fatalf("relayed filename = %q, want passwd", note.Filename)
	}
	if _, err := os.Stat(filepath.Join(srv.cfg.FilesDir, "alice_passwd")); err != nil {
		t.Fatalf("stored copy missing: %v", err)
	}
}
