package client

import (
	"net"
	"testing"
	"time"

	"github.com/lfarias/chatrelay/pkg/protocol"
)

// pipeClient builds a Client on one end of an in-memory pipe; the other
// end plays the server.
func pipeClient() (*Client, net.Conn) {
	peer, local := net.Pipe()
	c := &Client{
		conn: local,
		done: make(chan struct{}),
	}
	return c, peer
}

func TestLogin(t *testing.T) {
	c, peer := pipeClient()
	defer c.Close()
	defer peer.Close()

	go func() {
		msg, err := protocol.ReadMessage(peer)
		if err != nil {
			return
		}
		if msg.Type != protocol.TypeLogin || msg.Username != "alice" {
			_ = protocol.WriteMessage(peer, &protocol.Message{
				Type:    protocol.TypeLoginResponse,
				Status:  protocol.StatusError,
				Message: "unexpected request",
			})
			return
		}
		_ = protocol.WriteMessage(peer, &protocol.Message{
			Type:    protocol.TypeLoginResponse,
			Status:  protocol.StatusSuccess,
			Message: "welcome, alice!",
		})
	}()

	if err := c.Login("alice"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Username() != "alice" {
		t.Fatalf("Username = %q, want alice", c.Username())
	}
}

func TestLoginRejected(t *testing.T) {
	c, peer := pipeClient()
	defer c.Close()
	defer peer.Close()

	go func() {
		if _, err := protocol.ReadMessage(peer); err != nil {
			return
		}
		_ = protocol.WriteMessage(peer, &protocol.Message{
			Type:    protocol.TypeLoginResponse,
			Status:  protocol.StatusError,
			Message: "username alice is already taken",
		})
	}()

	if err := c.Login("alice"); err == nil {
		t.Fatal("Login: expected error for rejected handle")
	}
	if c.Username() != "" {
		t.Fatalf("Username = %q after rejected login, want empty", c.Username())
	}
}

func TestListGroupsSendsUsername(t *testing.T) {
	c, peer := pipeClient()
	defer c.Close()
	defer peer.Close()
	c.username = "alice"

	got := make(chan *protocol.Message, 1)
	go func() {
		msg, err := protocol.ReadMessage(peer)
		if err != nil {
			close(got)
			return
		}
		got <- msg
	}()

	if err := c.ListGroups(); err != nil {
		t.Fatalf("ListGroups: %v", err)
	}

	select {
	case msg := <-got:
		if msg == nil {
			t.Fatal("server side read failed")
		}
		if msg.Type != protocol.TypeListGroups || msg.Username != "alice" {
			t.Fatalf("request = %+v, want list_groups carrying the bound username", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never arrived")
	}
}

func TestStartReceivingDispatch(t *testing.T) {
	c, peer := pipeClient()
	defer peer.Close()

	got := make(chan *protocol.Message, 1)
	c.SetEventHandler(func(msg *protocol.Message) {
		got <- msg
	})
	c.StartReceiving()

	want := &protocol.Message{
		Type:    protocol.TypePrivateReceived,
		Sender:  "bob",
		Content: "ping",
	}
	if err := protocol.WriteMessage(peer, want); err != nil {
		t.Fatalf("write notification: %v", err)
	}

	select {
	case msg := <-got:
		if msg.Type != want.Type || msg.Sender != want.Sender || msg.Content != want.Content {
			t.Fatalf("dispatched = %+v, want %+v", msg, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	// Closing our end ends the receive loop.
	_ = c.Close()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done was not closed after Close")
	}
}
