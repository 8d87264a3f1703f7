// Package client implements the chatrelay client networking.
package client

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/lfarias/chatrelay/pkg/protocol"
)

// EventHandler is a callback for incoming server records: responses to
// earlier requests and pushed notifications alike.
type EventHandler func(msg *protocol.Message)

// Client manages the persistent TCP connection to the relay server.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	handler EventHandler
	done    chan struct{}

	username string
}

// New connects to the relay server.
func New(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// SetEventHandler sets the callback for incoming records. Must be set
// before StartReceiving.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Username returns the handle bound by a successful Login.
func (c *Client) Username() string {
	return c.username
}

// Send sends one record to the server.
func (c *Client) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, msg)
}

// Login registers a handle and waits for the server's verdict. It must
// be called before StartReceiving, while this is the only reader.
func (c *Client) Login(username string) error {
	if err := c.Send(&protocol.Message{
		Type:     protocol.TypeLogin,
		Username: username,
	}); err != nil {
		return fmt.Errorf("client: send login: %w", err)
	}

	msg, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return fmt.Errorf("client: read login response: %w", err)
	}
	if msg.Type != protocol.TypeLoginResponse {
		return fmt.Errorf("client: unexpected response type %q", msg.Type)
	}
	if msg.Status != protocol.StatusSuccess {
		return fmt.Errorf("login failed: %s", msg.Message)
	}

	c.username = username
	return nil
}

// SendPrivate sends a private message to another user.
func (c *Client) SendPrivate(recipient, content string) error {
	return c.Send(&protocol.Message{
		Type:      protocol.TypePrivateMessage,
		Recipient: recipient,
		Content:   content,
	})
}

// CreateGroup asks the server to create a new group.
func (c *Client) CreateGroup(name string) error {
	return c.Send(&protocol.Message{
		Type:      protocol.TypeCreateGroup,
		GroupName: name,
	})
}

// SendGroup sends a message to every member of a group.
func (c *Client) SendGroup(name, content string) error {
	return c.Send(&protocol.Message{
		Type:      protocol.TypeGroupMessage,
		GroupName: name,
		Content:   content,
	})
}

// AddMember asks the server to add a user to a group.
func (c *Client) AddMember(name, newMember string) error {
	return c.Send(&protocol.Message{
		Type:      protocol.TypeAddMember,
		GroupName: name,
		NewMember: newMember,
	})
}

// ListGroupMembers requests the member list of a group.
func (c *Client) ListGroupMembers(name string) error {
	return c.Send(&protocol.Message{
		Type:      protocol.TypeListGroupMembers,
		GroupName: name,
	})
}

// ListUsers requests the list of connected users.
func (c *Client) ListUsers() error {
	return c.Send(&protocol.Message{Type: protocol.TypeListUsers})
}

// ListGroups requests the groups the logged-in user belongs to.
func (c *Client) ListGroups() error {
	return c.Send(&protocol.Message{
		Type:     protocol.TypeListGroups,
		Username: c.username,
	})
}

// StartReceiving starts a goroutine that reads incoming records and
// dispatches them to the event handler.
func (c *Client) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			msg, err := protocol.ReadMessage(c.conn)
			if err != nil {
				if isClosedErr(err) {
					slog.Debug("connection closed")
					return
				}
				slog.Error("read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if err == io.EOF ||
		strings.Contains(err.Error(), io.EOF.Error()) ||
		strings.Contains(err.Error(), "use of closed network connection") {
		return true
	}
	return false
}
