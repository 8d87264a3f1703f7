package client

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lfarias/chatrelay/pkg/protocol"
)

// DefaultDownloadsDir is where received files land unless the caller
// picks another directory.
const DefaultDownloadsDir = "client_downloads"

// SendFilePrivate reads a local file and sends it to one user.
func (c *Client) SendFilePrivate(recipient, path string) error {
	filename, encoded, err := encodeFile(path)
	if err != nil {
		return err
	}
	return c.Send(&protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModePrivate,
		Recipient: recipient,
		Filename:  filename,
		FileData:  encoded,
	})
}

// SendFileGroup reads a local file and sends it to every member of a
// group.
func (c *Client) SendFileGroup(group, path string) error {
	filename, encoded, err := encodeFile(path)
	if err != nil {
		return err
	}
	return c.Send(&protocol.Message{
		Type:      protocol.TypeSendFile,
		FileType:  protocol.FileModeGroup,
		GroupName: group,
		Filename:  filename,
		FileData:  encoded,
	})
}

func encodeFile(path string) (string, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path chosen interactively by the user
	if err != nil {
		return "", "", fmt.Errorf("client: read file: %w", err)
	}
	return filepath.Base(path), base64.StdEncoding.EncodeToString(data), nil
}

// SaveReceivedFile decodes a file notification and writes the payload
// into dir. Private files land as <sender>_<filename>, group files as
// <group>_<sender>_<filename> so copies from different sources never
// collide. Returns the path written.
func SaveReceivedFile(dir string, msg *protocol.Message) (string, error) {
	data, err := base64.StdEncoding.DecodeString(msg.FileData)
	if err != nil {
		return "", fmt.Errorf("client: decode file data: %w", err)
	}

	filename := filepath.Base(msg.Filename)
	var name string
	switch msg.Type {
	case protocol.TypeFileReceived:
		name = msg.Sender + "_" + filename
	case protocol.TypeGroupFileReceived:
		name = msg.GroupName + "_" + msg.Sender + "_" + filename
	default:
		return "", fmt.Errorf("client: not a file notification: %q", msg.Type)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("client: create downloads dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("client: write file: %w", err)
	}
	return path, nil
}
