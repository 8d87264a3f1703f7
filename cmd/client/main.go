package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lfarias/chatrelay/pkg/client"
	"github.com/lfarias/chatrelay/pkg/logging"
	"github.com/lfarias/chatrelay/pkg/protocol"
	"github.com/lfarias/chatrelay/pkg/version"
)

func main() {
	addr := flag.String("addr", "localhost:9700", "Server address")
	downloads := flag.String("downloads", client.DefaultDownloadsDir, "Directory for received files")
	logLevel := flag.String("log-level", "warn", "Log level: "+logging.LevelNames())
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: "text",
		Output: os.Stderr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	c, err := client.New(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	stdin := bufio.NewScanner(os.Stdin)
	stdin.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		username := prompt(stdin, "Enter your username: ")
		if username == "" {
			continue
		}
		if err := c.Login(username); err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Printf("Logged in as %s\n", username)
		break
	}

	c.SetEventHandler(func(msg *protocol.Message) {
		printIncoming(msg, *downloads)
	})
	c.StartReceiving()

	for {
		fmt.Print(menu)
		choice := prompt(stdin, "> ")

		select {
		case <-c.Done():
			fmt.Println("Connection to server lost.")
			return
		default:
		}

		switch choice {
		case "1":
			recipient := prompt(stdin, "Recipient: ")
			content := prompt(stdin, "Message: ")
			check(c.SendPrivate(recipient, content))
		case "2":
			name := prompt(stdin, "Group name: ")
			check(c.CreateGroup(name))
		case "3":
			name := prompt(stdin, "Group name: ")
			content := prompt(stdin, "Message: ")
			check(c.SendGroup(name, content))
		case "4":
			name := prompt(stdin, "Group name: ")
			member := prompt(stdin, "User to add: ")
			if member == c.Username() {
				fmt.Println("You are already a member of your own groups.")
				continue
			}
			check(c.AddMember(name, member))
		case "5":
			name := prompt(stdin, "Group name: ")
			check(c.ListGroupMembers(name))
		case "6":
			check(c.ListUsers())
		case "7":
			check(c.ListGroups())
		case "8":
			recipient := prompt(stdin, "Recipient: ")
			path := prompt(stdin, "File path: ")
			check(c.SendFilePrivate(recipient, path))
		case "9":
			name := prompt(stdin, "Group name: ")
			path := prompt(stdin, "File path: ")
			check(c.SendFileGroup(name, path))
		case "10", "q", "quit", "exit":
			fmt.Println("Bye.")
			return
		default:
			fmt.Println("Unknown option.")
		}
	}
}

const menu = `
--- chatrelay ---
 1. Send private message
 2. Create group
 3. Send group message
 4. Add member to group
 5. List group members
 6. List connected users
 7. List your groups
 8. Send file to user
 9. Send file to group
10. Quit
`

func prompt(stdin *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !stdin.Scan() {
		os.Exit(0)
	}
	return strings.TrimSpace(stdin.Text())
}

func check(err error) {
	if err != nil {
		fmt.Println(err)
	}
}

// printIncoming renders a server record. Responses echo their message;
// notifications are formatted for reading; file payloads are saved to
// the downloads directory.
func printIncoming(msg *protocol.Message, downloads string) {
	switch msg.Type {
	case protocol.TypePrivateReceived:
		fmt.Printf("\n[%s] %s (private): %s\n", msg.Timestamp, msg.Sender, msg.Content)
	case protocol.TypeGroupReceived:
		fmt.Printf("\n[%s] %s @ %s: %s\n", msg.Timestamp, msg.Sender, msg.GroupName, msg.Content)
	case protocol.TypeAddedToGroup:
		fmt.Printf("\nYou were added to group %s by %s\n", msg.GroupName, msg.AddedBy)
	case protocol.TypeFileReceived, protocol.TypeGroupFileReceived:
		path, err := client.SaveReceivedFile(downloads, msg)
		if err != nil {
			fmt.Printf("\nCould not save file %s from %s: %v\n", msg.Filename, msg.Sender, err)
			return
		}
		fmt.Printf("\n[%s] Received file from %s, saved as %s\n", msg.Timestamp, msg.Sender, path)
	case protocol.TypeUsersList:
		fmt.Printf("\nConnected users: %s\n", strings.Join(msg.Users, ", "))
	case protocol.TypeGroupsList:
		fmt.Printf("\nYour groups: %s\n", strings.Join(msg.Groups, ", "))
	case protocol.TypeMembersList:
		if msg.Status == protocol.StatusError {
			fmt.Printf("\nError: %s\n", msg.Message)
			return
		}
		fmt.Printf("\nMembers of %s: %s\n", msg.GroupName, strings.Join(msg.Members, ", "))
	case protocol.TypeError:
		fmt.Printf("\nError: %s\n", msg.Message)
	default:
		// Plain responses (message/group/member/file).
		if msg.Status == protocol.StatusError {
			fmt.Printf("\nError: %s\n", msg.Message)
		} else if msg.Message != "" {
			fmt.Printf("\n%s\n", msg.Message)
		}
	}
}
