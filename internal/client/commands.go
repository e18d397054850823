package client

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/amariwan/cmd-chat/internal/protocol"
	"github.com/amariwan/cmd-chat/internal/sanitize"
)

var errClientNotConnected = errors.New("client is not connected")

// handleCommand processes one slash command. It returns true when the
// client should disconnect and exit.
func (c *Client) handleCommand(line string) bool {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	command := strings.ToLower(parts[0])
	argument := ""
	if len(parts) > 1 {
		argument = strings.TrimSpace(parts[1])
	}

	switch command {
	case "/quit":
		_ = c.sendEncrypted(protocol.Payload{Type: protocol.TypeSystem, Message: c.name + " disconnected."})
		return true

	case "/help":
		fmt.Println("Commands: /nick <name>, /join <room>, /send <filepath>,")
		fmt.Println("/clear, /help, /quit")

	case "/clear":
		c.messages = c.messages[:0]
		fmt.Println("[local] chat buffer cleared.")

	case "/send":
		if argument == "" {
			fmt.Println("Usage: /send <filepath>")
			return false
		}
		if err := c.sendFile(argument); err != nil {
			fmt.Printf("[error] %v\n", err)
		}

	case "/nick":
		if argument == "" {
			fmt.Println("Usage: /nick <new name>")
			return false
		}
		newName := sanitize.Name(argument)
		if err := c.sendEncrypted(protocol.Payload{Type: protocol.TypeRename, Name: newName}); err != nil {
			fmt.Printf("[error] %v\n", err)
			return false
		}
		c.name = newName

	case "/join":
		if argument == "" {
			fmt.Println("Usage: /join <room>")
			return false
		}
		newRoom := sanitize.Room(argument)
		if err := c.sendEncrypted(protocol.Payload{Type: protocol.TypeSwitchRoom, Room: newRoom}); err != nil {
			fmt.Printf("[error] %v\n", err)
			return false
		}
		c.room = newRoom

	default:
		fmt.Printf("Unknown command: %s\n", command)
	}
	return false
}
