package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are hidden from the public menu and rejected for other senders.
	AdminOnly bool
	// RejectText is sent to non-admin senders of an AdminOnly command.
	RejectText string
	Hidden     bool
	Aliases    []string
}
