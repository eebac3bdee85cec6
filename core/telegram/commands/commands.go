package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a registered bot command.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Usage is shown in help after the command name, e.g. "<user_id>".
	Usage     string
	AdminOnly bool
	Hidden    bool
	// Aliases are plain texts (reply keyboard labels) that trigger the command.
	Aliases []string
}
