package chatcmder

import "strings"

type command int

const (
	cmdNone command = iota
	cmdCancel
	cmdReset
	cmdExit
	cmdUnknown
)

const (
	noticeNothingToCancel = "nothing to cancel"
	noticeCleared         = "conversation cleared"
	noticeUnknownCommand  = "unknown command; use /cancel, /reset or /exit"
)

// parseCommand recognizes slash commands. Anything else is a message.
func parseCommand(input string) command {
	if !strings.HasPrefix(input, "/") {
		return cmdNone
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/cancel":
		return cmdCancel
	case "/reset", "/clear":
		return cmdReset
	case "/exit", "/quit":
		return cmdExit
	}
	return cmdUnknown
}
