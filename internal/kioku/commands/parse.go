// Package commands parses and routes the "!" commands users send to Kioku.
package commands

import (
	"errors"
	"strconv"
	"strings"
)

// Prefix marks a chat message as a command.
const Prefix = "!"

// Usage strings returned verbatim to the user.
const (
	UsageRemember      = "Usage: !remember <memory text>"
	UsageDeleteMemory  = "Usage: !deletememory <id>"
	UsageInvalidMemory = "Invalid memory ID. Usage: !deletememory <id>"
)

// ErrNotACommand is returned by Parse when the message does not start with the
// command prefix. Callers should use errors.Is to distinguish this expected
// case from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// UsageError is returned when a known command is missing or has a malformed
// argument. Usage is the guidance text shown to the user.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return e.Command + ": " + e.Usage
}

// Command is one parsed command. The concrete type identifies the variant.
type Command interface {
	// Name is the lower-cased command word without the prefix.
	Name() string
	isCommand()
}

// Help asks for the list of commands.
type Help struct{}

// Remember stores Text as a new memory.
type Remember struct {
	Text string
}

// ListMemories lists the caller's memories.
type ListMemories struct{}

// DeleteMemory removes the memory with ID.
type DeleteMemory struct {
	ID int64
}

// ShowHistory prints the caller's conversation history.
type ShowHistory struct{}

// Unknown is any prefixed word that is not a known command.
type Unknown struct {
	Word string
}

func (Help) Name() string         { return "help" }
func (Remember) Name() string     { return "remember" }
func (ListMemories) Name() string { return "listmemories" }
func (DeleteMemory) Name() string { return "deletememory" }
func (ShowHistory) Name() string  { return "showhistory" }
func (u Unknown) Name() string    { return u.Word }

func (Help) isCommand()         {}
func (Remember) isCommand()     {}
func (ListMemories) isCommand() {}
func (DeleteMemory) isCommand() {}
func (ShowHistory) isCommand()  {}
func (Unknown) isCommand()      {}

// Parse turns a raw chat line into a Command.
//
// The command word is the run of ASCII letters right after the prefix and is
// matched case-insensitively; whatever follows is the argument text, with its
// original case kept. A line without the prefix yields ErrNotACommand. A known
// command with a bad argument yields a *UsageError.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Prefix) {
		return nil, ErrNotACommand
	}
	text = strings.TrimPrefix(text, Prefix)

	end := 0
	for end < len(text) && isASCIILetter(text[end]) {
		end++
	}
	word := strings.ToLower(text[:end])
	rest := text[end:]

	switch word {
	case "help":
		return Help{}, nil
	case "remember":
		memory := strings.TrimSpace(strings.Trim(rest, ": "))
		if memory == "" {
			return nil, &UsageError{Command: word, Usage: UsageRemember}
		}
		return Remember{Text: memory}, nil
	case "listmemories":
		return ListMemories{}, nil
	case "deletememory":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, &UsageError{Command: word, Usage: UsageDeleteMemory}
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, &UsageError{Command: word, Usage: UsageInvalidMemory}
		}
		return DeleteMemory{ID: id}, nil
	case "showhistory":
		return ShowHistory{}, nil
	default:
		return Unknown{Word: strings.ToLower(firstField(text))}, nil
	}
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
