package tui

import "strings"

// Command is a parsed ':' command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string without the leading ':'. Aliases
// are folded into their full names.
func ParseCommand(input string) Command {
	input = strings.TrimPrefix(strings.TrimSpace(input), ":")
	name, args, _ := strings.Cut(input, " ")
	cmd := Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
	switch cmd.Name {
	case "q", "q!", "exit":
		cmd.Name = "quit"
	case "h":
		cmd.Name = "help"
	case "open":
		cmd.Name = "chat"
	case "sync", "refresh":
		cmd.Name = "resync"
	}
	return cmd
}
