package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/dicehall/internal/chatfilter"
)

// ServerInterface defines the methods we need from the server.
// To avoid circular dependencies, this is defined with interface{} parameters.
type ServerInterface interface {
	BroadcastToAll(message string)
	FindSession(name string) interface{} // Returns a SessionInterface
	GetOnlineUsers() []string
	GetOnlineUsersDetailed() []UserInfo // For admin who command
	GetUptime() time.Duration
	// Chat filter methods
	GetChatFilter() *chatfilter.ChatFilter
	// Persistence methods
	GetDatabase() interface{} // Returns *database.Database
	// Admin methods
	KickUser(name string, reason string) bool
}

// SessionInterface defines the methods we need from a connected session.
// These are satisfied by *session.Session.
type SessionInterface interface {
	GetName() string
	GetAccountID() int64
	IsAdmin() bool
	SendMessage(message string)
	Disconnect()
	GetServer() interface{} // Returns a ServerInterface (avoid circular dependency)
}

// UserInfo contains detailed information about an online user (for admin commands).
type UserInfo struct {
	Name      string
	IP        string
	LoginTime time.Time
	Idle      time.Duration
	RollCount int
	IsAdmin   bool
}

type Command struct {
	Name string
	Args []string
}

// RequireArgs checks if the command has at least the minimum number of arguments.
// Returns an error with the usage message if not enough arguments are provided.
func (c *Command) RequireArgs(min int, usage string) error {
	if len(c.Args) < min {
		return errors.New(usage)
	}
	return nil
}

// ArgString joins all arguments back into a single string.
func (c *Command) ArgString() string {
	return strings.Join(c.Args, " ")
}

func ParseCommand(input string) *Command {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return &Command{Name: "", Args: []string{}}
	}

	return &Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

func (c *Command) Execute(sessionIface interface{}) string {
	s, ok := sessionIface.(SessionInterface)
	if !ok {
		return "Internal error: invalid session type"
	}

	switch c.Name {
	case "roll", "r":
		return c.executeRoll(s)
	case "history", "hist":
		return c.executeHistory(s)
	case "rollstats", "stats":
		return c.executeRollStats(s)
	case "say":
		return c.executeSay(s)
	case "tell":
		return c.executeTell(s)
	case "who":
		return c.executeWho(s)
	case "uptime", "time":
		return c.executeUptime(s)
	case "help":
		return c.executeHelp(s)
	case "password":
		return c.executePassword(s)
	case "admin":
		return c.executeAdmin(s)
	case "quit", "exit":
		return c.executeQuit(s)
	case "":
		return ""
	default:
		// Bare dice expressions work without the roll keyword.
		if looksLikeRoll(c.Name) {
			roll := &Command{Name: "roll", Args: append([]string{c.Name}, c.Args...)}
			return roll.executeRoll(s)
		}
		return fmt.Sprintf("Unknown command: %s. Type 'help' for available commands.", c.Name)
	}
}

func (c *Command) executeQuit(s SessionInterface) string {
	s.Disconnect()
	return "Goodbye!"
}
