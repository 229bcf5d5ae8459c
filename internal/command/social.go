package command

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/dicehall/internal/logger"
)

func (c *Command) executeSay(s SessionInterface) string {
	if err := c.RequireArgs(1, "Say what?"); err != nil {
		return err.Error()
	}

	message := c.ArgString()

	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return "Internal error: invalid server type"
	}

	// Apply chat filter if enabled
	filteredMessage := message
	if filter := server.GetChatFilter(); filter != nil && filter.IsEnabled() {
		result := filter.Check(message)
		if result.Violated {
			logger.Always("CHAT_FILTER",
				"user", s.GetName(),
				"command", "say",
				"original", message,
				"matched", strings.Join(result.MatchedWords, ", "),
				"mode", string(filter.Mode()))

			if filter.IsBlockMode() {
				return "Your message contains inappropriate language and was not sent."
			}
			// REPLACE mode - use filtered message
			filteredMessage = result.Filtered
		}
	}

	server.BroadcastToAll(fmt.Sprintf("%s says: \"%s\"\n", s.GetName(), filteredMessage))

	// AUDIT LOG - Always logged regardless of log level (moderation)
	logger.Always("CHAT_SAY",
		"user", s.GetName(),
		"message", filteredMessage)

	return ""
}

func (c *Command) executeTell(s SessionInterface) string {
	if err := c.RequireArgs(2, "Usage: tell <user> <message>"); err != nil {
		return err.Error()
	}

	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return "Internal error: invalid server type"
	}

	targetIface := server.FindSession(c.Args[0])
	if targetIface == nil {
		return fmt.Sprintf("User '%s' not found.", c.Args[0])
	}
	target, ok := targetIface.(SessionInterface)
	if !ok {
		return "Internal error: invalid session type"
	}

	message := strings.Join(c.Args[1:], " ")

	// Apply chat filter if enabled
	filteredMessage := message
	if filter := server.GetChatFilter(); filter != nil && filter.IsEnabled() {
		result := filter.Check(message)
		if result.Violated {
			logger.Always("CHAT_FILTER",
				"user", s.GetName(),
				"command", "tell",
				"recipient", target.GetName(),
				"original", message,
				"matched", strings.Join(result.MatchedWords, ", "),
				"mode", string(filter.Mode()))

			if filter.IsBlockMode() {
				return "Your message contains inappropriate language and was not sent."
			}
			filteredMessage = result.Filtered
		}
	}

	target.SendMessage(fmt.Sprintf("%s tells you: \"%s\"\n", s.GetName(), filteredMessage))

	// AUDIT LOG - Always logged regardless of log level (moderation)
	logger.Always("CHAT_TELL",
		"sender", s.GetName(),
		"recipient", target.GetName(),
		"message", filteredMessage)

	return fmt.Sprintf("You tell %s: \"%s\"", target.GetName(), filteredMessage)
}

func (c *Command) executeWho(s SessionInterface) string {
	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return "Internal error: invalid server type"
	}

	users := server.GetOnlineUsers()
	if len(users) == 0 {
		return "No users online."
	}

	result := "Online Users:\n"
	for _, name := range users {
		result += fmt.Sprintf("  - %s\n", name)
	}
	return result
}
