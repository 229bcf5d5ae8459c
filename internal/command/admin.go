package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/dicehall/internal/database"
	"github.com/lawnchairsociety/dicehall/internal/logger"
)

func (c *Command) executeAdmin(s SessionInterface) string {
	if !s.IsAdmin() {
		return "Unknown command: admin. Type 'help' for available commands."
	}

	if len(c.Args) == 0 {
		return adminUsage()
	}

	sub := strings.ToLower(c.Args[0])
	rest := c.Args[1:]

	switch sub {
	case "who", "users":
		return c.executeAdminWho(s)
	case "kick":
		return c.executeAdminKick(s, rest)
	case "ban":
		return c.executeAdminBan(s, rest, true)
	case "unban":
		return c.executeAdminBan(s, rest, false)
	default:
		return adminUsage()
	}
}

func adminUsage() string {
	return `Admin Commands:
  admin who              - List online users with connection details
  admin kick <user> [reason] - Disconnect a user
  admin ban <user>       - Ban an account (disconnects if online)
  admin unban <user>     - Lift an account ban`
}

func (c *Command) executeAdminWho(s SessionInterface) string {
	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return "Internal error: invalid server type"
	}

	users := server.GetOnlineUsersDetailed()
	if len(users) == 0 {
		return "No users online."
	}

	var sb strings.Builder
	sb.WriteString("Online Users:\n")
	for _, u := range users {
		flag := ""
		if u.IsAdmin {
			flag = " [admin]"
		}
		fmt.Fprintf(&sb, "  %-16s %-21s rolls: %-5d idle: %-8s on since %s%s\n",
			u.Name, u.IP, u.RollCount, u.Idle.Round(time.Second), u.LoginTime.Format("15:04:05"), flag)
	}
	return sb.String()
}

func (c *Command) executeAdminKick(s SessionInterface, args []string) string {
	if len(args) < 1 {
		return "Usage: admin kick <user> [reason]"
	}

	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return "Internal error: invalid server type"
	}

	target := args[0]
	reason := "No reason given."
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}

	if !server.KickUser(target, reason) {
		return fmt.Sprintf("User '%s' not found.", target)
	}

	// AUDIT LOG - Always logged regardless of log level (moderation)
	logger.Always("ADMIN_KICK",
		"admin", s.GetName(),
		"target", target,
		"reason", reason)

	return fmt.Sprintf("Kicked %s.", target)
}

func (c *Command) executeAdminBan(s SessionInterface, args []string, banned bool) string {
	verb := "ban"
	if !banned {
		verb = "unban"
	}
	if len(args) < 1 {
		return fmt.Sprintf("Usage: admin %s <user>", verb)
	}

	db := getDatabase(s)
	if db == nil {
		return "Account management is not available."
	}

	target := args[0]
	account, err := db.GetAccountByUsername(target)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return fmt.Sprintf("Account '%s' not found.", target)
		}
		logger.Error("Failed to look up account", "target", target, "error", err)
		return "Could not look up that account."
	}

	if err := db.SetBanned(account.ID, banned); err != nil {
		logger.Error("Failed to update ban flag", "target", target, "error", err)
		return "Could not update that account."
	}

	if banned {
		if server, ok := s.GetServer().(ServerInterface); ok {
			server.KickUser(account.Username, "You have been banned.")
		}
	}

	// AUDIT LOG - Always logged regardless of log level (moderation)
	logger.Always("ADMIN_BAN",
		"admin", s.GetName(),
		"target", account.Username,
		"banned", banned)

	if banned {
		return fmt.Sprintf("Banned %s.", account.Username)
	}
	return fmt.Sprintf("Unbanned %s.", account.Username)
}
