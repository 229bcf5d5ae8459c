package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/dicehall/internal/database"
	"github.com/lawnchairsociety/dicehall/internal/help"
	"github.com/lawnchairsociety/dicehall/internal/logger"
)

const defaultHistoryLimit = 10
const maxHistoryLimit = 50

func (c *Command) executeHistory(s SessionInterface) string {
	limit := defaultHistoryLimit
	if len(c.Args) > 0 {
		n, err := strconv.Atoi(c.Args[0])
		if err != nil || n < 1 {
			return "Usage: history [count]"
		}
		limit = n
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
	}

	db := getDatabase(s)
	if db == nil {
		return "Roll history is not available."
	}

	records, err := db.RecentRolls(s.GetAccountID(), limit)
	if err != nil {
		logger.Error("Failed to load roll history", "user", s.GetName(), "error", err)
		return "Could not load your roll history."
	}
	if len(records) == 0 {
		return "You haven't rolled anything yet."
	}

	var sb strings.Builder
	sb.WriteString("Recent rolls (newest first):\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "  %s  %-20s = %d\n",
			r.RolledAt.Format("2006-01-02 15:04"), r.Expression, r.Total)
	}
	return sb.String()
}

func (c *Command) executeRollStats(s SessionInterface) string {
	db := getDatabase(s)
	if db == nil {
		return "Roll statistics are not available."
	}

	stats, err := db.GetRollStats(s.GetAccountID())
	if err != nil {
		logger.Error("Failed to load roll stats", "user", s.GetName(), "error", err)
		return "Could not load your roll statistics."
	}
	if stats.Count == 0 {
		return "You haven't rolled anything yet."
	}

	result := "Roll Statistics:\n"
	result += fmt.Sprintf("  Rolls:   %d\n", stats.Count)
	result += fmt.Sprintf("  Highest: %d\n", stats.Highest)
	result += fmt.Sprintf("  Lowest:  %d\n", stats.Lowest)
	result += fmt.Sprintf("  Average: %.1f\n", stats.Average)
	if stats.LastRoll != nil {
		result += fmt.Sprintf("  Last:    %s\n", stats.LastRoll.Format("2006-01-02 15:04"))
	}
	return result
}

func (c *Command) executeUptime(s SessionInterface) string {
	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return "Internal error: invalid server type"
	}

	uptime := server.GetUptime()
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	online := len(server.GetOnlineUsers())
	return fmt.Sprintf("Server uptime: %d hours, %d minutes, %d seconds (%d users online)",
		hours, minutes, seconds, online)
}

func (c *Command) executeHelp(s SessionInterface) string {
	topic := ""
	if len(c.Args) > 0 {
		topic = strings.ToLower(c.ArgString())
	}

	h := help.GetInstance()
	if h == nil {
		return "Help is not available."
	}
	return h.GetHelpText(topic, s.IsAdmin())
}

func (c *Command) executePassword(s SessionInterface) string {
	if err := c.RequireArgs(2, "Usage: password <old> <new>"); err != nil {
		return err.Error()
	}

	db := getDatabase(s)
	if db == nil {
		return "Password changes are not available."
	}

	oldPassword, newPassword := c.Args[0], c.Args[1]
	if len(newPassword) < 8 {
		return "New password must be at least 8 characters."
	}

	if err := db.UpdatePassword(s.GetAccountID(), oldPassword, newPassword); err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			return "Current password is incorrect."
		}
		logger.Error("Failed to update password", "user", s.GetName(), "error", err)
		return "Could not change your password."
	}

	// AUDIT LOG - Always logged regardless of log level (security)
	logger.Always("PASSWORD_CHANGE", "user", s.GetName())

	return "Password changed."
}

// getDatabase unwraps the server's database handle, returning nil when
// persistence is disabled.
func getDatabase(s SessionInterface) *database.Database {
	server, ok := s.GetServer().(ServerInterface)
	if !ok {
		return nil
	}
	db, ok := server.GetDatabase().(*database.Database)
	if !ok {
		return nil
	}
	return db
}
