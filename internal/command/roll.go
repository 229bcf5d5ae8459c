package command

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/dicehall/internal/database"
	"github.com/lawnchairsociety/dicehall/internal/dice"
	"github.com/lawnchairsociety/dicehall/internal/logger"
)

// maxBreakdownLen caps the size of a roll response. When the per-block
// breakdown would push past it, only the total is shown.
const maxBreakdownLen = 1900

// looksLikeRoll lets users type a bare expression like "4d6kh3" without the
// roll keyword.
func looksLikeRoll(word string) bool {
	return dice.ContainsBlock(word)
}

func (c *Command) executeRoll(s SessionInterface) string {
	if err := c.RequireArgs(1, "Usage: roll <expression>   (e.g. roll 4d6kh3r1 + d20 + 5)"); err != nil {
		return err.Error()
	}

	expression := c.ArgString()

	result, err := dice.Evaluate(expression, nil)
	if err != nil {
		return fmt.Sprintf("Could not roll '%s': %v", expression, err)
	}

	// Persist the roll; a storage failure shouldn't block the response.
	if server, ok := s.GetServer().(ServerInterface); ok {
		if db, ok := server.GetDatabase().(*database.Database); ok && db != nil {
			if err := db.RecordRoll(s.GetAccountID(), expression, result.Total, len(result.Blocks)); err != nil {
				logger.Error("Failed to record roll", "user", s.GetName(), "error", err)
			}
		}
	}

	// AUDIT LOG - Always logged regardless of log level (moderation)
	logger.Always("ROLL",
		"user", s.GetName(),
		"expression", expression,
		"total", result.Total)

	return formatResult(expression, result)
}

// formatResult renders the total followed by the per-block resolution trace.
func formatResult(expression string, result *dice.Result) string {
	header := fmt.Sprintf("You rolled %s: %d", strings.TrimSpace(expression), result.Total)

	var breakdown strings.Builder
	for _, block := range result.Blocks {
		fmt.Fprintf(&breakdown, "\n\n%s:", block.Text)
		for _, line := range block.Outcome.Trace {
			breakdown.WriteString("\n  ")
			breakdown.WriteString(line)
		}
		fmt.Fprintf(&breakdown, "\n  Block Total: %d", block.Outcome.Total)
	}

	if len(header)+breakdown.Len() > maxBreakdownLen {
		return header
	}
	return header + breakdown.String()
}
