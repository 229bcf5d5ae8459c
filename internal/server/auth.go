package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/lawnchairsociety/dicehall/internal/database"
	"github.com/lawnchairsociety/dicehall/internal/logger"
)

// isValidUsername checks if a username contains only allowed characters.
// Allowed: letters, digits, hyphens and underscores. The first and last
// character must be a letter or digit, with no consecutive separators.
func isValidUsername(name string) bool {
	if len(name) == 0 {
		return false
	}

	runes := []rune(name)

	if !isAlnum(runes[0]) || !isAlnum(runes[len(runes)-1]) {
		return false
	}

	prevWasSeparator := false
	for _, r := range runes {
		if isAlnum(r) {
			prevWasSeparator = false
			continue
		}
		if r == '-' || r == '_' {
			if prevWasSeparator {
				return false
			}
			prevWasSeparator = true
			continue
		}
		return false
	}

	return true
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// handleAuth handles the login/registration flow for a new connection.
// Returns the authenticated account, or an error.
func (s *Server) handleAuth(client Client) (*database.Account, error) {
	client.WriteLine("\n")
	client.WriteLine("=====================================\n")
	client.WriteLine("        Welcome to Dicehall!\n")
	client.WriteLine("=====================================\n")
	client.WriteLine("\n")
	client.WriteLine("  [L] Login\n")
	client.WriteLine("  [R] Register\n")
	client.WriteLine("\n")
	client.WriteLine("Enter choice: ")

	choice, err := client.ReadLine()
	if err != nil {
		return nil, errors.New("connection closed")
	}
	choice = strings.ToLower(strings.TrimSpace(choice))

	switch choice {
	case "l", "login":
		return s.handleLogin(client)
	case "r", "register":
		return s.handleRegister(client)
	default:
		client.WriteLine("Invalid choice. Disconnecting.\n")
		return nil, errors.New("invalid choice")
	}
}

// handleLogin handles the login flow.
func (s *Server) handleLogin(client Client) (*database.Account, error) {
	client.WriteLine("\n--- Login ---\n")

	ipAddress := getIPFromAddr(client.RemoteAddr())

	if s.loginRateLimiter != nil {
		if locked, remaining := s.loginRateLimiter.IsLocked(ipAddress); locked {
			client.WriteLine(fmt.Sprintf("Too many failed login attempts. Please wait %d seconds.\n",
				int(remaining.Seconds())))
			return nil, errors.New("rate limited")
		}
	}

	client.WriteLine("Username: ")
	username, err := client.ReadLine()
	if err != nil {
		return nil, errors.New("connection closed")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		client.WriteLine("Username cannot be empty.\n")
		return nil, errors.New("empty username")
	}

	client.WriteLine("Password: ")
	password, err := client.ReadLine()
	if err != nil {
		return nil, errors.New("connection closed")
	}

	account, err := s.db.ValidateLogin(username, password, ipAddress)
	if err != nil {
		if errors.Is(err, database.ErrAccountBanned) {
			logger.Info("Login attempt on banned account",
				"username", username,
				"ip", ipAddress,
				"event", "login_banned")
			client.WriteLine("\n*** YOUR ACCOUNT HAS BEEN BANNED ***\n")
			client.WriteLine("Contact an administrator if you believe this is an error.\n")
			return nil, errors.New("account banned")
		}
		if errors.Is(err, database.ErrInvalidCredentials) {
			logger.Info("Failed login attempt",
				"username", username,
				"ip", ipAddress,
				"event", "login_failed")
			if s.loginRateLimiter != nil {
				if locked, duration := s.loginRateLimiter.RecordFailure(ipAddress); locked {
					logger.Warning("IP rate limited after failed logins",
						"ip", ipAddress,
						"lockout_seconds", int(duration.Seconds()),
						"event", "login_ratelimit")
					client.WriteLine(fmt.Sprintf("Invalid username or password. Too many attempts - locked out for %d seconds.\n",
						int(duration.Seconds())))
					return nil, errors.New("rate limited")
				}
			}
			client.WriteLine("Invalid username or password.\n")
			return nil, errors.New("invalid credentials")
		}
		client.WriteLine("An error occurred. Please try again.\n")
		return nil, err
	}

	// Successful login - clear rate limit
	if s.loginRateLimiter != nil {
		s.loginRateLimiter.RecordSuccess(ipAddress)
	}

	logger.Info("Successful login",
		"username", account.Username,
		"account_id", account.ID,
		"ip", ipAddress,
		"event", "login_success")

	client.WriteLine(fmt.Sprintf("\nWelcome back, %s!\n", account.Username))

	return account, nil
}

// handleRegister handles the registration flow.
func (s *Server) handleRegister(client Client) (*database.Account, error) {
	client.WriteLine("\n--- Register ---\n")

	client.WriteLine("Choose a username: ")
	username, err := client.ReadLine()
	if err != nil {
		return nil, errors.New("connection closed")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		client.WriteLine("Username cannot be empty.\n")
		return nil, errors.New("empty username")
	}
	if len(username) < 3 {
		client.WriteLine("Username must be at least 3 characters.\n")
		return nil, errors.New("username too short")
	}
	if len(username) > 20 {
		client.WriteLine("Username must be 20 characters or less.\n")
		return nil, errors.New("username too long")
	}
	if !isValidUsername(username) {
		client.WriteLine("Usernames may only contain letters, digits, hyphens and underscores.\n")
		return nil, errors.New("invalid username")
	}

	// Check against the name filter for inappropriate names
	if s.nameFilter != nil && s.nameFilter.IsEnabled() {
		result := s.nameFilter.Check(username)
		if !result.Allowed {
			logger.Always("NAME_FILTER",
				"username", username,
				"reason", result.Reason,
				"ip", getIPFromAddr(client.RemoteAddr()))
			client.WriteLine(result.Reason + "\n")
			return nil, errors.New("username rejected by filter")
		}
	}

	exists, err := s.db.AccountExists(username)
	if err != nil {
		client.WriteLine("An error occurred. Please try again.\n")
		return nil, err
	}
	if exists {
		client.WriteLine("That username is already taken.\n")
		return nil, errors.New("username taken")
	}

	pwConfig := s.GetServerConfig().Password
	client.WriteLine(fmt.Sprintf("Choose a password (%s): ", pwConfig.GetRequirementsText()))
	password, err := client.ReadLine()
	if err != nil {
		return nil, errors.New("connection closed")
	}
	if msg := pwConfig.ValidatePassword(password); msg != "" {
		client.WriteLine(msg + "\n")
		return nil, errors.New("weak password")
	}

	client.WriteLine("Confirm password: ")
	confirm, err := client.ReadLine()
	if err != nil {
		return nil, errors.New("connection closed")
	}
	if password != confirm {
		client.WriteLine("Passwords do not match.\n")
		return nil, errors.New("password mismatch")
	}

	account, err := s.db.CreateAccount(username, password)
	if err != nil {
		if errors.Is(err, database.ErrAccountExists) {
			client.WriteLine("That username is already taken.\n")
			return nil, errors.New("username taken")
		}
		client.WriteLine("An error occurred. Please try again.\n")
		return nil, err
	}

	logger.Info("Account created",
		"username", account.Username,
		"account_id", account.ID,
		"ip", getIPFromAddr(client.RemoteAddr()),
		"event", "account_created")

	client.WriteLine(fmt.Sprintf("\nAccount created. Welcome, %s!\n", account.Username))

	return account, nil
}

// getIPFromAddr extracts the IP address from an address string.
func getIPFromAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
