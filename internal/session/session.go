// Package session manages one authenticated connection from login to quit.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/dicehall/internal/antispam"
	"github.com/lawnchairsociety/dicehall/internal/command"
	"github.com/lawnchairsociety/dicehall/internal/dice"
)

// Client abstracts the connection layer. It is satisfied by the server's
// telnet and WebSocket clients.
type Client interface {
	ReadLine() (string, error)
	WriteLine(message string) error
	Close() error
	RemoteAddr() string
}

// Session is one authenticated user at the table.
type Session struct {
	Name      string
	AccountID int64

	client Client
	server interface{} // command.ServerInterface, stored opaque to avoid a cycle

	ip        string
	loginTime time.Time
	isAdmin   bool

	spamTracker *antispam.Tracker

	mu           sync.Mutex
	rollCount    int
	lastActive   time.Time
	disconnected bool
}

// New creates a session for an authenticated account.
func New(name string, accountID int64, isAdmin bool, client Client, server interface{}, spamCfg antispam.Config) *Session {
	return &Session{
		Name:        name,
		AccountID:   accountID,
		isAdmin:     isAdmin,
		client:      client,
		server:      server,
		ip:          client.RemoteAddr(),
		loginTime:   time.Now(),
		lastActive:  time.Now(),
		spamTracker: antispam.NewTracker(spamCfg),
	}
}

// Run drives the read-parse-execute loop until the connection drops or the
// user quits.
func (s *Session) Run() {
	s.SendMessage(fmt.Sprintf("\nWelcome, %s!\n", s.Name))
	s.SendMessage("Type a roll like '4d6kh3r1 + 5', or 'help' for all commands.\n\n")
	s.SendMessage("> ")

	for {
		if s.Disconnected() {
			return
		}

		line, err := s.client.ReadLine()
		if err != nil {
			return
		}

		input := strings.TrimSpace(line)
		s.mu.Lock()
		s.lastActive = time.Now()
		s.mu.Unlock()
		if input == "" {
			s.SendMessage("> ")
			continue
		}

		cmd := command.ParseCommand(input)

		if isChatCommand(cmd.Name) {
			if check := s.spamTracker.Check(input); !check.Allowed {
				s.SendMessage(fmt.Sprintf("%s Try again in %d seconds.\n> ", check.Reason, check.WaitSeconds))
				continue
			}
		}

		if isRollCommand(cmd.Name) {
			s.mu.Lock()
			s.rollCount++
			s.mu.Unlock()
		}

		result := cmd.Execute(s)
		if result != "" {
			s.SendMessage(result + "\n")
		}
		s.SendMessage("> ")
	}
}

func isChatCommand(name string) bool {
	return name == "say" || name == "tell"
}

func isRollCommand(name string) bool {
	return name == "roll" || name == "r" || dice.ContainsBlock(name)
}

// SendMessage writes a message to the client. Safe to call after disconnect.
func (s *Session) SendMessage(message string) {
	s.mu.Lock()
	gone := s.disconnected
	s.mu.Unlock()
	if gone {
		return
	}
	_ = s.client.WriteLine(message)
}

// Disconnect marks the session closed and tears down the connection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return
	}
	s.disconnected = true
	s.mu.Unlock()
	s.client.Close()
}

// Kick sends a reason to the user and disconnects them.
func (s *Session) Kick(reason string) {
	s.SendMessage(fmt.Sprintf("\n*** You have been disconnected: %s ***\n", reason))
	s.Disconnect()
}

// Disconnected reports whether the session has been closed.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// GetName returns the account username.
func (s *Session) GetName() string { return s.Name }

// GetAccountID returns the database account ID.
func (s *Session) GetAccountID() int64 { return s.AccountID }

// IsAdmin reports whether the account has the admin flag.
func (s *Session) IsAdmin() bool { return s.isAdmin }

// GetServer returns the owning server.
func (s *Session) GetServer() interface{} { return s.server }

// IP returns the remote address the session connected from.
func (s *Session) IP() string { return s.ip }

// LoginTime returns when the session was established.
func (s *Session) LoginTime() time.Time { return s.loginTime }

// RollCount returns how many roll commands this session has issued.
func (s *Session) RollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollCount
}

// IdleTime returns how long since the session last sent input.
func (s *Session) IdleTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive)
}
