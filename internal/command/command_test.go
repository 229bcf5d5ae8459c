package command

import (
	"strings"
	"testing"
	"time"

	"github.com/lawnchairsociety/dicehall/internal/chatfilter"
	"github.com/lawnchairsociety/dicehall/internal/dice"
)

type fakeServer struct {
	broadcasts []string
	sessions   map[string]*fakeSession
	uptime     time.Duration
	kicked     []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{sessions: make(map[string]*fakeSession)}
}

func (f *fakeServer) BroadcastToAll(message string) {
	f.broadcasts = append(f.broadcasts, message)
}

func (f *fakeServer) FindSession(name string) interface{} {
	s, ok := f.sessions[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return s
}

func (f *fakeServer) GetOnlineUsers() []string {
	names := make([]string, 0, len(f.sessions))
	for _, s := range f.sessions {
		names = append(names, s.name)
	}
	return names
}

func (f *fakeServer) GetOnlineUsersDetailed() []UserInfo {
	users := make([]UserInfo, 0, len(f.sessions))
	for _, s := range f.sessions {
		users = append(users, UserInfo{Name: s.name, IP: "127.0.0.1", IsAdmin: s.admin})
	}
	return users
}

func (f *fakeServer) GetUptime() time.Duration { return f.uptime }

func (f *fakeServer) GetChatFilter() *chatfilter.ChatFilter { return nil }

func (f *fakeServer) GetDatabase() interface{} { return nil }

func (f *fakeServer) KickUser(name string, reason string) bool {
	if _, ok := f.sessions[strings.ToLower(name)]; !ok {
		return false
	}
	f.kicked = append(f.kicked, name)
	return true
}

type fakeSession struct {
	name         string
	admin        bool
	server       *fakeServer
	messages     []string
	disconnected bool
}

func (f *fakeSession) GetName() string       { return f.name }
func (f *fakeSession) GetAccountID() int64   { return 1 }
func (f *fakeSession) IsAdmin() bool         { return f.admin }
func (f *fakeSession) Disconnect()           { f.disconnected = true }
func (f *fakeSession) GetServer() interface{} {
	return f.server
}
func (f *fakeSession) SendMessage(message string) {
	f.messages = append(f.messages, message)
}

func newFakeSession(server *fakeServer, name string) *fakeSession {
	s := &fakeSession{name: name, server: server}
	server.sessions[strings.ToLower(name)] = s
	return s
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("  ROLL 4d6kh3  +  5 ")
	if cmd.Name != "roll" {
		t.Errorf("name = %q, expected %q", cmd.Name, "roll")
	}
	if len(cmd.Args) != 3 {
		t.Fatalf("args = %v, expected 3 fields", cmd.Args)
	}
	if cmd.ArgString() != "4d6kh3 + 5" {
		t.Errorf("ArgString() = %q, expected %q", cmd.ArgString(), "4d6kh3 + 5")
	}
}

func TestParseCommandEmpty(t *testing.T) {
	cmd := ParseCommand("   ")
	if cmd.Name != "" || len(cmd.Args) != 0 {
		t.Errorf("ParseCommand(blank) = %+v, expected empty command", cmd)
	}
}

func TestExecuteUnknown(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("fireball goblin").Execute(session)
	if !strings.Contains(result, "Unknown command: fireball") {
		t.Errorf("unexpected response: %q", result)
	}
}

func TestExecuteRollDeterministic(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	// 2d1 always totals 2 no matter the roller.
	result := ParseCommand("roll 2d1 + 3").Execute(session)
	if !strings.Contains(result, "You rolled 2d1 + 3: 5") {
		t.Errorf("unexpected roll response: %q", result)
	}
	if !strings.Contains(result, "Initial Rolls (2d1): 1, 1") {
		t.Errorf("breakdown missing from response: %q", result)
	}
}

func TestExecuteBareExpression(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("3d1").Execute(session)
	if !strings.Contains(result, "You rolled 3d1: 3") {
		t.Errorf("bare expression not treated as roll: %q", result)
	}
}

func TestExecuteRollUsage(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("roll").Execute(session)
	if !strings.HasPrefix(result, "Usage: roll") {
		t.Errorf("unexpected usage response: %q", result)
	}
}

func TestExecuteRollMalformed(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("roll 4d6 + (").Execute(session)
	if !strings.Contains(result, "Could not roll") {
		t.Errorf("malformed expression not rejected: %q", result)
	}

	result = ParseCommand("roll 0d6").Execute(session)
	if !strings.Contains(result, "dice count must be at least 1") {
		t.Errorf("zero-count block not rejected: %q", result)
	}
}

func TestFormatResultTruncation(t *testing.T) {
	result := &dice.Result{Total: 42}
	trace := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		trace = append(trace, "Initial Rolls (100d6): 1, 2, 3, 4, 5, 6")
	}
	result.Blocks = []dice.BlockOutcome{{
		Text:    "100d6",
		Outcome: dice.Outcome{Total: 42, Trace: trace},
	}}

	formatted := formatResult("100d6", result)
	if formatted != "You rolled 100d6: 42" {
		t.Errorf("long breakdown not truncated to total: %q", formatted)
	}
}

func TestExecuteSayBroadcasts(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	ParseCommand("say hello table").Execute(session)
	if len(server.broadcasts) != 1 {
		t.Fatalf("broadcasts = %d, expected 1", len(server.broadcasts))
	}
	if !strings.Contains(server.broadcasts[0], `Alice says: "hello table"`) {
		t.Errorf("unexpected broadcast: %q", server.broadcasts[0])
	}
}

func TestExecuteTell(t *testing.T) {
	server := newFakeServer()
	alice := newFakeSession(server, "Alice")
	bob := newFakeSession(server, "Bob")

	result := ParseCommand("tell bob nice roll").Execute(alice)
	if !strings.Contains(result, `You tell Bob: "nice roll"`) {
		t.Errorf("unexpected tell response: %q", result)
	}
	if len(bob.messages) != 1 || !strings.Contains(bob.messages[0], `Alice tells you: "nice roll"`) {
		t.Errorf("target did not receive tell: %v", bob.messages)
	}
}

func TestExecuteTellUnknownUser(t *testing.T) {
	server := newFakeServer()
	alice := newFakeSession(server, "Alice")

	result := ParseCommand("tell nobody hi").Execute(alice)
	if !strings.Contains(result, "User 'nobody' not found") {
		t.Errorf("unexpected response: %q", result)
	}
}

func TestExecuteWho(t *testing.T) {
	server := newFakeServer()
	alice := newFakeSession(server, "Alice")
	newFakeSession(server, "Bob")

	result := ParseCommand("who").Execute(alice)
	if !strings.Contains(result, "Alice") || !strings.Contains(result, "Bob") {
		t.Errorf("who output missing users: %q", result)
	}
}

func TestExecuteUptime(t *testing.T) {
	server := newFakeServer()
	server.uptime = 2*time.Hour + 5*time.Minute + 9*time.Second
	session := newFakeSession(server, "Alice")

	result := ParseCommand("uptime").Execute(session)
	expected := "Server uptime: 2 hours, 5 minutes, 9 seconds (1 users online)"
	if result != expected {
		t.Errorf("uptime = %q, expected %q", result, expected)
	}
}

func TestExecuteQuit(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("quit").Execute(session)
	if result != "Goodbye!" {
		t.Errorf("quit response = %q", result)
	}
	if !session.disconnected {
		t.Error("quit did not disconnect the session")
	}
}

func TestExecuteAdminHiddenFromUsers(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("admin who").Execute(session)
	if !strings.Contains(result, "Unknown command: admin") {
		t.Errorf("admin command exposed to non-admin: %q", result)
	}
}

func TestExecuteAdminKick(t *testing.T) {
	server := newFakeServer()
	admin := newFakeSession(server, "Root")
	admin.admin = true
	newFakeSession(server, "Bob")

	result := ParseCommand("admin kick bob spamming").Execute(admin)
	if !strings.Contains(result, "Kicked bob") {
		t.Errorf("unexpected kick response: %q", result)
	}
	if len(server.kicked) != 1 {
		t.Errorf("kicked = %v, expected one entry", server.kicked)
	}

	result = ParseCommand("admin kick ghost").Execute(admin)
	if !strings.Contains(result, "not found") {
		t.Errorf("kick of unknown user: %q", result)
	}
}

func TestExecuteHistoryUnavailable(t *testing.T) {
	server := newFakeServer()
	session := newFakeSession(server, "Alice")

	result := ParseCommand("history").Execute(session)
	if result != "Roll history is not available." {
		t.Errorf("history without database = %q", result)
	}

	result = ParseCommand("history zero").Execute(session)
	if !strings.HasPrefix(result, "Usage: history") {
		t.Errorf("bad history count accepted: %q", result)
	}
}
