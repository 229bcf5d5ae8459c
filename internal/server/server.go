// Package server accepts telnet and WebSocket connections, authenticates
// accounts and hands each one to a session.
package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/dicehall/internal/antispam"
	"github.com/lawnchairsociety/dicehall/internal/chatfilter"
	"github.com/lawnchairsociety/dicehall/internal/command"
	"github.com/lawnchairsociety/dicehall/internal/config"
	"github.com/lawnchairsociety/dicehall/internal/database"
	"github.com/lawnchairsociety/dicehall/internal/logger"
	"github.com/lawnchairsociety/dicehall/internal/namefilter"
	"github.com/lawnchairsociety/dicehall/internal/session"
)

type Server struct {
	address  string
	listener net.Listener

	db *database.Database

	serverConfig   *config.ServerConfig
	chatFilter     *chatfilter.ChatFilter
	nameFilter     *namefilter.NameFilter
	antispamConfig antispam.Config

	connLimiter      *ConnLimiter
	loginRateLimiter *LoginRateLimiter

	mu       sync.RWMutex
	sessions map[string]*session.Session

	startTime    time.Time
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func NewServer(address string, db *database.Database) *Server {
	s := &Server{
		address:        address,
		db:             db,
		sessions:       make(map[string]*session.Session),
		antispamConfig: antispam.DefaultConfig(),
		startTime:      time.Now(),
		shutdown:       make(chan struct{}),
	}
	s.SetServerConfig(config.DefaultConfig())
	return s
}

// SetServerConfig sets the server configuration and rebuilds the connection
// and login limiters from it.
func (s *Server) SetServerConfig(cfg *config.ServerConfig) {
	s.serverConfig = cfg
	s.connLimiter = NewConnLimiter(cfg.Connections)
	if s.loginRateLimiter != nil {
		s.loginRateLimiter.Stop()
	}
	s.loginRateLimiter = NewLoginRateLimiter(cfg.RateLimit)
}

// GetServerConfig returns the server configuration.
func (s *Server) GetServerConfig() *config.ServerConfig {
	if s.serverConfig == nil {
		return config.DefaultConfig()
	}
	return s.serverConfig
}

// SetChatFilter sets the chat filter applied to say and tell.
func (s *Server) SetChatFilter(filter *chatfilter.ChatFilter) {
	s.chatFilter = filter
}

// GetChatFilter returns the chat filter, or nil if none is configured.
func (s *Server) GetChatFilter() *chatfilter.ChatFilter {
	return s.chatFilter
}

// SetNameFilter sets the filter applied to new account names.
func (s *Server) SetNameFilter(filter *namefilter.NameFilter) {
	s.nameFilter = filter
}

// SetAntispamConfig sets the per-session chat rate limiting config.
func (s *Server) SetAntispamConfig(cfg antispam.Config) {
	s.antispamConfig = cfg
}

// GetDatabase returns the database connection.
func (s *Server) GetDatabase() interface{} {
	return s.db
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	logger.Info("Server listening", "address", s.address)

	for {
		select {
		case <-s.shutdown:
			return nil
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				// Check if we're shutting down
				select {
				case <-s.shutdown:
					return nil
				default:
					logger.Error("Error accepting connection", "error", err)
					continue
				}
			}

			go s.handleConnection(conn)
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	ip := extractIP(remoteAddr)

	if s.connLimiter != nil && !s.connLimiter.TryAcquire(ip) {
		logger.Warning("Connection rejected - limit exceeded",
			"remote_addr", remoteAddr,
			"ip", ip)
		conn.Write([]byte("Too many connections. Please try again later.\r\n"))
		conn.Close()
		return
	}

	defer func() {
		if s.connLimiter != nil {
			s.connLimiter.Release(ip)
		}
		conn.Close()
	}()

	client := NewTelnetClient(conn)
	s.handleClient(client)
}

// handleClient is the shared client handling logic for both telnet and WebSocket.
func (s *Server) handleClient(client Client) {
	logger.Info("Client connected", "remote_addr", client.RemoteAddr())

	account, err := s.handleAuth(client)
	if err != nil {
		logger.Info("Authentication failed", "remote_addr", client.RemoteAddr(), "error", err)
		return
	}

	name := account.Username
	key := strings.ToLower(name)

	s.mu.Lock()
	if _, online := s.sessions[key]; online {
		s.mu.Unlock()
		client.WriteLine("\nThat account is already logged in.\n")
		logger.Info("Duplicate login rejected", "user", name, "remote_addr", client.RemoteAddr())
		return
	}
	sess := session.New(name, account.ID, account.IsAdmin, client, command.ServerInterface(s), s.antispamConfig)
	s.sessions[key] = sess
	s.mu.Unlock()

	defer func() {
		logger.Info("Client disconnected", "user", name)

		s.mu.Lock()
		delete(s.sessions, key)
		s.mu.Unlock()
	}()

	sess.Run()
}

// StartWebSocket starts the WebSocket server on the given address.
func (s *Server) StartWebSocket(address string) error {
	http.HandleFunc("/ws", s.handleWebSocketUpgrade)

	logger.Info("WebSocket server listening", "address", address)
	return http.ListenAndServe(address, nil)
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	// Get the real client IP (supports X-Forwarded-For from reverse proxies)
	clientIP := getRealIP(r)

	// Check connection limits before upgrading
	if s.connLimiter != nil && !s.connLimiter.TryAcquire(clientIP) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			cfg := s.GetServerConfig()
			allowed := cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		// Release the connection slot since upgrade failed
		if s.connLimiter != nil {
			s.connLimiter.Release(clientIP)
		}
		return
	}

	go s.handleWebSocketConnection(wsConn, clientIP)
}

// handleWebSocketConnection handles a WebSocket client connection.
func (s *Server) handleWebSocketConnection(wsConn *websocket.Conn, clientIP string) {
	defer func() {
		if s.connLimiter != nil {
			s.connLimiter.Release(clientIP)
		}
		wsConn.Close()
	}()

	client := NewWebSocketClient(wsConn)
	s.handleClient(client)
}

// getRealIP extracts the real client IP from an HTTP request.
// It checks X-Forwarded-For first (for reverse proxy setups), then falls
// back to the direct remote address.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2"
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return extractIP(r.RemoteAddr)
}

func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			s.listener.Close()
		}

		if s.loginRateLimiter != nil {
			s.loginRateLimiter.Stop()
		}

		s.mu.Lock()
		for _, sess := range s.sessions {
			sess.SendMessage("\n*** Server is shutting down. ***\n")
			sess.Disconnect()
		}
		s.mu.Unlock()

		logger.Info("Server shutdown complete")
	})
}

// BroadcastToAll sends a message to every connected session.
func (s *Server) BroadcastToAll(message string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		sess.SendMessage(message)
	}
}

// GetOnlineUsers returns the names of all connected users.
func (s *Server) GetOnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.sessions))
	for _, sess := range s.sessions {
		names = append(names, sess.GetName())
	}
	return names
}

// GetOnlineUserCount returns the number of connected users.
func (s *Server) GetOnlineUserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// GetOnlineUsersDetailed returns connection details for the admin who command.
func (s *Server) GetOnlineUsersDetailed() []command.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]command.UserInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		users = append(users, command.UserInfo{
			Name:      sess.GetName(),
			IP:        sess.IP(),
			LoginTime: sess.LoginTime(),
			Idle:      sess.IdleTime(),
			RollCount: sess.RollCount(),
			IsAdmin:   sess.IsAdmin(),
		})
	}
	return users
}

// FindSession finds a connected user by name. Exact matches win; otherwise a
// unique case-insensitive prefix matches.
func (s *Server) FindSession(name string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(name)
	if sess, ok := s.sessions[lower]; ok {
		return sess
	}

	var match *session.Session
	for key, sess := range s.sessions {
		if strings.HasPrefix(key, lower) {
			if match != nil {
				return nil // Ambiguous prefix
			}
			match = sess
		}
	}
	if match == nil {
		return nil
	}
	return match
}

// KickUser disconnects a user with a reason. Returns false if not online.
func (s *Server) KickUser(name string, reason string) bool {
	sessIface := s.FindSession(name)
	if sessIface == nil {
		return false
	}
	sess, ok := sessIface.(*session.Session)
	if !ok {
		return false
	}
	sess.Kick(reason)
	return true
}

// GetUptime returns how long the server has been running.
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}
