package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawnchairsociety/dicehall/internal/antispam"
	"github.com/lawnchairsociety/dicehall/internal/chatfilter"
	"github.com/lawnchairsociety/dicehall/internal/config"
	"github.com/lawnchairsociety/dicehall/internal/database"
	"github.com/lawnchairsociety/dicehall/internal/help"
	"github.com/lawnchairsociety/dicehall/internal/logger"
	"github.com/lawnchairsociety/dicehall/internal/namefilter"
	"github.com/lawnchairsociety/dicehall/internal/server"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 4000, "Telnet server port")
	wsPort := flag.Int("wsport", 4443, "WebSocket server port")
	helpFile := flag.String("help", "data/help.yaml", "Path to help YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	chatFilterConfig := flag.String("chatfilter", "data/chat_filter.yaml", "Path to chat filter config YAML file")
	nameFilterConfig := flag.String("namefilter", "data/name_filter.yaml", "Path to name filter config YAML file")
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	dbDriver := flag.String("db-driver", "sqlite", "Database driver (sqlite or postgres)")
	dbFile := flag.String("db", "data/dicehall.db", "Path to SQLite database file")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "dicehall", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password (or set DICEHALL_PG_PASSWORD)")
	pgDatabase := flag.String("pg-database", "dicehall", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	makeAdmin := flag.String("make-admin", "", "Promote an existing account to admin and exit (requires username)")
	flag.Parse()

	dbConfig := database.Config{
		Driver:     *dbDriver,
		SQLitePath: *dbFile,
		Postgres: database.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			User:     *pgUser,
			Password: *pgPassword,
			Database: *pgDatabase,
			SSLMode:  *pgSSLMode,
		},
	}
	if dbConfig.Postgres.Password == "" {
		dbConfig.Postgres.Password = os.Getenv("DICEHALL_PG_PASSWORD")
	}

	// Handle --make-admin flag (promotes account and exits)
	if *makeAdmin != "" {
		handleMakeAdmin(*makeAdmin, dbConfig)
		return
	}

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)

	logger.Info("Starting Dicehall Server")

	// Load help system
	if err := help.Initialize(*helpFile); err != nil {
		logger.Warning("Failed to load help config, help system disabled", "path", *helpFile, "error", err)
	} else {
		logger.Info("Help system loaded", "path", *helpFile)
	}

	// Initialize the account and roll database
	db, err := database.Open(dbConfig)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.Info("Database initialized", "driver", *dbDriver)

	// Create the server
	addr := fmt.Sprintf(":%d", *port)
	srv := server.NewServer(addr, db)

	// Load and set server config (security settings, etc.)
	serverCfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Warning("Failed to load server config, using defaults", "path", *serverConfigFile, "error", err)
		serverCfg = config.DefaultConfig()
	}
	srv.SetServerConfig(serverCfg)
	if len(serverCfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(serverCfg.WebSocket.AllowedOrigins) == 1 && serverCfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", serverCfg.WebSocket.AllowedOrigins)
	}

	// Load and set chat filter
	filterCfg, err := chatfilter.LoadConfig(*chatFilterConfig)
	if err != nil {
		logger.Warning("Failed to load chat filter config, chat filter disabled", "path", *chatFilterConfig, "error", err)
	} else {
		srv.SetChatFilter(chatfilter.New(filterCfg))
		if filterCfg.Enabled {
			logger.Info("Chat filter enabled", "mode", filterCfg.Mode, "words", len(filterCfg.BannedWords))
		}
		if filterCfg.Antispam != nil {
			srv.SetAntispamConfig(antispam.ConfigFromYAML(
				filterCfg.Antispam.Enabled,
				filterCfg.Antispam.MaxMessages,
				filterCfg.Antispam.TimeWindowSeconds,
				filterCfg.Antispam.RepeatCooldownSeconds))
			if filterCfg.Antispam.Enabled {
				logger.Info("Anti-spam enabled", "max_messages", filterCfg.Antispam.MaxMessages, "time_window", filterCfg.Antispam.TimeWindowSeconds)
			}
		}
	}

	// Load and set name filter
	nameCfg, err := namefilter.LoadConfig(*nameFilterConfig)
	if err != nil {
		logger.Warning("Failed to load name filter config, name filter disabled", "path", *nameFilterConfig, "error", err)
	} else {
		srv.SetNameFilter(namefilter.New(nameCfg))
		if nameCfg.Enabled {
			logger.Info("Name filter enabled", "banned_words", len(nameCfg.BannedWords), "banned_names", len(nameCfg.BannedNames))
		}
	}

	// Start telnet server in a goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Telnet server error: %v", err)
		}
	}()

	// Start WebSocket server in a goroutine
	wsAddr := fmt.Sprintf(":%d", *wsPort)
	go func() {
		if err := srv.StartWebSocket(wsAddr); err != nil {
			log.Fatalf("WebSocket server error: %v", err)
		}
	}()

	logger.Info("Dicehall running", "telnet_port", *port, "websocket_port", *wsPort)
	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	srv.Shutdown()
	logger.Info("Server stopped")
}

// handleMakeAdmin promotes an account to admin and exits
func handleMakeAdmin(username string, dbConfig database.Config) {
	db, err := database.Open(dbConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	account, err := db.GetAccountByUsername(username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Account '%s' not found\n", username)
		os.Exit(1)
	}

	if account.IsAdmin {
		fmt.Printf("Account '%s' is already an admin.\n", username)
		os.Exit(0)
	}

	if err := db.SetAdmin(account.ID, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to promote account: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Account '%s' has been promoted to admin.\n", username)
}
