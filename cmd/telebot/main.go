package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/weelysontheDISease/Telebot-V1/internal/flow"
	"github.com/weelysontheDISease/Telebot-V1/internal/lockfile"
	"github.com/weelysontheDISease/Telebot-V1/internal/messaging"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/ratelimit"
	"github.com/weelysontheDISease/Telebot-V1/internal/scheduler"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
	"github.com/weelysontheDISease/Telebot-V1/internal/store"
	"github.com/weelysontheDISease/Telebot-V1/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Telebot state data
	DefaultStateDir = "/var/lib/telebot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "telebot.db"
	// CleanupSchedule runs the nightly medical record cleanup (local time)
	CleanupSchedule = "59 23 * * *"
	// JanitorInterval is how often idle sessions are swept
	JanitorInterval = time.Minute
	// RelayPollInterval is how often queued relays are delivered
	RelayPollInterval = 5 * time.Second
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	destChats, err := parseDestChats(config)
	if err != nil {
		slog.Error("Failed to parse destination chat IDs", "error", err)
		os.Exit(1)
	}

	if *flags.botToken == "" {
		slog.Error("No bot token provided, set TELEGRAM_BOT_TOKEN or --bot-token")
		os.Exit(1)
	}
	msgSvc, err := messaging.NewTelegramService(*flags.botToken, destChats)
	if err != nil {
		slog.Error("Failed to create Telegram service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := flow.DefaultConfig()
	sessions := session.NewStore()
	engine := flow.NewEngine(cfg, st, msgSvc, sessions, ratelimit.NewLimiter())

	if err := msgSvc.Start(ctx); err != nil {
		slog.Error("Failed to start Telegram service", "error", err)
		os.Exit(1)
	}
	go engine.Run(ctx)

	sessions.StartJanitor(ctx, cfg.SessionTTL, JanitorInterval, engine.NotifyEvicted)

	sender := store.NewRelaySender(st, func(ctx context.Context, r store.Relay) error {
		return msgSvc.Relay(ctx, r.Dest, r.Body)
	}, RelayPollInterval)
	if err := sender.RecoverStaleRelays(); err != nil {
		slog.Error("Failed to recover stale relays", "error", err)
	}
	go sender.Run(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(CleanupSchedule, func() {
		// Records expiring today are gone when the next day starts.
		cutoff := time.Now().In(cfg.Timezone).AddDate(0, 0, 1)
		if err := st.DeleteExpiredMedical(cutoff); err != nil {
			slog.Error("Nightly medical cleanup failed", "error", err)
			return
		}
		slog.Info("Nightly medical cleanup done")
	}); err != nil {
		slog.Error("Failed to schedule medical cleanup", "error", err)
		os.Exit(1)
	}

	slog.Info("Telebot running", "state_dir", *flags.stateDir, "driver", *flags.dbDriver)
	<-ctx.Done()

	slog.Info("Shutting down")
	if err := msgSvc.Stop(); err != nil {
		slog.Error("Telegram service stop failed", "error", err)
	}
	slog.Info("Telebot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken    string
	DbDriver    string
	DatabaseURL string
	StateDir    string

	MovementChatID    string
	SFTChatID         string
	ParadeStateChatID string
	CadetChatID       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir *string
	dbDriver *string
	dbDSN    *string
	botToken *string
}

// initializeLogger sets up structured logging. TELEBOT_DEBUG=true lowers
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("TELEBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		DbDriver:    os.Getenv("TELEBOT_DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("TELEBOT_STATE_DIR"),

		MovementChatID:    os.Getenv("MOVEMENT_CHAT_ID"),
		SFTChatID:         os.Getenv("SFT_CHAT_ID"),
		ParadeStateChatID: os.Getenv("PARADE_STATE_CHAT_ID"),
		CadetChatID:       os.Getenv("CADET_CHAT_ID"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TELEBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_BOT_TOKEN_SET", config.BotToken != "",
		"TELEBOT_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"TELEBOT_STATE_DIR", config.StateDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir: flag.String("state-dir", config.StateDir, "state directory for Telebot data (overrides $TELEBOT_STATE_DIR)"),
		dbDriver: flag.String("db-driver", config.DbDriver, "database driver: sqlite3 or postgres (overrides $TELEBOT_DB_DRIVER)"),
		dbDSN:    flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		botToken: flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
	}
	flag.Parse()
	return flags
}

// openStore opens the configured store backend. With no driver or DSN
// set, it falls back to SQLite in the state directory.
func openStore(flags Flags) (store.Store, error) {
	if *flags.dbDriver == "postgres" {
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	dsn := *flags.dbDSN
	if dsn == "" {
		dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", dsn)
	}
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// parseDestChats maps the relay destinations to their configured chat IDs.
// Unset destinations are left out; relaying to them fails visibly at
// delivery time rather than silently at startup.
func parseDestChats(config Config) (map[models.Destination]int64, error) {
	raw := map[models.Destination]string{
		models.DestMovement:    config.MovementChatID,
		models.DestSFT:         config.SFTChatID,
		models.DestParadeState: config.ParadeStateChatID,
		models.DestCadet:       config.CadetChatID,
	}
	chats := make(map[models.Destination]int64)
	for dest, val := range raw {
		if val == "" {
			slog.Warn("No chat ID configured for destination", "dest", dest)
			continue
		}
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, err
		}
		chats[dest] = id
	}
	return chats, nil
}
