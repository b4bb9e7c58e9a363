// ABOUTME: Entry point for the snipevault persistence daemon and CLI
// ABOUTME: Manages the durable store, wallet sessions, and public stats

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/x402labs/snipevault/internal/config"
	"github.com/x402labs/snipevault/internal/record"
	"github.com/x402labs/snipevault/internal/session"
	"github.com/x402labs/snipevault/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
           _                            _ _
 ___ _ __ (_)_ __   _____   ____ _ _   _| | |_
/ __| '_ \| | '_ \ / _ \ \ / / _' | | | | | __|
\__ \ | | | | |_) |  __/\ V / (_| | |_| | | |_
|___/_| |_|_| .__/ \___| \_/ \__,_|\__,_|_|\__|
            |_|
`

// getConfigPath returns the path to the snipevault config file.
// Priority: SNIPEVAULT_CONFIG env var > XDG_CONFIG_HOME/snipevault/config.yaml > ~/.config/snipevault/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SNIPEVAULT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "snipevault", "config.yaml")
}

// getDataPath returns the path to the snipevault data directory.
// Priority: XDG_DATA_HOME/snipevault > ~/.local/share/snipevault
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "snipevault")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "stats":
		err = runStats(ctx)
	case "register":
		err = runRegister(ctx, os.Args[2:])
	case "user":
		err = runUser(ctx, os.Args[2:])
	case "connect":
		err = runConnect(ctx, os.Args[2:])
	case "disconnect":
		err = runDisconnect(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: snipevault <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  serve                   Run the store daemon (session sweep loop)")
	fmt.Println("  init                    Create a new config file interactively")
	fmt.Println("  stats                   Show public aggregate stats")
	fmt.Println("  register <user-id>      Register a new user with default config")
	fmt.Println("  user <user-id>          Show a user's config, session, and trade history")
	fmt.Println("  connect <user-id> [ttl] Open a wallet session (default TTL from config)")
	fmt.Println("  disconnect <user-id>    Close a user's wallet session")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  SNIPEVAULT_CONFIG       Config file path (default: ~/.config/snipevault/config.yaml)")
	fmt.Println()
}

// openStore loads config and opens the store plus session manager.
// The returned cleanup closes the store.
func openStore() (*config.Config, *store.Store, *session.Manager, func(), error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(cfg.Data.Dir)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	sealer, err := session.LoadSealer(cfg.Data.Dir)
	if err != nil {
		st.Close()
		return nil, nil, nil, nil, fmt.Errorf("loading sealer: %w", err)
	}

	mgr := session.NewManager(st, sealer, cfg.Sessions.DefaultTTL)

	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}
	return cfg, st, mgr, cleanup, nil
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Data:      %s\n", cfg.Data.Dir)
	green.Print("    ▶ ")
	fmt.Printf("RPC:       %s\n", cfg.RPC.URL)
	green.Print("    ▶ ")
	fmt.Printf("Sweep:     every %s\n", cfg.Sessions.SweepInterval)
	fmt.Println()

	st, err := store.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	sealer, err := session.LoadSealer(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("loading sealer: %w", err)
	}

	mgr := session.NewManager(st, sealer, cfg.Sessions.DefaultTTL)

	// Expired sessions may have accumulated while the daemon was down
	swept, err := mgr.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("initial session sweep: %w", err)
	}
	if swept > 0 {
		logger.Info("swept expired sessions at startup", "count", swept)
	}

	logger.Info("snipevault daemon started",
		"data_dir", cfg.Data.Dir,
		"sweep_interval", cfg.Sessions.SweepInterval)

	ticker := time.NewTicker(cfg.Sessions.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			n, err := mgr.SweepExpired(ctx)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("swept expired sessions", "count", n)
			}
			if stats, err := st.GetPublicStats(ctx); err == nil {
				logger.Debug("heartbeat",
					"total_users", stats.TotalUsers,
					"active_sessions", stats.ActiveSessions,
					"total_snipes", stats.TotalSnipes)
			}
		}
	}
}

func runStats(ctx context.Context) error {
	_, st, _, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := st.GetPublicStats(ctx)
	if err != nil {
		return fmt.Errorf("reading public stats: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Public Stats")
	cyan.Println("  ------------")
	fmt.Printf("  Total Users:        %d\n", stats.TotalUsers)
	fmt.Printf("  Active Sessions:    %d\n", stats.ActiveSessions)
	fmt.Printf("  Total Snipes:       %d\n", stats.TotalSnipes)
	fmt.Printf("  Successful Snipes:  %d\n", stats.SuccessfulSnipes)
	fmt.Printf("  Total Profit USDC:  %.6f\n", stats.TotalProfitUSDC)
	fmt.Println()

	return nil
}

func runRegister(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: snipevault register <user-id>")
	}
	userID := args[0]

	_, st, _, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := st.GetUser(ctx, userID); err == nil {
		return fmt.Errorf("user %s already exists", userID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking user: %w", err)
	}

	state := &record.UserState{
		Config: record.UserConfig{
			MaxFDV:        100000,
			MinLiquidity:  5000,
			BudgetPerDay:  1.0,
			TakeProfitPct: 100.0,
			StopLossPct:   40.0,
			MaxSnipeSOL:   0.1,
		},
	}
	if _, err := st.SaveUser(ctx, userID, state); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}

	if err := st.UpdatePublicStats(ctx, func(p *record.PublicStats) {
		p.TotalUsers++
	}); err != nil {
		return fmt.Errorf("updating stats: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Registered %s\n", userID)
	return nil
}

func runUser(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: snipevault user <user-id>")
	}
	userID := args[0]

	_, st, _, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := st.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %s not found", userID)
		}
		return fmt.Errorf("reading user: %w", err)
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Printf("  User %s\n", userID)
	cyan.Println("  " + strings.Repeat("-", len(userID)+5))
	fmt.Printf("  Max FDV:        %.0f\n", state.Config.MaxFDV)
	fmt.Printf("  Min Liquidity:  %.0f\n", state.Config.MinLiquidity)
	fmt.Printf("  Budget/Day:     %.4f USDC\n", state.Config.BudgetPerDay)
	fmt.Printf("  Take Profit:    %.1f%%\n", state.Config.TakeProfitPct)
	fmt.Printf("  Stop Loss:      %.1f%%\n", state.Config.StopLossPct)
	fmt.Printf("  Max Snipe:      %.4f SOL\n", state.Config.MaxSnipeSOL)

	fmt.Println()
	if state.Session != nil {
		now := uint64(time.Now().Unix())
		if state.Session.Active(now) {
			green.Println("  Session: ACTIVE")
		} else {
			yellow.Println("  Session: EXPIRED")
		}
		fmt.Printf("    Pubkey:     %s\n", state.Session.Pubkey)
		fmt.Printf("    Expires:    %s\n", time.Unix(int64(state.Session.ExpiresAt), 0).UTC().Format(time.RFC3339))
		fmt.Printf("    Spent:      %.6f USDC / %.6f SOL\n",
			state.Session.DailySpentUSDC, state.Session.DailySpentSOL)
	} else {
		fmt.Println("  Session: (none)")
	}

	fmt.Println()
	if len(state.History) == 0 {
		fmt.Println("  Trades: (none)")
	} else {
		yellow.Printf("  Trades (%d):\n", len(state.History))
		for _, tr := range state.History {
			line := fmt.Sprintf("    %s %s entry=%.8f", tr.ID, tr.Token, tr.EntryPrice)
			if tr.Closed() {
				line += fmt.Sprintf(" exit=%.8f", *tr.ExitPrice)
				if tr.ProfitPct != nil {
					line += fmt.Sprintf(" profit=%.2f%%", *tr.ProfitPct)
				}
			} else {
				line += " (open)"
			}
			fmt.Println(line)
		}
	}
	fmt.Println()

	return nil
}

func runConnect(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: snipevault connect <user-id> [ttl]")
	}
	userID := args[0]

	var ttl time.Duration
	if len(args) > 1 {
		var err error
		ttl, err = time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", args[1], err)
		}
	}

	_, _, mgr, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := mgr.Connect(ctx, userID, ttl)
	if err != nil {
		return fmt.Errorf("connecting session: %w", err)
	}
	defer key.Zero()

	pubkey, err := key.Pubkey()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("Session opened for %s\n", userID)
	fmt.Printf("  Session pubkey: %s\n", pubkey)
	return nil
}

func runDisconnect(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: snipevault disconnect <user-id>")
	}
	userID := args[0]

	_, _, mgr, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := mgr.Disconnect(ctx, userID); err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Session closed for %s\n", userID)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("snipevault configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Storage
	fmt.Println("\n--- Storage Configuration ---")
	dataDir := prompt(reader, "Data directory", defaultDataPath)

	// RPC
	fmt.Println("\n--- Solana RPC Configuration ---")
	rpcURL := prompt(reader, "RPC URL", "https://api.mainnet-beta.solana.com")

	// Payments
	fmt.Println("\n--- Payments Configuration ---")
	maxUSDC := prompt(reader, "Max USDC spend per day", "1.0")
	if _, err := strconv.ParseFloat(maxUSDC, 64); err != nil {
		return fmt.Errorf("parsing max USDC value %q: %w", maxUSDC, err)
	}

	// Sessions
	fmt.Println("\n--- Session Configuration ---")
	defaultTTL := prompt(reader, "Default session TTL", "24h")
	sweepInterval := prompt(reader, "Expired session sweep interval", "5m")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# snipevault configuration\n")
	cfg.WriteString("# Generated by snipevault init\n\n")

	cfg.WriteString("data:\n")
	cfg.WriteString(fmt.Sprintf("  dir: \"%s\"\n", dataDir))
	cfg.WriteString("\n")

	cfg.WriteString("rpc:\n")
	cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", rpcURL))
	cfg.WriteString("\n")

	cfg.WriteString("payments:\n")
	cfg.WriteString(fmt.Sprintf("  max_usdc_per_day: %s\n", maxUSDC))
	cfg.WriteString("\n")

	cfg.WriteString("sessions:\n")
	cfg.WriteString(fmt.Sprintf("  default_ttl: \"%s\"\n", defaultTTL))
	cfg.WriteString(fmt.Sprintf("  sweep_interval: \"%s\"\n", sweepInterval))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the daemon:")
	fmt.Printf("  snipevault serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
