package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process settings. Values come from .env, then the
// environment, then command-line flags.
type Config struct {
	Addr         string
	ClientDir    string
	DBPath       string
	LogFile      string
	LogLevel     string
	PublicURL    string
	JWTSecret    string
	EntryFee     int
	StartBalance int
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ClientDir:    "../client",
		DBPath:       "tanks.db",
		LogFile:      "tanks.log",
		LogLevel:     "info",
		PublicURL:    "http://localhost:8080",
		EntryFee:     1,
		StartBalance: 10,
	}
}

// LoadConfig reads configuration. args are the command-line arguments
// without the program name.
func LoadConfig(args []string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.Addr = envString("ADDR", cfg.Addr)
	cfg.ClientDir = envString("CLIENT_DIR", cfg.ClientDir)
	cfg.DBPath = envString("DB_PATH", cfg.DBPath)
	cfg.LogFile = envString("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.PublicURL = envString("PUBLIC_URL", cfg.PublicURL)
	cfg.JWTSecret = envString("JWT_SECRET", cfg.JWTSecret)
	cfg.EntryFee = envInt("ENTRY_FEE", cfg.EntryFee)
	cfg.StartBalance = envInt("START_BALANCE", cfg.StartBalance)

	fs := flag.NewFlagSet("star-tanks", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.ClientDir, "client", cfg.ClientDir, "path to client directory")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path (empty = in-memory ledger)")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path (empty = stderr only)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "public base URL used in invites")
	fs.IntVar(&cfg.EntryFee, "entry-fee", cfg.EntryFee, "coins charged per room join")
	fs.IntVar(&cfg.StartBalance, "start-balance", cfg.StartBalance, "coins granted to new accounts")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.EntryFee < 0 {
		cfg.EntryFee = 0
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
