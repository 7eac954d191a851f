package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer SyncLogger()

	var db *DB
	if cfg.DBPath != "" {
		db, err = OpenDB(cfg.DBPath, cfg.StartBalance)
		if err != nil {
			Log.Fatalw("open database", "path", cfg.DBPath, "err", err)
		}
		defer db.Close()
	} else {
		Log.Warnw("no database configured, balances are kept in memory")
	}

	hub := NewHub(cfg, db)
	go hub.Run()

	server := &http.Server{Addr: cfg.Addr, Handler: SetupRouter(hub)}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		Log.Infow("server starting", "addr", cfg.Addr, "client", cfg.ClientDir, "entry_fee", cfg.EntryFee)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Log.Fatalw("listen", "err", err)
		}
	}()

	<-stop
	Log.Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		Log.Warnw("http shutdown", "err", err)
	}
	hub.Shutdown()
}
