package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"navalcombat/internal/game"
	"navalcombat/internal/game/naval"
	"navalcombat/internal/server"
	"navalcombat/internal/session"
	"navalcombat/internal/storage"
)

func main() {
	log.SetReportTimestamp(true)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			log.Fatal("main [config] LOG_LEVEL", "value", lvl, "err", err)
		}
		log.SetLevel(level)
	}

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	dbPath := "navalcombat.db"
	if p := os.Getenv("DB_PATH"); p != "" {
		dbPath = p
	}

	cleanupInterval := envDuration("CLEANUP_INTERVAL", time.Minute)
	maxAge := envDuration("SESSION_MAX_AGE", time.Hour)
	msgRate := envFloat("WS_RATE", 10)
	msgBurst := int(envFloat("WS_BURST", 20))

	store, err := storage.New(dbPath)
	if err != nil {
		log.Fatal("main [storage]", "path", dbPath, "err", err)
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(naval.Naval{})

	mgr := session.NewManager(registry, store)
	defer mgr.Shutdown()
	if err := mgr.PruneStale(); err != nil {
		log.Warn("main [PruneStale]", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.CleanupLoop(ctx, cleanupInterval, maxAge)

	srv := server.New(registry, mgr, store, os.DirFS("web"),
		server.WithMessageRate(rate.Limit(msgRate), msgBurst))
	httpServer := &http.Server{Addr: addr, Handler: srv}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("main listening", "addr", addr, "db", dbPath)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main [ListenAndServe]", "err", err)
	}
	log.Info("main stopped")
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Fatal("main [config] "+key, "value", raw, "err", err)
	}
	return d
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		log.Fatal("main [config] "+key, "value", raw, "err", err)
	}
	return f
}
