package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyagmur/dicewars/server"
	"github.com/kyagmur/dicewars/store"
)

func main() {
	port := flag.String("port", "8080", "Server port")
	dbPath := flag.String("db", "dicewars.db", "SQLite database path")
	cookieName := flag.String("session-cookie", "session_user", "Session cookie carrying the username")
	waveDelay := flag.Duration("wave-delay", 250*time.Millisecond, "Pause before applying an explosion wave")
	settleDelay := flag.Duration("settle-delay", 100*time.Millisecond, "Pause after broadcasting a settled wave")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.New()
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if err := st.EnsureGameKind(&store.GameKind{
		Slug:       "dicewars",
		Name:       "DiceWars",
		MinPlayers: 2,
		MaxPlayers: 7,
	}); err != nil {
		log.Fatalf("seed game kind: %v", err)
	}

	// Admin one-shot: sweep stale waiting rooms and exit.
	if flag.Arg(0) == "cleanup_stale_games" {
		swept, err := st.DeleteStaleWaiting(time.Now().UTC().Add(-server.StaleRoomAge))
		if err != nil {
			log.Errorf("cleanup failed: %v", err)
			os.Exit(1)
		}
		log.Infof("swept %d stale room(s)", swept)
		return
	}

	timing := server.DefaultTiming()
	timing.WaveDelay = *waveDelay
	timing.SettleDelay = *settleDelay

	gameServer := server.NewServer(server.Config{
		Store:  st,
		Auth:   &server.CookieAuth{CookieName: *cookieName, Players: st},
		Logger: log,
		Timing: timing,
	})
	go gameServer.RunJanitor(server.JanitorInterval, server.StaleRoomAge)

	// WebSocket endpoint
	http.HandleFunc("/ws/game/", gameServer.HandleGameSocket)

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         ":" + *port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Infof("DiceWars server running at http://localhost:%s", *port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Infof("shutting down server (signal: %v)...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Signal game server to stop background goroutines
	gameServer.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown error: %v", err)
	}

	log.Info("server stopped")
}
