package server

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyagmur/dicewars/store"
)

// Timing holds the animation pacing of the move orchestrator. The
// sleeps exist solely so clients can animate; headless tests zero them.
type Timing struct {
	// ClickDelay follows the initial-click frame.
	ClickDelay time.Duration
	// WaveDelay sits between a pending explosion frame and the apply.
	WaveDelay time.Duration
	// SettleDelay follows each post-explosion frame.
	SettleDelay time.Duration
}

// DefaultTiming matches the pacing the web client animates against.
func DefaultTiming() Timing {
	return Timing{
		ClickDelay:  100 * time.Millisecond,
		WaveDelay:   250 * time.Millisecond,
		SettleDelay: 100 * time.Millisecond,
	}
}

// Config wires a Server.
type Config struct {
	Store  *store.Store
	Auth   Authenticator
	Logger *logrus.Logger
	Timing Timing
}

// Server owns the hub and the command handlers for every live room.
type Server struct {
	store  *store.Store
	hub    *Hub
	auth   Authenticator
	log    *logrus.Logger
	timing Timing

	// randIntn picks the starting player; replaced in tests.
	randIntn func(n int) int

	quitOnce sync.Once
	quit     chan struct{}
}

// NewServer creates a game server around the given store.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		store:    cfg.Store,
		hub:      NewHub(log),
		auth:     cfg.Auth,
		log:      log,
		timing:   cfg.Timing,
		randIntn: rand.Intn,
		quit:     make(chan struct{}),
	}
}

// Hub exposes the fan-out layer (the voice relay shares it upstream).
func (s *Server) Hub() *Hub {
	return s.hub
}

// Shutdown stops background goroutines and kills every session.
func (s *Server) Shutdown() {
	s.quitOnce.Do(func() { close(s.quit) })
	s.hub.CloseAll()
}

func (s *Server) sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
