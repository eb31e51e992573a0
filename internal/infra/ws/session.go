package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"assetwatch/internal/domain"
	"assetwatch/internal/infra"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State describes the connection lifecycle of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// WriteFunc writes one frame to the live connection.
type WriteFunc func(messageType int, data []byte) error

// Config parameterizes a Session with the provider-specific parts of a
// websocket feed. Everything else (dialing, reconnects, backoff, the
// staleness watchdog, subscription replay) is shared.
type Config struct {
	Name string
	URL  string

	// Subscribe sends the provider-specific subscription messages for the
	// given symbols. Called after every successful dial with the sticky
	// symbol set.
	Subscribe func(write WriteFunc, symbols []string) error

	// OnMessage handles one raw frame. Handlers must swallow parse errors;
	// a bad frame never tears the session down.
	OnMessage func(msg []byte)

	HandshakeTimeout time.Duration
	WatchdogInterval time.Duration
	StaleAfter       time.Duration

	// PingInterval enables an application-level keepalive frame for
	// providers that require one. Zero disables it.
	PingInterval time.Duration
	PingMessage  []byte
}

// Session owns one long-lived websocket connection. It reconnects forever
// with exponential backoff, replays the last-requested symbol set on every
// reconnect, and forces a reconnect when an open socket goes silent past
// the staleness threshold.
type Session struct {
	cfg Config

	mu           sync.Mutex
	writeMu      sync.Mutex
	conn         *websocket.Conn
	sessionID    string // uuid of the live connection; stale callbacks carry an old id
	symbols      []string
	failures     int
	reconnecting bool // latch against duplicate reconnect timers
	cancel       context.CancelFunc

	state   atomic.Int32
	lastMsg atomic.Int64 // unix millis of the last received frame

	wg sync.WaitGroup
}

// NewSession creates a session. It does not connect.
func NewSession(cfg Config) *Session {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = 15 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 60 * time.Second
	}
	return &Session{cfg: cfg}
}

// Connect dials the feed and subscribes to symbols. Idempotent while a
// connection attempt or live session exists. The first dial runs
// synchronously so callers can fall back to polling when the provider is
// unreachable; after that the session heals itself indefinitely.
func (s *Session) Connect(ctx context.Context, symbols []string) error {
	switch s.State() {
	case StateConnecting, StateConnected, StateReconnecting:
		return nil
	default:
	}

	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.symbols = append([]string(nil), symbols...)
	s.failures = 0
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.open(ctx); err != nil {
		cancel()
		s.setState(StateDisconnected)
		return domain.NewNetworkError("connect "+s.cfg.Name, err)
	}

	s.wg.Add(1)
	go s.watchdog(ctx)
	return nil
}

// open dials, subscribes and starts the per-connection loops.
func (s *Session) open(ctx context.Context) error {
	s.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.conn = conn
	s.sessionID = id
	s.failures = 0
	symbols := append([]string(nil), s.symbols...)
	s.mu.Unlock()

	s.lastMsg.Store(time.Now().UnixMilli())
	s.setState(StateConnected)

	if s.cfg.Subscribe != nil {
		if err := s.cfg.Subscribe(s.Write, symbols); err != nil {
			s.mu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.sessionID = ""
			s.mu.Unlock()
			s.setState(StateDisconnected)
			return err
		}
	}

	s.wg.Add(1)
	go s.readLoop(ctx, conn, id)
	if s.cfg.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop(ctx, id)
	}

	slog.Info("websocket connected",
		slog.String("session", s.cfg.Name),
		slog.Int("symbols", len(symbols)),
	)
	return nil
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, id string) {
	defer s.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.StaleAfter))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(ctx, id, err)
			return
		}
		// Frames from a superseded connection are dropped before they can
		// touch the staleness clock of the live session.
		if s.currentID() != id {
			return
		}
		s.lastMsg.Store(time.Now().UnixMilli())

		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(msg)
		}
	}
}

func (s *Session) handleDisconnect(ctx context.Context, id string, cause error) {
	s.mu.Lock()
	if s.sessionID != id {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.sessionID = ""
	s.mu.Unlock()

	if ctx.Err() != nil {
		s.setState(StateDisconnected)
		return
	}

	slog.Warn("websocket closed",
		slog.String("session", s.cfg.Name),
		slog.Any("error", cause),
	)
	s.scheduleReconnect(ctx)
}

// scheduleReconnect arms exactly one reconnection timer. Retries never
// give up; this is a long-running monitor, not a best-effort fetch.
func (s *Session) scheduleReconnect(ctx context.Context) {
	s.mu.Lock()
	if s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	delay := infra.CalculateBackoff(s.failures)
	s.failures++
	s.mu.Unlock()

	s.setState(StateReconnecting)
	slog.Info("scheduling reconnect",
		slog.String("session", s.cfg.Name),
		slog.Duration("delay", delay),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
			s.setState(StateDisconnected)
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()

		if err := s.open(ctx); err != nil {
			slog.Warn("reconnect failed",
				slog.String("session", s.cfg.Name),
				slog.Any("error", err),
			)
			s.scheduleReconnect(ctx)
		}
	}()
}

// watchdog forces a reconnect when the socket looks open but has been
// silent past the staleness threshold. Some providers never emit a close
// event on stalled networks.
func (s *Session) watchdog(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.State() != StateConnected {
				continue
			}
			silent := time.Since(time.UnixMilli(s.lastMsg.Load()))
			if silent > s.cfg.StaleAfter {
				slog.Warn("stale websocket, forcing reconnect",
					slog.String("session", s.cfg.Name),
					slog.Duration("silent", silent),
				)
				s.closeCurrent() // the read loop observes the error and reconnects
			}
		}
	}
}

func (s *Session) pingLoop(ctx context.Context, id string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.currentID() != id {
				return
			}
			if err := s.Write(websocket.TextMessage, s.cfg.PingMessage); err != nil {
				return
			}
		}
	}
}

// Write sends one frame on the live connection.
func (s *Session) Write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return domain.ErrConnectionFailed
	}
	return conn.WriteMessage(messageType, data)
}

// closeCurrent closes the live connection, if any. The read loop turns the
// resulting error into a reconnect.
func (s *Session) closeCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Disconnect cancels all timers, closes any open socket and waits for the
// loops to exit. Safe to call in any state, any number of times.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.sessionID = ""
	s.failures = 0
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.setState(StateDisconnected)
}

func (s *Session) currentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Connected reports whether a live session is open.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// LastMessageAt returns the arrival time of the most recent frame.
func (s *Session) LastMessageAt() time.Time {
	return time.UnixMilli(s.lastMsg.Load())
}
