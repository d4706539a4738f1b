// Package nudge listens for server-initiated sync requests over a websocket.
//
// The channel is advisory: the terminal works without it, and every nudge
// just funnels into the same guarded sync cycle as the other triggers.
package nudge

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Message types exchanged with the server.
const (
	MessageTypeRegister   = "register"
	MessageTypeRegistered = "registered"
	MessageTypeSync       = "sync"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

const (
	// DefaultBackoff is the wait between reconnect attempts.
	DefaultBackoff = 5 * time.Second

	// DefaultPerMinute is the default nudge budget.
	DefaultPerMinute = 6
)

// Message is one websocket frame.
type Message struct {
	Type    string `json:"type"`
	KioskID string `json:"kiosk_id,omitempty"`
}

// IdentitySource reports the active terminal id.
type IdentitySource interface {
	ActiveTerminalID(ctx context.Context) (string, error)
}

// Listener keeps a websocket open to the server and calls kick for each
// accepted sync nudge. Nudges beyond the rate budget are dropped.
type Listener struct {
	url     string
	token   string
	kick    func()
	limiter *rate.Limiter
	backoff time.Duration
	dialer  *websocket.Dialer
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithBackoff sets the reconnect delay.
func WithBackoff(d time.Duration) ListenerOption {
	return func(l *Listener) {
		l.backoff = d
	}
}

// NewListener creates a Listener for url allowing perMinute nudges.
func NewListener(url, token string, perMinute int, kick func(), opts ...ListenerOption) *Listener {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	l := &Listener{
		url:     url,
		token:   token,
		kick:    kick,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		backoff: DefaultBackoff,
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run connects, registers the active terminal and handles messages,
// reconnecting after every failure until ctx is cancelled. The terminal id
// is read from ids on every connect, so a switch takes effect on the next
// reconnect.
func (l *Listener) Run(ctx context.Context, ids IdentitySource) error {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}

	for {
		terminalID, err := ids.ActiveTerminalID(ctx)
		switch {
		case err != nil:
			slog.Warn("nudge: active terminal unreadable", "error", err, "retry_in", l.backoff)
		case terminalID == "":
			slog.Debug("nudge: no active terminal", "retry_in", l.backoff)
		default:
			l.connect(ctx, header, terminalID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) connect(ctx context.Context, header http.Header, terminalID string) {
	conn, _, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		slog.Debug("nudge connect failed", "error", err, "retry_in", l.backoff)
		return
	}
	defer conn.Close()

	slog.Info("nudge channel connected", "terminal_id", terminalID)
	l.handle(ctx, conn, terminalID)
	slog.Info("nudge channel disconnected", "retry_in", l.backoff)
}

func (l *Listener) handle(ctx context.Context, conn *websocket.Conn, terminalID string) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(Message{Type: MessageTypeRegister, KioskID: terminalID}); err != nil {
		slog.Warn("nudge register failed", "error", err)
		return
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				slog.Debug("nudge read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case MessageTypeRegistered:
			slog.Debug("nudge channel registered")
		case MessageTypePing:
			if err := conn.WriteJSON(Message{Type: MessageTypePong, KioskID: terminalID}); err != nil {
				return
			}
		case MessageTypeSync:
			if !l.limiter.Allow() {
				slog.Debug("nudge throttled")
				continue
			}
			l.kick()
		default:
			slog.Debug("nudge: unknown message type", "type", msg.Type)
		}
	}
}
