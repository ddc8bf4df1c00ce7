package client

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/johnwards/leadtrack/internal/ws"
)

// ConnState is the push channel's connection lifecycle.
type ConnState int

const (
	// Disconnected means no connection and no attempt in progress.
	Disconnected ConnState = iota
	// Connecting means a dial or backoff wait is in progress.
	Connecting
	// Connected means events are flowing.
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Listener maintains the push channel to the server, redialing with capped
// exponential backoff whenever the connection drops. Events are delivered to
// the handler in connection order; delivery resumes transparently after a
// reconnect.
type Listener struct {
	client  *Client
	onEvent func(ws.Event)

	// backoff grows baseDelay, 2*baseDelay, 4*baseDelay... capped at maxDelay.
	baseDelay time.Duration
	maxDelay  time.Duration

	onStateChange func(ConnState)

	mu    sync.Mutex
	state ConnState
}

// NewListener creates a listener that feeds events into onEvent. The handler
// runs on the listener's goroutine; hand off anything slow.
func NewListener(c *Client, onEvent func(ws.Event)) *Listener {
	return &Listener{
		client:    c,
		onEvent:   onEvent,
		baseDelay: time.Second,
		maxDelay:  30 * time.Second,
	}
}

// OnStateChange registers a callback for connection state transitions. Must
// be called before Run.
func (l *Listener) OnStateChange(fn func(ConnState)) {
	l.onStateChange = fn
}

// State returns the current connection state.
func (l *Listener) State() ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s ConnState) {
	l.mu.Lock()
	changed := l.state != s
	l.state = s
	l.mu.Unlock()
	if changed && l.onStateChange != nil {
		l.onStateChange(s)
	}
}

// Run connects and keeps listening until ctx is cancelled. Returns ctx.Err()
// on cancellation; dial and read failures are retried, never returned.
func (l *Listener) Run(ctx context.Context) error {
	defer l.setState(Disconnected)

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.setState(Connecting)
		conn, _, err := websocket.Dial(ctx, l.wsURL(), nil)
		if err != nil {
			delay := l.backoff(attempt)
			attempt++
			slog.Debug("push channel dial failed", "error", err, "retry_in", delay.String())
			l.setState(Disconnected)
			if waitErr := sleepContext(ctx, delay); waitErr != nil {
				return waitErr
			}
			continue
		}

		attempt = 0
		l.setState(Connected)
		l.readLoop(ctx, conn)
		_ = conn.CloseNow()
		l.setState(Disconnected)

		if err := ctx.Err(); err != nil {
			return err
		}
		delay := l.backoff(attempt)
		attempt++
		if waitErr := sleepContext(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

// readLoop delivers events until the connection fails or ctx is cancelled.
func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var evt ws.Event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			if ctx.Err() == nil {
				slog.Debug("push channel read failed", "error", err)
			}
			return
		}
		if l.onEvent != nil {
			l.onEvent(evt)
		}
	}
}

func (l *Listener) backoff(attempt int) time.Duration {
	delay := l.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= l.maxDelay {
			return l.maxDelay
		}
	}
	return delay
}

func (l *Listener) wsURL() string {
	base := l.client.BaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v1/ws?session_id=" + url.QueryEscape(l.client.SessionID())
}
