package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// notifyPollInterval bounds how long WaitForNotification blocks before the
// receive loop checks for pending LISTEN/UNLISTEN commands and shutdown.
const notifyPollInterval = 2 * time.Second

// listenCmd represents a LISTEN/UNLISTEN request executed by the receive
// loop — the sole goroutine allowed to touch the pgx connection, avoiding
// the "conn busy" race between WaitForNotification and Exec.
type listenCmd struct {
	sql    string
	result chan error
}

// Handler processes one NOTIFY payload delivered on a channel.
type Handler func(channel string, payload []byte)

// Listener receives PostgreSQL NOTIFY events on a dedicated connection and
// dispatches them to registered handlers, mirroring tarsy's NotifyListener.
type Listener struct {
	connString string
	conn       *pgx.Conn

	cmdCh chan listenCmd

	handlersMu sync.RWMutex
	handlers   map[string][]Handler

	cancel   context.CancelFunc
	loopDone chan struct{}
}

// NewListener builds a Listener over the given connection string.
func NewListener(connString string) *Listener {
	return &Listener{
		connString: connString,
		cmdCh:      make(chan listenCmd, 16),
		handlers:   make(map[string][]Handler),
	}
}

// Start opens the dedicated LISTEN connection and begins the receive loop.
func (l *Listener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connect for LISTEN: %w", err)
	}
	l.conn = conn

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.loopDone = make(chan struct{})
	go l.receiveLoop(loopCtx)
	return nil
}

// Stop cancels the receive loop and closes the dedicated connection.
func (l *Listener) Stop(ctx context.Context) {
	if l.cancel != nil {
		l.cancel()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}
	if l.conn != nil {
		_ = l.conn.Close(ctx)
	}
}

// Subscribe registers a handler for a channel and issues LISTEN if this is
// the first subscriber to that channel.
func (l *Listener) Subscribe(ctx context.Context, channel string, h Handler) error {
	l.handlersMu.Lock()
	first := len(l.handlers[channel]) == 0
	l.handlers[channel] = append(l.handlers[channel], h)
	l.handlersMu.Unlock()

	if !first {
		return nil
	}
	return l.exec(ctx, fmt.Sprintf("LISTEN %s", quoteIdent(channel)))
}

func (l *Listener) exec(ctx context.Context, sql string) error {
	result := make(chan error, 1)
	select {
	case l.cmdCh <- listenCmd{sql: sql, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Listener) receiveLoop(ctx context.Context) {
	defer close(l.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-l.cmdCh:
			_, err := l.conn.Exec(ctx, cmd.sql)
			cmd.result <- err
		default:
		}

		notifyCtx, cancel := context.WithTimeout(ctx, notifyPollInterval)
		n, err := l.conn.WaitForNotification(notifyCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue // timeout or transient error — loop back and check cmdCh again
		}
		l.dispatch(n.Channel, []byte(n.Payload))
	}
}

func (l *Listener) dispatch(channel string, payload []byte) {
	l.handlersMu.RLock()
	handlers := append([]Handler(nil), l.handlers[channel]...)
	l.handlersMu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("telemetry handler panicked", "channel", channel, "recover", r)
				}
			}()
			h(channel, payload)
		}()
	}
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}
