package irslackd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// A Daemon bridges IRC connections to Slack sessions. It owns the collection
// of active sessions, keyed by connection, and is the only component that
// inserts into or removes from it.
//
// The zero value is a usable daemon with default Slack client construction.
type Daemon struct {

	// Logger is used for daemon and per-session logging.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// NewSlackWeb constructs the Web API client for a session's token.
	// When nil, a real slack.Client is constructed. Substitutable for
	// testing.
	NewSlackWeb func(token string) SlackWebClient

	// NewSlackRTM constructs the real-time client for a session's Web API
	// client. When nil, the web client's own RTM connection is used; that
	// requires NewSlackWeb to also be nil (or to return *slack.Client),
	// otherwise registration fails the session.
	NewSlackRTM func(web SlackWebClient) SlackRTMClient

	mu       sync.Mutex
	sessions map[io.ReadWriteCloser]*Session
}

// Run accepts connections from ln until ctx is canceled or the listener
// fails, attaching a session to each. Closing ctx closes the listener and
// tears down every active session.
func (d *Daemon) Run(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	d.logger().Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			d.closeAll()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.Attach(ctx, conn)
	}
}

// Attach creates and starts the session for a connection.
// A connection has at most one session: attaching the same connection twice
// returns the existing session.
func (d *Daemon) Attach(ctx context.Context, conn io.ReadWriteCloser) *Session {
	d.mu.Lock()
	if d.sessions == nil {
		d.sessions = make(map[io.ReadWriteCloser]*Session)
	}
	if s, ok := d.sessions[conn]; ok {
		d.mu.Unlock()
		return s
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       uuid.New(),
		conn:     conn,
		daemon:   d,
		ctx:      sctx,
		cancel:   cancel,
		state:    stateRegistering,
		alive:    true,
		mapper:   NewMapper(),
		users:    make(map[string]slack.User),
		channels: make(map[string]*Channel),
	}
	s.logger = d.logger().With("session", s.id.String())
	d.sessions[conn] = s
	d.mu.Unlock()

	s.logger.Info("connection attached")
	go s.run()
	return s
}

// SessionFor returns the session attached to conn, if any.
func (d *Daemon) SessionFor(conn io.ReadWriteCloser) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[conn]
	return s, ok
}

// SessionCount reports the number of active sessions.
func (d *Daemon) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// removeSession is called by a closing session; sessions only ever remove
// themselves.
func (d *Daemon) removeSession(conn io.ReadWriteCloser) {
	d.mu.Lock()
	delete(d.sessions, conn)
	d.mu.Unlock()
}

func (d *Daemon) closeAll() {
	d.mu.Lock()
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// webClient builds the Web API client for a token, honoring the test hook.
func (d *Daemon) webClient(token string) SlackWebClient {
	if d.NewSlackWeb != nil {
		return d.NewSlackWeb(token)
	}
	return slack.New(token)
}

// rtmClient builds the real-time client for a web client, honoring the test
// hook. Defaulting needs a *slack.Client to derive the connection from; a
// custom web client without a matching NewSlackRTM is an error.
func (d *Daemon) rtmClient(web SlackWebClient) (SlackRTMClient, error) {
	if d.NewSlackRTM != nil {
		return d.NewSlackRTM(web), nil
	}
	c, ok := web.(*slack.Client)
	if !ok {
		return nil, errors.New("no real-time client: set NewSlackRTM alongside NewSlackWeb")
	}
	return NewRTMConn(c.NewRTM()), nil
}

func (d *Daemon) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
