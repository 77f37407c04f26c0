package irslackd

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// sessionState tracks one connection's progress from raw socket to a fully
// bridged Slack session.
type sessionState int

const (
	stateRegistering sessionState = iota
	stateAuthenticating
	stateBootstrapping
	stateReady
	stateDisconnected
)

func (s sessionState) String() string {
	switch s {
	case stateRegistering:
		return "registering"
	case stateAuthenticating:
		return "authenticating"
	case stateBootstrapping:
		return "bootstrapping"
	case stateReady:
		return "ready"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Channel is one channel membership in a session's view of the workspace.
type Channel struct {
	ID      string
	Name    string // IRC name, including the '#'
	Topic   string
	Members []string // Slack user ids
}

// A Session is the runtime state for one IRC connection bridged to one
// Slack user. It owns its connection and its Slack adapter exclusively;
// nothing is shared between sessions.
type Session struct {
	id     uuid.UUID
	conn   io.ReadWriteCloser
	daemon *Daemon
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       sessionState
	alive       bool
	nick        string // provisional until authentication resolves the Slack display name
	token       string
	slackUserID string
	slack       *SlackSession
	mapper      *Mapper
	users       map[string]slack.User
	channels    map[string]*Channel

	// pending buffers real-time events that arrive before bootstrap
	// completes. Applying them against an incomplete mapping risks
	// mistranslation, so they are replayed after the ready burst.
	pending []slack.RTMEvent

	closeOnce sync.Once
}

// ircHandlers dispatches commands received while a session is ready.
// Commands with no entry are ignored without error.
var ircHandlers = map[Command]func(*Session, *Message){
	CmdPing:    (*Session).handlePing,
	CmdQuit:    (*Session).handleQuit,
	CmdWho:     (*Session).handleWho,
	CmdJoin:    (*Session).handleJoin,
	CmdPart:    (*Session).handlePart,
	CmdPrivmsg: (*Session).handlePrivmsg,
}

// run reads lines from the connection until it closes, parsing each into a
// Message and dispatching on the session's current state. It is the only
// goroutine that reads the connection.
func (s *Session) run() {
	defer s.Close()

	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		m := new(Message)
		if err := m.UnmarshalText(line); err != nil {
			// A malformed line is a client bug, not a reason to kill
			// the session. Ignored, no reply.
			s.logger.Debug("ignoring malformed line", "error", err)
			continue
		}
		s.handle(m)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("connection read ended", "error", err)
	}
}

func (s *Session) handle(m *Message) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	switch st {
	case stateRegistering:
		s.handleRegistration(m)
	case stateReady:
		if h, ok := ircHandlers[Command(strings.ToUpper(m.Command.String()))]; ok {
			h(s, m)
			return
		}
		s.logger.Debug("ignoring command", "command", m.Command.String())
	case stateDisconnected:
	default:
		// Mid-handshake only liveness commands are honored.
		switch {
		case m.Command.is(CmdPing):
			s.handlePing(m)
		case m.Command.is(CmdQuit):
			s.handleQuit(m)
		}
	}
}

// handleRegistration collects the conventional registration triplet:
// PASS carries the Slack token, NICK a provisional nickname, and USER
// completes registration and starts Slack authentication.
func (s *Session) handleRegistration(m *Message) {
	switch {
	case m.Command.is(CmdPass):
		s.mu.Lock()
		s.token = m.Params.Get(1)
		s.mu.Unlock()
	case m.Command.is(CmdNick):
		s.mu.Lock()
		s.nick = m.Params.Get(1)
		s.mu.Unlock()
	case m.Command.is(CmdUser):
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token == "" {
			s.write(NumericError(RplErrPasswdMismatch, s.Nick(), "No Slack token; connect with PASS <token>"))
			s.fatal("no Slack token provided")
			return
		}
		s.register(token)
	case m.Command.is(CmdPing):
		s.handlePing(m)
	case m.Command.is(CmdQuit):
		s.handleQuit(m)
	case m.Command.is(CmdCap):
		// Capability negotiation is not offered; clients fall back cleanly.
	default:
		s.logger.Debug("ignoring pre-registration command", "command", m.Command.String())
	}
}

// register authenticates the supplied token against Slack and, on success,
// starts the real-time subscription. Runs synchronously on the read
// goroutine; any failure here is fatal to the session and the real-time
// client is never started.
func (s *Session) register(token string) {
	s.setState(stateAuthenticating)

	web := s.daemon.webClient(token)
	rtm, err := s.daemon.rtmClient(web)
	if err != nil {
		s.logger.Error("slack client setup failed", "error", err)
		s.fatal("Slack client setup failed")
		return
	}
	adapter := NewSlackSession(web, rtm, s.logger)

	s.mu.Lock()
	s.slack = adapter
	s.mu.Unlock()

	userID, err := adapter.Authenticate(s.ctx)
	if err != nil {
		s.logger.Warn("authentication failed", "error", err)
		s.fatal("Slack authentication failed")
		return
	}

	name, err := adapter.FetchIdentity(s.ctx, userID)
	if err != nil {
		s.logger.Warn("identity lookup failed", "error", err)
		s.fatal("could not resolve Slack identity")
		return
	}

	s.mu.Lock()
	s.slackUserID = userID
	// The Slack display name overrides whatever nickname the client asked for.
	s.nick = s.mapper.IrcNick(userID, name)
	s.mu.Unlock()

	s.logger.Info("authenticated", "slack_user", userID, "nick", s.Nick())

	adapter.Start()
	go s.rtmLoop(adapter)
}

// rtmLoop consumes the adapter's event stream for the life of the session.
// It is the only goroutine that mutates workspace state after registration,
// which keeps the effects of in-flight Slack calls applied in the order
// their results become observable.
func (s *Session) rtmLoop(adapter *SlackSession) {
	for ev := range adapter.Events() {
		switch data := ev.Data.(type) {
		case *slack.ConnectedEvent:
			s.onSlackReady()
		case *slack.InvalidAuthEvent:
			s.fatal("Slack real-time authentication failed")
			return
		case *slack.RTMError:
			s.logger.Warn("rtm error", "error", data.Error())
		case *slack.DisconnectedEvent:
			if data.Intentional {
				return
			}
			s.logger.Warn("rtm disconnected", "cause", data.Cause)
		default:
			s.dispatchEvent(ev)
		}
	}
}

// dispatchEvent routes one workspace event, buffering it if bootstrap has
// not completed yet.
func (s *Session) dispatchEvent(ev slack.RTMEvent) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	if s.state != stateReady {
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.handleEvent(ev)
}

// onSlackReady runs the bootstrap call sequence and emits the fixed
// connection burst: welcome numeric, end-of-MOTD, then per joined channel
// (in list order) a JOIN line, a topic numeric when a topic exists, and the
// names list.
func (s *Session) onSlackReady() {
	s.mu.Lock()
	if !s.alive || s.state != stateAuthenticating {
		s.mu.Unlock()
		return
	}
	s.state = stateBootstrapping
	adapter := s.slack
	s.mu.Unlock()

	ws := adapter.Bootstrap(s.ctx)

	s.mu.Lock()
	for _, u := range ws.Users {
		if u.Deleted {
			continue
		}
		s.users[u.ID] = u
		s.mapper.IrcNick(u.ID, u.Name)
	}
	var joined []*Channel
	for _, ch := range ws.Channels {
		name := s.mapper.IrcChannel(ch.ID, ch.Name)
		if !ch.IsMember {
			continue
		}
		c := &Channel{
			ID:      ch.ID,
			Name:    name,
			Topic:   ch.Topic.Value,
			Members: ws.Members[ch.ID],
		}
		s.channels[ch.ID] = c
		joined = append(joined, c)
	}
	nick := s.nick
	s.mu.Unlock()

	s.write(Welcome(nick))
	s.write(EndOfMOTD(nick))
	for _, c := range joined {
		s.write(JoinMsg(nick, c.Name))
		if c.Topic != "" {
			s.write(TopicReply(nick, c.Name, c.Topic))
		}
		names := nick
		for _, id := range c.Members {
			names += " " + s.nickOf(id)
		}
		s.write(NamesReply(nick, c.Name, names))
	}

	s.mu.Lock()
	s.state = stateReady
	buffered := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.logger.Info("session ready", "channels", len(joined), "users", len(ws.Users))

	for _, ev := range buffered {
		s.handleEvent(ev)
	}
}

func (s *Session) handlePing(m *Message) {
	s.write(Pong(m.Params.Get(1)))
}

func (s *Session) handleQuit(m *Message) {
	s.logger.Info("client quit", "reason", m.Params.Get(1))
	s.Close()
}

// handleWho answers WHO <target>. The target resolves through the mapper
// when the client used a gateway-assigned name; either way the profile data
// comes from a bounded users.list page with presence disabled. One 352 is
// emitted per matched user, then exactly one 315. An unresolvable target
// yields only the 315.
func (s *Session) handleWho(m *Message) {
	target := m.Params.Get(1)

	s.mu.Lock()
	nick := s.nick
	id, mapped := s.mapper.SlackUser(target)
	adapter := s.slack
	s.mu.Unlock()

	users, err := adapter.ListUsers(s.ctx)
	if err != nil {
		s.logger.Warn("who lookup failed", "target", target, "error", err)
		s.write(EndOfWho(nick))
		return
	}

	for _, u := range users {
		if mapped {
			if u.ID != id {
				continue
			}
		} else if !strings.EqualFold(u.Name, target) {
			continue
		}
		host := emailDomain(u.Profile.Email)
		s.write(WhoReply(nick, u.ID, host, s.nickOf(u.ID), whoUser, whoRealName))
	}
	s.write(EndOfWho(nick))
}

// handleJoin joins the Slack conversation behind an IRC channel name and,
// on success, emits the same JOIN/topic/names burst the connection burst
// uses.
func (s *Session) handleJoin(m *Message) {
	name := m.Params.Get(1)

	s.mu.Lock()
	nick := s.nick
	id, ok := s.mapper.SlackChannel(name)
	adapter := s.slack
	s.mu.Unlock()

	if !ok {
		s.write(numeric(RplErrNoSuchChannel, nick, name, "No such channel").Trailing())
		return
	}

	ch, err := adapter.JoinChannel(s.ctx, id)
	if err != nil {
		s.logger.Warn("join failed", "channel", name, "error", err)
		return
	}
	members, err := adapter.ChannelMembers(s.ctx, id)
	if err != nil {
		s.logger.Warn("member list failed", "channel", name, "error", err)
	}

	c := &Channel{ID: id, Name: name, Topic: ch.Topic.Value, Members: members}
	s.mu.Lock()
	s.channels[id] = c
	s.mu.Unlock()

	s.write(JoinMsg(nick, c.Name))
	if c.Topic != "" {
		s.write(TopicReply(nick, c.Name, c.Topic))
	}
	names := nick
	for _, mid := range c.Members {
		names += " " + s.nickOf(mid)
	}
	s.write(NamesReply(nick, c.Name, names))
}

// handlePart leaves the Slack conversation and echoes the PART line.
func (s *Session) handlePart(m *Message) {
	name := m.Params.Get(1)

	s.mu.Lock()
	nick := s.nick
	id, ok := s.mapper.SlackChannel(name)
	adapter := s.slack
	s.mu.Unlock()

	if !ok {
		s.write(numeric(RplErrNoSuchChannel, nick, name, "No such channel").Trailing())
		return
	}
	if err := adapter.LeaveChannel(s.ctx, id); err != nil {
		s.logger.Warn("part failed", "channel", name, "error", err)
		return
	}

	s.mu.Lock()
	delete(s.channels, id)
	s.mu.Unlock()

	s.write(PartMsg(nick, name))
}

// handlePrivmsg posts the text to the Slack conversation behind the target.
// An unknown target is a silent no-op.
func (s *Session) handlePrivmsg(m *Message) {
	target := m.Params.Get(1)
	text := m.Params.Get(2)
	if text == "" {
		return
	}

	s.mu.Lock()
	var id string
	var ok bool
	if strings.HasPrefix(target, "#") {
		id, ok = s.mapper.SlackChannel(target)
	} else {
		id, ok = s.mapper.SlackUser(target)
	}
	adapter := s.slack
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("privmsg to unknown target", "target", target)
		return
	}
	if err := adapter.PostMessage(s.ctx, id, text); err != nil {
		s.logger.Warn("post failed", "target", target, "error", err)
	}
}

// write marshals and writes one line to the connection. Writes after
// teardown are dropped; a write error tears the session down.
func (s *Session) write(m *Message) {
	b, err := m.MarshalText()
	if err != nil {
		s.logger.Error("marshal failed", "error", err)
		return
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	_, err = s.conn.Write(b)
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("connection write failed", "error", err)
		s.Close()
	}
}

// fatal sends a final ERROR line and tears the session down.
func (s *Session) fatal(reason string) {
	s.write(ErrorMsg("Closing link: " + reason))
	s.Close()
}

// Close tears the session down: the connection is closed, the Slack adapter
// disconnected, and the session removed from the daemon's collection.
// Safe to call from any goroutine and more than once; late completions of
// in-flight calls observe the liveness flag and become no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.alive = false
		s.state = stateDisconnected
		adapter := s.slack
		s.mu.Unlock()

		s.cancel()
		if adapter != nil {
			adapter.Disconnect()
		}
		_ = s.conn.Close()
		s.daemon.removeSession(s.conn)
		s.logger.Info("session closed")
	})
}

func (s *Session) setState(st sessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State reports the session's current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

// Nick returns the session's current IRC nickname: the client-supplied
// provisional one before authentication, the Slack display name after.
func (s *Session) Nick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick
}

// SlackUserID returns the Slack user id resolved during authentication.
func (s *Session) SlackUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slackUserID
}

// MapUser registers an explicit IRC-nickname-to-Slack-id binding,
// e.g. when a client module refers to users by custom names.
func (s *Session) MapUser(nick, slackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapper.MapUser(nick, slackID)
}

// nickOf resolves a Slack user id to its IRC nickname, registering one from
// the cached user list when needed. Unknown ids fall back to the raw id.
func (s *Session) nickOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nick, ok := s.mapper.NickFor(id); ok {
		return nick
	}
	if u, ok := s.users[id]; ok {
		return s.mapper.IrcNick(id, u.Name)
	}
	return id
}

// emailDomain extracts the domain of a profile email, falling back to the
// gateway name when the profile has none.
func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return ServerName
}
