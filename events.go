package irslackd

import (
	"github.com/slack-go/slack"
)

// handleEvent translates one real-time workspace event into IRC lines.
// Events the gateway has no IRC rendering for are logged and dropped.
func (s *Session) handleEvent(ev slack.RTMEvent) {
	switch data := ev.Data.(type) {
	case *slack.MessageEvent:
		s.onSlackMessage(data)
	case *slack.UserChangeEvent:
		s.onSlackUserChange(data)
	case *slack.ChannelJoinedEvent:
		s.onSlackChannelJoined(data)
	case *slack.ChannelLeftEvent:
		s.onSlackChannelLeft(data)
	case *slack.PresenceChangeEvent:
		// Presence has no line-level IRC rendering here; WHO flags would
		// need per-user away tracking the gateway does not keep.
		s.logger.Debug("presence change", "user", data.User, "presence", data.Presence)
	default:
		s.logger.Debug("unhandled slack event", "type", ev.Type)
	}
}

// onSlackMessage relays a posted message as a PRIVMSG line. Messages the
// session itself posted come back on the stream and are suppressed.
func (s *Session) onSlackMessage(ev *slack.MessageEvent) {
	if ev.Text == "" {
		return
	}

	s.mu.Lock()
	self := ev.User == s.slackUserID
	nick := s.nick
	var target string
	if c, ok := s.channels[ev.Channel]; ok {
		target = c.Name
	} else {
		// Not one of our channels: treat it as a direct message.
		target = nick
	}
	s.mu.Unlock()

	if self {
		return
	}
	s.write(PrivMsg(s.nickOf(ev.User), target, ev.Text))
}

// onSlackUserChange re-registers a renamed user and announces the NICK
// change when the IRC rendering actually changed.
func (s *Session) onSlackUserChange(ev *slack.UserChangeEvent) {
	s.mu.Lock()
	s.users[ev.User.ID] = ev.User
	oldNick, newNick, ok := s.mapper.RenameUser(ev.User.ID, ev.User.Name)
	s.mu.Unlock()

	if !ok || oldNick == newNick {
		return
	}
	s.write(NickChange(oldNick, newNick))
}

// onSlackChannelJoined records the new membership and emits the join burst
// for it.
func (s *Session) onSlackChannelJoined(ev *slack.ChannelJoinedEvent) {
	ch := ev.Channel

	s.mu.Lock()
	nick := s.nick
	name := s.mapper.IrcChannel(ch.ID, ch.Name)
	c := &Channel{ID: ch.ID, Name: name, Topic: ch.Topic.Value, Members: ch.Members}
	s.channels[ch.ID] = c
	s.mu.Unlock()

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

// onSlackChannelLeft drops the membership and echoes a PART line.
func (s *Session) onSlackChannelLeft(ev *slack.ChannelLeftEvent) {
	s.mu.Lock()
	nick := s.nick
	c, ok := s.channels[ev.Channel]
	if ok {
		delete(s.channels, ev.Channel)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.write(PartMsg(nick, c.Name))
}
