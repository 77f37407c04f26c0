package irslackd

// serverPrefix is the prefix used on every line that originates from the
// gateway itself rather than from a Slack user.
var serverPrefix = Prefix{Host: ServerName}

// numeric constructs a numeric reply sourced from the gateway.
// The trailing marker is left to the caller's constructor; IRC clients
// are picky about which replies carry one.
func numeric(code Command, args ...string) *Message {
	m := NewMessage(code, args...)
	m.Source = serverPrefix
	return m
}

// fromUser constructs a message sourced from a Slack user's IRC nickname,
// such as JOIN, PART, NICK, and relayed PRIVMSG lines.
func fromUser(nick string, cmd Command, args ...string) *Message {
	m := NewMessage(cmd, args...)
	m.Source = Prefix{Nick: Nickname(nick)}
	return m
}

// Welcome constructs the 001 numeric sent once registration and the Slack
// bootstrap have completed.
func Welcome(nick string) *Message {
	return numeric(RplWelcome, nick, ServerName)
}

// EndOfMOTD constructs the 376 numeric. The gateway has no MOTD; clients
// use this numeric as the signal that the connection burst is underway.
func EndOfMOTD(nick string) *Message {
	return numeric(RplEndOfMOTD, nick, "End of MOTD").Trailing()
}

// JoinMsg constructs the JOIN line announcing nick's membership in channel.
func JoinMsg(nick, channel string) *Message {
	return fromUser(nick, CmdJoin, channel)
}

// PartMsg constructs the PART line announcing nick's departure from channel.
func PartMsg(nick, channel string) *Message {
	return fromUser(nick, CmdPart, channel)
}

// TopicReply constructs the 332 numeric carrying a channel topic.
func TopicReply(nick, channel, topic string) *Message {
	return numeric(RplTopic, nick, channel, topic).Trailing()
}

// NamesReply constructs the 353 numeric whose trailing parameter is the
// space-joined list of member nicknames.
func NamesReply(nick, channel, names string) *Message {
	return numeric(RplNamReply, nick, "=", channel, names).Trailing()
}

// WhoReply constructs one 352 numeric for a matched user.
//
// The field layout mirrors what the gateway has to work with: the Slack user
// id where a channel would normally go, the host derived from the profile
// email domain, and fixed user/realname fields (Slack has no ident or gecos).
func WhoReply(nick, slackID, host, ircName, user, realname string) *Message {
	return numeric(RplWhoReply, nick, "*", slackID, ServerName, host, ircName, user+"@"+host, "0 "+realname)
}

// EndOfWho constructs the 315 numeric terminating a WHO response.
func EndOfWho(nick string) *Message {
	return numeric(RplEndOfWho, nick, "End of WHO").Trailing()
}

// PrivMsg constructs a relayed PRIVMSG from a Slack user to target,
// where target is an IRC channel name or the session's own nickname.
func PrivMsg(from, target, text string) *Message {
	return fromUser(from, CmdPrivmsg, target, text).Trailing()
}

// NickChange constructs the NICK line announcing a Slack display name change.
func NickChange(oldNick, newNick string) *Message {
	return fromUser(oldNick, CmdNick, newNick).Trailing()
}

// Pong builds the reply to a PING from the client.
// The reply message must be the same as the original PING message.
func Pong(reply string) *Message {
	m := NewMessage(CmdPong, ServerName, reply)
	m.Source = serverPrefix
	return m.Trailing()
}

// ErrorMsg constructs the ERROR line sent before the gateway closes a
// connection. reason should be human-readable.
func ErrorMsg(reason string) *Message {
	return NewMessage(CmdError, reason).Trailing()
}

// NumericError constructs an error numeric such as 464 with a trailing
// explanation.
func NumericError(code Command, nick, text string) *Message {
	if nick == "" {
		nick = "*"
	}
	return numeric(code, nick, text).Trailing()
}
