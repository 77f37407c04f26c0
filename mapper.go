package irslackd

import "strings"

// Mapper maintains the bidirectional translation between Slack ids and
// IRC-legal names for one session. The mapping is a bijection for the
// session's lifetime: no two Slack ids resolve to the same IRC name, and
// resolving the same id twice returns the same name.
//
// A Mapper performs no I/O. It is not safe for concurrent use; sessions
// access it under their own lock.
type Mapper struct {
	userToNick map[string]string
	nickToUser map[string]string
	chanToName map[string]string
	nameToChan map[string]string
}

// NewMapper returns an empty Mapper.
func NewMapper() *Mapper {
	return &Mapper{
		userToNick: make(map[string]string),
		nickToUser: make(map[string]string),
		chanToName: make(map[string]string),
		nameToChan: make(map[string]string),
	}
}

// IrcNick resolves a Slack user id to an IRC nickname, registering the
// mapping on first use. displayName is sanitized into the IRC nickname
// character set. When two display names sanitize to the same nickname,
// later ids get "_" appended until the name is unique; the outcome is
// deterministic in the order ids are introduced.
func (mp *Mapper) IrcNick(slackID, displayName string) string {
	if nick, ok := mp.userToNick[slackID]; ok {
		return nick
	}
	nick := sanitizeNick(displayName)
	for {
		owner, taken := mp.nickToUser[nick]
		if !taken || owner == slackID {
			break
		}
		nick += "_"
	}
	mp.userToNick[slackID] = nick
	mp.nickToUser[nick] = slackID
	return nick
}

// SlackUser resolves an IRC nickname back to a Slack user id.
// It never registers anything; unknown nicknames report ok == false.
func (mp *Mapper) SlackUser(nick string) (slackID string, ok bool) {
	slackID, ok = mp.nickToUser[nick]
	return slackID, ok
}

// NickFor reports the nickname already registered for a Slack user id
// without registering a new one.
func (mp *Mapper) NickFor(slackID string) (nick string, ok bool) {
	nick, ok = mp.userToNick[slackID]
	return nick, ok
}

// MapUser registers an explicit nickname for a Slack user id, replacing any
// existing mapping for either side. It is used when the client refers to a
// user by a name the gateway did not pick itself.
func (mp *Mapper) MapUser(nick, slackID string) {
	if old, ok := mp.userToNick[slackID]; ok {
		delete(mp.nickToUser, old)
	}
	if old, ok := mp.nickToUser[nick]; ok {
		delete(mp.userToNick, old)
	}
	mp.userToNick[slackID] = nick
	mp.nickToUser[nick] = slackID
}

// RenameUser re-registers slackID under a new display name and returns the
// previous and new nicknames. When the id was never mapped, ok is false and
// nothing is registered.
func (mp *Mapper) RenameUser(slackID, displayName string) (oldNick, newNick string, ok bool) {
	oldNick, ok = mp.userToNick[slackID]
	if !ok {
		return "", "", false
	}
	delete(mp.userToNick, slackID)
	delete(mp.nickToUser, oldNick)
	newNick = mp.IrcNick(slackID, displayName)
	return oldNick, newNick, true
}

// IrcChannel resolves a Slack channel id to an IRC channel name (with the
// leading '#'), registering the mapping on first use. Collisions are handled
// the same way as nicknames.
func (mp *Mapper) IrcChannel(slackID, slackName string) string {
	if name, ok := mp.chanToName[slackID]; ok {
		return name
	}
	name := "#" + sanitizeChannel(slackName)
	for {
		owner, taken := mp.nameToChan[name]
		if !taken || owner == slackID {
			break
		}
		name += "_"
	}
	mp.chanToName[slackID] = name
	mp.nameToChan[name] = slackID
	return name
}

// SlackChannel resolves an IRC channel name back to a Slack channel id.
func (mp *Mapper) SlackChannel(name string) (slackID string, ok bool) {
	slackID, ok = mp.nameToChan[name]
	return slackID, ok
}

// sanitizeNick maps a Slack display name into the IRC nickname character
// set. Spaces become underscores; anything else outside the legal set is
// dropped. A nickname may not start with a digit or '-', so such results
// get a '_' prefix. An empty result falls back to "guest".
func sanitizeNick(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("-_[]\\^{}|`", r):
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "guest"
	}
	nick := b.String()
	if c := nick[0]; (c >= '0' && c <= '9') || c == '-' {
		nick = "_" + nick
	}
	return nick
}

// sanitizeChannel maps a Slack channel name into the IRC channel name
// character set. The protocol forbids SPACE, comma, and BEL; '#' is
// stripped so the caller-added prefix stays unambiguous.
func sanitizeChannel(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case ' ':
			b.WriteRune('_')
		case ',', '\a', '#', ':':
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
