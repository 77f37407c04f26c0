/*
Package irslackd implements an IRC-to-Slack gateway daemon.

An ordinary IRC client connects to the daemon and authenticates with a Slack
token supplied as the connection password. From then on the gateway
translates in both directions: IRC commands become Slack Web API calls, and
Slack real-time events become IRC protocol lines.

Connecting

The client sends the conventional registration triplet:

	PASS <slack-token>
	NICK anything
	USER anything 0 * :anything

The gateway verifies the token with auth.test, resolves the Slack display
name (which overrides the client-supplied nickname), starts the real-time
event subscription, and bootstraps the session: user list, channel list,
presence, usergroups, and per-channel membership. The client then receives
the connection burst:

	:irslackd 001 <nick> irslackd
	:irslackd 376 <nick> :End of MOTD
	:<nick> JOIN #<channel>
	:irslackd 332 <nick> #<channel> :<topic>
	:irslackd 353 <nick> = #<channel> :<member names>

followed by one JOIN/topic/names group per channel the Slack user is a
member of.

Sessions

Every connection is one Session, owned by the Daemon. Sessions are fully
independent: each has its own Slack clients and its own identifier mapping
between Slack ids and IRC names, and nothing is shared between them. Slack
ids map to IRC-legal names through a per-session Mapper; when two display
names sanitize to the same nickname, underscores are appended until the
name is unique.

Testing

The Daemon's NewSlackWeb and NewSlackRTM hooks substitute fake Slack
clients, and any io.ReadWriteCloser can stand in for a client connection.
The irctest package provides both.
*/
package irslackd
