package irslackd_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"

	"github.com/irslackd/irslackd"
	"github.com/irslackd/irslackd/irctest"
)

const recvTimeout = 2 * time.Second

func fixtureChannel(id, name, topic string, member bool) slack.Channel {
	return slack.Channel{
		GroupConversation: slack.GroupConversation{
			Conversation: slack.Conversation{ID: id},
			Name:         name,
			Topic:        slack.Topic{Value: topic},
		},
		IsMember: member,
	}
}

func fixtureWeb() *irctest.SlackWeb {
	return &irctest.SlackWeb{
		AuthResponse: &slack.AuthTestResponse{UserID: "U1234USER"},
		UserInfo: map[string]*slack.User{
			"U1234USER": {ID: "U1234USER", Name: "test_slack_user"},
		},
		Users: []slack.User{
			{ID: "U1234USER", Name: "test_slack_user"},
			{ID: "U1235FOOO", Name: "test_slack_fooo"},
			{ID: "U1235BARR", Name: "test_slack_barr"},
			{ID: "U1235BAZZ", Name: "test_slack_bazz"},
			{ID: "U1235QUUX", Name: "test_slack_quux"},
		},
		Channels: []slack.Channel{
			fixtureChannel("C1234CHAN1", "test_chan_1", "topic1", true),
			fixtureChannel("C1235CHAN2", "test_chan_2", "topic2", false),
		},
		Usergroups: []slack.UserGroup{
			{ID: "S1234GRP1", Name: "test_group_1"},
			{ID: "S1235GRP2", Name: "test_group_2"},
		},
		Members: map[string][]string{
			"C1234CHAN1": {"U1234USER", "U1235FOOO", "U1235BARR"},
		},
		WhoUsers: []slack.User{
			// only the email domain may reach the 352 reply; the
			// local-part and real name must not leak into it
			{ID: "U1234USER", Name: "test_slack_user", Profile: slack.UserProfile{Email: "foo@example.com", RealName: "Foo Bar"}},
		},
	}
}

func startSession(t *testing.T, web *irctest.SlackWeb, rtm *irctest.SlackRTM) (*irslackd.Daemon, *irslackd.Session, *irctest.Conn) {
	t.Helper()
	d := &irslackd.Daemon{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewSlackWeb: func(token string) irslackd.SlackWebClient { return web },
		NewSlackRTM: func(irslackd.SlackWebClient) irslackd.SlackRTMClient { return rtm },
	}
	conn := irctest.NewConn()
	t.Cleanup(func() { _ = conn.Close() })
	sess := d.Attach(context.Background(), conn)
	return d, sess, conn
}

func sendRegistration(conn *irctest.Conn) {
	conn.Send("PASS test_token")
	conn.Send("NICK test_irc_nick")
	conn.Send("USER test_irc_user 0 * :Test User")
}

func waitReady(t *testing.T, sess *irslackd.Session, rtm *irctest.SlackRTM) {
	t.Helper()
	require.Eventually(t, rtm.Started, recvTimeout, 5*time.Millisecond, "real-time client never started")
	rtm.Ready()
	require.Eventually(t, func() bool { return sess.State() == "ready" }, recvTimeout, 5*time.Millisecond)
}

func recvLines(t *testing.T, conn *irctest.Conn, n int) []string {
	t.Helper()
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, ok := conn.Recv(recvTimeout)
		require.True(t, ok, "timed out waiting for line %d; lines so far: %v", i, lines)
		lines = append(lines, line)
	}
	return lines
}

var burstLines = []string{
	":irslackd 001 test_slack_user irslackd",
	":irslackd 376 test_slack_user :End of MOTD",
	":test_slack_user JOIN #test_chan_1",
	":irslackd 332 test_slack_user #test_chan_1 :topic1",
	":irslackd 353 test_slack_user = #test_chan_1 :test_slack_user test_slack_user test_slack_fooo test_slack_barr",
}

func TestConnectBurst(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)

	require.Equal(t, burstLines, recvLines(t, conn, len(burstLines)))

	// the channel we are not a member of produces no lines
	extra, ok := conn.TryRecv()
	require.False(t, ok, "unexpected extra line: %q", extra)

	// the Slack display name replaces the client-supplied nickname
	require.Equal(t, "test_slack_user", sess.Nick())
	require.Equal(t, "U1234USER", sess.SlackUserID())
}

func TestBurstSkipsEmptyTopic(t *testing.T) {
	web := fixtureWeb()
	web.Channels = append(web.Channels, fixtureChannel("C1236CHAN3", "test_chan_3", "", true))
	web.Members["C1236CHAN3"] = []string{"U1235BAZZ"}
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)

	// no 332 between the JOIN and the names list for a topicless channel
	want := append(append([]string(nil), burstLines...),
		":test_slack_user JOIN #test_chan_3",
		":irslackd 353 test_slack_user = #test_chan_3 :test_slack_user test_slack_bazz",
	)
	require.Equal(t, want, recvLines(t, conn, len(want)))

	extra, ok := conn.TryRecv()
	require.False(t, ok, "unexpected extra line: %q", extra)
}

func TestMissingRTMHookFailsTheSession(t *testing.T) {
	web := fixtureWeb()
	d := &irslackd.Daemon{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewSlackWeb: func(string) irslackd.SlackWebClient { return web },
	}
	conn := irctest.NewConn()
	t.Cleanup(func() { _ = conn.Close() })
	d.Attach(context.Background(), conn)

	sendRegistration(conn)

	line, ok := conn.Recv(recvTimeout)
	require.True(t, ok)
	require.Equal(t, "ERROR :Closing link: Slack client setup failed", line)
	require.Eventually(t, func() bool { return d.SessionCount() == 0 }, recvTimeout, 5*time.Millisecond)
	require.Empty(t, web.Calls())
}

func TestBootstrapCallOrder(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	require.Equal(t, []string{
		"auth.test",
		"users.info U1234USER",
		"users.list",
		"conversations.list types=public_channel,private_channel,mpim",
		"users.setPresence presence=auto",
		"usergroups.list",
		"conversations.members C1234CHAN1",
	}, web.Calls())
}

func TestWho(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	sess.MapUser("fun_user", "U1234USER")
	conn.Send("WHO fun_user")

	require.Equal(t, []string{
		":irslackd 352 test_slack_user * U1234USER irslackd example.com fun_user nobody@example.com 0 Nobody",
		":irslackd 315 test_slack_user :End of WHO",
	}, recvLines(t, conn, 2))
	require.Contains(t, web.Calls(), "users.list presence=false limit=1000")
}

func TestWhoUnknownTarget(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	conn.Send("WHO no_such_user")

	require.Equal(t, []string{":irslackd 315 test_slack_user :End of WHO"}, recvLines(t, conn, 1))
}

func TestAuthFailureClosesSession(t *testing.T) {
	web := fixtureWeb()
	web.Errs = map[string]error{"auth.test": errors.New("invalid_auth")}
	rtm := irctest.NewSlackRTM()
	d, _, conn := startSession(t, web, rtm)

	sendRegistration(conn)

	line, ok := conn.Recv(recvTimeout)
	require.True(t, ok)
	require.Equal(t, "ERROR :Closing link: Slack authentication failed", line)

	require.Eventually(t, func() bool { return d.SessionCount() == 0 }, recvTimeout, 5*time.Millisecond)
	require.False(t, rtm.Started(), "real-time client must not start for a rejected token")
}

func TestMissingTokenIsRejected(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	d, _, conn := startSession(t, web, rtm)

	conn.Send("NICK test_irc_nick")
	conn.Send("USER test_irc_user 0 * :Test User")

	require.Equal(t, []string{
		":irslackd 464 test_irc_nick :No Slack token; connect with PASS <token>",
		"ERROR :Closing link: no Slack token provided",
	}, recvLines(t, conn, 2))
	require.Eventually(t, func() bool { return d.SessionCount() == 0 }, recvTimeout, 5*time.Millisecond)
	require.Empty(t, web.Calls())
}

func TestEventsBeforeReadyAreReplayedAfterBurst(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	require.Eventually(t, rtm.Started, recvTimeout, 5*time.Millisecond)

	// delivered ahead of the connected event, so it arrives mid-handshake
	rtm.Emit(slack.RTMEvent{Type: "message", Data: &slack.MessageEvent{
		Msg: slack.Msg{Channel: "C1234CHAN1", User: "U1235FOOO", Text: "hello there"},
	}})
	rtm.Ready()
	require.Eventually(t, func() bool { return sess.State() == "ready" }, recvTimeout, 5*time.Millisecond)

	want := append(append([]string(nil), burstLines...),
		":test_slack_fooo PRIVMSG #test_chan_1 :hello there")
	require.Equal(t, want, recvLines(t, conn, len(want)))
}

func TestInboundMessages(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	// own messages come back on the stream and must not echo
	rtm.Emit(slack.RTMEvent{Type: "message", Data: &slack.MessageEvent{
		Msg: slack.Msg{Channel: "C1234CHAN1", User: "U1234USER", Text: "my own words"},
	}})
	// a message in an unjoined conversation is rendered as a direct message
	rtm.Emit(slack.RTMEvent{Type: "message", Data: &slack.MessageEvent{
		Msg: slack.Msg{Channel: "D1234DMCH", User: "U1235BARR", Text: "psst"},
	}})

	require.Equal(t, []string{
		":test_slack_barr PRIVMSG test_slack_user :psst",
	}, recvLines(t, conn, 1))
}

func TestOutboundPrivmsg(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	conn.Send("PRIVMSG #test_chan_1 :hello channel")
	require.Eventually(t, func() bool {
		for _, c := range web.Calls() {
			if c == "chat.postMessage C1234CHAN1" {
				return true
			}
		}
		return false
	}, recvTimeout, 5*time.Millisecond)

	conn.Send("PRIVMSG test_slack_fooo :hello you")
	require.Eventually(t, func() bool {
		for _, c := range web.Calls() {
			if c == "chat.postMessage U1235FOOO" {
				return true
			}
		}
		return false
	}, recvTimeout, 5*time.Millisecond)

	// nothing posted comes back as an IRC line
	extra, ok := conn.TryRecv()
	require.False(t, ok, "unexpected line: %q", extra)
}

func TestJoinAndPart(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	conn.Send("JOIN #test_chan_2")
	require.Equal(t, []string{
		":test_slack_user JOIN #test_chan_2",
		":irslackd 332 test_slack_user #test_chan_2 :topic2",
		":irslackd 353 test_slack_user = #test_chan_2 :test_slack_user",
	}, recvLines(t, conn, 3))
	require.Contains(t, web.Calls(), "conversations.join C1235CHAN2")

	conn.Send("PART #test_chan_2")
	require.Equal(t, []string{":test_slack_user PART #test_chan_2"}, recvLines(t, conn, 1))
	require.Contains(t, web.Calls(), "conversations.leave C1235CHAN2")

	conn.Send("JOIN #no_such_chan")
	require.Equal(t, []string{":irslackd 403 test_slack_user #no_such_chan :No such channel"}, recvLines(t, conn, 1))
}

func TestUserRenameEvent(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	rtm.Emit(slack.RTMEvent{Type: "user_change", Data: &slack.UserChangeEvent{
		User: slack.User{ID: "U1235FOOO", Name: "renamed fooo"},
	}})

	require.Equal(t, []string{":test_slack_fooo NICK :renamed_fooo"}, recvLines(t, conn, 1))
}

func TestChannelLeftEvent(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	rtm.Emit(slack.RTMEvent{Type: "channel_left", Data: &slack.ChannelLeftEvent{
		Channel: "C1234CHAN1",
	}})

	require.Equal(t, []string{":test_slack_user PART #test_chan_1"}, recvLines(t, conn, 1))
}

func TestPing(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	_, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	conn.Send("PING irc.example.net")
	require.Equal(t, []string{":irslackd PONG irslackd :irc.example.net"}, recvLines(t, conn, 1))
}

func TestQuitTearsDown(t *testing.T) {
	web := fixtureWeb()
	rtm := irctest.NewSlackRTM()
	d, sess, conn := startSession(t, web, rtm)

	sendRegistration(conn)
	waitReady(t, sess, rtm)
	recvLines(t, conn, len(burstLines))

	conn.Send("QUIT :leaving")
	require.Eventually(t, func() bool { return d.SessionCount() == 0 }, recvTimeout, 5*time.Millisecond)
	require.True(t, rtm.Disconnected())
	require.Equal(t, "disconnected", sess.State())
}
