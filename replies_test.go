package irslackd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func renderLine(t *testing.T, m *Message) string {
	t.Helper()
	b, err := m.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "\r\n", string(b[len(b)-2:]))
	return string(b[:len(b)-2])
}

func TestReplyLines(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want string
	}{
		{
			name: "welcome has no trailing colon",
			msg:  Welcome("test_slack_user"),
			want: ":irslackd 001 test_slack_user irslackd",
		},
		{
			name: "end of motd",
			msg:  EndOfMOTD("test_slack_user"),
			want: ":irslackd 376 test_slack_user :End of MOTD",
		},
		{
			name: "join is prefixed with the joining nick",
			msg:  JoinMsg("test_slack_user", "#test_chan_1"),
			want: ":test_slack_user JOIN #test_chan_1",
		},
		{
			name: "part",
			msg:  PartMsg("test_slack_user", "#test_chan_1"),
			want: ":test_slack_user PART #test_chan_1",
		},
		{
			name: "topic",
			msg:  TopicReply("test_slack_user", "#test_chan_1", "topic1"),
			want: ":irslackd 332 test_slack_user #test_chan_1 :topic1",
		},
		{
			name: "names",
			msg:  NamesReply("test_slack_user", "#test_chan_1", "test_slack_user test_slack_user test_slack_fooo test_slack_barr"),
			want: ":irslackd 353 test_slack_user = #test_chan_1 :test_slack_user test_slack_user test_slack_fooo test_slack_barr",
		},
		{
			name: "who reply keeps the hostmask fields unquoted",
			msg:  WhoReply("test_slack_user", "U1234USER", "example.com", "fun_user", "nobody", "Nobody"),
			want: ":irslackd 352 test_slack_user * U1234USER irslackd example.com fun_user nobody@example.com 0 Nobody",
		},
		{
			name: "end of who",
			msg:  EndOfWho("test_slack_user"),
			want: ":irslackd 315 test_slack_user :End of WHO",
		},
		{
			name: "privmsg",
			msg:  PrivMsg("test_slack_fooo", "#test_chan_1", "hello there"),
			want: ":test_slack_fooo PRIVMSG #test_chan_1 :hello there",
		},
		{
			name: "nick change",
			msg:  NickChange("test_slack_fooo", "renamed_fooo"),
			want: ":test_slack_fooo NICK :renamed_fooo",
		},
		{
			name: "pong echoes the token",
			msg:  Pong("irc.example.net"),
			want: ":irslackd PONG irslackd :irc.example.net",
		},
		{
			name: "error",
			msg:  ErrorMsg("Closing link: Slack authentication failed"),
			want: "ERROR :Closing link: Slack authentication failed",
		},
		{
			name: "numeric error",
			msg:  NumericError(RplErrPasswdMismatch, "test_irc_nick", "No Slack token; connect with PASS <token>"),
			want: ":irslackd 464 test_irc_nick :No Slack token; connect with PASS <token>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, renderLine(t, tt.msg))
		})
	}
}
