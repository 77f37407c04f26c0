package irslackd

import (
	"fmt"
	"strings"
	"testing"
)

func newTestMessage(prefix struct{ nick, user, host string }, command Command, params []string) *Message {
	p := make(Params, 0, len(params))
	for _, pa := range params {
		p = append(p, pa)
	}
	return &Message{
		Source: Prefix{
			Nickname(prefix.nick),
			prefix.user,
			prefix.host},
		Command: command,
		Params:  p,
	}
}

func assertMessageEquals(t *testing.T, expected *Message, got *Message) {
	t.Helper()
	assertPrefixEqual(t, expected.Source, got.Source)
	if !got.Command.is(expected.Command) {
		t.Errorf("command didn't match; got %q wanted %q", got.Command, expected.Command)
	}
	assertParamsEqual(t, expected.Params, got.Params)
}

func assertPrefixEqual(t *testing.T, expected Prefix, got Prefix) {
	t.Helper()
	if expected.Nick != got.Nick || expected.User != got.User || expected.Host != got.Host {
		t.Errorf("prefix didn't match; got %q wanted %q", got, expected)
	}
}

func assertParamsEqual(t *testing.T, expected Params, got Params) {
	t.Helper()
	if len(got) != len(expected) {
		t.Errorf("actual slice(%#v)(%d) was not the same length as expected slice(%#v)(%d)", got, len(got), expected, len(expected))
		return
	}
	for i, v := range got {
		if v != expected[i] {
			t.Errorf("actual slice value %q was not equal to expected value %q at index %d", v, expected[i], i)
		}
	}
}

func fromBytes(b []byte) (*Message, error) {
	m := &Message{}
	err := m.UnmarshalText(b)
	return m, err
}

func TestParseMessage(t *testing.T) {
	var prefixes = []struct {
		raw      string
		expected struct {
			nick string
			user string
			host string
		}
	}{
		{"", struct{ nick, user, host string }{"", "", ""}},
		{":Bob ", struct{ nick, user, host string }{"Bob", "", ""}},
		{":Bob  ", struct{ nick, user, host string }{"Bob", "", ""}},
		{":Bob!BLoblaw@bob.loblaw.law.blog ", struct{ nick, user, host string }{"Bob", "BLoblaw", "bob.loblaw.law.blog"}},
		// a dotless server name is indistinguishable from a nickname
		{":irslackd ", struct{ nick, user, host string }{"irslackd", "", ""}},
		{":irc.bob.loblaw.no.habla.es ", struct{ nick, user, host string }{"", "", "irc.bob.loblaw.no.habla.es"}},
	}

	var commands = []struct {
		raw      string
		expected Command
	}{
		{"001", RplWelcome},
		{"PRIVMSG", CmdPrivmsg},
		{"Privmsg", CmdPrivmsg},
		{"privmsg", CmdPrivmsg},
		{"PASS", CmdPass},
	}

	var params = []struct {
		raw      string
		expected []string
	}{
		{"", []string{}},
		{" ", []string{""}},
		{" :", []string{""}},
		{" ::", []string{":"}},
		{" :p1", []string{"p1"}},
		{" p1", []string{"p1"}},
		{" p1 p2", []string{"p1", "p2"}},
		{"  p1 p2", []string{"p1", "p2"}},
		{" p1  p2", []string{"p1", "p2"}},
		{" p1  p2 :", []string{"p1", "p2", ""}},
		{" p1  p2 : ", []string{"p1", "p2", " "}},
		{" p1  p2 :p3 :p3 ", []string{"p1", "p2", "p3 :p3 "}},
		{" :" + strings.Repeat("a", 513), []string{strings.Repeat("a", 513)}}, // don't blow up for lines exceeding protocol-defined length
	}

	for _, p := range prefixes {
		for _, c := range commands {
			for _, pa := range params {
				raw := fmt.Sprintf("%s%s%s", p.raw, c.raw, pa.raw)
				m, err := fromBytes([]byte(raw))
				if err != nil {
					t.Errorf("expected no error; got %v: %q", err, raw)
				}
				assertMessageEquals(t, newTestMessage(p.expected, c.expected, pa.expected), m)
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	var parseErrors = []string{
		":tmi.twitch.tv",
		":Bob! TOPIC #LawBlog :no space allowed after the bang",
		":",
		":.",
		":. ",
		":! ",
		":!@ ",
		": ",
		" ",
	}
	for _, raw := range parseErrors {
		m, err := fromBytes([]byte(raw))
		if err == nil {
			t.Errorf("expected parse error; got err == nil. raw line: %q, parsed: %#v", raw, m)
		}
	}
}

func TestParseTrailingRoundTrip(t *testing.T) {
	raw := "PRIVMSG #test_chan_1 :hello there"
	m, err := fromBytes([]byte(raw))
	if err != nil {
		t.Fatalf("expected no error; got %v", err)
	}
	if !m.trailing {
		t.Error("expected trailing marker to survive parsing")
	}
	b, err := m.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := strings.TrimRight(string(b), "\r\n"); got != raw {
		t.Errorf("round trip mismatch; got %q wanted %q", got, raw)
	}
}
