package irslackd

import (
	"bytes"
	"errors"
	"strings"
)

// parameterLimit is the maximum number of parameters a message may contain as
// defined by the protocol. Clients are expected to never send more than this
// limit, but we accept any number.
const parameterLimit = 15

// NewMessage constructs a new Message with cmd as the verb and args as the
// message parameters.
//
// Only the last argument may contain SPACE (ascii 32, %x20).
// This is a limitation defined in the IRC protocol.
// Including SPACE in any other argument will result in undefined behavior.
func NewMessage(cmd Command, args ...string) *Message {
	p := make(Params, len(args), parameterLimit)
	copy(p, args)
	cmd.normalize()
	return &Message{
		Command: cmd,
		Params:  p,
	}
}

// Message represents any incoming or outgoing IRC line.
//
// IRC is a line-delimited, text-based protocol. A message consists of three
// parts: prefix, verb, and params. For lines the gateway emits, the prefix is
// either the gateway's server name (numerics) or the IRC nickname of a Slack
// user (JOIN, PRIVMSG, NICK, ...).
type Message struct {

	// Source is where the message originated from.
	// It is set by the prefix portion of an IRC line.
	Source Prefix

	// Command is the IRC verb or numeric such as PRIVMSG, JOIN, 001, etc.
	Command Command

	// Params contains all the message parameters.
	// If an incoming line included a trailing component,
	// it is included here without special treatment.
	Params Params

	// trailing controls whether MarshalText prefixes the final parameter
	// with ':'. Clients render some replies differently depending on the
	// marker, so the reply constructors set it per line rather than
	// marking every final parameter.
	trailing bool
}

// Trailing marks the final parameter to be encoded with a leading ':'.
// It returns m for chaining in the reply constructors.
func (m *Message) Trailing() *Message {
	m.trailing = true
	return m
}

// MarshalText implements encoding.TextMarshaler.
// The returned line always ends with CR-LF.
func (m *Message) MarshalText() ([]byte, error) {
	if m.Command == "" {
		return nil, errors.New("marshal: message command is empty")
	}

	buf := bytes.NewBuffer(make([]byte, 0, 512))

	if m.Source != (Prefix{}) {
		buf.WriteRune(startPrefix)
		buf.WriteString(m.Source.String())
		buf.WriteRune(delimParam)
	}

	buf.WriteString(m.Command.String())

	for i := 0; i < len(m.Params); i++ {
		buf.WriteRune(delimParam)
		if i == len(m.Params)-1 && m.trailing {
			buf.WriteRune(startTrailing)
		}
		buf.WriteString(m.Params[i])
	}
	buf.WriteString("\r\n")

	return buf.Bytes(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler,
// accepting a line read from an IRC stream.
// text should not include the trailing CR-LF pair.
//
// This will unmarshal an arbitrarily long sequence of bytes.
// Length limitations should be implemented at the scanner.
func (m *Message) UnmarshalText(text []byte) error {

	// go start the lexer
	l := lex(string(text))

	// re-using a message to unmarshal a new line should clear old fields
	m.Source = Prefix{}
	m.Command = ""
	m.Params = nil
	m.trailing = false

	for {
		i := l.nextItem()
		switch i.typ {
		case itemEOF:
			return nil
		case itemError:
			return errors.New(i.val)
		case itemNickname:
			m.Source.Nick = Nickname(i.val)
		case itemUser:
			m.Source.User = i.val
		case itemHost:
			m.Source.Host = i.val
		case itemCommand:
			m.Command = Command(i.val)
		case itemParam:
			m.Params = append(m.Params, i.val)
		case itemTrailing:
			m.Params = append(m.Params, i.val)
			m.trailing = true
		}
	}
}

// Command is an IRC command such as PRIVMSG, JOIN, 001, etc.
//
// A command may also be known as the "verb", "event type", or "numeric".
type Command string

// String implements fmt.Stringer
func (c Command) String() string {
	return string(c)
}

// normalize will modify the command to use consistent casing.
func (c *Command) normalize() {
	*c = Command(strings.ToUpper(c.String()))
}

// is does a case-insensitive compare between two commands, which is
// useful if a command was given as a string constant.
func (c Command) is(oc Command) bool {
	return strings.EqualFold(string(c), string(oc))
}

// Prefix is the optional message (line) prefix,
// which indicates the source (user or server) of the message,
// depending on the prefix format.
//
// Example line with no prefix:
//	PASS xoxp-1234
//
// Example nickname-only prefix:
//	:test_slack_user JOIN #test_chan_1
//
// Example server prefix:
//	:irslackd 001 test_slack_user irslackd
type Prefix struct {
	Nick Nickname
	User string
	Host string
}

// IsServer returns true when the message originated from a server
// (as opposed to a user/client).
// When true, the server name will be contained in the Host field.
func (p Prefix) IsServer() bool {
	return p.Host != "" && p.Nick == ""
}

// String implements fmt.Stringer
func (p Prefix) String() string {
	switch {
	case p.Nick == "" && p.User == "" && p.Host == "":
		return ""
	case p.Nick == "" && p.User == "":
		return p.Host
	case p.User == "":
		return p.Nick.String()
	default:
		return p.Nick.String() + "!" + p.User + "@" + p.Host
	}
}

// Params contains the slice of arguments for a message.
//
// Prefer the Get method for reading params rather than accessing the slice
// directly.
//
// For outgoing messages,
// only the last parameter may contain SPACE (ascii 32).
type Params []string

// Get returns the nth parameter (starting at 1) from the parameters list,
// or "" (empty string) if it did not exist.
//
// Because parameters have meaning based on their position in the argument
// list, Get does not differentiate between missing and empty parameters.
// Callers may simply check whether ordinal parameter n is equivalent to
// the empty string.
func (p Params) Get(n int) string {
	if n > len(p) || n < 1 {
		return ""
	}
	return p[n-1]
}

type Nickname string

func (n Nickname) String() string {
	return string(n)
}

// Is determines whether a nickname matches a string by using Unicode case folding.
func (n Nickname) Is(other string) bool {
	return strings.EqualFold(n.String(), other)
}
