package irctest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// SlackWeb is a scripted fake of the gateway's Slack Web API surface.
// Responses are configured up front; every call records itself in Calls in
// the order it was issued, which is how tests assert the bootstrap call
// sequence. A method listed in Errs fails with the configured error.
type SlackWeb struct {
	AuthResponse *slack.AuthTestResponse
	UserInfo     map[string]*slack.User
	Users        []slack.User // users.list without options (bootstrap)
	WhoUsers     []slack.User // users.list with page options (WHO fallback)
	Channels     []slack.Channel
	Usergroups   []slack.UserGroup
	Members      map[string][]string

	// Errs forces an error for a method, keyed by Slack method name
	// ("auth.test", "users.list", ...).
	Errs map[string]error

	mu    sync.Mutex
	calls []string
}

func (f *SlackWeb) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// Calls returns the Slack method calls issued so far, in order.
func (f *SlackWeb) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *SlackWeb) err(method string) error {
	if f.Errs == nil {
		return nil
	}
	return f.Errs[method]
}

func (f *SlackWeb) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	f.record("auth.test")
	if err := f.err("auth.test"); err != nil {
		return nil, err
	}
	if f.AuthResponse == nil {
		return nil, errors.New("invalid_auth")
	}
	return f.AuthResponse, nil
}

func (f *SlackWeb) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	f.record("users.info " + user)
	if err := f.err("users.info"); err != nil {
		return nil, err
	}
	u, ok := f.UserInfo[user]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return u, nil
}

func (f *SlackWeb) GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error) {
	// The option funcs mutate unexported pagination state, so the fake
	// distinguishes the bootstrap call from the WHO page by their presence.
	if len(options) == 0 {
		f.record("users.list")
		if err := f.err("users.list"); err != nil {
			return nil, err
		}
		return f.Users, nil
	}
	f.record("users.list presence=false limit=1000")
	if err := f.err("users.list"); err != nil {
		return nil, err
	}
	return f.WhoUsers, nil
}

func (f *SlackWeb) GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	types := ""
	for i, t := range params.Types {
		if i > 0 {
			types += ","
		}
		types += t
	}
	f.record("conversations.list types=" + types)
	if err := f.err("conversations.list"); err != nil {
		return nil, "", err
	}
	return f.Channels, "", nil
}

func (f *SlackWeb) SetUserPresenceContext(ctx context.Context, presence string) error {
	f.record("users.setPresence presence=" + presence)
	return f.err("users.setPresence")
}

func (f *SlackWeb) GetUserGroupsContext(ctx context.Context, options ...slack.GetUserGroupsOption) ([]slack.UserGroup, error) {
	f.record("usergroups.list")
	if err := f.err("usergroups.list"); err != nil {
		return nil, err
	}
	return f.Usergroups, nil
}

func (f *SlackWeb) GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error) {
	f.record("conversations.members " + params.ChannelID)
	if err := f.err("conversations.members"); err != nil {
		return nil, "", err
	}
	return f.Members[params.ChannelID], "", nil
}

func (f *SlackWeb) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.record("chat.postMessage " + channelID)
	if err := f.err("chat.postMessage"); err != nil {
		return "", "", err
	}
	return channelID, "0000000000.000000", nil
}

func (f *SlackWeb) JoinConversationContext(ctx context.Context, channelID string) (*slack.Channel, string, []string, error) {
	f.record("conversations.join " + channelID)
	if err := f.err("conversations.join"); err != nil {
		return nil, "", nil, err
	}
	for i := range f.Channels {
		if f.Channels[i].ID == channelID {
			return &f.Channels[i], "", nil, nil
		}
	}
	return nil, "", nil, fmt.Errorf("channel_not_found: %s", channelID)
}

func (f *SlackWeb) LeaveConversationContext(ctx context.Context, channelID string) (bool, error) {
	f.record("conversations.leave " + channelID)
	if err := f.err("conversations.leave"); err != nil {
		return false, err
	}
	return false, nil
}

// SlackRTM is a fake real-time client. The test controls the event stream:
// Ready emits the connected event, Emit delivers workspace events.
type SlackRTM struct {
	mu           sync.Mutex
	started      bool
	disconnected bool

	events chan slack.RTMEvent
}

func NewSlackRTM() *SlackRTM {
	return &SlackRTM{
		events: make(chan slack.RTMEvent, 16),
	}
}

func (r *SlackRTM) ManageConnection() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
}

func (r *SlackRTM) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disconnected {
		return nil
	}
	r.disconnected = true
	close(r.events)
	return nil
}

func (r *SlackRTM) Events() <-chan slack.RTMEvent {
	return r.events
}

// Started reports whether ManageConnection was ever called.
func (r *SlackRTM) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Disconnected reports whether Disconnect was ever called.
func (r *SlackRTM) Disconnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnected
}

// Ready emits the event that signals the real-time connection is live.
func (r *SlackRTM) Ready() {
	r.Emit(slack.RTMEvent{Type: "connected", Data: &slack.ConnectedEvent{}})
}

// Emit delivers one event on the fake stream.
func (r *SlackRTM) Emit(ev slack.RTMEvent) {
	r.events <- ev
}
