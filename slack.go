package irslackd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"
)

// ErrAuthFailed indicates the Slack token supplied with PASS was rejected.
// It is fatal to the session.
var ErrAuthFailed = errors.New("slack authentication failed")

// conversationTypes is the set of Slack conversation types the gateway
// exposes as IRC channels. Direct messages are handled separately.
const conversationTypes = "public_channel,private_channel,mpim"

// whoPageLimit bounds the users.list page requested by the WHO fallback.
const whoPageLimit = 1000

// A BootstrapError records the failure of one bootstrap step. Bootstrap
// failures are reported but do not abort the remaining steps.
type BootstrapError struct {
	Step string
	Err  error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Step, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// SlackWebClient is the subset of the Slack Web API the gateway calls on
// behalf of one authenticated user. *slack.Client satisfies it.
type SlackWebClient interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	SetUserPresenceContext(ctx context.Context, presence string) error
	GetUserGroupsContext(ctx context.Context, options ...slack.GetUserGroupsOption) ([]slack.UserGroup, error)
	GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	JoinConversationContext(ctx context.Context, channelID string) (*slack.Channel, string, []string, error)
	LeaveConversationContext(ctx context.Context, channelID string) (bool, error)
}

// SlackRTMClient is the real-time event subscription for one user.
// The stream is lazy, unbounded, and not restartable: once connected it
// emits a *slack.ConnectedEvent followed by workspace events until
// Disconnect.
type SlackRTMClient interface {
	ManageConnection()
	Disconnect() error
	Events() <-chan slack.RTMEvent
}

// rtmConn adapts *slack.RTM to SlackRTMClient; the slack-go type exposes its
// event stream as a struct field rather than a method.
type rtmConn struct {
	*slack.RTM
}

func (r rtmConn) Events() <-chan slack.RTMEvent {
	return r.IncomingEvents
}

// NewRTMConn wraps a slack-go RTM connection in the SlackRTMClient interface.
func NewRTMConn(rtm *slack.RTM) SlackRTMClient {
	return rtmConn{rtm}
}

// Workspace holds the result of the bootstrap call sequence. Failed steps
// leave their zero value and append to Failures.
type Workspace struct {
	Users      []slack.User
	Channels   []slack.Channel
	Usergroups []slack.UserGroup

	// Members maps channel id to member user ids, fetched only for
	// channels the session is a member of.
	Members map[string][]string

	Failures []*BootstrapError
}

// SlackSession wraps one Web API client and one real-time client for a
// single authenticated user. It is owned exclusively by that user's Session.
type SlackSession struct {
	web    SlackWebClient
	rtm    SlackRTMClient
	logger *slog.Logger

	stopOnce sync.Once
}

// NewSlackSession constructs an adapter around the two Slack client roles.
// logger may be nil.
func NewSlackSession(web SlackWebClient, rtm SlackRTMClient, logger *slog.Logger) *SlackSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackSession{
		web:    web,
		rtm:    rtm,
		logger: logger,
	}
}

// Authenticate verifies the session's token via auth.test and returns the
// resolved Slack user id. A rejected token returns an error wrapping
// ErrAuthFailed; the caller must treat it as fatal to the IRC session.
func (s *SlackSession) Authenticate(ctx context.Context) (string, error) {
	resp, err := s.web.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return resp.UserID, nil
}

// FetchIdentity resolves a Slack user id to its display name,
// used to override the client-supplied nickname after authentication.
func (s *SlackSession) FetchIdentity(ctx context.Context, userID string) (string, error) {
	user, err := s.web.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("users.info %s: %w", userID, err)
	}
	return user.Name, nil
}

// Start begins the real-time event subscription. The stream delivered by
// Events emits a *slack.ConnectedEvent once live.
func (s *SlackSession) Start() {
	go s.rtm.ManageConnection()
}

// Events exposes the adapter's real-time event stream.
func (s *SlackSession) Events() <-chan slack.RTMEvent {
	return s.rtm.Events()
}

// Bootstrap issues the fixed call sequence that populates a session's view
// of the workspace: users.list, conversations.list, users.setPresence,
// usergroups.list, then conversations.members once per joined channel in
// channel-list order.
//
// The order matters: per-channel membership iterates the channel list, and
// clients expect the resulting IRC burst in list order. Presence-setting has
// no data dependency but is issued in this slot to preserve the call
// sequence. Each step's failure is logged and recorded without aborting the
// remaining steps, except that a failed conversations.list leaves nothing to
// fetch members for.
func (s *SlackSession) Bootstrap(ctx context.Context) *Workspace {
	ws := &Workspace{Members: make(map[string][]string)}

	users, err := s.web.GetUsersContext(ctx)
	if err != nil {
		ws.fail(s.logger, "users.list", err)
	} else {
		ws.Users = users
	}

	channels, _, err := s.web.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types: strings.Split(conversationTypes, ","),
	})
	if err != nil {
		ws.fail(s.logger, "conversations.list", err)
	} else {
		ws.Channels = channels
	}

	if err := s.web.SetUserPresenceContext(ctx, "auto"); err != nil {
		ws.fail(s.logger, "users.setPresence", err)
	}

	groups, err := s.web.GetUserGroupsContext(ctx,
		slack.GetUserGroupsOptionIncludeCount(false),
		slack.GetUserGroupsOptionIncludeDisabled(false),
		slack.GetUserGroupsOptionIncludeUsers(false),
	)
	if err != nil {
		ws.fail(s.logger, "usergroups.list", err)
	} else {
		ws.Usergroups = groups
	}

	for _, ch := range ws.Channels {
		if !ch.IsMember {
			continue
		}
		members, err := s.ChannelMembers(ctx, ch.ID)
		if err != nil {
			ws.fail(s.logger, "conversations.members "+ch.ID, err)
			continue
		}
		ws.Members[ch.ID] = members
	}

	return ws
}

func (ws *Workspace) fail(logger *slog.Logger, step string, err error) {
	be := &BootstrapError{Step: step, Err: err}
	ws.Failures = append(ws.Failures, be)
	logger.Warn("bootstrap step failed", "step", step, "error", err)
}

// ChannelMembers fetches the member user ids of one conversation.
func (s *SlackSession) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	members, _, err := s.web.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
		ChannelID: channelID,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.members %s: %w", channelID, err)
	}
	return members, nil
}

// ListUsers fetches one bounded page of the workspace user list with
// presence disabled. It backs the WHO handler's profile lookup.
func (s *SlackSession) ListUsers(ctx context.Context) ([]slack.User, error) {
	users, err := s.web.GetUsersContext(ctx,
		slack.GetUsersOptionPresence(false),
		slack.GetUsersOptionLimit(whoPageLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("users.list: %w", err)
	}
	return users, nil
}

// PostMessage posts text to a conversation as the authenticated user.
func (s *SlackSession) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := s.web.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("chat.postMessage %s: %w", channelID, err)
	}
	return nil
}

// JoinChannel joins a conversation and returns its updated state.
func (s *SlackSession) JoinChannel(ctx context.Context, channelID string) (*slack.Channel, error) {
	ch, _, _, err := s.web.JoinConversationContext(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("conversations.join %s: %w", channelID, err)
	}
	return ch, nil
}

// LeaveChannel leaves a conversation.
func (s *SlackSession) LeaveChannel(ctx context.Context, channelID string) error {
	if _, err := s.web.LeaveConversationContext(ctx, channelID); err != nil {
		return fmt.Errorf("conversations.leave %s: %w", channelID, err)
	}
	return nil
}

// Disconnect tears down the real-time subscription. It is safe to call
// multiple times and on an adapter that was never started.
func (s *SlackSession) Disconnect() {
	s.stopOnce.Do(func() {
		if err := s.rtm.Disconnect(); err != nil {
			s.logger.Debug("rtm disconnect", "error", err)
		}
	})
}
