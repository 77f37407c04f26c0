package irslackd

// ServerName is the server prefix used on every numeric the gateway emits,
// and the fixed server field of WHO replies.
const ServerName = "irslackd"

// whoUser and whoRealName are the fixed user and realname fields of WHO
// replies. Slack profiles do not carry an ident or a gecos field that maps
// cleanly onto IRC, so the gateway substitutes constants.
const (
	whoUser     = "nobody"
	whoRealName = "Nobody"
)

// irc commands which may be received from or sent to a connected client.
const (
	CmdCap     = "CAP"     // IRCv3 Capability negotiation.
	CmdError   = "ERROR"   // Report a serious or fatal error to a peer.
	CmdJoin    = "JOIN"    // Join a channel.
	CmdList    = "LIST"    // List channels and their topics.
	CmdMode    = "MODE"    // User mode.
	CmdMOTD    = "MOTD"    // Get the Message of the Day.
	CmdNames   = "NAMES"   // List all visible nicknames.
	CmdNick    = "NICK"    // ":<newnick>" Define a nickname.
	CmdNotice  = "NOTICE"  // Send a notice message to specific users or channels.
	CmdPart    = "PART"    // Leave a channel.
	CmdPass    = "PASS"    // Set a connection password.
	CmdPing    = "PING"    // Test for the presence of an active client or server.
	CmdPong    = "PONG"    // Reply to a PING message.
	CmdPrivmsg = "PRIVMSG" // Send private messages between users, as well as to send messages to channels.
	CmdQuit    = "QUIT"    // Terminate the client session.
	CmdTopic   = "TOPIC"   // Change or view the topic of a channel.
	CmdUser    = "USER"    // Specify the username, hostname and realname of a new user.
	CmdWho     = "WHO"     // List a set of users.
	CmdWhoIs   = "WHOIS"   // Get information about a specific user.
)

// irc connection reply codes.
const (
	RplWelcome = "001" // "Welcome to the Internet Relay Network <nick>!<user>@<host>"
)

// irc command reply codes.
const (
	RplEndOfWho  = "315" // "<name> :End of WHO list"
	RplNoTopic   = "331" // "<channel> :No topic is set"
	RplTopic     = "332" // "<channel> :<topic>"
	RplWhoReply  = "352" // "<channel> <user> <host> <server> <nick> ( "H" / "G" > ["*"] [ ("@" / "+" ) ] :<hopcount> <real name>"
	RplNamReply  = "353" // "( "=" / "*" / "@" ) <channel> :[ "@" / "+" ] <nick> *( " " ["@" / "+" ] <nick> )"
	RplEndOfMOTD = "376" // ":End of MOTD command"
)

// irc error reply codes.
const (
	RplErrNoSuchNick        = "401" // "<nickname> :No such nick/channel"
	RplErrNoSuchChannel     = "403" // "<channel name> :No such channel"
	RplErrUnknownCommand    = "421" // "<command> :Unknown command"
	RplErrNotRegistered     = "451" // ":You have not registered"
	RplErrNeedMoreParams    = "461" // "<command> :Not enough parameters"
	RplErrAlreadyRegistered = "462" // ":Unauthorized command (already registered)"
	RplErrPasswdMismatch    = "464" // ":Password incorrect"
)
