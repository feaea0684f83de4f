package core

type EventKind int

const (
	// EventConnected fires once the transport has signed on and joined its
	// channels; the engine issues the startup companion WHOIS on it.
	EventConnected EventKind = iota
	EventMessage
	EventEmote
	EventJoin
	EventPart
	EventQuit
	EventKick
	EventRename
	EventNames
	EventNamesEnd
	EventWhoisChannels
	EventWhoisEnd
	// EventTitleResolved re-enters the dispatch loop when a background title
	// fetch completes.
	EventTitleResolved
)

// Event is one transport (or internal) occurrence fed to the dispatch engine.
// Only the fields relevant to the Kind are populated.
type Event struct {
	Kind    EventKind
	Sender  string
	Channel string
	Text    string
	Target  string   // kick victim, rename new nick
	Nicks   []string // membership chunk / whois channel list

	// Title fetch completion.
	Namespace string
	Item      string
	URL       string
	Title     string
	Found     bool
	Refs      int64
	ReplyTo   string
}

type ActionKind int

const (
	ActionReply ActionKind = iota
	ActionEmote
	ActionQueryNames
	ActionQueryWhois
	ActionFetchTitle
)

// Action is one outbound effect produced by a rule handler. Handlers return
// actions instead of talking to the transport so they stay pure and testable.
type Action struct {
	Kind   ActionKind
	Target string // reply/emote recipient, NAMES channel, WHOIS nick
	Text   string

	// Title fetch request.
	Namespace string
	Item      string
	URL       string
	Refs      int64
}
