package core

import "time"

const (
	BotName   = "understudy"
	Version   = BotName + " 0.1.0"
	UserAgent = BotName + " IRC bot"
)

// Reference counter namespaces.
const (
	NamespaceFactoid     = "factoid"
	NamespaceThingiverse = "thingiverse"
	NamespaceYoutube     = "youtube"
)

// SessionConfig is the immutable per-session configuration handed to the
// presence tracker and the dispatch engine at construction.
type SessionConfig struct {
	Nick           string
	CompanionNick  string // empty means standalone mode
	Channels       []string
	PositiveMarker string
	NegativeMarker string
}

// Standalone reports whether no companion agent is being shadowed.
func (c SessionConfig) Standalone() bool {
	return c.CompanionNick == ""
}

// Monitors reports whether the given channel is one of the configured channels.
func (c SessionConfig) Monitors(channel string) bool {
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// SeenRecord is the last known activity of a nick. One row per nick.
type SeenRecord struct {
	Nick      string
	Channel   string
	Timestamp time.Time
	Message   string
}

// Factoid is one active value of a (possibly multi-valued) stored fact.
type Factoid struct {
	ID     int64
	Item   string
	Are    bool
	Value  string
	Author string
	SetAt  time.Time
	Locked bool
}

// HistoryEntry is one row of the append-only factoid audit log, left-joined
// with the current reference counter for the item.
type HistoryEntry struct {
	Item           string
	Value          string
	Deleted        bool // true for forget events (stored value is NULL)
	Author         string
	At             time.Time
	RefCount       int64
	HasRefCount    bool
	LastReferenced time.Time
}

// Tell is a deferred message delivered the next time the recipient speaks.
type Tell struct {
	Author    string
	Recipient string
	Timestamp time.Time
	Message   string
	// CompanionRelevant is true when the companion agent was present for the
	// request and is expected to relay the message itself.
	CompanionRelevant bool
}

// Reference is a namespaced per-item read counter with an optional cached
// title for link mentions.
type Reference struct {
	Namespace      string
	Item           string
	Count          int64
	LastReferenced time.Time
	Title          string // empty when no title has been cached yet
}
