// Package presence tracks, per monitored channel, whether the shadowed
// companion agent is currently there. The agent only answers in a channel
// while the companion is absent.
package presence

import (
	"fmt"

	"github.com/understudybot/understudy/internal/core"
)

type State int

const (
	Unknown State = iota
	Present
	Absent
)

func (s State) String() string {
	switch s {
	case Present:
		return "PRESENT"
	case Absent:
		return "GONE"
	default:
		return "UNKNOWN"
	}
}

// NotifyFunc is invoked on every transition into or out of Present/Absent.
// It must not block; the notifier queues sends in the background.
type NotifyFunc func(subject, body string)

// Tracker is the per-channel companion state machine. It is driven from the
// single-threaded dispatch loop and needs no locking.
type Tracker struct {
	cfg      core.SessionConfig
	states   map[string]State
	sawWhois bool
	notify   NotifyFunc
}

func NewTracker(cfg core.SessionConfig, notify NotifyFunc) *Tracker {
	if notify == nil {
		notify = func(string, string) {}
	}
	t := &Tracker{
		cfg:    cfg,
		states: make(map[string]State, len(cfg.Channels)),
		notify: notify,
	}
	for _, ch := range cfg.Channels {
		t.states[ch] = Unknown
	}
	return t
}

// CanReply reports whether the agent may answer a message. Private messages
// and standalone mode always allow a reply; otherwise the companion must be
// known absent from the channel. An unresolved state (before the startup
// WHOIS completes, or after a rename into the companion nick) stays muted.
func (t *Tracker) CanReply(channel string, private bool) bool {
	if private || t.cfg.Standalone() {
		return true
	}
	return t.states[channel] == Absent
}

// CompanionPresent reports whether the companion is currently in channel.
func (t *Tracker) CompanionPresent(channel string) bool {
	return !t.cfg.Standalone() && t.states[channel] == Present
}

// StateOf returns the companion state for channel.
func (t *Tracker) StateOf(channel string) State {
	return t.states[channel]
}

// HandleJoin marks the companion present when it joins a channel.
func (t *Tracker) HandleJoin(nick, channel string) {
	if !t.isCompanion(nick) || t.states[channel] == Present {
		return
	}
	t.states[channel] = Present
	t.notify(t.statusSubject(), fmt.Sprintf("%s has joined channel %s", nick, channel))
}

// HandlePart marks the companion absent when it leaves a channel.
func (t *Tracker) HandlePart(nick, channel string) {
	if !t.isCompanion(nick) || t.states[channel] != Present {
		return
	}
	t.states[channel] = Absent
	t.notify(t.statusSubject(), fmt.Sprintf("%s has left channel %s", nick, channel))
}

// HandleQuit marks the companion absent everywhere.
func (t *Tracker) HandleQuit(nick, message string) {
	if !t.isCompanion(nick) {
		return
	}
	t.markAllAbsent()
	t.notify(t.statusSubject(), fmt.Sprintf("%s has quit: %s", nick, message))
}

// HandleKick marks the companion absent in the channel it was kicked from.
func (t *Tracker) HandleKick(victim, channel, kicker string) {
	if !t.isCompanion(victim) || t.states[channel] != Present {
		return
	}
	t.states[channel] = Absent
	t.notify(t.statusSubject(), fmt.Sprintf("%s has been kicked from %s by %s", victim, channel, kicker))
}

// HandleRename reacts to nick changes. A rename away from the companion nick
// marks it absent everywhere; a rename into the companion nick cannot be
// trusted on its own, so the caller must re-issue a WHOIS when this returns
// true.
func (t *Tracker) HandleRename(oldNick, newNick string) (needWhois bool) {
	if t.cfg.Standalone() {
		return false
	}
	if oldNick == t.cfg.CompanionNick {
		t.markAllAbsent()
		t.notify(t.statusSubject(), fmt.Sprintf("%s has been renamed to %s", oldNick, newNick))
	}
	if newNick == t.cfg.CompanionNick {
		t.notify(t.statusSubject(), fmt.Sprintf("%s has been renamed to %s, checking WHOIS", oldNick, newNick))
		t.sawWhois = false
		return true
	}
	return false
}

// MarkSpoke handles unsolicited companion activity: the companion talking in
// a channel we believed it had left means it is present after all.
func (t *Tracker) MarkSpoke(channel, message string) (changed bool) {
	if t.cfg.Standalone() || t.states[channel] == Present {
		return false
	}
	t.states[channel] = Present
	t.notify(t.statusSubject(),
		fmt.Sprintf("%s spoke in %s unexpectedly and got marked as present: %s",
			t.cfg.CompanionNick, channel, message))
	return true
}

// ApplyWhoisChannels resolves the startup (or post-rename) identity lookup:
// channels in the WHOIS membership list go Present, the rest Absent.
func (t *Tracker) ApplyWhoisChannels(channels []string) {
	t.sawWhois = true
	member := make(map[string]bool, len(channels))
	for _, ch := range channels {
		member[ch] = true
	}
	for _, ch := range t.cfg.Channels {
		if member[ch] {
			t.states[ch] = Present
			t.notify(t.statusSubject(), fmt.Sprintf("%s is in channel %s", t.cfg.CompanionNick, ch))
		} else {
			t.states[ch] = Absent
		}
	}
}

// ApplyWhoisEnd closes out an identity lookup. No channel reply during the
// session means the companion is not online at all.
func (t *Tracker) ApplyWhoisEnd() {
	if t.sawWhois || t.cfg.Standalone() {
		return
	}
	for _, ch := range t.cfg.Channels {
		t.states[ch] = Absent
		t.notify(t.statusSubject(), fmt.Sprintf("%s is not in channel %s", t.cfg.CompanionNick, ch))
	}
}

func (t *Tracker) isCompanion(nick string) bool {
	return !t.cfg.Standalone() && nick == t.cfg.CompanionNick
}

func (t *Tracker) markAllAbsent() {
	for _, ch := range t.cfg.Channels {
		t.states[ch] = Absent
	}
}

func (t *Tracker) statusSubject() string {
	return fmt.Sprintf("%s status", t.cfg.Nick)
}
