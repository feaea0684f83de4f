// Package dispatch is the single-threaded message dispatch engine: it owns
// the ordered intent rules, the presence tracker and the lurker enumeration
// state, and turns transport events into knowledge-store operations and
// outbound actions.
package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/understudybot/understudy/internal/core"
	"github.com/understudybot/understudy/internal/service/presence"
	"github.com/understudybot/understudy/pkg/elapse"
	"github.com/understudybot/understudy/pkg/log"
)

// TitleFetcher resolves a page title for a mentioned link. Absence of a
// title is a valid outcome, not an error.
type TitleFetcher interface {
	Fetch(ctx context.Context, url string) (string, bool)
}

// Sink receives the engine's outbound actions (replies, emotes, transport
// queries). It is called from the dispatch goroutine only.
type Sink func(core.Action)

// lurkerRun is the accumulator for one in-flight lurker enumeration. It
// spans multiple NAMES reply events; a new request resets it.
type lurkerRun struct {
	replyTo string
	channel string
	total   int
	lurkers int
}

type Engine struct {
	cfg     core.SessionConfig
	store   core.Store
	tracker *presence.Tracker
	titles  TitleFetcher
	sink    Sink

	rules     []rule
	addressRe *regexp.Regexp
	lurker    *lurkerRun
	started   time.Time

	events    chan core.Event
	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg core.SessionConfig, store core.Store, tracker *presence.Tracker, titles TitleFetcher, sink Sink) *Engine {
	e := &Engine{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		titles:  titles,
		sink:    sink,
		started: time.Now(),
		events:  make(chan core.Event, 64),
		done:    make(chan struct{}),
	}
	e.rules = newRules()
	e.addressRe = buildAddressPattern(cfg)
	return e
}

// Post feeds an event into the dispatch loop. Transport callbacks and async
// completions all enter through here, so rule evaluation never races.
func (e *Engine) Post(ev core.Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Start runs the dispatch loop until the context is cancelled. One event is
// fully handled before the next is accepted.
func (e *Engine) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting dispatch engine")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.done:
			return nil
		case ev := <-e.events:
			e.handleEvent(ctx, ev)
		}
	}
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}

func (e *Engine) handleEvent(ctx context.Context, ev core.Event) {
	switch ev.Kind {
	case core.EventConnected:
		if !e.cfg.Standalone() {
			e.sink(core.Action{Kind: core.ActionQueryWhois, Target: e.cfg.CompanionNick})
		}
	case core.EventMessage:
		e.handleMessage(ctx, ev)
	case core.EventEmote:
		e.store.RecordSeen(ctx, ev.Sender, ev.Channel, fmt.Sprintf("* %s %s", ev.Sender, ev.Text))
	case core.EventJoin:
		e.tracker.HandleJoin(ev.Sender, ev.Channel)
	case core.EventPart:
		e.tracker.HandlePart(ev.Sender, ev.Channel)
	case core.EventQuit:
		e.tracker.HandleQuit(ev.Sender, ev.Text)
	case core.EventKick:
		e.tracker.HandleKick(ev.Target, ev.Channel, ev.Sender)
	case core.EventRename:
		if e.tracker.HandleRename(ev.Sender, ev.Target) {
			e.sink(core.Action{Kind: core.ActionQueryWhois, Target: e.cfg.CompanionNick})
		}
	case core.EventNames:
		e.handleNames(ctx, ev)
	case core.EventNamesEnd:
		e.handleNamesEnd(ev)
	case core.EventWhoisChannels:
		if !e.cfg.Standalone() && ev.Sender == e.cfg.CompanionNick {
			e.tracker.ApplyWhoisChannels(ev.Nicks)
		}
	case core.EventWhoisEnd:
		if !e.cfg.Standalone() && ev.Sender == e.cfg.CompanionNick {
			e.tracker.ApplyWhoisEnd()
		}
	case core.EventTitleResolved:
		e.handleTitleResolved(ctx, ev)
	}
}

func (e *Engine) handleMessage(ctx context.Context, ev core.Event) {
	m := &message{
		sender:  ev.Sender,
		channel: ev.Channel,
		replyTo: ev.Channel,
		text:    ev.Text,
	}
	if ev.Channel == e.cfg.Nick {
		m.private = true
		m.canReply = true
		m.replyTo = ev.Sender
		log.FromCtx(ctx).Debug().Str("from", ev.Sender).Msg("private message")

		if rest, ok := strings.CutPrefix(m.text, "whois "); ok {
			e.sink(core.Action{Kind: core.ActionQueryWhois, Target: rest})
		}
	}

	// Seen updates happen for every public message in a monitored channel,
	// before the companion short-circuit below.
	if !m.private && e.cfg.Monitors(m.channel) {
		e.store.RecordSeen(ctx, m.sender, m.channel, m.text)
	}

	// Companion speech is never reacted to; if we believed it was gone it
	// just proved otherwise.
	if !m.private && !e.cfg.Standalone() && m.sender == e.cfg.CompanionNick {
		e.tracker.MarkSpoke(m.channel, m.text)
		return
	}

	if !m.private && e.tracker.CanReply(m.channel, false) {
		m.canReply = true
	}

	e.deliverTells(ctx, m)

	if g := e.addressRe.FindStringSubmatch(m.text); g != nil {
		m.text = g[3]
		m.directAddress = true
		if g[1] == e.cfg.Nick {
			m.canReply = true
		}
	}

	for _, r := range e.rules {
		actions, done := e.runRule(ctx, r, m)
		for _, a := range actions {
			e.emit(ctx, a)
		}
		if done {
			break
		}
	}
}

// deliverTells drains and announces pending tells for the sender. The batch
// is always deleted; a companion-relevant tell is only spoken when this
// agent may reply (otherwise the companion already relayed it).
func (e *Engine) deliverTells(ctx context.Context, m *message) {
	now := time.Now()
	for _, t := range e.store.DrainTells(ctx, m.sender) {
		if !m.canReply && t.CompanionRelevant {
			continue
		}
		text := fmt.Sprintf("%s: %s ago <%s> tell %s %s",
			m.sender, elapse.Since(t.Timestamp, now), t.Author, t.Recipient, t.Message)
		if t.CompanionRelevant {
			text += fmt.Sprintf(" (%s may repeat this)", e.cfg.CompanionNick)
		}
		e.sink(core.Action{Kind: core.ActionReply, Target: m.replyTo, Text: text})
	}
}

// runRule evaluates one rule; a panic inside a handler is contained so the
// remaining rules still see the message.
func (e *Engine) runRule(ctx context.Context, r rule, m *message) (actions []core.Action, done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.FromCtx(ctx).Error().Str("rule", r.name).Interface("panic", rec).Msg("rule handler panicked")
			actions, done = nil, false
		}
	}()
	return r.handle(e, ctx, m)
}

func (e *Engine) emit(ctx context.Context, a core.Action) {
	if a.Kind == core.ActionFetchTitle {
		go e.fetchTitle(ctx, a)
		return
	}
	e.sink(a)
}

// fetchTitle runs off the dispatch goroutine; its result re-enters the loop
// as an event instead of mutating shared state from here.
func (e *Engine) fetchTitle(ctx context.Context, a core.Action) {
	title, found := e.titles.Fetch(ctx, a.URL)
	e.Post(core.Event{
		Kind:      core.EventTitleResolved,
		Namespace: a.Namespace,
		Item:      a.Item,
		URL:       a.URL,
		Title:     title,
		Found:     found,
		Refs:      a.Refs,
		ReplyTo:   a.Target,
	})
}

func (e *Engine) handleTitleResolved(ctx context.Context, ev core.Event) {
	if ev.Found {
		e.store.SetTitle(ctx, ev.Namespace, ev.Item, ev.Title)
		e.sink(core.Action{
			Kind:   core.ActionReply,
			Target: ev.ReplyTo,
			Text:   fmt.Sprintf("%s => %s => %d IRC mentions", ev.URL, ev.Title, ev.Refs),
		})
		return
	}
	e.sink(core.Action{
		Kind:   core.ActionReply,
		Target: ev.ReplyTo,
		Text:   fmt.Sprintf("%s => ???? => %d IRC mentions", ev.URL, ev.Refs),
	})
}

func (e *Engine) handleNames(ctx context.Context, ev core.Event) {
	if e.lurker == nil || ev.Channel != e.lurker.channel {
		return
	}
	for _, nick := range ev.Nicks {
		nick = strings.TrimLeft(nick, "@+%&~")
		if nick == "" {
			continue
		}
		e.lurker.total++
		if len(e.store.LookupSeen(ctx, nick)) == 0 {
			e.lurker.lurkers++
		}
	}
}

func (e *Engine) handleNamesEnd(ev core.Event) {
	if e.lurker == nil || ev.Channel != e.lurker.channel {
		return
	}
	e.sink(core.Action{
		Kind:   core.ActionReply,
		Target: e.lurker.replyTo,
		Text: fmt.Sprintf("%d of the %d users in %s right now have never said anything.",
			e.lurker.lurkers, e.lurker.total, e.lurker.channel),
	})
	e.lurker = nil
}
