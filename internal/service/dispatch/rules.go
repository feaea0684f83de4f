package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/understudybot/understudy/internal/core"
	"github.com/understudybot/understudy/pkg/elapse"
)

// nickPat matches an IRC nick, including the * wildcard used by seen queries.
const nickPat = "[a-zA-Z*_\\\\\\[\\]{}^`|][a-zA-Z0-9*_\\\\\\[\\]{}^`|-]*"

var (
	seenQuery    = regexp.MustCompile(`^\s*seen\s+(` + nickPat + `)[\s?]*`)
	tellQuery    = regexp.MustCompile(`^\s*tell\s+(` + nickPat + `)\s*(.+)$`)
	factoidQuery = regexp.MustCompile(`^(.+)[?!](\s*$|\s*\|\s*(` + nickPat + `)$)`)
	factoidSet   = regexp.MustCompile(`^(.+?)\s(is|are)(\salso)?\s(.+)$`)
	googleQuery  = regexp.MustCompile(`^\s*google\s+(.*?)\s+for\s+(` + nickPat + `)`)
	thingMention = regexp.MustCompile(`(?i)https?://www\.thingiverse\.com/thing:(\d+)`)
	tubeMention  = regexp.MustCompile(`(?i)https?://www\.youtube\.com/watch\?v=(\w*)`)

	// Items starting with an interrogative or pronoun are questions, not
	// facts: "what is love" must not store a factoid named "what".
	reservedItem = regexp.MustCompile(`(?i)^(here|how|it|something|that|this|what|when|where|which|who|why|you)`)
)

// message is the immutable-ish per-message context the rules evaluate
// against. Only the direct-address rewrite mutates text/flags, before any
// rule runs.
type message struct {
	sender        string
	channel       string
	replyTo       string
	text          string
	private       bool
	canReply      bool
	directAddress bool
}

type rule struct {
	name   string
	handle func(e *Engine, ctx context.Context, m *message) ([]core.Action, bool)
}

// newRules returns the rule table in its fixed priority order. Handlers
// returning done=true stop evaluation; the rest fall through so one message
// can fire several rules.
func newRules() []rule {
	return []rule{
		{"status", (*Engine).ruleStatus},
		{"lurkers", (*Engine).ruleLurkers},
		{"tell", (*Engine).ruleTell},
		{"seen", (*Engine).ruleSeen},
		{"google", (*Engine).ruleGoogle},
		{"factoid-set", (*Engine).ruleFactoidSet},
		{"factoid-query", (*Engine).ruleFactoidQuery},
		{"info", (*Engine).ruleInfo},
		{"forget", (*Engine).ruleForget},
		{"thingiverse", (*Engine).ruleThingiverse},
		{"youtube", (*Engine).ruleYoutube},
	}
}

func buildAddressPattern(cfg core.SessionConfig) *regexp.Regexp {
	names := regexp.QuoteMeta(cfg.Nick)
	if !cfg.Standalone() {
		names += "|" + regexp.QuoteMeta(cfg.CompanionNick)
	}
	return regexp.MustCompile(`^(` + names + `)(:|;|,|-|\s)+(.+)$`)
}

func reply(target, text string) core.Action {
	return core.Action{Kind: core.ActionReply, Target: target, Text: text}
}

func (e *Engine) ruleStatus(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply || m.text != "status?" {
		return nil, false
	}

	up := elapse.Since(e.started, time.Now())
	var b strings.Builder
	switch {
	case e.cfg.Standalone():
		fmt.Fprintf(&b, "%s: OK; Up for %s; standalone mode", core.Version, up)
	case m.private:
		fmt.Fprintf(&b, "%s: OK; Up for %s; ", core.Version, up)
		for _, ch := range e.cfg.Channels {
			fmt.Fprintf(&b, "%s %s; ", ch, e.tracker.StateOf(ch))
		}
	default:
		fmt.Fprintf(&b, "%s: OK; Up for %s; %s is %s",
			core.Version, up, e.cfg.CompanionNick, e.tracker.StateOf(m.channel))
	}

	mood := e.store.Mood(ctx, e.cfg.PositiveMarker, e.cfg.NegativeMarker)
	fmt.Fprintf(&b, " mood: %s", moodPhrase(mood))
	return []core.Action{reply(m.replyTo, b.String())}, true
}

func (e *Engine) ruleLurkers(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply || m.text != "lurkers?" {
		return nil, false
	}
	// A new request resets any enumeration still in flight.
	e.lurker = &lurkerRun{replyTo: m.replyTo, channel: m.channel}
	return []core.Action{
		reply(m.replyTo, "Looking for lurkers..."),
		{Kind: core.ActionQueryNames, Target: m.channel},
	}, true
}

func (e *Engine) ruleTell(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.directAddress {
		return nil, false
	}
	g := tellQuery.FindStringSubmatch(m.text)
	if g == nil {
		return nil, false
	}

	// The companion is expected to relay this one when it is present and the
	// request was not addressed specifically to us.
	companionRelevant := !(m.directAddress && m.canReply) && e.tracker.CompanionPresent(m.channel)
	ok := e.store.EnqueueTell(ctx, m.sender, g[1], g[2], companionRelevant)
	if ok && m.canReply {
		return []core.Action{reply(m.replyTo,
			fmt.Sprintf("%s: I'll pass that on when %s is around.", m.sender, g[1]))}, true
	}
	return nil, true
}

func (e *Engine) ruleSeen(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply {
		return nil, false
	}
	g := seenQuery.FindStringSubmatch(m.text)
	if g == nil {
		return nil, false
	}

	rows := e.store.LookupSeen(ctx, g[1])
	if len(rows) == 0 {
		return []core.Action{reply(m.replyTo, fmt.Sprintf("Sorry, I haven't seen %s.", g[1]))}, true
	}

	now := time.Now()
	var actions []core.Action
	for _, row := range rows {
		actions = append(actions, reply(m.replyTo,
			fmt.Sprintf("%s was last seen in %s %s ago saying '%s'.",
				row.Nick, row.Channel, elapse.Since(row.Timestamp, now), row.Message)))
	}
	return actions, true
}

func (e *Engine) ruleGoogle(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply {
		return nil, false
	}
	g := googleQuery.FindStringSubmatch(m.text)
	if g == nil {
		return nil, false
	}
	return []core.Action{reply(m.replyTo,
		fmt.Sprintf("%s: http://lmgtfy.com/?q=%s", g[2], url.QueryEscape(g[1])))}, true
}

func (e *Engine) ruleFactoidSet(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.directAddress {
		return nil, false
	}
	g := factoidSet.FindStringSubmatch(m.text)
	if g == nil || reservedItem.MatchString(g[1]) {
		return nil, false
	}

	are := g[2] == "are"
	replace := g[3] == "" // "also" appends instead of replacing
	ok := e.store.SetFactoid(ctx, m.sender, g[1], are, g[4], replace)

	if !m.canReply {
		return nil, false
	}
	if ok {
		return []core.Action{reply(m.replyTo, fmt.Sprintf("%s: Okay.", m.sender))}, false
	}
	return []core.Action{reply(m.replyTo,
		fmt.Sprintf("I'm sorry, %s. I'm afraid I can't do that.", m.sender))}, false
}

func (e *Engine) ruleFactoidQuery(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply {
		return nil, false
	}
	g := factoidQuery.FindStringSubmatch(m.text)
	if g == nil {
		return nil, false
	}

	answer := e.factoidString(ctx, g[1])
	if answer == "" {
		return nil, false
	}

	answer = strings.ReplaceAll(answer, "!who", m.sender)
	answer = strings.ReplaceAll(answer, "!channel", m.channel)
	answer = strings.TrimPrefix(answer, "<reply>")

	if emote, ok := strings.CutPrefix(answer, "<action>"); ok {
		return []core.Action{{Kind: core.ActionEmote, Target: m.replyTo, Text: emote}}, false
	}
	if g[3] != "" {
		answer = fmt.Sprintf("%s, %s", g[3], answer)
	}
	return []core.Action{reply(m.replyTo, answer)}, false
}

// factoidString joins all active values for an item into one utterance:
// "item is A and is also B". A leading <reply> or <action> value short
// circuits the whole thing.
func (e *Engine) factoidString(ctx context.Context, item string) string {
	facts := e.store.GetFactoid(ctx, item)
	if len(facts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, f := range facts {
		if i == 0 {
			if strings.HasPrefix(f.Value, "<reply>") || strings.HasPrefix(f.Value, "<action>") {
				return f.Value
			}
			b.WriteString(item)
		}
		if f.Are {
			b.WriteString(" are ")
		} else {
			b.WriteString(" is ")
		}
		if i > 0 {
			b.WriteString("also ")
		}
		b.WriteString(f.Value)
		if i < len(facts)-1 {
			b.WriteString(" and")
		}
	}
	return b.String()
}

func (e *Engine) ruleInfo(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply {
		return nil, false
	}
	item, ok := strings.CutPrefix(m.text, "info ")
	if !ok {
		return nil, false
	}
	item = strings.TrimSuffix(item, "?")

	entries := e.store.FactoidInfo(ctx, item)
	if len(entries) == 0 {
		return []core.Action{reply(m.replyTo,
			fmt.Sprintf("Sorry, I couldn't find an entry for %s", item))}, false
	}

	actions := []core.Action{reply(m.replyTo,
		fmt.Sprintf("Factoid '%s' has been referenced %d times", item, entries[0].RefCount))}
	for _, entry := range entries {
		author := entry.Author
		if author == "" {
			author = "Unknown"
		}
		when := entry.At.Format(time.DateTime)
		if entry.Deleted {
			actions = append(actions, reply(m.replyTo,
				fmt.Sprintf("At %s, %s deleted this item", when, author)))
		} else {
			actions = append(actions, reply(m.replyTo,
				fmt.Sprintf("At %s, %s set to: %s", when, author, entry.Value)))
		}
	}
	return actions, false
}

func (e *Engine) ruleForget(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.directAddress {
		return nil, false
	}
	item, ok := strings.CutPrefix(m.text, "forget ")
	if !ok {
		return nil, false
	}

	forgotten := e.store.ForgetFactoid(ctx, item, m.sender)
	if !m.canReply {
		return nil, false
	}
	if forgotten {
		return []core.Action{reply(m.replyTo,
			fmt.Sprintf("%s: I've forgotten about %s", m.sender, item))}, false
	}
	return []core.Action{reply(m.replyTo,
		fmt.Sprintf("%s: Okay, but %s didn't exist anyway", m.sender, item))}, false
}

func (e *Engine) ruleThingiverse(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply {
		return nil, false
	}
	g := thingMention.FindStringSubmatch(m.text)
	if g == nil {
		return nil, false
	}
	link := fmt.Sprintf("http://www.thingiverse.com/thing:%s", g[1])
	return e.mention(ctx, m, core.NamespaceThingiverse, g[1], link), false
}

func (e *Engine) ruleYoutube(ctx context.Context, m *message) ([]core.Action, bool) {
	if !m.canReply {
		return nil, false
	}
	g := tubeMention.FindStringSubmatch(m.text)
	if g == nil {
		return nil, false
	}
	link := fmt.Sprintf("http://www.youtube.com/watch?v=%s", g[1])
	return e.mention(ctx, m, core.NamespaceYoutube, g[1], link), false
}

// mention counts a link sighting and either replies with the cached title or
// kicks off a background title fetch for the first sighting.
func (e *Engine) mention(ctx context.Context, m *message, namespace, item, link string) []core.Action {
	ref, ok := e.store.BumpReference(ctx, namespace, item)
	if !ok {
		return nil
	}
	if ref.Title != "" {
		return []core.Action{reply(m.replyTo,
			fmt.Sprintf("%s => %s => %d IRC mentions", link, ref.Title, ref.Count))}
	}
	return []core.Action{{
		Kind:      core.ActionFetchTitle,
		Target:    m.replyTo,
		Namespace: namespace,
		Item:      item,
		URL:       link,
		Refs:      ref.Count,
	}}
}

func moodPhrase(mood int64) string {
	switch {
	case mood < -100:
		return "suicidal!"
	case mood < -50:
		return "really depressed."
	case mood < -10:
		return "depressed."
	case mood < 0:
		return "kinda bummed."
	case mood == 0:
		return "meh, okay I guess."
	case mood < 10:
		return "alright."
	case mood < 50:
		return "pretty good."
	default:
		return "great, Great, GREAT!!"
	}
}
