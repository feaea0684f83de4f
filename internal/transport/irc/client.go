// Package irc adapts the wire protocol to the dispatch engine: IRC events
// become engine events, engine actions become IRC commands. The core never
// imports this package.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	irc "github.com/thoj/go-ircevent"
	"github.com/understudybot/understudy/internal/config"
	"github.com/understudybot/understudy/internal/core"
	"github.com/understudybot/understudy/pkg/log"
)

// Engine is the part of the dispatch engine the transport feeds.
type Engine interface {
	Post(ev core.Event)
}

type Client struct {
	conn   *irc.Connection
	cfg    *config.IRCConfig
	engine Engine
	notify func(subject, body string)
}

func NewClient(ctx context.Context, cfg *config.IRCConfig, engine Engine, notify func(subject, body string)) *Client {
	conn := irc.IRC(cfg.Nick, cfg.Nick)
	conn.UseTLS = cfg.UseTLS
	if cfg.UseTLS {
		conn.TLSConfig = &tls.Config{ServerName: strings.Split(cfg.Server, ":")[0]}
	}
	if cfg.NickservPassword != "" {
		conn.UseSASL = true
		conn.SASLLogin = cfg.Nick
		conn.SASLPassword = cfg.NickservPassword
	}

	c := &Client{
		conn:   conn,
		cfg:    cfg,
		engine: engine,
		notify: notify,
	}
	c.registerCallbacks(ctx)
	return c
}

func (c *Client) registerCallbacks(ctx context.Context) {
	logger := log.FromCtx(ctx)

	c.conn.AddCallback("001", func(e *irc.Event) {
		logger.Info().Str("server", c.cfg.Server).Msg("signed on")
		for _, ch := range c.cfg.Channels {
			logger.Info().Str("channel", ch).Msg("joining channel")
			c.conn.Join(ch)
		}
		c.notify(fmt.Sprintf("%s connected", c.cfg.Nick),
			fmt.Sprintf("%s has signed on to %s", c.cfg.Nick, c.cfg.Server))
		c.engine.Post(core.Event{Kind: core.EventConnected})
	})

	c.conn.AddCallback("PRIVMSG", func(e *irc.Event) {
		c.engine.Post(core.Event{
			Kind:    core.EventMessage,
			Sender:  e.Nick,
			Channel: e.Arguments[0],
			Text:    e.Message(),
		})
	})

	c.conn.AddCallback("CTCP_ACTION", func(e *irc.Event) {
		c.engine.Post(core.Event{
			Kind:    core.EventEmote,
			Sender:  e.Nick,
			Channel: e.Arguments[0],
			Text:    e.Message(),
		})
	})

	c.conn.AddCallback("JOIN", func(e *irc.Event) {
		c.engine.Post(core.Event{Kind: core.EventJoin, Sender: e.Nick, Channel: e.Arguments[0]})
	})

	c.conn.AddCallback("PART", func(e *irc.Event) {
		c.engine.Post(core.Event{Kind: core.EventPart, Sender: e.Nick, Channel: e.Arguments[0]})
	})

	c.conn.AddCallback("QUIT", func(e *irc.Event) {
		c.engine.Post(core.Event{Kind: core.EventQuit, Sender: e.Nick, Text: e.Message()})
	})

	c.conn.AddCallback("KICK", func(e *irc.Event) {
		c.engine.Post(core.Event{
			Kind:    core.EventKick,
			Sender:  e.Nick,
			Channel: e.Arguments[0],
			Target:  e.Arguments[1],
		})
	})

	c.conn.AddCallback("NICK", func(e *irc.Event) {
		c.engine.Post(core.Event{Kind: core.EventRename, Sender: e.Nick, Target: e.Message()})
	})

	// RPL_NAMREPLY
	c.conn.AddCallback("353", func(e *irc.Event) {
		if len(e.Arguments) < 4 {
			return
		}
		c.engine.Post(core.Event{
			Kind:    core.EventNames,
			Channel: e.Arguments[2],
			Nicks:   strings.Fields(e.Arguments[3]),
		})
	})

	// RPL_ENDOFNAMES
	c.conn.AddCallback("366", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		c.engine.Post(core.Event{Kind: core.EventNamesEnd, Channel: e.Arguments[1]})
	})

	// RPL_WHOISCHANNELS: channels come with op/voice sigils attached.
	c.conn.AddCallback("319", func(e *irc.Event) {
		if len(e.Arguments) < 3 {
			return
		}
		var channels []string
		for _, ch := range strings.Fields(e.Arguments[2]) {
			channels = append(channels, strings.TrimLeft(ch, "@+%&~"))
		}
		c.engine.Post(core.Event{
			Kind:   core.EventWhoisChannels,
			Sender: e.Arguments[1],
			Nicks:  channels,
		})
	})

	// RPL_ENDOFWHOIS
	c.conn.AddCallback("318", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		c.engine.Post(core.Event{Kind: core.EventWhoisEnd, Sender: e.Arguments[1]})
	})

	// Server ERROR precedes the connection being dropped.
	c.conn.AddCallback("ERROR", func(e *irc.Event) {
		logger.Warn().Str("reason", e.Message()).Msg("server closed the connection")
		c.notifyDisconnect(e.Message())
	})
}

func (c *Client) notifyDisconnect(reason string) {
	c.notify(fmt.Sprintf("%s disconnected", c.cfg.Nick),
		fmt.Sprintf("%s is disconnected from the server.\n\n%s", c.cfg.Nick, reason))
}

// Apply executes one engine action on the wire. Installed as the engine's
// action sink.
func (c *Client) Apply(a core.Action) {
	switch a.Kind {
	case core.ActionReply:
		c.conn.Privmsg(a.Target, a.Text)
	case core.ActionEmote:
		c.conn.Action(a.Target, a.Text)
	case core.ActionQueryNames:
		c.conn.SendRawf("NAMES %s", a.Target)
	case core.ActionQueryWhois:
		c.conn.SendRawf("WHOIS %s", a.Target)
	}
}

func (c *Client) Start(ctx context.Context) error {
	if err := c.conn.Connect(c.cfg.Server); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Server, err)
	}
	c.conn.Loop()
	return nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	c.notify(fmt.Sprintf("%s exiting", c.cfg.Nick),
		fmt.Sprintf("%s is exiting due to a requested shutdown.", c.cfg.Nick))
	c.conn.Quit()
	return nil
}
