// Package discord implements the platform boundary over the Discord REST API
// through a discordgo session. The gateway is never opened.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

const (
	userAgent        = "DiscordBot (https://github.com/tanpawarit/chative-guildbot, 1.0)"
	maxMessageLength = 2000
)

type Config struct {
	BotToken      string        `envconfig:"BOT_TOKEN" split_words:"true" required:"true"`
	ApplicationID string        `envconfig:"APPLICATION_ID" split_words:"true" required:"true"`
	PublicKey     string        `envconfig:"PUBLIC_KEY" split_words:"true" required:"true"`
	Timeout       time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	// MaxRetryWait bounds how long a rate-limited call may wait for its one
	// retry. Longer waits fail the call.
	MaxRetryWait time.Duration `envconfig:"MAX_RETRY_WAIT" split_words:"true" default:"5s"`
}

var ErrRateLimited = errors.New("discord rate limit wait too long")

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.session.Client = client
		}
	}
}

type Client struct {
	session       *discordgo.Session
	applicationID string
	maxRetryWait  time.Duration
}

var _ platformx.Platform = (*Client)(nil)

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errors.New("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	session.Client = &http.Client{Timeout: timeout}
	session.UserAgent = userAgent
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 1

	maxWait := cfg.MaxRetryWait
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	c := &Client{
		session:       session,
		applicationID: strings.TrimSpace(cfg.ApplicationID),
		maxRetryWait:  maxWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func MustNew(cfg Config, opts ...ClientOption) *Client {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// call runs one REST request bound to ctx. A rate-limited request is retried
// once when Discord asks for a wait no longer than maxRetryWait.
func call[T any](ctx context.Context, c *Client, op string, fn func(opts ...discordgo.RequestOption) (T, error)) (T, error) {
	out, err := fn(discordgo.WithContext(ctx))
	if wait, limited := retryAfter(err); limited {
		if wait > c.maxRetryWait {
			var zero T
			return zero, fmt.Errorf("%s: %w: retry after %s", op, ErrRateLimited, wait)
		}
		log.Warn().Str("op", op).Dur("retry_after", wait).Msg("discord rate limited")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
		out, err = fn(discordgo.WithContext(ctx))
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, classify(err))
	}
	return out, nil
}

// exec is call for requests without a result body.
func exec(ctx context.Context, c *Client, op string, fn func(opts ...discordgo.RequestOption) error) error {
	_, err := call(ctx, c, op, func(opts ...discordgo.RequestOption) (struct{}, error) {
		return struct{}{}, fn(opts...)
	})
	return err
}

func retryAfter(err error) (time.Duration, bool) {
	var rl *discordgo.RateLimitError
	if !errors.As(err, &rl) || rl.RateLimit == nil || rl.TooManyRequests == nil {
		return 0, false
	}
	return rl.RetryAfter, true
}

// classify maps a 404 onto platform.ErrNotFound and keeps the REST error in
// the chain.
func classify(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", platformx.ErrNotFound, err)
	}
	return err
}

// EditOriginalResponse replaces the deferred reply of an interaction.
func (c *Client) EditOriginalResponse(ctx context.Context, interactionToken string, content string) error {
	if c.applicationID == "" {
		return errors.New("discord application id is required")
	}
	text := truncate(content, maxMessageLength)
	edit := &discordgo.WebhookEdit{
		Content:         &text,
		AllowedMentions: noMentions(),
	}
	in := &discordgo.Interaction{AppID: c.applicationID, Token: interactionToken}
	_, err := call(ctx, c, "edit interaction response", func(opts ...discordgo.RequestOption) (*discordgo.Message, error) {
		return c.session.InteractionResponseEdit(in, edit, opts...)
	})
	return err
}

func noMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
