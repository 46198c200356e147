package qstash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxResponseSizeBytes = 1 << 20

type Config struct {
	URL               string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token             string        `split_words:"true" required:"true"`
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true" required:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
	// CallbackURL is the public URL of the scheduled-message endpoint.
	CallbackURL string `envconfig:"CALLBACK_URL" split_words:"true"`
}

type Client struct {
	baseURL           string
	token             string
	currentSigningKey string
	nextSigningKey    string
	callbackURL       string
	httpClient        *http.Client
}

var _ contractx.MessageScheduler = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             strings.TrimSpace(cfg.Token),
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		callbackURL:       strings.TrimSpace(cfg.CallbackURL),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func MustNew(cfg Config, opts ...ClientOption) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// Verifier returns a signature verifier using the client's signing keys.
func (c *Client) Verifier() *Verifier {
	return NewVerifier(c.currentSigningKey, c.nextSigningKey)
}

type publishResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Schedule publishes msg to the callback URL with a delivery delay and
// returns the QStash message id.
func (c *Client) Schedule(ctx context.Context, msg contractx.ScheduledMessage) (string, error) {
	if c.callbackURL == "" {
		return "", fmt.Errorf("%w: qstash callback url is not configured", contractx.ErrValidation)
	}
	if msg.DelaySecs < 0 {
		return "", fmt.Errorf("%w: delay must not be negative", contractx.ErrValidation)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal scheduled message: %w", err)
	}

	// The destination is appended verbatim, not escaped.
	endpoint := c.baseURL + "/v2/publish/" + c.callbackURL
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Delay", strconv.FormatInt(msg.DelaySecs, 10)+"s")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish to qstash: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read qstash response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("qstash http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed publishResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode qstash response: %w", err)
	}
	if parsed.Error != "" {
		return "", errors.New(parsed.Error)
	}
	if parsed.MessageID == "" {
		return "", errors.New("qstash response has no message id")
	}

	log.Info().
		Str("message_id", parsed.MessageID).
		Str("channel_id", msg.ChannelID).
		Int64("delay_seconds", msg.DelaySecs).
		Msg("message scheduled")
	return parsed.MessageID, nil
}

// DecodeScheduledMessage parses a verified callback body.
func DecodeScheduledMessage(body []byte) (contractx.ScheduledMessage, error) {
	var msg contractx.ScheduledMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: decode scheduled message: %v", contractx.ErrValidation, err)
	}
	if strings.TrimSpace(msg.ChannelID) == "" || strings.TrimSpace(msg.Content) == "" {
		return msg, fmt.Errorf("%w: scheduled message needs channel and content", contractx.ErrValidation)
	}
	return msg, nil
}
