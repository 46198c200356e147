package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	actionx "github.com/tanpawarit/chative-guildbot/agent/action"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	nodex "github.com/tanpawarit/chative-guildbot/agent/nodes"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
	promptx "github.com/tanpawarit/chative-guildbot/agent/prompt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FallbackText is shown when a conversation produced no reply text.
const FallbackText = "Task complete!"

var (
	ErrInvalidMessage  = nodex.ErrInvalidMessage
	ErrInvalidChannel  = nodex.ErrInvalidChannel
	ErrInvalidUser     = nodex.ErrInvalidUser
	ErrMissingPlatform = nodex.ErrMissingPlatform
)

type TerminationReason = nodex.TerminationReason

const (
	ReasonNoCalls   = nodex.ReasonNoCalls
	ReasonResponse  = nodex.ReasonResponse
	ReasonCallLimit = nodex.ReasonCallLimit
	ReasonTurnLimit = nodex.ReasonTurnLimit
)

// Reply is the outcome of one conversation. OK is false when neither a
// response action nor closing text produced a message.
type Reply struct {
	ConversationID string
	Text           string
	OK             bool
	Results        []contractx.ActionResult
	Reason         TerminationReason
	Turns          int
}

func (r Reply) OrFallback() string {
	if r.OK {
		return r.Text
	}
	return FallbackText
}

// FormatReply applies the reply precedence to a finished result list.
func FormatReply(results []contractx.ActionResult, closingText string) (string, bool) {
	return nodex.ComposeReply(results, closingText, actionx.ResponseAction)
}

// Recorder observes conversations for metrics.
type Recorder interface {
	nodex.Recorder
	ObserveConversation(reason string, elapsed time.Duration)
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

type Orchestrator struct {
	model    einomodel.BaseChatModel
	actions  *actionx.Registry
	settings contractx.SettingsStore
	cfg      Config

	systemPrompt string
	recorder     Recorder
	now          func() time.Time
	newID        func() string

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

// New seals the registry, binds its catalog to the model once and compiles
// the conversation pipeline.
func New(
	chatModel einomodel.ToolCallingChatModel,
	actions *actionx.Registry,
	settings contractx.SettingsStore,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if actions == nil {
		return nil, errors.New("action registry is required")
	}

	o := &Orchestrator{
		actions:      actions,
		settings:     settings,
		cfg:          cfg.withDefaults(),
		systemPrompt: promptx.LoadPromptSet().Orchestrator,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	version := actions.Seal()
	bound, err := chatModel.WithTools(actions.ToolInfos())
	if err != nil {
		return nil, fmt.Errorf("%w: bind action catalog: %w", contractx.ErrModelInvoke, err)
	}
	o.model = bound

	graphRunner, err := o.compileConversationGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	log.Info().
		Uint64("catalog_version", version).
		Int("actions", len(actions.Names())).
		Int("max_calls", o.cfg.MaxCalls).
		Int("max_turns", o.cfg.MaxTurns).
		Msg("orchestrator ready")
	return o, nil
}

// RunConversation answers one request. Only invalid input and model
// failures are returned as errors; action failures are part of the reply.
func (o *Orchestrator) RunConversation(
	ctx context.Context,
	platform platformx.Platform,
	channelID string,
	userID string,
	text string,
) (Reply, error) {
	ctx, span := otel.Tracer("github.com/tanpawarit/chative-guildbot/agent/agents/orchestrator").Start(ctx, "conversation")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.channel_id", channelID),
		attribute.String("conversation.user_id", userID),
	)

	started := o.now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		Platform:  platform,
		ChannelID: channelID,
		UserID:    userID,
		Text:      text,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversation failed")
		if o.recorder != nil {
			o.recorder.ObserveConversation("error", o.now().Sub(started))
		}
		return Reply{}, err
	}

	elapsed := o.now().Sub(started)
	if o.recorder != nil {
		o.recorder.ObserveConversation(string(out.Reason), elapsed)
	}
	span.SetAttributes(
		attribute.String("conversation.id", out.ConversationID),
		attribute.String("conversation.reason", string(out.Reason)),
		attribute.Int("conversation.calls", len(out.Results)),
	)
	log.Info().
		Str("conversation_id", out.ConversationID).
		Str("reason", string(out.Reason)).
		Int("calls", len(out.Results)).
		Int("turns", out.Turns).
		Bool("has_reply", out.OK).
		Dur("elapsed", elapsed).
		Msg("conversation finished")

	return Reply{
		ConversationID: out.ConversationID,
		Text:           out.Text,
		OK:             out.OK,
		Results:        out.Results,
		Reason:         out.Reason,
		Turns:          out.Turns,
	}, nil
}
