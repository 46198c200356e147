package orchestratornode

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	placeholderx "github.com/tanpawarit/chative-guildbot/agent/placeholder"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var tracer = otel.Tracer("github.com/tanpawarit/chative-guildbot/agent/nodes")

type ActionExecutor interface {
	Execute(ctx context.Context, ec contractx.ExecutionContext, prior []contractx.ActionResult, name string, raw map[string]any) contractx.ActionResult
}

// Recorder receives per-turn and per-action observations.
type Recorder interface {
	ObserveTurn()
	ObserveAction(name string, success bool, elapsed time.Duration)
}

type TurnConfig struct {
	// Model must already have the catalog bound.
	Model          einomodel.BaseChatModel
	Actions        ActionExecutor
	SystemPrompt   string
	ResponseAction string
	MaxCalls       int
	MaxTurns       int
	Recorder       Recorder
}

// RunTurns drives the model until it stops proposing calls, the response
// action succeeds, or a budget runs out. Calls inside one turn run strictly
// in the order proposed so later calls can reference earlier results.
func RunTurns(ctx context.Context, in *GraphState, cfg TurnConfig) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if cfg.Model == nil || cfg.Actions == nil {
		return nil, fmt.Errorf("%w: model and actions are required", contractx.ErrValidation)
	}

	if len(in.Messages) == 0 {
		if strings.TrimSpace(cfg.SystemPrompt) != "" {
			in.Messages = append(in.Messages, schema.SystemMessage(cfg.SystemPrompt))
		}
		in.Messages = append(in.Messages, schema.UserMessage(in.Text))
	}

	for {
		if cfg.MaxTurns > 0 && in.Turns >= cfg.MaxTurns {
			in.Reason = ReasonTurnLimit
			return in, nil
		}

		msg, err := generate(ctx, in, cfg)
		if err != nil {
			return nil, err
		}
		in.Turns++
		if cfg.Recorder != nil {
			cfg.Recorder.ObserveTurn()
		}

		if len(msg.ToolCalls) == 0 {
			in.Closing = strings.TrimSpace(msg.Content)
			in.Reason = ReasonNoCalls
			log.Debug().
				Str("conversation_id", in.ConversationID).
				Int("turn", in.Turns).
				Bool("closing_text", in.Closing != "").
				Msg("model finished without calls")
			return in, nil
		}

		in.Messages = append(in.Messages, msg)
		if stop := executeCalls(ctx, in, cfg, msg.ToolCalls); stop {
			return in, nil
		}
	}
}

func generate(ctx context.Context, in *GraphState, cfg TurnConfig) (*schema.Message, error) {
	ctx, span := tracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", in.ConversationID),
		attribute.Int("conversation.turn", in.Turns+1),
	)

	msg, err := cfg.Model.Generate(ctx, in.Messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate")
		return nil, fmt.Errorf("%w: turn %d: %w", contractx.ErrModelInvoke, in.Turns+1, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: turn %d: empty model response", contractx.ErrModelInvoke, in.Turns+1)
	}
	span.SetAttributes(attribute.Int("conversation.proposed_calls", len(msg.ToolCalls)))
	return msg, nil
}

// executeCalls runs one turn's calls and reports whether the conversation
// is over.
func executeCalls(ctx context.Context, in *GraphState, cfg TurnConfig, calls []schema.ToolCall) bool {
	for _, call := range calls {
		res := executeCall(ctx, in, cfg, call)
		in.Results = append(in.Results, res)
		in.Messages = append(in.Messages, schema.ToolMessage(encodeResult(res), call.ID))

		log.Debug().
			Str("conversation_id", in.ConversationID).
			Str("action", res.FunctionName).
			Int("call_index", res.CallIndex).
			Bool("success", res.Success).
			Msg("action executed")

		if res.Success && res.FunctionName == cfg.ResponseAction {
			in.Reason = ReasonResponse
			return true
		}
		if cfg.MaxCalls > 0 && len(in.Results) >= cfg.MaxCalls {
			in.Reason = ReasonCallLimit
			log.Warn().
				Str("conversation_id", in.ConversationID).
				Int("calls", len(in.Results)).
				Msg("call ceiling reached")
			return true
		}
	}
	return false
}

func executeCall(ctx context.Context, in *GraphState, cfg TurnConfig, call schema.ToolCall) contractx.ActionResult {
	name := strings.TrimSpace(call.Function.Name)
	index := callsTo(in.Results, name)

	ctx, span := tracer.Start(ctx, "conversation.action")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", in.ConversationID),
		attribute.String("action.name", name),
		attribute.Int("action.call_index", index),
	)

	started := time.Now()
	var res contractx.ActionResult
	var unresolved []string
	raw, err := decodeArgs(call.Function.Arguments)
	if err != nil {
		res = contractx.Failed(name, err.Error())
	} else {
		if placeholderx.RequiresResolution(raw) {
			raw = placeholderx.Resolve(in.Results, raw)
			unresolved = unresolvedRefs(raw)
		}
		if len(unresolved) > 0 {
			span.SetAttributes(attribute.StringSlice("action.unresolved_refs", unresolved))
			log.Warn().
				Str("conversation_id", in.ConversationID).
				Str("action", name).
				Strs("unresolved", unresolved).
				Msg("references left unresolved")
		}
		prior := in.Results[:len(in.Results):len(in.Results)]
		res = cfg.Actions.Execute(ctx, in.Exec, prior, name, raw)
	}
	if !res.Success && len(unresolved) > 0 {
		res.Error = fmt.Sprintf("%s (unresolved references: %s)", res.Error, strings.Join(unresolved, ", "))
	}
	res.FunctionName = name
	res.CallIndex = index

	span.SetAttributes(attribute.Bool("action.success", res.Success))
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	if cfg.Recorder != nil {
		cfg.Recorder.ObserveAction(name, res.Success, time.Since(started))
	}
	return res
}

func unresolvedRefs(raw map[string]any) []string {
	refs := placeholderx.Collect(raw)
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.String()
	}
	return out
}

// callsTo counts earlier calls to name, failed ones included.
func callsTo(results []contractx.ActionResult, name string) int {
	n := 0
	for _, r := range results {
		if r.FunctionName == name {
			n++
		}
	}
	return n
}

func decodeArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", contractx.ErrSchemaViolation, err)
	}
	return args, nil
}

func encodeResult(res contractx.ActionResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"functionName":%q,"success":false,"data":"result could not be encoded"}`, res.FunctionName)
	}
	return string(raw)
}
