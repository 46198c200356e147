package orchestratornode

import (
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

type TerminationReason string

const (
	ReasonNoCalls   TerminationReason = "no_calls"
	ReasonResponse  TerminationReason = "response"
	ReasonCallLimit TerminationReason = "call_limit"
	ReasonTurnLimit TerminationReason = "turn_limit"
)

type GraphInput struct {
	ConversationID string
	Platform       platformx.Platform
	ChannelID      string
	UserID         string
	Text           string
}

type GraphOutput struct {
	ConversationID string
	Text           string
	OK             bool
	Results        []contractx.ActionResult
	Reason         TerminationReason
	Turns          int
}

// GraphState is owned by one conversation and never shared.
type GraphState struct {
	ConversationID string
	Text           string
	StartedAt      time.Time

	Exec     contractx.ExecutionContext
	Messages []*schema.Message
	Results  []contractx.ActionResult
	Turns    int
	Closing  string
	Reason   TerminationReason
}
