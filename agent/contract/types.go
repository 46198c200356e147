package contract

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

// Data is the success payload of an action. Its keys follow the action's
// declared response schema so later calls can address them by path.
type Data map[string]any

// ActionResult is the uniform outcome of one executed action. On success
// Data is set; on failure Error carries a human-readable reason.
type ActionResult struct {
	FunctionName string
	Success      bool
	Data         Data
	Error        string
	CallIndex    int
}

func Succeeded(functionName string, data Data) ActionResult {
	if data == nil {
		data = Data{}
	}
	return ActionResult{FunctionName: functionName, Success: true, Data: data}
}

func Failed(functionName string, message string) ActionResult {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "action failed"
	}
	return ActionResult{FunctionName: functionName, Success: false, Error: message}
}

type actionResultWire struct {
	FunctionName string `json:"functionName"`
	Success      bool   `json:"success"`
	Data         any    `json:"data"`
	CallIndex    int    `json:"callIndex"`
}

// MarshalJSON renders data as the payload object on success and as the
// failure message string otherwise.
func (r ActionResult) MarshalJSON() ([]byte, error) {
	wire := actionResultWire{
		FunctionName: r.FunctionName,
		Success:      r.Success,
		CallIndex:    r.CallIndex,
	}
	if r.Success {
		wire.Data = r.Data
	} else {
		wire.Data = r.Error
	}
	return json.Marshal(wire)
}

// ExecutionContext is built once per conversation and handed unchanged to
// every call in it.
type ExecutionContext struct {
	ConversationID string
	Platform       platformx.Platform
	ChannelID      string
	UserID         string
	Settings       GuildSettings
	Now            func() time.Time
}

func (ec ExecutionContext) Clock() time.Time {
	if ec.Now == nil {
		return time.Now().UTC()
	}
	return ec.Now().UTC()
}

// GuildSettings are per-guild flags read once at conversation start.
type GuildSettings struct {
	GuildID            string    `json:"guild_id"`
	SupportRoleID      string    `json:"support_role_id,omitempty"`
	TicketCategoryID   string    `json:"ticket_category_id,omitempty"`
	LevelingEnabled    bool      `json:"leveling_enabled"`
	MaxAward           int64     `json:"max_award,omitempty"`
	DisabledActions    []string  `json:"disabled_actions,omitempty"`
	SchedulingDisabled bool      `json:"scheduling_disabled,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

const DefaultMaxAward = 10000

func DefaultGuildSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:         guildID,
		LevelingEnabled: true,
		MaxAward:        DefaultMaxAward,
	}
}

func (s GuildSettings) ActionDisabled(name string) bool {
	return slices.Contains(s.DisabledActions, name)
}

func (s GuildSettings) AwardLimit() int64 {
	if s.MaxAward <= 0 {
		return DefaultMaxAward
	}
	return s.MaxAward
}
