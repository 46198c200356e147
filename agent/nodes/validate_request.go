package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

var (
	ErrInvalidMessage  = errors.New("message is empty")
	ErrInvalidChannel  = errors.New("channel id is empty")
	ErrInvalidUser     = errors.New("user id is empty")
	ErrMissingPlatform = errors.New("platform handle is missing")
)

func ValidateRequest(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	if in.Platform == nil {
		return nil, ErrMissingPlatform
	}
	channelID := strings.TrimSpace(in.ChannelID)
	if channelID == "" {
		return nil, ErrInvalidChannel
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrInvalidUser
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = newID()
	}

	return &GraphState{
		ConversationID: conversationID,
		Text:           text,
		StartedAt:      nowFn().UTC(),
		Exec: contractx.ExecutionContext{
			ConversationID: conversationID,
			Platform:       in.Platform,
			ChannelID:      channelID,
			UserID:         userID,
			Now:            nowFn,
		},
	}, nil
}
