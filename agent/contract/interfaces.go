package contract

import "context"

// SettingsStore loads per-guild settings. Implementations return defaults
// for guilds that have never been configured.
type SettingsStore interface {
	Load(ctx context.Context, guildID string) (GuildSettings, error)
}

// Translator turns text into another language.
type Translator interface {
	Translate(ctx context.Context, text string, targetLanguage string) (string, error)
}

// MessageScheduler delivers a channel message after a delay.
type MessageScheduler interface {
	Schedule(ctx context.Context, msg ScheduledMessage) (string, error)
}

type ScheduledMessage struct {
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
	AuthorID  string `json:"authorId"`
	Content   string `json:"content"`
	DelaySecs int64  `json:"delaySeconds"`
}
