package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

// LoadSettings reads the guild's settings once for the whole conversation.
// Lookup failures fall back to defaults so the request can still run.
func LoadSettings(ctx context.Context, in *GraphState, store contractx.SettingsStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	guildID := ""
	channel, err := in.Exec.Platform.Channel(ctx, in.Exec.ChannelID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("conversation_id", in.ConversationID).
			Str("channel_id", in.Exec.ChannelID).
			Msg("resolve channel for settings")
	} else {
		guildID = channel.GuildID
	}

	settings := contractx.DefaultGuildSettings(guildID)
	if store != nil && guildID != "" {
		loaded, err := store.Load(ctx, guildID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("conversation_id", in.ConversationID).
				Str("guild_id", guildID).
				Msg("load guild settings, using defaults")
		} else {
			settings = loaded
		}
	}

	in.Exec.Settings = settings
	return in, nil
}
