package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

func (c *Client) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	return call(ctx, c, "get guild "+guildID, func(opts ...discordgo.RequestOption) (*discordgo.Guild, error) {
		return c.session.GuildWithCounts(guildID, opts...)
	})
}

func (c *Client) roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	return call(ctx, c, "list roles of "+guildID, func(opts ...discordgo.RequestOption) ([]*discordgo.Role, error) {
		return c.session.GuildRoles(guildID, opts...)
	})
}

func (c *Client) Guild(ctx context.Context, guildID string) (*platformx.Guild, error) {
	g, err := c.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return toGuild(g), nil
}

func (c *Client) Channel(ctx context.Context, channelID string) (*platformx.Channel, error) {
	ch, err := call(ctx, c, "get channel "+channelID, func(opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
		return c.session.Channel(channelID, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := toChannel(ch)
	return &out, nil
}

func (c *Client) Channels(ctx context.Context, guildID string) ([]platformx.Channel, error) {
	chans, err := call(ctx, c, "list channels of "+guildID, func(opts ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
		return c.session.GuildChannels(guildID, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := make([]platformx.Channel, 0, len(chans))
	for _, ch := range chans {
		out = append(out, toChannel(ch))
	}
	return out, nil
}

func (c *Client) Member(ctx context.Context, guildID string, userID string) (*platformx.Member, error) {
	m, err := call(ctx, c, "get member "+userID, func(opts ...discordgo.RequestOption) (*discordgo.Member, error) {
		return c.session.GuildMember(guildID, userID, opts...)
	})
	if err != nil {
		return nil, err
	}
	g, err := c.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	roles, err := c.roles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return foldMember(g, roles, m), nil
}

func (c *Client) SearchMembers(ctx context.Context, guildID string, query string, limit int) ([]platformx.Member, error) {
	if limit <= 0 || limit > 1000 {
		limit = 25
	}
	found, err := call(ctx, c, "search members of "+guildID, func(opts ...discordgo.RequestOption) ([]*discordgo.Member, error) {
		return c.session.GuildMembersSearch(guildID, query, limit, opts...)
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []platformx.Member{}, nil
	}
	g, err := c.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	roles, err := c.roles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]platformx.Member, 0, len(found))
	for _, m := range found {
		out = append(out, *foldMember(g, roles, m))
	}
	return out, nil
}

func (c *Client) Roles(ctx context.Context, guildID string) ([]platformx.Role, error) {
	roles, err := c.roles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]platformx.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRole(r))
	}
	return out, nil
}

func (c *Client) CreateRole(ctx context.Context, guildID string, params platformx.RoleParams) (*platformx.Role, error) {
	color, hoist, mentionable := params.Color, params.Hoist, params.Mentionable
	perms := int64(params.Permissions)
	data := &discordgo.RoleParams{
		Name:        params.Name,
		Color:       &color,
		Hoist:       &hoist,
		Mentionable: &mentionable,
		Permissions: &perms,
	}
	r, err := call(ctx, c, "create role", func(opts ...discordgo.RequestOption) (*discordgo.Role, error) {
		return c.session.GuildRoleCreate(guildID, data, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := toRole(r)
	return &out, nil
}

func (c *Client) DeleteRole(ctx context.Context, guildID string, roleID string) error {
	return exec(ctx, c, "delete role "+roleID, func(opts ...discordgo.RequestOption) error {
		return c.session.GuildRoleDelete(guildID, roleID, opts...)
	})
}

func (c *Client) AddMemberRole(ctx context.Context, guildID string, userID string, roleID string) error {
	return exec(ctx, c, fmt.Sprintf("add role %s to %s", roleID, userID), func(opts ...discordgo.RequestOption) error {
		return c.session.GuildMemberRoleAdd(guildID, userID, roleID, opts...)
	})
}

func (c *Client) RemoveMemberRole(ctx context.Context, guildID string, userID string, roleID string) error {
	return exec(ctx, c, fmt.Sprintf("remove role %s from %s", roleID, userID), func(opts ...discordgo.RequestOption) error {
		return c.session.GuildMemberRoleRemove(guildID, userID, roleID, opts...)
	})
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, params platformx.ChannelParams) (*platformx.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:     params.Name,
		Type:     discordgo.ChannelType(params.Type),
		Topic:    params.Topic,
		ParentID: params.ParentID,
	}
	for _, ow := range params.Overwrites {
		data.PermissionOverwrites = append(data.PermissionOverwrites, &discordgo.PermissionOverwrite{
			ID:    ow.ID,
			Type:  discordgo.PermissionOverwriteType(ow.Type),
			Allow: int64(ow.Allow),
			Deny:  int64(ow.Deny),
		})
	}
	ch, err := call(ctx, c, "create channel", func(opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
		return c.session.GuildChannelCreateComplex(guildID, data, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := toChannel(ch)
	return &out, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := call(ctx, c, "delete channel "+channelID, func(opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
		return c.session.ChannelDelete(channelID, opts...)
	})
	return err
}

func (c *Client) SetPermissionOverwrite(ctx context.Context, channelID string, ow platformx.PermissionOverwrite) error {
	return exec(ctx, c, "set overwrite on "+channelID, func(opts ...discordgo.RequestOption) error {
		return c.session.ChannelPermissionSet(channelID, ow.ID, discordgo.PermissionOverwriteType(ow.Type), int64(ow.Allow), int64(ow.Deny), opts...)
	})
}

func (c *Client) SendMessage(ctx context.Context, channelID string, content string) (*platformx.Message, error) {
	send := &discordgo.MessageSend{Content: content, AllowedMentions: noMentions()}
	m, err := call(ctx, c, "send message to "+channelID, func(opts ...discordgo.RequestOption) (*discordgo.Message, error) {
		return c.session.ChannelMessageSendComplex(channelID, send, opts...)
	})
	if err != nil {
		return nil, err
	}
	return toMessage(m), nil
}

func (c *Client) SendDirectMessage(ctx context.Context, userID string, content string) (*platformx.Message, error) {
	dm, err := call(ctx, c, "open dm with "+userID, func(opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
		return c.session.UserChannelCreate(userID, opts...)
	})
	if err != nil {
		return nil, err
	}
	return c.SendMessage(ctx, dm.ID, content)
}

func (c *Client) BanMember(ctx context.Context, guildID string, userID string, reason string) error {
	return exec(ctx, c, "ban "+userID, func(opts ...discordgo.RequestOption) error {
		return c.session.GuildBanCreateWithReason(guildID, userID, reason, 0, opts...)
	})
}

func (c *Client) TimeoutMember(ctx context.Context, guildID string, userID string, until time.Time) error {
	until = until.UTC()
	return exec(ctx, c, "timeout "+userID, func(opts ...discordgo.RequestOption) error {
		return c.session.GuildMemberTimeout(guildID, userID, &until, opts...)
	})
}

func (c *Client) CreateScheduledEvent(ctx context.Context, guildID string, params platformx.EventParams) (*platformx.ScheduledEvent, error) {
	start := params.Start.UTC()
	data := &discordgo.GuildScheduledEventParams{
		Name:               params.Name,
		Description:        params.Description,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		ScheduledStartTime: &start,
	}
	if !params.End.IsZero() {
		end := params.End.UTC()
		data.ScheduledEndTime = &end
	}

	if params.ChannelID != "" {
		ch, err := c.Channel(ctx, params.ChannelID)
		if err != nil {
			return nil, err
		}
		data.ChannelID = params.ChannelID
		data.EntityType = discordgo.GuildScheduledEventEntityTypeVoice
		if ch.Type == platformx.ChannelStage {
			data.EntityType = discordgo.GuildScheduledEventEntityTypeStageInstance
		}
	} else {
		data.EntityType = discordgo.GuildScheduledEventEntityTypeExternal
		data.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{Location: params.Location}
	}

	ev, err := call(ctx, c, "create scheduled event", func(opts ...discordgo.RequestOption) (*discordgo.GuildScheduledEvent, error) {
		return c.session.GuildScheduledEventCreate(guildID, data, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := &platformx.ScheduledEvent{
		ID:          ev.ID,
		GuildID:     ev.GuildID,
		ChannelID:   ev.ChannelID,
		Name:        ev.Name,
		Description: ev.Description,
		Location:    params.Location,
		StartTime:   start,
	}
	if data.ScheduledEndTime != nil {
		out.EndTime = *data.ScheduledEndTime
	}
	return out, nil
}
