package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

func snowflakeTime(id string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func toGuild(g *discordgo.Guild) *platformx.Guild {
	return &platformx.Guild{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		MemberCount: g.ApproximateMemberCount,
		CreatedAt:   snowflakeTime(g.ID),
	}
}

func toChannel(c *discordgo.Channel) platformx.Channel {
	out := platformx.Channel{
		ID:       c.ID,
		GuildID:  c.GuildID,
		Name:     c.Name,
		Type:     platformx.ChannelType(c.Type),
		Topic:    c.Topic,
		ParentID: c.ParentID,
		Position: c.Position,
		NSFW:     c.NSFW,
	}
	for _, ow := range c.PermissionOverwrites {
		if ow == nil {
			continue
		}
		out.Overwrites = append(out.Overwrites, platformx.PermissionOverwrite{
			ID:    ow.ID,
			Type:  platformx.OverwriteType(ow.Type),
			Allow: platformx.Permission(ow.Allow),
			Deny:  platformx.Permission(ow.Deny),
		})
	}
	return out
}

func toRole(r *discordgo.Role) platformx.Role {
	return platformx.Role{
		ID:          r.ID,
		Name:        r.Name,
		Color:       r.Color,
		Position:    r.Position,
		Permissions: platformx.Permission(r.Permissions),
		Hoist:       r.Hoist,
		Mentionable: r.Mentionable,
		Managed:     r.Managed,
	}
}

func toMessage(m *discordgo.Message) *platformx.Message {
	created := m.Timestamp.UTC()
	if m.Timestamp.IsZero() {
		created = snowflakeTime(m.ID)
	}
	out := &platformx.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: created,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	return out
}

// foldMember computes guild-level permissions from @everyone plus the
// member's roles. The @everyone role shares the guild's id.
func foldMember(g *discordgo.Guild, roles []*discordgo.Role, m *discordgo.Member) *platformx.Member {
	byID := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	var perms platformx.Permission
	if everyone, ok := byID[g.ID]; ok {
		perms = platformx.Permission(everyone.Permissions)
	}
	top := 0
	for _, id := range m.Roles {
		r, ok := byID[id]
		if !ok {
			continue
		}
		perms |= platformx.Permission(r.Permissions)
		if r.Position > top {
			top = r.Position
		}
	}

	user := m.User
	if user == nil {
		user = &discordgo.User{}
	}
	display := m.Nick
	if display == "" {
		display = user.GlobalName
	}
	member := &platformx.Member{
		GuildID:         g.ID,
		UserID:          user.ID,
		Username:        user.Username,
		DisplayName:     display,
		Bot:             user.Bot,
		RoleIDs:         append([]string(nil), m.Roles...),
		JoinedAt:        m.JoinedAt.UTC(),
		Permissions:     perms,
		TopRolePosition: top,
		IsOwner:         g.OwnerID == user.ID,
	}
	if m.CommunicationDisabledUntil != nil {
		member.TimeoutUntil = m.CommunicationDisabledUntil.UTC()
	}
	return member
}
