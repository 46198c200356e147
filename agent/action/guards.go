package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

// scope is the originating channel, its guild and the calling member,
// resolved fresh for every call.
type scope struct {
	channel *platformx.Channel
	guild   *platformx.Guild
	member  *platformx.Member
}

func (s scope) guildID() string {
	return s.guild.ID
}

func loadScope(ctx context.Context, ec contractx.ExecutionContext) (scope, error) {
	if ec.Platform == nil {
		return scope{}, fmt.Errorf("no platform connection is available")
	}
	channel, err := ec.Platform.Channel(ctx, ec.ChannelID)
	if err != nil {
		return scope{}, describe(err, "channel", ec.ChannelID)
	}
	if channel.GuildID == "" {
		return scope{}, fmt.Errorf("this action only works inside a server")
	}
	guild, err := ec.Platform.Guild(ctx, channel.GuildID)
	if err != nil {
		return scope{}, describe(err, "server", channel.GuildID)
	}
	member, err := ec.Platform.Member(ctx, guild.ID, ec.UserID)
	if err != nil {
		return scope{}, describe(err, "member", ec.UserID)
	}
	return scope{channel: channel, guild: guild, member: member}, nil
}

func requirePermission(m *platformx.Member, perm platformx.Permission, verb string) error {
	if m.IsOwner || m.Permissions.Has(perm) {
		return nil
	}
	return fmt.Errorf("%w: you need the %s permission to %s", contractx.ErrPermission, perm, verb)
}

// requireChannelPermission checks perm in ch after its overwrites, so
// private channels stay closed to members who cannot see them.
func requireChannelPermission(m *platformx.Member, ch *platformx.Channel, perm platformx.Permission, verb string) error {
	have := m.PermissionsIn(ch)
	if have.Has(perm) {
		return nil
	}
	missing := perm &^ have
	return fmt.Errorf("%w: you need the %s permission in #%s to %s", contractx.ErrPermission, missing, ch.Name, verb)
}

func preventSelf(ec contractx.ExecutionContext, targetID string, verb string) error {
	if strings.TrimSpace(targetID) == ec.UserID {
		return fmt.Errorf("%w: you cannot %s yourself", contractx.ErrPermission, verb)
	}
	return nil
}

// guildChannel resolves a channel id (falling back to the originating one)
// and insists it belongs to the scope's guild.
func guildChannel(ctx context.Context, ec contractx.ExecutionContext, sc scope, channelID string) (*platformx.Channel, error) {
	if channelID == "" || channelID == sc.channel.ID {
		return sc.channel, nil
	}
	ch, err := ec.Platform.Channel(ctx, channelID)
	if err != nil {
		return nil, describe(err, "channel", channelID)
	}
	if ch.GuildID != sc.guildID() {
		return nil, fmt.Errorf("%w: channel %s is not in this server", contractx.ErrNotFound, channelID)
	}
	return ch, nil
}

func guildMember(ctx context.Context, ec contractx.ExecutionContext, sc scope, userID string) (*platformx.Member, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: a user id is required", contractx.ErrValidation)
	}
	m, err := ec.Platform.Member(ctx, sc.guildID(), userID)
	if err != nil {
		return nil, describe(err, "member", userID)
	}
	return m, nil
}

func guildRole(ctx context.Context, ec contractx.ExecutionContext, sc scope, roleID string) (*platformx.Role, error) {
	roles, err := ec.Platform.Roles(ctx, sc.guildID())
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	for i := range roles {
		if roles[i].ID == roleID {
			return &roles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: role %s does not exist in this server", contractx.ErrNotFound, roleID)
}

func describe(err error, kind string, id string) error {
	if errors.Is(err, platformx.ErrNotFound) {
		return fmt.Errorf("%w: %s %s does not exist", contractx.ErrNotFound, kind, id)
	}
	return fmt.Errorf("look up %s %s: %w", kind, id, err)
}

func limitBetween(v int64, fallback int64, lo int64, hi int64) int64 {
	if v == 0 {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
