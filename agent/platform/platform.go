// Package platform describes the chat-platform boundary the actions run
// against. Implementations resolve ids to live entities on every call and
// return ErrNotFound (wrapped) for ids that do not exist.
package platform

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("platform entity not found")

type Platform interface {
	Guild(ctx context.Context, guildID string) (*Guild, error)
	Channel(ctx context.Context, channelID string) (*Channel, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	Member(ctx context.Context, guildID string, userID string) (*Member, error)
	SearchMembers(ctx context.Context, guildID string, query string, limit int) ([]Member, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)

	CreateRole(ctx context.Context, guildID string, params RoleParams) (*Role, error)
	DeleteRole(ctx context.Context, guildID string, roleID string) error
	AddMemberRole(ctx context.Context, guildID string, userID string, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID string, userID string, roleID string) error

	CreateChannel(ctx context.Context, guildID string, params ChannelParams) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	SetPermissionOverwrite(ctx context.Context, channelID string, overwrite PermissionOverwrite) error

	SendMessage(ctx context.Context, channelID string, content string) (*Message, error)
	SendDirectMessage(ctx context.Context, userID string, content string) (*Message, error)

	BanMember(ctx context.Context, guildID string, userID string, reason string) error
	TimeoutMember(ctx context.Context, guildID string, userID string, until time.Time) error

	CreateScheduledEvent(ctx context.Context, guildID string, params EventParams) (*ScheduledEvent, error)
}
