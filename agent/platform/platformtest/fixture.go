package platformtest

import (
	"time"

	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

// Ids of the Seeded guild.
const (
	GuildID         = "900"
	OwnerID         = "1"
	ModeratorID     = "2"
	AliceID         = "3"
	BobID           = "4"
	HelperID        = "5"
	BotID           = "6"
	GeneralID       = "100"
	TicketsCategory = "101"
	VoiceID         = "102"
	ModRoleID       = "200"
	SupportRoleID   = "201"
	MemberRoleID    = "202"
)

const moderatorPerms = platformx.PermManageRoles |
	platformx.PermManageChannels |
	platformx.PermBanMembers |
	platformx.PermModerateMembers |
	platformx.PermManageMessages |
	platformx.PermManageEvents |
	platformx.PermManageGuild

// Seeded returns a platform with one guild: an owner, a moderator, two
// regular members, a support helper and a bot.
func Seeded() *Platform {
	p := New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	p.AddGuild(platformx.Guild{ID: GuildID, Name: "Guild Hall", Description: "Test guild", OwnerID: OwnerID, CreatedAt: created})

	p.AddRole(GuildID, platformx.Role{ID: GuildID, Name: "@everyone", Permissions: platformx.PermViewChannel | platformx.PermSendMessages})
	p.AddRole(GuildID, platformx.Role{ID: ModRoleID, Name: "Moderator", Position: 5, Permissions: moderatorPerms, Hoist: true})
	p.AddRole(GuildID, platformx.Role{ID: SupportRoleID, Name: "Support", Position: 3})
	p.AddRole(GuildID, platformx.Role{ID: MemberRoleID, Name: "Member", Position: 1, Mentionable: true})

	p.AddChannel(platformx.Channel{ID: GeneralID, GuildID: GuildID, Name: "general", Type: platformx.ChannelText, Topic: "Chat", Position: 0})
	p.AddChannel(platformx.Channel{ID: TicketsCategory, GuildID: GuildID, Name: "Tickets", Type: platformx.ChannelCategory, Position: 1})
	p.AddChannel(platformx.Channel{ID: VoiceID, GuildID: GuildID, Name: "Lounge", Type: platformx.ChannelVoice, Position: 2})

	joined := created.Add(24 * time.Hour)
	p.AddMember(platformx.Member{GuildID: GuildID, UserID: OwnerID, Username: "owner", JoinedAt: created})
	p.AddMember(platformx.Member{GuildID: GuildID, UserID: ModeratorID, Username: "mod", DisplayName: "Mod", RoleIDs: []string{ModRoleID}, JoinedAt: joined})
	p.AddMember(platformx.Member{GuildID: GuildID, UserID: AliceID, Username: "alice", RoleIDs: []string{MemberRoleID}, JoinedAt: joined})
	p.AddMember(platformx.Member{GuildID: GuildID, UserID: BobID, Username: "bob", DisplayName: "Bobby", RoleIDs: []string{MemberRoleID}, JoinedAt: joined})
	p.AddMember(platformx.Member{GuildID: GuildID, UserID: HelperID, Username: "helper", RoleIDs: []string{SupportRoleID}, JoinedAt: joined})
	p.AddMember(platformx.Member{GuildID: GuildID, UserID: BotID, Username: "robot", Bot: true, JoinedAt: joined})
	return p
}
