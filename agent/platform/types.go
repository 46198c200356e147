package platform

import (
	"strings"
	"time"
)

type Permission uint64

const (
	PermCreateInvite    Permission = 1 << 0
	PermKickMembers     Permission = 1 << 1
	PermBanMembers      Permission = 1 << 2
	PermAdministrator   Permission = 1 << 3
	PermManageChannels  Permission = 1 << 4
	PermManageGuild     Permission = 1 << 5
	PermViewChannel     Permission = 1 << 10
	PermSendMessages    Permission = 1 << 11
	PermManageMessages  Permission = 1 << 13
	PermManageRoles     Permission = 1 << 28
	PermManageEvents    Permission = 1 << 33
	PermModerateMembers Permission = 1 << 40
)

var permissionNames = []struct {
	perm Permission
	name string
}{
	{PermCreateInvite, "Create Invite"},
	{PermKickMembers, "Kick Members"},
	{PermBanMembers, "Ban Members"},
	{PermAdministrator, "Administrator"},
	{PermManageChannels, "Manage Channels"},
	{PermManageGuild, "Manage Server"},
	{PermViewChannel, "View Channel"},
	{PermSendMessages, "Send Messages"},
	{PermManageMessages, "Manage Messages"},
	{PermManageRoles, "Manage Roles"},
	{PermManageEvents, "Manage Events"},
	{PermModerateMembers, "Timeout Members"},
}

// Has reports whether every bit of perm is set. Administrator implies all.
func (p Permission) Has(perm Permission) bool {
	if p&PermAdministrator != 0 {
		return true
	}
	return p&perm == perm
}

func (p Permission) String() string {
	var names []string
	for _, pn := range permissionNames {
		if p&pn.perm != 0 {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

type ChannelType int

const (
	ChannelText         ChannelType = 0
	ChannelDM           ChannelType = 1
	ChannelVoice        ChannelType = 2
	ChannelCategory     ChannelType = 4
	ChannelAnnouncement ChannelType = 5
	ChannelStage        ChannelType = 13
	ChannelForum        ChannelType = 15
)

var channelTypeNames = map[ChannelType]string{
	ChannelText:         "text",
	ChannelDM:           "dm",
	ChannelVoice:        "voice",
	ChannelCategory:     "category",
	ChannelAnnouncement: "announcement",
	ChannelStage:        "stage",
	ChannelForum:        "forum",
}

func (t ChannelType) String() string {
	if name, ok := channelTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseChannelType maps a user-facing name to a type. Unknown names report false.
func ParseChannelType(name string) (ChannelType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range channelTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

type Guild struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	MemberCount int
	CreatedAt   time.Time
}

type Channel struct {
	ID       string
	GuildID  string
	Name     string
	Type     ChannelType
	Topic    string
	ParentID string
	Position int
	NSFW     bool

	Overwrites []PermissionOverwrite
}

type Role struct {
	ID          string
	Name        string
	Color       int
	Position    int
	Permissions Permission
	Hoist       bool
	Mentionable bool
	Managed     bool
}

// Member is a guild member with guild-level permissions already folded from
// their roles.
type Member struct {
	GuildID         string
	UserID          string
	Username        string
	DisplayName     string
	Bot             bool
	RoleIDs         []string
	JoinedAt        time.Time
	Permissions     Permission
	TopRolePosition int
	IsOwner         bool
	TimeoutUntil    time.Time
}

func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// PermissionsIn applies the channel's overwrites to the member's guild-level
// permissions: @everyone first, then the member's roles combined, then the
// member itself. Owners and administrators are never restricted.
func (m *Member) PermissionsIn(ch *Channel) Permission {
	if m.IsOwner || m.Permissions&PermAdministrator != 0 {
		return m.Permissions | PermAdministrator
	}
	perms := m.Permissions
	if ch == nil {
		return perms
	}
	var roleAllow, roleDeny Permission
	var self *PermissionOverwrite
	for i := range ch.Overwrites {
		ow := &ch.Overwrites[i]
		switch {
		case ow.Type == OverwriteRole && ow.ID == m.GuildID:
			perms = perms&^ow.Deny | ow.Allow
		case ow.Type == OverwriteRole && m.HasRole(ow.ID):
			roleAllow |= ow.Allow
			roleDeny |= ow.Deny
		case ow.Type == OverwriteMember && ow.ID == m.UserID:
			self = ow
		}
	}
	perms = perms&^roleDeny | roleAllow
	if self != nil {
		perms = perms&^self.Deny | self.Allow
	}
	return perms
}

// Outranks reports whether the member may manage a role at position.
func (m *Member) Outranks(position int) bool {
	return m.IsOwner || m.TopRolePosition > position
}

type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

type ScheduledEvent struct {
	ID          string
	GuildID     string
	ChannelID   string
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
}

type RoleParams struct {
	Name        string
	Color       int
	Hoist       bool
	Mentionable bool
	Permissions Permission
}

type ChannelParams struct {
	Name       string
	Type       ChannelType
	ParentID   string
	Topic      string
	Overwrites []PermissionOverwrite
}

type OverwriteType int

const (
	OverwriteRole   OverwriteType = 0
	OverwriteMember OverwriteType = 1
)

type PermissionOverwrite struct {
	ID    string
	Type  OverwriteType
	Allow Permission
	Deny  Permission
}

// EventParams describes an external (location-based) event when ChannelID is
// empty and a voice/stage event otherwise.
type EventParams struct {
	Name        string
	Description string
	Location    string
	ChannelID   string
	Start       time.Time
	End         time.Time
}
