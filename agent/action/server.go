package action

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

type serverInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
	MemberCount int    `json:"memberCount"`
	CreatedAt   string `json:"createdAt"`
}

type channelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	ParentID string `json:"parentId"`
	Position int    `json:"position"`
	NSFW     bool   `json:"nsfw"`
}

type channelSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parentId"`
}

type userInfo struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Bot         bool     `json:"bot"`
	RoleIDs     []string `json:"roleIds"`
	JoinedAt    string   `json:"joinedAt"`
	IsOwner     bool     `json:"isOwner"`
	Permissions string   `json:"permissions"`
}

type memberSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type roleSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Color       int    `json:"color"`
	Mentionable bool   `json:"mentionable"`
}

var (
	channelSummaryFields = []Field{
		str("id", "Channel id.", nil),
		str("name", "Channel name.", nil),
		str("type", "Channel type.", nil),
		str("parentId", "Parent category id, empty when none.", nil),
	}
	memberSummaryFields = []Field{
		str("id", "User id.", nil),
		str("username", "Account username.", nil),
		str("displayName", "Name shown in this server.", nil),
	}
	roleSummaryFields = []Field{
		str("id", "Role id.", nil),
		str("name", "Role name.", nil),
		integer("position", "Hierarchy position, higher outranks lower.", nil),
		integer("color", "RGB color as an integer.", nil),
		boolean("mentionable", "Whether anyone can mention the role.", nil),
	}
)

func serverActions() []builtin {
	return []builtin{
		{
			decl: Declaration{
				Name:        "getServerInfo",
				Description: "Get information about the server the request came from.",
				Response: []Field{
					str("id", "Server id.", nil),
					str("name", "Server name.", nil),
					str("description", "Server description.", nil),
					str("ownerId", "User id of the server owner.", nil),
					integer("memberCount", "Approximate member count.", nil),
					str("createdAt", "Creation time, RFC 3339.", nil),
				},
			},
			exec: getServerInfo,
		},
		{
			decl: Declaration{
				Name:        "getChannelInfo",
				Description: "Get details of a channel. Defaults to the channel the request came from.",
				Parameters: []Field{
					str("channelId", "Channel id to inspect.", "112233445566778899"),
				},
				Response: []Field{
					str("id", "Channel id.", nil),
					str("name", "Channel name.", nil),
					str("type", "Channel type.", nil),
					str("topic", "Channel topic.", nil),
					str("parentId", "Parent category id, empty when none.", nil),
					integer("position", "Sort position.", nil),
					boolean("nsfw", "Whether the channel is age restricted.", nil),
				},
			},
			exec: getChannelInfo,
		},
		{
			decl: Declaration{
				Name:        "listChannels",
				Description: "List the server's channels, optionally filtered by type.",
				Parameters: []Field{
					oneOf(str("type", "Only list channels of this type.", "text"), "text", "voice", "category", "announcement", "stage", "forum"),
				},
				Response: []Field{
					list("channels", "Matching channels.", object("channel", "", channelSummaryFields...)),
					integer("count", "Number of channels returned.", nil),
				},
			},
			exec: listChannels,
		},
		{
			decl: Declaration{
				Name:        "getUserInfo",
				Description: "Get a server member's profile. Defaults to the requesting user.",
				Parameters: []Field{
					str("userId", "User id to inspect.", "998877665544332211"),
				},
				Response: []Field{
					str("id", "User id.", nil),
					str("username", "Account username.", nil),
					str("displayName", "Name shown in this server.", nil),
					boolean("bot", "Whether the account is a bot.", nil),
					list("roleIds", "Ids of the member's roles.", str("roleId", "", nil)),
					str("joinedAt", "When the member joined, RFC 3339.", nil),
					boolean("isOwner", "Whether the member owns the server.", nil),
					str("permissions", "Comma separated server permissions.", nil),
				},
			},
			exec: getUserInfo,
		},
		{
			decl: Declaration{
				Name:        "findMember",
				Description: "Search server members whose username or nickname starts with the query.",
				Parameters: []Field{
					required(str("query", "Name prefix to search for.", "alex")),
					integer("limit", "Maximum results, 1 to 25.", 5),
				},
				Response: []Field{
					list("members", "Matching members.", object("member", "", memberSummaryFields...)),
					integer("count", "Number of members returned.", nil),
				},
			},
			exec: findMember,
		},
		{
			decl: Declaration{
				Name:        "listRoles",
				Description: "List the server's roles from highest to lowest.",
				Response: []Field{
					list("roles", "Roles in hierarchy order.", object("role", "", roleSummaryFields...)),
					integer("count", "Number of roles.", nil),
				},
			},
			exec: listRoles,
		},
	}
}

func getServerInfo(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, _ Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	g := sc.guild
	return serverInfo{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		MemberCount: g.MemberCount,
		CreatedAt:   formatTime(g.CreatedAt),
	}, nil
}

func getChannelInfo(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	ch, err := guildChannel(ctx, ec, sc, p.String("channelId"))
	if err != nil {
		return nil, err
	}
	if err := requireChannelPermission(sc.member, ch, platformx.PermViewChannel, "see this channel"); err != nil {
		return nil, err
	}
	return channelInfo{
		ID:       ch.ID,
		Name:     ch.Name,
		Type:     ch.Type.String(),
		Topic:    ch.Topic,
		ParentID: ch.ParentID,
		Position: ch.Position,
		NSFW:     ch.NSFW,
	}, nil
}

func listChannels(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	var (
		filter    platformx.ChannelType
		hasFilter bool
	)
	if name := p.String("type"); name != "" {
		filter, hasFilter = platformx.ParseChannelType(name)
		if !hasFilter {
			return nil, fmt.Errorf("%w: unknown channel type %q", contractx.ErrValidation, name)
		}
	}
	channels, err := ec.Platform.Channels(ctx, sc.guildID())
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	out := make([]channelSummary, 0, len(channels))
	for _, ch := range channels {
		if hasFilter && ch.Type != filter {
			continue
		}
		if !sc.member.PermissionsIn(&ch).Has(platformx.PermViewChannel) {
			continue
		}
		out = append(out, channelSummary{ID: ch.ID, Name: ch.Name, Type: ch.Type.String(), ParentID: ch.ParentID})
	}
	return map[string]any{"channels": out, "count": len(out)}, nil
}

func getUserInfo(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	m := sc.member
	if id := p.String("userId"); id != "" && id != ec.UserID {
		if m, err = guildMember(ctx, ec, sc, id); err != nil {
			return nil, err
		}
	}
	roleIDs := m.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return userInfo{
		ID:          m.UserID,
		Username:    m.Username,
		DisplayName: displayName(m),
		Bot:         m.Bot,
		RoleIDs:     roleIDs,
		JoinedAt:    formatTime(m.JoinedAt),
		IsOwner:     m.IsOwner,
		Permissions: m.Permissions.String(),
	}, nil
}

func findMember(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	query := p.String("query")
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", contractx.ErrValidation)
	}
	limit := limitBetween(p.Int("limit"), 5, 1, 25)
	members, err := ec.Platform.SearchMembers(ctx, sc.guildID(), query, int(limit))
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	out := make([]memberSummary, 0, len(members))
	for i := range members {
		out = append(out, memberSummary{ID: members[i].UserID, Username: members[i].Username, DisplayName: displayName(&members[i])})
	}
	return map[string]any{"members": out, "count": len(out)}, nil
}

func listRoles(ctx context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, _ Params) (any, error) {
	sc, err := loadScope(ctx, ec)
	if err != nil {
		return nil, err
	}
	roles, err := ec.Platform.Roles(ctx, sc.guildID())
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]roleSummary, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleSummary{ID: r.ID, Name: r.Name, Position: r.Position, Color: r.Color, Mentionable: r.Mentionable})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position > out[j].Position })
	return map[string]any{"roles": out, "count": len(out)}, nil
}

func displayName(m *platformx.Member) string {
	if strings.TrimSpace(m.DisplayName) != "" {
		return m.DisplayName
	}
	return m.Username
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
