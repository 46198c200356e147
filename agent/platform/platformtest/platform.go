// Package platformtest provides an in-memory Platform for tests and local
// dry runs.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
)

// Platform keeps guild state in memory. Errors registered with FailOn are
// returned by the named method before it touches any state.
type Platform struct {
	mu       sync.Mutex
	nextID   int64
	guilds   map[string]*platformx.Guild
	channels map[string]*platformx.Channel
	members  map[string]map[string]*platformx.Member
	roles    map[string][]*platformx.Role
	messages []platformx.Message
	dms      []platformx.Message
	bans     map[string][]string
	events   []platformx.ScheduledEvent
	overw    map[string][]platformx.PermissionOverwrite
	failures map[string]error
	calls    []string
}

func New() *Platform {
	return &Platform{
		nextID:   1000,
		guilds:   make(map[string]*platformx.Guild),
		channels: make(map[string]*platformx.Channel),
		members:  make(map[string]map[string]*platformx.Member),
		roles:    make(map[string][]*platformx.Role),
		bans:     make(map[string][]string),
		overw:    make(map[string][]platformx.PermissionOverwrite),
		failures: make(map[string]error),
	}
}

// FailOn makes method return err on every later call. A nil err clears it.
func (p *Platform) FailOn(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, method)
		return
	}
	p.failures[method] = err
}

// FailAll makes every method return err.
func (p *Platform) FailAll(err error) {
	p.FailOn("*", err)
}

func (p *Platform) enter(method string) error {
	p.calls = append(p.calls, method)
	if err, ok := p.failures[method]; ok {
		return err
	}
	if err, ok := p.failures["*"]; ok {
		return err
	}
	return nil
}

// Calls returns the method names invoked so far, in order.
func (p *Platform) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Platform) id() string {
	p.nextID++
	return strconv.FormatInt(p.nextID, 10)
}

func (p *Platform) AddGuild(g platformx.Guild) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guilds[g.ID] = &g
	if p.members[g.ID] == nil {
		p.members[g.ID] = make(map[string]*platformx.Member)
	}
}

func (p *Platform) AddChannel(c platformx.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(c.Overwrites) > 0 {
		p.overw[c.ID] = append([]platformx.PermissionOverwrite(nil), c.Overwrites...)
	}
	c.Overwrites = nil
	p.channels[c.ID] = &c
}

func (p *Platform) AddMember(m platformx.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[m.GuildID] == nil {
		p.members[m.GuildID] = make(map[string]*platformx.Member)
	}
	p.members[m.GuildID][m.UserID] = &m
}

func (p *Platform) AddRole(guildID string, r platformx.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[guildID] = append(p.roles[guildID], &r)
}

func (p *Platform) Messages() []platformx.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformx.Message(nil), p.messages...)
}

func (p *Platform) DirectMessages() []platformx.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformx.Message(nil), p.dms...)
}

func (p *Platform) Bans(guildID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.bans[guildID]...)
}

func (p *Platform) Events() []platformx.ScheduledEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformx.ScheduledEvent(nil), p.events...)
}

func (p *Platform) Overwrites(channelID string) []platformx.PermissionOverwrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platformx.PermissionOverwrite(nil), p.overw[channelID]...)
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", platformx.ErrNotFound, kind, id)
}

func (p *Platform) Guild(_ context.Context, guildID string) (*platformx.Guild, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Guild"); err != nil {
		return nil, err
	}
	g, ok := p.guilds[guildID]
	if !ok {
		return nil, notFound("guild", guildID)
	}
	out := *g
	out.MemberCount = len(p.members[guildID])
	return &out, nil
}

func (p *Platform) Channel(_ context.Context, channelID string) (*platformx.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Channel"); err != nil {
		return nil, err
	}
	c, ok := p.channels[channelID]
	if !ok {
		return nil, notFound("channel", channelID)
	}
	return p.withOverwrites(c), nil
}

func (p *Platform) withOverwrites(c *platformx.Channel) *platformx.Channel {
	out := *c
	out.Overwrites = append([]platformx.PermissionOverwrite(nil), p.overw[c.ID]...)
	return &out
}

func (p *Platform) Channels(_ context.Context, guildID string) ([]platformx.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Channels"); err != nil {
		return nil, err
	}
	var out []platformx.Channel
	for _, c := range p.channels {
		if c.GuildID == guildID {
			out = append(out, *p.withOverwrites(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (p *Platform) Member(_ context.Context, guildID string, userID string) (*platformx.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Member"); err != nil {
		return nil, err
	}
	m, ok := p.members[guildID][userID]
	if !ok {
		return nil, notFound("member", userID)
	}
	return p.folded(m), nil
}

// folded copies m with permissions and top position derived from its roles.
func (p *Platform) folded(m *platformx.Member) *platformx.Member {
	out := *m
	out.RoleIDs = append([]string(nil), m.RoleIDs...)
	if g, ok := p.guilds[m.GuildID]; ok && g.OwnerID == m.UserID {
		out.IsOwner = true
	}
	for _, r := range p.roles[m.GuildID] {
		if r.ID == m.GuildID || out.HasRole(r.ID) {
			out.Permissions |= r.Permissions
			if r.ID != m.GuildID && r.Position > out.TopRolePosition {
				out.TopRolePosition = r.Position
			}
		}
	}
	return &out
}

func (p *Platform) SearchMembers(_ context.Context, guildID string, query string, limit int) ([]platformx.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SearchMembers"); err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var out []platformx.Member
	for _, m := range p.members[guildID] {
		if strings.HasPrefix(strings.ToLower(m.Username), query) || strings.HasPrefix(strings.ToLower(m.DisplayName), query) {
			out = append(out, *p.folded(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *Platform) Roles(_ context.Context, guildID string) ([]platformx.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("Roles"); err != nil {
		return nil, err
	}
	out := make([]platformx.Role, 0, len(p.roles[guildID]))
	for _, r := range p.roles[guildID] {
		out = append(out, *r)
	}
	return out, nil
}

func (p *Platform) CreateRole(_ context.Context, guildID string, params platformx.RoleParams) (*platformx.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateRole"); err != nil {
		return nil, err
	}
	r := &platformx.Role{
		ID:          p.id(),
		Name:        params.Name,
		Color:       params.Color,
		Position:    1,
		Permissions: params.Permissions,
		Hoist:       params.Hoist,
		Mentionable: params.Mentionable,
	}
	p.roles[guildID] = append(p.roles[guildID], r)
	out := *r
	return &out, nil
}

func (p *Platform) DeleteRole(_ context.Context, guildID string, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteRole"); err != nil {
		return err
	}
	roles := p.roles[guildID]
	for i, r := range roles {
		if r.ID == roleID {
			p.roles[guildID] = append(roles[:i], roles[i+1:]...)
			for _, m := range p.members[guildID] {
				m.RoleIDs = without(m.RoleIDs, roleID)
			}
			return nil
		}
	}
	return notFound("role", roleID)
}

func (p *Platform) AddMemberRole(_ context.Context, guildID string, userID string, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("AddMemberRole"); err != nil {
		return err
	}
	m, ok := p.members[guildID][userID]
	if !ok {
		return notFound("member", userID)
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (p *Platform) RemoveMemberRole(_ context.Context, guildID string, userID string, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("RemoveMemberRole"); err != nil {
		return err
	}
	m, ok := p.members[guildID][userID]
	if !ok {
		return notFound("member", userID)
	}
	m.RoleIDs = without(m.RoleIDs, roleID)
	return nil
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (p *Platform) CreateChannel(_ context.Context, guildID string, params platformx.ChannelParams) (*platformx.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateChannel"); err != nil {
		return nil, err
	}
	c := &platformx.Channel{
		ID:       p.id(),
		GuildID:  guildID,
		Name:     params.Name,
		Type:     params.Type,
		Topic:    params.Topic,
		ParentID: params.ParentID,
		Position: len(p.channels),
	}
	p.channels[c.ID] = c
	if len(params.Overwrites) > 0 {
		p.overw[c.ID] = append([]platformx.PermissionOverwrite(nil), params.Overwrites...)
	}
	return p.withOverwrites(c), nil
}

func (p *Platform) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteChannel"); err != nil {
		return err
	}
	if _, ok := p.channels[channelID]; !ok {
		return notFound("channel", channelID)
	}
	delete(p.channels, channelID)
	delete(p.overw, channelID)
	return nil
}

func (p *Platform) SetPermissionOverwrite(_ context.Context, channelID string, overwrite platformx.PermissionOverwrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SetPermissionOverwrite"); err != nil {
		return err
	}
	if _, ok := p.channels[channelID]; !ok {
		return notFound("channel", channelID)
	}
	list := p.overw[channelID]
	for i := range list {
		if list[i].ID == overwrite.ID {
			list[i] = overwrite
			return nil
		}
	}
	p.overw[channelID] = append(list, overwrite)
	return nil
}

func (p *Platform) SendMessage(_ context.Context, channelID string, content string) (*platformx.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SendMessage"); err != nil {
		return nil, err
	}
	if _, ok := p.channels[channelID]; !ok {
		return nil, notFound("channel", channelID)
	}
	msg := platformx.Message{ID: p.id(), ChannelID: channelID, Content: content, CreatedAt: time.Now().UTC()}
	p.messages = append(p.messages, msg)
	return &msg, nil
}

func (p *Platform) SendDirectMessage(_ context.Context, userID string, content string) (*platformx.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SendDirectMessage"); err != nil {
		return nil, err
	}
	msg := platformx.Message{ID: p.id(), ChannelID: "dm:" + userID, Content: content, CreatedAt: time.Now().UTC()}
	p.dms = append(p.dms, msg)
	return &msg, nil
}

func (p *Platform) BanMember(_ context.Context, guildID string, userID string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("BanMember"); err != nil {
		return err
	}
	p.bans[guildID] = append(p.bans[guildID], userID)
	delete(p.members[guildID], userID)
	return nil
}

func (p *Platform) TimeoutMember(_ context.Context, guildID string, userID string, until time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("TimeoutMember"); err != nil {
		return err
	}
	m, ok := p.members[guildID][userID]
	if !ok {
		return notFound("member", userID)
	}
	m.TimeoutUntil = until
	return nil
}

func (p *Platform) CreateScheduledEvent(_ context.Context, guildID string, params platformx.EventParams) (*platformx.ScheduledEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateScheduledEvent"); err != nil {
		return nil, err
	}
	ev := platformx.ScheduledEvent{
		ID:          p.id(),
		GuildID:     guildID,
		ChannelID:   params.ChannelID,
		Name:        params.Name,
		Description: params.Description,
		Location:    params.Location,
		StartTime:   params.Start,
		EndTime:     params.End,
	}
	p.events = append(p.events, ev)
	return &ev, nil
}

var _ platformx.Platform = (*Platform)(nil)
