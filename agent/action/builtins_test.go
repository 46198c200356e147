package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	platformx "github.com/tanpawarit/chative-guildbot/agent/platform"
	"github.com/tanpawarit/chative-guildbot/agent/platform/platformtest"
	storex "github.com/tanpawarit/chative-guildbot/agent/store"
)

var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, text string, lang string) (string, error) {
	return "[" + lang + "] " + text, nil
}

type fakeScheduler struct {
	mu   sync.Mutex
	sent []contractx.ScheduledMessage
}

func (f *fakeScheduler) Schedule(_ context.Context, msg contractx.ScheduledMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

type testEnv struct {
	platform  *platformtest.Platform
	store     *storex.Store
	scheduler *fakeScheduler
	registry  *Registry
	settings  contractx.GuildSettings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storex.Open(storex.Config{
		Driver: storex.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storex.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	env := &testEnv{
		platform:  platformtest.Seeded(),
		store:     storex.New(db),
		scheduler: &fakeScheduler{},
		registry:  NewRegistry(),
	}
	env.settings = contractx.DefaultGuildSettings(platformtest.GuildID)
	env.settings.SupportRoleID = platformtest.SupportRoleID
	env.settings.TicketCategoryID = platformtest.TicketsCategory

	err = RegisterBuiltins(env.registry, Dependencies{
		Tickets:    env.store,
		Levels:     env.store,
		Translator: fakeTranslator{},
		Scheduler:  env.scheduler,
	})
	if err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}
	env.registry.Seal()
	return env
}

func (e *testEnv) context(userID string, channelID string) contractx.ExecutionContext {
	return contractx.ExecutionContext{
		ConversationID: "test",
		Platform:       e.platform,
		ChannelID:      channelID,
		UserID:         userID,
		Settings:       e.settings,
		Now:            func() time.Time { return testNow },
	}
}

func (e *testEnv) run(t *testing.T, userID string, name string, params map[string]any) contractx.ActionResult {
	t.Helper()
	return e.runIn(t, userID, platformtest.GeneralID, name, params)
}

func (e *testEnv) runIn(t *testing.T, userID string, channelID string, name string, params map[string]any) contractx.ActionResult {
	t.Helper()
	return e.registry.Execute(context.Background(), e.context(userID, channelID), nil, name, params)
}

// validParams holds a well-formed call for every built-in action.
var validParams = map[string]map[string]any{
	"getServerInfo":        {},
	"getChannelInfo":       {},
	"listChannels":         {"type": "text"},
	"getUserInfo":          {"userId": platformtest.AliceID},
	"findMember":           {"query": "a"},
	"listRoles":            {},
	"createRole":           {"name": "Raiders"},
	"deleteRole":           {"roleId": platformtest.MemberRoleID},
	"addRoleToMember":      {"userId": platformtest.AliceID, "roleId": platformtest.SupportRoleID},
	"removeRoleFromMember": {"userId": platformtest.AliceID, "roleId": platformtest.MemberRoleID},
	"createChannel":        {"name": "raid chat", "parentId": platformtest.TicketsCategory},
	"createCategory":       {"name": "Raids"},
	"deleteChannel":        {"channelId": platformtest.VoiceID},
	"setChannelLock":       {"locked": true},
	"banMember":            {"userId": platformtest.BobID},
	"timeoutMember":        {"userId": platformtest.BobID, "minutes": 10},
	"sendMessage":          {"content": "hello"},
	"sendDirectMessage":    {"userId": platformtest.AliceID, "content": "hello"},
	"scheduleMessage":      {"content": "later", "minutes": 5},
	"createScheduledEvent": {"name": "Raid", "startTime": "2026-03-05T18:00:00Z", "channelId": platformtest.VoiceID},
	"createTicket":         {"subject": "help"},
	"getTicketInfo":        {},
	"listOpenTickets":      {},
	"claimTicket":          {},
	"closeTicket":          {},
	"getUserLevel":         {},
	"getLeaderboard":       {},
	"addXp":                {"userId": platformtest.AliceID, "amount": 50},
	"addCredits":           {"userId": platformtest.AliceID, "amount": 50},
	"getCurrentTime":       {},
	"delay":                {"seconds": 0},
	"evaluateMath":         {"expression": "1 + 1"},
	"translateText":        {"text": "hi", "targetLanguage": "French"},
	"response":             {"responseMessage": "done"},
}

// Actions that never reach the platform.
var platformFree = map[string]bool{
	"getCurrentTime": true,
	"delay":          true,
	"evaluateMath":   true,
	"translateText":  true,
	"response":       true,
}

func TestBuiltinsAreAllCovered(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, name := range env.registry.Names() {
		if _, ok := validParams[name]; !ok {
			t.Errorf("no test parameters for action %s", name)
		}
	}
	if len(env.registry.Names()) != len(validParams) {
		t.Fatalf("registered %d actions, test table has %d", len(env.registry.Names()), len(validParams))
	}
}

func TestBuiltinsFailWhenPlatformErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.platform.FailAll(errors.New("gateway timeout"))
	for _, name := range env.registry.Names() {
		if platformFree[name] {
			continue
		}
		res := env.run(t, platformtest.ModeratorID, name, validParams[name])
		if res.Success {
			t.Errorf("%s succeeded although every platform call failed", name)
		}
		if res.Error == "" {
			t.Errorf("%s failed without a message", name)
		}
	}
}

// brokenPlatform panics on every call through its nil embedded interface.
type brokenPlatform struct {
	platformx.Platform
}

func TestBuiltinsNeverPanicOutOfExecute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ec := env.context(platformtest.ModeratorID, platformtest.GeneralID)
	ec.Platform = brokenPlatform{}
	for _, name := range env.registry.Names() {
		res := env.registry.Execute(context.Background(), ec, nil, name, validParams[name])
		if !platformFree[name] && res.Success {
			t.Errorf("%s succeeded on a broken platform", name)
		}
	}
}

func TestSelfActionsAreRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	self := platformtest.ModeratorID

	res := env.run(t, self, "addCredits", map[string]any{"userId": self, "amount": 10})
	if res.Success {
		t.Fatal("addCredits on self must fail")
	}
	stats, err := env.store.MemberStats(context.Background(), platformtest.GuildID, self)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Credits != 0 {
		t.Fatalf("credits changed to %d", stats.Credits)
	}

	if res := env.run(t, self, "banMember", map[string]any{"userId": self}); res.Success {
		t.Fatal("banMember on self must fail")
	}
	if bans := env.platform.Bans(platformtest.GuildID); len(bans) != 0 {
		t.Fatalf("unexpected bans: %v", bans)
	}

	if res := env.run(t, self, "addRoleToMember", map[string]any{"userId": self, "roleId": platformtest.SupportRoleID}); res.Success {
		t.Fatal("addRoleToMember on self must fail")
	}
	for _, call := range env.platform.Calls() {
		if call == "AddMemberRole" || call == "BanMember" {
			t.Fatalf("mutation %s was attempted", call)
		}
	}
}

func TestPermissionChecks(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tests := []struct {
		name   string
		user   string
		params map[string]any
	}{
		{name: "createRole", user: platformtest.AliceID, params: validParams["createRole"]},
		{name: "banMember", user: platformtest.AliceID, params: validParams["banMember"]},
		{name: "deleteChannel", user: platformtest.AliceID, params: validParams["deleteChannel"]},
		{name: "addXp", user: platformtest.BobID, params: validParams["addXp"]},
		{name: "addRoleToMember", user: platformtest.ModeratorID, params: map[string]any{"userId": platformtest.AliceID, "roleId": platformtest.ModRoleID}},
		{name: "banMember", user: platformtest.ModeratorID, params: map[string]any{"userId": platformtest.OwnerID}},
	}
	for _, tt := range tests {
		res := env.run(t, tt.user, tt.name, tt.params)
		if res.Success {
			t.Errorf("%s by %s should have been denied", tt.name, tt.user)
		}
	}
}

func TestRoleChanges(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.run(t, platformtest.ModeratorID, "addRoleToMember", map[string]any{"userId": platformtest.AliceID, "roleId": platformtest.SupportRoleID})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Data["roleName"] != "Support" {
		t.Fatalf("unexpected role name: %v", res.Data["roleName"])
	}

	again := env.run(t, platformtest.ModeratorID, "addRoleToMember", map[string]any{"userId": platformtest.AliceID, "roleId": platformtest.SupportRoleID})
	if again.Success {
		t.Fatal("adding a role twice must fail")
	}

	m, err := env.platform.Member(context.Background(), platformtest.GuildID, platformtest.AliceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.HasRole(platformtest.SupportRoleID) {
		t.Fatal("role was not added")
	}
}

func TestTicketClaimFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.run(t, platformtest.AliceID, "createTicket", map[string]any{"subject": "Lost my rank"})
	if !created.Success {
		t.Fatalf("createTicket failed: %s", created.Error)
	}
	channelID, _ := created.Data["channelId"].(string)
	if channelID == "" || created.Data["status"] != "open" {
		t.Fatalf("unexpected ticket data: %v", created.Data)
	}
	if dup := env.run(t, platformtest.AliceID, "createTicket", map[string]any{"subject": "again"}); dup.Success {
		t.Fatal("a second open ticket must be rejected")
	}
	overwrites := env.platform.Overwrites(channelID)
	if len(overwrites) != 3 {
		t.Fatalf("expected 3 overwrites, got %d", len(overwrites))
	}

	if own := env.runIn(t, platformtest.AliceID, channelID, "claimTicket", nil); own.Success {
		t.Fatal("owner must not claim own ticket")
	}
	if bob := env.runIn(t, platformtest.BobID, channelID, "claimTicket", nil); bob.Success {
		t.Fatal("non-support member must not claim")
	}

	claimed := env.runIn(t, platformtest.HelperID, channelID, "claimTicket", nil)
	if !claimed.Success {
		t.Fatalf("claimTicket failed: %s", claimed.Error)
	}
	if claimed.Data["claimedBy"] != platformtest.HelperID || claimed.Data["ownerId"] != platformtest.AliceID {
		t.Fatalf("unexpected claim data: %v", claimed.Data)
	}
	if twice := env.runIn(t, platformtest.HelperID, channelID, "claimTicket", nil); twice.Success {
		t.Fatal("claiming twice must fail")
	}
	if other := env.runIn(t, platformtest.ModeratorID, channelID, "claimTicket", nil); other.Success {
		t.Fatal("claiming a claimed ticket must fail")
	}

	if bob := env.runIn(t, platformtest.BobID, channelID, "closeTicket", nil); bob.Success {
		t.Fatal("unrelated member must not close the ticket")
	}
	closed := env.runIn(t, platformtest.AliceID, channelID, "closeTicket", map[string]any{"reason": "Fixed"})
	if !closed.Success {
		t.Fatalf("closeTicket failed: %s", closed.Error)
	}
	if closed.Data["status"] != "closed" || closed.Data["reason"] != "Fixed" {
		t.Fatalf("unexpected close data: %v", closed.Data)
	}

	open := env.run(t, platformtest.ModeratorID, "listOpenTickets", nil)
	if !open.Success || open.Data["count"] != float64(0) {
		t.Fatalf("unexpected open tickets: %+v", open)
	}
}

func TestTicketActionsOutsideTicketChannel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.run(t, platformtest.HelperID, "claimTicket", nil)
	if res.Success {
		t.Fatal("claiming in a non-ticket channel must fail")
	}
	if !strings.Contains(res.Error, "no ticket") {
		t.Fatalf("unexpected error: %s", res.Error)
	}
}

func TestLeveling(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.run(t, platformtest.ModeratorID, "addXp", map[string]any{"userId": platformtest.AliceID, "amount": 120})
	if !res.Success {
		t.Fatalf("addXp failed: %s", res.Error)
	}
	if res.Data["level"] != float64(1) || res.Data["leveledUp"] != true {
		t.Fatalf("unexpected xp data: %v", res.Data)
	}

	tooMuch := env.run(t, platformtest.ModeratorID, "addXp", map[string]any{"userId": platformtest.AliceID, "amount": contractx.DefaultMaxAward + 1})
	if tooMuch.Success {
		t.Fatal("awards above the limit must fail")
	}
	toBot := env.run(t, platformtest.ModeratorID, "addCredits", map[string]any{"userId": platformtest.BotID, "amount": 5})
	if toBot.Success {
		t.Fatal("awards to bots must fail")
	}

	level := env.run(t, platformtest.AliceID, "getUserLevel", nil)
	if !level.Success || level.Data["xp"] != float64(120) || level.Data["xpIntoLevel"] != float64(20) {
		t.Fatalf("unexpected level data: %+v", level)
	}

	board := env.run(t, platformtest.AliceID, "getLeaderboard", map[string]any{"limit": 3})
	if !board.Success || board.Data["count"] != float64(1) {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	env.settings.LevelingEnabled = false
	if off := env.run(t, platformtest.ModeratorID, "addXp", map[string]any{"userId": platformtest.AliceID, "amount": 1}); off.Success {
		t.Fatal("addXp must fail when leveling is disabled")
	}
}

func TestModerationBounds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, minutes := range []any{0, 40321, "forever"} {
		res := env.run(t, platformtest.ModeratorID, "timeoutMember", map[string]any{"userId": platformtest.BobID, "minutes": minutes})
		if res.Success {
			t.Errorf("timeout of %v minutes must fail", minutes)
		}
	}
	res := env.run(t, platformtest.ModeratorID, "timeoutMember", map[string]any{"userId": platformtest.BobID, "minutes": "90"})
	if !res.Success {
		t.Fatalf("timeoutMember failed: %s", res.Error)
	}
	if res.Data["until"] != "2026-03-04T13:30:00Z" {
		t.Fatalf("unexpected until: %v", res.Data["until"])
	}

	ban := env.run(t, platformtest.ModeratorID, "banMember", map[string]any{"userId": platformtest.BobID, "reason": "spam"})
	if !ban.Success {
		t.Fatalf("banMember failed: %s", ban.Error)
	}
	if bans := env.platform.Bans(platformtest.GuildID); len(bans) != 1 || bans[0] != platformtest.BobID {
		t.Fatalf("unexpected bans: %v", bans)
	}
}

func TestScheduleMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if res := env.run(t, platformtest.ModeratorID, "scheduleMessage", map[string]any{"content": "x", "minutes": 10081}); res.Success {
		t.Fatal("delays beyond a week must fail")
	}
	if res := env.run(t, platformtest.AliceID, "scheduleMessage", map[string]any{"content": "x", "minutes": 5}); res.Success {
		t.Fatal("members without Manage Messages must be denied")
	}

	res := env.run(t, platformtest.ModeratorID, "scheduleMessage", map[string]any{"content": "Raid time", "minutes": 15})
	if !res.Success {
		t.Fatalf("scheduleMessage failed: %s", res.Error)
	}
	if res.Data["deliverAt"] != "2026-03-04T12:15:00Z" || res.Data["scheduleId"] != "msg-1" {
		t.Fatalf("unexpected data: %v", res.Data)
	}
	if len(env.scheduler.sent) != 1 || env.scheduler.sent[0].DelaySecs != 900 {
		t.Fatalf("unexpected scheduled messages: %+v", env.scheduler.sent)
	}

	env.settings.SchedulingDisabled = true
	if res := env.run(t, platformtest.ModeratorID, "scheduleMessage", map[string]any{"content": "x", "minutes": 5}); res.Success {
		t.Fatal("scheduling must fail when disabled")
	}
}

func TestCreateScheduledEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	past := env.run(t, platformtest.ModeratorID, "createScheduledEvent", map[string]any{"name": "Late", "startTime": "2026-03-01T10:00:00Z", "location": "Park"})
	if past.Success {
		t.Fatal("events in the past must fail")
	}
	backwards := env.run(t, platformtest.ModeratorID, "createScheduledEvent", map[string]any{
		"name": "Oops", "startTime": "2026-03-05T10:00:00Z", "endTime": "2026-03-05T09:00:00Z", "location": "Park",
	})
	if backwards.Success {
		t.Fatal("end before start must fail")
	}
	textHost := env.run(t, platformtest.ModeratorID, "createScheduledEvent", map[string]any{"name": "Chat", "startTime": "2026-03-05T10:00:00Z", "channelId": platformtest.GeneralID})
	if textHost.Success {
		t.Fatal("text channels cannot host events")
	}

	res := env.run(t, platformtest.ModeratorID, "createScheduledEvent", map[string]any{"name": "Picnic", "startTime": "2026-03-05T10:00:00Z", "location": "Park"})
	if !res.Success {
		t.Fatalf("createScheduledEvent failed: %s", res.Error)
	}
	if res.Data["endTime"] != "2026-03-05T11:00:00Z" {
		t.Fatalf("unexpected default end: %v", res.Data["endTime"])
	}
}

func TestSetChannelLock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.run(t, platformtest.ModeratorID, "setChannelLock", map[string]any{"locked": "true"})
	if !res.Success {
		t.Fatalf("setChannelLock failed: %s", res.Error)
	}
	ow := env.platform.Overwrites(platformtest.GeneralID)
	if len(ow) != 1 || ow[0].ID != platformtest.GuildID || ow[0].Deny != platformx.PermSendMessages {
		t.Fatalf("unexpected overwrites: %+v", ow)
	}
}

func TestPostingRespectsChannelOverwrites(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := env.run(t, platformtest.AliceID, "createTicket", map[string]any{"subject": "Private"})
	if !created.Success {
		t.Fatalf("createTicket failed: %s", created.Error)
	}
	ticket, _ := created.Data["channelId"].(string)
	post := map[string]any{"channelId": ticket, "content": "peek"}

	res := env.run(t, platformtest.BobID, "sendMessage", post)
	if res.Success {
		t.Fatal("a member who cannot see the ticket must not post into it")
	}
	if !strings.Contains(res.Error, "View Channel") {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if sched := env.run(t, platformtest.ModeratorID, "scheduleMessage", map[string]any{"channelId": ticket, "content": "later", "minutes": 5}); sched.Success {
		t.Fatal("scheduling into a hidden channel must fail")
	}
	if lock := env.run(t, platformtest.ModeratorID, "setChannelLock", map[string]any{"channelId": ticket, "locked": true}); lock.Success {
		t.Fatal("locking a hidden channel must fail")
	}

	if info := env.run(t, platformtest.BobID, "getChannelInfo", map[string]any{"channelId": ticket}); info.Success {
		t.Fatal("a hidden channel must not be described")
	}
	listed := env.run(t, platformtest.BobID, "listChannels", nil)
	if !listed.Success {
		t.Fatalf("listChannels failed: %s", listed.Error)
	}
	for _, c := range listed.Data["channels"].([]any) {
		if c.(map[string]any)["id"] == ticket {
			t.Fatal("listChannels must skip channels the member cannot see")
		}
	}

	for _, userID := range []string{platformtest.AliceID, platformtest.HelperID, platformtest.OwnerID} {
		if ok := env.run(t, userID, "sendMessage", post); !ok.Success {
			t.Fatalf("user %s should post into the ticket: %s", userID, ok.Error)
		}
	}
	if got := len(env.platform.Messages()); got != 3 {
		t.Fatalf("expected 3 posted messages, got %d", got)
	}
}

func TestSendMessageDeniedByMemberOverwrite(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.platform.AddChannel(platformx.Channel{
		ID: "150", GuildID: platformtest.GuildID, Name: "announcements", Type: platformx.ChannelText,
		Overwrites: []platformx.PermissionOverwrite{
			{ID: platformtest.MemberRoleID, Type: platformx.OverwriteRole, Deny: platformx.PermSendMessages},
			{ID: platformtest.BobID, Type: platformx.OverwriteMember, Allow: platformx.PermSendMessages},
		},
	})

	if res := env.run(t, platformtest.AliceID, "sendMessage", map[string]any{"channelId": "150", "content": "hi"}); res.Success {
		t.Fatal("role overwrite must deny posting")
	}
	if res := env.run(t, platformtest.BobID, "sendMessage", map[string]any{"channelId": "150", "content": "hi"}); !res.Success {
		t.Fatalf("member overwrite must win over the role deny: %s", res.Error)
	}
}

func TestSetChannelLockKeepsOtherOverwriteBits(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.platform.AddChannel(platformx.Channel{
		ID: "151", GuildID: platformtest.GuildID, Name: "staff", Type: platformx.ChannelText,
		Overwrites: []platformx.PermissionOverwrite{
			{ID: platformtest.GuildID, Type: platformx.OverwriteRole, Deny: platformx.PermViewChannel},
			{ID: platformtest.ModRoleID, Type: platformx.OverwriteRole, Allow: platformx.PermViewChannel},
		},
	})

	if res := env.run(t, platformtest.ModeratorID, "setChannelLock", map[string]any{"channelId": "151", "locked": true}); !res.Success {
		t.Fatalf("lock failed: %s", res.Error)
	}
	everyone := func() platformx.PermissionOverwrite {
		for _, ow := range env.platform.Overwrites("151") {
			if ow.ID == platformtest.GuildID {
				return ow
			}
		}
		t.Fatal("@everyone overwrite missing")
		return platformx.PermissionOverwrite{}
	}
	if got := everyone().Deny; got != platformx.PermViewChannel|platformx.PermSendMessages {
		t.Fatalf("locked deny = %s", got)
	}

	if res := env.run(t, platformtest.ModeratorID, "setChannelLock", map[string]any{"channelId": "151", "locked": false}); !res.Success {
		t.Fatalf("unlock failed: %s", res.Error)
	}
	if got := everyone().Deny; got != platformx.PermViewChannel {
		t.Fatalf("unlocked deny = %s, the channel must stay hidden", got)
	}
}

func TestReadActionsMatchDeclaredShape(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, name := range []string{"getServerInfo", "getChannelInfo", "getUserInfo", "listRoles", "listChannels", "findMember", "getCurrentTime"} {
		res := env.run(t, platformtest.AliceID, name, validParams[name])
		if !res.Success {
			t.Fatalf("%s failed: %s", name, res.Error)
		}
		decl, _ := env.registry.Lookup(name)
		for _, f := range decl.Response {
			if _, ok := res.Data[f.Name]; !ok {
				t.Errorf("%s data lacks declared field %q", name, f.Name)
			}
		}
		if len(res.Data) != len(decl.Response) {
			t.Errorf("%s data has %d fields, declared %d", name, len(res.Data), len(decl.Response))
		}
	}
}

func TestDelayHonoursContext(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := env.registry.Execute(ctx, env.context(platformtest.AliceID, platformtest.GeneralID), nil, "delay", map[string]any{"seconds": 30})
	if res.Success {
		t.Fatal("cancelled delay must fail")
	}
	if tooLong := env.run(t, platformtest.AliceID, "delay", map[string]any{"seconds": 601}); tooLong.Success {
		t.Fatal("delays over ten minutes must fail")
	}
}

func TestEvaluateMath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.run(t, platformtest.AliceID, "evaluateMath", map[string]any{"expression": "2 + 3 * (4 - 1)"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Data["result"] != float64(11) {
		t.Fatalf("unexpected result: %v", res.Data["result"])
	}

	for _, expr := range []string{"1 / 0", "2 +", "(1 + 2", "rm -rf"} {
		if bad := env.run(t, platformtest.AliceID, "evaluateMath", map[string]any{"expression": expr}); bad.Success {
			t.Errorf("expression %q should fail", expr)
		}
	}
}

func TestResponseAction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.run(t, platformtest.AliceID, ResponseAction, map[string]any{"responseMessage": "All set"})
	if !res.Success || res.Data["responseMessage"] != "All set" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if empty := env.run(t, platformtest.AliceID, ResponseAction, map[string]any{"responseMessage": "  "}); empty.Success {
		t.Fatal("blank response must fail")
	}
}
