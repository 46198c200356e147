package orchestratornode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	"github.com/tanpawarit/chative-guildbot/agent/platform/platformtest"
)

func fixedNow() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	p := platformtest.Seeded()
	st, err := ValidateRequest(GraphInput{
		Platform:  p,
		ChannelID: " 100 ",
		UserID:    "3",
		Text:      "  hello ",
	}, fixedNow, func() string { return "conv-x" })
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.ConversationID != "conv-x" || st.Text != "hello" || st.Exec.ChannelID != "100" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if !st.Exec.Clock().Equal(fixedNow()) {
		t.Fatalf("clock not threaded: %v", st.Exec.Clock())
	}

	st, err = ValidateRequest(GraphInput{ConversationID: "given", Platform: p, ChannelID: "1", UserID: "2", Text: "x"}, fixedNow, func() string { return "unused" })
	if err != nil || st.ConversationID != "given" {
		t.Fatalf("expected caller id to be kept, got %+v, %v", st, err)
	}
}

func TestValidateRequestRejects(t *testing.T) {
	t.Parallel()

	p := platformtest.Seeded()
	cases := []struct {
		in   GraphInput
		want error
	}{
		{GraphInput{ChannelID: "1", UserID: "2", Text: "x"}, ErrMissingPlatform},
		{GraphInput{Platform: p, UserID: "2", Text: "x"}, ErrInvalidChannel},
		{GraphInput{Platform: p, ChannelID: "1", Text: "x"}, ErrInvalidUser},
		{GraphInput{Platform: p, ChannelID: "1", UserID: "2", Text: "\n\t"}, ErrInvalidMessage},
	}
	for _, tc := range cases {
		if _, err := ValidateRequest(tc.in, fixedNow, func() string { return "id" }); !errors.Is(err, tc.want) {
			t.Fatalf("ValidateRequest(%+v) error = %v, want %v", tc.in, err, tc.want)
		}
	}
}

type stubSettings struct {
	got      string
	settings contractx.GuildSettings
	err      error
}

func (s *stubSettings) Load(_ context.Context, guildID string) (contractx.GuildSettings, error) {
	s.got = guildID
	return s.settings, s.err
}

func TestLoadSettingsUsesGuildOfChannel(t *testing.T) {
	t.Parallel()

	store := &stubSettings{settings: contractx.GuildSettings{GuildID: platformtest.GuildID, SupportRoleID: "201"}}
	st := &GraphState{Exec: contractx.ExecutionContext{Platform: platformtest.Seeded(), ChannelID: platformtest.GeneralID}}

	out, err := LoadSettings(context.Background(), st, store)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if store.got != platformtest.GuildID || out.Exec.Settings.SupportRoleID != "201" {
		t.Fatalf("unexpected settings: %+v (looked up %q)", out.Exec.Settings, store.got)
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	t.Parallel()

	store := &stubSettings{err: errors.New("boom")}
	st := &GraphState{Exec: contractx.ExecutionContext{Platform: platformtest.Seeded(), ChannelID: platformtest.GeneralID}}
	out, err := LoadSettings(context.Background(), st, store)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if !out.Exec.Settings.LevelingEnabled || out.Exec.Settings.GuildID != platformtest.GuildID {
		t.Fatalf("expected defaults, got %+v", out.Exec.Settings)
	}

	store = &stubSettings{}
	st = &GraphState{Exec: contractx.ExecutionContext{Platform: platformtest.Seeded(), ChannelID: "missing"}}
	out, err = LoadSettings(context.Background(), st, store)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if store.got != "" || out.Exec.Settings.GuildID != "" {
		t.Fatalf("store must not be queried without a guild: %+v", out.Exec.Settings)
	}
}

func TestDecodeArgs(t *testing.T) {
	t.Parallel()

	args, err := decodeArgs("  ")
	if err != nil || len(args) != 0 {
		t.Fatalf("decodeArgs(blank) = %v, %v", args, err)
	}
	args, err = decodeArgs(`{"a":1,"b":["x"]}`)
	if err != nil || args["a"] != float64(1) {
		t.Fatalf("decodeArgs(object) = %v, %v", args, err)
	}
	for _, raw := range []string{`[1,2]`, `{"a":`, `"text"`} {
		if _, err := decodeArgs(raw); !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("decodeArgs(%q) error = %v, want ErrSchemaViolation", raw, err)
		}
	}
}

func TestCallsToCountsFailures(t *testing.T) {
	t.Parallel()

	results := []contractx.ActionResult{
		contractx.Failed("a", "x"),
		contractx.Succeeded("b", nil),
		contractx.Succeeded("a", nil),
	}
	if got := callsTo(results, "a"); got != 2 {
		t.Fatalf("callsTo(a) = %d, want 2", got)
	}
	if got := callsTo(results, "c"); got != 0 {
		t.Fatalf("callsTo(c) = %d, want 0", got)
	}
}

func TestEncodeResult(t *testing.T) {
	t.Parallel()

	ok := contractx.Succeeded("findMember", contractx.Data{"count": 1})
	ok.CallIndex = 2
	got := encodeResult(ok)
	for _, want := range []string{`"functionName":"findMember"`, `"success":true`, `"count":1`, `"callIndex":2`} {
		if !strings.Contains(got, want) {
			t.Fatalf("encodeResult() = %s, missing %s", got, want)
		}
	}

	got = encodeResult(contractx.Failed("banMember", "no permission"))
	if !strings.Contains(got, `"data":"no permission"`) {
		t.Fatalf("failure payload = %s", got)
	}
}

func TestComposeReply(t *testing.T) {
	t.Parallel()

	results := []contractx.ActionResult{
		contractx.Succeeded("response", contractx.Data{"responseMessage": "  "}),
	}
	if _, ok := ComposeReply(results, "", "response"); ok {
		t.Fatal("blank response message must not count")
	}
	if text, ok := ComposeReply(results, "closing", "response"); !ok || text != "closing" {
		t.Fatalf("ComposeReply() = %q, %v", text, ok)
	}
}

func TestFormatReplyNilState(t *testing.T) {
	t.Parallel()

	if _, err := FormatReply(nil, "response"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("FormatReply(nil) error = %v", err)
	}
}
