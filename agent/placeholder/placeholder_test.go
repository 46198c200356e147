package placeholder

import (
	"reflect"
	"testing"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

func fooResults() []contractx.ActionResult {
	return []contractx.ActionResult{
		{FunctionName: "foo", Success: true, Data: contractx.Data{"x": float64(1)}, CallIndex: 0},
		{FunctionName: "bar", Success: true, Data: contractx.Data{"y": float64(1)}, CallIndex: 0},
		{FunctionName: "foo", Success: true, Data: contractx.Data{"x": float64(2)}, CallIndex: 1},
	}
}

func TestResolveSelectsByCallIndex(t *testing.T) {
	t.Parallel()

	out := Resolve(fooResults(), map[string]any{"value": "foo::data.x::1"})
	if out["value"] != float64(2) {
		t.Fatalf("value = %#v, want 2", out["value"])
	}

	out = Resolve(fooResults(), map[string]any{"value": "foo::x::0"})
	if out["value"] != float64(1) {
		t.Fatalf("value without data prefix = %#v, want 1", out["value"])
	}
}

func TestResolveOutOfRangeIndexLeavesText(t *testing.T) {
	t.Parallel()

	out := Resolve(fooResults(), map[string]any{"value": "foo::data.x::5"})
	if out["value"] != "foo::data.x::5" {
		t.Fatalf("value = %#v, want original text", out["value"])
	}
}

func TestResolveMissingPathLeavesText(t *testing.T) {
	t.Parallel()

	out := Resolve(fooResults(), map[string]any{"value": "bar::data.missing::0"})
	if out["value"] != "bar::data.missing::0" {
		t.Fatalf("value = %#v, want original text", out["value"])
	}
}

func TestResolveSkipsFailedCalls(t *testing.T) {
	t.Parallel()

	prior := []contractx.ActionResult{
		{FunctionName: "foo", Success: false, Error: "boom", CallIndex: 0},
		{FunctionName: "foo", Success: true, Data: contractx.Data{"x": "ok"}, CallIndex: 1},
	}
	out := Resolve(prior, map[string]any{"value": "foo::data.x::0"})
	if out["value"] != "ok" {
		t.Fatalf("value = %#v, want first successful call", out["value"])
	}
}

func TestResolveEmbeddedPlaceholders(t *testing.T) {
	t.Parallel()

	prior := []contractx.ActionResult{
		{FunctionName: "getUserInfo", Success: true, Data: contractx.Data{"username": "ann", "level": float64(7)}},
		{FunctionName: "claimTicket", Success: true, Data: contractx.Data{"ticketId": "t-1"}},
	}
	out := Resolve(prior, map[string]any{
		"content": "Hi getUserInfo::data.username::0, ticket claimTicket::data.ticketId::0 is yours (lvl getUserInfo::data.level::0) missing::data.x::0",
	})
	want := "Hi ann, ticket t-1 is yours (lvl 7) missing::data.x::0"
	if out["content"] != want {
		t.Fatalf("content = %q, want %q", out["content"], want)
	}
}

func TestResolveArraysOfObjects(t *testing.T) {
	t.Parallel()

	prior := []contractx.ActionResult{
		{FunctionName: "createRole", Success: true, Data: contractx.Data{"id": "r1", "name": "Mods"}},
	}
	bag := map[string]any{
		"entries": []any{
			map[string]any{"roleId": "createRole::data.id::0", "count": float64(3)},
			map[string]any{"roleId": "literal"},
		},
		"ids":    []any{"createRole::data.id::0", true},
		"amount": float64(4),
	}
	out := Resolve(prior, bag)

	entries := out["entries"].([]any)
	if got := entries[0].(map[string]any)["roleId"]; got != "r1" {
		t.Fatalf("entries[0].roleId = %#v, want r1", got)
	}
	if got := entries[0].(map[string]any)["count"]; got != float64(3) {
		t.Fatalf("entries[0].count = %#v, want untouched number", got)
	}
	if got := entries[1].(map[string]any)["roleId"]; got != "literal" {
		t.Fatalf("entries[1].roleId = %#v", got)
	}
	if ids := out["ids"].([]any); ids[0] != "r1" || ids[1] != true {
		t.Fatalf("ids = %#v", ids)
	}
	if out["amount"] != float64(4) {
		t.Fatalf("amount = %#v", out["amount"])
	}

	original := bag["entries"].([]any)[0].(map[string]any)["roleId"]
	if original != "createRole::data.id::0" {
		t.Fatalf("input bag was mutated: %#v", original)
	}
}

func TestResolveNestedPathsAndArrays(t *testing.T) {
	t.Parallel()

	prior := []contractx.ActionResult{
		{FunctionName: "listRoles", Success: true, Data: contractx.Data{
			"roles": []any{
				map[string]any{"id": "a"},
				map[string]any{"id": "b"},
			},
		}},
	}
	out := Resolve(prior, map[string]any{"roleId": "listRoles::data.roles.1.id::0"})
	if out["roleId"] != "b" {
		t.Fatalf("roleId = %#v, want b", out["roleId"])
	}
}

func TestRequiresResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bag  map[string]any
		want bool
	}{
		{map[string]any{}, false},
		{map[string]any{RequireFlag: false}, false},
		{map[string]any{RequireFlag: true}, true},
		{map[string]any{RequireFlag: "true"}, true},
		{map[string]any{RequireFlag: float64(1)}, false},
	}
	for _, tc := range cases {
		if got := RequiresResolution(tc.bag); got != tc.want {
			t.Fatalf("RequiresResolution(%#v) = %v, want %v", tc.bag, got, tc.want)
		}
	}
}

func TestParseAndCollect(t *testing.T) {
	t.Parallel()

	ref, ok := Parse("getTicketInfo::data.ownerId::2")
	if !ok {
		t.Fatal("expected whole-string placeholder")
	}
	if ref.Function != "getTicketInfo" || ref.Path != "data.ownerId" || ref.Index != 2 {
		t.Fatalf("unexpected ref: %#v", ref)
	}
	if _, ok := Parse("hello getTicketInfo::data.ownerId::2"); ok {
		t.Fatal("embedded placeholder must not parse as whole string")
	}
	if Format("a", "data.b", 3) != "a::data.b::3" {
		t.Fatalf("Format() = %q", Format("a", "data.b", 3))
	}

	refs := Collect(map[string]any{
		"a": "x::data.y::0 and z::w::1",
		"b": []any{map[string]any{"c": "q::r::2"}},
	})
	got := map[string]bool{}
	for _, r := range refs {
		got[r.String()] = true
	}
	want := map[string]bool{"x::data.y::0": true, "z::w::1": true, "q::r::2": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Collect() = %#v, want %#v", got, want)
	}
}
