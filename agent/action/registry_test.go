package action

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	placeholderx "github.com/tanpawarit/chative-guildbot/agent/placeholder"
)

func echoDecl(name string) Declaration {
	return Declaration{
		Name:        name,
		Description: "Echo the input.",
		Parameters: []Field{
			required(str("text", "Text to echo.", "hi")),
			num("times", "Repeat count.", 2),
		},
		Response: []Field{str("text", "Echoed text.", nil)},
	}
}

func echo(_ context.Context, _ contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	return struct {
		Text  string  `json:"text"`
		Times float64 `json:"times"`
	}{Text: p.String("text"), Times: p.Float("times")}, nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(echoDecl("echo"), echo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(echoDecl("echo"), echo); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegisterRejectsReservedNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(echoDecl("bad::name"), echo); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	decl := echoDecl("flagged")
	decl.Parameters = append(decl.Parameters, boolean(placeholderx.RequireFlag, "", nil))
	if err := r.Register(decl, echo); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSealFreezesCatalog(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(echoDecl("echo"), echo)
	if v := r.Seal(); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
	if v := r.Seal(); v != 1 {
		t.Fatalf("second seal changed version to %d", v)
	}
	if err := r.Register(echoDecl("late"), echo); err == nil {
		t.Fatal("expected registration after seal to fail")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "echo" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	res := r.Execute(context.Background(), contractx.ExecutionContext{}, nil, "missing", nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FunctionName != "missing" {
		t.Fatalf("unexpected function name: %s", res.FunctionName)
	}
	if !strings.Contains(res.Error, "missing") {
		t.Fatalf("unexpected error text: %s", res.Error)
	}
}

func TestExecuteDisabledAction(t *testing.T) {
	t.Parallel()

	called := false
	r := NewRegistry()
	r.MustRegister(echoDecl("echo"), func(ctx context.Context, ec contractx.ExecutionContext, prior []contractx.ActionResult, p Params) (any, error) {
		called = true
		return echo(ctx, ec, prior, p)
	})
	ec := contractx.ExecutionContext{Settings: contractx.GuildSettings{DisabledActions: []string{"echo"}}}
	res := r.Execute(context.Background(), ec, nil, "echo", map[string]any{"text": "hi"})
	if res.Success || called {
		t.Fatalf("expected disabled action to fail without running, got %+v called=%v", res, called)
	}
}

func TestExecuteValidatesParameters(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(echoDecl("echo"), echo)

	tests := []struct {
		name    string
		raw     map[string]any
		wantOK  bool
		wantErr string
	}{
		{name: "missing required", raw: map[string]any{}, wantErr: `"text" is required`},
		{name: "wrong type", raw: map[string]any{"text": "a", "times": true}, wantErr: "must be a number"},
		{name: "unresolved reference", raw: map[string]any{"text": "a", "times": "foo::data.n::0"}, wantErr: "unresolved reference"},
		{name: "numeric string coerced", raw: map[string]any{"text": "a", "times": "3"}, wantOK: true},
		{name: "flag dropped", raw: map[string]any{"text": "a", placeholderx.RequireFlag: true}, wantOK: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := r.Execute(context.Background(), contractx.ExecutionContext{}, nil, "echo", tt.raw)
			if res.Success != tt.wantOK {
				t.Fatalf("success = %v, want %v (%s)", res.Success, tt.wantOK, res.Error)
			}
			if tt.wantErr != "" && !strings.Contains(res.Error, tt.wantErr) {
				t.Fatalf("error %q does not contain %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestExecuteNormalizesData(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(echoDecl("echo"), echo)
	res := r.Execute(context.Background(), contractx.ExecutionContext{}, nil, "echo", map[string]any{"text": "hi", "times": "2"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Data["text"] != "hi" {
		t.Fatalf("unexpected text: %v", res.Data["text"])
	}
	if res.Data["times"] != float64(2) {
		t.Fatalf("unexpected times: %#v", res.Data["times"])
	}
}

func TestExecuteRecoversFromPanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(echoDecl("boom"), func(context.Context, contractx.ExecutionContext, []contractx.ActionResult, Params) (any, error) {
		panic("kaboom")
	})
	res := r.Execute(context.Background(), contractx.ExecutionContext{}, nil, "boom", map[string]any{"text": "x"})
	if res.Success {
		t.Fatal("expected failure after panic")
	}
}

func TestExecuteRejectsNonObjectData(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(echoDecl("list"), func(context.Context, contractx.ExecutionContext, []contractx.ActionResult, Params) (any, error) {
		return []int{1, 2}, nil
	})
	res := r.Execute(context.Background(), contractx.ExecutionContext{}, nil, "list", map[string]any{"text": "x"})
	if res.Success {
		t.Fatal("expected failure for array data")
	}
}

func TestToolInfosAdvertiseResolutionFlag(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(echoDecl("echo"), echo)
	infos := r.ToolInfos()
	if len(infos) != 1 || infos[0].Name != "echo" {
		t.Fatalf("unexpected infos: %+v", infos)
	}
	if !strings.Contains(infos[0].Desc, "Returns data: {text: string}") {
		t.Fatalf("response shape missing from description: %q", infos[0].Desc)
	}

	params := echoDecl("echo").ParameterInfos()
	flag, ok := params[placeholderx.RequireFlag]
	if !ok || flag.Required {
		t.Fatalf("expected optional %s parameter, got %+v", placeholderx.RequireFlag, flag)
	}
	if ref, ok := placeholderx.Parse("findMember::data.members.0.id::0"); !ok || !strings.Contains(flag.Desc, ref.String()) {
		t.Fatalf("flag description lacks a parseable reference example: %q", flag.Desc)
	}
	if !params["text"].Required {
		t.Fatal("text must be required")
	}
	if !strings.Contains(params["times"].Desc, "Example: 2") {
		t.Fatalf("example missing from description: %q", params["times"].Desc)
	}

	schemaMap := ObjectSchema(echoDecl("echo").Parameters)
	req, _ := schemaMap["required"].([]string)
	if len(req) != 1 || req[0] != "text" {
		t.Fatalf("unexpected required list: %v", schemaMap["required"])
	}
}
