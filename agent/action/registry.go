package action

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Executor performs one action. Returned data must serialise to an object
// matching the declaration's response schema.
type Executor func(ctx context.Context, ec contractx.ExecutionContext, prior []contractx.ActionResult, p Params) (any, error)

type entry struct {
	decl Declaration
	exec Executor
}

// Registry owns the catalog. Registration happens before Seal; after that
// the catalog is read-only and safe for concurrent conversations.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	sealed  bool
	version uint64
	tools   []*schema.ToolInfo
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) Register(decl Declaration, exec Executor) error {
	if err := decl.validateShape(); err != nil {
		return err
	}
	if exec == nil {
		return fmt.Errorf("%w: action %q has no executor", contractx.ErrValidation, decl.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register %q: registry is sealed at version %d", decl.Name, r.version)
	}
	if _, exists := r.entries[decl.Name]; exists {
		return fmt.Errorf("register %q: action already registered", decl.Name)
	}
	r.entries[decl.Name] = entry{decl: decl, exec: exec}
	return nil
}

func (r *Registry) MustRegister(decl Declaration, exec Executor) {
	if err := r.Register(decl, exec); err != nil {
		panic(err)
	}
}

// Seal freezes the catalog and stamps it with a new version. Sealing twice
// is a no-op.
func (r *Registry) Seal() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return r.version
	}
	r.sealed = true
	r.version++

	names := r.namesLocked()
	r.tools = make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		r.tools = append(r.tools, r.entries[name].decl.ToolInfo())
	}

	log.Info().
		Uint64("catalog_version", r.version).
		Int("actions", len(names)).
		Msg("action catalog sealed")
	return r.version
}

func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog returns every declaration sorted by name.
func (r *Registry) Catalog() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.namesLocked()
	out := make([]Declaration, 0, len(names))
	for _, name := range names {
		out = append(out, r.entries[name].decl)
	}
	return out
}

// ToolInfos returns the catalog in function-calling form. The registry is
// sealed on first use.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	r.Seal()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.ToolInfo, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) Lookup(name string) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.decl, ok
}

// Execute runs one action and always returns a result. Unknown, disabled
// and invalid calls fail before any executor runs; executor errors and
// panics become failure results.
func (r *Registry) Execute(ctx context.Context, ec contractx.ExecutionContext, prior []contractx.ActionResult, name string, raw map[string]any) contractx.ActionResult {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return contractx.Failed(name, fmt.Sprintf("%v: %q is not an available action", contractx.ErrUnknownAction, name))
	}
	if ec.Settings.ActionDisabled(name) {
		return contractx.Failed(name, fmt.Sprintf("%q is disabled on this server", name))
	}

	params, err := e.decl.Validate(raw)
	if err != nil {
		return contractx.Failed(name, err.Error())
	}

	out, err := safeRun(ctx, e.exec, ec, prior, params)
	if err != nil {
		return contractx.Failed(name, err.Error())
	}

	data, err := normalize(out)
	if err != nil {
		log.Error().Err(err).Str("action", name).Msg("action returned data that is not an object")
		return contractx.Failed(name, err.Error())
	}
	return contractx.Succeeded(name, data)
}

func safeRun(ctx context.Context, exec Executor, ec contractx.ExecutionContext, prior []contractx.ActionResult, p Params) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("conversation_id", ec.ConversationID).
				Msg("action panicked")
			out = nil
			err = fmt.Errorf("internal error while running the action")
		}
	}()
	return exec(ctx, ec, prior, p)
}

func normalize(out any) (contractx.Data, error) {
	switch v := out.(type) {
	case nil:
		return contractx.Data{}, nil
	case contractx.Data:
		return v, nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%w: encode action data: %v", contractx.ErrSchemaViolation, err)
	}
	var data contractx.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: action data must be an object", contractx.ErrSchemaViolation)
	}
	if data == nil {
		data = contractx.Data{}
	}
	return data, nil
}
