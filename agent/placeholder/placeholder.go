// Package placeholder owns the cross-call reference grammar
// functionName::dataPath::callIndex. Nothing outside this package should
// know the delimiter.
package placeholder

import (
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

// RequireFlag is the reserved parameter that opts a call into resolution.
const RequireFlag = "requireDataFromPrev"

const delimiter = "::"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var pattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)::([A-Za-z0-9_.\-]+)::(\d+)`)

// Ref is one parsed placeholder occurrence.
type Ref struct {
	Raw      string
	Function string
	Path     string
	Index    int
}

func (r Ref) String() string {
	return r.Function + delimiter + r.Path + delimiter + strconv.Itoa(r.Index)
}

// Format builds the textual placeholder for a reference.
func Format(function string, path string, index int) string {
	return Ref{Function: function, Path: path, Index: index}.String()
}

// Parse reports whether s is exactly one placeholder.
func Parse(s string) (Ref, bool) {
	m := pattern.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 || m[1] != len(s) {
		return Ref{}, false
	}
	refs := FindAll(s)
	if len(refs) != 1 {
		return Ref{}, false
	}
	return refs[0], true
}

// FindAll returns every placeholder occurrence in s in order.
func FindAll(s string) []Ref {
	matches := pattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		refs = append(refs, Ref{Raw: m[0], Function: m[1], Path: m[2], Index: idx})
	}
	return refs
}

// RequiresResolution reports whether the bag opted in via RequireFlag.
func RequiresResolution(bag map[string]any) bool {
	switch v := bag[RequireFlag].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// Lookup finds the value a reference points at among the successful prior
// results of the referenced function.
func Lookup(prior []contractx.ActionResult, ref Ref) (any, bool) {
	if ref.Index < 0 {
		return nil, false
	}
	seen := 0
	for _, r := range prior {
		if r.FunctionName != ref.Function || !r.Success {
			continue
		}
		if seen == ref.Index {
			return walk(map[string]any(r.Data), ref.Path)
		}
		seen++
	}
	return nil, false
}

func walk(data map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "data" {
		return data, data != nil
	}
	path = strings.TrimPrefix(path, "data.")
	if path == "" {
		return nil, false
	}

	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case contractx.Data:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Resolve returns a copy of bag with every resolvable placeholder replaced.
// A string that is exactly one placeholder takes the referenced value with
// its type; placeholders inside longer text are substituted textually.
// Unresolvable placeholders stay as written. The input is not modified.
func Resolve(prior []contractx.ActionResult, bag map[string]any) map[string]any {
	if bag == nil {
		return nil
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = resolveValue(prior, v)
	}
	return out
}

func resolveValue(prior []contractx.ActionResult, v any) any {
	switch val := v.(type) {
	case string:
		return resolveString(prior, val)
	case map[string]any:
		return Resolve(prior, val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = resolveValue(prior, elem)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = resolveString(prior, elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Resolve(prior, elem)
		}
		return out
	default:
		return v
	}
}

func resolveString(prior []contractx.ActionResult, s string) any {
	if !strings.Contains(s, delimiter) {
		return s
	}
	if ref, ok := Parse(s); ok {
		if value, found := Lookup(prior, ref); found {
			return value
		}
		return s
	}
	return pattern.ReplaceAllStringFunc(s, func(raw string) string {
		refs := FindAll(raw)
		if len(refs) != 1 {
			return raw
		}
		value, found := Lookup(prior, refs[0])
		if !found {
			return raw
		}
		text, ok := textOf(value)
		if !ok {
			return raw
		}
		return text
	})
}

func textOf(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
}

// Collect lists the placeholders still present anywhere in bag.
func Collect(bag map[string]any) []Ref {
	var refs []Ref
	var visit func(v any)
	visit = func(v any) {
		switch val := v.(type) {
		case string:
			refs = append(refs, FindAll(val)...)
		case map[string]any:
			for _, elem := range val {
				visit(elem)
			}
		case []any:
			for _, elem := range val {
				visit(elem)
			}
		case []string:
			for _, elem := range val {
				visit(elem)
			}
		}
	}
	visit(bag)
	return refs
}
