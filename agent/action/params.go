package action

import (
	"math"
	"strings"
)

// Params are validated arguments. Values are JSON-shaped: string, float64,
// bool, []any and map[string]any.
type Params map[string]any

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

func (p Params) StringOr(key string, fallback string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return fallback
}

func (p Params) Float(key string) float64 {
	f, _ := p[key].(float64)
	return f
}

func (p Params) Int(key string) int64 {
	return int64(math.Round(p.Float(key)))
}

func (p Params) IntOr(key string, fallback int64) int64 {
	if !p.Has(key) {
		return fallback
	}
	return p.Int(key)
}

func (p Params) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

func (p Params) Strings(key string) []string {
	items, _ := p[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
