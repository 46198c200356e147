package action

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
	placeholderx "github.com/tanpawarit/chative-guildbot/agent/placeholder"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field is one named, typed entry of a parameter or response schema.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Example     any
	Enum        []string
	Items       *Field
	Fields      []Field
}

// Declaration is what the model is shown about an action.
type Declaration struct {
	Name        string
	Description string
	Parameters  []Field
	Response    []Field
}

func (d Declaration) validateShape() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: declaration name is empty", contractx.ErrValidation)
	}
	if strings.Contains(d.Name, "::") {
		return fmt.Errorf("%w: declaration name %q contains a reserved delimiter", contractx.ErrValidation, d.Name)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: declaration %q has no description", contractx.ErrValidation, d.Name)
	}
	seen := make(map[string]struct{}, len(d.Parameters))
	for _, f := range d.Parameters {
		if f.Name == placeholderx.RequireFlag {
			return fmt.Errorf("%w: declaration %q redeclares %s", contractx.ErrValidation, d.Name, placeholderx.RequireFlag)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: declaration %q repeats parameter %q", contractx.ErrValidation, d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// ToolInfo renders the declaration for the function-calling API. Examples
// and the response shape travel in the descriptions since the parameter
// schema has no slot for them.
func (d Declaration) ToolInfo() *schema.ToolInfo {
	desc := d.Description
	if len(d.Response) > 0 {
		desc += "\nReturns data: " + summarize(d.Response)
	}

	return &schema.ToolInfo{
		Name: d.Name,
		Desc: desc,
		Extra: map[string]any{
			"parameters": ObjectSchema(d.Parameters),
			"response":   ObjectSchema(d.Response),
		},
		ParamsOneOf: schema.NewParamsOneOfByParams(d.ParameterInfos()),
	}
}

// ParameterInfos returns the declared parameters plus the optional
// resolution flag every action accepts.
func (d Declaration) ParameterInfos() map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.Parameters)+1)
	for _, f := range d.Parameters {
		params[f.Name] = f.parameterInfo()
	}
	params[placeholderx.RequireFlag] = &schema.ParameterInfo{
		Type: schema.Boolean,
		Desc: "Set to true when any parameter value references a previous result, for example " +
			placeholderx.Format("findMember", "data.members.0.id", 0) + ". The last part counts successful calls only.",
	}
	return params
}

func (f Field) parameterInfo() *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type:     dataType(f.Type),
		Desc:     f.describe(),
		Enum:     f.Enum,
		Required: f.Required,
	}
	if f.Items != nil {
		info.ElemInfo = f.Items.parameterInfo()
	}
	if len(f.Fields) > 0 {
		info.SubParams = make(map[string]*schema.ParameterInfo, len(f.Fields))
		for _, sub := range f.Fields {
			info.SubParams[sub.Name] = sub.parameterInfo()
		}
	}
	return info
}

func (f Field) describe() string {
	if f.Example == nil {
		return f.Description
	}
	raw, err := json.Marshal(f.Example)
	if err != nil {
		return f.Description
	}
	return fmt.Sprintf("%s Example: %s", f.Description, raw)
}

func dataType(t FieldType) schema.DataType {
	switch t {
	case TypeNumber:
		return schema.Number
	case TypeInteger:
		return schema.Integer
	case TypeBoolean:
		return schema.Boolean
	case TypeArray:
		return schema.Array
	case TypeObject:
		return schema.Object
	default:
		return schema.String
	}
}

func summarize(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		kind := string(f.Type)
		switch {
		case f.Type == TypeArray && f.Items != nil && len(f.Items.Fields) > 0:
			kind = "[" + summarize(f.Items.Fields) + "]"
		case f.Type == TypeArray && f.Items != nil:
			kind = string(f.Items.Type) + "[]"
		case f.Type == TypeObject && len(f.Fields) > 0:
			kind = summarize(f.Fields)
		}
		parts = append(parts, f.Name+": "+kind)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ObjectSchema renders fields as a JSON-schema object with name, type,
// description, example, properties and required lists.
func ObjectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = f.jsonSchema()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	sort.Strings(required)
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func (f Field) jsonSchema() map[string]any {
	out := map[string]any{"type": string(f.Type)}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if f.Example != nil {
		out["example"] = f.Example
	}
	if len(f.Enum) > 0 {
		out["enum"] = f.Enum
	}
	if f.Items != nil {
		out["items"] = f.Items.jsonSchema()
	}
	if len(f.Fields) > 0 {
		nested := ObjectSchema(f.Fields)
		out["properties"] = nested["properties"]
		if req, ok := nested["required"]; ok {
			out["required"] = req
		}
	}
	return out
}

// Validate checks raw model-supplied arguments against the declared
// parameters. Numeric strings are accepted for number fields and the
// reserved resolution flag is dropped.
func (d Declaration) Validate(raw map[string]any) (Params, error) {
	out := make(Params, len(raw))
	for k, v := range raw {
		if k == placeholderx.RequireFlag {
			continue
		}
		out[k] = v
	}
	for _, f := range d.Parameters {
		v, ok := out[f.Name]
		if !ok || v == nil {
			if f.Required {
				return nil, fmt.Errorf("%w: parameter %q is required", contractx.ErrValidation, f.Name)
			}
			delete(out, f.Name)
			continue
		}
		coerced, err := f.check(v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = coerced
	}
	return out, nil
}

func (f Field) check(v any) (any, error) {
	switch f.Type {
	case TypeString:
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(val)
		default:
			return nil, f.mismatch(v)
		}
		if len(f.Enum) > 0 && !containsFold(f.Enum, s) {
			return nil, fmt.Errorf("%w: parameter %q must be one of %s", contractx.ErrValidation, f.Name, strings.Join(f.Enum, ", "))
		}
		return s, nil
	case TypeNumber, TypeInteger:
		n, ok := toNumber(v)
		if !ok {
			return nil, f.mismatch(v)
		}
		if f.Type == TypeInteger && n != math.Trunc(n) {
			return nil, fmt.Errorf("%w: parameter %q must be a whole number", contractx.ErrValidation, f.Name)
		}
		return n, nil
	case TypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return nil, f.mismatch(v)
			}
			return b, nil
		default:
			return nil, f.mismatch(v)
		}
	case TypeArray:
		var items []any
		switch val := v.(type) {
		case []any:
			items = val
		case []string:
			items = make([]any, len(val))
			for i, s := range val {
				items[i] = s
			}
		default:
			return nil, f.mismatch(v)
		}
		if f.Items == nil {
			return items, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			elem := *f.Items
			elem.Name = fmt.Sprintf("%s[%d]", f.Name, i)
			checked, err := elem.check(item)
			if err != nil {
				return nil, err
			}
			out[i] = checked
		}
		return out, nil
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, f.mismatch(v)
		}
		if len(f.Fields) == 0 {
			return obj, nil
		}
		nested, err := Declaration{Name: f.Name, Parameters: f.Fields}.Validate(obj)
		if err != nil {
			return nil, err
		}
		return map[string]any(nested), nil
	default:
		return v, nil
	}
}

func (f Field) mismatch(v any) error {
	if s, ok := v.(string); ok {
		if len(placeholderx.FindAll(s)) > 0 {
			return fmt.Errorf("%w: parameter %q holds an unresolved reference %q", contractx.ErrValidation, f.Name, s)
		}
		return fmt.Errorf("%w: parameter %q must be a %s, got %q", contractx.ErrValidation, f.Name, f.Type, s)
	}
	return fmt.Errorf("%w: parameter %q must be a %s, got %T", contractx.ErrValidation, f.Name, f.Type, v)
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func str(name string, desc string, example any) Field {
	return Field{Name: name, Type: TypeString, Description: desc, Example: example}
}

func num(name string, desc string, example any) Field {
	return Field{Name: name, Type: TypeNumber, Description: desc, Example: example}
}

func integer(name string, desc string, example any) Field {
	return Field{Name: name, Type: TypeInteger, Description: desc, Example: example}
}

func boolean(name string, desc string, example any) Field {
	return Field{Name: name, Type: TypeBoolean, Description: desc, Example: example}
}

func list(name string, desc string, item Field) Field {
	return Field{Name: name, Type: TypeArray, Description: desc, Items: &item}
}

func object(name string, desc string, fields ...Field) Field {
	return Field{Name: name, Type: TypeObject, Description: desc, Fields: fields}
}

func required(f Field) Field {
	f.Required = true
	return f
}

func oneOf(f Field, values ...string) Field {
	f.Enum = values
	return f
}
