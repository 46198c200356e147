package action

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

const maxExpressionLength = 512

// MathError reports why an expression could not be evaluated. Column is
// 1-based and zero when the problem is not tied to one spot.
type MathError struct {
	Expression string
	Column     int
	Reason     string
}

func (e *MathError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("%s: cannot evaluate %q: %s at column %d", contractx.ErrValidation, e.Expression, e.Reason, e.Column)
	}
	return fmt.Sprintf("%s: cannot evaluate %q: %s", contractx.ErrValidation, e.Expression, e.Reason)
}

func (e *MathError) Unwrap() error { return contractx.ErrValidation }

func evaluateMath(_ context.Context, _ contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	expression := p.String("expression")
	vars, err := mathVariables(expression, p)
	if err != nil {
		return nil, err
	}
	result, err := evalExpression(expression, vars)
	if err != nil {
		return nil, err
	}
	return map[string]any{"expression": expression, "result": result}, nil
}

// mathVariables reads the named values, usually numbers taken from earlier
// action results through references.
func mathVariables(expression string, p Params) (map[string]float64, error) {
	items, _ := p["variables"].([]any)
	vars := make(map[string]float64, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		name, _ := obj["name"].(string)
		name = strings.TrimSpace(name)
		if !isIdentifier(name) {
			return nil, &MathError{Expression: expression, Reason: fmt.Sprintf("variable name %q is not an identifier", name)}
		}
		if _, ok := mathFuncs[name]; ok {
			return nil, &MathError{Expression: expression, Reason: fmt.Sprintf("variable %q shadows a function", name)}
		}
		if _, dup := vars[name]; dup {
			return nil, &MathError{Expression: expression, Reason: fmt.Sprintf("variable %q is given twice", name)}
		}
		value, ok := toNumber(obj["value"])
		if !ok {
			return nil, &MathError{Expression: expression, Reason: fmt.Sprintf("variable %q is not a number", name)}
		}
		vars[name] = value
	}
	return vars, nil
}

func evalExpression(expression string, vars map[string]float64) (float64, error) {
	if strings.TrimSpace(expression) == "" {
		return 0, &MathError{Expression: expression, Reason: "expression is empty"}
	}
	if len(expression) > maxExpressionLength {
		return 0, &MathError{Expression: expression, Reason: fmt.Sprintf("expression is longer than %d characters", maxExpressionLength)}
	}
	toks, err := lexMath(expression)
	if err != nil {
		return 0, err
	}
	ev := &mathEval{src: expression, toks: toks, vars: vars}
	value, err := ev.binary(0)
	if err != nil {
		return 0, err
	}
	if t := ev.peek(); t.kind != tokEnd {
		return 0, ev.fail(t, fmt.Sprintf("unexpected %q", t.text))
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, &MathError{Expression: expression, Reason: "result is not a finite number"}
	}
	return value, nil
}

type tokKind int

const (
	tokEnd tokKind = iota
	tokNumber
	tokName
	tokOp
	tokOpen
	tokClose
	tokComma
)

type mathToken struct {
	kind tokKind
	text string
	num  float64
	col  int
}

func lexMath(src string) ([]mathToken, error) {
	var toks []mathToken
	i := 0
	for i < len(src) {
		c := rune(src[i])
		col := i + 1
		switch {
		case unicode.IsSpace(c):
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, &MathError{Expression: src, Column: col, Reason: fmt.Sprintf("malformed number %q", src[i:j])}
			}
			toks = append(toks, mathToken{kind: tokNumber, text: src[i:j], num: n, col: col})
			i = j
		case c == '_' || c < unicode.MaxASCII && unicode.IsLetter(c):
			j := i
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			toks = append(toks, mathToken{kind: tokName, text: src[i:j], col: col})
			i = j
		case strings.ContainsRune("+-*/%^", c):
			toks = append(toks, mathToken{kind: tokOp, text: string(c), col: col})
			i++
		case c == '(':
			toks = append(toks, mathToken{kind: tokOpen, text: "(", col: col})
			i++
		case c == ')':
			toks = append(toks, mathToken{kind: tokClose, text: ")", col: col})
			i++
		case c == ',':
			toks = append(toks, mathToken{kind: tokComma, text: ",", col: col})
			i++
		default:
			return nil, &MathError{Expression: src, Column: col, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, mathToken{kind: tokEnd, text: "end of expression", col: len(src) + 1}), nil
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c > unicode.MaxASCII {
			return false
		}
		if c == '_' || unicode.IsLetter(c) || i > 0 && unicode.IsDigit(c) {
			continue
		}
		return false
	}
	return true
}

type binaryOp struct {
	prec  int
	right bool
	apply func(a, b float64) (float64, string)
}

var binaryOps = map[string]binaryOp{
	"+": {prec: 1, apply: func(a, b float64) (float64, string) { return a + b, "" }},
	"-": {prec: 1, apply: func(a, b float64) (float64, string) { return a - b, "" }},
	"*": {prec: 2, apply: func(a, b float64) (float64, string) { return a * b, "" }},
	"/": {prec: 2, apply: func(a, b float64) (float64, string) {
		if b == 0 {
			return 0, "division by zero"
		}
		return a / b, ""
	}},
	"%": {prec: 2, apply: func(a, b float64) (float64, string) {
		if b == 0 {
			return 0, "modulo by zero"
		}
		return math.Mod(a, b), ""
	}},
	"^": {prec: 4, right: true, apply: func(a, b float64) (float64, string) { return math.Pow(a, b), "" }},
}

// Unary minus binds looser than ^, so -2^2 is -4.
const unaryPrec = 3

type mathFunc struct {
	minArgs, maxArgs int
	apply            func(args []float64) (float64, string)
}

func unaryFunc(f func(float64) float64) mathFunc {
	return mathFunc{minArgs: 1, maxArgs: 1, apply: func(args []float64) (float64, string) { return f(args[0]), "" }}
}

var mathFuncs = map[string]mathFunc{
	"abs":   unaryFunc(math.Abs),
	"round": unaryFunc(math.Round),
	"floor": unaryFunc(math.Floor),
	"ceil":  unaryFunc(math.Ceil),
	"sqrt": {minArgs: 1, maxArgs: 1, apply: func(args []float64) (float64, string) {
		if args[0] < 0 {
			return 0, "square root of a negative number"
		}
		return math.Sqrt(args[0]), ""
	}},
	"min": {minArgs: 1, apply: func(args []float64) (float64, string) {
		out := args[0]
		for _, a := range args[1:] {
			out = math.Min(out, a)
		}
		return out, ""
	}},
	"max": {minArgs: 1, apply: func(args []float64) (float64, string) {
		out := args[0]
		for _, a := range args[1:] {
			out = math.Max(out, a)
		}
		return out, ""
	}},
}

var mathConstants = map[string]float64{"pi": math.Pi, "e": math.E}

type mathEval struct {
	src  string
	toks []mathToken
	pos  int
	vars map[string]float64
}

func (ev *mathEval) peek() mathToken { return ev.toks[ev.pos] }

func (ev *mathEval) next() mathToken {
	t := ev.toks[ev.pos]
	if t.kind != tokEnd {
		ev.pos++
	}
	return t
}

func (ev *mathEval) fail(t mathToken, reason string) *MathError {
	return &MathError{Expression: ev.src, Column: t.col, Reason: reason}
}

// binary parses operators of at least minPrec by precedence climbing.
func (ev *mathEval) binary(minPrec int) (float64, error) {
	left, err := ev.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := ev.peek()
		op, ok := binaryOps[t.text]
		if t.kind != tokOp || !ok || op.prec < minPrec {
			return left, nil
		}
		ev.next()
		nextPrec := op.prec + 1
		if op.right {
			nextPrec = op.prec
		}
		right, err := ev.binary(nextPrec)
		if err != nil {
			return 0, err
		}
		value, reason := op.apply(left, right)
		if reason != "" {
			return 0, ev.fail(t, reason)
		}
		left = value
	}
}

func (ev *mathEval) unary() (float64, error) {
	t := ev.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		ev.next()
		v, err := ev.binary(unaryPrec)
		if err != nil {
			return 0, err
		}
		if t.text == "-" {
			return -v, nil
		}
		return v, nil
	}
	return ev.operand()
}

func (ev *mathEval) operand() (float64, error) {
	t := ev.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokOpen:
		v, err := ev.binary(0)
		if err != nil {
			return 0, err
		}
		if c := ev.next(); c.kind != tokClose {
			return 0, ev.fail(c, fmt.Sprintf("expected ) to close column %d", t.col))
		}
		return v, nil
	case tokName:
		if ev.peek().kind == tokOpen {
			return ev.call(t)
		}
		if v, ok := ev.vars[t.text]; ok {
			return v, nil
		}
		if v, ok := mathConstants[t.text]; ok {
			return v, nil
		}
		return 0, ev.fail(t, fmt.Sprintf("unknown variable %q", t.text))
	default:
		return 0, ev.fail(t, fmt.Sprintf("expected a number, got %q", t.text))
	}
}

func (ev *mathEval) call(name mathToken) (float64, error) {
	fn, ok := mathFuncs[name.text]
	if !ok {
		return 0, ev.fail(name, fmt.Sprintf("unknown function %q", name.text))
	}
	ev.next()
	var args []float64
	if ev.peek().kind != tokClose {
		for {
			v, err := ev.binary(0)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if ev.peek().kind != tokComma {
				break
			}
			ev.next()
		}
	}
	if c := ev.next(); c.kind != tokClose {
		return 0, ev.fail(c, fmt.Sprintf("expected ) after arguments to %s", name.text))
	}
	if len(args) < fn.minArgs || fn.maxArgs > 0 && len(args) > fn.maxArgs {
		return 0, ev.fail(name, fmt.Sprintf("%s takes %s", name.text, arity(fn)))
	}
	v, reason := fn.apply(args)
	if reason != "" {
		return 0, ev.fail(name, reason)
	}
	return v, nil
}

func arity(fn mathFunc) string {
	switch {
	case fn.maxArgs == 0:
		return fmt.Sprintf("at least %d argument(s)", fn.minArgs)
	case fn.minArgs == fn.maxArgs:
		return fmt.Sprintf("%d argument(s)", fn.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", fn.minArgs, fn.maxArgs)
	}
}
