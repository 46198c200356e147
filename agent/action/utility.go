package action

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

const maxDelaySeconds = 600

func utilityActions(deps Dependencies) []builtin {
	out := []builtin{
		{
			decl: Declaration{
				Name:        "getCurrentTime",
				Description: "Get the current date and time, optionally in an IANA time zone.",
				Parameters: []Field{
					str("timezone", "IANA time zone name, UTC when omitted.", "Asia/Bangkok"),
				},
				Response: []Field{
					str("iso", "Current time, RFC 3339.", nil),
					integer("unix", "Seconds since the Unix epoch.", nil),
					str("timezone", "Zone the time is expressed in.", nil),
				},
			},
			exec: getCurrentTime,
		},
		{
			decl: Declaration{
				Name:        "delay",
				Description: "Wait for a number of seconds (0 to 600) before the next action.",
				Parameters: []Field{
					required(num("seconds", "How long to wait.", 5)),
				},
				Response: []Field{
					num("waitedSeconds", "Seconds actually waited.", nil),
				},
			},
			exec: delay,
		},
		{
			decl: Declaration{
				Name:        "evaluateMath",
				Description: "Evaluate an arithmetic expression with + - * / % ^, parentheses, pi, e and the functions abs, round, floor, ceil, sqrt, min, max. Name values from earlier results in variables and use the names in the expression.",
				Parameters: []Field{
					required(str("expression", "Expression to evaluate.", "round(xp / needed * 100)")),
					list("variables", "Named numbers the expression may use.", object("variable", "One named number.",
						required(str("name", "Identifier used in the expression.", "xp")),
						required(num("value", "The number, often a reference to an earlier result.", "getUserLevel::data.xpIntoLevel::0")),
					)),
				},
				Response: []Field{
					str("expression", "The evaluated expression.", nil),
					num("result", "Numeric result.", nil),
				},
			},
			exec: evaluateMath,
		},
		{
			decl: Declaration{
				Name:        ResponseAction,
				Description: "Give the final answer to the user. Call this last; no further actions run after it.",
				Parameters: []Field{
					required(str("responseMessage", "Message shown to the user.", "Done! The ticket is yours.")),
				},
				Response: []Field{
					str("responseMessage", "Message shown to the user.", nil),
				},
			},
			exec: respond,
		},
	}
	if deps.Translator != nil {
		out = append(out, builtin{
			decl: Declaration{
				Name:        "translateText",
				Description: "Translate text into another language.",
				Parameters: []Field{
					required(str("text", "Text to translate.", "Welcome to the server!")),
					required(str("targetLanguage", "Language to translate into.", "Thai")),
				},
				Response: []Field{
					str("translatedText", "Translated text.", nil),
					str("targetLanguage", "Language of the translation.", nil),
				},
			},
			exec: translateText(deps.Translator),
		})
	}
	return out
}

func getCurrentTime(_ context.Context, ec contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	loc := time.UTC
	if name := p.String("timezone"); name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown time zone %q", contractx.ErrValidation, name)
		}
		loc = l
	}
	now := ec.Clock().In(loc)
	return map[string]any{
		"iso":      now.Format(time.RFC3339),
		"unix":     now.Unix(),
		"timezone": loc.String(),
	}, nil
}

func delay(ctx context.Context, _ contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	seconds := p.Float("seconds")
	if seconds < 0 || seconds > maxDelaySeconds {
		return nil, fmt.Errorf("%w: seconds must be between 0 and %d", contractx.ErrValidation, maxDelaySeconds)
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delay interrupted: %w", ctx.Err())
	case <-timer.C:
	}
	return map[string]any{"waitedSeconds": seconds}, nil
}

func respond(_ context.Context, _ contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
	msg := p.String("responseMessage")
	if msg == "" {
		return nil, fmt.Errorf("%w: responseMessage must not be empty", contractx.ErrValidation)
	}
	return map[string]any{"responseMessage": msg}, nil
}

func translateText(tr contractx.Translator) Executor {
	return func(ctx context.Context, _ contractx.ExecutionContext, _ []contractx.ActionResult, p Params) (any, error) {
		text := p.String("text")
		target := p.String("targetLanguage")
		if text == "" || target == "" {
			return nil, fmt.Errorf("%w: text and targetLanguage are required", contractx.ErrValidation)
		}
		out, err := tr.Translate(ctx, text, target)
		if err != nil {
			return nil, fmt.Errorf("translate: %w", err)
		}
		return map[string]any{"translatedText": out, "targetLanguage": target}, nil
	}
}
