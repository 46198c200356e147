package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

// ComposeReply picks the one user-facing string: the latest successful
// response action, then the model's closing text. It reports false when
// neither exists.
func ComposeReply(results []contractx.ActionResult, closing string, responseAction string) (string, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.FunctionName != responseAction || !r.Success {
			continue
		}
		if msg, ok := r.Data["responseMessage"].(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg), true
		}
	}
	if text := strings.TrimSpace(closing); text != "" {
		return text, true
	}
	return "", false
}

func FormatReply(in *GraphState, responseAction string) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	text, ok := ComposeReply(in.Results, in.Closing, responseAction)
	return GraphOutput{
		ConversationID: in.ConversationID,
		Text:           text,
		OK:             ok,
		Results:        in.Results,
		Reason:         in.Reason,
		Turns:          in.Turns,
	}, nil
}
