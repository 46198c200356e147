package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/orchestrator.txt
	orchestratorRaw string

	//go:embed template/translator.txt
	translatorRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Orchestrator string
	Translator   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Orchestrator: strings.TrimSpace(orchestratorRaw),
		Translator:   strings.TrimSpace(translatorRaw),
	}
}
