// Package providers constructs the concrete adapter for each provider
// family.
package providers

import (
	"fmt"

	"editron/internal/llm"
	"editron/internal/llm/providers/gemini"
	"editron/internal/llm/providers/openai"
)

// New builds the adapter for the provider's family.
func New(spec llm.Spec) (llm.Provider, error) {
	switch spec.Family {
	case llm.FamilyParts:
		return gemini.NewClient(spec.Label, spec.Endpoint), nil
	case llm.FamilyMessages:
		return openai.NewClient(spec.Label, spec.Endpoint), nil
	default:
		return nil, fmt.Errorf("unknown provider family: %q", spec.Family)
	}
}
