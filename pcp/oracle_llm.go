package pcp

import (
	"context"
	"encoding/json"
	"strings"
)

// ChatModel is the slice of the LLM client the oracle needs.
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// extractionPrompts maps schema tags to the system prompt instructing the
// model which JSON fields to produce. The prompt text lives here, at the
// oracle boundary, never in the engine.
var extractionPrompts = map[string]string{
	SchemaProviderIdentity: "Extract the provider the member is referring to from their message. " +
		`Respond with only a JSON object using these optional keys: ` +
		`"providerId", "providerName", "city", "state".`,
	SchemaFilters: "Extract provider search criteria from the member's message. " +
		`Respond with only a JSON object using these optional keys: ` +
		`"specialty", "gender", "language", "zipCode".`,
	SchemaSelection: "The member is choosing a provider from a list. " +
		`Respond with only a JSON object using these optional keys: ` +
		`"action" (use "assign_pcp" when they want the provider assigned), "candidateId".`,
}

// LLMOracle extracts fragments with a chat model. Any failure, from the
// gateway call itself to unparsable model output, degrades to the
// fail-closed default fragment so a bad model response never aborts a turn.
type LLMOracle struct {
	model ChatModel
}

// NewLLMOracle creates an oracle backed by the given chat model.
func NewLLMOracle(model ChatModel) *LLMOracle {
	return &LLMOracle{model: model}
}

func (o *LLMOracle) Extract(ctx context.Context, schemaTag, freeText string) (*Fragment, error) {
	prompt, ok := extractionPrompts[schemaTag]
	if !ok {
		return FailClosedFragment(freeText), nil
	}
	reply, err := o.model.Complete(ctx, prompt, freeText)
	if err != nil {
		return FailClosedFragment(freeText), nil
	}
	fragment, ok := parseFragment(reply)
	if !ok {
		return FailClosedFragment(freeText), nil
	}
	return fragment, nil
}

// parseFragment finds the first JSON object in the model's reply and decodes
// it. Models wrap JSON in prose and code fences often enough that scanning
// for braces is more reliable than decoding the reply directly.
func parseFragment(reply string) (*Fragment, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var fragment Fragment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &fragment); err != nil {
		return nil, false
	}
	return &fragment, true
}
