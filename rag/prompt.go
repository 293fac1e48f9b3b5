package rag

import "strings"

// Placeholder is the template marker replaced with the current context.
const Placeholder = "{rag_context}"

// NoContextFallback is substituted when the context store is empty, so the
// template never renders with a blank block.
const NoContextFallback = "No specific context provided."

// BuildPrompt renders template with the store's current context substituted
// for Placeholder. It is a pure function of the template and the store value
// at call time, so it must be called fresh before every LLM request: the
// store may change between turns.
//
// An empty or whitespace-only context renders as NoContextFallback. A
// template without Placeholder is returned unchanged.
func BuildPrompt(template string, store *ContextStore) string {
	context := store.Get()
	if strings.TrimSpace(context) == "" {
		context = NoContextFallback
	}
	return strings.ReplaceAll(template, Placeholder, context)
}
