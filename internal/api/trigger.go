package api

import (
	"strings"

	"github.com/localmind/assistant/internal/config"
)

// timeReferenceKeywords are phrases that suggest the user is asking about
// a relative or absolute point in time, warranting the Context Builder's
// time_reference JIT window (spec.md §4.1).
var timeReferenceKeywords = []string{
	"yesterday", "last week", "last time", "earlier today", "this morning",
	"a few days ago", "last month", "on monday", "on tuesday", "on wednesday",
	"on thursday", "on friday", "on saturday", "on sunday",
}

// rememberKeywords flag an explicit instruction to persist a fact, rather
// than a question about the past.
var rememberKeywords = []string{"remember that", "remember this", "please remember", "don't forget", "keep in mind"}

// detectTrigger derives the top-level config.Trigger for an incoming chat
// turn. The Context Builder itself never infers this — it only sizes its
// cross-conversation-facts JIT window off whatever Trigger it's handed
// (internal/contextbuilder's jitWindow) — spec.md §4.1 and §4.3 both
// assume the caller supplies Trigger, so the API layer owns this keyword
// heuristic the same way tarsy's auth.go owns deriving an author identity
// from request headers: a small, explicit, best-effort classification at
// the HTTP boundary rather than business logic buried deeper in the
// pipeline.
func detectTrigger(userMessage string) config.Trigger {
	lower := strings.ToLower(userMessage)

	for _, kw := range rememberKeywords {
		if strings.Contains(lower, kw) {
			return config.TriggerRemember
		}
	}
	for _, kw := range timeReferenceKeywords {
		if strings.Contains(lower, kw) {
			return config.TriggerTimeReference
		}
	}
	if strings.Contains(lower, "what did i say") || strings.Contains(lower, "what did we discuss") ||
		strings.Contains(lower, "did i mention") || strings.Contains(lower, "have i told you") {
		return config.TriggerFactRecall
	}
	return config.TriggerNone
}
