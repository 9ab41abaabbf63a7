package skillauthority

import (
	"regexp"
	"strings"

	"github.com/localmind/assistant/internal/pipeline"
)

// blockedKeywords and blockedImports are the safety validator's
// keyword/import blocklist (spec.md §4.4 flow step 4) — the same
// fixed-pattern, no-ecosystem-dependency idiom as
// pipeline.defaultBlockedPatterns, scoped to code/import surface instead
// of free-text reasoning.
var blockedKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bos\.system\b`),
	regexp.MustCompile(`(?i)\bexec\.Command\b`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\brm\s+-rf\s+/`),
}

var blockedImports = map[string]bool{
	"subprocess": true,
	"ctypes":     true,
	"socket":     true,
}

// SafetyValidator runs the C6 safety pass: keyword/import blocklist plus
// anti-patterns, producing a ControlDecision. It never returns an error —
// like ValidateAll's fail-fast ordering, every branch terminates in a
// definite decision rather than propagating ambiguity upward.
type SafetyValidator struct{}

// NewSafetyValidator builds a SafetyValidator.
func NewSafetyValidator() *SafetyValidator {
	return &SafetyValidator{}
}

// Validate inspects code and its declared imports and returns the
// resulting ControlDecision. source is stamped onto the decision so
// downstream fail-closed checks (ControlDecision.IsFailClosed) can verify
// provenance.
func (v *SafetyValidator) Validate(code string, imports []string, source string) *pipeline.ControlDecision {
	for _, re := range blockedKeywords {
		if re.MatchString(code) {
			return &pipeline.ControlDecision{
				Action: pipeline.ControlActionBlock, Passed: false, Source: source,
				PolicyVersion: "v1", Reasons: []string{"blocked keyword matched: " + re.String()},
			}
		}
	}

	var flaggedImports []string
	for _, imp := range imports {
		if blockedImports[strings.ToLower(strings.TrimSpace(imp))] {
			flaggedImports = append(flaggedImports, imp)
		}
	}
	if len(flaggedImports) > 0 {
		return &pipeline.ControlDecision{
			Action: pipeline.ControlActionEscalate, Passed: false, Source: source,
			PolicyVersion: "v1", Reasons: []string{"flagged imports require approval: " + strings.Join(flaggedImports, ", ")},
		}
	}

	if strings.TrimSpace(code) == "" {
		return &pipeline.ControlDecision{
			Action: pipeline.ControlActionBlock, Passed: false, Source: source,
			PolicyVersion: "v1", Reasons: []string{"empty code body"},
		}
	}

	return &pipeline.ControlDecision{
		Action: pipeline.ControlActionApprove, Passed: true, Source: source, PolicyVersion: "v1",
	}
}
