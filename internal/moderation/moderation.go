// Package moderation defines the content-safety port the object-commit
// service and turn processor gate on, plus a default keyword-based engine.
// The core treats the port as opaque; the banned set and decision algorithm
// are configuration, not contract.
package moderation

import "strings"

// Port is the abstract moderation interface.
type Port interface {
	EvaluateText(text string) SafetyResult
	EvaluateLabels(labels []string) SafetyResult
}

// SafetyResult is the outcome of one moderation evaluation.
type SafetyResult struct {
	Category string   `json:"category"` // "text" or "image"
	Passed   bool     `json:"passed"`
	Reasons  []string `json:"reasons"`
}

// SafetySummary aggregates one or more SafetyResults. Passed iff every
// child passed; Reasons is the flattened concatenation of children's
// reasons.
type SafetySummary struct {
	Results []SafetyResult `json:"results"`
	Passed  bool            `json:"passed"`
}

// NewSafetySummary aggregates results. With no results, it returns the
// canonical single-passing-text-result default for "nothing to evaluate".
func NewSafetySummary(results ...SafetyResult) SafetySummary {
	if len(results) == 0 {
		return SafetySummary{
			Results: []SafetyResult{{Category: "text", Passed: true, Reasons: nil}},
			Passed:  true,
		}
	}
	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}
	return SafetySummary{Results: results, Passed: passed}
}

// Reasons flattens every child result's reasons, in result order.
func (s SafetySummary) Reasons() []string {
	var out []string
	for _, r := range s.Results {
		out = append(out, r.Reasons...)
	}
	return out
}

// ToPayload renders the summary the way audit logs and timeline events carry
// it on the wire.
func (s SafetySummary) ToPayload() map[string]any {
	results := make([]map[string]any, 0, len(s.Results))
	for _, r := range s.Results {
		results = append(results, map[string]any{
			"category": r.Category,
			"passed":   r.Passed,
			"reasons":  r.Reasons,
		})
	}
	return map[string]any{
		"passed":  s.Passed,
		"results": results,
		"reasons": s.Reasons(),
	}
}

// DefaultKeywords is the canonical banned-keyword set (see §9 "Duck-typed
// result objects": the inlined fallback in the original source is canonical).
var DefaultKeywords = []string{"violence", "blood", "weapon", "scary", "alcohol"}

// DefaultEngine is a case-insensitive substring-membership moderation
// engine. It is the only implementation this core ships; production
// deployments may swap in a different Port.
type DefaultEngine struct {
	banned []string
}

// NewDefaultEngine builds an engine over the given banned-keyword list. A
// nil/empty list falls back to DefaultKeywords.
func NewDefaultEngine(banned []string) *DefaultEngine {
	if len(banned) == 0 {
		banned = DefaultKeywords
	}
	normalized := make([]string, len(banned))
	for i, kw := range banned {
		normalized[i] = strings.ToLower(kw)
	}
	return &DefaultEngine{banned: normalized}
}

// EvaluateText flags any banned keyword found as a case-insensitive
// substring of text.
func (e *DefaultEngine) EvaluateText(text string) SafetyResult {
	lowered := strings.ToLower(text)
	var triggers []string
	for _, kw := range e.banned {
		if strings.Contains(lowered, kw) {
			triggers = append(triggers, kw)
		}
	}
	return SafetyResult{Category: "text", Passed: len(triggers) == 0, Reasons: triggers}
}

// EvaluateLabels flags any banned keyword present (case-insensitively) among
// the given labels.
func (e *DefaultEngine) EvaluateLabels(labels []string) SafetyResult {
	normalized := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		normalized[strings.ToLower(label)] = struct{}{}
	}
	var triggers []string
	for _, kw := range e.banned {
		if _, ok := normalized[kw]; ok {
			triggers = append(triggers, kw)
		}
	}
	return SafetyResult{Category: "image", Passed: len(triggers) == 0, Reasons: triggers}
}

var _ Port = (*DefaultEngine)(nil)
