// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"strings"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
)

// Field keyword sets per service. A request carrying any of these keys is a
// strong structured signal for the owning service.
var (
	reportFields     = []string{"report_type", "report", "analytics", "summary", "period", "export"}
	preferenceFields = []string{"preferences", "settings", "work_hours", "notifications"}
	optimizeFields   = []string{"schedule", "constraints", "efficiency"}
	insightFields    = []string{"timeframe", "focus_areas", "trends"}
	questionFields   = []string{"question", "query", "ask"}
)

// Free-text phrase sets. Matching is case-insensitive substring containment;
// short single words that would over-match as substrings (hi, help, ...) are
// matched on word boundaries instead, see hasWord.
var (
	reportPhrases = []string{"report", "export", "csv", "download my data"}

	preferencePhrases = []string{
		"update my settings", "change my settings", "my preferences",
		"notification", "work schedule", "working hours",
	}

	optimizePhrases = []string{
		"optimize", "optimise", "schedule", "best time", "organize", "organise",
		"when should",
	}

	// Insight phrasing is deliberately specific (analysis of past activity),
	// so that generic "how do I get better" advice falls through to the
	// questions rule below.
	insightPhrases = []string{
		"how productive", "productive was i", "my energy", "energy level",
		"productivity trend", "analyze my", "analyse my", "insight",
	}

	// generalAdvicePhrases mark a question as answerable generic advice.
	// Anything outside this list with a question field present is treated
	// as ambiguous rather than force-routed, see the no-match policy note
	// on Match.
	generalAdvicePhrases = []string{
		"how to be productive", "how can i be productive",
		"improve my productivity", "productivity tips",
		"workflow tips", "workflow", "best practice",
		"what is this", "what can you do", "how does this work",
		"advice",
	}

	greetingWords = []string{"hello", "hi", "hey", "thanks", "thank"}
)

// RuleEngine is the deterministic, priority-ordered matcher. Narrow
// structured intents (reports, preferences) are evaluated before the broader
// productivity phrasing (optimize, insights, questions) so a generic question
// cannot shadow an explicit analytics or settings request.
type RuleEngine struct{}

// NewRuleEngine returns the matcher with the built-in rule table.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Match returns the first service whose signals match the request, or false
// when nothing fits. It never errors: a nil map behaves as an empty request.
//
// No-match policy: a request whose free text fits none of the phrase sets is
// reported as unmatched here, even when a question field is present. Guessing
// for ambiguous free text is the confidence gate's job, not the rule table's.
func (e *RuleEngine) Match(p payload.Payload) (Service, bool) {
	text, _ := p.Text()
	text = strings.ToLower(text)

	if p.HasAny(reportFields...) || containsAny(text, reportPhrases) {
		return ServiceReports, true
	}

	// A preferences object combined with constraints is a scheduling job,
	// not a settings update; leave it for the optimize rule.
	prefSignal := p.HasAny(preferenceFields...) && !(p.Has("preferences") && p.Has("constraints"))
	if prefSignal || containsAny(text, preferencePhrases) {
		return ServicePreferences, true
	}

	if p.HasAny(optimizeFields...) || containsAny(text, optimizePhrases) ||
		(p.Has("preferences") && p.Has("constraints")) {
		return ServiceOptimize, true
	}

	if p.HasAny(insightFields...) || containsAny(text, insightPhrases) {
		return ServiceInsights, true
	}

	if p.HasAny(questionFields...) {
		if containsAny(text, generalAdvicePhrases) || hasWord(text, greetingWords...) {
			return ServiceQuestions, true
		}
		// Present question with non-generic content: ambiguous, no match.
	}

	return "", false
}

// containsAny reports whether text contains any of the phrases.
// Both sides are expected to be lower-case already.
func containsAny(text string, phrases []string) bool {
	if text == "" {
		return false
	}
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// hasWord reports whether text contains any of the words on a word boundary.
// Used for short tokens (hi, hey) that over-match as plain substrings.
func hasWord(text string, words ...string) bool {
	if text == "" {
		return false
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
