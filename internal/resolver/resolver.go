// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
	"fmt"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
)

// DefaultConfidenceThreshold is the minimum confidence required to
// auto-route. Anything below defers to chat for clarification.
const DefaultConfidenceThreshold = 50

// Result is a resolution decision. Service is always set: either a real
// routable service or ServiceChat when the request needs clarification.
type Result struct {
	Service      Service   `json:"service"`
	Confidence   int       `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	Alternatives []Service `json:"alternatives,omitempty"`
}

// Suggestion is the non-committal counterpart of Result: the top scored
// candidate plus at most two runners-up, used by clarification replies.
type Suggestion struct {
	Suggested    Service           `json:"suggested_service"`
	Confidence   int               `json:"confidence"`
	Reasoning    string            `json:"reasoning"`
	Alternatives []ScoredCandidate `json:"alternatives,omitempty"`
}

// Options configures a Resolver. The zero value is valid: built-in rules,
// default threshold, no custom rules, no classifier.
type Options struct {
	// Classifier is the optional model-backed fallback for text the rule
	// table cannot place. Nil disables it with no behavior change elsewhere.
	Classifier *Classifier

	// Custom holds operator-defined rules checked before the built-in table.
	Custom *CustomRules

	// ConfidenceThreshold overrides DefaultConfidenceThreshold when positive.
	ConfidenceThreshold int
}

// Resolver decides which service owns a request. Resolution is
// deterministic for a given payload and rule set; the classifier only
// participates when the deterministic path finds nothing.
type Resolver struct {
	rules      *RuleEngine
	scorer     *Scorer
	classifier *Classifier
	custom     *CustomRules
	threshold  int
}

// New builds a Resolver from Options.
func New(opts Options) *Resolver {
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	scorer := NewScorer()
	if opts.Custom != nil {
		if extra := opts.Custom.AmbiguousPhrases(); len(extra) > 0 {
			scorer.SetAmbiguousPhrases(append(DefaultAmbiguousPhrases, extra...))
		}
	}
	return &Resolver{
		rules:      NewRuleEngine(),
		scorer:     scorer,
		classifier: opts.Classifier,
		custom:     opts.Custom,
		threshold:  threshold,
	}
}

// RefreshAmbiguousPhrases re-merges the custom ambiguous phrase list into
// the scorer, for use after a rules file reload.
func (r *Resolver) RefreshAmbiguousPhrases() {
	if r.custom == nil {
		return
	}
	r.scorer.SetAmbiguousPhrases(append(DefaultAmbiguousPhrases, r.custom.AmbiguousPhrases()...))
}

// Resolve maps an arbitrary request body to a service decision. It never
// fails: malformed input resolves to chat with zero confidence.
//
// Precedence: explicit service override, operator rules, built-in rules
// with scoring, classifier, then the confidence gate.
func (r *Resolver) Resolve(ctx context.Context, raw any) Result {
	p := payload.Normalize(raw)

	// An explicit service name bypasses everything, recognized or not.
	// Rejecting unknown names is the dispatcher's job, not resolution's.
	if name, ok := p.Service(); ok {
		return Result{
			Service:    Service(name),
			Confidence: 100,
			Reasoning:  "explicit service field",
		}
	}

	if svc, conf, name, ok := r.custom.Match(p); ok {
		return r.gate(p, svc, conf, fmt.Sprintf("custom rule %q", name))
	}

	if svc, ok := r.rules.Match(p); ok {
		conf, signals := r.scorer.Score(p, svc)
		return r.gate(p, svc, conf, describeSignals(signals))
	}

	if text, ok := p.Text(); ok {
		if svc, conf, ok := r.classifier.Classify(ctx, text); ok {
			if svc == ServiceChat {
				return Result{
					Service:      ServiceChat,
					Confidence:   conf,
					Reasoning:    "classified as conversational",
					Alternatives: r.topAlternatives(p, ServiceChat),
				}
			}
			return r.gate(p, svc, conf, "classified from request text")
		}
	}

	// Nothing matched at all.
	return Result{
		Service:      ServiceChat,
		Confidence:   0,
		Reasoning:    "no routing signal in request",
		Alternatives: r.topAlternatives(p, ServiceChat),
	}
}

// gate applies the confidence threshold to a candidate decision.
func (r *Resolver) gate(p payload.Payload, svc Service, conf int, reasoning string) Result {
	if conf >= r.threshold {
		return Result{
			Service:      svc,
			Confidence:   conf,
			Reasoning:    reasoning,
			Alternatives: r.topAlternatives(p, svc),
		}
	}
	return Result{
		Service:      ServiceChat,
		Confidence:   conf,
		Reasoning:    fmt.Sprintf("%s at confidence %d, below routing threshold", svc, conf),
		Alternatives: r.topAlternatives(p, ServiceChat),
	}
}

// topAlternatives returns up to two ranked services other than the chosen
// one. Chat is never an alternative.
func (r *Resolver) topAlternatives(p payload.Payload, chosen Service) []Service {
	var out []Service
	for _, c := range r.scorer.Rank(p) {
		if c.Service == chosen {
			continue
		}
		out = append(out, c.Service)
		if len(out) == 2 {
			break
		}
	}
	return out
}

// Suggest scores the request against every routable service without
// committing to a route, returning the best candidate and the next two.
// The ranking is deterministic, so a clarification reply can present the
// user with stable options.
func (r *Resolver) Suggest(raw any) Suggestion {
	p := payload.Normalize(raw)
	ranked := r.scorer.Rank(p)
	top := ranked[0]
	alts := ranked[1:]
	if len(alts) > 2 {
		alts = alts[:2]
	}
	return Suggestion{
		Suggested:    top.Service,
		Confidence:   top.Confidence,
		Reasoning:    describeBasis(p),
		Alternatives: alts,
	}
}

// describeBasis names the strongest structural signal in the request, in a
// fixed priority order so the wording is stable for identical payloads.
func describeBasis(p payload.Payload) string {
	if text, ok := p.Text(); ok {
		return fmt.Sprintf("based on request text %q", text)
	}
	if p.HasAny("timeframe", "focus_areas") {
		return "based on analytics fields"
	}
	if _, ok := p.Object("preferences"); ok {
		return "based on preferences object"
	}
	if p.Has("report_type") {
		return "based on report_type field"
	}
	return "inferred from request structure"
}

func describeSignals(signals []string) string {
	if len(signals) == 0 {
		return "matched built-in rule"
	}
	out := signals[0]
	for _, s := range signals[1:] {
		out += ", " + s
	}
	return out
}
