// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
)

// DefaultAmbiguousPhrases seeds the known-ambiguous phrase list. Phrases on
// this list pin an optimize match to low confidence so the gate defers them
// to clarification; operators extend the list through the rules file.
var DefaultAmbiguousPhrases = []string{"start me a flow session"}

// lowSignalPhrases mark free text that carries almost no routable intent:
// greetings, pleasantries, and bare calls for help.
var lowSignalPhrases = []string{"what is this", "need assistance", "weather"}

var lowSignalWords = []string{"hello", "hi", "hey", "help", "thanks", "thank"}

// Scorer computes a 0-100 confidence score for a (request, service) pair
// from weighted field and text signals. It holds no per-request state; the
// only mutable piece is the operator-configurable ambiguous phrase list.
type Scorer struct {
	mu        sync.RWMutex
	ambiguous []string
}

// NewScorer returns a scorer seeded with DefaultAmbiguousPhrases.
func NewScorer() *Scorer {
	s := &Scorer{}
	s.SetAmbiguousPhrases(DefaultAmbiguousPhrases)
	return s
}

// SetAmbiguousPhrases replaces the known-ambiguous phrase list. Phrases are
// matched case-insensitively as substrings of the request's free text.
func (s *Scorer) SetAmbiguousPhrases(phrases []string) {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	s.mu.Lock()
	s.ambiguous = lowered
	s.mu.Unlock()
}

func (s *Scorer) ambiguousPhrases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambiguous
}

// Score computes the confidence for routing the request to the candidate
// service, together with the signals that contributed. The result is always
// within [0,100]. ServiceChat always scores zero: clarification is a gate
// outcome, not a scored destination.
func (s *Scorer) Score(p payload.Payload, candidate Service) (int, []string) {
	text, hasText := p.Text()
	text = strings.ToLower(text)

	var score int
	var signals []string

	switch candidate {
	case ServiceQuestions:
		score, signals = s.scoreQuestions(p, text, hasText)
	case ServiceInsights:
		score, signals = s.scoreInsights(p, text, hasText)
	case ServiceOptimize:
		score, signals = s.scoreOptimize(p, text, hasText)
	case ServiceReports:
		switch {
		case p.Has("report_type"):
			score, signals = 90, []string{"report_type field present"}
		case p.HasAny(reportFields...) || containsAny(text, reportPhrases):
			score, signals = 75, []string{"report signal present"}
		default:
			score, signals = 20, []string{"no report signal"}
		}
	case ServicePreferences:
		if _, ok := p.Object("preferences"); ok {
			score, signals = 90, []string{"preferences object present"}
		} else if p.HasAny(preferenceFields...) || containsAny(text, preferencePhrases) {
			score, signals = 80, []string{"preference signal present"}
		} else {
			score, signals = 20, []string{"no preference signal"}
		}
	default:
		return 0, nil
	}

	return clampScore(score), signals
}

func (s *Scorer) scoreQuestions(p payload.Payload, text string, hasText bool) (int, []string) {
	if !hasText {
		// Only filler or unknown fields, nothing to answer.
		return 30, []string{"no free-text field"}
	}
	if isLowSignal(text) {
		return 40, []string{"low-signal text"}
	}
	if len(text) >= 10 {
		return 95, []string{"qualifying question text"}
	}
	return 70, []string{"short question text"}
}

func (s *Scorer) scoreInsights(p payload.Payload, text string, hasText bool) (int, []string) {
	if hasText && containsAny(text, insightPhrases) {
		// Text-driven insight requests: a full analysis question scores like
		// a qualifying question; fragmentary keyword mentions stay at 85.
		if len(text) >= 10 && !isLowSignal(text) {
			return 95, []string{"analysis question text"}
		}
		return 85, []string{"productivity keywords in text"}
	}

	if !p.HasAny(insightFields...) {
		return 25, []string{"no analytics signal"}
	}
	score := 70
	signals := []string{"analytics request shape"}
	for _, field := range insightFields {
		if p.Has(field) {
			score += 15
			signals = append(signals, field+" field present")
		}
	}
	if score > 95 {
		score = 95
	}
	return score, signals
}

func (s *Scorer) scoreOptimize(p payload.Payload, text string, hasText bool) (int, []string) {
	if hasText {
		for _, phrase := range s.ambiguousPhrases() {
			if strings.Contains(text, phrase) {
				return 40, []string{fmt.Sprintf("known-ambiguous phrase %q", phrase)}
			}
		}
		if containsAny(text, optimizePhrases) {
			return 85, []string{"scheduling keywords in text"}
		}
	}

	if p.Has("preferences") && p.Has("constraints") {
		return 90, []string{"preferences with constraints"}
	}
	if !p.HasAny(optimizeFields...) {
		return 25, []string{"no scheduling signal"}
	}
	score := 65
	signals := []string{"scheduling request shape"}
	for _, field := range optimizeFields {
		if p.Has(field) {
			score += 15
			signals = append(signals, field+" field present")
		}
	}
	if score > 90 {
		score = 90
	}
	return score, signals
}

// ScoredCandidate pairs a service with its confidence and the signals
// that produced it.
type ScoredCandidate struct {
	Service    Service  `json:"service"`
	Confidence int      `json:"confidence"`
	Signals    []string `json:"matched_signals,omitempty"`
}

// Rank scores the request against every real service and returns the
// candidates in descending confidence order. Ties break on the canonical
// service priority so ranking is fully deterministic.
func (s *Scorer) Rank(p payload.Payload) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(realServices))
	priority := make(map[Service]int, len(realServices))
	for i, svc := range realServices {
		priority[svc] = i
		score, signals := s.Score(p, svc)
		ranked = append(ranked, ScoredCandidate{Service: svc, Confidence: score, Signals: signals})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return priority[ranked[i].Service] < priority[ranked[j].Service]
	})
	return ranked
}

func isLowSignal(text string) bool {
	return containsAny(text, lowSignalPhrases) || hasWord(text, lowSignalWords...)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
