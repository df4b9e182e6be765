// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

// Generator is the single capability the classifier needs from a language
// model backend. Implementations live outside this package; the resolver
// works identically with or without one.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

const (
	// classifierTimeout bounds a single classification round trip. Rule and
	// score resolution stays sub-millisecond; the model path must never make
	// a request wait longer than this.
	classifierTimeout = 3 * time.Second

	classifierMaxTokens   = 10
	classifierTemperature = 0.1

	// defaultPromptBudget caps the tokens spent on the user text embedded in
	// the classification prompt.
	defaultPromptBudget = 256

	// classifierBaseConfidence is what a clean, validated model answer is
	// worth. Model output is never trusted as much as a direct rule match.
	classifierBaseConfidence = 75
	shortInputCap            = 60
	chatResultCap            = 50
)

const classifierPromptHeader = `Classify the user request into exactly one category.

Categories:
- insights: analysis of past productivity, energy, or activity trends
- optimize: scheduling, planning, or reorganizing upcoming work
- questions: general productivity questions and advice
- preferences: updating settings, notifications, or working hours
- reports: generating or exporting summaries of recorded data
- chat: greetings, small talk, or anything that fits no other category

Examples:
"How productive was I last week?" -> insights
"Plan my deep work blocks for tomorrow" -> optimize
"What is the pomodoro technique?" -> questions
"Turn off evening notifications" -> preferences
"Export my monthly summary" -> reports
"hey there" -> chat

Answer with the category name only, lower case.

Request: `

// Classifier asks a language model to categorize free text that the rule
// table could not place. It is strictly best-effort: any failure, timeout,
// or unparseable answer reports no result and the caller falls through to
// its deterministic path.
type Classifier struct {
	gen          Generator
	promptBudget int
	codec        tokenizer.Codec
}

// NewClassifier wraps a Generator. A nil Generator yields a nil Classifier,
// which every method treats as "no result".
func NewClassifier(gen Generator, promptBudget int) *Classifier {
	if gen == nil {
		return nil
	}
	if promptBudget <= 0 {
		promptBudget = defaultPromptBudget
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Rune-based truncation still works without the codec.
		log.WithError(err).Warn("Tokenizer unavailable, falling back to rune truncation")
		codec = nil
	}
	return &Classifier{gen: gen, promptBudget: promptBudget, codec: codec}
}

// Classify categorizes the request text. The boolean is false whenever the
// model is absent, slow, failing, or off-script; Classify never returns an
// error because the caller has a deterministic fallback either way.
func (c *Classifier) Classify(ctx context.Context, text string) (Service, int, bool) {
	if c == nil || c.gen == nil {
		return "", 0, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, classifierTimeout)
	defer cancel()

	prompt := classifierPromptHeader + c.truncate(text)
	raw, err := c.gen.Generate(ctx, prompt, classifierMaxTokens, classifierTemperature)
	if err != nil {
		log.WithError(err).Debug("Classifier generation failed, using deterministic fallback")
		return "", 0, false
	}

	svc, ok := parseClassifierAnswer(raw)
	if !ok {
		log.WithField("answer", raw).Debug("Classifier answer not a known category")
		return "", 0, false
	}

	conf := classifierBaseConfidence
	if len(text) < 20 && conf > shortInputCap {
		conf = shortInputCap
	}
	if svc == ServiceChat && conf > chatResultCap {
		conf = chatResultCap
	}
	return svc, conf, true
}

// truncate trims the user text to the prompt budget, by tokens when the
// codec is available and by runes otherwise.
func (c *Classifier) truncate(text string) string {
	if c.codec != nil {
		ids, _, err := c.codec.Encode(text)
		if err == nil {
			if len(ids) <= c.promptBudget {
				return text
			}
			trimmed, err := c.codec.Decode(ids[:c.promptBudget])
			if err == nil {
				return trimmed
			}
		}
	}
	runes := []rune(text)
	// Roughly four characters per token.
	limit := c.promptBudget * 4
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

// parseClassifierAnswer extracts the category from a model answer. Only the
// first line is considered; anything beyond a bare category name is noise.
func parseClassifierAnswer(raw string) (Service, bool) {
	line := raw
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.ToLower(strings.TrimSpace(line))
	line = strings.Trim(line, `"'.`)
	return ParseService(line)
}
