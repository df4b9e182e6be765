// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
)

// ErrNoCustomRules is returned when the rules file exists but defines no rules.
var ErrNoCustomRules = errors.New("rules file defines no rules")

// customRuleSpec is one operator-defined rule as written in the YAML file.
// Condition is an expr expression evaluated against {text, fields, has(...)}.
type customRuleSpec struct {
	Name       string `yaml:"name"`
	Condition  string `yaml:"condition"`
	Service    string `yaml:"service"`
	Confidence int    `yaml:"confidence"`
}

type rulesFile struct {
	Rules            []customRuleSpec `yaml:"rules"`
	AmbiguousPhrases []string         `yaml:"ambiguous_phrases"`
}

type compiledRule struct {
	name       string
	program    *vm.Program
	service    Service
	confidence int
}

// CustomRules holds operator-defined routing rules loaded from a YAML file.
// Rules are checked in file order before the built-in rule table, so an
// operator can pin a troublesome request shape to a service without a code
// change. The set swaps atomically on reload; a bad file leaves the previous
// set in place.
type CustomRules struct {
	mu        sync.RWMutex
	rules     []compiledRule
	ambiguous []string
}

// LoadCustomRules parses and compiles the rules file at path.
func LoadCustomRules(path string) (*CustomRules, error) {
	c := &CustomRules{}
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the rules file and swaps the rule set in. On any error the
// currently loaded rules keep serving.
func (c *CustomRules) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}
	if len(file.Rules) == 0 && len(file.AmbiguousPhrases) == 0 {
		return ErrNoCustomRules
	}

	compiled := make([]compiledRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		svc, ok := ParseService(spec.Service)
		if !ok || !svc.IsReal() {
			return fmt.Errorf("rule %q: unknown service %q", spec.Name, spec.Service)
		}
		if strings.TrimSpace(spec.Condition) == "" {
			return fmt.Errorf("rule %q: empty condition", spec.Name)
		}
		program, err := expr.Compile(spec.Condition)
		if err != nil {
			return fmt.Errorf("rule %q: failed to compile condition: %w", spec.Name, err)
		}
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		conf := clampScore(spec.Confidence)
		if spec.Confidence == 0 {
			conf = 80
		}
		compiled = append(compiled, compiledRule{
			name:       name,
			program:    program,
			service:    svc,
			confidence: conf,
		})
	}

	c.mu.Lock()
	c.rules = compiled
	c.ambiguous = file.AmbiguousPhrases
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"rules":             len(compiled),
		"ambiguous_phrases": len(file.AmbiguousPhrases),
	}).Info("Custom routing rules loaded")
	return nil
}

// AmbiguousPhrases returns the operator additions to the known-ambiguous
// phrase list, to be merged with DefaultAmbiguousPhrases by the caller.
func (c *CustomRules) AmbiguousPhrases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.ambiguous))
	copy(out, c.ambiguous)
	return out
}

// Match evaluates the rules in order and returns the first hit together
// with its configured confidence and rule name. A rule whose condition
// errors at run time is skipped, not fatal.
func (c *CustomRules) Match(p payload.Payload) (Service, int, string, bool) {
	if c == nil {
		return "", 0, "", false
	}
	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	if len(rules) == 0 {
		return "", 0, "", false
	}

	text, _ := p.Text()
	env := map[string]any{
		"text":   strings.ToLower(text),
		"fields": map[string]any(p),
		"has":    func(key string) bool { return p.Has(key) },
	}

	for _, rule := range rules {
		output, err := expr.Run(rule.program, env)
		if err != nil {
			log.WithError(err).WithField("rule", rule.name).Debug("Custom rule condition errored, skipping")
			continue
		}
		if matched, ok := output.(bool); ok && matched {
			return rule.service, rule.confidence, rule.name, true
		}
	}
	return "", 0, "", false
}
