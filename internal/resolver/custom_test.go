package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
)

// writeRulesFile loads YAML rule content into the given CustomRules via a
// temp file, failing the test on any load error.
func writeRulesFile(t *testing.T, c *CustomRules, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(path); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	return path
}

func TestCustomRules_MatchOrder(t *testing.T) {
	c := &CustomRules{}
	writeRulesFile(t, c, `
rules:
  - name: first
    condition: has("flag")
    service: reports
    confidence: 70
  - name: second
    condition: has("flag")
    service: insights
    confidence: 90
`)

	svc, conf, name, ok := c.Match(payload.Payload{"flag": true})
	if !ok {
		t.Fatal("expected a match")
	}
	if svc != ServiceReports || conf != 70 || name != "first" {
		t.Errorf("rules must match in file order, got %s/%d/%s", svc, conf, name)
	}
}

func TestCustomRules_TextEnv(t *testing.T) {
	c := &CustomRules{}
	writeRulesFile(t, c, `
rules:
  - name: standup
    condition: text contains "standup"
    service: optimize
    confidence: 88
`)

	svc, conf, _, ok := c.Match(payload.Payload{"question": "Move my STANDUP earlier"})
	if !ok || svc != ServiceOptimize || conf != 88 {
		t.Errorf("expected optimize/88, got %s/%d (ok=%v)", svc, conf, ok)
	}
	if _, _, _, ok := c.Match(payload.Payload{"question": "unrelated"}); ok {
		t.Error("non-matching text should not match")
	}
}

func TestCustomRules_RejectsBadFiles(t *testing.T) {
	c := &CustomRules{}
	dir := t.TempDir()

	cases := map[string]string{
		"unknown service": `
rules:
  - name: bad
    condition: has("x")
    service: nonsense
`,
		"chat target": `
rules:
  - name: bad
    condition: has("x")
    service: chat
`,
		"empty condition": `
rules:
  - name: bad
    condition: ""
    service: reports
`,
		"unparseable condition": `
rules:
  - name: bad
    condition: "has("
    service: reports
`,
	}

	for name, content := range cases {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := c.Reload(path); err == nil {
			t.Errorf("%s: expected a load error", name)
		}
	}

	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("rules: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(path); !errors.Is(err, ErrNoCustomRules) {
		t.Errorf("expected ErrNoCustomRules, got %v", err)
	}
}

func TestCustomRules_BadReloadKeepsOldRules(t *testing.T) {
	c := &CustomRules{}
	path := writeRulesFile(t, c, `
rules:
  - name: keep
    condition: has("flag")
    service: reports
`)

	if err := os.WriteFile(path, []byte("rules:\n  - service: nope\n    condition: has(\"x\")\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(path); err == nil {
		t.Fatal("expected reload to fail")
	}

	if _, _, name, ok := c.Match(payload.Payload{"flag": 1}); !ok || name != "keep" {
		t.Error("previous rules should survive a failed reload")
	}
}

func TestCustomRules_AmbiguousPhrases(t *testing.T) {
	c := &CustomRules{}
	writeRulesFile(t, c, `
ambiguous_phrases:
  - "begin a focus block"
`)
	got := c.AmbiguousPhrases()
	if len(got) != 1 || got[0] != "begin a focus block" {
		t.Errorf("unexpected phrases: %v", got)
	}
}

func TestWatchRules_ReloadsOnChange(t *testing.T) {
	c := &CustomRules{}
	path := writeRulesFile(t, c, `
rules:
  - name: before
    condition: has("flag")
    service: reports
`)

	reloaded := make(chan struct{}, 1)
	w, err := WatchRules(path, c, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	next := `
rules:
  - name: after
    condition: has("flag")
    service: insights
`
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("rules were not reloaded after file change")
	}

	if svc, _, name, ok := c.Match(payload.Payload{"flag": true}); !ok || svc != ServiceInsights || name != "after" {
		t.Errorf("expected reloaded rule, got %s/%s (ok=%v)", svc, name, ok)
	}
}

func TestWatchRules_CoalescesEventBursts(t *testing.T) {
	c := &CustomRules{}
	path := writeRulesFile(t, c, `
rules:
  - name: initial
    condition: has("flag")
    service: reports
`)

	var reloads int32
	w, err := WatchRules(path, c, func() {
		atomic.AddInt32(&reloads, 1)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// A save burst: several writes well inside the debounce window.
	for i := 0; i < 5; i++ {
		content := fmt.Sprintf(`
rules:
  - name: rev-%d
    condition: has("flag")
    service: insights
`, i)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt32(&reloads) == 0 {
		select {
		case <-deadline:
			t.Fatal("rules were not reloaded after the burst")
		case <-time.After(10 * time.Millisecond):
		}
	}
	// Allow any trailing timer to fire before counting.
	time.Sleep(3 * debounceDelay)

	if got := atomic.LoadInt32(&reloads); got != 1 {
		t.Errorf("a single save burst should reload once, got %d", got)
	}
	if _, _, name, ok := c.Match(payload.Payload{"flag": true}); !ok || name != "rev-4" {
		t.Errorf("expected the final revision to be loaded, got %q (ok=%v)", name, ok)
	}
}
