package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type mockGenerator struct {
	answer string
	err    error
	delay  time.Duration
	calls  int
	prompt string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	m.calls++
	m.prompt = prompt
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.answer, m.err
}

func TestClassifier_ValidAnswer(t *testing.T) {
	gen := &mockGenerator{answer: "insights"}
	c := NewClassifier(gen, 0)

	svc, conf, ok := c.Classify(context.Background(), "tell me about my recent deep work sessions")
	if !ok {
		t.Fatal("expected a classification")
	}
	if svc != ServiceInsights {
		t.Errorf("expected insights, got %s", svc)
	}
	if conf != classifierBaseConfidence {
		t.Errorf("expected confidence %d, got %d", classifierBaseConfidence, conf)
	}
	if !strings.Contains(gen.prompt, "Categories:") {
		t.Error("prompt should carry the category definitions")
	}
}

func TestClassifier_AnswerNormalization(t *testing.T) {
	cases := []struct {
		answer string
		want   Service
	}{
		{"Insights", ServiceInsights},
		{"  reports  ", ServiceReports},
		{"\"optimize\"", ServiceOptimize},
		{"questions\nbecause the user asked a question", ServiceQuestions},
	}
	for _, tc := range cases {
		c := NewClassifier(&mockGenerator{answer: tc.answer}, 0)
		svc, _, ok := c.Classify(context.Background(), "a reasonably long request body here")
		if !ok || svc != tc.want {
			t.Errorf("answer %q: expected %s, got %s (ok=%v)", tc.answer, tc.want, svc, ok)
		}
	}
}

func TestClassifier_OffScriptAnswer(t *testing.T) {
	c := NewClassifier(&mockGenerator{answer: "I think this is probably about scheduling"}, 0)
	if _, _, ok := c.Classify(context.Background(), "some request text goes here"); ok {
		t.Error("free-form answer must not classify")
	}
}

func TestClassifier_GeneratorError(t *testing.T) {
	c := NewClassifier(&mockGenerator{err: errors.New("backend down")}, 0)
	if _, _, ok := c.Classify(context.Background(), "some request text goes here"); ok {
		t.Error("generator error must report no result")
	}
}

func TestClassifier_NilGenerator(t *testing.T) {
	c := NewClassifier(nil, 0)
	if c != nil {
		t.Fatal("nil generator should yield a nil classifier")
	}
	if _, _, ok := c.Classify(context.Background(), "text"); ok {
		t.Error("nil classifier must report no result")
	}
}

func TestClassifier_ConfidenceCaps(t *testing.T) {
	// Short input caps below the base confidence.
	c := NewClassifier(&mockGenerator{answer: "optimize"}, 0)
	_, conf, ok := c.Classify(context.Background(), "plan today")
	if !ok || conf != shortInputCap {
		t.Errorf("short input: expected cap %d, got %d (ok=%v)", shortInputCap, conf, ok)
	}

	// A chat verdict caps even lower.
	c = NewClassifier(&mockGenerator{answer: "chat"}, 0)
	svc, conf, ok := c.Classify(context.Background(), "just wanted to say this is a nice tool")
	if !ok || svc != ServiceChat || conf != chatResultCap {
		t.Errorf("chat verdict: expected %s at %d, got %s at %d", ServiceChat, chatResultCap, svc, conf)
	}
}

func TestClassifier_RespectsContextCancel(t *testing.T) {
	gen := &mockGenerator{answer: "insights", delay: 200 * time.Millisecond}
	c := NewClassifier(gen, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, ok := c.Classify(ctx, "a request that will never be answered in time"); ok {
		t.Error("cancelled context must report no result")
	}
}

func TestClassifier_TruncatesLongInput(t *testing.T) {
	gen := &mockGenerator{answer: "questions"}
	c := NewClassifier(gen, 16)

	long := strings.Repeat("productivity and scheduling and planning ", 200)
	if _, _, ok := c.Classify(context.Background(), long); !ok {
		t.Fatal("expected a classification")
	}
	if len(gen.prompt) >= len(classifierPromptHeader)+len(long) {
		t.Error("long input should be truncated before prompting")
	}
}
