package generator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"trivia-bot-service/internal/domain"
)

type fakeProvider struct {
	response string
	err      error
	calls    int64
}

func (p *fakeProvider) Complete(_ context.Context, _, _, _ string) (string, error) {
	atomic.AddInt64(&p.calls, 1)
	return p.response, p.err
}

func validResponse(answer string) string {
	return fmt.Sprintf(`{"topic":"Databases","question":"Which isolation level allows non-repeatable reads?",`+
		`"options":{"a":"Serializable","b":"Read Committed","c":"Repeatable Read","d":"Snapshot"},`+
		`"answer":"%s","explanation":"Read Committed re-reads may differ.","difficulty":"Medium"}`, answer)
}

func TestGenerateUsesFallbackWithoutBackends(t *testing.T) {
	gen := New(ModelPool{}, Options{})

	payload := gen.Generate(context.Background(), "Networking")
	if payload.ModelName != FallbackModelName {
		t.Fatalf("expected fallback, got model %q", payload.ModelName)
	}
	if len(payload.Options) != 4 {
		t.Fatalf("fallback must carry four options, got %d", len(payload.Options))
	}
	if !domain.IsChoice(payload.Answer) {
		t.Fatalf("fallback answer %q is not a choice", payload.Answer)
	}
}

func TestGenerateParsesAndUppercasesOptions(t *testing.T) {
	provider := &fakeProvider{response: validResponse("b")}
	gen := New(ModelPool{"model-a": provider}, Options{})

	payload := gen.Generate(context.Background(), "Databases")
	if payload.ModelName != "model-a" {
		t.Fatalf("expected model-a, got %q", payload.ModelName)
	}
	if payload.Answer != "B" {
		t.Fatalf("expected answer B, got %q", payload.Answer)
	}
	for _, letter := range domain.Letters {
		if _, ok := payload.Options[letter]; !ok {
			t.Fatalf("missing option %s in %v", letter, payload.Options)
		}
	}
}

func TestGenerateRetriesAcrossModels(t *testing.T) {
	failing := &fakeProvider{err: errors.New("boom")}
	garbled := &fakeProvider{response: "not json"}
	healthy := &fakeProvider{response: validResponse("A")}
	gen := New(ModelPool{
		"model-bad":     failing,
		"model-garbled": garbled,
		"model-good":    healthy,
	}, Options{MaxRetries: 3})

	payload := gen.Generate(context.Background(), "")
	if payload.ModelName != "model-good" {
		t.Fatalf("expected the healthy model to win, got %q", payload.ModelName)
	}
}

func TestGenerateFallsBackWhenAllAttemptsFail(t *testing.T) {
	failing := &fakeProvider{err: errors.New("boom")}
	gen := New(ModelPool{"m1": failing, "m2": failing, "m3": failing, "m4": failing}, Options{MaxRetries: 3})

	payload := gen.Generate(context.Background(), "Operating Systems")
	if payload.ModelName != FallbackModelName {
		t.Fatalf("expected fallback after exhaustion, got %q", payload.ModelName)
	}
	if calls := atomic.LoadInt64(&failing.calls); calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestGenerateRejectsStructurallyInvalidPayloads(t *testing.T) {
	missingOption := &fakeProvider{response: `{"topic":"t","question":"q","options":{"A":"1","B":"2","C":"3"},"answer":"A"}`}
	badAnswer := &fakeProvider{response: `{"topic":"t","question":"q","options":{"A":"1","B":"2","C":"3","D":"4"},"answer":"E"}`}

	for name, provider := range map[string]*fakeProvider{"missing option": missingOption, "bad answer": badAnswer} {
		gen := New(ModelPool{"m": provider}, Options{})
		payload := gen.Generate(context.Background(), "Algorithms")
		if payload.ModelName != FallbackModelName {
			t.Fatalf("%s: expected rejection and fallback, got %q", name, payload.ModelName)
		}
	}
}

func TestFallbackCuratedTopics(t *testing.T) {
	payload := Fallback("Databases & SQL")
	if payload.Topic != "Databases & SQL" {
		t.Fatalf("expected curated database question, got topic %q", payload.Topic)
	}
	if !domain.IsChoice(payload.Answer) {
		t.Fatalf("curated answer %q is not a choice", payload.Answer)
	}

	generic := Fallback("Underwater Basket Weaving")
	if generic.ModelName != FallbackModelName || len(generic.Options) != 4 {
		t.Fatalf("generic fallback malformed: %+v", generic)
	}
}

func TestPickDifficultyHonorsWeights(t *testing.T) {
	gen := New(ModelPool{}, Options{Weights: map[string]int{"Easy": 0, "Medium": 0, "Hard": 1}})
	for i := 0; i < 50; i++ {
		if difficulty := gen.pickDifficulty(); difficulty != "Hard" {
			t.Fatalf("expected Hard with all weight on Hard, got %q", difficulty)
		}
	}
}
