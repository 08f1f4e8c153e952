package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"trivia-bot-service/internal/domain"
)

type countingLoader struct {
	store *Store
	loads int64
}

func (l *countingLoader) Question(ctx context.Context, id int64) (*domain.Question, error) {
	atomic.AddInt64(&l.loads, 1)
	return l.store.Question(ctx, id)
}

func TestQuestionCacheServesFromCache(t *testing.T) {
	ctx := context.Background()
	store := NewStore(10)
	channel := int64(1)
	question, err := store.RecordQuestion(ctx, "OS", "prompt", map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"}, "A", "", &channel)
	if err != nil {
		t.Fatalf("record question: %v", err)
	}

	loader := &countingLoader{store: store}
	cache := NewQuestionCache(loader, time.Minute)

	for i := 0; i < 5; i++ {
		got, err := cache.Question(ctx, question.ID)
		if err != nil {
			t.Fatalf("cache get: %v", err)
		}
		if got.ID != question.ID {
			t.Fatalf("wrong question %d", got.ID)
		}
	}
	if loads := atomic.LoadInt64(&loader.loads); loads != 1 {
		t.Fatalf("expected a single load, got %d", loads)
	}
}

func TestQuestionCacheInvalidateForcesReload(t *testing.T) {
	ctx := context.Background()
	store := NewStore(10)
	channel := int64(1)
	question, err := store.RecordQuestion(ctx, "OS", "prompt", map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"}, "A", "", &channel)
	if err != nil {
		t.Fatalf("record question: %v", err)
	}

	loader := &countingLoader{store: store}
	cache := NewQuestionCache(loader, time.Minute)

	if _, err := cache.Question(ctx, question.ID); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if err := store.AttachMessageID(ctx, question.ID, 555); err != nil {
		t.Fatalf("attach: %v", err)
	}
	cache.Invalidate(question.ID)

	got, err := cache.Question(ctx, question.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.MessageID == nil || *got.MessageID != 555 {
		t.Fatalf("expected reloaded message id, got %+v", got.MessageID)
	}
	if loads := atomic.LoadInt64(&loader.loads); loads != 2 {
		t.Fatalf("expected two loads, got %d", loads)
	}
}

func TestQuestionCacheMissingQuestion(t *testing.T) {
	cache := NewQuestionCache(&countingLoader{store: NewStore(10)}, time.Minute)
	if _, err := cache.Question(context.Background(), 404); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}
