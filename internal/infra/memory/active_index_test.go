package memory

import (
	"context"
	"testing"
)

func TestActiveIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	index := NewActiveIndex()

	if _, ok, err := index.Get(ctx, 1); err != nil || ok {
		t.Fatalf("expected empty index, got ok=%v err=%v", ok, err)
	}

	if err := index.Set(ctx, 1, 100); err != nil {
		t.Fatalf("set: %v", err)
	}
	questionID, ok, err := index.Get(ctx, 1)
	if err != nil || !ok || questionID != 100 {
		t.Fatalf("expected question 100, got %d ok=%v err=%v", questionID, ok, err)
	}

	if err := index.Set(ctx, 1, 101); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if questionID, _, _ := index.Get(ctx, 1); questionID != 101 {
		t.Fatalf("expected overwrite to 101, got %d", questionID)
	}

	if err := index.Clear(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := index.Get(ctx, 1); ok {
		t.Fatalf("expected cleared entry")
	}
}
