package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/Haga4000/Regelebot/model"
)

func TestInMemoryStorageStoreAndRecent(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	for _, content := range []string{"un", "deux", "trois"} {
		if err := storage.StoreMessage(ctx, "g", model.HistoryEntry{Role: model.RoleUser, Content: content}); err != nil {
			t.Fatalf("StoreMessage failed: %v", err)
		}
	}

	recent, err := storage.Recent(ctx, "g", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Content != "trois" || recent[1].Content != "deux" {
		t.Errorf("expected newest first, got %q, %q", recent[0].Content, recent[1].Content)
	}
	if recent[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
}

func TestInMemoryStorageRecentUnknownGroup(t *testing.T) {
	storage := NewInMemoryStorage()

	recent, err := storage.Recent(context.Background(), "nonexistent", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("expected empty slice, got %v", recent)
	}
}

func TestInMemoryStorageRecentReturnsCopy(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	_ = storage.StoreMessage(ctx, "g", model.HistoryEntry{Role: model.RoleUser, Content: "original"})

	recent, _ := storage.Recent(ctx, "g", 1)
	recent[0].Content = "modified"

	again, _ := storage.Recent(ctx, "g", 1)
	if again[0].Content != "original" {
		t.Error("storage was mutated through returned slice")
	}
}

func TestInMemoryStorageClearRecent(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c"} {
		_ = storage.StoreMessage(ctx, "g", model.HistoryEntry{Role: model.RoleUser, Content: content})
	}

	n, err := storage.ClearRecent(ctx, "g", 2)
	if err != nil || n != 2 {
		t.Fatalf("ClearRecent = %d, %v", n, err)
	}

	recent, _ := storage.Recent(ctx, "g", 10)
	if len(recent) != 1 || recent[0].Content != "a" {
		t.Errorf("remaining = %+v", recent)
	}

	n, _ = storage.ClearRecent(ctx, "g", 10)
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
}

func TestInMemoryStorageConcurrentAccess(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = storage.StoreMessage(ctx, "g", model.HistoryEntry{Role: model.RoleUser, Content: "x"})
			_, _ = storage.Recent(ctx, "g", 5)
		}()
	}
	wg.Wait()

	recent, _ := storage.Recent(ctx, "g", 0)
	if len(recent) != 100 {
		t.Errorf("expected 100 entries, got %d", len(recent))
	}
}
