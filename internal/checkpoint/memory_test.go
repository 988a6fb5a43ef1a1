package checkpoint

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryStoreConformance(t *testing.T) {
	runStoreConformance(t, NewMemoryStore())
}

func TestMemoryStoreConcurrentThreads(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			threadID := string(rune('a' + n))
			parent := ""
			for j := 0; j < 10; j++ {
				id, err := store.Put(ctx, threadID, parent, testState(threadID, j), Metadata{StepIndex: j})
				if err != nil {
					t.Errorf("thread %s put %d: %v", threadID, j, err)
					return
				}
				parent = id
			}
		}(i)
	}
	wg.Wait()

	threads, err := store.Threads(ctx)
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(threads) != 8 {
		t.Fatalf("threads = %d, want 8", len(threads))
	}
	for _, id := range threads {
		ckpts, err := store.List(ctx, id, ListOptions{})
		if err != nil {
			t.Fatalf("List %s: %v", id, err)
		}
		if len(ckpts) != 10 {
			t.Fatalf("thread %s has %d checkpoints, want 10", id, len(ckpts))
		}
	}
}
