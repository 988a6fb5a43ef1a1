package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

func testState(threadID string, iteration int) *api.SessionState {
	st := api.NewSessionState(threadID, "proto-1", "test intent", "", 5)
	st.IterationCount = iteration
	st.CurrentDraft = "draft"
	st.SafetyFlags = []api.SafetyFlag{{ID: "f1", Severity: api.SeverityMedium}}
	st.NotesByStep[api.StepDrafting] = []api.Note{{Text: "note", Iteration: iteration}}
	return st
}

// runStoreConformance exercises the Store contract against any backend.
func runStoreConformance(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty thread", func(t *testing.T) {
		if _, err := store.GetLatest(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetLatest on empty thread: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("chain", func(t *testing.T) {
		var ids []string
		parent := ""
		for i := 0; i < 4; i++ {
			id, err := store.Put(ctx, "t-chain", parent, testState("t-chain", i), Metadata{
				Source:      SourceLoop,
				StepIndex:   i,
				PendingStep: api.StepSupervisor,
			})
			if err != nil {
				t.Fatalf("Put %d: %v", i, err)
			}
			ids = append(ids, id)
			parent = id
		}

		head, err := store.GetLatest(ctx, "t-chain")
		if err != nil {
			t.Fatalf("GetLatest: %v", err)
		}
		if head.ID != ids[3] {
			t.Fatalf("head = %s, want %s", head.ID, ids[3])
		}
		if head.State.IterationCount != 3 {
			t.Fatalf("head iteration = %d, want 3", head.State.IterationCount)
		}

		// Walk the parent chain back to the root.
		cur := head
		for i := 3; i > 0; i-- {
			if cur.ParentID != ids[i-1] {
				t.Fatalf("checkpoint %d parent = %s, want %s", i, cur.ParentID, ids[i-1])
			}
			cur, err = store.Get(ctx, "t-chain", cur.ParentID)
			if err != nil {
				t.Fatalf("Get parent: %v", err)
			}
		}
		if cur.ParentID != "" {
			t.Fatalf("root parent = %q, want empty", cur.ParentID)
		}
	})

	t.Run("parent conflict", func(t *testing.T) {
		first, err := store.Put(ctx, "t-conflict", "", testState("t-conflict", 0), Metadata{Source: SourceInput})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, err := store.Put(ctx, "t-conflict", first, testState("t-conflict", 1), Metadata{Source: SourceLoop}); err != nil {
			t.Fatalf("Put on head: %v", err)
		}

		// A writer still holding the stale head must not fork the chain.
		if _, err := store.Put(ctx, "t-conflict", first, testState("t-conflict", 2), Metadata{Source: SourceLoop}); !errors.Is(err, ErrParentConflict) {
			t.Fatalf("stale parent: err = %v, want ErrParentConflict", err)
		}
		if _, err := store.Put(ctx, "t-conflict", "", testState("t-conflict", 2), Metadata{Source: SourceInput}); !errors.Is(err, ErrParentConflict) {
			t.Fatalf("empty parent on existing thread: err = %v, want ErrParentConflict", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		var ids []string
		parent := ""
		for i := 0; i < 5; i++ {
			id, err := store.Put(ctx, "t-list", parent, testState("t-list", i), Metadata{StepIndex: i, Source: SourceLoop})
			if err != nil {
				t.Fatalf("Put %d: %v", i, err)
			}
			ids = append(ids, id)
			parent = id
		}

		all, err := store.List(ctx, "t-list", ListOptions{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("List len = %d, want 5", len(all))
		}
		for i, c := range all {
			if want := ids[4-i]; c.ID != want {
				t.Fatalf("List[%d] = %s, want %s (newest first)", i, c.ID, want)
			}
		}

		limited, err := store.List(ctx, "t-list", ListOptions{Limit: 2})
		if err != nil {
			t.Fatalf("List limit: %v", err)
		}
		if len(limited) != 2 || limited[0].ID != ids[4] {
			t.Fatalf("List limit 2 = %v", limited)
		}

		// Restartable paging: pass the last seen ID as Before.
		rest, err := store.List(ctx, "t-list", ListOptions{Before: limited[1].ID, Limit: 2})
		if err != nil {
			t.Fatalf("List before: %v", err)
		}
		if len(rest) != 2 || rest[0].ID != ids[2] || rest[1].ID != ids[1] {
			t.Fatalf("List before = %+v, want ids[2], ids[1]", rest)
		}
	})

	t.Run("snapshot isolation", func(t *testing.T) {
		st := testState("t-iso", 0)
		if _, err := store.Put(ctx, "t-iso", "", st, Metadata{Source: SourceInput}); err != nil {
			t.Fatalf("Put: %v", err)
		}

		// Mutating the written state afterwards must not affect the
		// stored snapshot.
		st.CurrentDraft = "mutated"
		st.SafetyFlags[0].Resolved = true

		head, err := store.GetLatest(ctx, "t-iso")
		if err != nil {
			t.Fatalf("GetLatest: %v", err)
		}
		if head.State.CurrentDraft != "draft" || head.State.SafetyFlags[0].Resolved {
			t.Fatal("stored snapshot shares memory with the caller's state")
		}
	})

	t.Run("delete thread", func(t *testing.T) {
		if _, err := store.Put(ctx, "t-del", "", testState("t-del", 0), Metadata{Source: SourceInput}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.DeleteThread(ctx, "t-del"); err != nil {
			t.Fatalf("DeleteThread: %v", err)
		}
		if _, err := store.GetLatest(ctx, "t-del"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("after delete: err = %v, want ErrNotFound", err)
		}

		// A deleted thread can start a fresh chain.
		if _, err := store.Put(ctx, "t-del", "", testState("t-del", 0), Metadata{Source: SourceInput}); err != nil {
			t.Fatalf("Put after delete: %v", err)
		}
	})

	t.Run("threads", func(t *testing.T) {
		threads, err := store.Threads(ctx)
		if err != nil {
			t.Fatalf("Threads: %v", err)
		}
		seen := make(map[string]bool, len(threads))
		for _, id := range threads {
			seen[id] = true
		}
		for _, want := range []string{"t-chain", "t-conflict", "t-list"} {
			if !seen[want] {
				t.Fatalf("Threads missing %s: %v", want, threads)
			}
		}
	})
}
