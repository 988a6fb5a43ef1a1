// Package foundry is a resumable orchestration core for multi-step
// content refinement with a human approval gate.
//
// A session starts from a user's intent, produces a draft, and cycles
// it through clinical, safety and empathy reviews until quality gates
// are met or the iteration cap is reached. The session then suspends
// for human review; a reviewer approves, edits, or sends it back. Every
// step is checkpointed, so a session survives a process crash and
// resumes from its last persisted state.
//
// # Core Concepts
//
//  1. Engine — runs sessions, serializes steps per thread, suspends at
//     the human-review gate.
//  2. SessionState — the blackboard record all steps read and write.
//     Updates are deltas: scalars overwrite, logs only grow.
//  3. Routing policy — a deterministic rule set that can override the
//     model-backed routing suggestion. Critical safety flags always
//     force revision; quality gates guard human review.
//  4. Checkpoint store — an append-only, parent-linked chain per
//     thread. In-memory, SQLite and Postgres backends are provided.
//  5. Capabilities — pluggable drafting, review and routing adapters.
//     The built-in adapters talk to any CompletionClient.
//
// # Quick start
//
//	eng, err := foundry.NewInMemoryEngine(foundry.NewStaticCapabilities(), foundry.Settings{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state, err := eng.Start(ctx, foundry.StartRequest{
//	    UserIntent: "A six-session program for managing health anxiety",
//	})
//	// state.ApprovalStatus == foundry.StatusPendingHumanReview
//
//	state, err = eng.SubmitDecision(ctx, state.ThreadID, foundry.Decision{Approved: true})
//	// state.ApprovalStatus == foundry.StatusApproved
//
// For durable sessions, open a SQLite or Postgres database and use
// NewSQLiteEngine or NewPostgresEngine; after a restart, Resume picks a
// session up from its latest checkpoint.
package foundry
