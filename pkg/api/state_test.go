package api

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string                    { return &s }
func f64Ptr(f float64) *float64                  { return &f }
func intPtr(i int) *int                          { return &i }
func statusPtr(s ApprovalStatus) *ApprovalStatus { return &s }

func TestApplyScalarOverwrite(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "", 5)

	st.Apply(Delta{
		CurrentDraft:  strPtr("draft one"),
		ClinicalScore: f64Ptr(6.5),
	})
	if st.CurrentDraft != "draft one" {
		t.Fatalf("CurrentDraft = %q, want %q", st.CurrentDraft, "draft one")
	}

	st.Apply(Delta{CurrentDraft: strPtr("draft two")})
	if st.CurrentDraft != "draft two" {
		t.Fatalf("CurrentDraft = %q, want overwrite to %q", st.CurrentDraft, "draft two")
	}
	if st.ClinicalScore != 6.5 {
		t.Fatalf("ClinicalScore = %v, want untouched 6.5", st.ClinicalScore)
	}
}

func TestApplySequencesAppend(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "", 5)

	st.Apply(Delta{
		DraftVersions: []DraftVersion{{Version: 1, Content: "a"}},
		Errors:        []string{"e1"},
	})
	st.Apply(Delta{
		DraftVersions: []DraftVersion{{Version: 2, Content: "b"}},
		Errors:        []string{"e2"},
	})

	if len(st.DraftVersions) != 2 || st.DraftVersions[0].Version != 1 || st.DraftVersions[1].Version != 2 {
		t.Fatalf("DraftVersions = %+v, want versions [1 2] in order", st.DraftVersions)
	}
	if !reflect.DeepEqual(st.Errors, []string{"e1", "e2"}) {
		t.Fatalf("Errors = %v, want [e1 e2]", st.Errors)
	}
}

func TestApplyNotesMergePerKey(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "", 5)

	st.Apply(Delta{NotesByStep: map[Step][]Note{
		StepDrafting:   {{Text: "first"}},
		StepSupervisor: {{Text: "route"}},
	}})
	st.Apply(Delta{NotesByStep: map[Step][]Note{
		StepDrafting: {{Text: "second"}},
	}})

	if got := len(st.NotesByStep[StepDrafting]); got != 2 {
		t.Fatalf("drafting notes = %d, want 2", got)
	}
	if got := len(st.NotesByStep[StepSupervisor]); got != 1 {
		t.Fatalf("supervisor notes = %d, want 1", got)
	}
	if st.NotesByStep[StepDrafting][0].Text != "first" {
		t.Fatalf("note order lost: %+v", st.NotesByStep[StepDrafting])
	}
}

func TestApplyEmptyDeltaIsNoop(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "ctx", 5)
	st.Apply(Delta{
		CurrentDraft: strPtr("draft"),
		SafetyFlags:  []SafetyFlag{{ID: "f1", Severity: SeverityHigh}},
	})

	before := st.Clone()
	st.Apply(Delta{})

	if !reflect.DeepEqual(before, st.Clone()) {
		t.Fatal("empty delta changed the state")
	}
}

func TestApplyResolveFlagsMonotonic(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "", 5)
	st.Apply(Delta{SafetyFlags: []SafetyFlag{
		{ID: "f1", Severity: SeverityCritical},
		{ID: "f2", Severity: SeverityMedium},
	}})

	st.Apply(Delta{ResolveFlags: []string{"f1", "missing"}})
	if !st.SafetyFlags[0].Resolved {
		t.Fatal("f1 should be resolved")
	}
	if st.SafetyFlags[1].Resolved {
		t.Fatal("f2 should stay unresolved")
	}

	// Resolving again, or applying unrelated deltas, never reopens it.
	st.Apply(Delta{ResolveFlags: []string{"f1"}})
	st.Apply(Delta{SafetyFlags: []SafetyFlag{{ID: "f3"}}})
	if !st.SafetyFlags[0].Resolved {
		t.Fatal("f1 must never revert to unresolved")
	}
}

func TestConcatEquivalentToSequentialApply(t *testing.T) {
	d1 := Delta{
		CurrentDraft:  strPtr("v1"),
		ClinicalScore: f64Ptr(5),
		Errors:        []string{"a"},
		NotesByStep:   map[Step][]Note{StepDrafting: {{Text: "n1"}}},
	}
	d2 := Delta{
		CurrentDraft:   strPtr("v2"),
		IterationCount: intPtr(1),
		Errors:         []string{"b"},
		NotesByStep:    map[Step][]Note{StepDrafting: {{Text: "n2"}}},
	}

	sequential := NewSessionState("t1", "p1", "intent", "", 5)
	sequential.Apply(d1)
	sequential.Apply(d2)

	combined := NewSessionState("t1", "p1", "intent", "", 5)
	combined.Apply(Concat(d1, d2))

	if !reflect.DeepEqual(sequential.Clone(), combined.Clone()) {
		t.Fatalf("Concat mismatch:\nsequential %+v\ncombined   %+v", sequential, combined)
	}
}

func TestConcatAssociative(t *testing.T) {
	a := Delta{CurrentDraft: strPtr("a"), Errors: []string{"ea"}}
	b := Delta{ClinicalScore: f64Ptr(7), Errors: []string{"eb"}}
	c := Delta{CurrentDraft: strPtr("c"), ApprovalStatus: statusPtr(StatusInReview)}

	left := NewSessionState("t1", "p1", "intent", "", 5)
	left.Apply(Concat(Concat(a, b), c))

	right := NewSessionState("t1", "p1", "intent", "", 5)
	right.Apply(Concat(a, Concat(b, c)))

	if !reflect.DeepEqual(left.Clone(), right.Clone()) {
		t.Fatal("Concat is not associative")
	}
}

func TestConcatDoesNotAliasBaseNotes(t *testing.T) {
	// A base delta whose notes slice has spare capacity must not have
	// that capacity written into by later merges.
	notes := make([]Note, 1, 4)
	notes[0] = Note{Text: "base"}
	base := Delta{NotesByStep: map[Step][]Note{StepDrafting: notes}}

	first := Concat(base, Delta{NotesByStep: map[Step][]Note{StepDrafting: {{Text: "first"}}}})
	Concat(base, Delta{NotesByStep: map[Step][]Note{StepDrafting: {{Text: "second"}}}})

	got := first.NotesByStep[StepDrafting]
	if len(got) != 2 || got[1].Text != "first" {
		t.Fatalf("earlier merge mutated: %+v", got)
	}
	if notes[:cap(notes)][1].Text != "" {
		t.Fatal("merge wrote into the base delta's backing array")
	}
}

func TestUnresolvedFlags(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "", 5)
	st.Apply(Delta{SafetyFlags: []SafetyFlag{
		{ID: "low", Severity: SeverityLow},
		{ID: "med", Severity: SeverityMedium},
		{ID: "high", Severity: SeverityHigh},
		{ID: "crit", Severity: SeverityCritical},
		{ID: "done", Severity: SeverityCritical, Resolved: true},
	}})

	if got := len(st.UnresolvedFlags(SeverityHigh)); got != 2 {
		t.Fatalf("high+ unresolved = %d, want 2", got)
	}
	if got := len(st.UnresolvedFlags(SeverityLow)); got != 4 {
		t.Fatalf("all unresolved = %d, want 4", got)
	}
	if !st.HasUnresolved(SeverityCritical) {
		t.Fatal("expected an unresolved critical flag")
	}

	st.Apply(Delta{ResolveFlags: []string{"crit"}})
	if st.HasUnresolved(SeverityCritical) {
		t.Fatal("critical flag should be resolved now")
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := NewSessionState("t1", "p1", "intent", "", 5)
	st.Apply(Delta{
		SafetyFlags: []SafetyFlag{{ID: "f1"}},
		NotesByStep: map[Step][]Note{StepDrafting: {{Text: "n"}}},
	})

	cp := st.Clone()
	cp.SafetyFlags[0].Resolved = true
	cp.NotesByStep[StepDrafting][0].Text = "changed"
	cp.CurrentDraft = "changed"

	if st.SafetyFlags[0].Resolved || st.NotesByStep[StepDrafting][0].Text != "n" || st.CurrentDraft != "" {
		t.Fatal("mutating the clone leaked into the original")
	}
}
