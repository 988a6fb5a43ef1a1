package api

import "time"

// Step identifies a node in the refinement state machine.
type Step string

const (
	StepSupervisor     Step = "supervisor"
	StepDrafting       Step = "drafting"
	StepClinicalReview Step = "clinical_review"
	StepSafetyReview   Step = "safety_review"
	StepEmpathyReview  Step = "empathy_review"
	StepHumanReview    Step = "human_review"
	StepFinalize       Step = "finalize"
	StepTerminated     Step = "terminated"
)

// ValidRoute reports whether s is a step the supervisor may route to.
// Supervisor itself is not a routing target; control always returns to it
// implicitly after an agent step.
func (s Step) ValidRoute() bool {
	switch s {
	case StepDrafting, StepClinicalReview, StepSafetyReview,
		StepEmpathyReview, StepHumanReview, StepFinalize, StepTerminated:
		return true
	}
	return false
}

// Terminal reports whether s ends the session.
func (s Step) Terminal() bool {
	return s == StepFinalize || s == StepTerminated
}

// ApprovalStatus tracks where a session sits in the approval lifecycle.
type ApprovalStatus string

const (
	StatusDrafting           ApprovalStatus = "drafting"
	StatusInReview           ApprovalStatus = "in_review"
	StatusPendingHumanReview ApprovalStatus = "pending_human_review"
	StatusHumanEditing       ApprovalStatus = "human_editing"
	StatusApproved           ApprovalStatus = "approved"
	StatusRejected           ApprovalStatus = "rejected"
)

// Terminal reports whether the status permits no further automated work.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Severity of a safety flag. Unresolved critical and high flags block
// human review; unresolved critical flags force redrafting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// FlagCategory classifies a safety concern.
type FlagCategory string

const (
	FlagSelfHarmRisk           FlagCategory = "self_harm_risk"
	FlagMedicalAdviceViolation FlagCategory = "medical_advice_violation"
	FlagEthicalPolicyBreach    FlagCategory = "ethical_policy_breach"
	FlagInappropriateContent   FlagCategory = "inappropriate_content"
	FlagTriggeringLanguage     FlagCategory = "triggering_language"
	FlagBoundaryIssue          FlagCategory = "professional_boundary_issue"
)

// Valid reports whether c is a known category.
func (c FlagCategory) Valid() bool {
	switch c {
	case FlagSelfHarmRisk, FlagMedicalAdviceViolation, FlagEthicalPolicyBreach,
		FlagInappropriateContent, FlagTriggeringLanguage, FlagBoundaryIssue:
		return true
	}
	return false
}

// DraftVersion is one immutable revision of the working draft.
// ProducedBy is a step name, or "human" for reviewer edits.
type DraftVersion struct {
	Version        int       `json:"version"`
	Content        string    `json:"content"`
	ProducedBy     string    `json:"producing_step"`
	ChangesSummary string    `json:"changes_summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SafetyFlag is a safety concern raised during review. Once Resolved is
// true it never flips back.
type SafetyFlag struct {
	ID             string       `json:"id"`
	Category       FlagCategory `json:"category"`
	Severity       Severity     `json:"severity"`
	Details        string       `json:"details"`
	Location       string       `json:"location,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
	Resolved       bool         `json:"resolved"`
	CreatedAt      time.Time    `json:"created_at"`
}

// FeedbackEntry is one scored piece of reviewer feedback.
type FeedbackEntry struct {
	ID          string    `json:"id"`
	Step        Step      `json:"step"`
	Category    string    `json:"category"`
	Feedback    string    `json:"feedback"`
	Score       float64   `json:"score"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Iteration   int       `json:"iteration"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmpathyScores breaks the language-quality review into dimensions plus a
// weighted overall score.
type EmpathyScores struct {
	Warmth              float64  `json:"warmth"`
	Accessibility       float64  `json:"accessibility"`
	SafetyLanguage      float64  `json:"safety_language"`
	CulturalSensitivity float64  `json:"cultural_sensitivity"`
	Overall             float64  `json:"overall"`
	ReadabilityGrade    string   `json:"readability_grade,omitempty"`
	Suggestions         []string `json:"suggestions,omitempty"`
}

// DebateEntry records inter-step discussion, kept for the audit trail.
type DebateEntry struct {
	From      Step      `json:"from_step"`
	To        Step      `json:"to_step,omitempty"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"` // critique, suggestion, agreement, disagreement, question
	Iteration int       `json:"iteration"`
	CreatedAt time.Time `json:"created_at"`
}

// RoutingDecision is the audit record of one supervisor routing choice.
// It never feeds back into future routing.
type RoutingDecision struct {
	NextStep       Step      `json:"next_step"`
	Reasoning      string    `json:"reasoning"`
	Forced         bool      `json:"forced"`
	ShouldContinue bool      `json:"should_continue"`
	Iteration      int       `json:"iteration"`
	CreatedAt      time.Time `json:"created_at"`
}

// Note is a short message a step leaves for later steps.
type Note struct {
	Text      string    `json:"text"`
	Iteration int       `json:"iteration"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionState is the blackboard record carried through one refinement
// session. Scalar fields are overwritten by deltas, sequence fields only
// ever grow, and NotesByStep merges per key.
type SessionState struct {
	ThreadID          string `json:"thread_id"`
	ProtocolID        string `json:"protocol_id"`
	UserIntent        string `json:"user_intent"`
	AdditionalContext string `json:"additional_context,omitempty"`

	CurrentDraft   string         `json:"current_draft"`
	SafetyScore    float64        `json:"safety_score"`
	ClinicalScore  float64        `json:"clinical_score"`
	Empathy        EmpathyScores  `json:"empathy_scores"`
	IterationCount int            `json:"iteration_count"`
	MaxIterations  int            `json:"max_iterations"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ActiveStep     Step           `json:"active_step"`
	HumanFeedback  string         `json:"human_feedback,omitempty"`

	DraftVersions    []DraftVersion    `json:"draft_versions"`
	SafetyFlags      []SafetyFlag      `json:"safety_flags"`
	FeedbackEntries  []FeedbackEntry   `json:"feedback_entries"`
	DebateLog        []DebateEntry     `json:"debate_log"`
	RoutingDecisions []RoutingDecision `json:"routing_decisions"`
	Errors           []string          `json:"errors"`

	NotesByStep map[Step][]Note `json:"notes_by_step"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delta is a partial update to a SessionState. Nil scalar pointers and
// empty slices leave the corresponding field untouched.
type Delta struct {
	CurrentDraft   *string
	SafetyScore    *float64
	ClinicalScore  *float64
	Empathy        *EmpathyScores
	IterationCount *int
	ApprovalStatus *ApprovalStatus
	ActiveStep     *Step
	HumanFeedback  *string

	DraftVersions    []DraftVersion
	SafetyFlags      []SafetyFlag
	FeedbackEntries  []FeedbackEntry
	DebateLog        []DebateEntry
	RoutingDecisions []RoutingDecision
	Errors           []string

	// ResolveFlags marks the listed flag IDs resolved. Resolution is
	// monotonic: applying the same ID twice is a no-op, and a resolved
	// flag is never reopened.
	ResolveFlags []string

	NotesByStep map[Step][]Note
}

// Apply merges d into s following the per-field merge contract: scalars
// overwrite, sequences concatenate, keyed notes append per key. Fields
// absent from d are left untouched, so applying an empty Delta changes
// nothing, and applying D1 then D2 equals applying Concat(D1, D2).
func (s *SessionState) Apply(d Delta) {
	if d.CurrentDraft != nil {
		s.CurrentDraft = *d.CurrentDraft
	}
	if d.SafetyScore != nil {
		s.SafetyScore = *d.SafetyScore
	}
	if d.ClinicalScore != nil {
		s.ClinicalScore = *d.ClinicalScore
	}
	if d.Empathy != nil {
		s.Empathy = *d.Empathy
	}
	if d.IterationCount != nil {
		s.IterationCount = *d.IterationCount
	}
	if d.ApprovalStatus != nil {
		s.ApprovalStatus = *d.ApprovalStatus
	}
	if d.ActiveStep != nil {
		s.ActiveStep = *d.ActiveStep
	}
	if d.HumanFeedback != nil {
		s.HumanFeedback = *d.HumanFeedback
	}

	s.DraftVersions = append(s.DraftVersions, d.DraftVersions...)
	s.SafetyFlags = append(s.SafetyFlags, d.SafetyFlags...)
	s.FeedbackEntries = append(s.FeedbackEntries, d.FeedbackEntries...)
	s.DebateLog = append(s.DebateLog, d.DebateLog...)
	s.RoutingDecisions = append(s.RoutingDecisions, d.RoutingDecisions...)
	s.Errors = append(s.Errors, d.Errors...)

	for _, id := range d.ResolveFlags {
		for i := range s.SafetyFlags {
			if s.SafetyFlags[i].ID == id {
				s.SafetyFlags[i].Resolved = true
			}
		}
	}

	if len(d.NotesByStep) > 0 {
		if s.NotesByStep == nil {
			s.NotesByStep = make(map[Step][]Note, len(d.NotesByStep))
		}
		for step, notes := range d.NotesByStep {
			s.NotesByStep[step] = append(s.NotesByStep[step], notes...)
		}
	}
}

// Concat combines two deltas into one whose application is equivalent to
// applying a then b in order. Scalars from b win when set in both.
func Concat(a, b Delta) Delta {
	out := a

	if b.CurrentDraft != nil {
		out.CurrentDraft = b.CurrentDraft
	}
	if b.SafetyScore != nil {
		out.SafetyScore = b.SafetyScore
	}
	if b.ClinicalScore != nil {
		out.ClinicalScore = b.ClinicalScore
	}
	if b.Empathy != nil {
		out.Empathy = b.Empathy
	}
	if b.IterationCount != nil {
		out.IterationCount = b.IterationCount
	}
	if b.ApprovalStatus != nil {
		out.ApprovalStatus = b.ApprovalStatus
	}
	if b.ActiveStep != nil {
		out.ActiveStep = b.ActiveStep
	}
	if b.HumanFeedback != nil {
		out.HumanFeedback = b.HumanFeedback
	}

	out.DraftVersions = concatSlices(a.DraftVersions, b.DraftVersions)
	out.SafetyFlags = concatSlices(a.SafetyFlags, b.SafetyFlags)
	out.FeedbackEntries = concatSlices(a.FeedbackEntries, b.FeedbackEntries)
	out.DebateLog = concatSlices(a.DebateLog, b.DebateLog)
	out.RoutingDecisions = concatSlices(a.RoutingDecisions, b.RoutingDecisions)
	out.Errors = concatSlices(a.Errors, b.Errors)
	out.ResolveFlags = concatSlices(a.ResolveFlags, b.ResolveFlags)

	if len(b.NotesByStep) > 0 {
		merged := make(map[Step][]Note, len(a.NotesByStep)+len(b.NotesByStep))
		for step, notes := range a.NotesByStep {
			// Copy even when b adds nothing for this step: the append
			// below must never write into a's backing array.
			merged[step] = append([]Note(nil), notes...)
		}
		for step, notes := range b.NotesByStep {
			merged[step] = append(merged[step], notes...)
		}
		out.NotesByStep = merged
	}

	return out
}

func concatSlices[T any](a, b []T) []T {
	if len(b) == 0 {
		return a
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// NewSessionState builds the initial state for a session. The safety
// score starts at the maximum and is lowered as concerns are found.
func NewSessionState(threadID, protocolID, userIntent, additionalContext string, maxIterations int) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		ThreadID:          threadID,
		ProtocolID:        protocolID,
		UserIntent:        userIntent,
		AdditionalContext: additionalContext,
		SafetyScore:       10.0,
		MaxIterations:     maxIterations,
		ApprovalStatus:    StatusDrafting,
		ActiveStep:        StepSupervisor,
		NotesByStep:       make(map[Step][]Note),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// UnresolvedFlags returns the unresolved flags at or above min severity.
func (s *SessionState) UnresolvedFlags(min Severity) []SafetyFlag {
	rank := severityRank(min)
	var out []SafetyFlag
	for _, f := range s.SafetyFlags {
		if !f.Resolved && severityRank(f.Severity) >= rank {
			out = append(out, f)
		}
	}
	return out
}

// HasUnresolved reports whether any unresolved flag of exactly the given
// severity exists.
func (s *SessionState) HasUnresolved(sev Severity) bool {
	for _, f := range s.SafetyFlags {
		if !f.Resolved && f.Severity == sev {
			return true
		}
	}
	return false
}

func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Clone returns a deep copy, so callers can hold a snapshot while the
// engine keeps mutating its working state.
func (s *SessionState) Clone() *SessionState {
	out := *s
	out.DraftVersions = cloneSlice(s.DraftVersions)
	out.SafetyFlags = cloneSlice(s.SafetyFlags)
	out.FeedbackEntries = cloneFeedback(s.FeedbackEntries)
	out.DebateLog = cloneSlice(s.DebateLog)
	out.RoutingDecisions = cloneSlice(s.RoutingDecisions)
	out.Errors = cloneSlice(s.Errors)
	out.Empathy.Suggestions = cloneSlice(s.Empathy.Suggestions)
	if s.NotesByStep != nil {
		out.NotesByStep = make(map[Step][]Note, len(s.NotesByStep))
		for step, notes := range s.NotesByStep {
			out.NotesByStep[step] = cloneSlice(notes)
		}
	}
	return &out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneFeedback(in []FeedbackEntry) []FeedbackEntry {
	if in == nil {
		return nil
	}
	out := make([]FeedbackEntry, len(in))
	copy(out, in)
	for i := range out {
		out[i].Suggestions = cloneSlice(in[i].Suggestions)
	}
	return out
}
