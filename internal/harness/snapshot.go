package harness

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/roach88/semstore/internal/ir"
)

// Snapshot is the deterministic record of one scenario run.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Steps    []StepResult   `json:"steps"`
	Subjects []SubjectState `json:"subjects"`
	Concepts []ConceptState `json:"concepts"`
	Jobs     []JobState     `json:"jobs"`
	Events   []EventState   `json:"events"`
}

// StepResult records what one step did. Subjects are canonical keys.
type StepResult struct {
	Step int    `json:"step"`
	Op   string `json:"op"`

	Subject    string `json:"subject,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Propagated bool   `json:"propagated,omitempty"`
	Target     string `json:"target,omitempty"`
	RowsMoved  int64  `json:"rows_moved,omitempty"`

	RowsDeleted int64 `json:"rows_deleted,omitempty"`
	IDsFreed    int   `json:"ids_freed,omitempty"`

	Summary *ConceptSummary `json:"summary,omitempty"`
	Output  string          `json:"output,omitempty"`

	Now string `json:"now,omitempty"`
}

// ConceptSummary mirrors conceptcache.Summary with named skip reasons.
type ConceptSummary struct {
	Action     string         `json:"action"`
	Considered int            `json:"considered"`
	Processed  int            `json:"processed"`
	Skipped    map[string]int `json:"skipped,omitempty"`
}

// SubjectState is the stored facts of one subject as canonical value
// keys per property, with the tables its fingerprint covers.
type SubjectState struct {
	Subject string              `json:"subject"`
	Facts   map[string][]string `json:"facts"`
	Tables  []string            `json:"tables"`
}

// ConceptState is the cache record and members of one concept.
type ConceptState struct {
	Concept  string   `json:"concept"`
	Status   string   `json:"status"`
	CachedAt string   `json:"cached_at,omitempty"`
	Count    int      `json:"count"`
	Members  []string `json:"members"`
}

// JobState is a scheduled job without its random ID and timestamps.
type JobState struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
}

// EventState is one published notification.
type EventState struct {
	Event   string `json:"event"`
	Subject string `json:"subject"`
}

// Encode renders the snapshot as indented JSON with a trailing newline.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (h *Harness) capture(ctx context.Context, snap *Snapshot) error {
	subjects, err := h.store.SubjectsWithData(ctx)
	if err != nil {
		return err
	}
	snap.Subjects = make([]SubjectState, 0, len(subjects))
	for _, subj := range subjects {
		state, err := h.subjectState(ctx, subj)
		if err != nil {
			return err
		}
		snap.Subjects = append(snap.Subjects, state)
	}

	refs, err := h.store.ListSubjectsInNamespace(ctx, ir.NSConcept)
	if err != nil {
		return err
	}
	snap.Concepts = []ConceptState{}
	for _, ref := range refs {
		rec, err := h.store.ReadConceptCache(ctx, ref.Subject)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		state, err := h.conceptState(ctx, ref.Subject, *rec)
		if err != nil {
			return err
		}
		snap.Concepts = append(snap.Concepts, state)
	}

	queued, err := h.queue.List(ctx, nil, 0)
	if err != nil {
		return err
	}
	snap.Jobs = make([]JobState, len(queued))
	for i, job := range queued {
		snap.Jobs[i] = JobState{Kind: job.Kind, Subject: job.Subject.Key(), Status: string(job.Status)}
	}

	events := h.bus.Events()
	snap.Events = make([]EventState, len(events))
	for i, ev := range events {
		snap.Events[i] = EventState{Event: ev.Name, Subject: ev.Subject.Key()}
	}
	return nil
}

func (h *Harness) subjectState(ctx context.Context, subj ir.Subject) (SubjectState, error) {
	data, err := h.store.ReadSemanticData(ctx, subj)
	if err != nil {
		return SubjectState{}, err
	}
	fp, err := h.store.Fingerprint(ctx, subj)
	if err != nil {
		return SubjectState{}, err
	}

	state := SubjectState{
		Subject: subj.Key(),
		Facts:   map[string][]string{},
		Tables:  slices.Sorted(maps.Keys(fp)),
	}
	for _, p := range data.Properties() {
		state.Facts[p.Key] = ir.ValueKeys(data.Values(p))
	}
	return state, nil
}

func (h *Harness) conceptState(ctx context.Context, concept ir.Subject, rec ir.CacheRecord) (ConceptState, error) {
	members, err := h.store.ConceptMembers(ctx, concept)
	if err != nil {
		return ConceptState{}, err
	}
	state := ConceptState{
		Concept: concept.Key(),
		Status:  string(rec.Status),
		Count:   rec.Count,
		Members: make([]string, len(members)),
	}
	if rec.IsFull() {
		state.CachedAt = rec.Date.UTC().Format(time.RFC3339)
	}
	for i, m := range members {
		state.Members[i] = m.Key()
	}
	return state, nil
}
