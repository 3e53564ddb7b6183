package entity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultFullMarks is assumed when a marksheet omits the possible marks
// for a subject.
const DefaultFullMarks = 100

// SubjectScore is one subject's result for one student, as extracted.
// Subject is the free-text label the model returned; it is not normalized
// at capture time. Score may legitimately exceed FullMarks (bonus marks,
// extraction noise) and consumers must not assume otherwise.
type SubjectScore struct {
	Subject   string   `json:"subject"`
	Score     float64  `json:"score"`
	FullMarks *float64 `json:"full_marks,omitempty"`
}

// FullMarksOrDefault returns the subject's possible marks, falling back to
// DefaultFullMarks when the marksheet did not state them.
func (s SubjectScore) FullMarksOrDefault() float64 {
	if s.FullMarks == nil {
		return DefaultFullMarks
	}
	return *s.FullMarks
}

// AnalysisResult is one student's complete record, or the synthetic
// class-average record. It is created once per successful extraction (or
// once per aggregation) and never mutated afterwards.
//
// TotalObtained, TotalPossible and Percentage are the totals as stated on
// (or computed from) the individual marksheet; they are the source of truth
// for an individual record but are independently recomputed when building
// per-subject averages.
//
// Grade is carried for shape compatibility with the extraction response;
// no current consumer reads it.
type AnalysisResult struct {
	StudentName   string         `json:"student_name"`
	Subjects      []SubjectScore `json:"subjects"`
	TotalObtained float64        `json:"total_obtained"`
	TotalPossible float64        `json:"total_possible"`
	Percentage    float64        `json:"percentage"`
	Grade         string         `json:"grade,omitempty"`
	Summary       string         `json:"summary"`
	Feedback      []string       `json:"feedback"`
}

// BatchOutcome is the settled result of one submission: the successful
// records in input order, the number of images that failed, and the
// class-average record built from the successes. Write-once; held only in
// session memory.
type BatchOutcome struct {
	BatchID      uuid.UUID        `json:"batch_id"`
	Results      []AnalysisResult `json:"results"`
	Aggregate    AnalysisResult   `json:"aggregate"`
	FailureCount int              `json:"failure_count"`
	Submitted    int              `json:"submitted"`
	CreatedAt    time.Time        `json:"created_at"`
}
