package llm

import (
	"context"

	"github.com/marklens/marklens/internal/entity"
)

// SubjectField is one extracted subject row.
type SubjectField struct {
	Subject   string   `json:"subject"`
	Score     float64  `json:"score"`
	FullMarks *float64 `json:"full_marks,omitempty"`
}

// MarksheetFields is the normalized shape we want from the model.
type MarksheetFields struct {
	StudentName   string         `json:"student_name"`
	Subjects      []SubjectField `json:"subjects"`
	TotalObtained float64        `json:"total_obtained"`
	TotalPossible float64        `json:"total_possible"`
	Percentage    float64        `json:"percentage"`
	Grade         string         `json:"grade,omitempty"`
	Summary       string         `json:"summary"`
	Feedback      []string       `json:"feedback"`
}

// ToAnalysisResult converts the wire shape into the domain record.
func (f MarksheetFields) ToAnalysisResult() entity.AnalysisResult {
	subjects := make([]entity.SubjectScore, 0, len(f.Subjects))
	for _, s := range f.Subjects {
		subjects = append(subjects, entity.SubjectScore{
			Subject:   s.Subject,
			Score:     s.Score,
			FullMarks: s.FullMarks,
		})
	}
	feedback := f.Feedback
	if feedback == nil {
		feedback = []string{}
	}
	return entity.AnalysisResult{
		StudentName:   f.StudentName,
		Subjects:      subjects,
		TotalObtained: f.TotalObtained,
		TotalPossible: f.TotalPossible,
		Percentage:    f.Percentage,
		Grade:         f.Grade,
		Summary:       f.Summary,
		Feedback:      feedback,
	}
}

// ExtractRequest carries one marksheet image to the extractor.
type ExtractRequest struct {
	Image        []byte
	MimeType     string // optional; sniffed from Image when empty
	FilenameHint string // logging only
}

// MarksheetExtractor is the interface the orchestrator depends on.
type MarksheetExtractor interface {
	ExtractMarksheet(ctx context.Context, req ExtractRequest) (MarksheetFields, []byte /*rawJSON*/, error)
}
