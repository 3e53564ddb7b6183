package aggregate

import (
	"errors"
	"strings"
	"testing"

	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
)

func fm(v float64) *float64 { return &v }

func student(name string, subjects ...entity.SubjectScore) entity.AnalysisResult {
	var obtained, possible float64
	for _, s := range subjects {
		obtained += s.Score
		possible += s.FullMarksOrDefault()
	}
	pct := 0.0
	if possible > 0 {
		pct = obtained / possible * 100
	}
	return entity.AnalysisResult{
		StudentName:   name,
		Subjects:      subjects,
		TotalObtained: obtained,
		TotalPossible: possible,
		Percentage:    pct,
	}
}

func TestBuildClassAverage(t *testing.T) {
	t.Parallel()

	t.Run("groups subjects by trimmed lowercased name", func(t *testing.T) {
		t.Parallel()

		results := []entity.AnalysisResult{
			student("Asha",
				entity.SubjectScore{Subject: "Math", Score: 80, FullMarks: fm(100)},
				entity.SubjectScore{Subject: "Maths", Score: 50, FullMarks: fm(100)},
			),
			student("Ben",
				entity.SubjectScore{Subject: " math ", Score: 60, FullMarks: fm(100)},
			),
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := len(agg.Subjects), 2; got != want {
			t.Fatalf("expected %d averaged subjects, got %d", want, got)
		}
		if got, want := agg.Subjects[0].Subject, "Math"; got != want {
			t.Errorf("subject[0] = %q, want %q", got, want)
		}
		if got, want := agg.Subjects[0].Score, 70.0; got != want {
			t.Errorf("math average = %v, want %v", got, want)
		}
		if got, want := agg.Subjects[1].Subject, "Maths"; got != want {
			t.Errorf("subject[1] = %q, want %q", got, want)
		}
	})

	t.Run("full marks is the max across contributors with 100 default", func(t *testing.T) {
		t.Parallel()

		results := []entity.AnalysisResult{
			student("Asha", entity.SubjectScore{Subject: "Physics", Score: 110, FullMarks: fm(150)}),
			student("Ben", entity.SubjectScore{Subject: "physics", Score: 60}),
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if agg.Subjects[0].FullMarks == nil {
			t.Fatal("expected full marks to be set")
		}
		if got, want := *agg.Subjects[0].FullMarks, 150.0; got != want {
			t.Errorf("full marks = %v, want %v", got, want)
		}
	})

	t.Run("score above full marks is averaged as-is", func(t *testing.T) {
		t.Parallel()

		results := []entity.AnalysisResult{
			student("Asha", entity.SubjectScore{Subject: "Art", Score: 105, FullMarks: fm(100)}),
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := agg.Subjects[0].Score, 105.0; got != want {
			t.Errorf("score = %v, want %v", got, want)
		}
	})

	t.Run("totals are rounded means of per-student totals", func(t *testing.T) {
		t.Parallel()

		results := []entity.AnalysisResult{
			{StudentName: "A", TotalObtained: 170, TotalPossible: 200},
			{StudentName: "B", TotalObtained: 131, TotalPossible: 200},
			{StudentName: "C", TotalObtained: 144, TotalPossible: 300},
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// (170+131+144)/3 = 148.33 -> 148, (200+200+300)/3 = 233.33 -> 233
		if got, want := agg.TotalObtained, 148.0; got != want {
			t.Errorf("total obtained = %v, want %v", got, want)
		}
		if got, want := agg.TotalPossible, 233.0; got != want {
			t.Errorf("total possible = %v, want %v", got, want)
		}
	})

	t.Run("percentage comes from averaged subject scores not totals", func(t *testing.T) {
		t.Parallel()

		// Totals say 50%, but the averaged subject scores say 60%; the two
		// deliberately diverge and the subject-derived number wins.
		results := []entity.AnalysisResult{
			{
				StudentName:   "A",
				Subjects:      []entity.SubjectScore{{Subject: "Math", Score: 60, FullMarks: fm(100)}},
				TotalObtained: 100,
				TotalPossible: 200,
			},
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := agg.Percentage, 60.0; got != want {
			t.Errorf("percentage = %v, want %v", got, want)
		}
		if got, want := agg.TotalObtained, 100.0; got != want {
			t.Errorf("total obtained = %v, want %v", got, want)
		}
	})

	t.Run("order invariant up to subject ordering", func(t *testing.T) {
		t.Parallel()

		a := student("A",
			entity.SubjectScore{Subject: "Math", Score: 80, FullMarks: fm(100)},
			entity.SubjectScore{Subject: "Science", Score: 90, FullMarks: fm(100)},
		)
		b := student("B",
			entity.SubjectScore{Subject: "Science", Score: 70, FullMarks: fm(100)},
			entity.SubjectScore{Subject: "math", Score: 60, FullMarks: fm(100)},
		)

		agg1, err := BuildClassAverage([]entity.AnalysisResult{a, b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		agg2, err := BuildClassAverage([]entity.AnalysisResult{b, a})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		toMap := func(subjects []entity.SubjectScore) map[string]float64 {
			m := make(map[string]float64, len(subjects))
			for _, s := range subjects {
				m[s.Subject] = s.Score
			}
			return m
		}
		m1, m2 := toMap(agg1.Subjects), toMap(agg2.Subjects)
		if len(m1) != len(m2) {
			t.Fatalf("subject sets differ: %v vs %v", m1, m2)
		}
		for k, v := range m1 {
			if m2[k] != v {
				t.Errorf("subject %q: %v vs %v", k, v, m2[k])
			}
		}
		if agg1.TotalObtained != agg2.TotalObtained || agg1.TotalPossible != agg2.TotalPossible {
			t.Errorf("totals differ across permutations")
		}
		if agg1.Percentage != agg2.Percentage {
			t.Errorf("percentage differs across permutations: %v vs %v", agg1.Percentage, agg2.Percentage)
		}
	})

	t.Run("does not mutate its input", func(t *testing.T) {
		t.Parallel()

		subjects := []entity.SubjectScore{
			{Subject: " math ", Score: 60},
		}
		results := []entity.AnalysisResult{student("A", subjects...)}

		if _, err := BuildClassAverage(results); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := results[0].Subjects[0].Subject, " math "; got != want {
			t.Errorf("input subject mutated to %q", got)
		}
		if results[0].Subjects[0].FullMarks != nil {
			t.Error("input full marks mutated")
		}
	})

	t.Run("empty input is a contract violation", func(t *testing.T) {
		t.Parallel()

		_, err := BuildClassAverage(nil)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("narrative fields", func(t *testing.T) {
		t.Parallel()

		results := []entity.AnalysisResult{
			student("A", entity.SubjectScore{Subject: "Math", Score: 75, FullMarks: fm(100)}),
			student("B", entity.SubjectScore{Subject: "Math", Score: 85, FullMarks: fm(100)}),
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := agg.StudentName, AggregateStudentName; got != want {
			t.Errorf("student name = %q, want %q", got, want)
		}
		if !strings.Contains(agg.Summary, "2 marksheets") {
			t.Errorf("summary missing input count: %q", agg.Summary)
		}
		if !strings.Contains(agg.Summary, "80%") {
			t.Errorf("summary missing overall average: %q", agg.Summary)
		}
		if len(agg.Feedback) == 0 {
			t.Error("expected fixed feedback list to be present")
		}
	})

	t.Run("end to end scenario", func(t *testing.T) {
		t.Parallel()

		results := []entity.AnalysisResult{
			student("Asha",
				entity.SubjectScore{Subject: "Math", Score: 80, FullMarks: fm(100)},
				entity.SubjectScore{Subject: "Science", Score: 90, FullMarks: fm(100)},
			),
			student("Ben",
				entity.SubjectScore{Subject: "math", Score: 60},
				entity.SubjectScore{Subject: "Science", Score: 70, FullMarks: fm(100)},
			),
		}

		agg, err := BuildClassAverage(results)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := len(agg.Subjects), 2; got != want {
			t.Fatalf("expected %d subjects, got %d", want, got)
		}

		math, science := agg.Subjects[0], agg.Subjects[1]
		if math.Subject != "Math" || math.Score != 70 || *math.FullMarks != 100 {
			t.Errorf("math = %+v, want Math 70/100", math)
		}
		if science.Subject != "Science" || science.Score != 80 || *science.FullMarks != 100 {
			t.Errorf("science = %+v, want Science 80/100", science)
		}
		if got, want := agg.Percentage, 75.0; got != want {
			t.Errorf("overall average = %v, want %v", got, want)
		}
	})
}

func TestAverageScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []entity.SubjectScore
		want     float64
	}{
		{
			name:     "empty list returns zero",
			subjects: nil,
			want:     0,
		},
		{
			name: "rounds mean to nearest integer",
			subjects: []entity.SubjectScore{
				{Subject: "A", Score: 70},
				{Subject: "B", Score: 85},
				{Subject: "C", Score: 90},
			},
			want: 82, // mean 81.67
		},
		{
			name: "half rounds away from zero",
			subjects: []entity.SubjectScore{
				{Subject: "A", Score: 70},
				{Subject: "B", Score: 71},
			},
			want: 71, // mean 70.5
		},
		{
			name: "single subject",
			subjects: []entity.SubjectScore{
				{Subject: "A", Score: 42},
			},
			want: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := AverageScore(tt.subjects); got != tt.want {
				t.Errorf("AverageScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Math", "math"},
		{" math ", "math"},
		{"SOCIAL STUDIES", "social studies"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSubject(tt.in); got != tt.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplaySubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"math", "Math"},
		{"social studies", "Social studies"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DisplaySubject(tt.in); got != tt.want {
			t.Errorf("DisplaySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
