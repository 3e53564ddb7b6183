package llm

import (
	"encoding/json"
	"testing"
)

func TestSanitizeMarksheetJSON(t *testing.T) {
	t.Parallel()

	t.Run("coerces string numbers and validates", func(t *testing.T) {
		t.Parallel()

		doc := []byte(`{
			"student_name": " Asha ",
			"subjects": [
				{"subject": "Math", "score": "85", "full_marks": "100"},
				{"subject": "Science", "score": 72.5}
			],
			"total_obtained": "157.5",
			"total_possible": 200,
			"percentage": "78.75",
			"summary": "solid",
			"feedback": ["revise algebra"]
		}`)

		cleaned, _, err := SanitizeMarksheetJSON(doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := ValidateMarksheetJSON(cleaned); err != nil {
			t.Fatalf("sanitized document still fails validation: %v", err)
		}

		var out MarksheetFields
		if err := json.Unmarshal(cleaned, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got, want := out.StudentName, "Asha"; got != want {
			t.Errorf("student = %q, want %q", got, want)
		}
		if got, want := out.Subjects[0].Score, 85.0; got != want {
			t.Errorf("score = %v, want %v", got, want)
		}
		if out.Subjects[0].FullMarks == nil || *out.Subjects[0].FullMarks != 100 {
			t.Errorf("full marks = %v, want 100", out.Subjects[0].FullMarks)
		}
		if got, want := out.TotalObtained, 157.5; got != want {
			t.Errorf("total obtained = %v, want %v", got, want)
		}
	})

	t.Run("drops unusable subject rows", func(t *testing.T) {
		t.Parallel()

		doc := []byte(`{
			"student_name": "Ben",
			"subjects": [
				{"subject": "Math", "score": 60},
				{"subject": "", "score": 50},
				{"subject": "Science"},
				{"subject": "History", "score": "n/a"},
				"not an object"
			],
			"total_obtained": 60,
			"total_possible": 100,
			"percentage": 60,
			"summary": "",
			"feedback": []
		}`)

		cleaned, dropped, err := SanitizeMarksheetJSON(doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var out MarksheetFields
		if err := json.Unmarshal(cleaned, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got, want := len(out.Subjects), 1; got != want {
			t.Fatalf("subjects = %d, want %d (dropped: %v)", got, want, dropped)
		}
		if got, want := out.Subjects[0].Subject, "Math"; got != want {
			t.Errorf("kept subject = %q, want %q", got, want)
		}
		if len(dropped) != 4 {
			t.Errorf("dropped = %v, want 4 entries", dropped)
		}
	})

	t.Run("defaults required fields instead of failing", func(t *testing.T) {
		t.Parallel()

		doc := []byte(`{"unknown_key": true}`)

		cleaned, _, err := SanitizeMarksheetJSON(doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := ValidateMarksheetJSON(cleaned); err != nil {
			t.Fatalf("sanitized document fails validation: %v", err)
		}
		var out MarksheetFields
		if err := json.Unmarshal(cleaned, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got, want := out.StudentName, "Unknown Student"; got != want {
			t.Errorf("student = %q, want %q", got, want)
		}
		if len(out.Subjects) != 0 {
			t.Errorf("subjects = %v, want empty", out.Subjects)
		}
	})

	t.Run("rejects non-JSON", func(t *testing.T) {
		t.Parallel()

		if _, _, err := SanitizeMarksheetJSON([]byte("not json")); err == nil {
			t.Fatal("expected a decode error")
		}
	})
}

func TestValidateMarksheetJSON(t *testing.T) {
	t.Parallel()

	valid := []byte(`{
		"student_name": "Asha",
		"subjects": [{"subject": "Math", "score": 80, "full_marks": 100}],
		"total_obtained": 80,
		"total_possible": 100,
		"percentage": 80,
		"grade": "A",
		"summary": "good",
		"feedback": ["keep it up"]
	}`)
	if err := ValidateMarksheetJSON(valid); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	missingRequired := []byte(`{"student_name": "Asha"}`)
	if err := ValidateMarksheetJSON(missingRequired); err == nil {
		t.Error("expected rejection for missing required fields")
	}

	extraKey := []byte(`{
		"student_name": "Asha",
		"subjects": [],
		"total_obtained": 0,
		"total_possible": 0,
		"percentage": 0,
		"summary": "",
		"feedback": [],
		"bonus": 1
	}`)
	if err := ValidateMarksheetJSON(extraKey); err == nil {
		t.Error("expected rejection for unknown key")
	}

	// The compiled schema is shared; repeated calls must not interfere.
	if err := ValidateMarksheetJSON(valid); err != nil {
		t.Errorf("second validation of valid document rejected: %v", err)
	}
}
