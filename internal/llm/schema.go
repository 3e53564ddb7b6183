package llm

// BuildMarksheetJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint
// and also use it locally to validate the response.
func BuildMarksheetJSONSchema() map[string]any {
	subjectProps := map[string]any{
		"subject":    map[string]any{"type": "string", "minLength": 1},
		"score":      map[string]any{"type": "number"},
		"full_marks": map[string]any{"type": "number", "exclusiveMinimum": 0.0},
	}
	subjectItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           subjectProps,
		"required":             []string{"subject", "score"},
	}

	props := map[string]any{
		"student_name":   map[string]any{"type": "string", "minLength": 1},
		"subjects":       map[string]any{"type": "array", "items": subjectItem},
		"total_obtained": map[string]any{"type": "number"},
		"total_possible": map[string]any{"type": "number"},
		"percentage":     map[string]any{"type": "number"},
		"grade":          map[string]any{"type": "string"},
		"summary":        map[string]any{"type": "string"},
		"feedback":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}
	required := []string{"student_name", "subjects", "total_obtained", "total_possible", "percentage", "summary", "feedback"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
