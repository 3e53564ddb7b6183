package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// SanitizeMarksheetJSON repairs a model response that is close to, but not
// exactly, the shape our schema demands, so the document can still validate:
//   - Coerces numeric fields the model returned as strings ("85" -> 85)
//   - Drops subject entries with no usable name or score
//   - Drops null/empty optionals and unknown keys
//   - Fills required-but-missing narrative fields with neutral values
//
// It never invents scores; a subject whose score cannot be read is dropped.
func SanitizeMarksheetJSON(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string

	// student_name: required; degrade rather than fail.
	if s, ok := asString(m["student_name"]); ok && s != "" {
		m["student_name"] = s
	} else {
		m["student_name"] = "Unknown Student"
		dropped = append(dropped, "student_name(defaulted)")
	}

	// subjects: keep only entries with a name and a readable score.
	rawSubjects, _ := m["subjects"].([]any)
	subjects := make([]any, 0, len(rawSubjects))
	for i, rs := range rawSubjects {
		sm, ok := rs.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("subjects[%d](type)", i))
			continue
		}
		name, ok := asString(sm["subject"])
		if !ok || name == "" {
			dropped = append(dropped, fmt.Sprintf("subjects[%d](no subject)", i))
			continue
		}
		score, ok := asNumber(sm["score"])
		if !ok {
			dropped = append(dropped, fmt.Sprintf("subjects[%d](no score)", i))
			continue
		}
		clean := map[string]any{"subject": name, "score": score}
		if fm, ok := asNumber(sm["full_marks"]); ok && fm > 0 {
			clean["full_marks"] = fm
		}
		subjects = append(subjects, clean)
	}
	m["subjects"] = subjects

	// numeric totals: coerce or default to 0.
	for _, k := range []string{"total_obtained", "total_possible", "percentage"} {
		if n, ok := asNumber(m[k]); ok {
			m[k] = n
		} else {
			m[k] = 0.0
			dropped = append(dropped, k+"(defaulted)")
		}
	}

	// grade: optional string.
	if g, ok := asString(m["grade"]); ok && g != "" {
		m["grade"] = g
	} else if _, present := m["grade"]; present {
		delete(m, "grade")
		dropped = append(dropped, "grade(empty)")
	}

	// summary: required string.
	if s, ok := asString(m["summary"]); ok {
		m["summary"] = s
	} else {
		m["summary"] = ""
		dropped = append(dropped, "summary(defaulted)")
	}

	// feedback: required array of strings.
	rawFeedback, _ := m["feedback"].([]any)
	feedback := make([]any, 0, len(rawFeedback))
	for i, rf := range rawFeedback {
		if s, ok := asString(rf); ok && s != "" {
			feedback = append(feedback, s)
		} else {
			dropped = append(dropped, fmt.Sprintf("feedback[%d](type)", i))
		}
	}
	m["feedback"] = feedback

	// remove unknown keys (additionalProperties is false)
	allowed := map[string]struct{}{
		"student_name": {}, "subjects": {}, "total_obtained": {}, "total_possible": {},
		"percentage": {}, "grade": {}, "summary": {}, "feedback": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
