// Package aggregate folds independent marksheet extraction results into a
// single synthetic class-average record.
package aggregate

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
)

// AggregateStudentName labels the synthetic class-average record. Selection
// logic never matches on this string; it exists for display only.
const AggregateStudentName = "Class Average"

// classFeedback is the fixed, non-personalized recommendation set attached
// to every class-average record.
var classFeedback = []string{
	"Review the subjects with the lowest class averages in upcoming lessons.",
	"Pair stronger students with weaker ones for peer study sessions.",
	"Schedule a short revision test to confirm improvement in weak areas.",
	"Share individual reports with students so each can see their own gaps.",
}

type subjectAccumulator struct {
	sum          float64
	count        int
	maxFullMarks float64
}

// BuildClassAverage folds one or more successful extraction results into the
// class-average record. It is pure: inputs are never mutated and identical
// input yields identical output.
//
// Subjects are grouped by a trimmed, lowercased normalization key, so "Math"
// and " math " contribute to one group while "Maths" stays separate. Group
// order follows first appearance across the inputs. A group's full marks is
// the maximum stated by any contributor (100 where a contributor omitted it),
// so one sparse record cannot understate a subject's scale.
//
// All means are rounded to the nearest integer, ties away from zero
// (math.Round). The record's totals are means of the per-student totals,
// while its percentage is the mean of the averaged subject scores; the two
// can disagree slightly and are intentionally not reconciled.
//
// An empty input is a caller bug, reported as common.ErrInvalidInput: the
// orchestrator only invokes this after confirming at least one success.
func BuildClassAverage(results []entity.AnalysisResult) (entity.AnalysisResult, error) {
	if len(results) == 0 {
		return entity.AnalysisResult{}, fmt.Errorf("aggregate: no results to average: %w", common.ErrInvalidInput)
	}

	groups := make(map[string]*subjectAccumulator)
	var keyOrder []string

	for _, r := range results {
		for _, s := range r.Subjects {
			key := NormalizeSubject(s.Subject)
			acc, ok := groups[key]
			if !ok {
				acc = &subjectAccumulator{}
				groups[key] = acc
				keyOrder = append(keyOrder, key)
			}
			acc.sum += s.Score
			acc.count++
			if fm := s.FullMarksOrDefault(); fm > acc.maxFullMarks {
				acc.maxFullMarks = fm
			}
		}
	}

	avgSubjects := make([]entity.SubjectScore, 0, len(keyOrder))
	for _, key := range keyOrder {
		acc := groups[key]
		fullMarks := acc.maxFullMarks
		avgSubjects = append(avgSubjects, entity.SubjectScore{
			Subject:   DisplaySubject(key),
			Score:     roundMean(acc.sum, acc.count),
			FullMarks: &fullMarks,
		})
	}

	var sumObtained, sumPossible float64
	for _, r := range results {
		sumObtained += r.TotalObtained
		sumPossible += r.TotalPossible
	}

	overall := AverageScore(avgSubjects)

	return entity.AnalysisResult{
		StudentName:   AggregateStudentName,
		Subjects:      avgSubjects,
		TotalObtained: roundMean(sumObtained, len(results)),
		TotalPossible: roundMean(sumPossible, len(results)),
		Percentage:    overall,
		Summary:       classSummary(len(results), overall),
		Feedback:      append([]string(nil), classFeedback...),
	}, nil
}

// AverageScore returns the rounded mean of the subjects' scores, or 0 for an
// empty list. The 0 default is load-bearing for callers that render an
// average over a possibly-empty selection; do not turn it into an error.
func AverageScore(subjects []entity.SubjectScore) float64 {
	if len(subjects) == 0 {
		return 0
	}
	var sum float64
	for _, s := range subjects {
		sum += s.Score
	}
	return roundMean(sum, len(subjects))
}

// NormalizeSubject derives the grouping key for a subject label: surrounding
// whitespace trimmed, then lowercased. Two labels share a group exactly when
// their keys are equal.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// DisplaySubject derives the display label for a normalized key: first rune
// uppercased, the rest left as the lowercase key. This is a cosmetic
// transform, not a restoration of any contributor's original casing
// ("social studies" becomes "Social studies").
func DisplaySubject(key string) string {
	r := []rune(key)
	if len(r) == 0 {
		return key
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func classSummary(count int, overall float64) string {
	noun := "marksheets"
	if count == 1 {
		noun = "marksheet"
	}
	return fmt.Sprintf("Class average across %d %s with an overall average score of %.0f%%.", count, noun, overall)
}

// roundMean is mean(sum/count) rounded to the nearest integer, ties away
// from zero.
func roundMean(sum float64, count int) float64 {
	return math.Round(sum / float64(count))
}
