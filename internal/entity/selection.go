package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Selection identifies which record of a batch outcome is being viewed or
// exported: either the synthetic class-average record or one individual
// student record by position. It replaces the overloaded "-1 means
// aggregate" index convention with an explicit tagged value.
type Selection struct {
	aggregate bool
	index     int
}

// SelectAggregate selects the class-average record.
func SelectAggregate() Selection {
	return Selection{aggregate: true}
}

// SelectIndividual selects the individual record at the given position in
// the batch's successful-results sequence.
func SelectIndividual(index int) Selection {
	return Selection{index: index}
}

// ParseSelection parses the wire form: "aggregate" (the default when s is
// empty) or a non-negative decimal index.
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "aggregate") {
		return SelectAggregate(), nil
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 {
		return Selection{}, fmt.Errorf("invalid selection %q: want \"aggregate\" or a non-negative index", s)
	}
	return SelectIndividual(idx), nil
}

// IsAggregate reports whether the class-average record is selected.
func (s Selection) IsAggregate() bool { return s.aggregate }

// Index returns the selected individual's position. Only meaningful when
// IsAggregate is false.
func (s Selection) Index() int { return s.index }

// Resolve returns the record the selection points at within the outcome.
func (s Selection) Resolve(outcome *BatchOutcome) (AnalysisResult, error) {
	if s.aggregate {
		return outcome.Aggregate, nil
	}
	if s.index >= len(outcome.Results) {
		return AnalysisResult{}, fmt.Errorf("selection index %d out of range: batch has %d result(s)", s.index, len(outcome.Results))
	}
	return outcome.Results[s.index], nil
}

func (s Selection) String() string {
	if s.aggregate {
		return "aggregate"
	}
	return strconv.Itoa(s.index)
}
