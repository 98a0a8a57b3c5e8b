// Package domain – badge criteria.
//
// Badge criteria are a small declarative rule structure, not executable
// code: a conjunction of typed predicates over a snapshot of user metrics.
// Representing them as a closed set of variants keeps evaluation a total
// match instead of an interpreter over arbitrary JSON.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Metric identifies the aggregated user value a predicate compares against.
type Metric string

// Supported metrics.
const (
	MetricTotalPoints       Metric = "total_points"
	MetricSessionsCompleted Metric = "sessions_completed"
	MetricStreakDays        Metric = "streak_days"
	MetricDomainVibeLevel   Metric = "domain_vibe_level"
	MetricExerciseTypeCount Metric = "exercise_type_count"
)

// Comparator is the comparison applied between a metric and a threshold.
type Comparator string

// Supported comparators.
const (
	CompareGTE Comparator = "gte"
	CompareEQ  Comparator = "eq"
)

// ErrUnknownMetric is returned when a predicate names a metric outside the
// closed set above.
var ErrUnknownMetric = errors.New("unknown badge metric")

// ErrUnknownComparator is returned when a predicate uses an unsupported
// comparison operator.
var ErrUnknownComparator = errors.New("unknown badge comparator")

// Predicate is one typed condition inside a badge's criteria conjunction.
// Domain is required for domain_vibe_level; ExerciseType is required for
// exercise_type_count; both are ignored by the other metrics.
type Predicate struct {
	Metric       Metric     `json:"metric"`
	Comparator   Comparator `json:"comparator"`
	Threshold    float64    `json:"threshold"`
	Domain       string     `json:"domain,omitempty"`
	ExerciseType string     `json:"exercise_type,omitempty"`
}

// Criteria is the conjunction of predicates that unlocks a badge. An empty
// criteria set never matches, so a catalog row without rules cannot be
// awarded automatically.
type Criteria []Predicate

// Metrics is the read-only snapshot of user state a criteria set is
// evaluated against. It is gathered once per evaluation pass.
type Metrics struct {
	TotalPoints        int64
	SessionsCompleted  int64
	StreakDays         int
	DomainVibeLevels   map[string]float64
	ExerciseTypeCounts map[string]int64
}

// Validate checks that every predicate names a known metric and comparator
// and carries the arguments its metric requires.
func (c Criteria) Validate() error {
	for i, p := range c {
		switch p.Metric {
		case MetricTotalPoints, MetricSessionsCompleted, MetricStreakDays:
		case MetricDomainVibeLevel:
			if strings.TrimSpace(p.Domain) == "" {
				return fmt.Errorf("criteria[%d]: domain_vibe_level requires a domain", i)
			}
		case MetricExerciseTypeCount:
			if strings.TrimSpace(p.ExerciseType) == "" {
				return fmt.Errorf("criteria[%d]: exercise_type_count requires an exercise type", i)
			}
		default:
			return fmt.Errorf("criteria[%d]: %w: %q", i, ErrUnknownMetric, p.Metric)
		}
		switch p.Comparator {
		case CompareGTE, CompareEQ:
		default:
			return fmt.Errorf("criteria[%d]: %w: %q", i, ErrUnknownComparator, p.Comparator)
		}
	}
	return nil
}

// Eval reports whether all predicates hold against the snapshot. It returns
// an error for malformed predicates so that a broken catalog row can be
// skipped without aborting the whole evaluation pass.
func (c Criteria) Eval(m Metrics) (bool, error) {
	if len(c) == 0 {
		return false, nil
	}
	if err := c.Validate(); err != nil {
		return false, err
	}
	for _, p := range c {
		var value float64
		switch p.Metric {
		case MetricTotalPoints:
			value = float64(m.TotalPoints)
		case MetricSessionsCompleted:
			value = float64(m.SessionsCompleted)
		case MetricStreakDays:
			value = float64(m.StreakDays)
		case MetricDomainVibeLevel:
			value = m.DomainVibeLevels[NormalizeDomainCode(p.Domain)]
		case MetricExerciseTypeCount:
			value = float64(m.ExerciseTypeCounts[p.ExerciseType])
		}
		if !compare(value, p.Comparator, p.Threshold) {
			return false, nil
		}
	}
	return true, nil
}

// compare applies a single comparator. Unknown comparators are rejected by
// Validate before this runs.
func compare(value float64, op Comparator, threshold float64) bool {
	switch op {
	case CompareGTE:
		return value >= threshold
	case CompareEQ:
		return value == threshold
	}
	return false
}

// domainFolder lowercases domain codes without locale-specific casing rules.
var domainFolder = cases.Lower(language.Und)

// NormalizeDomainCode canonicalizes a domain code for storage and lookup:
// trimmed and case-folded, so "Strength" and "strength" address the same
// rating row.
func NormalizeDomainCode(code string) string {
	return domainFolder.String(strings.TrimSpace(code))
}
