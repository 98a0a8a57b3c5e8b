package domain

import (
	"strings"
	"testing"
)

func sampleMetrics() Metrics {
	return Metrics{
		TotalPoints:       1200,
		SessionsCompleted: 15,
		StreakDays:        8,
		DomainVibeLevels:  map[string]float64{"strength": 1650, "cardio": 1400},
		ExerciseTypeCounts: map[string]int64{
			"deadlift": 12,
			"squat":    3,
		},
	}
}

func TestCriteria_Eval_AllPredicatesMustHold(t *testing.T) {
	c := Criteria{
		{Metric: MetricTotalPoints, Comparator: CompareGTE, Threshold: 1000},
		{Metric: MetricStreakDays, Comparator: CompareGTE, Threshold: 7},
	}
	matched, err := c.Eval(sampleMetrics())
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !matched {
		t.Fatalf("expected conjunction to hold")
	}

	// Raise one threshold above the snapshot; the whole conjunction fails.
	c[1].Threshold = 9
	matched, err = c.Eval(sampleMetrics())
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if matched {
		t.Fatalf("expected conjunction to fail when one predicate fails")
	}
}

func TestCriteria_Eval_EmptyNeverMatches(t *testing.T) {
	matched, err := Criteria{}.Eval(sampleMetrics())
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if matched {
		t.Fatalf("empty criteria must never match")
	}
}

func TestCriteria_Eval_DomainAndExerciseMetrics(t *testing.T) {
	cases := []struct {
		name string
		c    Criteria
		want bool
	}{
		{
			name: "domain level met, case-insensitive lookup",
			c:    Criteria{{Metric: MetricDomainVibeLevel, Comparator: CompareGTE, Threshold: 1600, Domain: "Strength"}},
			want: true,
		},
		{
			name: "domain level not met",
			c:    Criteria{{Metric: MetricDomainVibeLevel, Comparator: CompareGTE, Threshold: 1600, Domain: "cardio"}},
			want: false,
		},
		{
			name: "unknown domain reads as zero",
			c:    Criteria{{Metric: MetricDomainVibeLevel, Comparator: CompareGTE, Threshold: 1, Domain: "swimming"}},
			want: false,
		},
		{
			name: "exercise count gte",
			c:    Criteria{{Metric: MetricExerciseTypeCount, Comparator: CompareGTE, Threshold: 10, ExerciseType: "deadlift"}},
			want: true,
		},
		{
			name: "exercise count eq",
			c:    Criteria{{Metric: MetricExerciseTypeCount, Comparator: CompareEQ, Threshold: 3, ExerciseType: "squat"}},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.c.Eval(sampleMetrics())
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCriteria_Validate_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		c       Criteria
		wantSub string
	}{
		{
			name:    "unknown metric",
			c:       Criteria{{Metric: "karma", Comparator: CompareGTE, Threshold: 1}},
			wantSub: "unknown badge metric",
		},
		{
			name:    "unknown comparator",
			c:       Criteria{{Metric: MetricTotalPoints, Comparator: "lt", Threshold: 1}},
			wantSub: "unknown badge comparator",
		},
		{
			name:    "domain metric without domain",
			c:       Criteria{{Metric: MetricDomainVibeLevel, Comparator: CompareGTE, Threshold: 1}},
			wantSub: "requires a domain",
		},
		{
			name:    "exercise metric without exercise type",
			c:       Criteria{{Metric: MetricExerciseTypeCount, Comparator: CompareGTE, Threshold: 1}},
			wantSub: "requires an exercise type",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.c.Validate(); err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
			// Eval surfaces the same validation error instead of matching.
			matched, err := tc.c.Eval(sampleMetrics())
			if err == nil || matched {
				t.Fatalf("expected eval error for malformed criteria, got matched=%v err=%v", matched, err)
			}
		})
	}
}

func TestNormalizeDomainCode(t *testing.T) {
	cases := map[string]string{
		"  Strength ": "strength",
		"CARDIO":      "cardio",
		"mobility":    "mobility",
		"  ":          "",
	}
	for in, want := range cases {
		if got := NormalizeDomainCode(in); got != want {
			t.Fatalf("NormalizeDomainCode(%q) = %q, want %q", in, got, want)
		}
	}
}
