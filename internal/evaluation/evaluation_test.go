package evaluation

import (
	"errors"
	"testing"
)

func TestAggregateMeanOfTotals(t *testing.T) {
	sum := Aggregate([]Record{
		{TotalScore: 20, Errors: ErrorCounts{Major: 1}},
		Fallback(),
		{TotalScore: 10, Errors: ErrorCounts{Major: 2, Minor: 3, AbandonedCitations: 1}},
	})

	if got := FormatScore(sum.MeanTotal); got != "10.00" {
		t.Fatalf("expected mean 10.00, got %s", got)
	}
	if sum.Errors.Major != 3 || sum.Errors.Minor != 3 || sum.Errors.AbandonedCitations != 1 {
		t.Fatalf("unexpected error sums %+v", sum.Errors)
	}
	if sum.Grade != GradeReferenceOnly {
		t.Fatalf("expected reference only, got %q", sum.Grade)
	}
	if sum.Count != 3 {
		t.Fatalf("expected count 3, got %d", sum.Count)
	}
}

func TestAggregateDimensionMeans(t *testing.T) {
	a := Fallback()
	a.Scores[NormativeBasis] = 4
	a.Scores[KeyFactsCoverage] = 3
	b := Fallback()
	b.Scores[NormativeBasis] = 2

	sum := Aggregate([]Record{a, b})
	if sum.DimensionMeans[NormativeBasis] != 3 {
		t.Fatalf("expected mean 3, got %v", sum.DimensionMeans[NormativeBasis])
	}
	if sum.DimensionMeans[KeyFactsCoverage] != 1.5 {
		t.Fatalf("expected mean 1.5, got %v", sum.DimensionMeans[KeyFactsCoverage])
	}
	if sum.DimensionMeans[OutcomeConsistency] != 0 {
		t.Fatalf("expected zero mean, got %v", sum.DimensionMeans[OutcomeConsistency])
	}
}

func TestAggregateEmpty(t *testing.T) {
	sum := Aggregate(nil)
	if sum.Count != 0 || sum.MeanTotal != 0 || sum.Grade != GradeUnreliable {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestGradeBands(t *testing.T) {
	cases := map[float64]string{
		20:    GradeHighlyReliable,
		16:    GradeHighlyReliable,
		15.99: GradeReliable,
		11:    GradeReliable,
		6:     GradeReferenceOnly,
		5.5:   GradeUnreliable,
	}
	for score, want := range cases {
		if got := Grade(score); got != want {
			t.Fatalf("Grade(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestFallbackIsZero(t *testing.T) {
	rec := Fallback()
	if rec.TotalScore != 0 || rec.Rationale != "" || rec.Errors != (ErrorCounts{}) {
		t.Fatalf("expected zero record, got %+v", rec)
	}
	for _, d := range Dimensions {
		if rec.Score(d) != 0 {
			t.Fatalf("expected zero %s", d)
		}
	}
}

func TestCloneDoesNotShareScores(t *testing.T) {
	rec := Fallback()
	cp := rec.Clone()
	cp.Scores[ValueAlignment] = 3
	if rec.Score(ValueAlignment) != 0 {
		t.Fatalf("clone shares scores with the original")
	}
	if (Record{}).Clone().Scores != nil {
		t.Fatalf("expected nil scores to stay nil")
	}
}

func TestParseRecordClampsScores(t *testing.T) {
	raw := []byte(`{
		"scores": {"规范依据相关性": 5, "subsumption_chain": -1, "KEY_FACTS_COVERAGE": 2.5, "style": 4},
		"total_score": 27,
		"errors": {"major_errors": 1, "minor_errors": -2},
		"rationale": "  reasoning skips the limitation period  "
	}`)

	rec, err := ParseRecord(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Score(NormativeBasis) != 4 || rec.Score(SubsumptionChain) != 0 || rec.Score(KeyFactsCoverage) != 2.5 {
		t.Fatalf("unexpected scores %+v", rec.Scores)
	}
	if len(rec.Scores) != len(Dimensions) {
		t.Fatalf("unknown dimensions should be dropped, got %+v", rec.Scores)
	}
	if rec.TotalScore != 20 {
		t.Fatalf("expected total clamped to 20, got %v", rec.TotalScore)
	}
	if rec.Errors.Major != 1 || rec.Errors.Minor != 0 {
		t.Fatalf("unexpected errors %+v", rec.Errors)
	}
	if rec.Rationale != "reasoning skips the limitation period" {
		t.Fatalf("unexpected rationale %q", rec.Rationale)
	}
}

func TestParseRecordDerivesMissingTotal(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"scores": {"normative_basis": 3, "value_alignment": 2}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.TotalScore != 5 {
		t.Fatalf("expected derived total 5, got %v", rec.TotalScore)
	}
}

func TestParseRecordRejectsNonObject(t *testing.T) {
	if _, err := ParseRecord([]byte(`"great answer"`)); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}
