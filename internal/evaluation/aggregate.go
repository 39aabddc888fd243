package evaluation

import "fmt"

// Grade bands for the mean total score.
const (
	GradeHighlyReliable = "highly reliable"
	GradeReliable       = "basically reliable"
	GradeReferenceOnly  = "reference only"
	GradeUnreliable     = "unreliable"
)

// Summary aggregates the evaluations of one session.
type Summary struct {
	Count          int                   `json:"count"`
	DimensionMeans map[Dimension]float64 `json:"dimension_means"`
	MeanTotal      float64               `json:"mean_total_score"`
	Errors         ErrorCounts           `json:"errors"`
	Grade          string                `json:"grade"`
}

// Aggregate computes per-dimension means, the mean total score, summed error
// counts and the grade. Fallback records count like any other record. An
// empty input yields a zero summary graded unreliable.
func Aggregate(records []Record) Summary {
	sum := Summary{
		Count:          len(records),
		DimensionMeans: zeroScores(),
	}
	if len(records) == 0 {
		sum.Grade = Grade(0)
		return sum
	}

	var total float64
	for _, r := range records {
		for _, d := range Dimensions {
			sum.DimensionMeans[d] += r.Score(d)
		}
		total += r.TotalScore
		sum.Errors.Major += r.Errors.Major
		sum.Errors.Obvious += r.Errors.Obvious
		sum.Errors.Minor += r.Errors.Minor
		sum.Errors.AbandonedCitations += r.Errors.AbandonedCitations
	}

	n := float64(len(records))
	for _, d := range Dimensions {
		sum.DimensionMeans[d] /= n
	}
	sum.MeanTotal = total / n
	sum.Grade = Grade(sum.MeanTotal)
	return sum
}

// Grade maps a mean total score to its reliability band.
func Grade(meanTotal float64) string {
	switch {
	case meanTotal >= 16:
		return GradeHighlyReliable
	case meanTotal >= 11:
		return GradeReliable
	case meanTotal >= 6:
		return GradeReferenceOnly
	default:
		return GradeUnreliable
	}
}

// FormatScore renders a score with two decimals.
func FormatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
