package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Dimension names one of the five rubric axes.
type Dimension string

const (
	NormativeBasis     Dimension = "normative_basis"
	SubsumptionChain   Dimension = "subsumption_chain"
	ValueAlignment     Dimension = "value_alignment"
	KeyFactsCoverage   Dimension = "key_facts_coverage"
	OutcomeConsistency Dimension = "outcome_consistency"
)

const (
	MaxDimensionScore = 4
	MaxTotalScore     = 20
)

// Dimensions lists the rubric axes in display order.
var Dimensions = []Dimension{
	NormativeBasis,
	SubsumptionChain,
	ValueAlignment,
	KeyFactsCoverage,
	OutcomeConsistency,
}

// Evaluators sometimes label dimensions with the rubric's Chinese headings.
var dimensionAliases = []struct {
	label string
	dim   Dimension
}{
	{"规范依据相关性", NormativeBasis},
	{"涵摄链条对齐度", SubsumptionChain},
	{"价值衡量与同理心对齐度", ValueAlignment},
	{"关键事实与争点覆盖度", KeyFactsCoverage},
	{"裁判结论与救济配置一致性", OutcomeConsistency},
}

// ErrInvalidRecord is returned when an evaluator reply is not a JSON object.
var ErrInvalidRecord = errors.New("invalid evaluation record")

// ErrorCounts tallies the mistakes an evaluator found in one answer.
type ErrorCounts struct {
	Major              int `json:"major_errors"`
	Obvious            int `json:"obvious_errors"`
	Minor              int `json:"minor_errors"`
	AbandonedCitations int `json:"abandoned_law_citations"`
}

// Record is the evaluation of one answer.
type Record struct {
	Scores     map[Dimension]float64 `json:"scores"`
	TotalScore float64               `json:"total_score"`
	Errors     ErrorCounts           `json:"errors"`
	Rationale  string                `json:"rationale"`
}

// Fallback is the record used in place of a failed evaluation: every score
// and count zero, empty rationale.
func Fallback() Record {
	return Record{Scores: zeroScores()}
}

// Clone returns a copy of r that shares no state with it.
func (r Record) Clone() Record {
	out := r
	if r.Scores != nil {
		out.Scores = make(map[Dimension]float64, len(r.Scores))
		for d, v := range r.Scores {
			out.Scores[d] = v
		}
	}
	return out
}

// Score returns the score for d, zero when absent.
func (r Record) Score(d Dimension) float64 {
	return r.Scores[d]
}

func zeroScores() map[Dimension]float64 {
	out := make(map[Dimension]float64, len(Dimensions))
	for _, d := range Dimensions {
		out[d] = 0
	}
	return out
}

type wireRecord struct {
	Scores     map[string]float64 `json:"scores"`
	TotalScore *float64           `json:"total_score"`
	Errors     ErrorCounts        `json:"errors"`
	Rationale  string             `json:"rationale"`
}

// ParseRecord decodes an evaluator reply. Scores are clamped to 0-4 and the
// total to 0-20; a missing total is the sum of the dimension scores.
// Unknown dimension names are ignored.
func ParseRecord(raw []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	rec := Record{
		Scores:    zeroScores(),
		Errors:    clampCounts(w.Errors),
		Rationale: strings.TrimSpace(w.Rationale),
	}
	for name, score := range w.Scores {
		d, ok := lookupDimension(name)
		if !ok {
			continue
		}
		rec.Scores[d] = clamp(score, MaxDimensionScore)
	}

	if w.TotalScore != nil {
		rec.TotalScore = clamp(*w.TotalScore, MaxTotalScore)
	} else {
		var sum float64
		for _, s := range rec.Scores {
			sum += s
		}
		rec.TotalScore = clamp(sum, MaxTotalScore)
	}
	return rec, nil
}

func lookupDimension(name string) (Dimension, bool) {
	name = strings.TrimSpace(name)
	for _, alias := range dimensionAliases {
		if alias.label == name {
			return alias.dim, true
		}
	}
	for _, d := range Dimensions {
		if strings.EqualFold(name, string(d)) {
			return d, true
		}
	}
	return "", false
}

func clamp(v, limit float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > limit:
		return limit
	}
	return v
}

func clampCounts(c ErrorCounts) ErrorCounts {
	nonNeg := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	return ErrorCounts{
		Major:              nonNeg(c.Major),
		Obvious:            nonNeg(c.Obvious),
		Minor:              nonNeg(c.Minor),
		AbandonedCitations: nonNeg(c.AbandonedCitations),
	}
}
