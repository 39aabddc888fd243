package analysis

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"justicebench/internal/batch"
)

var (
	hanRun     = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+`)
	lawCite    = regexp.MustCompile(`第[一二三四五六七八九十\d]+条|《[^》]+》|法[^，。]*`)
	outcomeRes = []*regexp.Regexp{
		regexp.MustCompile(`支持[^，。]*`),
		regexp.MustCompile(`驳回[^，。]*`),
		regexp.MustCompile(`认定[^，。]*`),
		regexp.MustCompile(`判决[^，。]*`),
	}

	legalKeywords = []string{
		"判决", "裁定", "认定", "适用", "依据", "违反", "构成", "责任",
		"赔偿", "损失", "证据", "事实", "法律", "法规", "条款", "规定",
		"支持", "驳回", "撤销", "维持", "变更", "确认", "无效", "有效",
	}
	outcomeKeywords = []string{"支持", "驳回", "认定", "判决", "维持", "撤销", "变更"}
)

// Compare scores an AI decision against the judge's decision. Each metric is
// a percentage rounded to two decimals. Both texts must be non-empty for a
// comparison to be made.
func Compare(aiDecision, judgeDecision string) batch.Similarity {
	if strings.TrimSpace(aiDecision) == "" || strings.TrimSpace(judgeDecision) == "" {
		return batch.Similarity{}
	}
	return batch.Similarity{
		Overall:      percent(jaccard(hanRuns(aiDecision), hanRuns(judgeDecision))),
		Keyword:      percent(jaccard(keyPhrases(aiDecision), keyPhrases(judgeDecision))),
		Result:       percent(outcomeConsistency(aiDecision, judgeDecision)),
		LegalBasis:   percent(legalBasisSimilarity(aiDecision, judgeDecision)),
		Reasoning:    percent(structureSimilarity(aiDecision, judgeDecision)),
		HasReference: true,
	}
}

func percent(ratio float64) float64 {
	return math.Round(ratio*100*100) / 100
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func hanRuns(text string) map[string]struct{} {
	return toSet(hanRun.FindAllString(text, -1))
}

func keyPhrases(text string) map[string]struct{} {
	phrases := make(map[string]struct{})
	for _, kw := range legalKeywords {
		if strings.Contains(text, kw) {
			phrases[kw] = struct{}{}
		}
	}
	for _, re := range outcomeRes {
		for _, m := range re.FindAllString(text, -1) {
			phrases[m] = struct{}{}
		}
	}
	return phrases
}

// outcomeConsistency is 0.8 when both decisions share an outcome keyword,
// 0.3 when both have outcomes but none shared, and 0.5 when either has none.
func outcomeConsistency(ai, judge string) float64 {
	aiOutcomes := make(map[string]struct{})
	judgeOutcomes := make(map[string]struct{})
	for _, kw := range outcomeKeywords {
		if strings.Contains(ai, kw) {
			aiOutcomes[kw] = struct{}{}
		}
		if strings.Contains(judge, kw) {
			judgeOutcomes[kw] = struct{}{}
		}
	}
	if len(aiOutcomes) == 0 || len(judgeOutcomes) == 0 {
		return 0.5
	}
	for kw := range aiOutcomes {
		if _, ok := judgeOutcomes[kw]; ok {
			return 0.8
		}
	}
	return 0.3
}

func legalBasisSimilarity(ai, judge string) float64 {
	aiLaws := toSet(lawCite.FindAllString(ai, -1))
	judgeLaws := toSet(lawCite.FindAllString(judge, -1))
	switch {
	case len(aiLaws) == 0 && len(judgeLaws) == 0:
		return 0.5
	case len(aiLaws) == 0 || len(judgeLaws) == 0:
		return 0.2
	}
	return jaccard(aiLaws, judgeLaws)
}

// structureSimilarity blends the length ratio (weight 0.6) with the
// paragraph count ratio (weight 0.4).
func structureSimilarity(ai, judge string) float64 {
	aiLen := utf8.RuneCountInString(ai)
	judgeLen := utf8.RuneCountInString(judge)
	if aiLen == 0 || judgeLen == 0 {
		return 0
	}
	lengthRatio := ratio(aiLen, judgeLen)

	aiParas := paragraphs(ai)
	judgeParas := paragraphs(judge)
	paragraphRatio := 0.5
	if aiParas > 0 && judgeParas > 0 {
		paragraphRatio = ratio(aiParas, judgeParas)
	}
	return lengthRatio*0.6 + paragraphRatio*0.4
}

func ratio(a, b int) float64 {
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

func paragraphs(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
