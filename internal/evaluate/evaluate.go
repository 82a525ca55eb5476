// Package evaluate compares an original transcript against its corrected
// version and scores how much each segment improved. It is independent of the
// correction pipeline so externally corrected transcripts can be graded too.
package evaluate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/hokomura/kousei/internal/rules"
	"github.com/hokomura/kousei/internal/segment"
)

// Grade buckets a segment score for reporting.
type Grade string

const (
	GradeExcellent Grade = "excellent" // score >= 0.8
	GradeGood      Grade = "good"      // score >= 0.6
	GradeFair      Grade = "fair"      // score >= 0.4
	GradePoor      Grade = "poor"
)

// GradeFor returns the bucket for a score.
func GradeFor(score float64) Grade {
	switch {
	case score >= 0.8:
		return GradeExcellent
	case score >= 0.6:
		return GradeGood
	case score >= 0.4:
		return GradeFair
	default:
		return GradePoor
	}
}

// SegmentEvaluation holds the comparison result for one segment pair.
type SegmentEvaluation struct {
	ID          int      `json:"id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Corrections []string `json:"corrections"`
	Score       float64  `json:"score"`
	Grade       Grade    `json:"grade"`
	Similarity  float64  `json:"similarity"`
	LengthRatio float64  `json:"length_ratio"`
}

// Summary aggregates segment evaluations for a transcript pair.
type Summary struct {
	Segments           []SegmentEvaluation `json:"segments"`
	AverageScore       float64             `json:"average_score"`
	Distribution       map[Grade]int       `json:"distribution"`
	CorrectionCounts   map[string]int      `json:"correction_counts"`
	CharacterReduction int                 `json:"character_reduction"`
}

// scoreBase is the starting score before any detected correction contributes.
const scoreBase = 0.5

// correctionWeights maps each detected correction category to its score
// contribution. Categories reuse the rule pass names so evaluation output
// lines up with pipeline logs.
var correctionWeights = map[string]float64{
	rules.CategoryTechnicalTerm: 0.2,
	rules.CategoryRepetition:    0.15,
	rules.CategoryEndingFix:     0.15,
	rules.CategoryPunctuation:   0.1,
	rules.CategoryNaturalness:   0.1,
	rules.CategoryFiller:        0.05,
}

// Compare splits both transcripts and evaluates segment pairs positionally.
// Trailing segments present in only one transcript are ignored.
func Compare(original, corrected string) (*Summary, error) {
	origSegs, err := segment.Split(original)
	if err != nil {
		return nil, fmt.Errorf("evaluate: split original: %w", err)
	}
	corrSegs, err := segment.Split(corrected)
	if err != nil {
		return nil, fmt.Errorf("evaluate: split corrected: %w", err)
	}

	n := min(len(origSegs), len(corrSegs))
	summary := &Summary{
		Distribution:     map[Grade]int{},
		CorrectionCounts: map[string]int{},
	}

	var scoreSum float64
	for i := 0; i < n; i++ {
		ev := EvaluateSegment(origSegs[i].OriginalText, corrSegs[i].OriginalText)
		ev.ID = origSegs[i].ID
		ev.StartTime = origSegs[i].StartTime
		ev.EndTime = origSegs[i].EndTime

		summary.Segments = append(summary.Segments, ev)
		summary.Distribution[ev.Grade]++
		for _, c := range ev.Corrections {
			summary.CorrectionCounts[c]++
		}
		scoreSum += ev.Score
	}
	if n > 0 {
		summary.AverageScore = scoreSum / float64(n)
	}
	summary.CharacterReduction = len([]rune(original)) - len([]rune(corrected))

	return summary, nil
}

// EvaluateSegment scores a single original/corrected text pair.
func EvaluateSegment(original, corrected string) SegmentEvaluation {
	corrections := detectCorrections(original, corrected)

	score := scoreBase
	for _, c := range corrections {
		if w, ok := correctionWeights[c]; ok {
			score += w
		} else {
			score += 0.02
		}
	}

	origLen := len([]rune(original))
	corrLen := len([]rune(corrected))
	ratio := float64(corrLen) / float64(max(origLen, 1))
	switch {
	case ratio >= 0.7 && ratio <= 1.3:
		score += 0.1
	case ratio < 0.5:
		// Over-deletion is worse than no correction at all.
		score -= 0.2
	}

	if deteriorated(original, corrected) {
		score -= 0.3
	}

	score = min(max(score, 0.0), 1.0)

	return SegmentEvaluation{
		Corrections: corrections,
		Score:       score,
		Grade:       GradeFor(score),
		Similarity:  matchr.JaroWinkler(original, corrected, false),
		LengthRatio: ratio,
	}
}

var (
	naruDupRe = regexp.MustCompile(`([0-9A-Za-z]+)になる([0-9A-Za-z]+)`)
	punctRe   = regexp.MustCompile(`[。、]`)
)

// hasNaruDuplicate reports whether text contains an adjacent duplication
// joined by になる, the common STT stutter in this corpus.
func hasNaruDuplicate(text string) bool {
	for _, sub := range naruDupRe.FindAllStringSubmatch(text, -1) {
		if sub[1] == sub[2] {
			return true
		}
	}
	return false
}

// detectCorrections infers which correction categories were applied by
// inspecting the differences between original and corrected text.
func detectCorrections(original, corrected string) []string {
	var corrections []string

	if hasNaruDuplicate(original) && !hasNaruDuplicate(corrected) {
		corrections = append(corrections, rules.CategoryRepetition)
	}

	techPairs := [][2]string{
		{"ベルト", "ベルトン"},
		{"ジーピーティー", "GPT"},
		{"ラーム", "Llama"},
		{"エルエム", "LLM"},
		{"松尾研", "松尾研究室"},
	}
	for _, p := range techPairs {
		if strings.Contains(original, p[0]) && strings.Contains(corrected, p[1]) {
			corrections = append(corrections, rules.CategoryTechnicalTerm)
			break
		}
	}

	fillers := []string{"えー", "あのー", "なんか", "えっと", "ちょっと"}
	origFillers, corrFillers := 0, 0
	for _, f := range fillers {
		origFillers += strings.Count(original, f)
		corrFillers += strings.Count(corrected, f)
	}
	if corrFillers < origFillers {
		corrections = append(corrections, rules.CategoryFiller)
	}

	if len(punctRe.FindAllString(corrected, -1)) > len(punctRe.FindAllString(original, -1)) {
		corrections = append(corrections, rules.CategoryPunctuation)
	}

	if (strings.Contains(original, "だったのかな") && strings.Contains(corrected, "でした")) ||
		(strings.Contains(original, "っていう") && strings.Contains(corrected, "という")) {
		corrections = append(corrections, rules.CategoryNaturalness)
	}

	if (strings.Contains(original, "申しす") && strings.Contains(corrected, "申します")) ||
		(strings.Contains(original, "ございす") && strings.Contains(corrected, "ございます")) {
		corrections = append(corrections, rules.CategoryEndingFix)
	}

	return corrections
}

// importantWords must survive correction; losing one signals a broken result.
var importantWords = []string{"講師", "講座", "皆さん", "研究室"}

// deteriorated reports whether the corrected text lost content it should
// have kept.
func deteriorated(original, corrected string) bool {
	if strings.Contains(original, "ありがとうございます") && strings.Contains(corrected, "りがとうございます") &&
		!strings.Contains(corrected, "ありがとうございます") {
		return true
	}
	for _, w := range importantWords {
		if strings.Contains(original, w) && !strings.Contains(corrected, w) {
			return true
		}
	}
	return false
}
