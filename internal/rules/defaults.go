package rules

import "regexp"

// Built-in rule tables for Japanese LLM-lecture transcripts. Each table is an
// ordered slice; rules within a pass run in table order.

// technicalTermRules fix mis-heard vocabulary, names, and organisations.
var technicalTermRules = []Rule{
	// ベルト is only expanded when not already followed by ン.
	{Pattern: regexp.MustCompile(`ベルト($|[^ン])`), Replacement: "ベルトン$1"},
	{Pattern: regexp.MustCompile(`ベル ト`), Replacement: "ベルトン"},
	{Pattern: regexp.MustCompile(`ジーピーティー`), Replacement: "GPT"},
	{Pattern: regexp.MustCompile(`ラーム`), Replacement: "Llama"},
	{Pattern: regexp.MustCompile(`エルエム`), Replacement: "LLM"},
	// 松尾研 expands unless 究 follows, so 松尾研究室 stays untouched.
	{Pattern: regexp.MustCompile(`松尾研($|[^究])`), Replacement: "松尾研究室$1"},
	{Pattern: regexp.MustCompile(`とも配も`), Replacement: "ともかく"},
	{Pattern: regexp.MustCompile(`編集BERT`), Replacement: "BERT"},
	{Pattern: regexp.MustCompile(`あの後単語`), Replacement: "後ほど"},
}

// endingFixRules repair truncated polite sentence endings.
var endingFixRules = []Rule{
	{Pattern: regexp.MustCompile(`申しす(\s|$)`), Replacement: "申します$1"},
	{Pattern: regexp.MustCompile(`ございす(\s|$)`), Replacement: "ございます$1"},
	{Pattern: regexp.MustCompile(`思いす(\s|$)`), Replacement: "思います$1"},
	{Pattern: regexp.MustCompile(`りがとうございす`), Replacement: "ありがとうございます"},
}

// repetitionRules collapse STT stutter artifacts such as the "Day2になるDay2"
// pattern. The duplicate comparison needs a backreference, which Go's regexp
// does not support, so these run as Transform functions.
var repetitionRules = []Rule{
	{Transform: collapseNaruRepetition},
	{Transform: collapseAdjacentRepetition},
}

var naruDupRe = regexp.MustCompile(`([0-9A-Za-z]+)になる([0-9A-Za-z]+)`)

// collapseNaruRepetition turns "XになるX" into "X" when both sides are the
// same Latin/digit token.
func collapseNaruRepetition(text string) (string, bool) {
	changed := false
	out := naruDupRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := naruDupRe.FindStringSubmatch(m)
		if sub[1] == sub[2] {
			changed = true
			return sub[1]
		}
		return m
	})
	return out, changed
}

var adjacentDupRe = regexp.MustCompile(`([0-9A-Za-z]+)\s+([0-9A-Za-z]+)(\s)`)

// collapseAdjacentRepetition turns "X X " into "X " for identical
// whitespace-separated Latin/digit tokens.
func collapseAdjacentRepetition(text string) (string, bool) {
	changed := false
	out := adjacentDupRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := adjacentDupRe.FindStringSubmatch(m)
		if sub[1] == sub[2] {
			changed = true
			return sub[1] + sub[3]
		}
		return m
	})
	return out, changed
}

// fillerRules remove spoken-language fillers in conservative mode.
var fillerRules = []Rule{
	{Pattern: regexp.MustCompile(`\s*えー+\s*`), Replacement: " "},
	{Pattern: regexp.MustCompile(`\s*あのー+\s*`), Replacement: " "},
	{Pattern: regexp.MustCompile(`なんか\s+`), Replacement: ""},
}

// aggressiveFillerRules additionally strip hedge words that conservative mode
// keeps because they occasionally carry meaning.
var aggressiveFillerRules = []Rule{
	{Pattern: regexp.MustCompile(`えっと[、\s]+`), Replacement: " "},
	{Pattern: regexp.MustCompile(`ちょっと[、\s]+`), Replacement: ""},
	{Pattern: regexp.MustCompile(`まあ[、\s]+`), Replacement: ""},
}

// naturalnessRules rewrite spoken phrasing into written style.
var naturalnessRules = []Rule{
	{Pattern: regexp.MustCompile(`だったのかな[、。]`), Replacement: "でした。"},
	{Pattern: regexp.MustCompile(`あるのかなと思`), Replacement: "あると思"},
	{Pattern: regexp.MustCompile(`かなというふう`), Replacement: "かと思"},
	{Pattern: regexp.MustCompile(`っていう`), Replacement: "という"},
	{Pattern: regexp.MustCompile(`だったりとか`), Replacement: "や"},
}

// punctuationRules insert sentence breaks after polite endings that run
// straight into the next clause. Must run after filler removal and the
// naturalness pass.
var punctuationRules = []Rule{
	{Pattern: regexp.MustCompile(`申します([あ-んA-Za-z])`), Replacement: "申します。$1"},
	{Pattern: regexp.MustCompile(`ございます([あ-んA-Za-z])`), Replacement: "ございます。$1"},
	{Pattern: regexp.MustCompile(`思います([あ-んA-Za-z])`), Replacement: "思います。$1"},
}

// termRule compiles one custom term correction. When the replacement extends
// the matched term (松尾研 → 松尾研究室), the pattern refuses to match text
// that is already in the corrected form.
func termRule(from, to string) Rule {
	if len(to) > len(from) && to[:len(from)] == from {
		next := []rune(to[len(from):])[0]
		return Rule{
			Pattern:     regexp.MustCompile(regexp.QuoteMeta(from) + `($|[^` + regexp.QuoteMeta(string(next)) + `])`),
			Replacement: to + "$1",
		}
	}
	return Rule{
		Pattern:     regexp.MustCompile(regexp.QuoteMeta(from)),
		Replacement: to,
	}
}
