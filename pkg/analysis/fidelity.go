package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/mirrorpen/mirrorpen/pkg/textseg"
)

// AlertKind identifies the category of a fidelity alert.
type AlertKind string

const (
	// AlertNumberLoss marks a numeric token present in the draft but absent
	// from the rewritten text.
	AlertNumberLoss AlertKind = "number_loss"

	// AlertAcronymLoss marks an acronym-like token present in the draft but
	// absent from the rewritten text.
	AlertAcronymLoss AlertKind = "acronym_loss"
)

// Alert is one missing factual token, localised to the draft sentence where
// it first appears.
type Alert struct {
	Kind AlertKind

	// Token is the lost token exactly as extracted from the draft.
	Token string

	// SentenceIndex is the index (per [textseg.SplitSentences] over the
	// draft) of the first sentence containing the token, or -1 when no
	// sentence match exists.
	SentenceIndex int

	// Suggestion is the closest surviving token of the same category, when
	// one is similar enough to look like a mutation of the original.
	// Empty otherwise. Only populated for acronym losses.
	Suggestion string
}

// FidelityGuardrails reports whether factual tokens survived the rewrite.
type FidelityGuardrails struct {
	// NumberRetention and AcronymRetention are percentages in [0,100].
	// A category with no draft tokens scores 100.
	NumberRetention  float64
	AcronymRetention float64

	// Alerts lists lost tokens, capped at the configured maximum.
	Alerts []Alert
}

// numberPattern extracts numeric tokens: integers, decimals, percentages,
// scientific notation, and unit-suffixed values. Unit and exponent forms are
// ordered before the bare forms so the longest variant wins.
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?(?:[eE][+-]?\d+|%|‰|(?:\s?(?:km|kg|mg|mm|cm|nm|μm|ms|GHz|MHz|kHz|Hz|GB|MB|KB|TB)\b))?`)

// acronymPattern is a deliberately loose heuristic for acronym-like tokens:
// an uppercase letter followed by letters, digits, '&' or '-', ending in an
// uppercase letter or digit. Precision is a tunable, not a contract — it
// will both over- and under-match on domain text.
var acronymPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&-]*[A-Z0-9]\b`)

const (
	minAcronymLen = 2
	maxAcronymLen = 12
)

// CalculateFidelityGuardrails extracts the distinct numeric and acronym
// tokens of both texts and reports per-category retention plus capped,
// localised alerts for every lost token. Pure and deterministic.
func (a *Analyzer) CalculateFidelityGuardrails(draftText, rewrittenText string) FidelityGuardrails {
	draftNums := extractNumbers(draftText)
	rewrittenNums := extractNumbers(rewrittenText)
	draftAcrs := extractAcronyms(draftText)
	rewrittenAcrs := extractAcronyms(rewrittenText)

	g := FidelityGuardrails{
		NumberRetention:  retentionRate(draftNums, rewrittenNums),
		AcronymRetention: retentionRate(draftAcrs, rewrittenAcrs),
	}

	sentences := textseg.SplitSentences(draftText)

	for _, tok := range missing(draftNums, rewrittenNums) {
		if len(g.Alerts) >= a.cfg.MaxAlerts {
			break
		}
		g.Alerts = append(g.Alerts, Alert{
			Kind:          AlertNumberLoss,
			Token:         tok,
			SentenceIndex: locate(sentences, tok),
		})
	}
	for _, tok := range missing(draftAcrs, rewrittenAcrs) {
		if len(g.Alerts) >= a.cfg.MaxAlerts {
			break
		}
		g.Alerts = append(g.Alerts, Alert{
			Kind:          AlertAcronymLoss,
			Token:         tok,
			SentenceIndex: locate(sentences, tok),
			Suggestion:    a.nearestSurvivor(tok, rewrittenAcrs),
		})
	}
	return g
}

// NumberRetentionRate is a convenience wrapper returning only the numeric
// retention percentage.
func (a *Analyzer) NumberRetentionRate(draftText, rewrittenText string) float64 {
	return retentionRate(extractNumbers(draftText), extractNumbers(rewrittenText))
}

// extractNumbers returns the set of distinct numeric tokens in text.
func extractNumbers(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range numberPattern.FindAllString(text, -1) {
		set[tok] = true
	}
	return set
}

// extractAcronyms returns the set of distinct acronym-like tokens in text.
func extractAcronyms(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range acronymPattern.FindAllString(text, -1) {
		if n := len(tok); n >= minAcronymLen && n <= maxAcronymLen {
			set[tok] = true
		}
	}
	return set
}

// retentionRate is |draft ∩ rewritten| / |draft| as a percentage, with an
// empty draft set scoring 100.
func retentionRate(draft, rewritten map[string]bool) float64 {
	if len(draft) == 0 {
		return 100
	}
	kept := 0
	for tok := range draft {
		if rewritten[tok] {
			kept++
		}
	}
	return float64(kept) * 100 / float64(len(draft))
}

// missing returns the draft tokens absent from rewritten, sorted for
// deterministic alert ordering.
func missing(draft, rewritten map[string]bool) []string {
	var out []string
	for tok := range draft {
		if !rewritten[tok] {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// locate returns the index of the first sentence containing tok, or -1.
func locate(sentences []textseg.Sentence, tok string) int {
	for _, s := range sentences {
		if strings.Contains(s.Text, tok) {
			return s.Index
		}
	}
	return -1
}

// nearestSurvivor finds the surviving acronym most similar to lost by
// Jaro-Winkler, returning it only above the configured threshold.
func (a *Analyzer) nearestSurvivor(lost string, survivors map[string]bool) string {
	best := ""
	bestScore := a.cfg.SuggestionThreshold
	for _, s := range sortedKeys(survivors) {
		if score := matchr.JaroWinkler(lost, s, false); score >= bestScore {
			best, bestScore = s, score
		}
	}
	return best
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
