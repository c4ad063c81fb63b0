package trial

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"legal_simulation/pkg/core/completion"
)

const (
	maxKeyPoints = 5

	// Confidence used when the judge gave none.
	structuredDefaultConfidence = 0.5
	heuristicDefaultConfidence  = 0.7
)

var defaultKeyFactors = []string{"Evidence strength", "Legal precedent"}

type argumentPayload struct {
	MainArgument    string   `json:"main_argument"`
	KeyPoints       []string `json:"key_points"`
	CitedStatutes   []string `json:"cited_statutes"`
	CitedPrecedents []string `json:"cited_precedents"`
	Conclusion      string   `json:"conclusion"`
}

// ParseArgument converts a completion into a LegalArgument. It never fails:
// text that yields no structured fields becomes the main argument itself.
func ParseArgument(raw, agentName string, typ ArgumentType) LegalArgument {
	var p argumentPayload
	stage := completion.Decode(raw, &p)

	text := strings.TrimSpace(raw)
	if !stage.Structured() {
		p = argumentPayload{MainArgument: text, Conclusion: lastParagraph(text, 200)}
	}
	if strings.TrimSpace(p.MainArgument) == "" {
		switch {
		case p.Conclusion != "":
			p.MainArgument = p.Conclusion
		default:
			p.MainArgument = text
		}
	}

	keyPoints := nonEmpty(p.KeyPoints)
	if len(keyPoints) == 0 && p.MainArgument != "" {
		keyPoints = []string{truncate(p.MainArgument, 100)}
	}
	if len(keyPoints) > maxKeyPoints {
		keyPoints = keyPoints[:maxKeyPoints]
	}

	return LegalArgument{
		AgentName:       agentName,
		Type:            typ,
		MainArgument:    p.MainArgument,
		CitedStatutes:   nonEmpty(p.CitedStatutes),
		CitedPrecedents: nonEmpty(p.CitedPrecedents),
		KeyPoints:       keyPoints,
		Conclusion:      p.Conclusion,
	}
}

type verdictPayload struct {
	Winner           string          `json:"winner"`
	Rationale        string          `json:"rationale"`
	KeyFactors       []string        `json:"key_factors"`
	CitedAuthorities []string        `json:"cited_authorities"`
	ConfidenceScore  json.RawMessage `json:"confidence_score"`
	Confidence       json.RawMessage `json:"confidence"`
}

// reportedConfidence reads a confidence given as a number or as a numeric
// string such as "0.85", "95" or "85%".
func reportedConfidence(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseVerdict converts the judge's completion into a Verdict. A recognized
// structured winner is authoritative; otherwise the winner is inferred from
// the text with a deterministic keyword heuristic. The confidence score is
// always within [0, 1].
func ParseVerdict(raw string) Verdict {
	var p verdictPayload
	stage := completion.Decode(raw, &p)

	confidence, reported := reportedConfidence(p.ConfidenceScore)
	if !reported {
		confidence, reported = reportedConfidence(p.Confidence)
	}

	var v Verdict
	winner, ok := normalizeWinner(p.Winner)
	if stage.Structured() && ok {
		v.Winner = winner
		v.ConfidenceScore = structuredDefaultConfidence
		if reported {
			v.ConfidenceScore = confidence
		}
	} else {
		v.Winner = heuristicWinner(raw)
		v.ConfidenceScore = heuristicDefaultConfidence
		if reported {
			v.ConfidenceScore = confidence
		} else if c, found := heuristicConfidence(raw); found {
			v.ConfidenceScore = c
		}
	}
	v.ConfidenceScore = ClampConfidence(v.ConfidenceScore)
	v.Outcome = outcomeFor(v.Winner)

	v.Rationale = strings.TrimSpace(p.Rationale)
	if v.Rationale == "" {
		v.Rationale = firstLongParagraph(raw)
	}
	v.KeyFactors = nonEmpty(p.KeyFactors)
	if len(v.KeyFactors) == 0 {
		v.KeyFactors = append([]string(nil), defaultKeyFactors...)
	}
	v.CitedAuthorities = nonEmpty(p.CitedAuthorities)
	return v
}

// ClampConfidence maps a reported confidence into [0, 1]. Values above 1 are
// read as percentages.
func ClampConfidence(c float64) float64 {
	if c != c { // NaN
		return 0
	}
	if c > 1 {
		c = c / 100
	}
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

func normalizeWinner(w string) (string, bool) {
	w = strings.ToLower(strings.TrimSpace(w))
	switch {
	case w == "":
		return "", false
	case strings.Contains(w, "plaintiff"), strings.Contains(w, "prosecut"):
		return WinnerPlaintiff, true
	case strings.Contains(w, "defen"):
		return WinnerDefendant, true
	case strings.Contains(w, "settle"):
		return WinnerSettlement, true
	}
	return "", false
}

func outcomeFor(winner string) Outcome {
	switch winner {
	case WinnerPlaintiff:
		return OutcomePlaintiffWin
	case WinnerSettlement:
		return OutcomeSettlement
	}
	return OutcomeDefenseWin
}

// heuristicWinner picks a side from free text. Explicit holdings win; else
// the side with more indicator hits, with ties going to the defendant.
func heuristicWinner(raw string) string {
	lower := strings.ToLower(raw)
	for _, phrase := range []string{"plaintiff win", "plaintiff prevails", "find for the plaintiff"} {
		if strings.Contains(lower, phrase) {
			return WinnerPlaintiff
		}
	}
	for _, phrase := range []string{"defendant win", "defendant prevails", "find for the defendant"} {
		if strings.Contains(lower, phrase) {
			return WinnerDefendant
		}
	}

	plaintiff := strings.Count(lower, "plaintiff") + strings.Count(lower, "misappropriation proven")
	defendant := strings.Count(lower, "defendant") + strings.Count(lower, "fail to prove") + strings.Count(lower, "insufficient")
	if plaintiff > defendant {
		return WinnerPlaintiff
	}
	return WinnerDefendant
}

var confidenceRe = regexp.MustCompile(`(?:confidence|certain)\D{0,40}?(\d+(?:\.\d+)?)`)

func heuristicConfidence(raw string) (float64, bool) {
	m := confidenceRe.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func firstLongParagraph(raw string) string {
	for _, p := range strings.Split(raw, "\n\n") {
		if p = strings.TrimSpace(p); len(p) > 100 {
			return p
		}
	}
	return truncate(strings.TrimSpace(raw), 500)
}

func lastParagraph(raw string, n int) string {
	paragraphs := strings.Split(raw, "\n\n")
	for i := len(paragraphs) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(paragraphs[i]); p != "" {
			return truncate(p, n)
		}
	}
	return ""
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
