package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ScriptedProvider returns deterministic, role-shaped responses without
// calling any model. The judge weighs the case factors it finds in the
// prompt so Monte Carlo runs still show factor effects offline.
type ScriptedProvider struct {
	Latency time.Duration
	calls   atomic.Int64
}

var _ Provider = (*ScriptedProvider)(nil)

func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// Calls reports how many responses have been generated.
func (p *ScriptedProvider) Calls() int64 {
	return p.calls.Load()
}

func (p *ScriptedProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.calls.Add(1)

	agent := stringOption(options, OptAgent, "")
	if !wantsJSON(options) {
		return scriptedProse(agent, prompt), nil
	}

	var payload interface{}
	switch agent {
	case "prosecutor":
		payload = scriptedArgument("plaintiff", prompt)
	case "defense":
		payload = scriptedArgument("defense", prompt)
	case "judge":
		payload = scriptedVerdict(prompt, systemPrompt)
	case "research":
		payload = scriptedAnalysis(prompt)
	case "statute":
		payload = map[string]interface{}{"statutes": []map[string]interface{}{
			{"title": "Defend Trade Secrets Act", "citation": "18 U.S.C. § 1836", "key_provisions": []string{"Private civil action for misappropriation", "Injunctive relief and damages"}, "remedies": []string{"Injunction", "Actual damages", "Exemplary damages"}, "snippet": "An owner of a trade secret that is misappropriated may bring a civil action."},
			{"title": "Uniform Trade Secrets Act", "citation": "UTSA § 1", "key_provisions": []string{"Definition of trade secret", "Reasonable efforts to maintain secrecy"}, "remedies": []string{"Injunction", "Damages"}, "snippet": "Information deriving independent economic value from not being generally known."},
		}}
	case "precedent":
		payload = map[string]interface{}{"precedents": []map[string]interface{}{
			{"case_name": "Waymo LLC v. Uber Technologies, Inc.", "year": "2018", "citation": "No. C 17-00939 WHA (N.D. Cal.)", "court": "N.D. Cal.", "court_level": "district", "holding": "Departing engineer's download of design files supported preliminary injunction", "rule": "Bulk download before departure is strong circumstantial evidence of misappropriation"},
			{"case_name": "PepsiCo, Inc. v. Redmond", "year": "1995", "citation": "54 F.3d 1262 (7th Cir. 1995)", "court": "7th Cir.", "court_level": "circuit", "holding": "Inevitable disclosure may justify injunction against former employee", "rule": "Threatened misappropriation can be enjoined"},
		}}
	default:
		payload = map[string]interface{}{"response": scriptedProse(agent, prompt)}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("SCRIPTED_MARSHAL_ERROR: %v", err)
	}
	return string(out), nil
}

func (p *ScriptedProvider) AdaptInstructions(raw string) string {
	return raw
}

func scriptedArgument(side, prompt string) map[string]interface{} {
	rebuttal := strings.Contains(strings.ToLower(prompt), "rebuttal")
	if side == "plaintiff" {
		main := "The plaintiff has shown that the defendant acquired confidential technical information through a relationship of trust and used it to compete."
		if rebuttal {
			main = "The defense ignores the documented downloads and the timing of the departure; each element of misappropriation remains satisfied."
		}
		return map[string]interface{}{
			"main_argument":    main,
			"key_points":       []string{"The information derives independent economic value from secrecy", "Reasonable measures protected the information", "The defendant used the information without consent"},
			"cited_statutes":   []string{"18 U.S.C. § 1836 (DTSA)", "UTSA § 1(4)"},
			"cited_precedents": []string{"Waymo LLC v. Uber Technologies, Inc."},
			"conclusion":       "The court should find misappropriation and award injunctive relief and damages.",
		}
	}
	main := "The plaintiff cannot identify a protectable trade secret with particularity, and the evidence of use is speculative."
	if rebuttal {
		main = "Downloading files in the ordinary course of work is not misappropriation; the plaintiff still fails to prove use or disclosure."
	}
	return map[string]interface{}{
		"main_argument":    main,
		"key_points":       []string{"The information is generally known in the industry", "No evidence of actual use", "General skill and knowledge belong to the employee"},
		"cited_statutes":   []string{"18 U.S.C. § 1839(3)"},
		"cited_precedents": []string{"PepsiCo, Inc. v. Redmond"},
		"conclusion":       "The claims should be dismissed for failure of proof.",
	}
}

func scriptedVerdict(prompt, systemPrompt string) map[string]interface{} {
	lower := strings.ToLower(prompt)
	score := 0
	factors := []string{}
	if strings.Contains(lower, "nda present: true") {
		score++
		factors = append(factors, "Existence of a non-disclosure agreement")
	} else {
		score--
		factors = append(factors, "Absence of a contractual confidentiality obligation")
	}
	switch {
	case strings.Contains(lower, "evidence strength: strong"):
		score++
		factors = append(factors, "Strong documentary evidence")
	case strings.Contains(lower, "evidence strength: weak"):
		score--
		factors = append(factors, "Weak evidentiary record")
	}
	switch {
	case strings.Contains(lower, "venue: plaintiff-friendly"):
		score++
	case strings.Contains(lower, "venue: defendant-friendly"):
		score--
	}
	if strings.Contains(lower, "refuses to cooperate") {
		score++
		factors = append(factors, "Defendant's refusal to cooperate with discovery")
	}
	if strings.Contains(lower, "significant time gap") {
		score--
		factors = append(factors, "Time elapsed since departure")
	}

	threshold := 0
	sys := strings.ToLower(systemPrompt)
	switch {
	case strings.Contains(sys, "strict"):
		threshold = 1
	case strings.Contains(sys, "broader equitable"):
		threshold = -1
	}

	winner := "defendant"
	rationale := "The plaintiff has not carried its burden of proving misappropriation by a preponderance of the evidence."
	if score > threshold {
		winner = "plaintiff"
		rationale = "The plaintiff has proven by a preponderance of the evidence that protectable trade secrets were misappropriated."
	}
	margin := score - threshold
	if margin < 0 {
		margin = -margin
	}
	confidence := 0.55 + 0.08*float64(margin)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return map[string]interface{}{
		"winner":            winner,
		"rationale":         rationale,
		"key_factors":       factors,
		"cited_authorities": []string{"18 U.S.C. § 1836", "UTSA § 1"},
		"confidence_score":  confidence,
	}
}

func scriptedAnalysis(prompt string) map[string]interface{} {
	lower := strings.ToLower(prompt)
	hasNDA := strings.Contains(lower, "non-disclosure") || strings.Contains(lower, " nda ") || strings.Contains(lower, " nda.")
	strength := "moderate"
	if strings.Contains(lower, "downloaded") || strings.Contains(lower, "copied") {
		strength = "strong"
	}
	return map[string]interface{}{
		"legal_issues":      []string{"trade secret misappropriation", "breach of confidentiality"},
		"key_facts":         []string{"Employee departed to a competitor", "Confidential files were accessed before departure"},
		"has_nda":           hasNDA,
		"evidence_strength": strength,
		"venue_bias":        "neutral",
		"plaintiff_claims":  []string{"Defendant misappropriated proprietary technical information"},
		"defendant_claims":  []string{"Information was general industry knowledge"},
		"disputed_facts":    []string{"Whether the files were used at the new employer"},
	}
}

func scriptedProse(agent, prompt string) string {
	switch agent {
	case "prosecutor":
		if strings.Contains(prompt, "closing") {
			return "The evidence shows a deliberate taking of confidential information. The defendant's explanations do not survive the timeline. We ask the court to grant injunctive relief and damages."
		}
		return "The prosecution maintains that the record shows deliberate acquisition of confidential material. The defense has offered no innocent explanation for the timing."
	case "defense":
		if strings.Contains(prompt, "closing") {
			return "The plaintiff never identified its secrets with particularity. Suspicion is not proof of use. The claims should be dismissed."
		}
		return "The defense asserts that access in the ordinary course of employment is not misappropriation. The plaintiff still has no evidence of use."
	}
	return "Summary unavailable in scripted mode."
}
