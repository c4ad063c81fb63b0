package trial

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExtendedOptions configures the extended courtroom mode.
type ExtendedOptions struct {
	Exchanges  int       // rebuttal rounds, default 3
	Procedural bool      // include the judge's procedural messages
	Start      time.Time // transcript clock start, default now
}

// ExtendedRecord is the result of an extended trial: the arguments the judge
// weighed plus the full timestamped transcript.
type ExtendedRecord struct {
	Record
	Messages []Message `json:"messages"`
}

// RunExtended runs the extended mode: openings, several rounds of rebuttals
// with quick replies between rounds, closing statements and the verdict.
// It is a separate mode and never replaces Trial.Run.
func RunExtended(ctx context.Context, prosecutor, defense *Counsel, judge *Judge, ev Evidence, opts ExtendedOptions) (ExtendedRecord, error) {
	if strings.TrimSpace(ev.CaseDescription) == "" {
		return ExtendedRecord{}, ErrNoEvidence
	}
	if opts.Exchanges <= 0 {
		opts.Exchanges = 3
	}
	clock := opts.Start
	if clock.IsZero() {
		clock = time.Now()
	}

	var out ExtendedRecord
	emit := func(agent, content string, advance time.Duration, meta map[string]interface{}) {
		out.Messages = append(out.Messages, Message{
			AgentName: agent,
			Role:      "assistant",
			Content:   content,
			Timestamp: clock,
			Metadata:  meta,
		})
		clock = clock.Add(advance)
	}
	procedural := func(content, phase string, advance time.Duration) {
		if opts.Procedural {
			emit(judge.Name, content, advance, map[string]interface{}{"phase": phase, "type": "procedural"})
		}
	}

	procedural(fmt.Sprintf(`This court is now in session. We are here today to hear the case of %s...

The plaintiff must prove by a preponderance of evidence that trade secret misappropriation occurred under the Defend Trade Secrets Act.
The defense may present arguments and evidence to refute these claims.

Counsel, please present your opening statements.`, truncate(ev.CaseDescription, 100)), "introduction", 5*time.Second)

	pOpen, err := prosecutor.Open(ctx, ev)
	if err != nil {
		return out, err
	}
	out.add(SidePlaintiff, pOpen, nil)
	emit(prosecutor.Name, FormatArgument(pOpen), 8*time.Second, map[string]interface{}{
		"phase":            "opening_statement",
		"type":             "argument",
		"cited_statutes":   pOpen.CitedStatutes,
		"cited_precedents": pOpen.CitedPrecedents,
		"key_points":       pOpen.KeyPoints,
	})

	dOpen, err := defense.Open(ctx, ev)
	if err != nil {
		return out, err
	}
	out.add(SideDefense, dOpen, nil)
	emit(defense.Name, FormatArgument(dOpen), 8*time.Second, map[string]interface{}{
		"phase":      "opening_statement",
		"type":       "argument",
		"key_points": dOpen.KeyPoints,
	})

	for round := 1; round <= opts.Exchanges; round++ {
		phase := fmt.Sprintf("exchange_%d", round)
		if round == 1 {
			procedural("Counsel may now present rebuttals to the opening statements.", phase, 2*time.Second)
		}

		// Prosecutor answers the latest defense argument.
		dIdx := len(out.DefenseArguments) - 1
		pReb, err := prosecutor.Rebut(ctx, out.DefenseArguments[dIdx], ev)
		if err != nil {
			return out, err
		}
		out.add(SidePlaintiff, pReb, &ArgumentRef{Side: SideDefense, Index: dIdx})
		emit(prosecutor.Name, FormatRebuttal(pReb, round), 6*time.Second, map[string]interface{}{
			"phase":            phase,
			"type":             "rebuttal",
			"round":            round,
			"cited_statutes":   pReb.CitedStatutes,
			"cited_precedents": pReb.CitedPrecedents,
		})

		// Defense answers the prosecutor's argument before that rebuttal.
		pIdx := len(out.ProsecutorArguments) - 2
		dReb, err := defense.Rebut(ctx, out.ProsecutorArguments[pIdx], ev)
		if err != nil {
			return out, err
		}
		out.add(SideDefense, dReb, &ArgumentRef{Side: SidePlaintiff, Index: pIdx})
		emit(defense.Name, FormatRebuttal(dReb, round), 6*time.Second, map[string]interface{}{
			"phase":      phase,
			"type":       "counter_rebuttal",
			"round":      round,
			"key_points": dReb.KeyPoints,
		})

		if round < opts.Exchanges {
			quick, err := prosecutor.QuickResponse(ctx, dReb.MainArgument)
			if err != nil {
				return out, err
			}
			emit(prosecutor.Name, quick, 3*time.Second, map[string]interface{}{"phase": phase, "type": "quick_response"})

			counter, err := defense.QuickResponse(ctx, quick)
			if err != nil {
				return out, err
			}
			emit(defense.Name, counter, 3*time.Second, map[string]interface{}{"phase": phase, "type": "quick_counter"})
		}
	}

	procedural("Counsel, please present your closing arguments.", "closing", 2*time.Second)

	pClose, err := prosecutor.Close(ctx, out.ProsecutorArguments)
	if err != nil {
		return out, err
	}
	emit(prosecutor.Name, pClose, 5*time.Second, map[string]interface{}{"phase": "closing", "type": "closing_argument"})

	dClose, err := defense.Close(ctx, out.DefenseArguments)
	if err != nil {
		return out, err
	}
	emit(defense.Name, dClose, 5*time.Second, map[string]interface{}{"phase": "closing", "type": "closing_argument"})

	procedural("The court will now consider all arguments and evidence presented.", "verdict", 3*time.Second)

	v, err := judge.Evaluate(ctx, out.ProsecutorArguments, out.DefenseArguments, ev)
	if err != nil {
		return out, err
	}
	out.Verdict = v
	emit(judge.Name, FormatVerdict(v), 0, map[string]interface{}{
		"phase":             "verdict",
		"type":              "final_verdict",
		"winner":            v.Winner,
		"confidence":        v.ConfidenceScore,
		"key_factors":       v.KeyFactors,
		"cited_authorities": v.CitedAuthorities,
	})
	return out, nil
}
