package trial

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"legal_simulation/pkg/core/logging"
)

// State of the canonical protocol. Transitions are strictly linear.
type State int

const (
	StateOpening State = iota
	StateRebuttal
	StateVerdict
	StateDone
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateRebuttal:
		return "REBUTTAL"
	case StateVerdict:
		return "VERDICT"
	default:
		return "DONE"
	}
}

// ArgumentRef points at an argument in a Record by side and position.
type ArgumentRef struct {
	Side  Side `json:"side"`
	Index int  `json:"index"`
}

// Step is one argument production, in the order it happened.
type Step struct {
	Side    Side         `json:"side"`
	Type    ArgumentType `json:"type"`
	Replies *ArgumentRef `json:"replies,omitempty"`
}

// Record is everything one trial produced.
type Record struct {
	ProsecutorArguments []LegalArgument `json:"prosecutor_arguments"`
	DefenseArguments    []LegalArgument `json:"defense_arguments"`
	Steps               []Step          `json:"steps"`
	Verdict             Verdict         `json:"verdict"`
}

// Trial runs the fixed four-argument protocol once:
// prosecutor opens, defense opens, prosecutor rebuts the defense opening,
// defense rebuts the prosecutor opening, judge decides.
type Trial struct {
	Prosecutor *Counsel
	Defense    *Counsel
	Judge      *Judge

	state  State
	logger *slog.Logger
}

func New(prosecutor, defense *Counsel, judge *Judge) *Trial {
	return &Trial{
		Prosecutor: prosecutor,
		Defense:    defense,
		Judge:      judge,
		state:      StateOpening,
		logger:     logging.New("trial"),
	}
}

func (t *Trial) State() State {
	return t.state
}

// Run drives the protocol to DONE. A completion failure stops the trial in
// the state where it happened and is returned to the caller.
func (t *Trial) Run(ctx context.Context, ev Evidence) (Record, error) {
	if t.state == StateDone {
		return Record{}, ErrTrialCompleted
	}
	if strings.TrimSpace(ev.CaseDescription) == "" {
		return Record{}, ErrNoEvidence
	}

	var rec Record
	for t.state != StateDone {
		if err := ctx.Err(); err != nil {
			return rec, fmt.Errorf("trial %s: %w", t.state, err)
		}
		t.logger.Debug("trial state", "state", t.state.String())

		switch t.state {
		case StateOpening:
			p, err := t.Prosecutor.Open(ctx, ev)
			if err != nil {
				return rec, err
			}
			rec.add(SidePlaintiff, p, nil)
			d, err := t.Defense.Open(ctx, ev)
			if err != nil {
				return rec, err
			}
			rec.add(SideDefense, d, nil)
			t.state = StateRebuttal

		case StateRebuttal:
			defenseOpening := rec.DefenseArguments[0]
			prosecutorOpening := rec.ProsecutorArguments[0]

			p, err := t.Prosecutor.Rebut(ctx, defenseOpening, ev)
			if err != nil {
				return rec, err
			}
			rec.add(SidePlaintiff, p, &ArgumentRef{Side: SideDefense, Index: 0})
			d, err := t.Defense.Rebut(ctx, prosecutorOpening, ev)
			if err != nil {
				return rec, err
			}
			rec.add(SideDefense, d, &ArgumentRef{Side: SidePlaintiff, Index: 0})
			t.state = StateVerdict

		case StateVerdict:
			v, err := t.Judge.Evaluate(ctx, rec.ProsecutorArguments, rec.DefenseArguments, ev)
			if err != nil {
				return rec, err
			}
			rec.Verdict = v
			t.state = StateDone
		}
	}

	t.logger.Debug("trial complete",
		"winner", rec.Verdict.Winner,
		"confidence", rec.Verdict.ConfidenceScore,
	)
	return rec, nil
}

func (r *Record) add(side Side, arg LegalArgument, replies *ArgumentRef) {
	if side == SidePlaintiff {
		r.ProsecutorArguments = append(r.ProsecutorArguments, arg)
	} else {
		r.DefenseArguments = append(r.DefenseArguments, arg)
	}
	r.Steps = append(r.Steps, Step{Side: side, Type: arg.Type, Replies: replies})
}
