package trial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/telemetry"
)

const (
	counselTemperature = 0.3
	judgeTemperature   = 0.2

	quickResponseLimit = 500
)

// ServiceSource binds an agent type and system prompt to a completion
// service. agent.Manager implements it.
type ServiceSource interface {
	Service(agentType, systemPrompt string, temperature float64) completion.Service
}

// Counsel argues one side of the case. Strategy only changes the system
// prompt; the calling contract is the same for both sides.
type Counsel struct {
	Name     string
	Side     Side
	Strategy Strategy

	svc     completion.Service
	prompts *prompt.Registry
}

func NewProsecutor(src ServiceSource, prompts *prompt.Registry, s Strategy) *Counsel {
	if !s.Valid() {
		s = StrategyModerate
	}
	return &Counsel{
		Name:     "Prosecutor",
		Side:     SidePlaintiff,
		Strategy: s,
		svc:      src.Service("prosecutor", counselSystemPrompt(SidePlaintiff, s), counselTemperature),
		prompts:  prompts,
	}
}

func NewDefense(src ServiceSource, prompts *prompt.Registry, s Strategy) *Counsel {
	if !s.Valid() {
		s = StrategyModerate
	}
	return &Counsel{
		Name:     "Defense",
		Side:     SideDefense,
		Strategy: s,
		svc:      src.Service("defense", counselSystemPrompt(SideDefense, s), counselTemperature),
		prompts:  prompts,
	}
}

func (c *Counsel) role() string {
	if c.Side == SidePlaintiff {
		return "prosecutor"
	}
	return "defense"
}

// Open produces the opening statement.
func (c *Counsel) Open(ctx context.Context, ev Evidence) (LegalArgument, error) {
	id, summary := prompt.PromptIDs.ProsecutorOpening, prosecutorSummary(ev)
	if c.Side == SideDefense {
		id, summary = prompt.PromptIDs.DefenseOpening, defenseSummary(ev)
	}
	text, err := c.prompts.Render(id, map[string]interface{}{"Summary": summary})
	if err != nil {
		return LegalArgument{}, err
	}
	return c.argue(ctx, text, ArgumentOpening)
}

// Rebut answers one argument of the opposing side.
func (c *Counsel) Rebut(ctx context.Context, opponent LegalArgument, ev Evidence) (LegalArgument, error) {
	id := prompt.PromptIDs.ProsecutorRebuttal
	if c.Side == SideDefense {
		id = prompt.PromptIDs.DefenseRebuttal
	}
	citations := append(append([]string{}, opponent.CitedStatutes...), opponent.CitedPrecedents...)
	text, err := c.prompts.Render(id, map[string]interface{}{
		"Opponent":          opponent.MainArgument,
		"OpponentPoints":    strings.Join(opponent.KeyPoints, ", "),
		"OpponentCitations": strings.Join(citations, ", "),
		"Factors":           factorsText(ev),
	})
	if err != nil {
		return LegalArgument{}, err
	}
	return c.argue(ctx, text, ArgumentRebuttal)
}

func (c *Counsel) argue(ctx context.Context, text string, typ ArgumentType) (LegalArgument, error) {
	ctx, span := telemetry.Tracer("trial").Start(ctx, fmt.Sprintf("trial.%s.%s", c.role(), typ))
	defer span.End()
	span.SetAttributes(attribute.String("strategy", string(c.Strategy)))

	raw, err := c.svc.Generate(ctx, text, completion.ShapeJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LegalArgument{}, fmt.Errorf("%s %s: %w", strings.ToLower(c.Name), typ, err)
	}
	arg := ParseArgument(raw, c.Name, typ)
	arg.Timestamp = time.Now()
	return arg, nil
}

// QuickResponse is a two or three sentence reply, capped at 500 characters.
func (c *Counsel) QuickResponse(ctx context.Context, previous string) (string, error) {
	lead := "The prosecution maintains that"
	if c.Side == SideDefense {
		lead = "The defense asserts that"
	}
	text, err := c.prompts.Render(prompt.PromptIDs.QuickResponse, map[string]interface{}{
		"Previous": truncate(previous, 200),
		"Lead":     lead,
	})
	if err != nil {
		return "", err
	}

	ctx, span := telemetry.Tracer("trial").Start(ctx, fmt.Sprintf("trial.%s.quick_response", c.role()))
	defer span.End()
	out, err := c.svc.Generate(ctx, text, completion.ShapeText)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%s quick response: %w", strings.ToLower(c.Name), err)
	}
	out = strings.TrimSpace(out)
	if len([]rune(out)) > quickResponseLimit {
		out = truncate(out, quickResponseLimit-3) + "..."
	}
	return out, nil
}

// Close summarizes the side's case from the first key point of its last
// three arguments.
func (c *Counsel) Close(ctx context.Context, own []LegalArgument) (string, error) {
	position := "prosecution"
	if c.Side == SideDefense {
		position = "defense"
	}
	recent := own
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var points []string
	for _, arg := range recent {
		if len(arg.KeyPoints) > 0 {
			points = append(points, "- "+arg.KeyPoints[0])
		}
	}
	text, err := c.prompts.Render(prompt.PromptIDs.Closing, map[string]interface{}{
		"Position":  position,
		"KeyPoints": strings.Join(points, "\n"),
	})
	if err != nil {
		return "", err
	}

	ctx, span := telemetry.Tracer("trial").Start(ctx, fmt.Sprintf("trial.%s.closing", c.role()))
	defer span.End()
	out, err := c.svc.Generate(ctx, text, completion.ShapeText)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%s closing: %w", strings.ToLower(c.Name), err)
	}
	return strings.TrimSpace(out), nil
}

// Judge evaluates both sides and renders the verdict.
type Judge struct {
	Name        string
	Temperament Temperament

	svc     completion.Service
	prompts *prompt.Registry
}

func NewJudge(src ServiceSource, prompts *prompt.Registry, t Temperament) *Judge {
	if !t.Valid() {
		t = TemperamentBalanced
	}
	return &Judge{
		Name:        "Judge",
		Temperament: t,
		svc:         src.Service("judge", judgeSystemPrompt(t), judgeTemperature),
		prompts:     prompts,
	}
}

func (j *Judge) Evaluate(ctx context.Context, prosecutor, defense []LegalArgument, ev Evidence) (Verdict, error) {
	ctx, span := telemetry.Tracer("trial").Start(ctx, "trial.judge.verdict")
	defer span.End()
	span.SetAttributes(attribute.String("temperament", string(j.Temperament)))

	text, err := j.prompts.Render(prompt.PromptIDs.JudgeEvaluation, map[string]interface{}{
		"Summary": judgeSummary(prosecutor, defense, ev),
	})
	if err != nil {
		return Verdict{}, err
	}

	raw, err := j.svc.Generate(ctx, text, completion.ShapeJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, fmt.Errorf("judge verdict: %w", err)
	}
	v := ParseVerdict(raw)
	v.Timestamp = time.Now()
	span.SetAttributes(
		attribute.String("winner", v.Winner),
		attribute.Float64("confidence", v.ConfidenceScore),
	)
	return v, nil
}
