// Package prompt provides the prompt library for completion calls.
// Prompts are JSON files rendered with text/template; the built-in
// library is embedded and a directory of overrides can be layered on top.
package prompt

// PromptTemplate represents a reusable prompt with metadata
type PromptTemplate struct {
	ID             string `json:"id"`                   // Unique identifier (e.g., "trial.judge_evaluation")
	Name           string `json:"name"`                 // Human-readable name
	Category       string `json:"category"`             // Category (trial, research)
	Description    string `json:"description"`          // Description of prompt purpose
	SystemPrompt   string `json:"system_prompt"`        // Optional system prompt
	UserPromptTmpl string `json:"user_prompt_template"` // Go template for user prompt
	Version        string `json:"version"`              // Version for tracking changes
}

// PromptExecutionContext holds runtime values for prompt execution
type PromptExecutionContext struct {
	Variables map[string]interface{} // Key-value pairs for template substitution
}

// NewContext creates a new execution context
func NewContext() *PromptExecutionContext {
	return &PromptExecutionContext{
		Variables: make(map[string]interface{}),
	}
}

// Set adds a variable to the context
func (c *PromptExecutionContext) Set(key string, value interface{}) *PromptExecutionContext {
	c.Variables[key] = value
	return c
}

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	ProsecutorOpening  string
	DefenseOpening     string
	ProsecutorRebuttal string
	DefenseRebuttal    string
	JudgeEvaluation    string
	QuickResponse      string
	Closing            string

	CaseAnalysis        string
	StatuteExtraction   string
	PrecedentExtraction string
}{
	ProsecutorOpening:  "trial.prosecutor_opening",
	DefenseOpening:     "trial.defense_opening",
	ProsecutorRebuttal: "trial.prosecutor_rebuttal",
	DefenseRebuttal:    "trial.defense_rebuttal",
	JudgeEvaluation:    "trial.judge_evaluation",
	QuickResponse:      "trial.quick_response",
	Closing:            "trial.closing",

	CaseAnalysis:        "research.case_analysis",
	StatuteExtraction:   "research.statute_extraction",
	PrecedentExtraction: "research.precedent_extraction",
}
