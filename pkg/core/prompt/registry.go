package prompt

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds loaded prompts. Construct one per process with Defaults
// or NewRegistry and pass it to the components that render prompts.
type Registry struct {
	prompts map[string]*PromptTemplate
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{prompts: make(map[string]*PromptTemplate)}
}

// Register adds a prompt template to the registry
func (r *Registry) Register(pt *PromptTemplate) error {
	if pt.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prompts[pt.ID] = pt
	return nil
}

// GetPrompt retrieves a prompt by ID
func (r *Registry) GetPrompt(id string) (*PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.prompts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", id)
}

// GetSystemPrompt is a convenience method to get only the system prompt string
func (r *Registry) GetSystemPrompt(id string) (string, error) {
	pt, err := r.GetPrompt(id)
	if err != nil {
		return "", err
	}
	return pt.SystemPrompt, nil
}

// Render looks up id and executes its user prompt template with vars.
func (r *Registry) Render(id string, vars map[string]interface{}) (string, error) {
	pt, err := r.GetPrompt(id)
	if err != nil {
		return "", err
	}
	return RenderUserPrompt(pt, &PromptExecutionContext{Variables: vars})
}

// ListPrompts returns all registered prompt IDs, sorted
func (r *Registry) ListPrompts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListByCategory returns all prompts in a specific category
func (r *Registry) ListByCategory(category string) []*PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*PromptTemplate
	for _, pt := range r.prompts {
		if pt.Category == category {
			result = append(result, pt)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Count returns the number of registered prompts
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}
