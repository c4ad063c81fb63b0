package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed library
var library embed.FS

// Defaults returns a registry holding the built-in prompt library.
func Defaults() *Registry {
	r := NewRegistry()
	if err := LoadFS(r, library, "library"); err != nil {
		// The library is compiled in; a parse error here is a build defect.
		panic(fmt.Sprintf("prompt: embedded library: %v", err))
	}
	return r
}

// LoadFromDirectory layers prompt overrides from a directory structure
// onto r. Expected structure:
//
//	baseDir/
//	  prompts/
//	    trial/
//	      judge_evaluation.json
//	    research/
//	      case_analysis.json
func LoadFromDirectory(r *Registry, baseDir string) error {
	promptDir := filepath.Join(baseDir, "prompts")
	if _, err := os.Stat(promptDir); os.IsNotExist(err) {
		return fmt.Errorf("prompts directory not found: %s", promptDir)
	}
	if err := LoadFS(r, os.DirFS(promptDir), "."); err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	return nil
}

// LoadFS recursively loads all .json files under root in fsys.
func LoadFS(r *Registry, fsys fs.FS, root string) error {
	return fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-JSON files
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}

		// Auto-generate ID from path if not specified
		if pt.ID == "" {
			pt.ID = generateIDFromPath(p, root)
		}

		// Auto-detect category from folder name if not specified
		if pt.Category == "" {
			pt.Category = detectCategory(p, root)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}

		return nil
	})
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "library/trial/closing.json" -> "trial.closing"
func generateIDFromPath(p string, root string) string {
	rel := relPath(p, root)
	rel = strings.TrimSuffix(rel, ".json")
	return strings.ReplaceAll(rel, "/", ".")
}

// detectCategory extracts the category from the folder structure
func detectCategory(p string, root string) string {
	parts := strings.Split(relPath(p, root), "/")
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

func relPath(p, root string) string {
	if root == "." || root == "" {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
}

// RenderUserPrompt executes the user prompt template with the given context
func RenderUserPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	if pt.UserPromptTmpl == "" {
		return "", nil
	}

	tmpl, err := template.New(pt.ID).Option("missingkey=zero").Parse(pt.UserPromptTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx.Variables); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
