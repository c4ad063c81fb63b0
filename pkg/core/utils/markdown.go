package utils

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is one fenced block found in a markdown document.
type CodeBlock struct {
	Language string
	Content  string
}

// CleanMarkdown strips conversational filler and outer markdown code blocks.
// It ensures the output is pure Markdown ready for rendering.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```markdown") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```markdown")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	} else if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") && len(cleaned) >= 6 {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	return cleaned
}

// ExtractCodeBlocks returns the fenced code blocks of a markdown document in
// document order. An unterminated fence runs to the end of the input, which
// is what a truncated model response looks like.
func ExtractCodeBlocks(input string) []CodeBlock {
	source := []byte(input)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var sb strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fenced.Language(source)),
			Content:  sb.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// StripJSONFence returns the content of the first json (or untagged) fenced
// block. ok is false when the input has no such block.
func StripJSONFence(input string) (string, bool) {
	for _, b := range ExtractCodeBlocks(input) {
		lang := strings.ToLower(b.Language)
		if lang == "json" || lang == "" {
			return strings.TrimSpace(b.Content), true
		}
	}
	return "", false
}

// ValidateMarkdown checks if the string is valid Markdown using Goldmark.
// Goldmark is very permissive, so this only rejects documents with no content.
func ValidateMarkdown(input string) bool {
	source := []byte(input)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))
	return doc != nil && doc.HasChildren()
}
