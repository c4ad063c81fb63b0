package completion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type argumentShape struct {
	MainArgument string   `json:"main_argument"`
	KeyPoints    []string `json:"key_points"`
	Conclusion   string   `json:"conclusion"`
}

func TestDecodeCascade(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantStage Stage
		wantMain  string
	}{
		{
			name:      "valid json",
			raw:       `{"main_argument": "Misappropriation is proven.", "key_points": ["NDA signed"], "conclusion": "Grant relief."}`,
			wantStage: StageStrict,
			wantMain:  "Misappropriation is proven.",
		},
		{
			name:      "markdown fenced",
			raw:       "Here is the argument:\n```json\n{\"main_argument\": \"Fenced argument\", \"key_points\": []}\n```",
			wantStage: StageFenced,
			wantMain:  "Fenced argument",
		},
		{
			name:      "missing closing brace",
			raw:       `{"main_argument": "Truncated argument", "key_points": ["one", "two"]`,
			wantStage: StageRepaired,
			wantMain:  "Truncated argument",
		},
		{
			name:      "prose",
			raw:       "The plaintiff has shown that the defendant took the source code.",
			wantStage: StageRaw,
			wantMain:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out argumentShape
			stage := Decode(tt.raw, &out)
			assert.Equal(t, tt.wantStage, stage, "stage %s", stage)
			assert.Equal(t, tt.wantMain, out.MainArgument)
		})
	}
}

func TestDecodeFencedThenRepaired(t *testing.T) {
	raw := "```json\n{\"main_argument\": \"Fenced and cut\", \"key_points\": [\"a\""
	var out argumentShape
	stage := Decode(raw, &out)
	assert.Equal(t, StageRepaired, stage)
	assert.Equal(t, "Fenced and cut", out.MainArgument)
}

func TestDecodeLeadingProseBeforeObject(t *testing.T) {
	raw := `Sure. {"main_argument": "Embedded", "conclusion": "Done"}`
	var out argumentShape
	stage := Decode(raw, &out)
	assert.True(t, stage.Structured())
	assert.Equal(t, "Embedded", out.MainArgument)
	assert.Equal(t, "Done", out.Conclusion)
}

func TestDecodeRejectsNonPointer(t *testing.T) {
	var out argumentShape
	assert.Equal(t, StageRaw, Decode(`{"main_argument": "x"}`, out))
}

func TestExtractPartial(t *testing.T) {
	raw := `
    {
        "main_argument": "SolarTech fails to meet its burden under DTSA and CUTSA.",
        "confidence": 0.8,
        "has_nda": true,
        "key_points": ["Independent development", "No access", "The algorithms in que`

	fields := ExtractPartial(raw)
	require.Contains(t, fields, "main_argument")
	assert.Equal(t, "SolarTech fails to meet its burden under DTSA and CUTSA.", fields["main_argument"])
	assert.Equal(t, 0.8, fields["confidence"])
	assert.Equal(t, true, fields["has_nda"])
	assert.Equal(t, []string{"Independent development", "No access"}, fields["key_points"])
}

func TestExtractPartialTruncatedString(t *testing.T) {
	fields := ExtractPartial(`{"main_argument": "warranting injunc`)
	assert.Equal(t, "warranting injunc", fields["main_argument"])
}

func TestExtractPartialUnescapes(t *testing.T) {
	fields := ExtractPartial(`{"main_argument": "line one\nline \"two\"`)
	assert.Equal(t, "line one\nline \"two\"", fields["main_argument"])
}

func TestServiceFunc(t *testing.T) {
	var seen Shape
	svc := ServiceFunc(func(ctx context.Context, prompt string, shape Shape) (string, error) {
		seen = shape
		return "ok:" + prompt, nil
	})
	out, err := svc.Generate(context.Background(), "p", ShapeJSON)
	require.NoError(t, err)
	assert.Equal(t, "ok:p", out)
	assert.Equal(t, ShapeJSON, seen)
}
