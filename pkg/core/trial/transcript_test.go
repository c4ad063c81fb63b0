package trial

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatArgument(t *testing.T) {
	out := FormatArgument(LegalArgument{
		Type:         ArgumentOpening,
		MainArgument: "The secrets were taken.",
		KeyPoints:    []string{"timing", "access"},
		Conclusion:   "Grant relief.",
	})
	assert.True(t, strings.HasPrefix(out, "**OPENING ARGUMENT**"))
	assert.True(t, containsAll(out, "• timing", "• access", "**Cited Statutes:**\nNone cited", "**Conclusion:**\nGrant relief."))
}

func TestFormatRebuttal(t *testing.T) {
	out := FormatRebuttal(LegalArgument{
		MainArgument:  "No use was shown.",
		KeyPoints:     []string{"a", "b", "c", "d"},
		CitedStatutes: []string{"DTSA", "UTSA", "CUTSA"},
	}, 2)
	assert.True(t, strings.HasPrefix(out, "**REBUTTAL - Round 2**"))
	assert.Contains(t, out, "- Statutes: DTSA, UTSA\n")
	assert.Contains(t, out, "- Precedents: As previously cited")
	assert.NotContains(t, out, "• d")
}

func TestFormatVerdict(t *testing.T) {
	out := FormatVerdict(Verdict{
		Winner:          WinnerDefendant,
		Rationale:       "Not proven.",
		KeyFactors:      []string{"No NDA", "Weak evidence"},
		ConfidenceScore: 0.85,
	})
	assert.True(t, containsAll(out,
		"The Court finds in favor of the **DEFENDANT**",
		"1. No NDA\n2. Weak evidence",
		"DTSA, UTSA, and cited precedents",
		"**CONFIDENCE IN VERDICT:** 85.0%",
		"cleared of all claims",
	))
}
