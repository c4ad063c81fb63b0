package trial

import (
	"fmt"
	"strings"

	"legal_simulation/pkg/core/utils"
)

// FormatArgument renders an argument as a markdown courtroom statement.
func FormatArgument(arg LegalArgument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s ARGUMENT**\n\n%s\n\n", strings.ToUpper(string(arg.Type)), arg.MainArgument)
	b.WriteString("**Key Legal Points:**\n")
	for _, p := range arg.KeyPoints {
		fmt.Fprintf(&b, "• %s\n", p)
	}
	fmt.Fprintf(&b, "\n**Cited Statutes:**\n%s\n", joinOr(arg.CitedStatutes, "None cited"))
	fmt.Fprintf(&b, "\n**Cited Precedents:**\n%s\n", joinOr(arg.CitedPrecedents, "None cited"))
	fmt.Fprintf(&b, "\n**Conclusion:**\n%s", arg.Conclusion)
	return checked(b.String(), arg.MainArgument)
}

// FormatRebuttal renders a rebuttal with its round number.
func FormatRebuttal(arg LegalArgument, round int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**REBUTTAL - Round %d**\n\n%s\n\n", round, arg.MainArgument)
	b.WriteString("**Direct Responses to Opposing Arguments:**\n")
	for _, p := range firstStrings(arg.KeyPoints, 3) {
		fmt.Fprintf(&b, "• %s\n", p)
	}
	b.WriteString("\n**Legal Authority Supporting Our Position:**\n")
	fmt.Fprintf(&b, "- Statutes: %s\n", joinOr(firstStrings(arg.CitedStatutes, 2), "See opening statement"))
	fmt.Fprintf(&b, "- Precedents: %s\n", joinOr(firstStrings(arg.CitedPrecedents, 2), "As previously cited"))
	fmt.Fprintf(&b, "\n**Summary:**\n%s", arg.Conclusion)
	return checked(b.String(), arg.MainArgument)
}

// FormatVerdict renders the final judgment.
func FormatVerdict(v Verdict) string {
	var b strings.Builder
	b.WriteString("**FINAL VERDICT**\n\n")
	b.WriteString("This Court, having carefully considered all arguments, evidence, and applicable law, hereby renders the following verdict:\n\n")
	fmt.Fprintf(&b, "**DECISION:** The Court finds in favor of the **%s**.\n\n", strings.ToUpper(v.Winner))
	fmt.Fprintf(&b, "**RATIONALE:**\n%s\n\n", v.Rationale)
	b.WriteString("**KEY FACTORS IN THIS DECISION:**\n")
	for i, f := range v.KeyFactors {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	fmt.Fprintf(&b, "\n**LEGAL AUTHORITIES RELIED UPON:**\n%s\n\n", joinOr(v.CitedAuthorities, "DTSA, UTSA, and cited precedents"))
	fmt.Fprintf(&b, "**CONFIDENCE IN VERDICT:** %.1f%%\n\n", v.ConfidenceScore*100)
	b.WriteString("**CONCLUSION:**\n")
	b.WriteString("Based on the preponderance of evidence standard and the arguments presented, this Court's decision is final.\n")
	if v.Winner == WinnerPlaintiff {
		b.WriteString("The plaintiff is entitled to appropriate remedies under the DTSA.")
	} else {
		b.WriteString("The defendant is cleared of all claims of trade secret misappropriation.")
	}
	b.WriteString("\n\nSo ordered.")
	return checked(b.String(), v.Rationale)
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

// checked falls back to plain text when the rendered document does not
// parse into any markdown blocks.
func checked(doc, plain string) string {
	if utils.ValidateMarkdown(doc) {
		return doc
	}
	return plain
}
