package rag

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/qa-mcp/internal/llm"
	"github.com/HendryAvila/qa-mcp/internal/vectorstore"
)

const systemPrompt = `You are a senior QA engineer who writes behaviour-driven development scenarios in Gherkin.
Write scenarios for the feature the user describes. Use the related tickets only as background on how the product behaves.
Rules:
- Each scenario starts with "Scenario:" or "Scenario Outline:" and uses Given/When/Then/And steps.
- Separate scenarios with exactly one blank line. Do not put blank lines inside a scenario.
- Cover the main flow as well as edge and failure cases.
- Output only the scenarios. No headings, commentary or code fences.`

// buildPrompt composes the grounded prompt. hits are listed in the order
// given, which is descending similarity.
func buildPrompt(description string, hits []vectorstore.Result) llm.Prompt {
	var b strings.Builder
	b.WriteString("## Feature\n\n")
	b.WriteString(description)
	b.WriteString("\n\n## Related tickets\n\n")

	if len(hits) == 0 {
		b.WriteString("No related tickets were found.\n")
	}
	for i, hit := range hits {
		fmt.Fprintf(&b, "### %d. %s (similarity %.3f)\n\n%s\n\n", i+1, hit.TicketID, hit.Score, strings.TrimSpace(hit.Text))
	}

	return llm.Prompt{System: systemPrompt, User: strings.TrimRight(b.String(), "\n")}
}

// splitScenarios splits model output into scenario blocks on blank lines.
// Code fence lines are dropped and each block is trimmed.
func splitScenarios(text string) []string {
	var (
		out   []string
		block []string
	)
	flush := func() {
		if s := strings.TrimSpace(strings.Join(block, "\n")); s != "" {
			out = append(out, s)
		}
		block = block[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			continue
		case trimmed == "":
			flush()
		default:
			block = append(block, strings.TrimRight(line, " \t"))
		}
	}
	flush()
	return out
}
