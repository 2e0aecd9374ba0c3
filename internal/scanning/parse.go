package scanning

import (
	"strings"
)

// transcribePrompt is shared by the LLM recognizers. The extraction engine
// expects OCR-like output, so the model must not summarize or reformat.
const transcribePrompt = `You are reading a photo or scan of a receipt or invoice.

Transcribe ALL text exactly as printed, top to bottom, one printed line per output line.

Important:
- Keep the original spelling, capitalization, numbers and currency symbols
- Keep item names and their prices on the same line, separated by spaces as printed
- Do not summarize, translate, correct or reorder anything
- Do not add commentary, headings or explanations
- Do not use markdown code blocks
- If there is no readable text, return an empty response`

// parseTranscript strips the wrapping some models add around a transcript
// and reports ErrNoText when nothing is left.
func parseTranscript(text string) (string, error) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		// drop the opening fence and its language tag
		if i := strings.Index(text, "\n"); i != -1 {
			text = text[i+1:]
		} else {
			text = strings.TrimLeft(text, "`")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))

	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
