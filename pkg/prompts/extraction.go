package prompts

import (
	"fmt"
	"strings"
)

// BuildExtractionPrompt creates the feature-extraction prompt over a
// conversation window. maxTitleLen caps the title the model may produce so
// it fits the datastore column.
func BuildExtractionPrompt(conversationText string, maxTitleLen int) string {
	var prompt strings.Builder

	prompt.WriteString("# Feature Request Extraction\n\n")
	prompt.WriteString("Extract the discrete, actionable product requests from this conversation.\n\n")

	prompt.WriteString("## Conversation\n\n")
	prompt.WriteString(conversationText)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- One element per distinct request. Ignore greetings, thanks, insults, spam, and off-topic chatter.\n")
	prompt.WriteString("- When the author lists alternative ways to implement the same request, keep one parent element and put the variants in `sub_items`.\n")
	prompt.WriteString(fmt.Sprintf("- `title`: short imperative summary, at most %d characters.\n", maxTitleLen))
	prompt.WriteString("- `description`: one or two sentences in the author's own words.\n")
	prompt.WriteString("- Extract nothing rather than inventing requests that are not in the text.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond with a JSON array, possibly empty. Each element:\n")
	prompt.WriteString("- `title`: string\n")
	prompt.WriteString("- `description`: string\n")
	prompt.WriteString("- `sub_items`: array of {`title`, `description`} (usually empty)\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`[{"title": "Add dark mode", "description": "I wish the app had a dark mode for night use.", "sub_items": []}]` + "\n")
	prompt.WriteString("```\n\n")

	prompt.WriteString("Return ONLY the JSON array, no additional text.\n")

	return prompt.String()
}

// BuildExtractionSystemMessage returns the system message for feature
// extraction.
func BuildExtractionSystemMessage() string {
	return `You extract product feature requests from social-media conversations. You output strict JSON and never editorialize.`
}
