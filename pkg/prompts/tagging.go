package prompts

import (
	"fmt"
	"strings"
)

// BuildTaggingPrompt creates the tag-selection prompt for one extracted
// feature. The vocabulary lists the predefined tags; the model may propose
// new ones when nothing fits.
func BuildTaggingPrompt(title, description string, vocabulary []string, maxTags int) string {
	var prompt strings.Builder

	prompt.WriteString("# Feature Tagging\n\n")
	prompt.WriteString("Pick tags for this roadmap feature.\n\n")

	prompt.WriteString("## Feature\n\n")
	prompt.WriteString(fmt.Sprintf("Title: %s\n", title))
	prompt.WriteString(fmt.Sprintf("Description: %s\n\n", description))

	prompt.WriteString("## Preferred Vocabulary\n\n")
	prompt.WriteString("Use these when they fit:\n")
	for _, name := range vocabulary {
		prompt.WriteString(fmt.Sprintf("- %s\n", name))
	}
	prompt.WriteString("\nPropose a new single-word lowercase tag only when nothing above fits.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString(fmt.Sprintf("Respond with a JSON array of at most %d lowercase tag names.\n\n", maxTags))
	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`["ui", "mobile"]` + "\n")
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON array, no additional text.\n")

	return prompt.String()
}

// BuildTaggingSystemMessage returns the system message for tagging.
func BuildTaggingSystemMessage() string {
	return `You label product feature requests with short category tags. You output strict JSON.`
}
