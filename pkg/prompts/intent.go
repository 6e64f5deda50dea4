// Package prompts builds the LLM prompts used by the mention pipeline.
package prompts

import (
	"fmt"
	"strings"
)

// BuildIntentPrompt creates the intent-classification prompt for one
// mention. It supplies the known-project list so the model can resolve
// loose references ("the wallet app") to tracked handles.
func BuildIntentPrompt(text string, knownHandles []string) string {
	var prompt strings.Builder

	prompt.WriteString("# Mention Intent Classification\n\n")
	prompt.WriteString("Classify what the author of this Farcaster message wants from a roadmap bot.\n\n")

	prompt.WriteString("## Message\n\n")
	prompt.WriteString(fmt.Sprintf("%q\n\n", text))

	prompt.WriteString("## Known Projects\n\n")
	if len(knownHandles) == 0 {
		prompt.WriteString("No projects are tracked yet.\n\n")
	} else {
		for _, h := range knownHandles {
			prompt.WriteString(fmt.Sprintf("- @%s\n", h))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Intents\n\n")
	prompt.WriteString("- `add_feature`: the author wants something added or fixed on a tracked project\n")
	prompt.WriteString("- `create_project`: the author wants the bot to start tracking a new project\n")
	prompt.WriteString("- `unknown`: anything else (greetings, questions, spam, off-topic chatter)\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `intent`: one of \"add_feature\", \"create_project\", \"unknown\"\n")
	prompt.WriteString("- `target_projects`: array of known project handles the message refers to (lowercase, no @, may be empty)\n")
	prompt.WriteString("- `new_project_name`: the proposed name when intent is create_project, otherwise omit\n")
	prompt.WriteString("- `confidence`: 0.0-1.0 (how confident you are in this classification)\n")
	prompt.WriteString("- `reasoning`: one short sentence\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{"intent": "add_feature", "target_projects": ["base"], "confidence": 0.9, "reasoning": "Asks for dark mode on @base."}` + "\n")
	prompt.WriteString("```\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildIntentSystemMessage returns the system message for intent
// classification.
func BuildIntentSystemMessage() string {
	return `You classify social-media mentions of a product roadmap bot. Be conservative: when a message is ambiguous, prefer "unknown" with low confidence over guessing.`
}
