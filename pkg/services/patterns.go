package services

import (
	"regexp"
	"strings"

	"github.com/roadcast-labs/roadcast/pkg/models"
)

// Pattern matcher confidence tiers. An explicit phrase match clears the
// classifier's fast-path threshold; everything below it invites the LLM
// to take a second look.
const (
	confidencePatternMatch = 0.75
	confidenceMentionOnly  = 0.50
	confidenceBareCreate   = 0.40
	confidenceNoSignal     = 0.20
)

// handleChars matches a Farcaster username, including ENS-style names
// ("alice.eth") without swallowing trailing sentence punctuation.
const handleChars = `[A-Za-z0-9_](?:[A-Za-z0-9_.-]*[A-Za-z0-9_])?`

var (
	// mentionRe requires a non-word character before the @ so that email
	// addresses do not count as mentions.
	mentionRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])@(` + handleChars + `)`)

	// createNameRe captures the identifier in "create a new project called X"
	// and its phrasing variants.
	createNameRe = regexp.MustCompile(`(?i)\b(?:create|new|make|add|set\s?up|start)\s+(?:a\s+new\s+|a\s+|new\s+)?project\b(?:\s+(?:called|named))?\s+["']?@?([\w-]+)`)

	// bareCreateRe recognizes the same family of phrasings without requiring
	// a name after "project".
	bareCreateRe = regexp.MustCompile(`(?i)\b(?:create|new|make|add|set\s?up|start)\s+(?:a\s+new\s+|a\s+|new\s+)?project\b`)

	nonNameChars = regexp.MustCompile(`[^a-z0-9_-]`)
)

// projectNameStopwords can never be project identifiers when captured after
// "project called/named".
var projectNameStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true,
	"this": true, "that": true, "new": true, "project": true, "board": true,
}

// connectiveFillers are prepositions and fillers that follow "project" in
// sentences that are not naming one ("add a new project for @base").
var connectiveFillers = map[string]bool{
	"to": true, "for": true, "on": true, "in": true, "of": true,
	"with": true, "and": true, "or": true, "is": true, "it": true,
	"so": true, "please": true,
}

// featureRule is one phrasing pattern that targets a project handle.
// Rules are evaluated in order; the first whose handle passes validation
// wins. requireKnown marks rules whose capture is not anchored on an
// @-mention and therefore only counts when the handle is a known project.
type featureRule struct {
	name         string
	re           *regexp.Regexp
	handleGroup  int
	requireKnown bool
}

var featureRules = []featureRule{
	{
		name:        "verb_target",
		re:          regexp.MustCompile(`(?i)\b(?:add|implement|build)\s+(.+?)\s+(?:to|for|on)\s+@(` + handleChars + `)`),
		handleGroup: 2,
	},
	{
		name:         "verb_target_bare",
		re:           regexp.MustCompile(`(?i)\b(?:add|implement|build)\s+(.+?)\s+(?:to|for|on)\s+(` + handleChars + `)`),
		handleGroup:  2,
		requireKnown: true,
	},
	{
		name:        "handle_needs",
		re:          regexp.MustCompile(`(?i)@(` + handleChars + `)\s+(?:should|needs|requires)\b`),
		handleGroup: 1,
	},
	{
		name:        "feature_for",
		re:          regexp.MustCompile(`(?i)\bfeature\s+for\s+@(` + handleChars + `)`),
		handleGroup: 1,
	},
}

// PatternMatcher is the deterministic half of intent classification. It is
// pure string matching: no network, no datastore, safe to call on every
// mention before anything else.
type PatternMatcher struct {
	botHandle string
	stripRe   *regexp.Regexp
}

// NewPatternMatcher builds a matcher that ignores mentions of the bot's own
// handle.
func NewPatternMatcher(botHandle string) *PatternMatcher {
	m := &PatternMatcher{botHandle: strings.ToLower(strings.TrimPrefix(botHandle, "@"))}
	if m.botHandle != "" {
		m.stripRe = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(m.botHandle) + `\b`)
	}
	return m
}

// Match classifies text against the rule table. It always returns a result;
// absence of signal is reported as unknown with low confidence.
func (m *PatternMatcher) Match(text string, knownHandles []string) models.DetectedIntent {
	cleaned := m.stripBotHandle(text)

	known := make(map[string]bool, len(knownHandles))
	for _, h := range knownHandles {
		known[strings.ToLower(strings.TrimPrefix(h, "@"))] = true
	}

	// Explicit create-project phrasing with a usable name.
	if sub := createNameRe.FindStringSubmatch(cleaned); sub != nil {
		if name := normalizeProjectName(sub[1]); name != "" && !projectNameStopwords[name] && !connectiveFillers[name] {
			return models.DetectedIntent{
				Kind:           models.IntentCreateProject,
				NewProjectName: name,
				Confidence:     confidencePatternMatch,
				Reasoning:      "pattern: create project phrase",
			}
		}
	}

	mentions := extractMentions(cleaned)
	mentioned := make(map[string]bool, len(mentions))
	for _, h := range mentions {
		mentioned[h] = true
	}

	// Explicit feature phrasing aimed at a handle.
	for _, rule := range featureRules {
		sub := rule.re.FindStringSubmatch(cleaned)
		if sub == nil {
			continue
		}
		handle := strings.ToLower(sub[rule.handleGroup])
		if rule.requireKnown && !known[handle] {
			continue
		}
		if !known[handle] && !mentioned[handle] {
			continue
		}
		return models.DetectedIntent{
			Kind:           models.IntentAddFeature,
			TargetProjects: []string{handle},
			Confidence:     confidencePatternMatch,
			Reasoning:      "pattern: " + rule.name,
		}
	}

	// A known project was mentioned without an explicit verb pattern.
	var knownMentions []string
	for _, h := range mentions {
		if known[h] {
			knownMentions = append(knownMentions, h)
		}
	}
	if len(knownMentions) > 0 {
		return models.DetectedIntent{
			Kind:           models.IntentAddFeature,
			TargetProjects: knownMentions,
			Confidence:     confidenceMentionOnly,
			Reasoning:      "pattern: known project mentioned",
		}
	}

	// Create-project phrasing with no usable name captured.
	if bareCreateRe.MatchString(cleaned) {
		return models.DetectedIntent{
			Kind:       models.IntentCreateProject,
			Confidence: confidenceBareCreate,
			Reasoning:  "pattern: create project phrase without a name",
		}
	}

	return models.DetectedIntent{
		Kind:       models.IntentUnknown,
		Confidence: confidenceNoSignal,
		Reasoning:  "pattern: no signal",
	}
}

func (m *PatternMatcher) stripBotHandle(text string) string {
	if m.stripRe == nil {
		return text
	}
	return m.stripRe.ReplaceAllString(text, " ")
}

// normalizeProjectName lowercases a captured identifier and strips every
// character that cannot appear in a project handle.
func normalizeProjectName(raw string) string {
	return nonNameChars.ReplaceAllString(strings.ToLower(raw), "")
}

// extractMentions returns the @-mentioned handles in text, lowercased, in
// first-occurrence order, without duplicates.
func extractMentions(text string) []string {
	var handles []string
	seen := make(map[string]bool)
	for _, sub := range mentionRe.FindAllStringSubmatch(text, -1) {
		h := strings.ToLower(sub[1])
		if seen[h] {
			continue
		}
		seen[h] = true
		handles = append(handles, h)
	}
	return handles
}
