package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/prompts"
)

// minSentenceLength is the shortest sentence, in runes, the fallback
// extractor will consider.
const minSentenceLength = 10

// FeatureExtractor pulls discrete actionable requests out of conversation
// text.
type FeatureExtractor interface {
	// Extract never fails; when the LLM is unavailable it degrades to the
	// deterministic sentence-pattern fallback. The result is uncapped; the
	// caller enforces the per-mention maximum.
	Extract(ctx context.Context, conversationText string) []models.ExtractedFeature
}

type featureExtractor struct {
	gateway llm.Gateway
	logger  *zap.Logger
}

// NewFeatureExtractor creates the extractor.
func NewFeatureExtractor(gateway llm.Gateway, logger *zap.Logger) FeatureExtractor {
	return &featureExtractor{gateway: gateway, logger: logger.Named("extractor")}
}

func (e *featureExtractor) Extract(ctx context.Context, conversationText string) []models.ExtractedFeature {
	features, err := e.extractWithLLM(ctx, conversationText)
	if err != nil {
		e.logger.Warn("LLM extraction failed, using pattern fallback", zap.Error(err))
		return fallbackExtract(conversationText)
	}
	return features
}

func (e *featureExtractor) extractWithLLM(ctx context.Context, conversationText string) ([]models.ExtractedFeature, error) {
	response, err := e.gateway.Complete(ctx, llm.Request{
		Prompt:        prompts.BuildExtractionPrompt(conversationText, models.MaxFeatureTitleLength),
		SystemMessage: prompts.BuildExtractionSystemMessage(),
		Temperature:   0.2,
		MaxTokens:     1024,
	})
	if err != nil {
		return nil, err
	}

	payload, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	// The model answered with valid JSON of the wrong shape: that is not a
	// gateway failure, so coerce to empty instead of falling back.
	var features []models.ExtractedFeature
	if err := json.Unmarshal([]byte(payload), &features); err != nil {
		e.logger.Warn("extraction response was not a JSON array", zap.Error(err))
		return []models.ExtractedFeature{}, nil
	}
	return sanitizeExtracted(features), nil
}

// sanitizeExtracted drops entries without a title and enforces the title
// length cap on features and their sub-items.
func sanitizeExtracted(features []models.ExtractedFeature) []models.ExtractedFeature {
	out := make([]models.ExtractedFeature, 0, len(features))
	for _, f := range features {
		f.Title = truncateTitle(strings.TrimSpace(f.Title))
		if f.Title == "" {
			continue
		}
		f.Description = strings.TrimSpace(f.Description)
		items := make([]models.ExtractedItem, 0, len(f.SubItems))
		for _, item := range f.SubItems {
			item.Title = truncateTitle(strings.TrimSpace(item.Title))
			if item.Title == "" {
				continue
			}
			item.Description = strings.TrimSpace(item.Description)
			items = append(items, item)
		}
		f.SubItems = items
		out = append(out, f)
	}
	return out
}

// extractionTemplate is one sentence phrasing the fallback recognizes. The
// captured fragment becomes the title, prefixed by the normalized verb.
type extractionTemplate struct {
	name string
	re   *regexp.Regexp
	verb string
}

var extractionTemplates = []extractionTemplate{
	{"add_x", regexp.MustCompile(`(?i)\b(?:add|create|implement)\s+(?:a\s+|an\s+|the\s+)?(.+)`), "Add"},
	{"fix_x", regexp.MustCompile(`(?i)\bfix\s+(?:the\s+|a\s+|an\s+)?(.+)`), "Fix"},
	{"broken_x", regexp.MustCompile(`(?i)\b(?:the\s+)?(.+?)\s+(?:doesn't|does\s+not|isn't|is\s+not|won't|stopped)\s+work(?:s|ing)?\b`), "Fix"},
	{"improve_x", regexp.MustCompile(`(?i)\bimprove\s+(?:the\s+|a\s+|an\s+)?(.+)`), "Improve"},
	{"need_x", regexp.MustCompile(`(?i)\bi\s+(?:need|want|wish)\b(?:\s+(?:there\s+(?:was|were)|for|to\s+(?:have|see)))?\s+(?:a\s+|an\s+|the\s+)?(.+)`), "Add"},
	{"support_x", regexp.MustCompile(`(?i)\bsupport\s+for\s+(.+)`), "Add support for"},
	{"ability_x", regexp.MustCompile(`(?i)\bability\s+to\s+(.+)`), "Add ability to"},
}

var actionKeywordRe = regexp.MustCompile(`(?i)\b(?:add|fix|create|make|implement|need|want|should|could)\b`)

// greetingPrefixes mark sentences that are chatter, not requests.
var greetingPrefixes = []string{
	"gm", "gn", "gg", "hi", "hey", "hello", "yo", "sup", "wen",
	"thanks", "thank you", "ty", "tysm", "ok", "okay", "yes", "yeah",
	"yep", "no", "nope", "nah", "lol", "lmao", "haha", "nice", "cool",
	"great", "awesome", "wow", "congrats", "sure",
}

var (
	trailingFillerRe = regexp.MustCompile(`(?i)\s+would\s+be\s+(?:great|nice|cool|awesome|amazing|huge)\b.*$`)
	trailingTargetRe = regexp.MustCompile(`(?i)\s+(?:to|for|on)\s+@[\w.-]+$`)
	spaceRunRe       = regexp.MustCompile(`\s+`)
)

// fallbackExtract is the deterministic extraction path: split into
// sentences, filter chatter, then synthesize one feature per sentence that
// matches a template or contains an action keyword. Titles are deduplicated
// case-insensitively, first occurrence wins.
func fallbackExtract(text string) []models.ExtractedFeature {
	var features []models.ExtractedFeature
	seen := make(map[string]bool)
	for _, sentence := range splitSentences(text) {
		if len([]rune(sentence)) < minSentenceLength || hasGreetingPrefix(sentence) {
			continue
		}
		feature, ok := featureFromSentence(sentence)
		if !ok {
			continue
		}
		key := strings.ToLower(feature.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		features = append(features, feature)
	}
	return features
}

func featureFromSentence(sentence string) (models.ExtractedFeature, bool) {
	for _, tmpl := range extractionTemplates {
		sub := tmpl.re.FindStringSubmatch(sentence)
		if sub == nil {
			continue
		}
		fragment := cleanFragment(sub[1])
		if fragment == "" {
			continue
		}
		return models.ExtractedFeature{
			Title:       truncateTitle(tmpl.verb + " " + fragment),
			Description: sentence,
		}, true
	}

	if actionKeywordRe.MatchString(sentence) {
		title := cleanFragment(sentence)
		if title == "" {
			return models.ExtractedFeature{}, false
		}
		return models.ExtractedFeature{
			Title:       truncateTitle(upperFirst(title)),
			Description: sentence,
		}, true
	}

	return models.ExtractedFeature{}, false
}

// splitSentences breaks text on terminal punctuation and newlines. A
// punctuation run only ends a sentence when followed by whitespace or the
// end of text, so decimals and URLs survive.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
				i++
				b.WriteRune(runes[i])
			}
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}

func hasGreetingPrefix(sentence string) bool {
	s := strings.ToLower(strings.TrimSpace(sentence))
	for _, p := range greetingPrefixes {
		if !strings.HasPrefix(s, p) {
			continue
		}
		if len(s) == len(p) {
			return true
		}
		next := rune(s[len(p)])
		if !unicode.IsLetter(next) && !unicode.IsDigit(next) {
			return true
		}
	}
	return false
}

// cleanFragment tidies a captured fragment for use in a title: collapse
// whitespace, drop trailing punctuation and filler, drop a trailing
// "@handle" target.
func cleanFragment(fragment string) string {
	s := spaceRunRe.ReplaceAllString(strings.TrimSpace(fragment), " ")
	s = trailingFillerRe.ReplaceAllString(s, "")
	s = trailingTargetRe.ReplaceAllString(s, "")
	s = strings.TrimRight(s, ".!?,;: ")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= models.MaxFeatureTitleLength {
		return title
	}
	return string(runes[:models.MaxFeatureTitleLength])
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

var _ FeatureExtractor = (*featureExtractor)(nil)
