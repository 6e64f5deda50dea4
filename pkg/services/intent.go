package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/prompts"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
)

// fastPathConfidence is the pattern confidence at or above which the
// classifier returns without consulting the LLM.
const fastPathConfidence = 0.7

// IntentClassifier decides what a mention wants from the bot.
type IntentClassifier interface {
	// Classify never fails; every LLM problem degrades to the deterministic
	// pattern result.
	Classify(ctx context.Context, text string) models.DetectedIntent
}

type intentClassifier struct {
	matcher  *PatternMatcher
	gateway  llm.Gateway
	projects repositories.ProjectRepository
	logger   *zap.Logger
}

// NewIntentClassifier creates the classifier. The pattern matcher runs
// first on every call; the gateway is only consulted for low-confidence
// pattern results.
func NewIntentClassifier(matcher *PatternMatcher, gateway llm.Gateway, projects repositories.ProjectRepository, logger *zap.Logger) IntentClassifier {
	return &intentClassifier{
		matcher:  matcher,
		gateway:  gateway,
		projects: projects,
		logger:   logger.Named("intent"),
	}
}

func (c *intentClassifier) Classify(ctx context.Context, text string) models.DetectedIntent {
	handles, err := c.projects.ListHandles(ctx)
	if err != nil {
		c.logger.Warn("failed to list project handles", zap.Error(err))
		handles = nil
	}

	patternResult := c.matcher.Match(text, handles)
	if patternResult.Confidence >= fastPathConfidence {
		return patternResult
	}

	detected, err := c.classifyWithLLM(ctx, text, handles)
	if err != nil {
		c.logger.Warn("LLM intent classification failed, using pattern result",
			zap.Error(err),
			zap.Float64("pattern_confidence", patternResult.Confidence))
		return patternResult
	}
	return detected
}

func (c *intentClassifier) classifyWithLLM(ctx context.Context, text string, handles []string) (models.DetectedIntent, error) {
	response, err := c.gateway.Complete(ctx, llm.Request{
		Prompt:        prompts.BuildIntentPrompt(text, handles),
		SystemMessage: prompts.BuildIntentSystemMessage(),
		Temperature:   0.1,
		MaxTokens:     512,
	})
	if err != nil {
		return models.DetectedIntent{}, err
	}

	detected, err := llm.ParseJSONResponse[models.DetectedIntent](response)
	if err != nil {
		return models.DetectedIntent{}, err
	}
	return clampIntent(detected), nil
}

// clampIntent fills defaults for fields the model omitted or mangled so
// downstream code never sees an out-of-range result.
func clampIntent(d models.DetectedIntent) models.DetectedIntent {
	switch d.Kind {
	case models.IntentCreateProject, models.IntentAddFeature, models.IntentUnknown:
	default:
		d.Kind = models.IntentUnknown
	}
	if d.Confidence <= 0 {
		d.Confidence = 0.5
	} else if d.Confidence > 1 {
		d.Confidence = 1
	}
	if d.TargetProjects == nil {
		d.TargetProjects = []string{}
	}
	for i, h := range d.TargetProjects {
		d.TargetProjects[i] = strings.ToLower(strings.TrimPrefix(h, "@"))
	}
	d.NewProjectName = normalizeProjectName(d.NewProjectName)
	return d
}

var _ IntentClassifier = (*intentClassifier)(nil)
