package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/prompts"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
)

// Tagger labels a feature with category tags.
type Tagger interface {
	// Tag is best-effort: any failure yields an empty list, logged, and
	// never blocks feature creation.
	Tag(ctx context.Context, title, description string) []uuid.UUID
}

type tagger struct {
	gateway llm.Gateway
	tags    repositories.TagRepository
	logger  *zap.Logger
}

// NewTagger creates the tagger.
func NewTagger(gateway llm.Gateway, tags repositories.TagRepository, logger *zap.Logger) Tagger {
	return &tagger{gateway: gateway, tags: tags, logger: logger.Named("tagger")}
}

func (t *tagger) Tag(ctx context.Context, title, description string) []uuid.UUID {
	names, err := t.suggestNames(ctx, title, description)
	if err != nil {
		t.logger.Warn("tag suggestion failed", zap.Error(err))
		return nil
	}

	var ids []uuid.UUID
	for _, name := range names {
		tag, err := t.tags.GetOrCreate(ctx, name, models.TagTypeCustom)
		if err != nil {
			t.logger.Warn("failed to resolve tag", zap.String("name", name), zap.Error(err))
			continue
		}
		ids = append(ids, tag.ID)
	}
	return ids
}

func (t *tagger) suggestNames(ctx context.Context, title, description string) ([]string, error) {
	response, err := t.gateway.Complete(ctx, llm.Request{
		Prompt:        prompts.BuildTaggingPrompt(title, description, models.PredefinedTagNames, models.MaxTagsPerFeature),
		SystemMessage: prompts.BuildTaggingSystemMessage(),
		Temperature:   0.1,
		MaxTokens:     128,
	})
	if err != nil {
		return nil, err
	}

	payload, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	return normalizeTagNames(raw), nil
}

var predefinedTagSet = func() map[string]bool {
	set := make(map[string]bool, len(models.PredefinedTagNames))
	for _, n := range models.PredefinedTagNames {
		set[n] = true
	}
	return set
}()

// normalizeTagNames lowercases, singularizes, and deduplicates suggested
// names, keeping at most MaxTagsPerFeature. Singularization makes
// "notifications" land on the vocabulary's "notification"; names already in
// the vocabulary are kept verbatim so "analytics" does not degrade to
// "analytic".
func normalizeTagNames(raw []string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, name := range raw {
		n := strings.ToLower(strings.TrimSpace(name))
		n = strings.Trim(n, `#"' `)
		if n == "" {
			continue
		}
		if !predefinedTagSet[n] {
			n = inflection.Singular(n)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
		if len(names) == models.MaxTagsPerFeature {
			break
		}
	}
	return names
}

var _ Tagger = (*tagger)(nil)
