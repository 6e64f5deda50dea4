package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/farcaster"
	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/voice"
)

// processorFixture wires a Processor with real services over in-memory
// repositories, a mock Farcaster client, and a mock LLM gateway. With no
// CompleteFunc configured the gateway returns empty responses, which drives
// every LLM consumer down its deterministic fallback.
type processorFixture struct {
	processor   *Processor
	gateway     *llm.MockGateway
	client      *farcaster.MockClient
	projects    *mockProjectRepo
	features    *mockFeatureRepo
	tags        *mockTagRepo
	mentionLogs *mockMentionLogRepo
}

func newProcessorFixture(seed ...*models.Project) *processorFixture {
	gateway := llm.NewMockGateway()
	client := farcaster.NewMockClient()
	projects := newMockProjectRepo(seed...)
	features := newMockFeatureRepo()
	tags := newMockTagRepo()
	mentionLogs := newMockMentionLogRepo()
	logger := zap.NewNop()

	cfg := ProcessorConfig{
		BotFID:            99,
		BotHandle:         "roadcast",
		DailyMentionLimit: 20,
		MinUserScore:      0.3,
		MaxFeatures:       5,
		MergeThreshold:    0.85,
	}
	deps := ProcessorDeps{
		MentionLogs: mentionLogs,
		Projects:    projects,
		Features:    features,
		Tags:        tags,
		Client:      client,
		Intent:      NewIntentClassifier(NewPatternMatcher("roadcast"), gateway, projects, logger),
		Extractor:   NewFeatureExtractor(gateway, logger),
		Tagger:      NewTagger(gateway, tags, logger),
		Similarity:  NewSimilarityEngine(gateway, features, 0.70, logger),
		Context:     NewContextBuilder(client, 99, "roadcast", 10, logger),
		Setup:       NewProjectSetupService(projects, client, "roadcast", logger),
	}

	return &processorFixture{
		processor:   NewProcessor(cfg, deps, logger),
		gateway:     gateway,
		client:      client,
		projects:    projects,
		features:    features,
		tags:        tags,
		mentionLogs: mentionLogs,
	}
}

// withParent makes every parent lookup return a plain cast by another user.
func (f *processorFixture) withParent(text string) {
	f.client.CastFunc = func(ctx context.Context, id string) (*farcaster.Cast, error) {
		return &farcaster.Cast{
			Hash:   id,
			Text:   text,
			Author: farcaster.User{FID: 500, Username: "alice"},
		}, nil
	}
}

// withBotAlertParent makes the parent the bot's own setup prompt for handle.
func (f *processorFixture) withBotAlertParent(handle string) {
	f.client.CastFunc = func(ctx context.Context, id string) (*farcaster.Cast, error) {
		return &farcaster.Cast{
			Hash:   id,
			Text:   voice.AskSetupDetails(handle, handle),
			Author: farcaster.User{FID: 99, Username: "roadcast"},
		}, nil
	}
}

func mentionEvent(text string) models.MentionEvent {
	return models.MentionEvent{
		CastID:         "0xmention",
		Text:           text,
		AuthorFID:      501,
		AuthorUsername: "carol",
		ParentCastID:   "0xparent",
	}
}

func baseProject() *models.Project {
	return &models.Project{ID: uuid.New(), Name: "Base", Handle: "base", VotingType: models.VotingTypeScore}
}

func (f *processorFixture) requireSingleLog(t *testing.T) *models.BotMentionLog {
	t.Helper()
	require.Len(t, f.mentionLogs.logs, 1, "expected exactly one audit log entry")
	return f.mentionLogs.logs[0]
}

func TestProcessor_KnownProjectFeatureCreation(t *testing.T) {
	project := baseProject()
	f := newProcessorFixture(project)
	f.withParent("talking about release timing")

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	require.Len(t, f.features.created, 1)
	feature := f.features.created[0]
	assert.Equal(t, "Add dark mode", feature.Title)
	assert.Equal(t, project.ID, feature.ProjectID)
	assert.Equal(t, int64(501), feature.SubmitterFID)
	require.NotNil(t, feature.SourceCastID)
	assert.Equal(t, "0xmention", *feature.SourceCastID)
	assert.Equal(t, models.FeatureStatusOpen, feature.Status)

	require.Len(t, f.features.sources, 1)
	require.NotNil(t, f.features.sources[0].TextExcerpt)
	assert.Equal(t, "add dark mode to @base", *f.features.sources[0].TextExcerpt)

	for _, prompt := range f.gateway.Prompts {
		assert.NotContains(t, prompt, "# Mention Intent Classification",
			"a high-confidence pattern match must not reach the intent LLM")
	}

	entry := f.requireSingleLog(t)
	assert.Equal(t, []string{"base"}, entry.DetectedProjects)
	assert.Equal(t, 1, entry.FeaturesCreated)
	assert.Equal(t, 0, entry.FeaturesMerged)
	assert.Nil(t, entry.Error)
	require.NotNil(t, entry.ParentCastID)
	assert.Equal(t, "0xparent", *entry.ParentCastID)

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, "0xmention", f.client.Replies[0].ParentID)
	assert.Equal(t, voice.Summary("base", []string{"Add dark mode"}, nil), f.client.Replies[0].Text)

	require.Len(t, f.client.Casts, 1)
	assert.Equal(t, voice.Announcement("base", []string{"Add dark mode"}), f.client.Casts[0].Text)
	assert.Equal(t, "0xmention", f.client.Casts[0].EmbedCastID)
}

func TestProcessor_CreateProjectAsksForSetupDetails(t *testing.T) {
	f := newProcessorFixture()
	f.withParent("we're building something new")

	f.processor.Process(context.Background(), mentionEvent("create a new project called Castoors"))

	assert.Empty(t, f.projects.created, "nothing is created until the owner replies")
	assert.Zero(t, f.gateway.CompleteCalls)

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.AskSetupDetails("castoors", "castoors"), f.client.Replies[0].Text)
	assert.Contains(t, f.client.Replies[0].Text, voice.ProjectAlertMarker)

	entry := f.requireSingleLog(t)
	assert.Equal(t, []string{"castoors"}, entry.DetectedProjects)
	assert.Equal(t, 0, entry.FeaturesCreated)
	assert.Nil(t, entry.Error)
	assert.Empty(t, f.client.Casts)
}

func TestProcessor_FallbackExtractionWhenLLMDown(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("planning the next release")
	f.gateway.CompleteFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("all providers unavailable")
	}

	f.processor.Process(context.Background(), mentionEvent("@base I wish there was dark mode. Also fix the login bug."))

	require.Len(t, f.features.created, 2)
	assert.Equal(t, "Add dark mode", f.features.created[0].Title)
	assert.Equal(t, "Fix login bug", f.features.created[1].Title)

	entry := f.requireSingleLog(t)
	assert.Equal(t, 2, entry.FeaturesCreated)
	assert.Nil(t, entry.Error)

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.Summary("base", []string{"Add dark mode", "Fix login bug"}, nil), f.client.Replies[0].Text)
}

func TestProcessor_MergesNearDuplicate(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("roadmap updates")
	existingID := uuid.New()
	f.features.similar = []models.SimilarFeature{
		{ID: existingID, Title: "Add dark mode", Description: "Dark theme support for the app", Similarity: 0.92},
	}

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	assert.Empty(t, f.features.created, "a near-duplicate must not create a second row")
	require.Len(t, f.features.sources, 1)
	assert.Equal(t, existingID, f.features.sources[0].FeatureID)
	assert.Equal(t, int64(501), f.features.sources[0].AuthorFID)
	require.Len(t, f.features.appended[existingID], 1)

	entry := f.requireSingleLog(t)
	assert.Equal(t, 0, entry.FeaturesCreated)
	assert.Equal(t, 1, entry.FeaturesMerged)

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.Summary("base", nil, []string{"Add dark mode"}), f.client.Replies[0].Text)
	assert.Contains(t, f.client.Replies[0].Text, "merged with an existing request")
	assert.Empty(t, f.client.Casts, "merged-only runs are not announced")
}

func TestProcessor_CreatesWhenBelowMergeThreshold(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("roadmap updates")
	f.features.similar = []models.SimilarFeature{
		{ID: uuid.New(), Title: "Add dark mode", Similarity: 0.80},
	}

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	require.Len(t, f.features.created, 1, "0.80 similarity is below the 0.85 merge bar")
	assert.InDelta(t, 0.70, f.features.lastThreshold, 0.001,
		"the search threshold is looser than the merge threshold")
	entry := f.requireSingleLog(t)
	assert.Equal(t, 1, entry.FeaturesCreated)
	assert.Equal(t, 0, entry.FeaturesMerged)
}

func TestProcessor_RateLimited(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.mentionLogs.count = 20

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	assert.Empty(t, f.features.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.RateLimited(20), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	require.NotNil(t, entry.Error)
	assert.Equal(t, apperrors.ErrRateLimited.Error(), *entry.Error)
}

func TestProcessor_SetupCompletion(t *testing.T) {
	f := newProcessorFixture()
	f.withBotAlertParent("widget")
	event := models.MentionEvent{
		CastID:         "0xmention",
		Text:           "I'm the owner, token: clanker",
		AuthorFID:      42,
		AuthorUsername: "carol",
		ParentCastID:   "0xparent",
	}

	f.processor.Process(context.Background(), event)

	require.Len(t, f.projects.created, 1)
	project := f.projects.created[0]
	assert.Equal(t, "widget", project.Handle)
	assert.Equal(t, int64(42), project.OwnerFID)
	assert.Equal(t, models.VotingTypeToken, project.VotingType)

	assert.Zero(t, f.gateway.CompleteCalls, "a setup answer never reaches the LLM")

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.SetupSuccess(project.Name, "widget"), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	assert.Equal(t, []string{"widget"}, entry.DetectedProjects)
	assert.Nil(t, entry.Error)
}

func TestProcessor_SetupOwnerNotFound(t *testing.T) {
	f := newProcessorFixture()
	f.withBotAlertParent("widget")

	f.processor.Process(context.Background(), mentionEvent("@ghost is the owner"))

	assert.Empty(t, f.projects.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.OwnerNotFound("@ghost"), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	require.NotNil(t, entry.Error)
	assert.Contains(t, *entry.Error, "failed to look up @ghost")
}

func TestProcessor_BotLoopIsSilent(t *testing.T) {
	t.Run("by fid", func(t *testing.T) {
		f := newProcessorFixture()
		event := mentionEvent("add dark mode to @base")
		event.AuthorFID = 99
		event.AuthorUsername = "roadcast"

		f.processor.Process(context.Background(), event)

		assert.Empty(t, f.mentionLogs.logs)
		assert.Empty(t, f.client.Replies)
		assert.Empty(t, f.client.Casts)
	})

	t.Run("by handle", func(t *testing.T) {
		f := newProcessorFixture()
		event := mentionEvent("add dark mode to @base")
		event.AuthorFID = 0
		event.AuthorUsername = "Roadcast"

		f.processor.Process(context.Background(), event)

		assert.Empty(t, f.mentionLogs.logs)
		assert.Empty(t, f.client.Replies)
	})
}

func TestProcessor_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("release timing")
	event := mentionEvent("add dark mode to @base")

	f.processor.Process(context.Background(), event)
	f.processor.Process(context.Background(), event)

	assert.Len(t, f.features.created, 1, "redelivery must not duplicate the feature")
	assert.Len(t, f.mentionLogs.logs, 1)
	assert.Len(t, f.client.Replies, 1)
	assert.Len(t, f.client.Casts, 1)
}

func TestProcessor_TopLevelMentionNeedsParent(t *testing.T) {
	f := newProcessorFixture(baseProject())
	event := mentionEvent("add dark mode to @base")
	event.ParentCastID = ""

	f.processor.Process(context.Background(), event)

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.NeedParent(), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	require.NotNil(t, entry.Error)
	assert.Equal(t, apperrors.ErrNoParent.Error(), *entry.Error)
	assert.Nil(t, entry.ParentCastID)
}

func TestProcessor_ParentUnreachable(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.client.CastFunc = func(ctx context.Context, id string) (*farcaster.Cast, error) {
		return nil, errors.New("hub timeout")
	}

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.ParentNotFound(), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	require.NotNil(t, entry.Error)
	assert.Contains(t, *entry.Error, "failed to load parent cast")
}

func TestProcessor_LowUserScore(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.client.UserScoreFunc = func(ctx context.Context, fid int64) (float64, error) {
		return 0.1, nil
	}

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	assert.Empty(t, f.features.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.LowTrust(), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	require.NotNil(t, entry.Error)
	assert.Equal(t, apperrors.ErrLowUserScore.Error(), *entry.Error)
}

func TestProcessor_ScoreFetchFailureLetsMentionThrough(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("quiet thread")
	f.client.UserScoreFunc = func(ctx context.Context, fid int64) (float64, error) {
		return 0, errors.New("score API down")
	}

	f.processor.Process(context.Background(), mentionEvent("@base ship it soon"))

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.NoFeatureFound(), f.client.Replies[0].Text,
		"the run should reach extraction instead of stopping at the score gate")
}

func TestProcessor_LowConfidenceClarification(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("quiet thread")

	f.processor.Process(context.Background(), mentionEvent("hello friends"))

	assert.Empty(t, f.features.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.Clarification(), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	assert.Nil(t, entry.Error)
	assert.Equal(t, 0, entry.FeaturesCreated)
}

func TestProcessor_CreateProjectWithoutNameAsksForClarity(t *testing.T) {
	f := newProcessorFixture()
	f.withParent("quiet thread")

	f.processor.Process(context.Background(), mentionEvent("I want to create a project"))

	assert.Empty(t, f.projects.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.Clarification(), f.client.Replies[0].Text)
}

func TestProcessor_UnknownProjectHandle(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("quiet thread")

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @ghost"))

	assert.Empty(t, f.features.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.ProjectNotFound([]string{"ghost"}), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	assert.Equal(t, []string{"ghost"}, entry.DetectedProjects)
	assert.Nil(t, entry.Error)
}

func TestProcessor_AmbiguousProjects(t *testing.T) {
	f := newProcessorFixture(
		baseProject(),
		&models.Project{ID: uuid.New(), Name: "Zora", Handle: "zora", VotingType: models.VotingTypeScore},
	)
	f.withParent("quiet thread")

	f.processor.Process(context.Background(), mentionEvent("@base @zora add dark mode"))

	assert.Empty(t, f.features.created)
	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.AmbiguousProject([]string{"base", "zora"}), f.client.Replies[0].Text)
}

func TestProcessor_HardFailureWritesAuditError(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("release timing")
	f.features.createErr = errors.New("disk full")

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.GenericError(), f.client.Replies[0].Text)

	entry := f.requireSingleLog(t)
	require.NotNil(t, entry.Error)
	assert.Contains(t, *entry.Error, "failed to create feature")
	assert.Equal(t, 0, entry.FeaturesCreated)
	assert.Empty(t, f.client.Casts)
}

func TestProcessor_CapsFeaturesPerMention(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("release timing")
	f.gateway.CompleteFunc = func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "# Feature Request Extraction") {
			var items []string
			for i := 1; i <= 7; i++ {
				items = append(items, fmt.Sprintf(`{"title": "Feature %d", "description": "d%d"}`, i, i))
			}
			return "[" + strings.Join(items, ",") + "]", nil
		}
		return "[]", nil
	}

	f.processor.Process(context.Background(), mentionEvent("add dark mode to @base"))

	assert.Len(t, f.features.created, 5, "extraction output beyond the per-mention cap is dropped")
	entry := f.requireSingleLog(t)
	assert.Equal(t, 5, entry.FeaturesCreated)
}

func TestProcessor_SubItemsCreatedAsChildFeatures(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("release timing")
	f.gateway.CompleteFunc = func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "# Feature Request Extraction") {
			return `[{"title": "Add notifications", "description": "notify users", "sub_items": [
				{"title": "Push notifications", "description": "mobile push"},
				{"title": "Email digests", "description": "daily email"}
			]}]`, nil
		}
		return "[]", nil
	}

	f.processor.Process(context.Background(), mentionEvent("add notifications to @base"))

	require.Len(t, f.features.created, 3)
	parent := f.features.created[0]
	assert.Equal(t, "Add notifications", parent.Title)
	assert.False(t, parent.IsSubItem)

	for _, sub := range f.features.created[1:] {
		assert.True(t, sub.IsSubItem)
		require.NotNil(t, sub.ParentFeatureID)
		assert.Equal(t, parent.ID, *sub.ParentFeatureID)
	}

	entry := f.requireSingleLog(t)
	assert.Equal(t, 3, entry.FeaturesCreated, "sub-items count toward the created total")

	require.Len(t, f.client.Replies, 1)
	assert.Equal(t, voice.Summary("base", []string{"Add notifications"}, nil), f.client.Replies[0].Text,
		"the summary lists top-level features only")
}

func TestProcessor_SourceExcerptTruncated(t *testing.T) {
	f := newProcessorFixture(baseProject())
	f.withParent("release timing")
	event := mentionEvent("add " + strings.Repeat("x", 400) + " to @base")

	f.processor.Process(context.Background(), event)

	require.Len(t, f.features.sources, 1)
	require.NotNil(t, f.features.sources[0].TextExcerpt)
	assert.Len(t, []rune(*f.features.sources[0].TextExcerpt), maxExcerptLength)
}

func TestProcessor_StageOrder(t *testing.T) {
	f := newProcessorFixture()

	var names []string
	for _, st := range f.processor.stages() {
		names = append(names, st.name)
	}

	assert.Equal(t, []string{
		"bot_loop", "dedup", "rate_limit", "spam_score",
		"require_parent", "load_parent", "build_context", "setup_reply",
		"intent", "create_project", "low_confidence", "resolve_projects",
		"extract_features", "process_features",
	}, names)
}
