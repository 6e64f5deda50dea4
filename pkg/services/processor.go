package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/audit"
	"github.com/roadcast-labs/roadcast/pkg/farcaster"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
	"github.com/roadcast-labs/roadcast/pkg/voice"
)

// maxExcerptLength caps the cast text stored on a FeatureSource.
const maxExcerptLength = 280

// rateLimitWindow is the rolling window for the per-author mention limit.
const rateLimitWindow = 24 * time.Hour

// ProcessorConfig carries the policy knobs the processor enforces.
type ProcessorConfig struct {
	BotFID            int64
	BotHandle         string
	DailyMentionLimit int
	MinUserScore      float64
	MaxFeatures       int
	MergeThreshold    float64
}

// ProcessorDeps bundles the processor's collaborators. Security may be nil.
type ProcessorDeps struct {
	MentionLogs repositories.MentionLogRepository
	Projects    repositories.ProjectRepository
	Features    repositories.FeatureRepository
	Tags        repositories.TagRepository
	Client      farcaster.Client
	Intent      IntentClassifier
	Extractor   FeatureExtractor
	Tagger      Tagger
	Similarity  SimilarityEngine
	Context     ContextBuilder
	Setup       ProjectSetupService
	Security    *audit.SecurityAuditor
}

// Processor runs one mention through the pipeline: policy gates, context
// reconstruction, intent branching, extraction, and per-feature
// merge-or-create. It is stateless between runs; two deliveries may be
// processed concurrently and rely on the datastore's unique constraints
// for cross-run consistency.
type Processor struct {
	cfg    ProcessorConfig
	deps   ProcessorDeps
	logger *zap.Logger
}

// NewProcessor creates the processor.
func NewProcessor(cfg ProcessorConfig, deps ProcessorDeps, logger *zap.Logger) *Processor {
	cfg.BotHandle = strings.ToLower(strings.TrimPrefix(cfg.BotHandle, "@"))
	return &Processor{cfg: cfg, deps: deps, logger: logger.Named("processor")}
}

// mentionRun is the mutable state threaded through the stages for one
// mention.
type mentionRun struct {
	event    models.MentionEvent
	parent   *farcaster.Cast
	conv     models.ConversationContext
	intent   models.DetectedIntent
	project  *models.Project
	features []models.ExtractedFeature

	detectedProjects []string
	createdTitles    []string
	mergedTitles     []string
	createdCount     int
	mergedCount      int
}

// stageOutcome terminates the run. A nil outcome means continue with the
// next stage.
type stageOutcome struct {
	reply    string // best-effort reply to the triggering cast, may be empty
	announce string // optional standalone announcement cast
	silent   bool   // skip the audit log entry
	err      error  // recorded on the audit log entry
}

type stage struct {
	name string
	run  func(ctx context.Context, r *mentionRun) *stageOutcome
}

func (p *Processor) stages() []stage {
	return []stage{
		{"bot_loop", p.stageBotLoop},
		{"dedup", p.stageDedup},
		{"rate_limit", p.stageRateLimit},
		{"spam_score", p.stageSpamScore},
		{"require_parent", p.stageRequireParent},
		{"load_parent", p.stageLoadParent},
		{"build_context", p.stageBuildContext},
		{"setup_reply", p.stageSetupReply},
		{"intent", p.stageIntent},
		{"create_project", p.stageCreateProject},
		{"low_confidence", p.stageLowConfidence},
		{"resolve_projects", p.stageResolveProjects},
		{"extract_features", p.stageExtractFeatures},
		{"process_features", p.stageProcessFeatures},
	}
}

// Process never returns an error: every outcome is absorbed into one audit
// log entry (except the silent paths) and at most one reply.
func (p *Processor) Process(ctx context.Context, event models.MentionEvent) {
	run := &mentionRun{event: event}
	logger := p.logger.With(
		zap.String("cast_id", event.CastID),
		zap.Int64("author_fid", event.AuthorFID))

	name, outcome := p.execute(ctx, run)
	p.finish(ctx, logger.With(zap.String("stage", name)), run, outcome)
}

func (p *Processor) execute(ctx context.Context, r *mentionRun) (string, *stageOutcome) {
	for _, st := range p.stages() {
		if outcome := st.run(ctx, r); outcome != nil {
			return st.name, outcome
		}
	}
	// Unreachable: the final stage always terminates.
	return "end", &stageOutcome{silent: true}
}

func (p *Processor) finish(ctx context.Context, logger *zap.Logger, r *mentionRun, o *stageOutcome) {
	if o.err != nil {
		logger.Warn("mention processing terminated", zap.Error(o.err))
	} else if !o.silent {
		logger.Info("mention processed",
			zap.Int("created", r.createdCount),
			zap.Int("merged", r.mergedCount),
			zap.Strings("projects", r.detectedProjects))
	}

	if !o.silent {
		p.writeAuditLog(ctx, logger, r, o)
	}
	if o.reply != "" {
		if err := p.deps.Client.PostReply(ctx, r.event.CastID, o.reply); err != nil {
			logger.Error("failed to post reply", zap.Error(err))
		}
	}
	if o.announce != "" {
		if err := p.deps.Client.PostCast(ctx, o.announce, r.event.CastID); err != nil {
			logger.Error("failed to post announcement", zap.Error(err))
		}
	}
}

func (p *Processor) writeAuditLog(ctx context.Context, logger *zap.Logger, r *mentionRun, o *stageOutcome) {
	entry := &models.BotMentionLog{
		CastID:           r.event.CastID,
		AuthorFID:        r.event.AuthorFID,
		DetectedProjects: r.detectedProjects,
		FeaturesCreated:  r.createdCount,
		FeaturesMerged:   r.mergedCount,
	}
	if r.event.ParentCastID != "" {
		parentID := r.event.ParentCastID
		entry.ParentCastID = &parentID
	}
	if o.err != nil {
		msg := o.err.Error()
		entry.Error = &msg
	}

	if err := p.deps.MentionLogs.Create(ctx, entry); err != nil {
		// A conflict means a concurrent delivery already logged this cast.
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Debug("audit log entry already exists")
			return
		}
		logger.Error("failed to write audit log entry", zap.Error(err))
	}
}

// stageBotLoop drops the bot's own casts before anything else, silently:
// no log entry, no reply, or the bot would converse with itself forever.
func (p *Processor) stageBotLoop(ctx context.Context, r *mentionRun) *stageOutcome {
	if p.cfg.BotFID != 0 && r.event.AuthorFID == p.cfg.BotFID {
		return &stageOutcome{silent: true}
	}
	if p.cfg.BotHandle != "" && strings.EqualFold(r.event.AuthorUsername, p.cfg.BotHandle) {
		return &stageOutcome{silent: true}
	}
	return nil
}

// stageDedup skips casts that already have a log entry. Silent: the first
// run logged it, and redelivery must not double-write.
func (p *Processor) stageDedup(ctx context.Context, r *mentionRun) *stageOutcome {
	exists, err := p.deps.MentionLogs.ExistsByCastID(ctx, r.event.CastID)
	if err != nil {
		// Fail open; the unique constraint on the log write still guards.
		p.logger.Warn("dedup check failed", zap.String("cast_id", r.event.CastID), zap.Error(err))
		return nil
	}
	if exists {
		return &stageOutcome{silent: true}
	}
	return nil
}

func (p *Processor) stageRateLimit(ctx context.Context, r *mentionRun) *stageOutcome {
	since := time.Now().Add(-rateLimitWindow)
	count, err := p.deps.MentionLogs.CountByAuthorSince(ctx, r.event.AuthorFID, since)
	if err != nil {
		p.logger.Warn("rate limit check failed", zap.Int64("author_fid", r.event.AuthorFID), zap.Error(err))
		return nil
	}
	if count >= p.cfg.DailyMentionLimit {
		p.deps.Security.LogRateLimitExceeded(r.event.CastID, r.event.AuthorFID, count)
		return &stageOutcome{
			reply: voice.RateLimited(p.cfg.DailyMentionLimit),
			err:   apperrors.ErrRateLimited,
		}
	}
	return nil
}

// stageSpamScore gates on the author's Neynar user score. A failed score
// fetch lets the mention through rather than punishing users for an API
// outage.
func (p *Processor) stageSpamScore(ctx context.Context, r *mentionRun) *stageOutcome {
	score, err := p.deps.Client.UserScore(ctx, r.event.AuthorFID)
	if err != nil {
		p.logger.Warn("user score fetch failed", zap.Int64("author_fid", r.event.AuthorFID), zap.Error(err))
		return nil
	}
	if score < p.cfg.MinUserScore {
		p.deps.Security.LogLowTrustAuthor(r.event.CastID, r.event.AuthorFID, score)
		return &stageOutcome{reply: voice.LowTrust(), err: apperrors.ErrLowUserScore}
	}
	return nil
}

func (p *Processor) stageRequireParent(ctx context.Context, r *mentionRun) *stageOutcome {
	if r.event.ParentCastID == "" {
		return &stageOutcome{reply: voice.NeedParent(), err: apperrors.ErrNoParent}
	}
	return nil
}

func (p *Processor) stageLoadParent(ctx context.Context, r *mentionRun) *stageOutcome {
	parent, err := p.deps.Client.Cast(ctx, r.event.ParentCastID)
	if err != nil {
		return &stageOutcome{
			reply: voice.ParentNotFound(),
			err:   fmt.Errorf("failed to load parent cast: %w", err),
		}
	}
	r.parent = parent
	return nil
}

func (p *Processor) stageBuildContext(ctx context.Context, r *mentionRun) *stageOutcome {
	r.conv = p.deps.Context.Build(ctx, r.event, r.parent)
	return nil
}

// stageSetupReply short-circuits intent classification when the current
// message answers a pending "who owns this project" question from an
// earlier bot reply.
func (p *Processor) stageSetupReply(ctx context.Context, r *mentionRun) *stageOutcome {
	if r.conv.PendingProjectHandle == "" {
		return nil
	}
	if !p.deps.Setup.HasOwnerSignal(r.event.Text, r.conv.PendingProjectHandle) {
		return nil
	}

	r.detectedProjects = []string{r.conv.PendingProjectHandle}
	result := p.deps.Setup.CompleteSetup(ctx, r.event, r.conv.PendingProjectHandle)
	return &stageOutcome{reply: result.Reply, err: result.Err}
}

func (p *Processor) stageIntent(ctx context.Context, r *mentionRun) *stageOutcome {
	r.intent = p.deps.Intent.Classify(ctx, r.event.Text)
	r.detectedProjects = r.intent.TargetProjects
	return nil
}

// stageCreateProject answers a create-project intent by asking for owner
// and token details. Nothing is created yet; the setup-reply path on the
// next turn does that.
func (p *Processor) stageCreateProject(ctx context.Context, r *mentionRun) *stageOutcome {
	if r.intent.Kind != models.IntentCreateProject {
		return nil
	}
	name := r.intent.NewProjectName
	if name == "" {
		return &stageOutcome{reply: voice.Clarification()}
	}
	r.detectedProjects = []string{name}
	return &stageOutcome{reply: voice.AskSetupDetails(name, name)}
}

func (p *Processor) stageLowConfidence(ctx context.Context, r *mentionRun) *stageOutcome {
	if len(r.intent.TargetProjects) > 0 {
		return nil
	}
	if r.intent.Confidence < 0.5 || r.intent.Kind == models.IntentUnknown {
		return &stageOutcome{reply: voice.Clarification()}
	}
	return nil
}

func (p *Processor) stageResolveProjects(ctx context.Context, r *mentionRun) *stageOutcome {
	var matched []*models.Project
	for _, handle := range r.intent.TargetProjects {
		project, err := p.deps.Projects.GetByHandle(ctx, handle)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return p.hardFailure(fmt.Errorf("failed to resolve project %q: %w", handle, err))
		}
		matched = append(matched, project)
	}

	if len(matched) == 0 {
		return &stageOutcome{reply: voice.ProjectNotFound(r.intent.TargetProjects)}
	}
	if len(matched) > 1 {
		handles := make([]string, len(matched))
		for i, project := range matched {
			handles[i] = project.Handle
		}
		return &stageOutcome{reply: voice.AmbiguousProject(handles)}
	}

	r.project = matched[0]
	r.detectedProjects = []string{matched[0].Handle}
	return nil
}

func (p *Processor) stageExtractFeatures(ctx context.Context, r *mentionRun) *stageOutcome {
	features := p.deps.Extractor.Extract(ctx, r.conv.Text)
	if len(features) == 0 {
		return &stageOutcome{reply: voice.NoFeatureFound()}
	}
	if p.cfg.MaxFeatures > 0 && len(features) > p.cfg.MaxFeatures {
		features = features[:p.cfg.MaxFeatures]
	}
	r.features = features
	return nil
}

func (p *Processor) stageProcessFeatures(ctx context.Context, r *mentionRun) *stageOutcome {
	for _, feature := range r.features {
		if outcome := p.processFeature(ctx, r, feature); outcome != nil {
			return outcome
		}
	}

	out := &stageOutcome{reply: voice.Summary(r.project.Handle, r.createdTitles, r.mergedTitles)}
	if len(r.createdTitles) > 0 {
		out.announce = voice.Announcement(r.project.Handle, r.createdTitles)
	}
	return out
}

// processFeature runs one extracted feature through tag, similarity search,
// and merge-or-create. A non-nil outcome is a hard datastore failure that
// stops the run.
func (p *Processor) processFeature(ctx context.Context, r *mentionRun, extracted models.ExtractedFeature) *stageOutcome {
	tagIDs := p.deps.Tagger.Tag(ctx, extracted.Title, extracted.Description)

	candidates := p.deps.Similarity.FindSimilar(ctx, r.project.ID, extracted.Title, extracted.Description)
	if len(candidates) > 0 && candidates[0].Similarity > p.cfg.MergeThreshold {
		return p.mergeFeature(ctx, r, extracted, candidates[0])
	}
	return p.createFeature(ctx, r, extracted, tagIDs)
}

// mergeFeature attaches the current cast as a new source on an existing
// near-duplicate instead of creating a second row.
func (p *Processor) mergeFeature(ctx context.Context, r *mentionRun, extracted models.ExtractedFeature, match models.SimilarFeature) *stageOutcome {
	source := p.sourceFor(r, match.ID)
	if err := p.deps.Features.AddSource(ctx, source); err != nil && !errors.Is(err, apperrors.ErrConflict) {
		return p.hardFailure(fmt.Errorf("failed to attach feature source: %w", err))
	}

	// Keep the extra wording unless it is trivially shorter than what the
	// feature already says.
	if extracted.Description != "" && len(extracted.Description)*2 >= len(match.Description) {
		if err := p.deps.Features.AppendDescription(ctx, match.ID, extracted.Description); err != nil {
			p.logger.Warn("failed to append description",
				zap.String("feature_id", match.ID.String()), zap.Error(err))
		}
	}

	r.mergedCount++
	r.mergedTitles = append(r.mergedTitles, match.Title)
	return nil
}

func (p *Processor) createFeature(ctx context.Context, r *mentionRun, extracted models.ExtractedFeature, tagIDs []uuid.UUID) *stageOutcome {
	castID := r.event.CastID
	authorFID := r.event.AuthorFID

	feature := &models.Feature{
		ProjectID:       r.project.ID,
		Title:           extracted.Title,
		Description:     extracted.Description,
		SubmitterFID:    authorFID,
		SourceCastID:    &castID,
		SourceAuthorFID: &authorFID,
		Status:          models.FeatureStatusOpen,
	}
	if err := p.deps.Features.Create(ctx, feature); err != nil {
		return p.hardFailure(fmt.Errorf("failed to create feature: %w", err))
	}

	if len(tagIDs) > 0 {
		if err := p.deps.Tags.AttachToFeature(ctx, feature.ID, tagIDs); err != nil {
			p.logger.Warn("failed to attach tags",
				zap.String("feature_id", feature.ID.String()), zap.Error(err))
		}
	}

	if err := p.deps.Features.AddSource(ctx, p.sourceFor(r, feature.ID)); err != nil && !errors.Is(err, apperrors.ErrConflict) {
		p.logger.Warn("failed to attach feature source",
			zap.String("feature_id", feature.ID.String()), zap.Error(err))
	}

	// Embed immediately so the next mention can find this feature.
	if err := p.deps.Similarity.StoreEmbedding(ctx, feature.ID, extracted.Title, extracted.Description); err != nil {
		p.logger.Warn("failed to store embedding",
			zap.String("feature_id", feature.ID.String()), zap.Error(err))
	}

	for _, item := range extracted.SubItems {
		sub := &models.Feature{
			ProjectID:       r.project.ID,
			Title:           item.Title,
			Description:     item.Description,
			SubmitterFID:    authorFID,
			SourceCastID:    &castID,
			SourceAuthorFID: &authorFID,
			ParentFeatureID: &feature.ID,
			IsSubItem:       true,
			Status:          models.FeatureStatusOpen,
		}
		if err := p.deps.Features.Create(ctx, sub); err != nil {
			return p.hardFailure(fmt.Errorf("failed to create sub-item: %w", err))
		}
		if err := p.deps.Similarity.StoreEmbedding(ctx, sub.ID, item.Title, item.Description); err != nil {
			p.logger.Warn("failed to store sub-item embedding",
				zap.String("feature_id", sub.ID.String()), zap.Error(err))
		}
		r.createdCount++
	}

	r.createdCount++
	r.createdTitles = append(r.createdTitles, extracted.Title)
	return nil
}

func (p *Processor) sourceFor(r *mentionRun, featureID uuid.UUID) *models.FeatureSource {
	source := &models.FeatureSource{
		FeatureID: featureID,
		CastID:    r.event.CastID,
		AuthorFID: r.event.AuthorFID,
	}
	if text := strings.TrimSpace(r.event.Text); text != "" {
		excerpt := truncateRunes(text, maxExcerptLength)
		source.TextExcerpt = &excerpt
	}
	return source
}

func (p *Processor) hardFailure(err error) *stageOutcome {
	return &stageOutcome{reply: voice.GenericError(), err: err}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
