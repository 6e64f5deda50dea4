package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/farcaster"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
	"github.com/roadcast-labs/roadcast/pkg/voice"
)

// SetupResult is the outcome of completing a project setup exchange.
type SetupResult struct {
	Reply   string
	Project *models.Project // nil unless a project was created
	Err     error           // underlying failure, echoed into the audit log
}

// ProjectSetupService finishes the multi-turn project creation exchange:
// the bot asked for owner and token details in an earlier reply, and the
// current message is the answer.
type ProjectSetupService interface {
	// HasOwnerSignal reports whether text plausibly names an owner: a
	// numeric fid, an @-mention, or an "I'm the owner" self-reference.
	HasOwnerSignal(text, pendingHandle string) bool

	// CompleteSetup resolves the owner, detects the voting type, enriches
	// the project from its Farcaster profile when possible, and creates the
	// record. It always returns a reply for the user.
	CompleteSetup(ctx context.Context, event models.MentionEvent, pendingHandle string) SetupResult
}

type projectSetupService struct {
	projects  repositories.ProjectRepository
	client    farcaster.Client
	botHandle string
	logger    *zap.Logger
}

// NewProjectSetupService creates the setup service.
func NewProjectSetupService(projects repositories.ProjectRepository, client farcaster.Client, botHandle string, logger *zap.Logger) ProjectSetupService {
	return &projectSetupService{
		projects:  projects,
		client:    client,
		botHandle: strings.ToLower(strings.TrimPrefix(botHandle, "@")),
		logger:    logger.Named("setup"),
	}
}

var (
	ownerFIDRe     = regexp.MustCompile(`(?i)\bfid\s*[:#]?\s*(\d+)`)
	selfOwnerRe    = regexp.MustCompile(`(?i)\b(?:i'm|im|i\s+am)\s+the\s+owner\b`)
	tokenAddressRe = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	tokenSymbolRe  = regexp.MustCompile(`\$[A-Za-z][A-Za-z0-9]{1,9}\b`)
	tokenKeywordRe = regexp.MustCompile(`(?i)\btoken\b`)
)

func (s *projectSetupService) HasOwnerSignal(text, pendingHandle string) bool {
	text = normalizeApostrophes(text)
	return ownerFIDRe.MatchString(text) ||
		selfOwnerRe.MatchString(text) ||
		s.ownerMention(text, pendingHandle) != ""
}

func (s *projectSetupService) CompleteSetup(ctx context.Context, event models.MentionEvent, pendingHandle string) SetupResult {
	ownerFID, ownerRef, err := s.resolveOwner(ctx, event, pendingHandle)
	if err != nil {
		s.logger.Warn("owner resolution failed",
			zap.String("handle", pendingHandle),
			zap.String("owner_ref", ownerRef),
			zap.Error(err))
		return SetupResult{Reply: voice.OwnerNotFound(ownerRef), Err: err}
	}

	votingType, tokenAddress := detectVoting(event.Text)

	project := &models.Project{
		Name:         pendingHandle,
		Handle:       pendingHandle,
		VotingType:   votingType,
		TokenAddress: tokenAddress,
		OwnerFID:     ownerFID,
	}

	// Best-effort profile enrichment; a failed lookup just leaves the
	// handle as the name.
	if user, err := s.client.UserByHandle(ctx, pendingHandle); err == nil {
		if user.DisplayName != "" {
			project.Name = user.DisplayName
		}
		if user.Bio != "" {
			bio := user.Bio
			project.Description = &bio
		}
	}

	if err := s.projects.Create(ctx, project); err != nil {
		s.logger.Error("project creation failed",
			zap.String("handle", pendingHandle),
			zap.Error(err))
		if errors.Is(err, apperrors.ErrHandleTaken) {
			return SetupResult{Reply: voice.HandleTaken(pendingHandle), Err: err}
		}
		return SetupResult{Reply: voice.SetupFailure(), Err: err}
	}

	s.logger.Info("project created",
		zap.String("handle", project.Handle),
		zap.Int64("owner_fid", project.OwnerFID),
		zap.String("voting_type", project.VotingType))
	return SetupResult{Reply: voice.SetupSuccess(project.Name, project.Handle), Project: project}
}

// resolveOwner tries, in order: an explicit numeric fid, an @-mention
// looked up on Farcaster, and the "I'm the owner" self-reference.
func (s *projectSetupService) resolveOwner(ctx context.Context, event models.MentionEvent, pendingHandle string) (int64, string, error) {
	text := normalizeApostrophes(event.Text)

	if sub := ownerFIDRe.FindStringSubmatch(text); sub != nil {
		fid, err := strconv.ParseInt(sub[1], 10, 64)
		if err == nil && fid > 0 {
			return fid, "fid " + sub[1], nil
		}
	}

	if handle := s.ownerMention(text, pendingHandle); handle != "" {
		user, err := s.client.UserByHandle(ctx, handle)
		if err != nil {
			return 0, "@" + handle, fmt.Errorf("failed to look up @%s: %w", handle, err)
		}
		return user.FID, "@" + handle, nil
	}

	if selfOwnerRe.MatchString(text) {
		return event.AuthorFID, "@" + event.AuthorUsername, nil
	}

	return 0, strings.TrimSpace(event.Text), apperrors.ErrOwnerNotFound
}

// ownerMention returns the first mention that could name an owner account:
// not the bot, not the project being set up, not a placeholder.
func (s *projectSetupService) ownerMention(text, pendingHandle string) string {
	for _, handle := range extractMentions(text) {
		if handle == s.botHandle || handle == strings.ToLower(pendingHandle) || handle == "unknown" {
			continue
		}
		return handle
	}
	return ""
}

// detectVoting picks the voting type from token signals in the reply: a
// contract address, a $SYMBOL, or the bare word "token".
func detectVoting(text string) (string, *string) {
	if addr := tokenAddressRe.FindString(text); addr != "" {
		a := strings.ToLower(addr)
		return models.VotingTypeToken, &a
	}
	if tokenKeywordRe.MatchString(text) || tokenSymbolRe.MatchString(text) {
		return models.VotingTypeToken, nil
	}
	return models.VotingTypeScore, nil
}

// normalizeApostrophes maps curly apostrophes to ASCII so phrase patterns
// match what mobile clients actually send.
func normalizeApostrophes(text string) string {
	return strings.ReplaceAll(text, "’", "'")
}

var _ ProjectSetupService = (*projectSetupService)(nil)
