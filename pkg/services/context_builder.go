package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/farcaster"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/voice"
)

// ContextBuilder reconstructs the conversation window around a mention.
// The bot keeps no session state: everything it knows about an ongoing
// exchange is re-derived from the thread on every run.
type ContextBuilder interface {
	Build(ctx context.Context, event models.MentionEvent, parent *farcaster.Cast) models.ConversationContext
}

type contextBuilder struct {
	client    farcaster.Client
	botFID    int64
	botHandle string
	maxDepth  int
	logger    *zap.Logger
}

// NewContextBuilder creates the builder. maxDepth bounds the ancestor walk
// and mirrors the thread depth cap of the client.
func NewContextBuilder(client farcaster.Client, botFID int64, botHandle string, maxDepth int, logger *zap.Logger) ContextBuilder {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &contextBuilder{
		client:    client,
		botFID:    botFID,
		botHandle: strings.ToLower(strings.TrimPrefix(botHandle, "@")),
		maxDepth:  maxDepth,
		logger:    logger.Named("context"),
	}
}

func (b *contextBuilder) Build(ctx context.Context, event models.MentionEvent, parent *farcaster.Cast) models.ConversationContext {
	conv := models.ConversationContext{Text: event.Text}
	if parent == nil {
		return conv
	}

	conv.IsReplyToBot = b.isBotCast(parent)

	var scanned []farcaster.Cast
	if conv.IsReplyToBot {
		// Replying to the bot usually means answering a question the bot
		// asked earlier, so the history above the parent matters most.
		ancestors := b.ancestors(ctx, parent)
		scanned = append(scanned, ancestors...)
		scanned = append(scanned, *parent)
		conv.Text = assembleReplyToBot(ancestors, parent, event)
	} else {
		replies := b.threadReplies(ctx, parent.Hash, event.CastID)
		scanned = append(scanned, *parent)
		scanned = append(scanned, replies...)
		conv.Text = assembleDefault(parent, replies, event)
	}

	conv.PendingProjectHandle = b.pendingProjectHandle(scanned)
	return conv
}

// isBotCast reports whether a cast was authored by the bot itself. The
// handle comparison backs up the fid check because the configured fid may
// be missing or wrong.
func (b *contextBuilder) isBotCast(cast *farcaster.Cast) bool {
	if b.botFID != 0 && cast.Author.FID == b.botFID {
		return true
	}
	return b.botHandle != "" && strings.EqualFold(cast.Author.Username, b.botHandle)
}

// ancestors walks parent links upward and returns the chain oldest first.
// Fetch failures end the walk with whatever was collected.
func (b *contextBuilder) ancestors(ctx context.Context, parent *farcaster.Cast) []farcaster.Cast {
	var chain []farcaster.Cast
	hash := parent.ParentHash
	for hash != "" && len(chain) < b.maxDepth {
		cast, err := b.client.Cast(ctx, hash)
		if err != nil {
			b.logger.Warn("ancestor fetch failed, using partial thread",
				zap.String("hash", hash), zap.Error(err))
			break
		}
		chain = append(chain, *cast)
		hash = cast.ParentHash
	}
	// Walked newest to oldest; flip.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (b *contextBuilder) threadReplies(ctx context.Context, parentHash, currentCastID string) []farcaster.Cast {
	casts, err := b.client.Thread(ctx, parentHash)
	if err != nil {
		b.logger.Warn("thread fetch failed, using parent only", zap.Error(err))
		return nil
	}
	replies := make([]farcaster.Cast, 0, len(casts))
	for _, c := range casts {
		if c.Hash == parentHash || c.Hash == currentCastID {
			continue
		}
		replies = append(replies, c)
	}
	return replies
}

func assembleReplyToBot(ancestors []farcaster.Cast, parent *farcaster.Cast, event models.MentionEvent) string {
	var b strings.Builder
	if len(ancestors) > 0 {
		b.WriteString("Earlier in the thread:\n")
		for _, c := range ancestors {
			fmt.Fprintf(&b, "@%s: %s\n", c.Author.Username, c.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "The bot said:\n%s\n\n", parent.Text)
	fmt.Fprintf(&b, "User's reply:\n%s", event.Text)
	return b.String()
}

func assembleDefault(parent *farcaster.Cast, replies []farcaster.Cast, event models.MentionEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current message:\n%s\n\n", event.Text)
	fmt.Fprintf(&b, "In reply to @%s:\n%s", parent.Author.Username, parent.Text)
	if len(replies) > 0 {
		b.WriteString("\n\nOther replies in the thread:\n")
		for _, c := range replies {
			fmt.Fprintf(&b, "@%s: %s\n", c.Author.Username, c.Text)
		}
	}
	return b.String()
}

// pendingProjectHandle recovers which project a multi-turn setup exchange
// is about by finding the bot's own earlier alert message and taking the
// first mention in it that is not the bot or a placeholder. Text matching
// a phrase the bot generated itself is fragile, but with no persisted
// session state it is the only cross-turn memory available.
func (b *contextBuilder) pendingProjectHandle(casts []farcaster.Cast) string {
	for _, cast := range casts {
		if !strings.Contains(cast.Text, voice.ProjectAlertMarker) {
			continue
		}
		for _, handle := range extractMentions(cast.Text) {
			if handle == b.botHandle || handle == "unknown" {
				continue
			}
			return handle
		}
	}
	return ""
}

var _ ContextBuilder = (*contextBuilder)(nil)
