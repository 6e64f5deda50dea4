package models

import (
	"time"

	"github.com/google/uuid"
)

// MentionEvent is one inbound webhook occurrence: somebody mentioned the
// bot in a cast. Immutable; lives for the duration of one processing run.
type MentionEvent struct {
	CastID         string `json:"cast_id"`
	Text           string `json:"text"`
	AuthorFID      int64  `json:"author_fid"`
	AuthorUsername string `json:"author_username"`
	ParentCastID   string `json:"parent_cast_id,omitempty"` // empty when the cast is not a reply
}

// BotMentionLog is the write-once audit record for a processed mention.
// Its unique cast_id doubles as the idempotency guard, and created_at
// feeds the per-author daily rate limit.
type BotMentionLog struct {
	ID               uuid.UUID `json:"id"`
	CastID           string    `json:"cast_id"`
	AuthorFID        int64     `json:"author_fid"`
	ParentCastID     *string   `json:"parent_cast_id,omitempty"`
	DetectedProjects []string  `json:"detected_projects"`
	FeaturesCreated  int       `json:"features_created"`
	FeaturesMerged   int       `json:"features_merged"`
	Error            *string   `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
