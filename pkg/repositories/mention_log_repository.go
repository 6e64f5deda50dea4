package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/database"
	"github.com/roadcast-labs/roadcast/pkg/models"
)

// MentionLogRepository defines the interface for mention audit log access.
// One row is written per processed mention; the unique cast_id makes the
// table double as the idempotency guard.
type MentionLogRepository interface {
	// Create writes the audit row for a processed mention. Returns
	// apperrors.ErrConflict when the cast was already logged.
	Create(ctx context.Context, log *models.BotMentionLog) error

	// ExistsByCastID reports whether a mention was already processed.
	ExistsByCastID(ctx context.Context, castID string) (bool, error)

	// CountByAuthorSince counts an author's processed mentions after the
	// given instant. Feeds the rolling daily rate limit.
	CountByAuthorSince(ctx context.Context, authorFID int64, since time.Time) (int, error)
}

// mentionLogRepository implements MentionLogRepository using PostgreSQL.
type mentionLogRepository struct {
	db *database.DB
}

// NewMentionLogRepository creates a new mention log repository.
func NewMentionLogRepository(db *database.DB) MentionLogRepository {
	return &mentionLogRepository{db: db}
}

// Create writes the audit row for a processed mention.
func (r *mentionLogRepository) Create(ctx context.Context, log *models.BotMentionLog) error {
	if log.DetectedProjects == nil {
		log.DetectedProjects = []string{}
	}

	query := `
		INSERT INTO bot_mention_logs (cast_id, author_fid, parent_cast_id, detected_projects,
			features_created, features_merged, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		log.CastID,
		log.AuthorFID,
		log.ParentCastID,
		log.DetectedProjects,
		log.FeaturesCreated,
		log.FeaturesMerged,
		log.Error,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		// Check for unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create mention log: %w", err)
	}

	return nil
}

// ExistsByCastID reports whether a mention was already processed.
func (r *mentionLogRepository) ExistsByCastID(ctx context.Context, castID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bot_mention_logs WHERE cast_id = $1)`, castID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check mention log: %w", err)
	}
	return exists, nil
}

// CountByAuthorSince counts an author's processed mentions after the given
// instant.
func (r *mentionLogRepository) CountByAuthorSince(ctx context.Context, authorFID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM bot_mention_logs WHERE author_fid = $1 AND created_at >= $2`,
		authorFID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mentions: %w", err)
	}
	return count, nil
}

// Ensure mentionLogRepository implements MentionLogRepository at compile time.
var _ MentionLogRepository = (*mentionLogRepository)(nil)
