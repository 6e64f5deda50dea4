package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roadcast-labs/roadcast/pkg/database"
	"github.com/roadcast-labs/roadcast/pkg/models"
)

// TagRepository defines the interface for tag data access.
type TagRepository interface {
	// GetOrCreate resolves a tag by name, creating it with the given type
	// when it does not exist yet. Names are stored lowercase.
	GetOrCreate(ctx context.Context, name, tagType string) (*models.Tag, error)

	// AttachToFeature links tags to a feature. Already-linked tags are
	// skipped.
	AttachToFeature(ctx context.Context, featureID uuid.UUID, tagIDs []uuid.UUID) error

	// ListByFeature returns the tags attached to a feature.
	ListByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.Tag, error)
}

// tagRepository implements TagRepository using PostgreSQL.
type tagRepository struct {
	db *database.DB
}

// NewTagRepository creates a new tag repository.
func NewTagRepository(db *database.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreate resolves a tag by name, creating it when missing. The no-op
// DO UPDATE makes the insert return the existing row on conflict.
func (r *tagRepository) GetOrCreate(ctx context.Context, name, tagType string) (*models.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("tag name is required")
	}
	if tagType == "" {
		tagType = models.TagTypeCustom
	}

	query := `
		INSERT INTO tags (name, tag_type)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, tag_type, created_at`

	var tag models.Tag
	err := r.db.QueryRow(ctx, query, name, tagType).Scan(
		&tag.ID,
		&tag.Name,
		&tag.TagType,
		&tag.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create tag: %w", err)
	}

	return &tag, nil
}

// AttachToFeature links tags to a feature.
func (r *tagRepository) AttachToFeature(ctx context.Context, featureID uuid.UUID, tagIDs []uuid.UUID) error {
	for _, tagID := range tagIDs {
		_, err := r.db.Exec(ctx, `
			INSERT INTO feature_tags (feature_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT (feature_id, tag_id) DO NOTHING`,
			featureID, tagID)
		if err != nil {
			return fmt.Errorf("failed to attach tag: %w", err)
		}
	}
	return nil
}

// ListByFeature returns the tags attached to a feature.
func (r *tagRepository) ListByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.Tag, error) {
	query := `
		SELECT t.id, t.name, t.tag_type, t.created_at
		FROM tags t
		JOIN feature_tags ft ON ft.tag_id = t.id
		WHERE ft.feature_id = $1
		ORDER BY t.name`

	rows, err := r.db.Query(ctx, query, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.TagType, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	return tags, nil
}

// Ensure tagRepository implements TagRepository at compile time.
var _ TagRepository = (*tagRepository)(nil)
