package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
	"github.com/roadcast-labs/roadcast/pkg/database"
	"github.com/roadcast-labs/roadcast/pkg/models"
)

// FeatureRepository defines the interface for feature data access.
type FeatureRepository interface {
	// Create inserts a new feature. The embedding starts NULL and is
	// written separately once computed.
	Create(ctx context.Context, feature *models.Feature) error

	// GetByID retrieves a feature by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error)

	// UpdateEmbedding stores the embedding vector for a feature.
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error

	// SearchSimilar returns features of a project ranked by cosine
	// similarity to the query vector, keeping only candidates at or above
	// the threshold.
	SearchSimilar(ctx context.Context, projectID uuid.UUID, embedding []float32, threshold float64, limit int) ([]models.SimilarFeature, error)

	// AppendDescription appends text to a feature's description under a
	// separator line.
	AppendDescription(ctx context.Context, id uuid.UUID, addition string) error

	// AddSource attaches a contributing cast to a feature. Returns
	// apperrors.ErrConflict when the cast is already attached.
	AddSource(ctx context.Context, source *models.FeatureSource) error

	// CountSources returns how many casts back a feature.
	CountSources(ctx context.Context, featureID uuid.UUID) (int, error)
}

// featureRepository implements FeatureRepository using PostgreSQL.
type featureRepository struct {
	db *database.DB
}

// NewFeatureRepository creates a new feature repository.
func NewFeatureRepository(db *database.DB) FeatureRepository {
	return &featureRepository{db: db}
}

// Create inserts a new feature.
func (r *featureRepository) Create(ctx context.Context, feature *models.Feature) error {
	if feature.Status == "" {
		feature.Status = models.FeatureStatusOpen
	}

	query := `
		INSERT INTO features (project_id, title, description, submitter_fid, source_cast_id,
			source_author_fid, parent_feature_id, is_sub_item, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, total_weight, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		feature.ProjectID,
		feature.Title,
		feature.Description,
		feature.SubmitterFID,
		feature.SourceCastID,
		feature.SourceAuthorFID,
		feature.ParentFeatureID,
		feature.IsSubItem,
		feature.Status,
	).Scan(&feature.ID, &feature.TotalWeight, &feature.CreatedAt, &feature.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feature: %w", err)
	}

	return nil
}

// GetByID retrieves a feature by ID.
func (r *featureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	query := `
		SELECT id, project_id, title, description, submitter_fid, source_cast_id,
			source_author_fid, parent_feature_id, is_sub_item, status, total_weight,
			created_at, updated_at
		FROM features
		WHERE id = $1`

	var feature models.Feature
	err := r.db.QueryRow(ctx, query, id).Scan(
		&feature.ID,
		&feature.ProjectID,
		&feature.Title,
		&feature.Description,
		&feature.SubmitterFID,
		&feature.SourceCastID,
		&feature.SourceAuthorFID,
		&feature.ParentFeatureID,
		&feature.IsSubItem,
		&feature.Status,
		&feature.TotalWeight,
		&feature.CreatedAt,
		&feature.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}

	return &feature, nil
}

// UpdateEmbedding stores the embedding vector for a feature.
func (r *featureRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	result, err := r.db.Exec(ctx, `
		UPDATE features SET embedding = $2, updated_at = NOW() WHERE id = $1`,
		id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SearchSimilar runs a nearest-neighbor search over a project's features.
// <=> is pgvector's cosine distance operator; similarity is 1 - distance.
func (r *featureRepository) SearchSimilar(ctx context.Context, projectID uuid.UUID, embedding []float32, threshold float64, limit int) ([]models.SimilarFeature, error) {
	query := `
		SELECT id, title, description, 1 - (embedding <=> $2) AS similarity
		FROM features
		WHERE project_id = $1
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $2) >= $3
		ORDER BY embedding <=> $2
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, projectID, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search features: %w", err)
	}
	defer rows.Close()

	var candidates []models.SimilarFeature
	for rows.Next() {
		var candidate models.SimilarFeature
		if err := rows.Scan(&candidate.ID, &candidate.Title, &candidate.Description, &candidate.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	return candidates, nil
}

// AppendDescription appends text to a feature's description under a
// separator line. An empty description is replaced outright.
func (r *featureRepository) AppendDescription(ctx context.Context, id uuid.UUID, addition string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE features
		SET description = CASE
			WHEN description = '' THEN $2
			ELSE description || E'\n\n---\n\n' || $2
		END,
		updated_at = NOW()
		WHERE id = $1`,
		id, addition)
	if err != nil {
		return fmt.Errorf("failed to append description: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AddSource attaches a contributing cast to a feature.
func (r *featureRepository) AddSource(ctx context.Context, source *models.FeatureSource) error {
	query := `
		INSERT INTO feature_sources (feature_id, cast_id, author_fid, text_excerpt)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		source.FeatureID,
		source.CastID,
		source.AuthorFID,
		source.TextExcerpt,
	).Scan(&source.ID, &source.CreatedAt)
	if err != nil {
		// Check for unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to add source: %w", err)
	}

	return nil
}

// CountSources returns how many casts back a feature.
func (r *featureRepository) CountSources(ctx context.Context, featureID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM feature_sources WHERE feature_id = $1`, featureID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

// Ensure featureRepository implements FeatureRepository at compile time.
var _ FeatureRepository = (*featureRepository)(nil)
