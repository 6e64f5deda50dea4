package models

import (
	"time"

	"github.com/google/uuid"
)

// Feature status values.
const (
	FeatureStatusOpen = "open"
)

// MaxFeatureTitleLength caps feature titles everywhere they are produced.
const MaxFeatureTitleLength = 100

// Feature represents one roadmap entry for a project.
type Feature struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       uuid.UUID  `json:"project_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SubmitterFID    int64      `json:"submitter_fid"`
	SourceCastID    *string    `json:"source_cast_id,omitempty"`
	SourceAuthorFID *int64     `json:"source_author_fid,omitempty"`
	ParentFeatureID *uuid.UUID `json:"parent_feature_id,omitempty"` // set for sub-items, one level deep
	IsSubItem       bool       `json:"is_sub_item"`
	Status          string     `json:"status"`
	TotalWeight     float64    `json:"total_weight"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FeatureSource records one cast that contributed to or reinforced a
// feature. A merged duplicate attaches a new source instead of creating a
// second feature row.
type FeatureSource struct {
	ID          uuid.UUID `json:"id"`
	FeatureID   uuid.UUID `json:"feature_id"`
	CastID      string    `json:"cast_id"`
	AuthorFID   int64     `json:"author_fid"`
	TextExcerpt *string   `json:"text_excerpt,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExtractedFeature is the extractor's ephemeral output, not yet persisted.
type ExtractedFeature struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	SubItems    []ExtractedItem `json:"sub_items,omitempty"`
}

// ExtractedItem is a sub-item of an extracted feature (an implementation
// variant split out by the extractor).
type ExtractedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SimilarFeature is one nearest-neighbor search candidate.
type SimilarFeature struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Similarity  float64   `json:"similarity"`
}
