package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/llm"
	"github.com/roadcast-labs/roadcast/pkg/models"
	"github.com/roadcast-labs/roadcast/pkg/repositories"
)

// maxSimilarCandidates bounds how many nearest neighbors a search returns.
const maxSimilarCandidates = 5

// SimilarityEngine finds near-duplicate features via embeddings.
type SimilarityEngine interface {
	// FindSimilar returns up to five candidates above the search threshold,
	// ordered by descending similarity. Any embedding or search failure
	// returns an empty list: no candidates means the caller creates a new
	// feature, which is the safe direction to fail in.
	FindSimilar(ctx context.Context, projectID uuid.UUID, title, description string) []models.SimilarFeature

	// StoreEmbedding computes and persists the embedding for a feature so
	// later searches can find it.
	StoreEmbedding(ctx context.Context, featureID uuid.UUID, title, description string) error
}

type similarityEngine struct {
	gateway         llm.Gateway
	features        repositories.FeatureRepository
	searchThreshold float64
	logger          *zap.Logger
}

// NewSimilarityEngine creates the engine. searchThreshold is the minimum
// cosine similarity for a search candidate; the stricter merge threshold is
// applied by the caller.
func NewSimilarityEngine(gateway llm.Gateway, features repositories.FeatureRepository, searchThreshold float64, logger *zap.Logger) SimilarityEngine {
	return &similarityEngine{
		gateway:         gateway,
		features:        features,
		searchThreshold: searchThreshold,
		logger:          logger.Named("similarity"),
	}
}

func (s *similarityEngine) FindSimilar(ctx context.Context, projectID uuid.UUID, title, description string) []models.SimilarFeature {
	embedding, err := s.gateway.Embed(ctx, embeddingInput(title, description))
	if err != nil {
		s.logger.Warn("embedding generation failed, treating as no duplicates", zap.Error(err))
		return nil
	}

	candidates, err := s.features.SearchSimilar(ctx, projectID, embedding, s.searchThreshold, maxSimilarCandidates)
	if err != nil {
		s.logger.Warn("similarity search failed, treating as no duplicates", zap.Error(err))
		return nil
	}
	return candidates
}

func (s *similarityEngine) StoreEmbedding(ctx context.Context, featureID uuid.UUID, title, description string) error {
	embedding, err := s.gateway.Embed(ctx, embeddingInput(title, description))
	if err != nil {
		return fmt.Errorf("failed to embed feature text: %w", err)
	}
	if err := s.features.UpdateEmbedding(ctx, featureID, embedding); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// embeddingInput is the canonical query string: title and description
// concatenated. Both search and store must use the same form or
// similarities drift.
func embeddingInput(title, description string) string {
	return strings.TrimSpace(title + " " + description)
}

var _ SimilarityEngine = (*similarityEngine)(nil)
