// Package models contains domain types for roadcast.
package models

import (
	"time"

	"github.com/google/uuid"
)

// VotingType values for projects.
const (
	VotingTypeScore = "score" // votes weighted by reputation score
	VotingTypeToken = "token" // votes weighted by token holdings
)

// Project represents a tracked project whose roadmap the bot maintains.
// The handle is the stable lowercase identifier users @-mention.
type Project struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Handle       string    `json:"handle"`
	VotingType   string    `json:"voting_type"`
	TokenAddress *string   `json:"token_address,omitempty"`
	OwnerFID     int64     `json:"owner_fid"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProjectAdmin grants a Farcaster account an administrative role on a
// project. The owner row is written automatically at project creation.
type ProjectAdmin struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	FID       int64     `json:"fid"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
