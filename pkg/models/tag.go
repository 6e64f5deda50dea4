package models

import (
	"time"

	"github.com/google/uuid"
)

// Tag type values.
const (
	TagTypePredefined = "predefined" // seeded vocabulary
	TagTypeCustom     = "custom"     // proposed by the tagger on demand
)

// MaxTagsPerFeature caps how many tags the tagger may assign.
const MaxTagsPerFeature = 4

// PredefinedTagNames is the fixed vocabulary offered to the tagger. It
// mirrors the seed migration; names are lowercase and singular.
var PredefinedTagNames = []string{
	"ui", "ux", "performance", "bug", "security", "integration",
	"mobile", "api", "documentation", "notification", "wallet",
	"social", "search", "analytics", "onboarding", "moderation",
}

// Tag is a category label attached to features.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	TagType   string    `json:"tag_type"`
	CreatedAt time.Time `json:"created_at"`
}
