package models

// IntentKind values produced by the intent classifier.
const (
	IntentCreateProject = "create_project"
	IntentAddFeature    = "add_feature"
	IntentUnknown       = "unknown"
)

// DetectedIntent is the classifier's output for one mention. Never
// persisted as its own record; it drives processor branching and is echoed
// into the audit log.
type DetectedIntent struct {
	Kind           string   `json:"intent"`
	TargetProjects []string `json:"target_projects"` // lowercase handles, may be empty
	NewProjectName string   `json:"new_project_name,omitempty"`
	Confidence     float64  `json:"confidence"` // in [0,1]
	Reasoning      string   `json:"reasoning,omitempty"`
}

// ConversationContext is the reconstructed text window around a mention.
// Derived fresh every run; there is no persisted session state.
type ConversationContext struct {
	Text                 string `json:"text"`
	IsReplyToBot         bool   `json:"is_reply_to_bot"`
	PendingProjectHandle string `json:"pending_project_handle,omitempty"`
}
