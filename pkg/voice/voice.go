// Package voice holds roadcast's user-facing reply templates. Pure string
// assembly; all decisions about which reply to send live in the processor.
package voice

import (
	"fmt"
	"strings"
)

// ProjectAlertMarker opens every project setup prompt. The context builder
// scans prior casts for this exact phrase to recover which project a setup
// conversation is about, so the wording must stay stable.
const ProjectAlertMarker = "NEW PROJECT ALERT"

// RateLimited tells an author they hit the daily request cap.
func RateLimited(limit int) string {
	return fmt.Sprintf("you've hit today's limit of %d requests 🛑 the roadmap will still be here tomorrow!", limit)
}

// LowTrust declines an author whose account score is below the bar.
func LowTrust() string {
	return "your account doesn't meet the activity bar yet. keep casting and try me again soon 🙏"
}

// NeedParent asks the author to tag the bot in a reply instead of a
// top-level cast.
func NeedParent() string {
	return "tag me in a reply to the cast with the idea and I'll take it from there 📋"
}

// ParentNotFound reports that the replied-to cast could not be loaded.
func ParentNotFound() string {
	return "I couldn't load the cast you replied to. try tagging me again in a fresh reply!"
}

// AskSetupDetails starts the project setup conversation. It must contain
// ProjectAlertMarker followed by the project's @-handle.
func AskSetupDetails(name, handle string) string {
	return fmt.Sprintf("🚨 %s! @%s\n\nwant me to track %s? reply with the owner (an @handle, a fid, or \"I'm the owner\") and, if votes should be token-weighted, the token.",
		ProjectAlertMarker, handle, name)
}

// Clarification asks which project a low-confidence mention is about.
func Clarification() string {
	return "which project is this for? mention it like @base and I'll file the request 📋"
}

// ProjectNotFound reports unknown project handles.
func ProjectNotFound(handles []string) string {
	return fmt.Sprintf("I don't know %s yet 🤔 the owner can set it up by asking me to create a project.", atList(handles))
}

// AmbiguousProject asks the author to pick one project.
func AmbiguousProject(handles []string) string {
	return fmt.Sprintf("one board at a time! which of %s should I file this under?", atList(handles))
}

// NoFeatureFound reports that no concrete feature could be extracted.
func NoFeatureFound() string {
	return "I couldn't spot a concrete feature in that. describe what you'd like to see and tag me again!"
}

// OwnerNotFound reports a failed owner lookup during project setup.
func OwnerNotFound(ownerRef string) string {
	return fmt.Sprintf("couldn't find %s on here 🤔 reply with the owner's @handle or fid and we'll finish setup.", ownerRef)
}

// SetupSuccess announces a freshly created project.
func SetupSuccess(name, handle string) string {
	return fmt.Sprintf("🎉 %s is live! mention @%s with feature ideas and I'll keep the roadmap.", name, handle)
}

// SetupFailure is the generic apology when project creation fails.
func SetupFailure() string {
	return "something broke on my end while creating the project 😵 please try again in a bit."
}

// HandleTaken reports that the requested project handle already exists.
func HandleTaken(handle string) string {
	return fmt.Sprintf("@%s is already on the board! mention it with a feature idea and I'll file it.", handle)
}

// GenericError is the apology for a failed write mid-processing.
func GenericError() string {
	return "something went wrong on my side saving that 😵 please try again in a bit."
}

// Summary reports what one mention produced: created features listed with
// bullets, merged ones marked as joining an existing request.
func Summary(handle string, created, merged []string) string {
	var b strings.Builder

	switch {
	case len(created) > 0 && len(merged) > 0:
		fmt.Fprintf(&b, "on the @%s roadmap:\n", handle)
	case len(merged) > 0:
		fmt.Fprintf(&b, "already being tracked for @%s:\n", handle)
	default:
		fmt.Fprintf(&b, "filed under @%s:\n", handle)
	}

	for _, title := range created {
		fmt.Fprintf(&b, "• %s\n", title)
	}
	for _, title := range merged {
		fmt.Fprintf(&b, "• %s (merged with an existing request 🔁)\n", title)
	}

	b.WriteString("vote and track it on the board!")
	return b.String()
}

// Announcement is the standalone public cast sent when new features landed.
func Announcement(handle string, titles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 new on the @%s roadmap:\n", handle)
	for _, title := range titles {
		fmt.Fprintf(&b, "• %s\n", title)
	}
	return strings.TrimRight(b.String(), "\n")
}

// atList joins handles as @-mentions: "@a", "@a or @b", "@a, @b or @c".
func atList(handles []string) string {
	if len(handles) == 0 {
		return "that project"
	}

	prefixed := make([]string, len(handles))
	for i, h := range handles {
		prefixed[i] = "@" + strings.TrimPrefix(h, "@")
	}
	if len(prefixed) == 1 {
		return prefixed[0]
	}
	return strings.Join(prefixed[:len(prefixed)-1], ", ") + " or " + prefixed[len(prefixed)-1]
}
