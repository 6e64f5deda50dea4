package farcaster

import "time"

// Cast is a single Farcaster message.
type Cast struct {
	Hash       string
	Text       string
	ParentHash string // empty for top-level casts
	Author     User
	Timestamp  time.Time
}

// IsReply reports whether the cast is a reply to another cast.
func (c *Cast) IsReply() bool {
	return c.ParentHash != ""
}

// User is a Farcaster account.
type User struct {
	FID         int64
	Username    string
	DisplayName string
	Bio         string
	// Score is the hub's account quality score in [0, 1]. Zero when the
	// hub does not report one.
	Score float64
}

// apiCast mirrors the hub API cast payload.
type apiCast struct {
	Hash          string    `json:"hash"`
	Text          string    `json:"text"`
	ParentHash    *string   `json:"parent_hash"`
	Author        apiUser   `json:"author"`
	Timestamp     string    `json:"timestamp"`
	DirectReplies []apiCast `json:"direct_replies,omitempty"`
}

// apiUser mirrors the hub API user payload.
type apiUser struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Profile     struct {
		Bio struct {
			Text string `json:"text"`
		} `json:"bio"`
	} `json:"profile"`
	Experimental struct {
		UserScore float64 `json:"neynar_user_score"`
	} `json:"experimental"`
}

func (a apiCast) toCast() Cast {
	cast := Cast{
		Hash:   a.Hash,
		Text:   a.Text,
		Author: a.Author.toUser(),
	}
	if a.ParentHash != nil {
		cast.ParentHash = *a.ParentHash
	}
	// Timestamp is informational; a malformed value should not fail the fetch.
	if ts, err := time.Parse(time.RFC3339, a.Timestamp); err == nil {
		cast.Timestamp = ts
	}
	return cast
}

func (a apiUser) toUser() User {
	return User{
		FID:         a.FID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Bio:         a.Profile.Bio.Text,
		Score:       a.Experimental.UserScore,
	}
}
