package farcaster

import (
	"context"
	"sync"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
)

// PostedReply records one PostReply call for assertions.
type PostedReply struct {
	ParentID string
	Text     string
}

// PostedCast records one PostCast call for assertions.
type PostedCast struct {
	Text        string
	EmbedCastID string
}

// MockClient is a configurable mock for testing components that talk to the
// social network. Set the function fields to control behavior; posted replies
// and casts are always recorded.
type MockClient struct {
	mu sync.Mutex

	// CastFunc is called when Cast is invoked.
	// If nil, returns apperrors.ErrNotFound.
	CastFunc func(ctx context.Context, id string) (*Cast, error)

	// ThreadFunc is called when Thread is invoked.
	// If nil, returns an empty thread.
	ThreadFunc func(ctx context.Context, parentID string) ([]Cast, error)

	// PostReplyFunc is called when PostReply is invoked.
	// If nil, the reply is recorded and nil is returned.
	PostReplyFunc func(ctx context.Context, parentID, text string) error

	// PostCastFunc is called when PostCast is invoked.
	// If nil, the cast is recorded and nil is returned.
	PostCastFunc func(ctx context.Context, text, embedCastID string) error

	// UserScoreFunc is called when UserScore is invoked.
	// If nil, returns 1.
	UserScoreFunc func(ctx context.Context, fid int64) (float64, error)

	// UserFunc is called when User is invoked.
	// If nil, returns apperrors.ErrNotFound.
	UserFunc func(ctx context.Context, fid int64) (*User, error)

	// UserByHandleFunc is called when UserByHandle is invoked.
	// If nil, returns apperrors.ErrNotFound.
	UserByHandleFunc func(ctx context.Context, handle string) (*User, error)

	// Call tracking for verification
	CastCalls         int
	ThreadCalls       int
	UserScoreCalls    int
	UserCalls         int
	UserByHandleCalls int

	// Replies and Casts record every post, in order.
	Replies []PostedReply
	Casts   []PostedCast
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Cast implements Client.
func (m *MockClient) Cast(ctx context.Context, id string) (*Cast, error) {
	m.mu.Lock()
	m.CastCalls++
	m.mu.Unlock()
	if m.CastFunc != nil {
		return m.CastFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

// Thread implements Client.
func (m *MockClient) Thread(ctx context.Context, parentID string) ([]Cast, error) {
	m.mu.Lock()
	m.ThreadCalls++
	m.mu.Unlock()
	if m.ThreadFunc != nil {
		return m.ThreadFunc(ctx, parentID)
	}
	return nil, nil
}

// PostReply implements Client.
func (m *MockClient) PostReply(ctx context.Context, parentID, text string) error {
	m.mu.Lock()
	m.Replies = append(m.Replies, PostedReply{ParentID: parentID, Text: text})
	m.mu.Unlock()
	if m.PostReplyFunc != nil {
		return m.PostReplyFunc(ctx, parentID, text)
	}
	return nil
}

// PostCast implements Client.
func (m *MockClient) PostCast(ctx context.Context, text, embedCastID string) error {
	m.mu.Lock()
	m.Casts = append(m.Casts, PostedCast{Text: text, EmbedCastID: embedCastID})
	m.mu.Unlock()
	if m.PostCastFunc != nil {
		return m.PostCastFunc(ctx, text, embedCastID)
	}
	return nil
}

// UserScore implements Client.
func (m *MockClient) UserScore(ctx context.Context, fid int64) (float64, error) {
	m.mu.Lock()
	m.UserScoreCalls++
	m.mu.Unlock()
	if m.UserScoreFunc != nil {
		return m.UserScoreFunc(ctx, fid)
	}
	return 1, nil
}

// User implements Client.
func (m *MockClient) User(ctx context.Context, fid int64) (*User, error) {
	m.mu.Lock()
	m.UserCalls++
	m.mu.Unlock()
	if m.UserFunc != nil {
		return m.UserFunc(ctx, fid)
	}
	return nil, apperrors.ErrNotFound
}

// UserByHandle implements Client.
func (m *MockClient) UserByHandle(ctx context.Context, handle string) (*User, error) {
	m.mu.Lock()
	m.UserByHandleCalls++
	m.mu.Unlock()
	if m.UserByHandleFunc != nil {
		return m.UserByHandleFunc(ctx, handle)
	}
	return nil, apperrors.ErrNotFound
}

// LastReply returns the most recent recorded reply, or nil.
func (m *MockClient) LastReply() *PostedReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Replies) == 0 {
		return nil
	}
	return &m.Replies[len(m.Replies)-1]
}

// Ensure MockClient implements Client at compile time.
var _ Client = (*MockClient)(nil)
