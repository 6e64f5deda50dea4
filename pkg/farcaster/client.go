// Package farcaster provides a client for the Farcaster social network
// through a Neynar-style hub API.
package farcaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/apperrors"
)

// DefaultTimeout bounds hub API calls when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxReplyDepth is the deepest reply nesting the hub API returns per
// conversation request.
const maxReplyDepth = 5

// Client is the bot's view of the social network. Implementations must be
// safe for concurrent use.
type Client interface {
	// Cast fetches a single cast by hash. Returns apperrors.ErrNotFound
	// when the cast does not exist or was deleted.
	Cast(ctx context.Context, id string) (*Cast, error)

	// Thread fetches the conversation under a cast, flattened in reply
	// order and bounded in size.
	Thread(ctx context.Context, parentID string) ([]Cast, error)

	// PostReply publishes a reply under the given cast.
	PostReply(ctx context.Context, parentID, text string) error

	// PostCast publishes a standalone cast, optionally quoting another
	// cast by hash.
	PostCast(ctx context.Context, text, embedCastID string) error

	// UserScore returns an account quality score in [0, 1].
	UserScore(ctx context.Context, fid int64) (float64, error)

	// User fetches an account by fid. Returns apperrors.ErrNotFound for
	// unknown fids.
	User(ctx context.Context, fid int64) (*User, error)

	// UserByHandle fetches an account by username. Returns
	// apperrors.ErrNotFound for unknown handles.
	UserByHandle(ctx context.Context, handle string) (*User, error)
}

// Config holds hub API connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	SignerUUID string
	Timeout    time.Duration
	// ThreadDepth caps how many casts Thread returns.
	ThreadDepth int
}

// HTTPClient talks to a Neynar-style hub API over HTTPS.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a hub API client.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("farcaster API base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("farcaster API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ThreadDepth <= 0 {
		cfg.ThreadDepth = 10
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("farcaster"),
	}, nil
}

// Cast fetches a single cast by hash.
func (c *HTTPClient) Cast(ctx context.Context, id string) (*Cast, error) {
	query := url.Values{}
	query.Set("identifier", id)
	query.Set("type", "hash")

	body, err := c.get(ctx, "/v2/farcaster/cast", query)
	if err != nil {
		return nil, err
	}

	var response struct {
		Cast apiCast `json:"cast"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parse cast response: %w", err)
	}

	cast := response.Cast.toCast()
	return &cast, nil
}

// Thread fetches the conversation under a cast. Replies are flattened
// depth-first in the order the hub returns them, capped at ThreadDepth casts.
func (c *HTTPClient) Thread(ctx context.Context, parentID string) ([]Cast, error) {
	depth := c.cfg.ThreadDepth
	if depth > maxReplyDepth {
		depth = maxReplyDepth
	}

	query := url.Values{}
	query.Set("identifier", parentID)
	query.Set("type", "hash")
	query.Set("reply_depth", strconv.Itoa(depth))

	body, err := c.get(ctx, "/v2/farcaster/cast/conversation", query)
	if err != nil {
		return nil, err
	}

	var response struct {
		Conversation struct {
			Cast apiCast `json:"cast"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parse conversation response: %w", err)
	}

	casts := flattenThread(response.Conversation.Cast, c.cfg.ThreadDepth)
	c.logger.Debug("Fetched thread",
		zap.String("parent_hash", parentID),
		zap.Int("casts", len(casts)))
	return casts, nil
}

// flattenThread walks a conversation tree depth-first, root first, and
// returns at most limit casts.
func flattenThread(root apiCast, limit int) []Cast {
	casts := make([]Cast, 0, limit)
	var walk func(node apiCast)
	walk = func(node apiCast) {
		if len(casts) >= limit {
			return
		}
		casts = append(casts, node.toCast())
		for _, reply := range node.DirectReplies {
			walk(reply)
		}
	}
	walk(root)
	return casts
}

// PostReply publishes a reply under the given cast.
func (c *HTTPClient) PostReply(ctx context.Context, parentID, text string) error {
	payload := map[string]any{
		"signer_uuid": c.cfg.SignerUUID,
		"text":        text,
		"parent":      parentID,
	}
	if err := c.post(ctx, "/v2/farcaster/cast", payload); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}

	c.logger.Info("Posted reply",
		zap.String("parent_hash", parentID),
		zap.Int("length", len(text)))
	return nil
}

// PostCast publishes a standalone cast, optionally quoting another cast.
func (c *HTTPClient) PostCast(ctx context.Context, text, embedCastID string) error {
	payload := map[string]any{
		"signer_uuid": c.cfg.SignerUUID,
		"text":        text,
	}
	if embedCastID != "" {
		payload["embeds"] = []map[string]any{
			{"cast_id": map[string]string{"hash": embedCastID}},
		}
	}
	if err := c.post(ctx, "/v2/farcaster/cast", payload); err != nil {
		return fmt.Errorf("post cast: %w", err)
	}

	c.logger.Info("Posted cast",
		zap.String("embed_hash", embedCastID),
		zap.Int("length", len(text)))
	return nil
}

// UserScore returns the hub's account quality score for a fid.
func (c *HTTPClient) UserScore(ctx context.Context, fid int64) (float64, error) {
	user, err := c.User(ctx, fid)
	if err != nil {
		return 0, err
	}
	return user.Score, nil
}

// User fetches an account by fid.
func (c *HTTPClient) User(ctx context.Context, fid int64) (*User, error) {
	query := url.Values{}
	query.Set("fids", strconv.FormatInt(fid, 10))

	body, err := c.get(ctx, "/v2/farcaster/user/bulk", query)
	if err != nil {
		return nil, err
	}

	var response struct {
		Users []apiUser `json:"users"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parse user response: %w", err)
	}
	if len(response.Users) == 0 {
		return nil, fmt.Errorf("fid %d: %w", fid, apperrors.ErrNotFound)
	}

	user := response.Users[0].toUser()
	return &user, nil
}

// UserByHandle fetches an account by username. A leading @ is tolerated.
func (c *HTTPClient) UserByHandle(ctx context.Context, handle string) (*User, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")

	query := url.Values{}
	query.Set("username", handle)

	body, err := c.get(ctx, "/v2/farcaster/user/by_username", query)
	if err != nil {
		return nil, err
	}

	var response struct {
		User apiUser `json:"user"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parse user response: %w", err)
	}

	user := response.User.toUser()
	return &user, nil
}

// get executes a GET request against the hub API and returns the response
// body. Missing resources map to apperrors.ErrNotFound.
func (c *HTTPClient) get(ctx context.Context, apiPath string, query url.Values) ([]byte, error) {
	endpoint := c.cfg.BaseURL + apiPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// post executes a JSON POST request against the hub API.
func (c *HTTPClient) post(ctx context.Context, apiPath string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+apiPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call hub API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", req.URL.Path, apperrors.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Hub API returned error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("hub API returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Ensure HTTPClient implements Client at compile time.
var _ Client = (*HTTPClient)(nil)
