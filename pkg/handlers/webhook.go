package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/audit"
	"github.com/roadcast-labs/roadcast/pkg/config"
	"github.com/roadcast-labs/roadcast/pkg/models"
)

const (
	// signatureHeader carries the hex HMAC of the raw request body.
	signatureHeader = "X-Neynar-Signature"

	// maxWebhookBody bounds how much of a delivery we will read.
	maxWebhookBody = 1 << 20

	eventTypeCastCreated = "cast.created"
)

// MentionProcessor consumes mention events decoded from webhook deliveries.
type MentionProcessor interface {
	Process(ctx context.Context, event models.MentionEvent)
}

// webhookEnvelope is the Neynar-style event wrapper.
type webhookEnvelope struct {
	Type string          `json:"type"`
	Data webhookCastData `json:"data"`
}

type webhookCastData struct {
	Hash              string           `json:"hash"`
	Text              string           `json:"text"`
	ParentHash        *string          `json:"parent_hash"`
	Author            webhookProfile   `json:"author"`
	MentionedProfiles []webhookProfile `json:"mentioned_profiles"`
}

type webhookProfile struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
}

// WebhookHandler receives mention events from the Farcaster webhook. It
// acknowledges deliveries immediately and processes them asynchronously so
// a slow LLM call can never make the webhook provider retry.
type WebhookHandler struct {
	cfg       *config.Config
	processor MentionProcessor
	security  *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. security may be nil.
func NewWebhookHandler(cfg *config.Config, processor MentionProcessor, security *audit.SecurityAuditor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, processor: processor, security: security, logger: logger.Named("webhook")}
}

// RegisterRoutes registers the webhook routes on the given mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/farcaster", h.Receive)
	mux.HandleFunc("POST /webhook/test", h.ReceiveTest)
}

// Receive handles POST /webhook/farcaster. When a webhook secret is
// configured the delivery must carry a valid signature; without one the
// endpoint trusts the network boundary.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}

	if secret := h.cfg.Farcaster.WebhookSecret; secret != "" {
		if !verifySignature(body, r.Header.Get(signatureHeader), secret) {
			h.security.LogSignatureRejected(r.RemoteAddr, len(body))
			h.writeError(w, http.StatusUnauthorized, "invalid_signature", "Signature verification failed")
			return
		}
	}

	h.handleEvent(w, body)
}

// ReceiveTest handles POST /webhook/test: the same pipeline without a
// signature, for poking the bot during development. Disabled in production.
func (h *WebhookHandler) ReceiveTest(w http.ResponseWriter, r *http.Request) {
	if h.cfg.IsProduction() {
		h.writeError(w, http.StatusNotFound, "not_found", "Not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}

	h.handleEvent(w, body)
}

func (h *WebhookHandler) handleEvent(w http.ResponseWriter, body []byte) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
		return
	}

	if envelope.Type != eventTypeCastCreated {
		h.writeStatus(w, "ignored")
		return
	}
	if envelope.Data.Hash == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "Cast hash is required")
		return
	}
	if !h.mentionsBot(envelope.Data) {
		h.writeStatus(w, "ignored")
		return
	}

	h.dispatch(h.mentionEvent(envelope.Data))
	h.writeStatus(w, "accepted")
}

// dispatch hands the event to the processor on its own goroutine with a
// context detached from the HTTP request, which has already been answered.
func (h *WebhookHandler) dispatch(event models.MentionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeouts.Run())
	go func() {
		defer cancel()
		h.processor.Process(ctx, event)
	}()
}

func (h *WebhookHandler) mentionEvent(data webhookCastData) models.MentionEvent {
	event := models.MentionEvent{
		CastID:         data.Hash,
		Text:           data.Text,
		AuthorFID:      data.Author.FID,
		AuthorUsername: data.Author.Username,
	}
	if data.ParentHash != nil {
		event.ParentCastID = *data.ParentHash
	}
	return event
}

// mentionsBot reports whether the cast actually tags the bot. The webhook
// subscription should already filter, but deliveries for other casts do
// arrive and must not be processed.
func (h *WebhookHandler) mentionsBot(data webhookCastData) bool {
	for _, profile := range data.MentionedProfiles {
		if h.cfg.Farcaster.BotFID != 0 && profile.FID == h.cfg.Farcaster.BotFID {
			return true
		}
		if profile.Username != "" && strings.EqualFold(profile.Username, h.cfg.Farcaster.BotHandle) {
			return true
		}
	}
	return containsMention(data.Text, h.cfg.Farcaster.BotHandle)
}

func (h *WebhookHandler) writeStatus(w http.ResponseWriter, status string) {
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": status}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// containsMention reports whether text contains @handle as a full handle,
// not a prefix of a longer one.
func containsMention(text, handle string) bool {
	handle = strings.ToLower(strings.TrimPrefix(handle, "@"))
	if handle == "" {
		return false
	}
	needle := "@" + handle
	lower := strings.ToLower(text)
	for i := 0; ; {
		j := strings.Index(lower[i:], needle)
		if j < 0 {
			return false
		}
		end := i + j + len(needle)
		if end >= len(lower) || !isHandleByte(lower[end]) {
			return true
		}
		i = end
	}
}

func isHandleByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' ||
		('a' <= c && c <= 'z') || ('0' <= c && c <= '9')
}

// verifySignature compares the hex HMAC-SHA256 of body against the header
// value in constant time.
func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
