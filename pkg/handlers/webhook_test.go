package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/roadcast-labs/roadcast/pkg/config"
	"github.com/roadcast-labs/roadcast/pkg/models"
)

// mockMentionProcessor records dispatched events on a channel so tests can
// synchronize with the handler's async processing goroutine.
type mockMentionProcessor struct {
	events chan models.MentionEvent
}

func newMockMentionProcessor() *mockMentionProcessor {
	return &mockMentionProcessor{events: make(chan models.MentionEvent, 8)}
}

func (m *mockMentionProcessor) Process(ctx context.Context, event models.MentionEvent) {
	m.events <- event
}

func (m *mockMentionProcessor) waitForEvent(t *testing.T) models.MentionEvent {
	t.Helper()
	select {
	case event := <-m.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("expected a mention event to be dispatched")
		return models.MentionEvent{}
	}
}

func (m *mockMentionProcessor) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case event := <-m.events:
		t.Fatalf("unexpected mention event dispatched: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func newWebhookFixture(secret, env string) (*WebhookHandler, *mockMentionProcessor) {
	cfg := &config.Config{
		Env: env,
		Farcaster: config.FarcasterConfig{
			WebhookSecret: secret,
			BotFID:        99,
			BotHandle:     "roadcast",
		},
		Timeouts: config.TimeoutsConfig{RunSeconds: 5},
	}
	processor := newMockMentionProcessor()
	return NewWebhookHandler(cfg, processor, nil, zap.NewNop()), processor
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

const mentionPayload = `{
	"type": "cast.created",
	"data": {
		"hash": "0xabc",
		"text": "@roadcast add dark mode to @base",
		"parent_hash": "0xdef",
		"author": {"fid": 501, "username": "carol"},
		"mentioned_profiles": [{"fid": 99, "username": "roadcast"}]
	}
}`

func TestWebhookHandler_Receive_DispatchesMention(t *testing.T) {
	handler, processor := newWebhookFixture("shhh", "test")

	body := []byte(mentionPayload)
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", bytes.NewReader(body))
	req.Header.Set(signatureHeader, signPayload("shhh", body))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "accepted" {
		t.Errorf("expected status 'accepted', got '%s'", response["status"])
	}

	event := processor.waitForEvent(t)
	if event.CastID != "0xabc" {
		t.Errorf("expected cast ID '0xabc', got '%s'", event.CastID)
	}
	if event.Text != "@roadcast add dark mode to @base" {
		t.Errorf("unexpected event text: %q", event.Text)
	}
	if event.AuthorFID != 501 {
		t.Errorf("expected author FID 501, got %d", event.AuthorFID)
	}
	if event.AuthorUsername != "carol" {
		t.Errorf("expected author username 'carol', got '%s'", event.AuthorUsername)
	}
	if event.ParentCastID != "0xdef" {
		t.Errorf("expected parent cast ID '0xdef', got '%s'", event.ParentCastID)
	}
}

func TestWebhookHandler_Receive_UppercaseSignatureAccepted(t *testing.T) {
	handler, processor := newWebhookFixture("shhh", "test")

	body := []byte(mentionPayload)
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", bytes.NewReader(body))
	req.Header.Set(signatureHeader, strings.ToUpper(signPayload("shhh", body)))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	processor.waitForEvent(t)
}

func TestWebhookHandler_Receive_RejectsBadSignature(t *testing.T) {
	handler, processor := newWebhookFixture("shhh", "test")

	body := []byte(mentionPayload)
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", bytes.NewReader(body))
	req.Header.Set(signatureHeader, signPayload("wrong-secret", body))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "invalid_signature" {
		t.Errorf("expected error 'invalid_signature', got '%s'", response["error"])
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_Receive_RejectsMissingSignature(t *testing.T) {
	handler, processor := newWebhookFixture("shhh", "test")

	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(mentionPayload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_Receive_NoSecretSkipsVerification(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(mentionPayload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	processor.waitForEvent(t)
}

func TestWebhookHandler_Receive_MalformedJSON(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "invalid_payload" {
		t.Errorf("expected error 'invalid_payload', got '%s'", response["error"])
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_Receive_MissingCastHash(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	payload := `{"type": "cast.created", "data": {"text": "@roadcast hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_Receive_IgnoresOtherEventTypes(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	payload := `{"type": "reaction.created", "data": {"hash": "0xabc"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ignored" {
		t.Errorf("expected status 'ignored', got '%s'", response["status"])
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_Receive_IgnoresCastsWithoutBotMention(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	payload := `{
		"type": "cast.created",
		"data": {
			"hash": "0xabc",
			"text": "just chatting about roadmaps",
			"author": {"fid": 501, "username": "carol"},
			"mentioned_profiles": [{"fid": 777, "username": "alice"}]
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ignored" {
		t.Errorf("expected status 'ignored', got '%s'", response["status"])
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_Receive_MentionDetectedFromText(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	// No mentioned_profiles entry for the bot, but the text tags it.
	payload := `{
		"type": "cast.created",
		"data": {
			"hash": "0xabc",
			"text": "hey @roadcast, add polls please",
			"author": {"fid": 501, "username": "carol"},
			"mentioned_profiles": []
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	event := processor.waitForEvent(t)
	if event.CastID != "0xabc" {
		t.Errorf("expected cast ID '0xabc', got '%s'", event.CastID)
	}
}

func TestWebhookHandler_Receive_TopLevelCastHasNoParent(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	payload := `{
		"type": "cast.created",
		"data": {
			"hash": "0xabc",
			"text": "@roadcast add dark mode to @base",
			"parent_hash": null,
			"author": {"fid": 501, "username": "carol"},
			"mentioned_profiles": [{"fid": 99, "username": "roadcast"}]
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/farcaster", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.Receive(rec, req)

	event := processor.waitForEvent(t)
	if event.ParentCastID != "" {
		t.Errorf("expected empty parent cast ID, got '%s'", event.ParentCastID)
	}
}

func TestWebhookHandler_ReceiveTest_SkipsSignature(t *testing.T) {
	handler, processor := newWebhookFixture("shhh", "test")

	req := httptest.NewRequest(http.MethodPost, "/webhook/test", strings.NewReader(mentionPayload))
	rec := httptest.NewRecorder()

	handler.ReceiveTest(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	processor.waitForEvent(t)
}

func TestWebhookHandler_ReceiveTest_DisabledInProduction(t *testing.T) {
	handler, processor := newWebhookFixture("shhh", "production")

	req := httptest.NewRequest(http.MethodPost, "/webhook/test", strings.NewReader(mentionPayload))
	rec := httptest.NewRecorder()

	handler.ReceiveTest(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	processor.expectNoEvent(t)
}

func TestWebhookHandler_RejectsNonPOST(t *testing.T) {
	handler, processor := newWebhookFixture("", "test")

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/webhook/farcaster", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	processor.expectNoEvent(t)
}

func TestContainsMention(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		handle string
		want   bool
	}{
		{"plain mention", "hey @roadcast add polls", "roadcast", true},
		{"mention at end", "ship it @roadcast", "roadcast", true},
		{"case insensitive", "hey @RoadCast!", "roadcast", true},
		{"punctuation after handle", "@roadcast, please", "roadcast", true},
		{"prefix of longer handle", "follow @roadcaster for updates", "roadcast", false},
		{"dotted longer handle", "that's @roadcast.eth not me", "roadcast", false},
		{"later occurrence counts", "cc @roadcaster and @roadcast", "roadcast", true},
		{"no mention", "talking about roadcast the app", "roadcast", false},
		{"handle with at prefix", "hey @roadcast", "@roadcast", true},
		{"empty handle", "hey @roadcast", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsMention(tt.text, tt.handle); got != tt.want {
				t.Errorf("containsMention(%q, %q) = %v, want %v", tt.text, tt.handle, got, tt.want)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"cast.created"}`)
	valid := signPayload("secret", body)

	if !verifySignature(body, valid, "secret") {
		t.Error("expected valid signature to verify")
	}
	if !verifySignature(body, strings.ToUpper(valid), "secret") {
		t.Error("expected uppercase hex signature to verify")
	}
	if verifySignature(body, valid, "other-secret") {
		t.Error("expected signature with wrong secret to fail")
	}
	if verifySignature(body, "", "secret") {
		t.Error("expected empty signature to fail")
	}
	if verifySignature([]byte("tampered"), valid, "secret") {
		t.Error("expected signature over different body to fail")
	}
}
