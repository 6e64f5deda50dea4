package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	response := `{"intent": "add_feature", "confidence": 0.9}`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != response {
		t.Errorf("expected %q, got %q", response, result)
	}
}

func TestExtractJSON_PlainArray(t *testing.T) {
	response := `[{"title": "dark mode"}, {"title": "csv export"}]`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != response {
		t.Errorf("expected %q, got %q", response, result)
	}
}

func TestExtractJSON_WithThinkTags(t *testing.T) {
	response := `<think>
The user wants a new feature on the board.
</think>
{"intent": "add_feature"}`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"intent": "add_feature"}` {
		t.Errorf("expected think tags stripped, got %q", result)
	}
}

func TestExtractJSON_WithSurroundingProse(t *testing.T) {
	response := `Sure, here is the classification you asked for:

{"intent": "create_project", "confidence": 0.8}

Let me know if you need anything else.`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"intent": "create_project", "confidence": 0.8}` {
		t.Errorf("expected bare JSON object, got %q", result)
	}
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	response := "```json\n{\"intent\": \"unknown\"}\n```"
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"intent": "unknown"}` {
		t.Errorf("expected fenced JSON extracted, got %q", result)
	}
}

func TestExtractJSON_NestedObject(t *testing.T) {
	response := `{"features": [{"title": "a", "sub_items": [{"title": "b"}]}]}`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != response {
		t.Errorf("expected nested JSON intact, got %q", result)
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	response := `{"title": "fix the {weird} rendering", "description": "braces } in text"}`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != response {
		t.Errorf("expected string braces ignored, got %q", result)
	}
}

func TestExtractJSON_EscapedQuotes(t *testing.T) {
	response := `{"title": "support \"quoted\" names"}`
	result, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != response {
		t.Errorf("expected escaped quotes handled, got %q", result)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I could not find any features in that message.")
	if err == nil {
		t.Fatal("expected error for prose with no JSON")
	}
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestExtractJSON_UnbalancedBraces(t *testing.T) {
	_, err := ExtractJSON(`{"intent": "add_feature"`)
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON for truncated JSON, got %v", err)
	}
}

func TestExtractJSON_EmptyInput(t *testing.T) {
	_, err := ExtractJSON("")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON for empty input, got %v", err)
	}
}

func TestParseJSONResponse(t *testing.T) {
	type classification struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}

	response := `The message looks like a feature request.
{"intent": "add_feature", "confidence": 0.85}`

	result, err := ParseJSONResponse[classification](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != "add_feature" {
		t.Errorf("expected intent add_feature, got %q", result.Intent)
	}
	if result.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", result.Confidence)
	}
}

func TestParseJSONResponse_Slice(t *testing.T) {
	type feature struct {
		Title string `json:"title"`
	}

	response := `[{"title": "dark mode"}, {"title": "csv export"}]`
	result, err := ParseJSONResponse[[]feature](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 features, got %d", len(result))
	}
	if result[0].Title != "dark mode" || result[1].Title != "csv export" {
		t.Errorf("unexpected titles: %+v", result)
	}
}

func TestParseJSONResponse_NoJSON(t *testing.T) {
	type classification struct {
		Intent string `json:"intent"`
	}

	_, err := ParseJSONResponse[classification]("no json here")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestParseJSONResponse_WrongShape(t *testing.T) {
	type classification struct {
		Confidence float64 `json:"confidence"`
	}

	_, err := ParseJSONResponse[classification](`{"confidence": "not-a-number-and-not-quoted-digits"}`)
	if err == nil {
		t.Fatal("expected unmarshal error for mismatched shape")
	}
	if errors.Is(err, ErrNoJSON) {
		t.Error("unmarshal failures should stay distinguishable from extraction failures")
	}
	if !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}
