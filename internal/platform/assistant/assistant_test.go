package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// helper: spin up a fake generateContent endpoint returning the given body.
func newTestClient(t *testing.T, status int, body string, capture *wireRequest) (*GeminiClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, capture); err != nil {
				t.Errorf("request body is not valid JSON: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	client := NewGeminiClient("test-key", zerolog.Nop(), WithBaseURL(srv.URL))
	return client, srv
}

func TestSendMessage_TextAndToolCall(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {
				"parts": [
					{"text": "Recorded BP 120/80 in vitals."},
					{"functionCall": {"name": "manageCanvas", "args": {
						"action": "update",
						"type": "vitals",
						"data": {"bp": "120/80"}
					}}}
				]
			}
		}]
	}`
	client, _ := newTestClient(t, http.StatusOK, body, nil)

	resp, err := client.SendMessage(context.Background(), Request{Message: "BP is 120/80"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Recorded BP 120/80 in vitals." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Action != "update" || call.Type != "vitals" {
		t.Errorf("unexpected tool call: %+v", call)
	}
	if call.Data["bp"] != "120/80" {
		t.Errorf("unexpected tool call data: %v", call.Data)
	}
}

func TestSendMessage_MultipleToolCalls(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {
				"parts": [
					{"functionCall": {"name": "manageCanvas", "args": {"action": "add", "type": "vitals"}}},
					{"functionCall": {"name": "manageCanvas", "args": {"action": "add", "type": "prescription"}}}
				]
			}
		}]
	}`
	client, _ := newTestClient(t, http.StatusOK, body, nil)

	resp, err := client.SendMessage(context.Background(), Request{Message: "start a consult"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Type != "vitals" || resp.ToolCalls[1].Type != "prescription" {
		t.Errorf("tool call order not preserved: %+v", resp.ToolCalls)
	}
	// No text part: the canned confirmation fills in.
	if resp.Text == "" {
		t.Error("expected fallback text when the model emits only tool calls")
	}
}

func TestSendMessage_IgnoresForeignFunctionCalls(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {
				"parts": [
					{"text": "ok"},
					{"functionCall": {"name": "somethingElse", "args": {"action": "add", "type": "vitals"}}}
				]
			}
		}]
	}`
	client, _ := newTestClient(t, http.StatusOK, body, nil)

	resp, err := client.SendMessage(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %+v", resp.ToolCalls)
	}
}

func TestSendMessage_NoCandidates(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{"candidates": []}`, nil)

	resp, err := client.SendMessage(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text == "" {
		t.Error("expected fallback text for an empty candidate list")
	}
}

func TestSendMessage_APIError(t *testing.T) {
	body := `{"error": {"code": 429, "message": "Resource has been exhausted", "status": "RESOURCE_EXHAUSTED"}}`
	client, _ := newTestClient(t, http.StatusTooManyRequests, body, nil)

	_, err := client.SendMessage(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "Resource has been exhausted") {
		t.Errorf("expected API message in error, got %v", err)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestSendMessage_NoAPIKey(t *testing.T) {
	client := NewGeminiClient("", zerolog.Nop())
	if client.Configured() {
		t.Error("expected Configured() false without a key")
	}
	_, err := client.SendMessage(context.Background(), Request{Message: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSendMessage_RequestShape(t *testing.T) {
	var captured wireRequest
	client, _ := newTestClient(t, http.StatusOK, `{"candidates": []}`, &captured)

	req := Request{
		History: []Turn{
			{Role: RoleUser, Text: "Patient has chest pain"},
			{Role: RoleModel, Text: "Noted, added chief complaints."},
			{Role: RoleSystem, Text: "internal marker"},
		},
		Message:       "BP is 140/90",
		Doctor:        DoctorContext{Name: "Dr. Rajesh Kumar", Specialty: "Cardiologist", Experience: 15},
		CanvasSummary: `[{"type":"vitals","data":{"bp":""}}]`,
		Mode:          "patient_session",
	}
	if _, err := client.SendMessage(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 1 {
		t.Fatalf("expected a single flattened user turn, got %+v", captured.Contents)
	}
	prompt := captured.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "Patient has chest pain") || !strings.Contains(prompt, "BP is 140/90") {
		t.Errorf("prompt missing transcript or message: %q", prompt)
	}
	if strings.Contains(prompt, "internal marker") {
		t.Error("system turns must be excluded from the prompt")
	}

	if captured.SystemInstruction == nil {
		t.Fatal("expected a system instruction")
	}
	sys := captured.SystemInstruction.Parts[0].Text
	for _, want := range []string{"Dr. Rajesh Kumar", "Cardiologist", `{"bp":""}`, "patient_session"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system instruction missing %q", want)
		}
	}

	if captured.GenerationConfig.Temperature != 0.1 || captured.GenerationConfig.MaxOutputTokens != 2048 {
		t.Errorf("unexpected generation config: %+v", captured.GenerationConfig)
	}
	if len(captured.Tools) != 1 || len(captured.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected the manageCanvas tool declaration, got %+v", captured.Tools)
	}
	if captured.Tools[0].FunctionDeclarations[0].Name != "manageCanvas" {
		t.Errorf("unexpected tool name: %q", captured.Tools[0].FunctionDeclarations[0].Name)
	}
}

func TestSendMessage_MistypedArgsBecomeZeroValues(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {
				"parts": [
					{"functionCall": {"name": "manageCanvas", "args": {"action": 42, "type": "vitals", "data": "not-a-map"}}}
				]
			}
		}]
	}`
	client, _ := newTestClient(t, http.StatusOK, body, nil)

	resp, err := client.SendMessage(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Action != "" || call.Type != "vitals" || call.Data != nil {
		t.Errorf("mistyped args must degrade to zero values, got %+v", call)
	}
}
