// Package assistant implements the Clinical Assistant client: the outbound
// bridge to the Gemini generateContent API. It sends the running chat
// transcript, the doctor's specialty context and a summary of the current
// canvas, and returns the assistant's reply text plus any structured
// manageCanvas tool calls. Tool call fields come back as raw strings; callers
// validate them when reconciling against the canvas.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"

	// fallbackReply is returned when the model emits tool calls but no text,
	// so the clinician always sees a confirmation in chat.
	fallbackReply = "I've processed your request. Please check the clinical workspace for updates."
)

// ErrUnavailable wraps transport and API failures so callers can degrade to
// chat-only mode without inspecting provider error shapes.
var ErrUnavailable = errors.New("assistant unavailable")

// Role labels one side of the chat transcript.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Turn is one prior message in the conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// DoctorContext carries the specialty profile injected into the system
// instruction so the assistant speaks in the doctor's clinical register.
type DoctorContext struct {
	Name          string   `json:"name"`
	Specialty     string   `json:"specialty"`
	Qualification string   `json:"qualification,omitempty"`
	Experience    int      `json:"experience,omitempty"`
	Diagnoses     []string `json:"diagnoses,omitempty"`
	Medications   []string `json:"medications,omitempty"`
}

// Request is one full prompt to the assistant.
type Request struct {
	History       []Turn
	Message       string
	Doctor        DoctorContext
	CanvasSummary string
	Mode          string
}

// ToolCall is one manageCanvas invocation as the model emitted it. Fields are
// raw strings; invalid values surface as malformed outcomes downstream rather
// than errors here.
type ToolCall struct {
	Action string                 `json:"action"`
	Type   string                 `json:"type"`
	Title  string                 `json:"title,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Response is the assistant's reply: chat text plus zero or more tool calls.
type Response struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// Client is the Clinical Assistant contract the session service depends on.
type Client interface {
	SendMessage(ctx context.Context, req Request) (*Response, error)
}

// ---------------------------------------------------------------------------
// Gemini client
// ---------------------------------------------------------------------------

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GeminiClient) { g.httpClient = c }
}

// WithBaseURL overrides the API base URL; tests point it at a local server.
func WithBaseURL(u string) Option {
	return func(g *GeminiClient) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithModel overrides the model name.
func WithModel(m string) Option {
	return func(g *GeminiClient) { g.model = m }
}

// GeminiClient talks to the Gemini generateContent endpoint over plain HTTP.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewGeminiClient creates a client with a 30s default timeout.
func NewGeminiClient(apiKey string, logger zerolog.Logger, opts ...Option) *GeminiClient {
	g := &GeminiClient{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Configured reports whether an API key is set. An unconfigured client still
// satisfies the interface; SendMessage returns ErrUnavailable.
func (g *GeminiClient) Configured() bool {
	return g.apiKey != ""
}

// Wire shapes for the generateContent request and response. Only the parts
// this service reads are modelled.

type wirePart struct {
	Text         string            `json:"text,omitempty"`
	FunctionCall *wireFunctionCall `json:"functionCall,omitempty"`
}

type wireFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type wireTool struct {
	FunctionDeclarations []wireFunctionDeclaration `json:"functionDeclarations"`
}

type wireFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type wireRequest struct {
	Contents          []wireContent        `json:"contents"`
	SystemInstruction *wireContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  wireGenerationConfig `json:"generationConfig"`
	Tools             []wireTool           `json:"tools,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// manageCanvasDeclaration is the single tool exposed to the model. The type
// enum mirrors the canvas component types the reconciler accepts.
func manageCanvasDeclaration() wireFunctionDeclaration {
	return wireFunctionDeclaration{
		Name:        "manageCanvas",
		Description: "Adds, updates, or removes medical UI components. Use 'update' for Chat-to-Form synchronization (filling values like BP or symptoms).",
		Parameters: map[string]interface{}{
			"type": "OBJECT",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{
					"type": "STRING",
					"enum": []string{"add", "remove", "update"},
				},
				"type": map[string]interface{}{
					"type": "STRING",
					"enum": []string{
						"vitals", "diagnosis", "prescription", "notes",
						"lab_order", "form", "checklist", "chief_complaints",
						"dental_chart", "body_map",
					},
				},
				"title": map[string]interface{}{"type": "STRING"},
				"data": map[string]interface{}{
					"type":        "OBJECT",
					"description": "For 'vitals', pass {bp: '120/80'}. For 'form', pass {fields: [{id: 'f1', value: 'New Val'}]}. For 'chief_complaints', pass {tags: ['Tag1']}.",
				},
			},
			"required": []string{"action", "type"},
		},
	}
}

// SendMessage sends one prompt and parses the reply. The transcript is folded
// into a single user turn because the function-calling endpoint behaves best
// with a flat prompt plus a rich system instruction.
func (g *GeminiClient) SendMessage(ctx context.Context, req Request) (*Response, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}

	body := wireRequest{
		Contents: []wireContent{{
			Role:  "user",
			Parts: []wirePart{{Text: buildPrompt(req)}},
		}},
		SystemInstruction: &wireContent{
			Parts: []wirePart{{Text: buildSystemInstruction(req)}},
		},
		GenerationConfig: wireGenerationConfig{
			Temperature:     0.1,
			MaxOutputTokens: 2048,
		},
		Tools: []wireTool{{
			FunctionDeclarations: []wireFunctionDeclaration{manageCanvasDeclaration()},
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if wire.Error != nil {
			msg = wire.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}

	out := parseCandidates(wire)
	g.logger.Debug().
		Str("model", g.model).
		Dur("duration", time.Since(start)).
		Int("tool_calls", len(out.ToolCalls)).
		Msg("assistant reply received")
	return out, nil
}

// parseCandidates extracts the first candidate's text and every manageCanvas
// function call, in part order.
func parseCandidates(wire wireResponse) *Response {
	out := &Response{}
	if len(wire.Candidates) == 0 {
		out.Text = fallbackReply
		return out
	}
	for _, part := range wire.Candidates[0].Content.Parts {
		if part.Text != "" && out.Text == "" {
			out.Text = part.Text
		}
		if fc := part.FunctionCall; fc != nil && fc.Name == "manageCanvas" {
			out.ToolCalls = append(out.ToolCalls, toolCallFromArgs(fc.Args))
		}
	}
	if out.Text == "" {
		out.Text = fallbackReply
	}
	return out
}

// toolCallFromArgs lifts the loosely typed args map into a ToolCall. Missing
// or mistyped fields come through as zero values, not errors.
func toolCallFromArgs(args map[string]interface{}) ToolCall {
	call := ToolCall{}
	if v, ok := args["action"].(string); ok {
		call.Action = v
	}
	if v, ok := args["type"].(string); ok {
		call.Type = v
	}
	if v, ok := args["title"].(string); ok {
		call.Title = v
	}
	if v, ok := args["data"].(map[string]interface{}); ok {
		call.Data = v
	}
	return call
}

// buildPrompt flattens the transcript and appends the new message.
func buildPrompt(req Request) string {
	var b strings.Builder
	wrote := false
	for _, turn := range req.History {
		if turn.Role == RoleSystem {
			continue
		}
		if !wrote {
			b.WriteString("Previous conversation:\n")
			wrote = true
		}
		label := "User"
		if turn.Role == RoleModel {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	if wrote {
		b.WriteString("\nUser: ")
	}
	b.WriteString(req.Message)
	return b.String()
}

// buildSystemInstruction composes the persona, the chat-to-form contract and
// the current canvas snapshot into the system instruction.
func buildSystemInstruction(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an intelligent clinical scribe for %s, a %s.\n\n", req.Doctor.Name, req.Doctor.Specialty)
	b.WriteString("CRITICAL INSTRUCTION: You MUST ALWAYS provide a text response for every user message. ")
	b.WriteString("Even if you call 'manageCanvas' to update the UI, you MUST verbally confirm what you did in the chat.\n\n")
	b.WriteString("CHAT-TO-FORM SYNC: when the doctor mentions clinical values (e.g. \"BP is 120/80\"), call 'manageCanvas' with action 'update'.\n\n")

	b.WriteString("Doctor Context:\n")
	if req.Doctor.Qualification != "" {
		fmt.Fprintf(&b, "- Qualification: %s\n", req.Doctor.Qualification)
	}
	if req.Doctor.Experience > 0 {
		fmt.Fprintf(&b, "- Experience: %d years\n", req.Doctor.Experience)
	}
	if len(req.Doctor.Diagnoses) > 0 {
		fmt.Fprintf(&b, "- Common Diagnoses: %s\n", strings.Join(req.Doctor.Diagnoses, ", "))
	}
	if len(req.Doctor.Medications) > 0 {
		fmt.Fprintf(&b, "- Common Medications: %s\n", strings.Join(req.Doctor.Medications, ", "))
	}
	if req.Mode != "" {
		fmt.Fprintf(&b, "- Workspace Mode: %s\n", req.Mode)
	}

	fmt.Fprintf(&b, "\nCanvas Context: %s\n\n", req.CanvasSummary)
	b.WriteString("1. Identify clinical parameters and map them to existing components.\n")
	b.WriteString("2. If a new section is requested, use action 'add'.\n")
	b.WriteString("3. Keep responses concise and clinical.\n")
	return b.String()
}
