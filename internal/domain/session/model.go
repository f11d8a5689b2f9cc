// Package session implements the consultation workspace: the chat transcript,
// the builder and live canvases, and the orchestration between the clinician,
// the Clinical Assistant and the reconciler. One workspace belongs to one
// doctor and moves through two modes: template building, then the patient
// session that starts from a deep copy of the built template.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/cliniq/emr/internal/domain/canvas"
)

// Mode is the workspace phase. Tool calls and manual edits target the
// builder canvas until the template is finished, then the live canvas.
type Mode string

const (
	ModeTemplateBuilder Mode = "template_builder"
	ModePatientSession  Mode = "patient_session"
)

var validModes = map[Mode]bool{
	ModeTemplateBuilder: true, ModePatientSession: true,
}

var (
	// ErrNotFound is returned for unknown workspace ids.
	ErrNotFound = errors.New("workspace not found")
	// ErrClosed is returned when operating on a closed workspace.
	ErrClosed = errors.New("workspace is closed")
	// ErrAssistantUnavailable is returned when the Clinical Assistant cannot
	// be reached; the user message is still recorded so the transcript
	// stays coherent.
	ErrAssistantUnavailable = errors.New("clinical assistant unavailable")
	// ErrWrongMode is returned when an operation is not valid in the
	// workspace's current mode.
	ErrWrongMode = errors.New("operation not valid in current workspace mode")
)

// MessageRole labels who authored a chat message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleModel  MessageRole = "model"
	RoleSystem MessageRole = "system"
)

// ChatMessage is one entry in a workspace transcript.
type ChatMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// Workspace is one doctor's consultation session. Each mode owns its own
// collection and transcript pair; the patient transcript starts empty even
// though the patient canvas starts from the built template. chatMu
// serializes assistant round trips so two concurrent submissions apply in
// arrival order; mu guards the transcripts and canvases and is released
// while an assistant call is in flight, keeping snapshot reads responsive.
type Workspace struct {
	ID        string
	DoctorID  string
	Mode      Mode
	CreatedAt time.Time
	UpdatedAt time.Time

	mu          sync.Mutex
	chatMu      sync.Mutex
	builderMsgs []ChatMessage
	liveMsgs    []ChatMessage
	builder     *canvas.Collection
	live        *canvas.Collection
	closed      bool
}

// activeCanvas returns the collection edits currently target. Callers hold
// w.mu.
func (w *Workspace) activeCanvas() *canvas.Collection {
	if w.Mode == ModePatientSession {
		return w.live
	}
	return w.builder
}

// activeMessages returns the transcript for the current mode. Callers hold
// w.mu.
func (w *Workspace) activeMessages() *[]ChatMessage {
	if w.Mode == ModePatientSession {
		return &w.liveMsgs
	}
	return &w.builderMsgs
}

// Snapshot is the wire representation of a workspace.
type Snapshot struct {
	ID         string              `json:"id"`
	DoctorID   string              `json:"doctorId"`
	Mode       Mode                `json:"mode"`
	Closed     bool                `json:"closed"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
	Messages   []ChatMessage       `json:"messages"`
	Components []*canvas.Component `json:"components"`
}

// snapshotLocked builds a snapshot of the active mode's collection and
// transcript; callers hold w.mu.
func (w *Workspace) snapshotLocked() *Snapshot {
	active := *w.activeMessages()
	msgs := make([]ChatMessage, len(active))
	copy(msgs, active)
	return &Snapshot{
		ID:         w.ID,
		DoctorID:   w.DoctorID,
		Mode:       w.Mode,
		Closed:     w.closed,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
		Messages:   msgs,
		Components: w.activeCanvas().Components(),
	}
}

// MessageResult is what one chat submission produces: the assistant's reply
// plus the reconciliation outcome of every tool call it emitted.
type MessageResult struct {
	UserMessage ChatMessage          `json:"userMessage"`
	Reply       ChatMessage          `json:"reply"`
	Outcomes    []canvas.CallOutcome `json:"outcomes,omitempty"`
	Components  []*canvas.Component  `json:"components"`
}
