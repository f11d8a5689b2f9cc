package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniq/emr/internal/domain/canvas"
	"github.com/cliniq/emr/internal/platform/assistant"
	"github.com/cliniq/emr/internal/platform/seeding"
)

// Seeder produces the initial canvas for a new workspace.
type Seeder interface {
	Seed(ctx context.Context, doctorID string) ([]*canvas.Component, error)
}

// Event is one workspace change notification fanned out to subscribers.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Event types published by the service.
const (
	EventSessionCreated   = "session.created"
	EventSessionClosed    = "session.closed"
	EventMessageCreated   = "message.created"
	EventComponentAdded   = "component.added"
	EventComponentUpdated = "component.updated"
	EventComponentRemoved = "component.removed"
	EventTemplateFinished = "template.finished"
)

// EventPublisher fans workspace events out to connected clients.
type EventPublisher interface {
	Publish(sessionID string, event Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, Event) {}

// Service orchestrates workspaces: seeding, chat round trips, reconciliation
// and mode transitions.
type Service struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	order      []string

	directory  *seeding.Directory
	seeder     Seeder
	assistant  assistant.Client
	reconciler *canvas.Reconciler
	publisher  EventPublisher
	logger     zerolog.Logger
}

// NewService wires the workspace orchestrator. A nil publisher disables
// event fan-out.
func NewService(
	directory *seeding.Directory,
	seeder Seeder,
	client assistant.Client,
	reconciler *canvas.Reconciler,
	publisher EventPublisher,
	logger zerolog.Logger,
) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Service{
		workspaces: make(map[string]*Workspace),
		directory:  directory,
		seeder:     seeder,
		assistant:  client,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger,
	}
}

// CreateSession opens a workspace for the doctor, seeded with their
// specialty template. A seeding failure or an empty seed degrades to the
// generic starter canvas rather than opening a blank workspace.
func (s *Service) CreateSession(ctx context.Context, doctorID string, mode Mode) (*Snapshot, error) {
	seed, err := s.seeder.Seed(ctx, doctorID)
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID).Msg("seeding failed, using default template")
		seed = defaultSeed()
	} else if len(seed) == 0 {
		s.logger.Warn().Str("doctor_id", doctorID).Msg("seeder returned no components, using default template")
		seed = defaultSeed()
	}
	return s.CreateSessionFromSeed(doctorID, mode, seed)
}

// CreateSessionFromSeed opens a workspace with an explicit starting canvas,
// bypassing the specialty seeder. Used when a session starts from a saved
// template.
func (s *Service) CreateSessionFromSeed(doctorID string, mode Mode, seed []*canvas.Component) (*Snapshot, error) {
	if mode == "" {
		mode = ModeTemplateBuilder
	}
	if !validModes[mode] {
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}

	now := time.Now().UTC()
	w := &Workspace{
		ID:        uuid.New().String(),
		DoctorID:  doctorID,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
		builder:   canvas.NewCollection(),
		live:      canvas.NewCollection(),
	}
	for _, comp := range seed {
		// Seeds arrive as pre-id drafts; the workspace mints ids at
		// insertion and everything on a fresh canvas starts editable.
		if comp.ID == "" {
			comp.ID = uuid.New().String()
		}
		comp.IsEditable = true
		if err := w.builder.Append(comp); err != nil {
			s.logger.Warn().Err(err).Str("component", comp.Title).Msg("dropping invalid seed component")
		}
	}
	// A workspace opened directly in patient mode starts from the seed too.
	if mode == ModePatientSession {
		w.live.Replace(w.builder)
	}

	s.mu.Lock()
	s.workspaces[w.ID] = w
	s.order = append(s.order, w.ID)
	s.mu.Unlock()

	w.mu.Lock()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	s.publish(w.ID, EventSessionCreated, snap)
	return snap, nil
}

// GetSession returns a point-in-time snapshot.
func (s *Service) GetSession(id string) (*Snapshot, error) {
	w, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked(), nil
}

// ListSessions returns snapshots in creation order.
func (s *Service) ListSessions() []*Snapshot {
	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	out := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, err := s.GetSession(id); err == nil {
			out = append(out, snap)
		}
	}
	return out
}

// CloseSession marks the workspace closed. Further edits and messages are
// rejected; the transcript and canvas stay readable.
func (s *Service) CloseSession(id string) error {
	w, err := s.workspace(id)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.closed = true
	w.UpdatedAt = time.Now().UTC()
	w.mu.Unlock()
	s.publish(id, EventSessionClosed, nil)
	return nil
}

// SubmitMessage runs one chat round trip: record the user message, consult
// the assistant, record its reply and apply its tool calls to the canvas the
// workspace was editing when the message arrived. Round trips on the same
// workspace are serialized, but the workspace stays readable while a call is
// in flight. A reply that lands after Close is discarded.
func (s *Service) SubmitMessage(ctx context.Context, id, text string) (*MessageResult, error) {
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}
	w, err := s.workspace(id)
	if err != nil {
		return nil, err
	}

	w.chatMu.Lock()
	defer w.chatMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}

	msgs := w.activeMessages()
	history := make([]assistant.Turn, 0, len(*msgs))
	for _, m := range *msgs {
		history = append(history, assistant.Turn{Role: assistant.Role(m.Role), Text: m.Text})
	}

	userMsg := ChatMessage{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	*msgs = append(*msgs, userMsg)
	w.UpdatedAt = userMsg.Timestamp

	// The target canvas and transcript are fixed here; a mode change while
	// the call is in flight cannot redirect the reply.
	col := w.activeCanvas()
	mode := w.Mode
	w.mu.Unlock()

	doctor := s.directory.Get(w.DoctorID)
	resp, err := s.assistant.SendMessage(ctx, assistant.Request{
		History:       history,
		Message:       text,
		Doctor:        doctorContext(doctor),
		CanvasSummary: summarize(col),
		Mode:          string(mode),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("assistant call failed")
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	reply := ChatMessage{
		ID:        uuid.New().String(),
		Role:      RoleModel,
		Text:      resp.Text,
		Timestamp: time.Now().UTC(),
	}
	*msgs = append(*msgs, reply)
	w.UpdatedAt = reply.Timestamp

	outcomes := s.reconciler.Apply(col, convertCalls(resp.ToolCalls))
	s.publishOutcomes(id, col, outcomes)
	s.publish(id, EventMessageCreated, reply)

	return &MessageResult{
		UserMessage: userMsg,
		Reply:       reply,
		Outcomes:    outcomes,
		Components:  col.Components(),
	}, nil
}

// FinishBuilding promotes the built template into the live patient canvas.
// The live canvas becomes a deep copy; later patient edits never leak back
// into the template.
func (s *Service) FinishBuilding(id string) (*Snapshot, error) {
	w, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if w.Mode != ModeTemplateBuilder {
		return nil, ErrWrongMode
	}

	w.live.Replace(w.builder)
	w.Mode = ModePatientSession
	w.UpdatedAt = time.Now().UTC()

	snap := w.snapshotLocked()
	s.publish(id, EventTemplateFinished, snap)
	return snap, nil
}

// AddComponent appends a manually created component to the active canvas.
func (s *Service) AddComponent(id string, comp *canvas.Component) (*canvas.Component, error) {
	w, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	if comp.ID == "" {
		comp.ID = uuid.New().String()
	}
	comp.IsEditable = true
	col := w.activeCanvas()
	if err := col.Append(comp); err != nil {
		return nil, err
	}
	w.UpdatedAt = time.Now().UTC()

	added, _ := col.Get(comp.ID)
	s.publish(id, EventComponentAdded, added)
	return added, nil
}

// UpdateComponent applies a manual edit to one component. Manual edits merge
// like assistant updates but never trigger the highlight.
func (s *Service) UpdateComponent(id, componentID string, patch map[string]interface{}) (*canvas.Component, error) {
	w, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	col := w.activeCanvas()
	if !col.MergeData(componentID, patch) {
		return nil, fmt.Errorf("component %s not found", componentID)
	}
	w.UpdatedAt = time.Now().UTC()

	updated, _ := col.Get(componentID)
	s.publish(id, EventComponentUpdated, updated)
	return updated, nil
}

// RemoveComponent deletes one component by id. Removing an absent component
// is a no-op.
func (s *Service) RemoveComponent(id, componentID string) error {
	w, err := s.workspace(id)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	w.activeCanvas().RemoveByID(componentID)
	w.UpdatedAt = time.Now().UTC()
	s.publish(id, EventComponentRemoved, map[string]string{"componentId": componentID})
	return nil
}

// Canvas returns a canvas snapshot. An empty mode means the canvas the
// workspace is currently editing; an explicit mode reads that canvas even
// when it is not active, so the template stays inspectable during a patient
// session.
func (s *Service) Canvas(id string, mode Mode) ([]*canvas.Component, error) {
	w, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch mode {
	case "":
		return w.activeCanvas().Components(), nil
	case ModeTemplateBuilder:
		return w.builder.Components(), nil
	case ModePatientSession:
		return w.live.Components(), nil
	default:
		return nil, fmt.Errorf("invalid mode: %s", mode)
	}
}

// Doctors exposes the profile roster for workspace creation UIs.
func (s *Service) Doctors() []seeding.DoctorProfile {
	return s.directory.List()
}

func (s *Service) workspace(id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

func (s *Service) publish(sessionID, eventType string, payload interface{}) {
	s.publisher.Publish(sessionID, Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// publishOutcomes translates applied tool calls into component events.
func (s *Service) publishOutcomes(sessionID string, col *canvas.Collection, outcomes []canvas.CallOutcome) {
	for _, o := range outcomes {
		if o.Status != canvas.OutcomeApplied {
			continue
		}
		switch o.Call.Action {
		case canvas.ActionAdd:
			if comp, ok := col.Get(o.ComponentID); ok {
				s.publish(sessionID, EventComponentAdded, comp)
			}
		case canvas.ActionUpdate:
			if comp, ok := col.Get(o.ComponentID); ok {
				s.publish(sessionID, EventComponentUpdated, comp)
			}
		case canvas.ActionRemove:
			s.publish(sessionID, EventComponentRemoved, map[string]interface{}{
				"type":    o.Call.Type,
				"removed": o.Removed,
			})
		}
	}
}

// convertCalls lifts the assistant's raw tool calls into reconciler calls.
// Invalid actions and types pass through as-is; the reconciler reports them
// as malformed without aborting the batch.
func convertCalls(calls []assistant.ToolCall) []canvas.ToolCall {
	out := make([]canvas.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, canvas.ToolCall{
			Action: canvas.Action(c.Action),
			Type:   canvas.ComponentType(c.Type),
			Title:  c.Title,
			Data:   c.Data,
		})
	}
	return out
}

// summarize renders the canvas projection the assistant prompts with.
func summarize(col *canvas.Collection) string {
	raw, err := json.Marshal(col.Summaries())
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func doctorContext(p seeding.DoctorProfile) assistant.DoctorContext {
	return assistant.DoctorContext{
		Name:          p.Name,
		Specialty:     p.Specialty,
		Qualification: p.Qualification,
		Experience:    p.Experience,
		Diagnoses:     p.Diagnoses,
		Medications:   p.Medications,
	}
}

// defaultSeed is the generic starter canvas used when specialty seeding is
// unavailable.
func defaultSeed() []*canvas.Component {
	return []*canvas.Component{
		{
			ID:         uuid.New().String(),
			Type:       canvas.TypeChiefComplaints,
			Title:      "Chief Complaints",
			Data:       canvas.TagsPayload(),
			IsEditable: true,
		},
		{
			ID:         uuid.New().String(),
			Type:       canvas.TypeVitals,
			Title:      "Vital Signs",
			Data:       map[string]interface{}{"bp": "", "pulse": "", "temp": ""},
			IsEditable: true,
		},
		{
			ID:         uuid.New().String(),
			Type:       canvas.TypeForm,
			Title:      "Examination",
			Data: canvas.FormPayload(
				canvas.FormField{ID: "general", Label: "General Examination", Type: "text", Width: "full"},
			),
			IsEditable: true,
		},
		{
			ID:         uuid.New().String(),
			Type:       canvas.TypePrescription,
			Title:      "Medications",
			Data:       canvas.PrescriptionPayload(),
			IsEditable: true,
		},
	}
}
