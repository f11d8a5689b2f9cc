package canvas

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action is the verb of one assistant tool call.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

var validActions = map[Action]bool{
	ActionAdd: true, ActionUpdate: true, ActionRemove: true,
}

// ToolCall is one structured instruction from the Clinical Assistant. The
// assistant addresses components by type, never by id, because the canvas
// summary it sees omits ids.
type ToolCall struct {
	Action Action                 `json:"action"`
	Type   ComponentType          `json:"type"`
	Title  string                 `json:"title,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// OutcomeStatus classifies how one tool call fared.
type OutcomeStatus string

const (
	OutcomeApplied   OutcomeStatus = "applied"
	OutcomeNotFound  OutcomeStatus = "not-found"
	OutcomeMalformed OutcomeStatus = "malformed"
)

// CallOutcome records the result of applying one tool call. Callers are free
// to ignore it today; it exists so a future UI can report partial success.
type CallOutcome struct {
	Call        ToolCall      `json:"call"`
	Status      OutcomeStatus `json:"status"`
	ComponentID string        `json:"componentId,omitempty"`
	Removed     int           `json:"removed,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// Reconciler applies batches of assistant tool calls to a collection.
// Batches are applied strictly in order; a malformed or unmatched call is
// recorded in its outcome and never aborts the rest of the batch.
type Reconciler struct {
	highlights *HighlightScheduler
	logger     zerolog.Logger
}

// NewReconciler creates a reconciler that schedules highlight decay through
// the given scheduler.
func NewReconciler(highlights *HighlightScheduler, logger zerolog.Logger) *Reconciler {
	return &Reconciler{highlights: highlights, logger: logger}
}

// Apply runs each tool call against col in order and returns the per-call
// outcomes. The target collection is fixed for the whole batch; a workspace
// mode change mid-batch cannot redirect later calls.
func (r *Reconciler) Apply(col *Collection, calls []ToolCall) []CallOutcome {
	outcomes := make([]CallOutcome, 0, len(calls))
	for _, call := range calls {
		outcome := r.applyOne(col, call)
		if outcome.Status != OutcomeApplied {
			r.logger.Debug().
				Str("action", string(call.Action)).
				Str("type", string(call.Type)).
				Str("status", string(outcome.Status)).
				Str("reason", outcome.Reason).
				Msg("tool call not applied")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (r *Reconciler) applyOne(col *Collection, call ToolCall) CallOutcome {
	if reason := validateCall(call); reason != "" {
		return CallOutcome{Call: call, Status: OutcomeMalformed, Reason: reason}
	}

	switch call.Action {
	case ActionAdd:
		return r.applyAdd(col, call)
	case ActionUpdate:
		return r.applyUpdate(col, call)
	default:
		return r.applyRemove(col, call)
	}
}

// applyAdd constructs a fresh component and appends it. There is no dedup
// check: the assistant may legitimately add a second block of an existing
// type.
func (r *Reconciler) applyAdd(col *Collection, call ToolCall) CallOutcome {
	title := call.Title
	if title == "" {
		title = string(call.Type)
	}
	data := call.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	comp := &Component{
		ID:         uuid.New().String(),
		Type:       call.Type,
		Title:      title,
		Data:       data,
		IsEditable: true,
	}
	if err := col.Append(comp); err != nil {
		// Only reachable on a uuid collision; treat like a malformed call
		// rather than failing the batch.
		return CallOutcome{Call: call, Status: OutcomeMalformed, Reason: err.Error()}
	}
	return CallOutcome{Call: call, Status: OutcomeApplied, ComponentID: comp.ID}
}

// applyUpdate targets the first component of the call's type. An absent type
// is a silent no-op toward the assistant; the outcome still records it.
func (r *Reconciler) applyUpdate(col *Collection, call ToolCall) CallOutcome {
	target, ok := col.FindByType(call.Type)
	if !ok {
		return CallOutcome{Call: call, Status: OutcomeNotFound, Reason: "no component of type " + string(call.Type)}
	}
	gen, ok := col.UpdatePayload(target.ID, call.Data)
	if !ok {
		// Removed between lookup and update; same contract as not-found.
		return CallOutcome{Call: call, Status: OutcomeNotFound, Reason: "component removed during update"}
	}
	r.highlights.Schedule(col, target.ID, gen)
	return CallOutcome{Call: call, Status: OutcomeApplied, ComponentID: target.ID}
}

// applyRemove deletes every component of the call's type. Remove is
// all-match while update is first-match; the asymmetry is part of the
// reconciler's contract.
func (r *Reconciler) applyRemove(col *Collection, call ToolCall) CallOutcome {
	removed := col.RemoveByType(call.Type)
	if removed == 0 {
		return CallOutcome{Call: call, Status: OutcomeNotFound, Reason: "no component of type " + string(call.Type)}
	}
	return CallOutcome{Call: call, Status: OutcomeApplied, Removed: removed}
}

func validateCall(call ToolCall) string {
	if call.Action == "" {
		return "action is required"
	}
	if !validActions[call.Action] {
		return "invalid action: " + string(call.Action)
	}
	if call.Type == "" {
		return "type is required"
	}
	if !ValidType(call.Type) {
		return "invalid component type: " + string(call.Type)
	}
	return ""
}
