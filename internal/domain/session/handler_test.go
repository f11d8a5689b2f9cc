package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cliniq/emr/internal/domain/canvas"
)

type fakeTemplateSource struct {
	comps []*canvas.Component
	err   error
}

func (f *fakeTemplateSource) Instantiate(context.Context, uuid.UUID) ([]*canvas.Component, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.comps, nil
}

func newTestHandler() (*Handler, *Service) {
	fa := &fakeAssistant{}
	svc := newTestService(fa, nil, nil)
	return NewHandler(svc, nil), svc
}

func doRequest(t *testing.T, h echo.HandlerFunc, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	names := make([]string, 0, len(params))
	values := make([]string, 0, len(params))
	for k, v := range params {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandlerCreateSession(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/api/v1/sessions",
		`{"doctorId":"DOC001"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if snap.ID == "" || snap.Mode != ModeTemplateBuilder {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Components) == 0 {
		t.Error("expected seeded components")
	}
}

func TestHandlerCreateSessionMissingDoctor(t *testing.T) {
	h, _ := newTestHandler()
	rec := doRequest(t, h.CreateSession, http.MethodPost, "/api/v1/sessions", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlerCreateSessionFromTemplate(t *testing.T) {
	svc := newTestService(&fakeAssistant{}, nil, nil)
	src := &fakeTemplateSource{comps: []*canvas.Component{
		{Type: canvas.TypeForm, Title: "Cardiac Exam", Data: map[string]interface{}{}},
	}}
	h := NewHandler(svc, src)

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/api/v1/sessions",
		`{"doctorId":"DOC001","templateId":"`+uuid.NewString()+`"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(snap.Components) != 1 || snap.Components[0].Type != canvas.TypeForm {
		t.Errorf("expected the template components on the canvas, got %+v", snap.Components)
	}
}

func TestHandlerCreateSessionTemplateNotFound(t *testing.T) {
	svc := newTestService(&fakeAssistant{}, nil, nil)
	h := NewHandler(svc, &fakeTemplateSource{err: errors.New("no rows")})

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/api/v1/sessions",
		`{"doctorId":"DOC001","templateId":"`+uuid.NewString()+`"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlerCreateSessionBadTemplateID(t *testing.T) {
	svc := newTestService(&fakeAssistant{}, nil, nil)
	h := NewHandler(svc, &fakeTemplateSource{})

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/api/v1/sessions",
		`{"doctorId":"DOC001","templateId":"not-a-uuid"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlerCreateSessionTemplateStoreMissing(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/api/v1/sessions",
		`{"doctorId":"DOC001","templateId":"`+uuid.NewString()+`"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlerGetSessionNotFound(t *testing.T) {
	h, _ := newTestHandler()
	rec := doRequest(t, h.GetSession, http.MethodGet, "/api/v1/sessions/ghost", "",
		map[string]string{"id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlerSubmitMessage(t *testing.T) {
	h, svc := newTestHandler()
	snap := mustCreate(t, svc, "DOC001", "")

	rec := doRequest(t, h.SubmitMessage, http.MethodPost, "/api/v1/sessions/"+snap.ID+"/messages",
		`{"text":"BP is 120/80"}`, map[string]string{"id": snap.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result MessageResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.Reply.Role != RoleModel || result.Reply.Text == "" {
		t.Errorf("unexpected reply: %+v", result.Reply)
	}
}

func TestHandlerSubmitMessageAssistantDown(t *testing.T) {
	fa := &fakeAssistant{err: ErrAssistantUnavailable}
	svc := newTestService(fa, nil, nil)
	h := NewHandler(svc, nil)
	snap := mustCreate(t, svc, "DOC001", "")

	rec := doRequest(t, h.SubmitMessage, http.MethodPost, "/api/v1/sessions/"+snap.ID+"/messages",
		`{"text":"hi"}`, map[string]string{"id": snap.ID})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestHandlerFinishBuilding(t *testing.T) {
	h, svc := newTestHandler()
	snap := mustCreate(t, svc, "DOC001", "")

	rec := doRequest(t, h.FinishBuilding, http.MethodPost, "/api/v1/sessions/"+snap.ID+"/finish",
		"", map[string]string{"id": snap.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.FinishBuilding, http.MethodPost, "/api/v1/sessions/"+snap.ID+"/finish",
		"", map[string]string{"id": snap.ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double finish, got %d", rec.Code)
	}
}

func TestHandlerComponentLifecycle(t *testing.T) {
	h, svc := newTestHandler()
	snap := mustCreate(t, svc, "DOC001", "")

	rec := doRequest(t, h.AddComponent, http.MethodPost, "/api/v1/sessions/"+snap.ID+"/components",
		`{"type":"notes","title":"Clinical Notes"}`, map[string]string{"id": snap.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var added canvas.Component
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}

	rec = doRequest(t, h.UpdateComponent, http.MethodPatch,
		"/api/v1/sessions/"+snap.ID+"/components/"+added.ID,
		`{"data":{"note":"follow up in 2 weeks"}}`,
		map[string]string{"id": snap.ID, "componentID": added.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.RemoveComponent, http.MethodDelete,
		"/api/v1/sessions/"+snap.ID+"/components/"+added.ID,
		"", map[string]string{"id": snap.ID, "componentID": added.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestHandlerListDoctors(t *testing.T) {
	h, _ := newTestHandler()
	rec := doRequest(t, h.ListDoctors, http.MethodGet, "/api/v1/doctors", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doctors []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doctors); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(doctors) != 8 {
		t.Errorf("expected 8 doctors, got %d", len(doctors))
	}
}
