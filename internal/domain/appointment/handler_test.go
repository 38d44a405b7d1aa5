package appointment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func expectCode(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != code {
		t.Errorf("expected HTTP %d, got %v", code, err)
	}
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonContext(e, http.MethodPost, `{"patient_name":"Emma Thompson","date":"2025-03-14","time":"10:30","type":"consultation"}`)
	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"scheduled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateAppointment_Conflict(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_name":"Emma Thompson","date":"2025-03-14","time":"10:30"}`
	c, _ := jsonContext(e, http.MethodPost, body)
	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ = jsonContext(e, http.MethodPost, body)
	expectCode(t, h.CreateAppointment(c), http.StatusConflict)
}

func TestHandler_CreateAppointment_Invalid(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodPost, `{"date":"soon"}`)
	expectCode(t, h.CreateAppointment(c), http.StatusBadRequest)
}

func TestHandler_CreateAppointment_UnknownReferral(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodPost, `{"referral_id":"`+uuid.NewString()+`","date":"2025-03-14","time":"10:30"}`)
	expectCode(t, h.CreateAppointment(c), http.StatusNotFound)
}

func TestHandler_GetAppointment(t *testing.T) {
	h, e := newTestHandler()
	a := validAppointment()
	h.svc.CreateAppointment(context.Background(), a)

	c, rec := jsonContext(e, http.MethodGet, "")
	if err := h.GetAppointment(withID(c, a.ID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodGet, "")
	expectCode(t, h.GetAppointment(withID(c, uuid.NewString())), http.StatusNotFound)

	c, _ = jsonContext(e, http.MethodGet, "")
	expectCode(t, h.GetAppointment(withID(c, "not-a-uuid")), http.StatusBadRequest)
}

func TestHandler_ListAppointments(t *testing.T) {
	h, e := newTestHandler()
	h.svc.CreateAppointment(context.Background(), validAppointment())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?date=2025-03-14", nil)
	if err := h.ListAppointments(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/?status=maybe", nil)
	expectCode(t, h.ListAppointments(e.NewContext(req, httptest.NewRecorder())), http.StatusBadRequest)
}

func TestHandler_Today_Empty(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonContext(e, http.MethodGet, "")
	if err := h.Today(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"appointments":[]`) || !strings.Contains(body, `"date":"2025-03-14"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, e := newTestHandler()
	a := validAppointment()
	h.svc.CreateAppointment(context.Background(), a)

	c, rec := jsonContext(e, http.MethodPatch, `{"status":"cancelled"}`)
	if err := h.UpdateStatus(withID(c, a.ID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = jsonContext(e, http.MethodPatch, `{"status":"confirmed"}`)
	expectCode(t, h.UpdateStatus(withID(c, a.ID.String())), http.StatusConflict)
}

func TestHandler_UpdateAppointment(t *testing.T) {
	h, e := newTestHandler()
	a := validAppointment()
	h.svc.CreateAppointment(context.Background(), a)

	c, rec := jsonContext(e, http.MethodPut, `{"patient_name":"Emma Thompson","date":"2025-03-20","time":"15:00"}`)
	if err := h.UpdateAppointment(withID(c, a.ID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"date":"2025-03-20"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteAppointment(t *testing.T) {
	h, e := newTestHandler()
	a := validAppointment()
	h.svc.CreateAppointment(context.Background(), a)

	c, rec := jsonContext(e, http.MethodDelete, "")
	if err := h.DeleteAppointment(withID(c, a.ID.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodDelete, "")
	expectCode(t, h.DeleteAppointment(withID(c, a.ID.String())), http.StatusNotFound)
}
