package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/trace"

	"badc0de.net/pkg/go-logon/logon"
	"badc0de.net/pkg/go-logon/realms"
	"badc0de.net/pkg/go-logon/ttesting"
)

type fakeSessions []logon.SessionInfo

func (f fakeSessions) Sessions() []logon.SessionInfo { return f }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSessions(t *testing.T) {
	id := uuid.New()
	h := NewServeMux(fakeSessions{{
		ID:          id,
		RemoteAddr:  "10.0.0.1:5000",
		State:       "dispatching",
		Account:     "TEST",
		ConnectedAt: time.Unix(1700000000, 0).UTC(),
	}}, realms.StaticDirectory{})

	rec := get(t, h, "/sessions")
	ttesting.AssertEqualInt(t, "status", rec.Code, http.StatusOK)
	ttesting.AssertEqualString(t, "content type", rec.Header().Get("Content-Type"), "application/json")

	var got []logon.SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	ttesting.AssertEqualInt(t, "sessions", len(got), 1)
	if got[0].ID != id {
		t.Errorf("id %s; want %s", got[0].ID, id)
	}
	ttesting.AssertEqualString(t, "account", got[0].Account, "TEST")
}

func TestRealms(t *testing.T) {
	dir := realms.StaticDirectory{
		{Name: "Alpha", Address: "127.0.0.1:8085", Type: realms.TypePvP},
		{Name: "Beta", Address: "127.0.0.1:8086", Locked: true},
	}
	rec := get(t, NewServeMux(fakeSessions{}, dir), "/realms")
	ttesting.AssertEqualInt(t, "status", rec.Code, http.StatusOK)

	var got []realmView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	ttesting.AssertEqualInt(t, "realms", len(got), 2)
	ttesting.AssertEqualString(t, "order", got[0].Name+","+got[1].Name, "Alpha,Beta")
	ttesting.AssertEqualInt(t, "type", int(got[0].Type), int(realms.TypePvP))
	if !got[1].Locked {
		t.Errorf("Beta is not locked")
	}
}

func TestRoutes(t *testing.T) {
	old := trace.AuthRequest
	trace.AuthRequest = func(*http.Request) (allowed, sensitive bool) { return true, true }
	defer func() { trace.AuthRequest = old }()

	h := NewServeMux(fakeSessions{}, realms.StaticDirectory{})
	tests := []struct {
		path string
		code int
	}{
		{"/debug/events", http.StatusOK},
		{"/debug/requests", http.StatusOK},
		{"/debug/minimetrics", http.StatusOK},
		{"/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.path, "/"), func(t *testing.T) {
			ttesting.AssertEqualInt(t, tt.path, get(t, h, tt.path).Code, tt.code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	ttesting.AssertEqualInt(t, "POST /sessions", rec.Code, http.StatusMethodNotAllowed)
}

func TestRecovery(t *testing.T) {
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	ttesting.AssertEqualInt(t, "status", get(t, h, "/").Code, http.StatusInternalServerError)
}
