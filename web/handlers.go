// Package web serves status and debug pages of a running logon server.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/net/trace"

	"badc0de.net/pkg/go-logon/logon"
	"badc0de.net/pkg/go-logon/realms"
)

// SessionLister is implemented by *logon.LogonServer.
type SessionLister interface {
	Sessions() []logon.SessionInfo
}

type Handler struct {
	sessions SessionLister
	realms   realms.Directory
}

func NewHandler(sessions SessionLister, dir realms.Directory) *Handler {
	return &Handler{
		sessions: sessions,
		realms:   dir,
	}
}

type realmView struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Type       uint8   `json:"type"`
	Flags      uint8   `json:"flags"`
	Locked     bool    `json:"locked"`
	Population float32 `json:"population"`
	Region     uint8   `json:"region"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		glog.Errorf("writing json response: %v", err)
	}
}

func (h *Handler) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sessions.Sessions())
}

func (h *Handler) realmsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.realms.ListRealms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]realmView, 0, len(list))
	for _, rl := range list {
		out = append(out, realmView{
			Name:       rl.Name,
			Address:    rl.Address,
			Type:       uint8(rl.Type),
			Flags:      uint8(rl.Flags),
			Locked:     rl.Locked,
			Population: rl.Population,
			Region:     uint8(rl.Region),
		})
	}
	writeJSON(w, out)
}

func minimetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "runtime.NumGoroutine(): %d\n", runtime.NumGoroutine())
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sessions", h.sessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/realms", h.realmsHandler).Methods(http.MethodGet)

	r.HandleFunc("/debug/requests", trace.Traces)
	r.HandleFunc("/debug/events", trace.Events)
	r.HandleFunc("/debug/minimetrics", minimetricsHandler)
}

// glogWriter sends access log lines to glog.
type glogWriter struct{}

func (glogWriter) Write(p []byte) (int, error) {
	glog.Info(string(p))
	return len(p), nil
}

// Wrap adds access logging and panic recovery to h.
func Wrap(h http.Handler) http.Handler {
	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(glogWriter{}, h))
}

// NewServeMux returns the complete status handler.
func NewServeMux(sessions SessionLister, dir realms.Directory) http.Handler {
	r := mux.NewRouter()
	NewHandler(sessions, dir).RegisterRoutes(r)
	return Wrap(r)
}
