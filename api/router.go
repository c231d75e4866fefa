// Package api exposes the local HTTP control surface
package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lixenwraith/soundkey/attest"
	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/dispatch"
	"github.com/lixenwraith/soundkey/history"
	"github.com/lixenwraith/soundkey/login"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/status"
)

// Server holds the components the handlers drive
// Nil components answer 503
type Server struct {
	Editor     *mapping.Editor
	Dispatcher *dispatch.Dispatcher
	Verifier   *login.Verifier
	Prover     *login.Prover
	Emitter    *audio.Emitter
	Attest     *attest.Manager
	History    *history.Ring
	Metrics    *status.Registry
}

func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	r.HandleFunc("/mappings", s.ListMappingsHandler).Methods("GET")
	r.HandleFunc("/mappings", s.AddMappingHandler).Methods("POST")
	r.HandleFunc("/mappings/{id}", s.EditMappingHandler).Methods("PUT")
	r.HandleFunc("/mappings/{id}", s.DeleteMappingHandler).Methods("DELETE")
	r.HandleFunc("/mappings/{id}/test", s.TestToneHandler).Methods("POST")

	r.HandleFunc("/listen", s.ListenStateHandler).Methods("GET")
	r.HandleFunc("/listen/start", s.ListenStartHandler).Methods("POST")
	r.HandleFunc("/listen/stop", s.ListenStopHandler).Methods("POST")

	r.HandleFunc("/verify", s.VerifyHandler).Methods("POST")
	r.HandleFunc("/emit", s.EmitHandler).Methods("POST")

	r.HandleFunc("/attest", s.AttestStateHandler).Methods("GET")
	r.HandleFunc("/attest", s.AttestHandler).Methods("POST")
	r.HandleFunc("/attest", s.ClearAttestHandler).Methods("DELETE")

	r.HandleFunc("/events", s.EventsHandler).Methods("GET")
	r.HandleFunc("/events", s.ClearEventsHandler).Methods("DELETE")
	r.HandleFunc("/status", s.StatusHandler).Methods("GET")
	return r
}
