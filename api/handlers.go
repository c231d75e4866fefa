package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/lixenwraith/soundkey/attest"
	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/dispatch"
	"github.com/lixenwraith/soundkey/login"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/registry"
)

var errUnavailable = errors.New("component not configured")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnavailable), errors.Is(err, capture.ErrNotFound), errors.Is(err, attest.ErrNoSigner):
		return http.StatusServiceUnavailable
	case errors.Is(err, mapping.ErrAttestationRequired), errors.Is(err, capture.ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, mapping.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrAlreadyListening), errors.Is(err, login.ErrNoSecret):
		return http.StatusConflict
	case errors.Is(err, mapping.ErrInvalidFrequency), errors.Is(err, mapping.ErrInvalidURL),
		errors.Is(err, mapping.ErrInvalidAction), errors.Is(err, registry.ErrInvalidAccount),
		errors.Is(err, audio.ErrShortPayload), errors.Is(err, audio.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, attest.ErrSignature), errors.Is(err, attest.ErrPublicKey):
		return http.StatusUnauthorized
	case errors.Is(err, registry.ErrRPC):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest{err}
	}
	return nil
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return "bad request: " + e.err.Error() }

func writeDecodeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// ListMappingsHandler returns the active principal's mappings and whether they may be edited
func (s *Server) ListMappingsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Editor == nil {
		writeError(w, errUnavailable)
		return
	}
	list, err := s.Editor.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mappings": list,
		"canEdit":  s.Editor.CanEdit(),
	})
}

func (s *Server) AddMappingHandler(w http.ResponseWriter, r *http.Request) {
	if s.Editor == nil {
		writeError(w, errUnavailable)
		return
	}
	var m mapping.Mapping
	if err := decode(r, &m); err != nil {
		writeDecodeError(w, err)
		return
	}
	added, err := s.Editor.Add(m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) EditMappingHandler(w http.ResponseWriter, r *http.Request) {
	if s.Editor == nil {
		writeError(w, errUnavailable)
		return
	}
	var m mapping.Mapping
	if err := decode(r, &m); err != nil {
		writeDecodeError(w, err)
		return
	}
	edited, err := s.Editor.Edit(mux.Vars(r)["id"], m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, edited)
}

func (s *Server) DeleteMappingHandler(w http.ResponseWriter, r *http.Request) {
	if s.Editor == nil {
		writeError(w, errUnavailable)
		return
	}
	if err := s.Editor.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestToneHandler plays a mapping's frequency through the speaker
func (s *Server) TestToneHandler(w http.ResponseWriter, r *http.Request) {
	if s.Editor == nil || s.Emitter == nil {
		writeError(w, errUnavailable)
		return
	}
	list, err := s.Editor.List()
	if err != nil {
		writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	for _, m := range list {
		if m.ID != id {
			continue
		}
		if err := s.Emitter.PlayTone(r.Context(), m.FrequencyHz, constant.TestToneDuration, constant.TestToneVolume); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, mapping.ErrNotFound)
}

type listenState struct {
	State string `json:"state"`
}

func (s *Server) ListenStateHandler(w http.ResponseWriter, r *http.Request) {
	if s.Dispatcher == nil {
		writeError(w, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, listenState{State: s.Dispatcher.State().String()})
}

// ListenStartHandler starts a session that outlives the request
func (s *Server) ListenStartHandler(w http.ResponseWriter, r *http.Request) {
	if s.Dispatcher == nil {
		writeError(w, errUnavailable)
		return
	}
	if err := s.Dispatcher.Start(context.Background()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listenState{State: s.Dispatcher.State().String()})
}

func (s *Server) ListenStopHandler(w http.ResponseWriter, r *http.Request) {
	if s.Dispatcher == nil {
		writeError(w, errUnavailable)
		return
	}
	s.Dispatcher.Stop()
	writeJSON(w, http.StatusOK, listenState{State: s.Dispatcher.State().String()})
}

type verifyRequest struct {
	Account string `json:"account"`
}

type verifyResponse struct {
	Verified   bool      `json:"verified"`
	Account    string    `json:"account"`
	Matches    int       `json:"matches"`
	Expected   []int     `json:"expected"`
	Detected   []int     `json:"detected"`
	Frames     int       `json:"frames"`
	Bypass     bool      `json:"bypass,omitempty"`
	VerifiedAt time.Time `json:"verifiedAt,omitzero"`
}

// VerifyHandler listens for the account's sound; a mismatch is a normal 200 answer
func (s *Server) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Verifier == nil {
		writeError(w, errUnavailable)
		return
	}
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	res, err := s.Verifier.Verify(r.Context(), req.Account)
	if err != nil && !errors.Is(err, login.ErrMismatch) {
		writeError(w, err)
		return
	}

	resp := verifyResponse{
		Verified: res.Verified,
		Account:  req.Account,
		Matches:  res.Matches,
		Frames:   res.Frames,
		Bypass:   res.Session.Bypass,
	}
	for i := range res.Expected {
		resp.Expected = append(resp.Expected, int(res.Expected[i]))
		resp.Detected = append(resp.Detected, int(res.Detected[i]))
	}
	if res.Verified {
		resp.VerifiedAt = res.Session.VerifiedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type emitRequest struct {
	Account string `json:"account,omitempty"`
	Payload string `json:"payload,omitempty"` // hex
}

// EmitHandler plays an account's proof, or a raw hex payload
func (s *Server) EmitHandler(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if req.Account != "" {
		if s.Prover == nil {
			writeError(w, errUnavailable)
			return
		}
		if err := s.Prover.Prove(r.Context(), req.Account); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if s.Emitter == nil {
		writeError(w, errUnavailable)
		return
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(req.Payload, "0x"))
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.Emitter.Emit(r.Context(), payload, audio.DefaultEmitOptions()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attestState struct {
	Valid       bool                `json:"valid"`
	Principal   string              `json:"principal,omitempty"`
	Connected   bool                `json:"connected"`
	Attestation *attest.Attestation `json:"attestation,omitempty"`
}

func (s *Server) attestState() attestState {
	st := attestState{
		Valid:     s.Attest.HasValidAttestation(),
		Principal: s.Attest.AttestedPrincipalID(),
		Connected: s.Attest.DeviceConnected(),
	}
	if a, ok := s.Attest.Current(); ok {
		st.Attestation = &a
	}
	return st
}

func (s *Server) AttestStateHandler(w http.ResponseWriter, r *http.Request) {
	if s.Attest == nil {
		writeError(w, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.attestState())
}

// AttestHandler asks the signer for a fresh or reused attestation
func (s *Server) AttestHandler(w http.ResponseWriter, r *http.Request) {
	if s.Attest == nil {
		writeError(w, errUnavailable)
		return
	}
	if _, err := s.Attest.Ensure(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.attestState())
}

func (s *Server) ClearAttestHandler(w http.ResponseWriter, r *http.Request) {
	if s.Attest == nil {
		writeError(w, errUnavailable)
		return
	}
	s.Attest.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.History.Entries())
}

func (s *Server) ClearEventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, errUnavailable)
		return
	}
	s.History.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.Metrics == nil {
		writeError(w, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.Metrics.Snapshot())
}
