package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundkey/attest"
	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/dispatch"
	"github.com/lixenwraith/soundkey/history"
	"github.com/lixenwraith/soundkey/kv"
	"github.com/lixenwraith/soundkey/login"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/registry"
)

type fixture struct {
	server *Server
	router http.Handler
	store  *kv.MemoryStore
	output *audio.MemoryOutput
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := kv.NewMemoryStore()

	signer, err := attest.GenerateSoftSigner()
	if err != nil {
		t.Fatalf("GenerateSoftSigner failed: %v", err)
	}
	manager := attest.NewManager(signer, store, clk)
	editor := mapping.NewEditor(mapping.NewStore(store, clk), manager)

	out := audio.NewMemoryOutput(beep.SampleRate(48000))
	emitter := audio.NewEmitter(out.Opener(), nil)

	capt := &capture.Capturer{Source: capture.NewMemorySource(nil, 48000), Clock: clk}
	d := dispatch.NewDispatcher(capt, editor.List, dispatch.NewExecutor(nil))
	d.Clock = clk
	ring := history.NewRing(10)
	d.History = ring

	reg := registry.NewStaticRegistry()
	verifier := login.NewVerifier(reg, capt)
	verifier.Bypass = true

	s := &Server{
		Editor:     editor,
		Dispatcher: d,
		Verifier:   verifier,
		Prover:     login.NewProver(reg, emitter),
		Emitter:    emitter,
		Attest:     manager,
		History:    ring,
		Metrics:    d.Metrics,
	}
	t.Cleanup(d.Stop)
	return &fixture{server: s, router: NewRouter(s), store: store, output: out}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// TestHealth verifies the liveness probe
func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do("GET", "/health", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "OK" {
		t.Errorf("Expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
}

// TestMappingEditGated verifies edits without attestation are refused and change nothing
func TestMappingEditGated(t *testing.T) {
	f := newFixture(t)
	body := `{"frequencyHz":4000,"label":"Docs","action":{"type":"openUrl","url":"https://example.org"}}`

	rec := f.do("POST", "/mappings", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	keys, _ := f.store.Keys(mapping.Namespace)
	if len(keys) != 0 {
		t.Errorf("Expected no stored mappings, got %v", keys)
	}

	rec = f.do("GET", "/mappings", "")
	var resp struct {
		Mappings []mapping.Mapping `json:"mappings"`
		CanEdit  bool              `json:"canEdit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Mappings) != 3 || resp.CanEdit {
		t.Errorf("Expected 3 defaults and canEdit=false, got %d and %v", len(resp.Mappings), resp.CanEdit)
	}
}

// TestMappingLifecycle walks attest, add, edit, delete
func TestMappingLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/attest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from attest, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do("POST", "/mappings", `{"frequencyHz":4000,"label":"Docs","action":{"type":"openUrl","url":"https://example.org"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var added mapping.Mapping
	json.Unmarshal(rec.Body.Bytes(), &added)
	if added.ID == "" {
		t.Fatal("Expected an id")
	}

	rec = f.do("POST", "/mappings", `{"frequencyHz":4000,"label":"Bad","action":{"type":"openUrl","url":"javascript:alert(1)"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad url, got %d", rec.Code)
	}

	rec = f.do("PUT", "/mappings/"+added.ID, `{"frequencyHz":4500,"label":"Docs","action":{"type":"noop"}}`)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from edit, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do("DELETE", "/mappings/"+added.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 from delete, got %d", rec.Code)
	}
	rec = f.do("DELETE", "/mappings/"+added.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing mapping, got %d", rec.Code)
	}

	rec = f.do("DELETE", "/attest", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 from clear, got %d", rec.Code)
	}
	if f.server.Attest.HasValidAttestation() {
		t.Error("Expected attestation cleared")
	}
}

// TestListenEndpoints verifies start, reentry and stop
func TestListenEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/listen/start", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "listening") {
		t.Fatalf("Expected listening, got %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do("POST", "/listen/start", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on reentry, got %d", rec.Code)
	}
	rec = f.do("POST", "/listen/stop", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "idle") {
		t.Errorf("Expected idle, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do("GET", "/events", "")
	var entries []history.Entry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 2 || entries[0].Kind != history.KindStopped {
		t.Errorf("Expected stopped then started, got %+v", entries)
	}
}

// TestEmit covers raw payload emission and the short payload error
func TestEmit(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/emit", `{"payload":"0x01020304"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.output.Samples()) == 0 {
		t.Error("Expected rendered samples")
	}

	rec = f.do("POST", "/emit", `{"payload":"01"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for short payload, got %d", rec.Code)
	}

	rec = f.do("POST", "/emit", `{"account":"0x0000000000000000000000000000000000000001"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for account without secret, got %d", rec.Code)
	}
}

// TestVerifyBypass verifies the development bypass answers without listening
func TestVerifyBypass(t *testing.T) {
	f := newFixture(t)
	rec := f.do("POST", "/verify", `{"account":"0xabc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp verifyResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Verified || !resp.Bypass {
		t.Errorf("Expected verified bypass, got %+v", resp)
	}
}

// TestUnavailable verifies missing components answer 503
func TestUnavailable(t *testing.T) {
	router := NewRouter(&Server{})
	for _, path := range []string{"/mappings", "/listen", "/attest", "/events", "/status"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}

// TestStatus verifies metrics are served as JSON
func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.server.Metrics.Ints.Get(dispatch.MetricFired).Store(3)

	rec := f.do("GET", "/status", "")
	var snap map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if snap[dispatch.MetricFired] != 3.0 {
		t.Errorf("Expected fired 3, got %v", snap[dispatch.MetricFired])
	}
}

