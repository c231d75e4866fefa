package main

import (
	"fmt"
	"log"

	"github.com/lixenwraith/soundkey/api"
	"github.com/lixenwraith/soundkey/attest"
	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/broker"
	"github.com/lixenwraith/soundkey/capture"
	"github.com/lixenwraith/soundkey/clock"
	"github.com/lixenwraith/soundkey/config"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/dispatch"
	"github.com/lixenwraith/soundkey/history"
	"github.com/lixenwraith/soundkey/kv"
	"github.com/lixenwraith/soundkey/login"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/registry"
	"github.com/lixenwraith/soundkey/service"
	"github.com/lixenwraith/soundkey/status"
	"github.com/lixenwraith/soundkey/tone"
)

// app wires every component from one Config
type app struct {
	cfg   *config.Config
	clock clock.Clock

	store    kv.Store
	registry registry.Registry
	attest   *attest.Manager
	editor   *mapping.Editor
	capturer *capture.Capturer

	hub    *service.Hub
	audio  *audio.AudioService
	broker *broker.Service

	metrics    *status.Registry
	ring       *history.Ring
	clickhouse *history.ClickHouseRecorder
}

func newApp(cfg *config.Config) (*app, error) {
	clk := clock.New()

	store, err := kv.OpenFile(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	var signer attest.Signer
	if cfg.SoftKey != "" {
		soft, err := attest.NewSoftSigner(cfg.SoftKey)
		if err != nil {
			return nil, err
		}
		signer = soft
	}
	manager := attest.NewManager(signer, store, clk)

	a := &app{
		cfg:      cfg,
		clock:    clk,
		store:    store,
		registry: reg,
		attest:   manager,
		editor:   mapping.NewEditor(mapping.NewStore(store, clk), manager),
		capturer: &capture.Capturer{Source: capture.NewSource(cfg.CaptureBackend), Clock: clk},
		hub:      service.NewHub(),
		audio:    audio.NewService(),
		broker:   broker.NewService(),
		metrics:  status.NewRegistry(),
		ring:     history.NewRing(constant.DispatchLogCapacity),
	}

	if cfg.ClickHouseAddr != "" {
		ch, err := history.NewClickHouseRecorder(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
		if err != nil {
			log.Printf("History: %v, persisting disabled", err)
		} else {
			a.clickhouse = ch
		}
	}
	return a, nil
}

// buildRegistry prefers the on-chain registry and falls back to the demo account
func buildRegistry(cfg *config.Config) (registry.Registry, error) {
	if cfg.RPCURL != "" && cfg.RegistryAddress != "" {
		return registry.NewRPCRegistry(cfg.RPCURL, cfg.RegistryAddress)
	}

	static := registry.NewStaticRegistry()
	if cfg.DemoAccount != "" && cfg.DemoHash != "" {
		secret, err := tone.ParseSecret(cfg.DemoHash)
		if err != nil {
			return nil, fmt.Errorf("demo hash: %w", err)
		}
		if err := static.Set(cfg.DemoAccount, secret); err != nil {
			return nil, fmt.Errorf("demo account: %w", err)
		}
	}
	return static, nil
}

// start brings the services up; the API is registered only when withAPI is set
func (a *app) start(withAPI bool) error {
	a.hub.Register(a.audio)
	a.hub.Register(a.broker)
	args := map[string][]any{
		"audio": {a.cfg.Audio},
		"broker": {broker.ClientConfig{
			Broker:   a.cfg.MQTTBroker,
			ClientID: a.cfg.MQTTClientID,
			Username: a.cfg.MQTTUsername,
			Password: a.cfg.MQTTPassword,
		}},
	}
	if withAPI {
		a.hub.Register(api.NewService())
		args["api"] = []any{a.cfg.HTTPAddr, a.server}
	}

	if err := a.hub.InitAll(args); err != nil {
		return err
	}
	return a.hub.StartAll()
}

func (a *app) close() {
	a.hub.StopAll()
	if a.clickhouse != nil {
		if err := a.clickhouse.Close(); err != nil {
			log.Printf("History: %v", err)
		}
	}
}

func (a *app) recorder() history.Recorder {
	if a.clickhouse != nil {
		return history.Multi{a.ring, a.clickhouse}
	}
	return a.ring
}

func (a *app) emitter() *audio.Emitter {
	return a.audio.Emitter()
}

func (a *app) verifier() *login.Verifier {
	v := login.NewVerifier(a.registry, a.capturer)
	v.Clock = a.clock
	v.Options.Duration = a.cfg.CaptureDuration
	v.Bypass = a.cfg.SoundBypass
	return v
}

func (a *app) prover() *login.Prover {
	return login.NewProver(a.registry, a.emitter())
}

// dispatcher snapshots the active principal's mappings on every Start
func (a *app) dispatcher() *dispatch.Dispatcher {
	d := dispatch.NewDispatcher(a.capturer, a.editor.List, dispatch.NewExecutor(a.broker))
	d.Clock = a.clock
	d.Cooldown = a.cfg.DispatchCooldown
	d.History = a.recorder()
	d.Metrics = a.metrics
	return d
}

func (a *app) server() *api.Server {
	return &api.Server{
		Editor:     a.editor,
		Dispatcher: a.dispatcher(),
		Verifier:   a.verifier(),
		Prover:     a.prover(),
		Emitter:    a.emitter(),
		Attest:     a.attest,
		History:    a.ring,
		Metrics:    a.metrics,
	}
}
