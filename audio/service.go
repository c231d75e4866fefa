package audio

import (
	"sync/atomic"
)

// AudioService wraps the Emitter as a Service
// Handles graceful degradation when no audio backend is available
type AudioService struct {
	config   *AudioConfig
	emitter  *Emitter
	disabled atomic.Bool
}

// NewService creates a new audio service
func NewService() *AudioService {
	return &AudioService{}
}

// Name implements Service
func (s *AudioService) Name() string {
	return "audio"
}

// Dependencies implements Service
func (s *AudioService) Dependencies() []string {
	return nil
}

// Init implements Service
// args[0]: *AudioConfig - output settings, default LoadAudioConfig()
// args[1]: OutputOpener - overrides backend selection
func (s *AudioService) Init(args ...any) error {
	config := LoadAudioConfig()
	var opener OutputOpener

	if len(args) > 0 {
		if cfg, ok := args[0].(*AudioConfig); ok && cfg != nil {
			config = cfg
		}
	}
	if len(args) > 1 {
		if o, ok := args[1].(OutputOpener); ok {
			opener = o
		}
	}

	s.config = config
	s.disabled.Store(!config.Enabled || config.Backend == OutputNone)
	s.emitter = NewEmitter(opener, config)
	return nil
}

// Start implements Service
// Outputs are opened per emission, nothing runs in the background
func (s *AudioService) Start() error {
	return nil
}

// Stop implements Service
func (s *AudioService) Stop() error {
	return nil
}

// IsDisabled returns true if audio output is switched off
func (s *AudioService) IsDisabled() bool {
	return s.disabled.Load()
}

// Emitter returns the tone emitter, silent when disabled
func (s *AudioService) Emitter() *Emitter {
	if s.emitter == nil {
		return NewEmitter(noOutput, s.config)
	}
	return s.emitter
}
