package audio

import (
	"errors"
)

// BackendType identifies a CLI audio backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
)

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// OutputKind selects how tones reach the speakers
type OutputKind string

const (
	OutputAuto    OutputKind = "auto"    // Speaker, falling back to pipe
	OutputSpeaker OutputKind = "speaker" // beep speaker (oto)
	OutputPipe    OutputKind = "pipe"    // CLI player subprocess
	OutputNone    OutputKind = "none"    // Silent
)

// Sentinel errors
var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
	ErrOutputClosed   = errors.New("audio output closed")
	ErrShortPayload   = errors.New("payload shorter than tone count")
	ErrInvalidOptions = errors.New("invalid emit options")
)
