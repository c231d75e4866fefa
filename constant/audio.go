package constant

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 48000
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Audio Output Timing
const (
	// AudioBufferDuration determines pipe write cadence
	AudioBufferDuration = 50 * time.Millisecond

	// AudioBufferSamples is frames per write tick at 48kHz
	AudioBufferSamples = (AudioSampleRate * 50) / 1000 // 2400

	// SpeakerBufferDuration is the beep speaker buffer length
	SpeakerBufferDuration = 100 * time.Millisecond
)

// Carrier Set
// 16 carriers, one per nibble value, above voice range
const (
	CarrierBaseHz = 12000.0
	CarrierStepHz = 200.0
	CarrierCount  = 16
)

// Login Tone Emission
const (
	LoginToneCount    = 4 // Nibbles emitted per proof
	LoginToneDuration = 300 * time.Millisecond
	LoginToneSpacing  = 350 * time.Millisecond
	LoginToneAttack   = 20 * time.Millisecond
	LoginToneGuard    = 500 * time.Millisecond
	LoginMasterGain   = 0.6
	LoginTonePeak     = 0.5
	ToneEnvelopeFloor = 0.0001 // Envelope start/end level, avoids clicks
)

// Test Tone (sound actions)
const (
	TestToneDuration = 600 * time.Millisecond
	TestToneVolume   = 0.55
)

// Spectral Analysis
const (
	AnalyserFFTSize    = 4096
	AnalyserMinDecibel = -100.0
	AnalyserMaxDecibel = -30.0

	// FrameInterval approximates a 60Hz display refresh
	FrameInterval = time.Second / 60
)

// One-Shot Verification
const (
	LoginCaptureDuration = 5000 * time.Millisecond
	LoginSmoothing       = 0.0
	LoginBinRadius       = 2 // Bins either side of a carrier
	LoginNibbleTolerance = 1
	LoginMinMatches      = 3
)

// Continuous Dispatch
const (
	DispatchSmoothing   = 0.2
	DispatchMinHz       = 200.0 // Below this is treated as hum
	DispatchNoiseGate   = 140   // Byte magnitude, 0-255
	DispatchToleranceHz = 100.0
	DispatchCooldown    = 3000 * time.Millisecond
	DispatchLogCapacity = 200
)

// Attestation
const (
	AttestationValidity  = time.Hour
	AttestationNonceSize = 32
	AttestationPath      = "44'/60'/0'/0/0"
)
