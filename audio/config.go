package audio

import (
	"os"
	"strconv"
	"strings"

	"github.com/lixenwraith/soundkey/constant"
)

// AudioConfig holds audio output settings
type AudioConfig struct {
	Enabled      bool
	MasterVolume float64 // 0.0-1.0, scales emission gain
	SampleRate   int
	Backend      OutputKind
}

// DefaultAudioConfig returns the default output configuration
func DefaultAudioConfig() *AudioConfig {
	return &AudioConfig{
		Enabled:      true,
		MasterVolume: 1.0,
		SampleRate:   constant.AudioSampleRate,
		Backend:      OutputAuto,
	}
}

// LoadAudioConfig loads audio configuration from environment variables
func LoadAudioConfig() *AudioConfig {
	cfg := DefaultAudioConfig()

	if enabled := os.Getenv("SOUNDKEY_AUDIO_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = val
		}
	}

	// Load master volume (0-100 converted to 0.0-1.0)
	if volume := os.Getenv("SOUNDKEY_MASTER_VOLUME"); volume != "" {
		if val, err := strconv.Atoi(volume); err == nil {
			cfg.MasterVolume = float64(val) / 100.0
			if cfg.MasterVolume < 0 {
				cfg.MasterVolume = 0
			}
			if cfg.MasterVolume > 1 {
				cfg.MasterVolume = 1
			}
		}
	}

	if sampleRate := os.Getenv("SOUNDKEY_SAMPLE_RATE"); sampleRate != "" {
		if val, err := strconv.Atoi(sampleRate); err == nil && val > 0 {
			cfg.SampleRate = val
		}
	}

	if backend := os.Getenv("SOUNDKEY_AUDIO_BACKEND"); backend != "" {
		switch kind := OutputKind(strings.ToLower(backend)); kind {
		case OutputAuto, OutputSpeaker, OutputPipe, OutputNone:
			cfg.Backend = kind
		}
	}

	return cfg
}
