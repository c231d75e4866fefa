package audio

import (
	"testing"
)

// TestDefaultAudioConfig verifies default configuration
func TestDefaultAudioConfig(t *testing.T) {
	cfg := DefaultAudioConfig()

	if cfg == nil {
		t.Fatal("Expected non-nil default config")
	}
	if !cfg.Enabled {
		t.Error("Expected default config to have Enabled=true")
	}
	if cfg.MasterVolume != 1.0 {
		t.Errorf("Expected default master volume 1.0, got %f", cfg.MasterVolume)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("Expected default sample rate 48000, got %d", cfg.SampleRate)
	}
	if cfg.Backend != OutputAuto {
		t.Errorf("Expected default backend auto, got %s", cfg.Backend)
	}
}

// TestLoadAudioConfigDefaults verifies loading with no env vars
func TestLoadAudioConfigDefaults(t *testing.T) {
	t.Setenv("SOUNDKEY_AUDIO_ENABLED", "")
	t.Setenv("SOUNDKEY_MASTER_VOLUME", "")
	t.Setenv("SOUNDKEY_SAMPLE_RATE", "")
	t.Setenv("SOUNDKEY_AUDIO_BACKEND", "")

	cfg := LoadAudioConfig()
	defaultCfg := DefaultAudioConfig()

	if *cfg != *defaultCfg {
		t.Errorf("Expected %+v, got %+v", *defaultCfg, *cfg)
	}
}

// TestLoadAudioConfigEnabled verifies loading enabled flag
func TestLoadAudioConfigEnabled(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"true", "true", true},
		{"false", "false", false},
		{"1", "1", true},
		{"0", "0", false},
		{"invalid keeps default", "maybe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOUNDKEY_AUDIO_ENABLED", tt.envValue)
			cfg := LoadAudioConfig()
			if cfg.Enabled != tt.expected {
				t.Errorf("Expected Enabled=%v for %q, got %v", tt.expected, tt.envValue, cfg.Enabled)
			}
		})
	}
}

// TestLoadAudioConfigMasterVolume verifies volume parsing and clamping
func TestLoadAudioConfigMasterVolume(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected float64
	}{
		{"zero", "0", 0.0},
		{"half", "50", 0.5},
		{"full", "100", 1.0},
		{"negative clamps", "-10", 0.0},
		{"over clamps", "150", 1.0},
		{"invalid keeps default", "loud", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOUNDKEY_MASTER_VOLUME", tt.envValue)
			cfg := LoadAudioConfig()
			if cfg.MasterVolume != tt.expected {
				t.Errorf("Expected MasterVolume=%f, got %f", tt.expected, cfg.MasterVolume)
			}
		})
	}
}

// TestLoadAudioConfigSampleRate verifies sample rate parsing
func TestLoadAudioConfigSampleRate(t *testing.T) {
	tests := []struct {
		envValue string
		expected int
	}{
		{"44100", 44100},
		{"96000", 96000},
		{"0", 48000},
		{"-1", 48000},
		{"abc", 48000},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("SOUNDKEY_SAMPLE_RATE", tt.envValue)
			cfg := LoadAudioConfig()
			if cfg.SampleRate != tt.expected {
				t.Errorf("Expected SampleRate=%d, got %d", tt.expected, cfg.SampleRate)
			}
		})
	}
}

// TestLoadAudioConfigBackend verifies backend selection
func TestLoadAudioConfigBackend(t *testing.T) {
	tests := []struct {
		envValue string
		expected OutputKind
	}{
		{"speaker", OutputSpeaker},
		{"PIPE", OutputPipe},
		{"none", OutputNone},
		{"auto", OutputAuto},
		{"jack", OutputAuto},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("SOUNDKEY_AUDIO_BACKEND", tt.envValue)
			cfg := LoadAudioConfig()
			if cfg.Backend != tt.expected {
				t.Errorf("Expected Backend=%s, got %s", tt.expected, cfg.Backend)
			}
		})
	}
}
