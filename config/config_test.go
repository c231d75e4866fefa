package config

import (
	"testing"
	"time"

	"github.com/lixenwraith/soundkey/constant"
)

// TestLoadDefaults verifies defaults with a clean environment
func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SOUNDKEY_DATA_FILE", "SOUNDKEY_HTTP_ADDR", "SOUNDKEY_SOUND_BYPASS", "SOUNDKEY_CAPTURE_DURATION", "MQTT_BROKER", "CLICKHOUSE_ADDR", "MQTT_CLIENT_ID"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.DataFile != "soundkey.json" {
		t.Errorf("Expected soundkey.json, got %s", cfg.DataFile)
	}
	if cfg.HTTPAddr != "127.0.0.1:7777" {
		t.Errorf("Expected loopback address, got %s", cfg.HTTPAddr)
	}
	if cfg.SoundBypass {
		t.Error("Expected bypass off by default")
	}
	if cfg.CaptureDuration != constant.LoginCaptureDuration {
		t.Errorf("Expected %v, got %v", constant.LoginCaptureDuration, cfg.CaptureDuration)
	}
	if cfg.MQTTBroker != "" || cfg.ClickHouseAddr != "" {
		t.Error("Expected broker and history disabled by default")
	}
	if cfg.MQTTClientID != "soundkey" {
		t.Errorf("Expected client id soundkey, got %s", cfg.MQTTClientID)
	}
	if cfg.Audio == nil {
		t.Error("Expected audio config")
	}
}

// TestLoadOverrides verifies each parser accepts and rejects values
func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOUNDKEY_SOUND_BYPASS", "true")
	t.Setenv("SOUNDKEY_CAPTURE_DURATION", "2500")
	t.Setenv("SOUNDKEY_DISPATCH_COOLDOWN", "1.5s")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("SOUNDKEY_DEBUG", "maybe")

	cfg := Load()
	if !cfg.SoundBypass {
		t.Error("Expected bypass on")
	}
	if cfg.CaptureDuration != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v", cfg.CaptureDuration)
	}
	if cfg.DispatchCooldown != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %v", cfg.DispatchCooldown)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("Expected broker override, got %s", cfg.MQTTBroker)
	}
	if cfg.Debug {
		t.Error("Expected invalid bool to fall back to default")
	}
}

// TestGetEnvDuration covers the accepted forms
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Second},
		{"250", 250 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"-5s", time.Second},
		{"soon", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SOUNDKEY_TEST_DURATION", tt.value)
			if got := getEnvDuration("SOUNDKEY_TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
