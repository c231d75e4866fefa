// Package config loads runtime settings from the environment and an optional .env file
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/constant"
)

type Config struct {
	// Storage
	DataFile string

	// Registry
	RPCURL          string
	RegistryAddress string
	DemoAccount     string
	DemoHash        string

	// Attestation signer, hex private key
	SoftKey string

	// Local control API
	HTTPAddr string

	// Capture
	CaptureBackend  string
	CaptureDuration time.Duration
	SoundBypass     bool

	// Dispatch
	DispatchCooldown time.Duration

	// MQTT Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// ClickHouse Configuration, empty address disables history persistence
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	Debug bool

	Audio *audio.AudioConfig
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		DataFile: getEnv("SOUNDKEY_DATA_FILE", "soundkey.json"),

		RPCURL:          getEnv("SOUNDKEY_RPC_URL", ""),
		RegistryAddress: getEnv("SOUNDKEY_REGISTRY_ADDRESS", ""),
		DemoAccount:     getEnv("SOUNDKEY_DEMO_ACCOUNT", ""),
		DemoHash:        getEnv("SOUNDKEY_DEMO_HASH", ""),

		SoftKey: getEnv("SOUNDKEY_SOFT_KEY", ""),

		HTTPAddr: getEnv("SOUNDKEY_HTTP_ADDR", "127.0.0.1:7777"),

		CaptureBackend:  getEnv("SOUNDKEY_CAPTURE_BACKEND", "auto"),
		CaptureDuration: getEnvDuration("SOUNDKEY_CAPTURE_DURATION", constant.LoginCaptureDuration),
		SoundBypass:     getEnvBool("SOUNDKEY_SOUND_BYPASS", false),

		DispatchCooldown: getEnvDuration("SOUNDKEY_DISPATCH_COOLDOWN", constant.DispatchCooldown),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "soundkey"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "soundkey"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		Debug: getEnvBool("SOUNDKEY_DEBUG", false),

		Audio: audio.LoadAudioConfig(),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}

// getEnvDuration accepts Go durations ("5s") or bare milliseconds ("5000")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}
