// Package mapping holds frequency-to-action mappings and their edit policy
package mapping

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidFrequency    = errors.New("frequency must be a positive number of Hz")
	ErrInvalidURL          = errors.New("url must be http or https")
	ErrInvalidAction       = errors.New("invalid action")
	ErrNotFound            = errors.New("mapping not found")
	ErrAttestationRequired = errors.New("attestation required to edit mappings")
)

// ActionType tags the Action union
type ActionType string

const (
	ActionOpenURL ActionType = "openUrl"
	ActionNoop    ActionType = "noop"
	ActionPublish ActionType = "publish"
)

// Action is what a detected tone triggers
type Action struct {
	Type    ActionType `json:"type"`
	URL     string     `json:"url,omitempty"`
	Topic   string     `json:"topic,omitempty"`
	Payload string     `json:"payload,omitempty"`
}

// OpenURL builds an openUrl action
func OpenURL(u string) Action {
	return Action{Type: ActionOpenURL, URL: u}
}

// Publish builds an MQTT publish action
func Publish(topic, payload string) Action {
	return Action{Type: ActionPublish, Topic: topic, Payload: payload}
}

// Mapping binds a frequency to an action; timestamps are unix ms
type Mapping struct {
	ID          string  `json:"id"`
	FrequencyHz float64 `json:"frequencyHz"`
	Label       string  `json:"label"`
	Action      Action  `json:"action"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// Validate checks the fields an edit may set
func (m Mapping) Validate() error {
	if math.IsNaN(m.FrequencyHz) || math.IsInf(m.FrequencyHz, 0) || m.FrequencyHz <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, m.FrequencyHz)
	}
	return m.Action.Validate()
}

// Validate checks the action payload for its type
func (a Action) Validate() error {
	switch a.Type {
	case ActionOpenURL:
		return ValidateURL(a.URL)
	case ActionNoop:
		return nil
	case ActionPublish:
		if strings.TrimSpace(a.Topic) == "" || strings.ContainsAny(a.Topic, "+#") {
			return fmt.Errorf("%w: publish topic %q", ErrInvalidAction, a.Topic)
		}
		return nil
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidAction, a.Type)
	}
}

// ValidateURL accepts absolute http(s) URLs with a host
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

// defaultsNamespace seeds deterministic ids for the built-in mappings
var defaultsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://soundkey/sound-actions/defaults"))

// Defaults returns the built-in mappings stamped at now
func Defaults(now time.Time) []Mapping {
	ms := now.UnixMilli()
	def := func(hz float64, label, u string) Mapping {
		return Mapping{
			ID:          uuid.NewSHA1(defaultsNamespace, []byte(label)).String(),
			FrequencyHz: hz,
			Label:       label,
			Action:      OpenURL(u),
			CreatedAt:   ms,
			UpdatedAt:   ms,
		}
	}
	return []Mapping{
		def(1000, "MetaMask", "https://metamask.io"),
		def(2000, "Ledger", "https://www.ledger.com"),
		def(3000, "ENS", "https://ens.domains"),
	}
}
